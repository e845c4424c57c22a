package autotag

import (
	"context"
	"time"

	"gallery-engine/internal/catalog"
	"gallery-engine/internal/logging"
	"gallery-engine/internal/metrics"
	"gallery-engine/internal/store"
)

// Stats summarizes one catalog-wide retag pass.
type Stats struct {
	Total    int           `json:"total"`
	Retagged int           `json:"retagged"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Version  int           `json:"version"`
	Duration time.Duration `json:"-"`
}

// RetagAll recomputes cached auto tags for every item whose cached
// version is stale. Items already stamped with the current Version are
// skipped, so running the pass twice against an unchanged catalog
// performs zero writes the second time. Individual write failures are
// logged and counted, not fatal.
func RetagAll(ctx context.Context, s store.Store, items []catalog.Item) (Stats, error) {
	start := time.Now()
	stats := Stats{Total: len(items), Version: Version}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			stats.Duration = time.Since(start)
			return stats, err
		}

		if meta, ok := s.AutoTagMeta(ctx, item.ID); ok && meta.Version == Version {
			stats.Skipped++
			metrics.AutotagItemsSkipped.Inc()
			continue
		}

		result := Derive(item)
		meta := store.AutoTagMeta{
			Version:   Version,
			Tags:      result.Tags,
			UpdatedAt: time.Now(),
		}
		if err := s.SetAutoTagMeta(ctx, item.ID, meta); err != nil {
			logging.Warn("autotag: failed to cache tags for %s: %v", item.ID, err)
			stats.Failed++
			continue
		}
		stats.Retagged++
		metrics.AutotagItemsRetagged.Inc()
	}

	stats.Duration = time.Since(start)
	metrics.AutotagRunDuration.Observe(stats.Duration.Seconds())
	logging.Info("autotag: pass complete, %d items (%d retagged, %d current, %d failed) in %s",
		stats.Total, stats.Retagged, stats.Skipped, stats.Failed, stats.Duration.Round(time.Millisecond))
	return stats, nil
}
