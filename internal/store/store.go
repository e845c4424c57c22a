// Package store is the persisted engagement-state layer of the gallery
// engine. It keeps six independent per-item namespaces (watch time,
// added dates, favorites, manual tags, auto-tag metadata, titles) plus
// video resume positions and a single global volume, and broadcasts a
// typed change event after every write so any other open view of the
// same data can refresh.
//
// Reads never fail: malformed persisted data is treated as absent and
// the zero value is returned. The namespaces are independent so that
// corruption in one cannot invalidate another.
package store

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"
)

// Topic identifies one of the change-notification channels.
type Topic string

const (
	// TopicWatch fires when an item's accumulated watch time changes.
	TopicWatch Topic = "watch"
	// TopicFavorites fires when an item's favorite membership changes.
	TopicFavorites Topic = "favorites"
	// TopicTags fires when an item's manual or derived tags change.
	TopicTags Topic = "tags"
	// TopicTitles fires when an item's title override changes.
	TopicTitles Topic = "titles"
	// TopicProgress fires when an item's resume position changes.
	TopicProgress Topic = "progress"
)

// Topics lists every change-notification topic.
var Topics = []Topic{TopicWatch, TopicFavorites, TopicTags, TopicTitles, TopicProgress}

// Event is a single change notification.
type Event struct {
	Topic  Topic       `json:"topic"`
	ItemID string      `json:"itemId,omitempty"`
	Value  interface{} `json:"value,omitempty"`
}

// AutoTagMeta is the cached result of an auto-tag derivation run for
// one item. Recomputation is skipped while Version matches the current
// deriver version.
type AutoTagMeta struct {
	Version   int       `json:"version"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ResumeEpsilon is the margin, in seconds, before the end of a clip
// within which a stored position is no longer trusted for resume.
const ResumeEpsilon = 1.0

// Store is the engagement-state port. Reads return defaults on any
// underlying failure; writes report errors but callers are expected to
// treat persistence failure as non-fatal.
type Store interface {
	// Watch time. Monotonically non-decreasing per item except for
	// ResetAllWatchTime, which is the only decreasing operation.
	WatchSeconds(ctx context.Context, id string) float64
	AllWatchSeconds(ctx context.Context) map[string]float64
	AddWatchTime(ctx context.Context, id string, delta float64) (float64, error)
	ResetAllWatchTime(ctx context.Context) error

	// Video resume position, clamped to [0, duration].
	Progress(ctx context.Context, id string) float64
	SetProgress(ctx context.Context, id string, seconds, duration float64) (float64, error)
	ClearProgress(ctx context.Context, id string) error

	// Global playback volume in [0, 1], shared across all videos.
	Volume(ctx context.Context) float64
	SetVolume(ctx context.Context, v float64) (float64, error)

	// Favorites set membership.
	IsFavorite(ctx context.Context, id string) bool
	Favorites(ctx context.Context) []string
	ToggleFavorite(ctx context.Context, id string) (bool, error)

	// Manual tags, normalized at the write boundary.
	Tags(ctx context.Context, id string) []string
	SetTags(ctx context.Context, id string, tags []string) ([]string, error)
	AllTags(ctx context.Context) []string

	// Cached auto-tag derivation results. Never merged into manual
	// tags in storage; the union happens at read time.
	AutoTagMeta(ctx context.Context, id string) (AutoTagMeta, bool)
	SetAutoTagMeta(ctx context.Context, id string, meta AutoTagMeta) error

	// Title overrides. Setting an empty title removes the override.
	Title(ctx context.Context, id string) string
	SetTitle(ctx context.Context, id string, title string) error

	// First-sight added dates; BackfillAdded never overwrites.
	AddedAt(ctx context.Context, id string) (time.Time, bool)
	BackfillAdded(ctx context.Context, id string, t time.Time) error

	// Subscribe registers a change listener for the given topics (all
	// topics if none given). The subscription must be cancelled when
	// the listener goes away.
	Subscribe(buffer int, topics ...Topic) *Subscription

	Close() error
}

// ResumePoint returns the stored resume offset for an item if it is
// usable: strictly positive and at least ResumeEpsilon short of the
// clip duration. A finished or never-started clip yields ok=false.
func ResumePoint(ctx context.Context, s Store, id string, duration float64) (float64, bool) {
	p := s.Progress(ctx, id)
	if p <= 0 {
		return 0, false
	}
	if duration > 0 && p >= duration-ResumeEpsilon {
		return 0, false
	}
	return p, true
}

// NormalizeTag canonicalizes a single tag: trimmed and lowercased.
// Returns "" for tags that are empty after trimming.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// NormalizeTags canonicalizes a tag list: trimmed, lowercased,
// deduplicated, empties dropped, sorted. The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		n := NormalizeTag(t)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// MergeTags returns the read-time union of manual and derived tags,
// normalized and sorted. Manual tags are never lost to a derivation
// pass; the merge is computed fresh on every read.
func MergeTags(manual, derived []string) []string {
	return NormalizeTags(append(append([]string{}, manual...), derived...))
}

func trimTitle(title string) string {
	return strings.TrimSpace(title)
}

// ClampProgress bounds a playback offset to [0, duration]. A zero or
// negative duration means the duration is unknown and only the lower
// bound applies.
func ClampProgress(seconds, duration float64) float64 {
	if math.IsNaN(seconds) || seconds < 0 {
		return 0
	}
	if duration > 0 && seconds > duration {
		return duration
	}
	return seconds
}

// ClampVolume bounds a volume value to [0, 1].
func ClampVolume(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
