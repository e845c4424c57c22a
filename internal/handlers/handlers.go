// Package handlers exposes the engagement engine over an HTTP JSON
// API plus a websocket change-notification feed.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"gallery-engine/internal/autotag"
	"gallery-engine/internal/catalog"
	"gallery-engine/internal/featured"
	"gallery-engine/internal/gallery"
	"gallery-engine/internal/logging"
	"gallery-engine/internal/preview"
	"gallery-engine/internal/startup"
	"gallery-engine/internal/store"
	"gallery-engine/internal/viewer"
)

// Handlers bundles the engine components behind the HTTP surface.
type Handlers struct {
	store    store.Store
	source   catalog.Source
	urls     catalog.Resolver
	grid     *gallery.Grid
	previews *preview.Resolver
	viewer   *viewer.Manager
	featured *featured.Picker
	cfg      *startup.Config
	started  time.Time

	mu        sync.Mutex
	lastItems []catalog.Item
	lastOrder []string
}

// New wires the handler set over the given components.
func New(s store.Store, source catalog.Source, urls catalog.Resolver, cfg *startup.Config) *Handlers {
	gridCfg := gallery.Config{
		HoverDelay:    cfg.HoverDelay,
		HoverInterval: cfg.HoverInterval,
		PreviewFrames: cfg.PreviewFrames,
	}
	viewerCfg := viewer.Config{
		AutoplayDelay:     cfg.AutoplayDelay,
		UpNextCount:       cfg.UpNextCount,
		SeekStep:          cfg.SeekStep,
		VolumeStep:        cfg.VolumeStep,
		PersistInterval:   cfg.PersistInterval,
		ProgressThreshold: cfg.ProgressThreshold,
		SwipeMinDistance:  cfg.SwipeMinDistance,
	}

	return &Handlers{
		store:    s,
		source:   source,
		urls:     urls,
		grid:     gallery.NewGrid(s, urls, gridCfg),
		previews: preview.New(urls),
		viewer:   viewer.NewManager(s, viewerCfg),
		featured: featured.New(time.Now().UnixNano()),
		cfg:      cfg,
		started:  time.Now(),
	}
}

// Viewer exposes the viewer manager, for wiring and tests.
func (h *Handlers) Viewer() *viewer.Manager { return h.viewer }

// refreshView loads the catalog, backfills first-sight dates, applies
// the request's filter and sort, and propagates the visible order to
// the grid and viewer. The filtered items are returned in view order.
func (h *Handlers) refreshView(ctx context.Context, q viewQuery) ([]catalog.Item, error) {
	loaded, err := h.source.Items(ctx)
	if err != nil {
		return nil, err
	}

	// Sources may hand out a shared cached slice; backfill into a copy
	// so concurrent requests never write into collaborator-owned items.
	items := make([]catalog.Item, len(loaded))
	copy(items, loaded)

	now := time.Now()
	for i, it := range items {
		if it.AddedAt.IsZero() {
			if t, ok := h.store.AddedAt(ctx, it.ID); ok {
				items[i].AddedAt = t
				continue
			}
			if err := h.store.BackfillAdded(ctx, it.ID, now); err != nil {
				logging.Debug("added-date backfill failed for %s: %v", it.ID, err)
			}
			items[i].AddedAt = now
		}
	}

	visible := h.filterItems(ctx, items, q)
	order := catalog.IDs(visible)

	h.grid.Sync(items)
	h.viewer.UpdateView(items, order)

	h.mu.Lock()
	h.lastItems = items
	h.lastOrder = order
	h.mu.Unlock()

	return visible, nil
}

type viewQuery struct {
	kind      string
	tag       string
	favorites bool
	sortBy    string
	desc      bool
	search    string
}

func parseViewQuery(r *http.Request) viewQuery {
	q := r.URL.Query()
	return viewQuery{
		kind:      q.Get("kind"),
		tag:       store.NormalizeTag(q.Get("tag")),
		favorites: q.Get("favorites") == "1" || q.Get("favorites") == "true",
		sortBy:    q.Get("sort"),
		desc:      q.Get("order") != "asc",
		search:    strings.ToLower(strings.TrimSpace(q.Get("q"))),
	}
}

func (h *Handlers) filterItems(ctx context.Context, items []catalog.Item, q viewQuery) []catalog.Item {
	out := make([]catalog.Item, 0, len(items))
	for _, it := range items {
		if q.kind != "" && string(it.Kind) != q.kind {
			continue
		}
		if q.favorites && !h.store.IsFavorite(ctx, it.ID) {
			continue
		}
		if q.tag != "" && !h.itemHasTag(ctx, it, q.tag) {
			continue
		}
		if q.search != "" && !strings.Contains(strings.ToLower(it.Src), q.search) {
			continue
		}
		out = append(out, it)
	}

	switch q.sortBy {
	case "title":
		sort.SliceStable(out, func(i, j int) bool {
			a := h.displayTitle(ctx, out[i])
			b := h.displayTitle(ctx, out[j])
			if q.desc {
				return a > b
			}
			return a < b
		})
	case "watch":
		sort.SliceStable(out, func(i, j int) bool {
			a := h.store.WatchSeconds(ctx, out[i].ID)
			b := h.store.WatchSeconds(ctx, out[j].ID)
			if q.desc {
				return a > b
			}
			return a < b
		})
	default: // added date
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].AddedAt, out[j].AddedAt
			if !a.Equal(b) {
				if q.desc {
					return a.After(b)
				}
				return a.Before(b)
			}
			return out[i].ID < out[j].ID
		})
	}
	return out
}

func (h *Handlers) itemHasTag(ctx context.Context, it catalog.Item, tag string) bool {
	manual := h.store.Tags(ctx, it.ID)
	meta, _ := h.store.AutoTagMeta(ctx, it.ID)
	for _, t := range autotag.Merged(manual, meta) {
		if t == tag {
			return true
		}
	}
	return false
}

func (h *Handlers) displayTitle(ctx context.Context, it catalog.Item) string {
	if t := h.store.Title(ctx, it.ID); t != "" {
		return strings.ToLower(t)
	}
	return strings.ToLower(it.Stem())
}

// lastCatalog returns the most recently loaded catalog snapshot,
// loading one with no filter if none exists yet.
func (h *Handlers) lastCatalog(ctx context.Context) []catalog.Item {
	h.mu.Lock()
	items := h.lastItems
	h.mu.Unlock()

	if items != nil {
		return items
	}
	if _, err := h.refreshView(ctx, viewQuery{}); err != nil {
		logging.Debug("catalog load failed: %v", err)
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastItems
}

func (h *Handlers) itemByID(ctx context.Context, id string) (catalog.Item, bool) {
	for _, it := range h.lastCatalog(ctx) {
		if it.ID == id {
			return it, true
		}
	}
	return catalog.Item{}, false
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("response encode failed: %v", err)
	}
}

func writeStatusOK(w http.ResponseWriter) {
	writeJSON(w, map[string]string{"status": "ok"})
}
