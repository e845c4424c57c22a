package gallery

import (
	"context"
	"sync"

	"gallery-engine/internal/autotag"
	"gallery-engine/internal/catalog"
	"gallery-engine/internal/preview"
	"gallery-engine/internal/store"
)

// CardView is the assembled view model for one grid tile.
type CardView struct {
	ID          string       `json:"id"`
	Kind        catalog.Kind `json:"kind"`
	Title       string       `json:"title"`
	Tags        []string     `json:"tags"`
	Favorite    bool         `json:"favorite"`
	WatchBadge  string       `json:"watchBadge,omitempty"`
	Frame       string       `json:"frame,omitempty"`
	Placeholder bool         `json:"placeholder,omitempty"`
	DownloadURL string       `json:"downloadUrl,omitempty"`
}

// Grid owns the card render state for the visible catalog and builds
// view models from the store on every read, so no engagement value is
// cached across render cycles.
type Grid struct {
	mu       sync.Mutex
	store    store.Store
	urls     catalog.Resolver
	previews *preview.Resolver
	cfg      Config
	cards    map[string]*Card
}

// NewGrid creates an empty grid over the given store and resolvers.
func NewGrid(s store.Store, urls catalog.Resolver, cfg Config) *Grid {
	return &Grid{
		store:    s,
		urls:     urls,
		previews: preview.New(urls),
		cfg:      cfg.withDefaults(),
		cards:    make(map[string]*Card),
	}
}

// Sync reconciles card state with the current catalog: new items get
// cards, removed items drop theirs (cancelling any hover timers).
// Surviving cards keep their render-local state.
func (g *Grid) Sync(items []catalog.Item) {
	g.mu.Lock()
	defer g.mu.Unlock()

	keep := make(map[string]bool, len(items))
	for _, item := range items {
		keep[item.ID] = true
		if _, ok := g.cards[item.ID]; !ok {
			frames := g.previews.Resolve(item, g.cfg.PreviewFrames)
			g.cards[item.ID] = NewCard(item, frames, g.store, g.cfg)
		}
	}

	for id, card := range g.cards {
		if !keep[id] {
			card.HoverEnd()
			delete(g.cards, id)
		}
	}
}

// Card returns the card state for an item id.
func (g *Grid) Card(id string) (*Card, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	card, ok := g.cards[id]
	return card, ok
}

// View assembles the current view model for one item, reading every
// engagement value fresh from the store.
func (g *Grid) View(ctx context.Context, item catalog.Item) CardView {
	view := CardView{
		ID:       item.ID,
		Kind:     item.Kind,
		Title:    g.title(ctx, item),
		Favorite: g.store.IsFavorite(ctx, item.ID),
	}

	manual := g.store.Tags(ctx, item.ID)
	meta, _ := g.store.AutoTagMeta(ctx, item.ID)
	view.Tags = autotag.Merged(manual, meta)

	if seconds := g.store.WatchSeconds(ctx, item.ID); seconds > 0 {
		view.WatchBadge = FormatWatchTime(seconds)
	}

	if card, ok := g.Card(item.ID); ok {
		if frame, ok := card.CurrentFrame(); ok {
			view.Frame = frame
		} else if item.IsVideo() {
			view.Placeholder = true
		}
	}

	if item.IsImage() {
		view.DownloadURL = g.urls.URL(item.Src)
	}
	return view
}

// Views assembles view models for a list of items in order.
func (g *Grid) Views(ctx context.Context, items []catalog.Item) []CardView {
	out := make([]CardView, 0, len(items))
	for _, item := range items {
		out = append(out, g.View(ctx, item))
	}
	return out
}

// title resolves the display name: the user's override when present,
// otherwise the filename stem.
func (g *Grid) title(ctx context.Context, item catalog.Item) string {
	if t := g.store.Title(ctx, item.ID); t != "" {
		return t
	}
	return item.Stem()
}
