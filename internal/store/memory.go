package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-memory Store implementation. It backs tests and can
// serve as a volatile store when no database directory is configured.
type Memory struct {
	mu       sync.RWMutex
	watch    map[string]float64
	added    map[string]time.Time
	favs     map[string]bool
	tags     map[string][]string
	autotags map[string]AutoTagMeta
	titles   map[string]string
	progress map[string]float64
	volume   float64
	hasVol   bool

	bus *bus
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		watch:    make(map[string]float64),
		added:    make(map[string]time.Time),
		favs:     make(map[string]bool),
		tags:     make(map[string][]string),
		autotags: make(map[string]AutoTagMeta),
		titles:   make(map[string]string),
		progress: make(map[string]float64),
		bus:      newBus(),
	}
}

// WatchSeconds returns the accumulated watch time for an item.
func (m *Memory) WatchSeconds(_ context.Context, id string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.watch[id]
}

// AllWatchSeconds returns a copy of the watch-time map.
func (m *Memory) AllWatchSeconds(_ context.Context) map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float64, len(m.watch))
	for k, v := range m.watch {
		out[k] = v
	}
	return out
}

// AddWatchTime accumulates a positive watch-time delta. Non-positive
// deltas are ignored, keeping the counter monotone.
func (m *Memory) AddWatchTime(_ context.Context, id string, delta float64) (float64, error) {
	if delta <= 0 {
		m.mu.RLock()
		total := m.watch[id]
		m.mu.RUnlock()
		return total, nil
	}

	m.mu.Lock()
	m.watch[id] += delta
	total := m.watch[id]
	m.mu.Unlock()

	m.bus.publish(Event{Topic: TopicWatch, ItemID: id, Value: total})
	return total, nil
}

// ResetAllWatchTime zeroes every watch-time counter. This is the only
// operation that decreases watch time.
func (m *Memory) ResetAllWatchTime(_ context.Context) error {
	m.mu.Lock()
	m.watch = make(map[string]float64)
	m.mu.Unlock()

	m.bus.publish(Event{Topic: TopicWatch})
	return nil
}

// Progress returns the stored resume position for an item.
func (m *Memory) Progress(_ context.Context, id string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.progress[id]
}

// SetProgress stores a resume position, clamped to [0, duration].
func (m *Memory) SetProgress(_ context.Context, id string, seconds, duration float64) (float64, error) {
	clamped := ClampProgress(seconds, duration)

	m.mu.Lock()
	m.progress[id] = clamped
	m.mu.Unlock()

	m.bus.publish(Event{Topic: TopicProgress, ItemID: id, Value: clamped})
	return clamped, nil
}

// ClearProgress resets an item's resume position to zero.
func (m *Memory) ClearProgress(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.progress, id)
	m.mu.Unlock()

	m.bus.publish(Event{Topic: TopicProgress, ItemID: id, Value: 0.0})
	return nil
}

// Volume returns the global playback volume, defaulting to 1.
func (m *Memory) Volume(_ context.Context) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasVol {
		return 1
	}
	return m.volume
}

// SetVolume stores the global playback volume, clamped to [0, 1].
func (m *Memory) SetVolume(_ context.Context, v float64) (float64, error) {
	clamped := ClampVolume(v)
	m.mu.Lock()
	m.volume = clamped
	m.hasVol = true
	m.mu.Unlock()
	return clamped, nil
}

// IsFavorite reports whether an item is in the favorites set.
func (m *Memory) IsFavorite(_ context.Context, id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.favs[id]
}

// Favorites returns the ids of all favorited items.
func (m *Memory) Favorites(_ context.Context) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.favs))
	for id := range m.favs {
		out = append(out, id)
	}
	return out
}

// ToggleFavorite flips an item's favorite membership and returns the
// new state.
func (m *Memory) ToggleFavorite(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	var now bool
	if m.favs[id] {
		delete(m.favs, id)
	} else {
		m.favs[id] = true
		now = true
	}
	m.mu.Unlock()

	m.bus.publish(Event{Topic: TopicFavorites, ItemID: id, Value: now})
	return now, nil
}

// Tags returns an item's manual tags.
func (m *Memory) Tags(_ context.Context, id string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string{}, m.tags[id]...)
}

// SetTags replaces an item's manual tags with the normalized form of
// the given list and returns what was stored.
func (m *Memory) SetTags(_ context.Context, id string, tags []string) ([]string, error) {
	normalized := NormalizeTags(tags)

	m.mu.Lock()
	if len(normalized) == 0 {
		delete(m.tags, id)
	} else {
		m.tags[id] = normalized
	}
	m.mu.Unlock()

	m.bus.publish(Event{Topic: TopicTags, ItemID: id, Value: normalized})
	return normalized, nil
}

// AllTags returns the sorted union of every stored manual and derived
// tag across the catalog.
func (m *Memory) AllTags(_ context.Context) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []string
	for _, tags := range m.tags {
		all = append(all, tags...)
	}
	for _, meta := range m.autotags {
		all = append(all, meta.Tags...)
	}
	return NormalizeTags(all)
}

// AutoTagMeta returns the cached derivation result for an item.
func (m *Memory) AutoTagMeta(_ context.Context, id string) (AutoTagMeta, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta, ok := m.autotags[id]
	return meta, ok
}

// SetAutoTagMeta caches a derivation result for an item. Manual tags
// are untouched.
func (m *Memory) SetAutoTagMeta(_ context.Context, id string, meta AutoTagMeta) error {
	m.mu.Lock()
	m.autotags[id] = meta
	m.mu.Unlock()

	m.bus.publish(Event{Topic: TopicTags, ItemID: id, Value: meta.Tags})
	return nil
}

// Title returns the title override for an item, or "".
func (m *Memory) Title(_ context.Context, id string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.titles[id]
}

// SetTitle stores or, when title is empty, removes a title override.
func (m *Memory) SetTitle(_ context.Context, id string, title string) error {
	title = trimTitle(title)

	m.mu.Lock()
	if title == "" {
		delete(m.titles, id)
	} else {
		m.titles[id] = title
	}
	m.mu.Unlock()

	m.bus.publish(Event{Topic: TopicTitles, ItemID: id, Value: title})
	return nil
}

// AddedAt returns the recorded first-sight date for an item.
func (m *Memory) AddedAt(_ context.Context, id string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.added[id]
	return t, ok
}

// BackfillAdded records a first-sight date if none exists yet.
func (m *Memory) BackfillAdded(_ context.Context, id string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.added[id]; !ok {
		m.added[id] = t
	}
	return nil
}

// Subscribe registers a change listener.
func (m *Memory) Subscribe(buffer int, topics ...Topic) *Subscription {
	return m.bus.subscribe(buffer, topics...)
}

// Close cancels all subscriptions.
func (m *Memory) Close() error {
	m.bus.closeAll()
	return nil
}
