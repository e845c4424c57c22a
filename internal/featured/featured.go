// Package featured selects one random image and one random video to
// showcase. Picks are stable for a browsing session: a re-draw only
// happens when the catalog size changes, not on every read.
package featured

import (
	"math/rand"
	"sync"

	"gallery-engine/internal/catalog"
)

// Picks holds the current featured selections. A nil entry means the
// catalog has no item of that kind.
type Picks struct {
	Image *catalog.Item `json:"image,omitempty"`
	Video *catalog.Item `json:"video,omitempty"`
}

// Picker draws the featured items. Safe for concurrent use.
type Picker struct {
	mu       sync.Mutex
	rng      *rand.Rand
	lastSize int
	picks    Picks
	drawn    bool
}

// New creates a Picker seeded from seed. Pass a fixed seed in tests
// for deterministic draws.
func New(seed int64) *Picker {
	return &Picker{rng: rand.New(rand.NewSource(seed))}
}

// Pick returns the featured image and video for the given catalog,
// drawing fresh only when the catalog size changed since the last
// call. The two draws are independent and uniform.
func (p *Picker) Pick(items []catalog.Item) Picks {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.drawn && len(items) == p.lastSize {
		return p.picks
	}

	var images, videos []catalog.Item
	for _, it := range items {
		switch {
		case it.IsImage():
			images = append(images, it)
		case it.IsVideo():
			videos = append(videos, it)
		}
	}

	p.picks = Picks{}
	if len(images) > 0 {
		img := images[p.rng.Intn(len(images))]
		p.picks.Image = &img
	}
	if len(videos) > 0 {
		vid := videos[p.rng.Intn(len(videos))]
		p.picks.Video = &vid
	}

	p.lastSize = len(items)
	p.drawn = true
	return p.picks
}
