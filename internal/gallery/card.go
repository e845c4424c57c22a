// Package gallery holds the per-card render state of the grid: hover
// preview rotation, placeholder fallback, the watch-time badge, the
// favorite toggle and the tag editor. Engagement values themselves
// always come from the store; a card only owns state that is local to
// rendering one item in one view.
package gallery

import (
	"context"
	"sync"
	"time"

	"gallery-engine/internal/catalog"
	"gallery-engine/internal/logging"
	"gallery-engine/internal/store"
)

// Config holds the grid's tunable parameters.
type Config struct {
	// HoverDelay is how long the pointer must rest on a video card
	// before preview rotation starts.
	HoverDelay time.Duration
	// HoverInterval is the frame rotation period once started.
	HoverInterval time.Duration
	// PreviewFrames is the candidate frame count for derived previews.
	PreviewFrames int
}

// DefaultConfig returns the stock grid parameters.
func DefaultConfig() Config {
	return Config{
		HoverDelay:    400 * time.Millisecond,
		HoverInterval: 800 * time.Millisecond,
		PreviewFrames: 6,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HoverDelay <= 0 {
		c.HoverDelay = d.HoverDelay
	}
	if c.HoverInterval <= 0 {
		c.HoverInterval = d.HoverInterval
	}
	if c.PreviewFrames <= 0 {
		c.PreviewFrames = d.PreviewFrames
	}
	return c
}

type stopTimer interface {
	Stop() bool
}

type timerFunc func(d time.Duration, fn func()) stopTimer

func afterFunc(d time.Duration, fn func()) stopTimer {
	return time.AfterFunc(d, fn)
}

// Card is the render state of one grid tile.
type Card struct {
	mu     sync.Mutex
	item   catalog.Item
	store  store.Store
	frames []string
	cfg    Config
	timer  timerFunc

	hoverSeq    int
	delayTimer  stopTimer
	rotateTimer stopTimer
	rotating    bool
	frameIdx    int
	placeholder bool
}

// NewCard creates the render state for one item. frames is the
// resolved preview frame list (empty for images or when no preview
// exists).
func NewCard(item catalog.Item, frames []string, s store.Store, cfg Config) *Card {
	return &Card{
		item:   item,
		store:  s,
		frames: frames,
		cfg:    cfg.withDefaults(),
		timer:  afterFunc,
	}
}

// Item returns the card's catalog item.
func (c *Card) Item() catalog.Item {
	return c.item
}

// HoverStart arms the rotation delay. Rotation through the preview
// frames begins only if the pointer is still on the card when the
// delay elapses.
func (c *Card) HoverStart() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.item.IsVideo() || c.placeholder || len(c.frames) < 2 {
		return
	}

	c.hoverSeq++
	seq := c.hoverSeq
	if c.delayTimer != nil {
		c.delayTimer.Stop()
	}
	c.delayTimer = c.timer(c.cfg.HoverDelay, func() {
		c.startRotation(seq)
	})
}

// HoverEnd stops any pending or running rotation immediately and
// resets to the first frame.
func (c *Card) HoverEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hoverSeq++
	c.stopTimersLocked()
	c.rotating = false
	c.frameIdx = 0
}

func (c *Card) startRotation(seq int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.hoverSeq || c.placeholder {
		return
	}
	c.rotating = true
	c.scheduleRotateLocked(seq)
}

func (c *Card) scheduleRotateLocked(seq int) {
	c.rotateTimer = c.timer(c.cfg.HoverInterval, func() {
		c.rotate(seq)
	})
}

func (c *Card) rotate(seq int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.hoverSeq || !c.rotating || len(c.frames) == 0 {
		return
	}
	c.frameIdx = (c.frameIdx + 1) % len(c.frames)
	c.scheduleRotateLocked(seq)
}

func (c *Card) stopTimersLocked() {
	if c.delayTimer != nil {
		c.delayTimer.Stop()
		c.delayTimer = nil
	}
	if c.rotateTimer != nil {
		c.rotateTimer.Stop()
		c.rotateTimer = nil
	}
}

// CurrentFrame returns the preview frame URL to show, or ok=false
// when the card has no usable preview and the static placeholder
// should render instead.
func (c *Card) CurrentFrame() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.placeholder || len(c.frames) == 0 {
		return "", false
	}
	return c.frames[c.frameIdx], true
}

// Rotating reports whether frame rotation is currently running.
func (c *Card) Rotating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rotating
}

// FrameLoadFailed marks the card's preview as permanently broken for
// this card instance; it falls back to the static placeholder. The
// failure is render state only, never persisted.
func (c *Card) FrameLoadFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.placeholder = true
	c.hoverSeq++
	c.stopTimersLocked()
	c.rotating = false
	c.frameIdx = 0
}

// ToggleFavorite flips the item's favorite state through the store
// and returns the new membership. The caller renders the returned
// state immediately; a failed write leaves the old state in place.
func (c *Card) ToggleFavorite(ctx context.Context) bool {
	now, err := c.store.ToggleFavorite(ctx, c.item.ID)
	if err != nil {
		logging.Debug("gallery: favorite toggle failed for %s: %v", c.item.ID, err)
		return c.store.IsFavorite(ctx, c.item.ID)
	}
	return now
}

// ToggleTag adds or removes one tag from the item's manual tags,
// writing the normalized result back.
func (c *Card) ToggleTag(ctx context.Context, tag string) []string {
	tag = store.NormalizeTag(tag)
	if tag == "" {
		return c.store.Tags(ctx, c.item.ID)
	}

	current := c.store.Tags(ctx, c.item.ID)
	next := make([]string, 0, len(current)+1)
	found := false
	for _, t := range current {
		if t == tag {
			found = true
			continue
		}
		next = append(next, t)
	}
	if !found {
		next = append(next, tag)
	}

	stored, err := c.store.SetTags(ctx, c.item.ID, next)
	if err != nil {
		logging.Debug("gallery: tag update failed for %s: %v", c.item.ID, err)
		return current
	}
	return stored
}

// AddTag adds a free-text tag to the item's manual tags.
func (c *Card) AddTag(ctx context.Context, tag string) []string {
	current := c.store.Tags(ctx, c.item.ID)
	stored, err := c.store.SetTags(ctx, c.item.ID, append(current, tag))
	if err != nil {
		logging.Debug("gallery: tag add failed for %s: %v", c.item.ID, err)
		return current
	}
	return stored
}
