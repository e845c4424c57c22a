// Package sequence freezes the visible, filtered/sorted item order
// into a stable id list the instant the viewer opens, so background
// filter or sort changes never reorder an open session. Exactly one
// frozen sequence exists per open session; it is discarded on close.
package sequence

import "sync"

// Controller owns the frozen navigation sequence for the viewer.
// The zero value is closed and ready to use.
type Controller struct {
	mu      sync.Mutex
	ids     []string
	current int
	pending string // requested id waiting for the order to contain it
}

// New creates a closed Controller.
func New() *Controller {
	return &Controller{}
}

// Open requests the viewer be opened at requestedID given the current
// filtered/sorted order. If no sequence is frozen yet and the order
// contains the id, the order is frozen and the open succeeds. If the
// id is absent (a filter or mode change is still pending), the open is
// deferred: a later Refresh whose order contains the id completes it.
// Returns the index within the frozen sequence and whether the open
// completed.
func (c *Controller) Open(requestedID string, order []string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = requestedID
	return c.resolveLocked(order)
}

// Refresh informs the controller that the filtered list was
// recomputed. It only matters for a deferred open: if the pending id
// is now present the open completes, freezing the order unless a
// sequence is already frozen. A frozen sequence is never replaced.
func (c *Controller) Refresh(order []string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == "" {
		return c.current, false
	}
	return c.resolveLocked(order)
}

// resolveLocked tries to complete a pending open against order.
func (c *Controller) resolveLocked(order []string) (int, bool) {
	if c.pending == "" {
		return 0, false
	}

	if c.ids != nil {
		// Session already open: never re-freeze, only jump.
		if idx := indexOf(c.ids, c.pending); idx >= 0 {
			c.current = idx
			c.pending = ""
			return idx, true
		}
		return 0, false
	}

	idx := indexOf(order, c.pending)
	if idx < 0 {
		return 0, false
	}

	c.ids = append([]string{}, order...)
	c.current = idx
	c.pending = ""
	return idx, true
}

// Close discards the frozen sequence and any deferred open.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = nil
	c.current = 0
	c.pending = ""
}

// IsOpen reports whether a sequence is frozen.
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ids != nil
}

// Len returns the length of the frozen sequence, 0 when closed.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids)
}

// IDs returns a copy of the frozen sequence, nil when closed.
func (c *Controller) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ids == nil {
		return nil
	}
	return append([]string{}, c.ids...)
}

// Current returns the id at the current position and whether the
// controller is open.
func (c *Controller) Current() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ids == nil {
		return "", false
	}
	return c.ids[c.current], true
}

// CurrentIndex returns the current position within the frozen
// sequence, -1 when closed.
func (c *Controller) CurrentIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ids == nil {
		return -1
	}
	return c.current
}

// Next advances to the next id, wrapping at the end.
func (c *Controller) Next() (string, bool) {
	return c.step(1)
}

// Prev retreats to the previous id, wrapping at the start.
func (c *Controller) Prev() (string, bool) {
	return c.step(-1)
}

func (c *Controller) step(delta int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ids) == 0 {
		return "", false
	}
	n := len(c.ids)
	c.current = (c.current + delta + n) % n
	return c.ids[c.current], true
}

// Select jumps directly to an id within the frozen sequence.
func (c *Controller) Select(id string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := indexOf(c.ids, id)
	if idx < 0 {
		return 0, false
	}
	c.current = idx
	return idx, true
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
