package store

import (
	"sync"

	"gallery-engine/internal/logging"
	"gallery-engine/internal/metrics"
)

// Subscription is a registered change listener. Events arrive on C;
// Cancel must be called when the listener goes away so the bus can
// release it.
type Subscription struct {
	C <-chan Event

	bus    *bus
	ch     chan Event
	topics map[Topic]bool
	once   sync.Once
}

// Cancel removes the subscription from the bus and closes C.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.bus.remove(s)
		close(s.ch)
	})
}

func (s *Subscription) wants(t Topic) bool {
	return len(s.topics) == 0 || s.topics[t]
}

// bus is the in-process publish/subscribe fan-out behind every Store
// implementation. Delivery is non-blocking: a subscriber that cannot
// keep up loses events rather than stalling writers, which is safe
// because subscribers re-read the store on notification.
type bus struct {
	mu   sync.Mutex
	subs map[*Subscription]bool
}

func newBus() *bus {
	return &bus{subs: make(map[*Subscription]bool)}
}

func (b *bus) subscribe(buffer int, topics ...Topic) *Subscription {
	if buffer < 1 {
		buffer = 16
	}
	sub := &Subscription{
		bus: b,
		ch:  make(chan Event, buffer),
	}
	sub.C = sub.ch
	if len(topics) > 0 {
		sub.topics = make(map[Topic]bool, len(topics))
		for _, t := range topics {
			sub.topics[t] = true
		}
	}

	b.mu.Lock()
	b.subs[sub] = true
	b.mu.Unlock()
	return sub
}

func (b *bus) remove(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

func (b *bus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	metrics.StoreEventsPublished.WithLabelValues(string(ev.Topic)).Inc()
	for sub := range b.subs {
		if !sub.wants(ev.Topic) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			logging.Debug("store: dropping %s event for slow subscriber", ev.Topic)
			metrics.StoreEventsDropped.WithLabelValues(string(ev.Topic)).Inc()
		}
	}
}

func (b *bus) closeAll() {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
}
