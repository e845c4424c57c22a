package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"gallery-engine/internal/logging"
	"gallery-engine/internal/metrics"
	"gallery-engine/internal/store"
)

const (
	eventWriteTimeout = 10 * time.Second
	eventPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The engine serves one user; any originating view may listen.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Events upgrades to a websocket and streams store change
// notifications, so any open view of the same data can refresh when
// another view writes. Topics can be narrowed with ?topic=favorites
// (repeatable); the default is all five.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	topics := topicsFromQuery(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Debug("events: upgrade failed: %v", err)
		return
	}

	sub := h.store.Subscribe(64, topics...)
	metrics.EventClientsConnected.Inc()
	defer func() {
		sub.Cancel()
		metrics.EventClientsConnected.Dec()
		if err := conn.Close(); err != nil {
			logging.Debug("events: close failed: %v", err)
		}
	}()

	// Reader goroutine: we never expect client messages, but reading
	// is what detects the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(eventPingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout)); err != nil {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				logging.Debug("events: write failed: %v", err)
				return
			}
		case <-ping.C:
			if err := conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func topicsFromQuery(r *http.Request) []store.Topic {
	var topics []store.Topic
	for _, t := range r.URL.Query()["topic"] {
		topics = append(topics, store.Topic(t))
	}
	return topics
}
