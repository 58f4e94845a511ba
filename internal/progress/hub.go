// Package progress fans render progress events out to subscribers such as
// WebSocket clients.
package progress

import (
	"sync"
	"time"
)

const subscriberBuffer = 32

// Event is one progress update of a render.
type Event struct {
	RenderID  string    `json:"render_id"`
	Percent   int       `json:"percent"`
	Stage     string    `json:"stage"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Terminal reports whether no further events follow for the render.
func (e Event) Terminal() bool {
	return e.Status == "completed" || e.Status == "failed"
}

type subscriber struct {
	renderID string
	ch       chan Event
}

// Hub delivers events to the subscribers of a render. Publishing never
// blocks: a subscriber whose buffer is full is dropped and its channel is
// closed.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers interest in renderID. An empty renderID receives
// every event. The returned cancel func is safe to call more than once.
func (h *Hub) Subscribe(renderID string) (<-chan Event, func()) {
	s := &subscriber{renderID: renderID, ch: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	return s.ch, func() { h.remove(s) }
}

// Publish sends ev to every matching subscriber.
func (h *Hub) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for s := range h.subs {
		if s.renderID != "" && s.renderID != ev.RenderID {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			delete(h.subs, s)
			close(s.ch)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every subscriber channel. Later publishes are discarded.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.ch)
	}
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}
