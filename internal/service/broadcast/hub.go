// Package broadcast fans replies out to every renderer watching a session.
package broadcast

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/aituber/backend/internal/model/live"
)

// DefaultBuffer is the per-subscriber queue length used when NewHub gets a non-positive size.
const DefaultBuffer = 16

// Hub keeps subscribers per session. Publish never blocks; a subscriber with a full queue
// misses the reply.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	closed bool
}

// NewHub creates a Hub with the given per-subscriber buffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{subs: make(map[string]map[*Subscription]struct{}), buffer: buffer}
}

// Subscription receives replies for one session until Close.
type Subscription struct {
	hub       *Hub
	sessionID string
	ch        chan live.ReplyOutput
	once      sync.Once
}

// Subscribe registers a new subscriber for sessionID. On a closed hub the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe(sessionID string) *Subscription {
	sub := &Subscription{hub: h, sessionID: sessionID, ch: make(chan live.ReplyOutput, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// C returns the reply channel. It is closed when the subscription or the hub closes.
func (s *Subscription) C() <-chan live.ReplyOutput {
	return s.ch
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.remove(s)
}

// remove requires h.mu held for writing.
func (h *Hub) remove(s *Subscription) {
	if set, ok := h.subs[s.sessionID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.sessionID)
		}
	}
	s.once.Do(func() { close(s.ch) })
}

// Publish delivers out to the subscribers of out.SessionID and returns how many received it.
func (h *Hub) Publish(out live.ReplyOutput) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.subs[out.SessionID] {
		select {
		case sub.ch <- out:
			delivered++
		default:
			log.Warn().Str("component", "broadcast").Str("session", out.SessionID).Msg("subscriber queue full, reply dropped")
		}
	}
	return delivered
}

// Subscribers returns the number of subscribers for sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// Close closes every subscription. Later Subscribe calls get closed subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, set := range h.subs {
		for sub := range set {
			h.remove(sub)
		}
	}
}
