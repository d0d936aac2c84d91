// Package realtime implements the per-wishlist broadcast channel: the
// in-process hub, the websocket endpoint that serves it and the
// reconnecting client that consumes it.
package realtime

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/wishly/internal/metrics"
	"github.com/iliyamo/wishly/internal/queue"
)

// Hub fans events out to the subscribers of each wishlist.  Broadcast
// never blocks: a subscriber whose queue is full misses the event and
// catches up on its next resync.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Subscription]struct{}
	buffer  int
	metrics *metrics.Metrics
	log     *logrus.Entry
}

// NewHub returns a hub whose subscriptions queue up to buffer events.
func NewHub(buffer int, m *metrics.Metrics, log *logrus.Entry) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{rooms: map[string]map[*Subscription]struct{}{}, buffer: buffer, metrics: m, log: log}
}

// Subscription is one viewer's queue of events for a wishlist.
type Subscription struct {
	WishlistID string
	ch         chan queue.Event
	hub        *Hub
	once       sync.Once
}

// Events is closed when the subscription is closed.
func (s *Subscription) Events() <-chan queue.Event { return s.ch }

// Close removes the subscription from its hub.  It is safe to call more
// than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		if room, ok := h.rooms[s.WishlistID]; ok {
			delete(room, s)
			if len(room) == 0 {
				delete(h.rooms, s.WishlistID)
			}
		}
		close(s.ch)
		h.mu.Unlock()
		h.metrics.SubscriberDelta(-1)
	})
}

// Subscribe opens a subscription to wishlistID.
func (h *Hub) Subscribe(wishlistID string) *Subscription {
	s := &Subscription{WishlistID: wishlistID, ch: make(chan queue.Event, h.buffer), hub: h}
	h.mu.Lock()
	room, ok := h.rooms[wishlistID]
	if !ok {
		room = map[*Subscription]struct{}{}
		h.rooms[wishlistID] = room
	}
	room[s] = struct{}{}
	h.mu.Unlock()
	h.metrics.SubscriberDelta(1)
	return s
}

// Broadcast queues ev for every subscriber of ev.WishlistID and reports
// how many received it and how many were skipped.
//
// A wishlist_deleted event also closes the room once it is queued.
func (h *Hub) Broadcast(ev queue.Event) (delivered, dropped int) {
	h.mu.RLock()
	for s := range h.rooms[ev.WishlistID] {
		select {
		case s.ch <- ev:
			delivered++
		default:
			dropped++
			h.metrics.Dropped()
		}
	}
	h.mu.RUnlock()
	if dropped > 0 && h.log != nil {
		h.log.WithFields(logrus.Fields{"wishlist_id": ev.WishlistID, "type": ev.Type, "dropped": dropped}).
			Warn("realtime: subscriber queue full, event dropped")
	}
	if ev.Type == queue.WishlistDeleted {
		h.CloseRoom(ev.WishlistID)
	}
	return delivered, dropped
}

// Count returns the number of open subscriptions for wishlistID.
func (h *Hub) Count(wishlistID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[wishlistID])
}

// CloseRoom ends every subscription of wishlistID.  Events already queued
// are still written before the socket closes.
func (h *Hub) CloseRoom(wishlistID string) {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.rooms[wishlistID]))
	for s := range h.rooms[wishlistID] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()
	for _, s := range subs {
		s.Close()
	}
}
