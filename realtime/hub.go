// Package realtime fans auction events out to connected participants over
// WebSocket and server-sent events, and exposes the HTTP command surface.
package realtime

import (
	"log/slog"
	"sync"

	"github.com/flashbots/auctioneer/auction"
	"github.com/flashbots/auctioneer/metrics"
	"github.com/google/uuid"
)

// DefaultSubscriberBuffer is the per-subscriber queue length.
const DefaultSubscriberBuffer = 64

// Why a subscriber was disconnected by the hub.
const (
	CloseEvicted  = "subscriber too slow"
	CloseShutdown = "server shutting down"
)

// Subscriber is one connection's view of the broadcast stream.
type Subscriber struct {
	ID        uuid.UUID
	Transport string

	events    chan auction.Event
	done      chan struct{}
	closeOnce sync.Once
	reason    string
}

// Events delivers broadcasts in publish order.
func (s *Subscriber) Events() <-chan auction.Event {
	return s.events
}

// Done is closed when the subscriber was evicted or unsubscribed.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Reason is CloseEvicted or CloseShutdown when the hub disconnected the
// subscriber. It is valid once Done is closed.
func (s *Subscriber) Reason() string {
	return s.reason
}

func (s *Subscriber) close(reason string) {
	s.closeOnce.Do(func() {
		s.reason = reason
		close(s.done)
	})
}

// Hub implements auction.Publisher. Snapshots are dropped for a subscriber
// whose queue is full, since the next tick supersedes them. Any other event
// that cannot be queued evicts the subscriber, which then reconnects and
// re-requests the state.
type Hub struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]*Subscriber
	closed bool
	buffer int
	log    *slog.Logger
}

// NewHub creates a hub. A non-positive buffer uses DefaultSubscriberBuffer.
func NewHub(log *slog.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	h := &Hub{
		subs:   make(map[uuid.UUID]*Subscriber),
		buffer: buffer,
		log:    log,
	}
	metrics.RegisterSubscriberGauge(h.Count)
	return h
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe(transport string) *Subscriber {
	s := &Subscriber{
		ID:        uuid.New(),
		Transport: transport,
		events:    make(chan auction.Event, h.buffer),
		done:      make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.close(CloseShutdown)
		return s
	}
	h.subs[s.ID] = s
	h.mu.Unlock()

	h.log.Debug("Subscriber connected", "id", s.ID, "transport", transport)
	return s
}

// Unsubscribe removes s. It is safe to call after s was evicted.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	delete(h.subs, s.ID)
	h.mu.Unlock()

	s.close("")
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, s := range h.subs {
		delete(h.subs, id)
		s.close(CloseShutdown)
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}

// Publish queues ev for every subscriber without blocking.
func (h *Hub) Publish(ev auction.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, s := range h.subs {
		select {
		case s.events <- ev:
			continue
		default:
		}

		if !ev.Critical() {
			metrics.IncDeliveryDropped(string(ev.Type))
			continue
		}

		delete(h.subs, id)
		s.close(CloseEvicted)
		metrics.IncSubscriberEvicted(s.Transport)
		h.log.Warn("Evicted slow subscriber", "id", id, "transport", s.Transport, "event", ev.Type)
	}
}
