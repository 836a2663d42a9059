// Package broadcast fans processing events out to the live connections of
// the record owner. Each owner has its own group with its own lock; the
// registry lock is only held to look groups up, create or retire them.
package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"videovault/internal/metrics"
	"videovault/internal/pkg/logger"
)

var ErrSubscriberClosed = errors.New("subscriber closed")

// Subscriber is one live connection. Events are queued on a bounded channel
// and dropped for this subscriber alone when the queue is full.
type Subscriber struct {
	id   string
	send chan Event

	mu     sync.Mutex
	groups map[int64]struct{}
	closed bool

	dropped atomic.Int64
}

func NewSubscriber(buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = 1
	}
	return &Subscriber{
		id:     uuid.NewString(),
		send:   make(chan Event, buffer),
		groups: make(map[int64]struct{}),
	}
}

func (s *Subscriber) ID() string { return s.id }

// Events is closed once the subscriber is unsubscribed.
func (s *Subscriber) Events() <-chan Event { return s.send }

// Dropped returns how many events were discarded because the queue was full.
func (s *Subscriber) Dropped() int64 { return s.dropped.Load() }

// Groups returns the owner ids the subscriber currently listens to.
func (s *Subscriber) Groups() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.groups))
	for id := range s.groups {
		out = append(out, id)
	}
	return out
}

type group struct {
	mu      sync.Mutex
	members map[*Subscriber]struct{}
	dead    bool
}

// Hub routes events by owner id. Lock order: Subscriber.mu, Hub.mu, group.mu.
type Hub struct {
	mu     sync.RWMutex
	groups map[int64]*group
	subs   map[*Subscriber]struct{}
	closed bool
	log    *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		groups: make(map[int64]*group),
		subs:   make(map[*Subscriber]struct{}),
		log:    logger.Component(log, "broadcast"),
	}
}

// Subscribe adds sub to the owner's group. Joining twice is a no-op.
func (h *Hub) Subscribe(sub *Subscriber, ownerID int64) error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return ErrSubscriberClosed
	}
	if _, ok := sub.groups[ownerID]; ok {
		return nil
	}

	for {
		g, err := h.groupFor(sub, ownerID)
		if err != nil {
			return err
		}
		g.mu.Lock()
		if g.dead {
			g.mu.Unlock()
			continue
		}
		g.members[sub] = struct{}{}
		g.mu.Unlock()
		break
	}
	sub.groups[ownerID] = struct{}{}
	return nil
}

// Leave removes sub from a single owner group.
func (h *Hub) Leave(sub *Subscriber, ownerID int64) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if _, ok := sub.groups[ownerID]; !ok {
		return
	}
	delete(sub.groups, ownerID)
	h.release(sub, ownerID)
}

// Unsubscribe removes sub from every group and closes its event channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	for ownerID := range sub.groups {
		h.release(sub, ownerID)
	}
	sub.groups = map[int64]struct{}{}
	sub.closed = true

	h.mu.Lock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		metrics.BroadcastSubscribers.Dec()
	}
	h.mu.Unlock()

	// sub is in no group any more, so no publisher can still be sending.
	close(sub.send)
}

// Publish delivers ev to every subscriber of ownerID without blocking.
func (h *Hub) Publish(ownerID int64, ev Event) {
	h.mu.RLock()
	g := h.groups[ownerID]
	h.mu.RUnlock()
	if g == nil {
		metrics.BroadcastEventsTotal.WithLabelValues("unrouted").Inc()
		return
	}

	var dropped []string
	g.mu.Lock()
	for sub := range g.members {
		select {
		case sub.send <- ev:
			metrics.BroadcastEventsTotal.WithLabelValues("delivered").Inc()
		default:
			sub.dropped.Add(1)
			dropped = append(dropped, sub.id)
		}
	}
	g.mu.Unlock()

	if len(dropped) > 0 {
		metrics.BroadcastEventsTotal.WithLabelValues("dropped").Add(float64(len(dropped)))
		h.log.Warn("subscriber queue full, event dropped",
			zap.Strings("subscriber_ids", dropped),
			zap.Int64("owner_id", ownerID),
			zap.String("record_id", ev.RecordID),
			zap.String("event", string(ev.Type)),
		)
	}
}

// SubscriberCount returns the number of subscribers in the owner's group.
func (h *Hub) SubscriberCount(ownerID int64) int {
	h.mu.RLock()
	g := h.groups[ownerID]
	h.mu.RUnlock()
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}

// Close unsubscribes everyone and rejects further subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*Subscriber, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		h.Unsubscribe(s)
	}
}

func (h *Hub) groupFor(sub *Subscriber, ownerID int64) (*group, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrSubscriberClosed
	}
	if _, ok := h.subs[sub]; !ok {
		h.subs[sub] = struct{}{}
		metrics.BroadcastSubscribers.Inc()
	}
	g, ok := h.groups[ownerID]
	if !ok {
		g = &group{members: make(map[*Subscriber]struct{})}
		h.groups[ownerID] = g
	}
	return g, nil
}

func (h *Hub) release(sub *Subscriber, ownerID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.groups[ownerID]
	if !ok {
		return
	}
	g.mu.Lock()
	delete(g.members, sub)
	if len(g.members) == 0 {
		g.dead = true
		delete(h.groups, ownerID)
	}
	g.mu.Unlock()
}
