package service

import (
	"log/slog"
	"sync"

	"gitlab.com/dirk.krummacker/contacts/internal/metrics"
)

// subscriberBuffer is the number of undelivered events kept per subscriber. Events beyond it are
// dropped for that subscriber.
const subscriberBuffer = 16

// EventKind tells what changed in the store.
type EventKind int

const (
	Created EventKind = iota
	Updated
	Deleted
	// Reload asks subscribers to fetch all contacts again, for example after bulk seeding.
	Reload
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	case Reload:
		return "reload"
	default:
		return "unknown"
	}
}

// Event notifies subscribers that contacts changed.
type Event struct {
	Kind EventKind `json:"kind"`
	Ids  []int64   `json:"ids,omitempty"`
}

// Subscribe returns a channel of change notifications and a function that ends the subscription.
// The channel is closed when the subscription ends or the gateway is closed.
func (g *Gateway) Subscribe() (<-chan Event, func()) {
	return g.events.subscribe()
}

// Publish sends an event to all subscribers.
func (g *Gateway) Publish(e Event) {
	g.events.publish(e)
}

type broadcaster struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu          sync.Mutex
	closed      bool
	next        int
	subscribers map[int]chan Event
}

func newBroadcaster(logger *slog.Logger, m *metrics.Metrics) *broadcaster {
	return &broadcaster{logger: logger, metrics: m, subscribers: make(map[int]chan Event)}
}

func (b *broadcaster) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subscribers[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(sub)
			}
		})
	}
}

// publish never blocks: a subscriber that does not keep up misses the event.
func (b *broadcaster) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		select {
		case ch <- e:
			b.metrics.ObserveNotification(e.Kind.String(), "delivered")
		default:
			b.metrics.ObserveNotification(e.Kind.String(), "dropped")
			b.logger.Warn("dropped contacts notification", "kind", e.Kind.String(), "subscriber", id)
		}
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}
