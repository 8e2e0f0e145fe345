// Package eventbus provides a typed, best-effort publish/subscribe layer for
// reconciliation lifecycle events. It is consumed internally (structured
// logging, metrics) and can be used by external callers that want to observe
// reconciliation activity without polling the Record Store.
package eventbus

import (
	"log/slog"
	"sync"
	"time"
)

// Kind identifies the category of an Event.
type Kind string

const (
	KindReconcileStarted  Kind = "reconcile_started"
	KindReconcileFinished Kind = "reconcile_finished"
	KindRecordCreated     Kind = "record_created"
	KindRecordUpdated     Kind = "record_updated"
	KindRecordDeleted     Kind = "record_deleted"
	KindRecordOrphaned    Kind = "record_orphaned"
	KindRecordReclaimed   Kind = "record_reclaimed"
	KindError             Kind = "error"
	KindPauseChanged      Kind = "pause_changed"
)

// Event is a single notification published on the bus.
type Event struct {
	Kind      Kind
	Time      time.Time
	Hostname  string
	Provider  string
	Reason    string
	Err       error
	Attrs     map[string]any
}

// subscriber is one registered consumer's bounded mailbox.
type subscriber struct {
	ch     chan Event
	kinds  map[Kind]bool // nil means "all kinds"
}

// Bus is a bounded, drop-oldest, best-effort event bus. Publish never blocks
// the caller: a full subscriber queue has its oldest event evicted to make
// room for the new one, and the drop is counted and logged at Warn.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]*subscriber
	nextID      int
	queueSize   int
	logger      *slog.Logger
	dropped     uint64
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used to warn about dropped events.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithQueueSize sets the per-subscriber bounded queue size. Default is 64.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// New creates a new event bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subscribers: make(map[int]*subscriber),
		queueSize:   64,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscription is a handle returned by Subscribe. Callers must range over
// Events() and call Unsubscribe() when done to release the mailbox.
type Subscription struct {
	id     int
	bus    *Bus
	events chan Event
}

// Events returns the channel of events delivered to this subscription.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Unsubscribe removes the subscription and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if _, ok := s.bus.subscribers[s.id]; !ok {
		return
	}
	delete(s.bus.subscribers, s.id)
	close(s.events)
}

// Subscribe registers a new subscriber. If kinds is empty, all event kinds
// are delivered; otherwise only the listed kinds are.
func (b *Bus) Subscribe(kinds ...Kind) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	var kindSet map[Kind]bool
	if len(kinds) > 0 {
		kindSet = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			kindSet[k] = true
		}
	}

	id := b.nextID
	b.nextID++

	sub := &subscriber{
		ch:    make(chan Event, b.queueSize),
		kinds: kindSet,
	}
	b.subscribers[id] = sub

	return &Subscription{id: id, bus: b, events: sub.ch}
}

// Publish delivers ev to every matching subscriber. It never blocks: if a
// subscriber's queue is full, the oldest queued event is dropped to make
// room, and the drop is counted and logged.
func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if sub.kinds != nil && !sub.kinds[ev.Kind] {
			continue
		}
		b.deliver(sub, ev)
	}
}

func (b *Bus) deliver(sub *subscriber, ev Event) {
	select {
	case sub.ch <- ev:
		return
	default:
	}

	// Queue full: drop the oldest to make room, best-effort.
	select {
	case <-sub.ch:
		b.dropped++
		b.logger.Warn("eventbus: dropped oldest event, subscriber queue full",
			slog.String("kind", string(ev.Kind)),
		)
	default:
	}

	select {
	case sub.ch <- ev:
	default:
		// Another publisher raced us and refilled the queue; give up silently
		// rather than block the caller.
	}
}

// DroppedCount returns the cumulative number of events dropped due to full
// subscriber queues, across all subscribers. Exposed for metrics.
func (b *Bus) DroppedCount() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
