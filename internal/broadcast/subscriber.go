package broadcast

import (
	"sync"
	"sync/atomic"

	"campus-gate-backend/internal/auth"
)

// DefaultBuffer is the per-subscriber queue size used when none is
// configured.
const DefaultBuffer = 256

// Subscriber is one connected stream. The hub writes events to its queue
// without ever blocking; the owning connection goroutine drains Events and
// calls Close when the connection ends.
type Subscriber struct {
	topic    Topic
	identity auth.Identity
	events   chan Event
	done     chan struct{}
	once     sync.Once
	dropped  atomic.Uint64
}

func newSubscriber(topic Topic, identity auth.Identity, buffer int) *Subscriber {
	return &Subscriber{
		topic:    topic,
		identity: identity,
		events:   make(chan Event, buffer),
		done:     make(chan struct{}),
	}
}

// Events returns the queue of delivered events. It is closed when the hub
// shuts down.
func (s *Subscriber) Events() <-chan Event { return s.events }

// Done is closed once the owner has called Close.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Close marks the subscriber as disconnected. The hub drops it on the next
// fan-out to its topic. Safe to call more than once.
func (s *Subscriber) Close() {
	s.once.Do(func() { close(s.done) })
}

// Dropped returns how many events were discarded because the queue was full.
func (s *Subscriber) Dropped() uint64 { return s.dropped.Load() }

func (s *Subscriber) Topic() Topic { return s.topic }

func (s *Subscriber) Identity() auth.Identity { return s.identity }

// trySend attempts a non-blocking send. It returns false if the subscriber
// has disconnected and should be removed. A full queue drops the event.
func trySend(s *Subscriber, ev Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.events <- ev:
	default:
		s.dropped.Add(1)
	}
	return true
}
