// Package broadcast fans out occupancy events to connected dashboards.
//
// A single Hub is created at startup and shared by everything that
// publishes or subscribes. Publishing never blocks and never fails: each
// subscriber has its own bounded queue, and an event that does not fit is
// dropped for that subscriber only.
package broadcast

import (
	"log"
	"sync"

	"campus-gate-backend/internal/apperr"
	"campus-gate-backend/internal/auth"
)

// Publisher is the sending side of the hub.
type Publisher interface {
	Publish(topic Topic, ev Event)
}

// Hub routes events to topic subscribers.
type Hub struct {
	mu          sync.Mutex
	verifier    auth.Verifier
	buffer      int
	subscribers map[Topic][]*Subscriber
	closed      bool
}

// NewHub creates a hub that checks credentials with verifier. A buffer of
// zero or less uses DefaultBuffer.
func NewHub(verifier auth.Verifier, buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		verifier:    verifier,
		buffer:      buffer,
		subscribers: make(map[Topic][]*Subscriber),
	}
}

// Subscribe verifies credential and registers a subscriber on topic. A
// private topic can only be joined by its owner or an admin.
func (h *Hub) Subscribe(topic Topic, credential string) (*Subscriber, error) {
	identity, err := h.verifier.Verify(credential)
	if err != nil {
		return nil, apperr.Unauthorized(err.Error())
	}
	if owner, private := topic.Owner(); private && owner != identity.ID && !identity.IsAdmin() {
		return nil, apperr.Forbidden("cannot subscribe to another identity's topic")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, apperr.Unavailable("subscribe", nil)
	}

	sub := newSubscriber(topic, identity, h.buffer)
	h.subscribers[topic] = append(h.subscribers[topic], sub)

	log.Printf("subscriber %s joined %s (%d on topic)", identity.ID, topic, len(h.subscribers[topic]))
	return sub, nil
}

// Unsubscribe removes sub immediately and marks it closed. Without this the
// hub still drops a closed subscriber on the next fan-out.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	sub.Close()

	h.mu.Lock()
	defer h.mu.Unlock()

	subscribers := h.subscribers[sub.topic]
	for i, existing := range subscribers {
		if existing == sub {
			h.subscribers[sub.topic] = append(subscribers[:i], subscribers[i+1:]...)
			break
		}
	}
	if len(h.subscribers[sub.topic]) == 0 {
		delete(h.subscribers, sub.topic)
	}
}

// Publish delivers ev to every subscriber of topic without blocking.
func (h *Hub) Publish(topic Topic, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	subscribers := h.subscribers[topic]
	if len(subscribers) == 0 {
		return
	}

	// Reverse iteration so removals don't shift unvisited elements.
	for i := len(subscribers) - 1; i >= 0; i-- {
		if !trySend(subscribers[i], ev) {
			subscribers = append(subscribers[:i], subscribers[i+1:]...)
		}
	}

	if len(subscribers) == 0 {
		delete(h.subscribers, topic)
	} else {
		h.subscribers[topic] = subscribers
	}
}

// SubscriberCount returns the number of registered subscribers on topic,
// including any that disconnected since the last fan-out.
func (h *Hub) SubscriberCount(topic Topic) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[topic])
}

// Close ends every subscription. Subscribers see their Events channel
// closed. Publish and Subscribe are no-ops or errors afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for topic, subscribers := range h.subscribers {
		for _, sub := range subscribers {
			close(sub.events)
		}
		delete(h.subscribers, topic)
	}
}
