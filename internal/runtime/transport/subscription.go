package transport

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/replyflow/internal/runtime/errors"
)

// TopicListener receives the raw text of every message on a topic.
// Implementations must be comparable.
type TopicListener interface {
	OnTopicMessage(raw string)
}

// Source is the inbound half of the transport boundary: one topic, with
// listeners registered and unregistered by identity.
type Source interface {
	Topic() string
	Register(l TopicListener) error
	Unregister(l TopicListener)
}

// Subscription fans raw messages from one topic out to its listeners.
// Registering a listener that is already present, or unregistering one that
// is absent, does nothing.
type Subscription struct {
	topic string

	mu        sync.RWMutex
	listeners []TopicListener
}

// NewSubscription creates an empty subscription for topic.
func NewSubscription(topic string) *Subscription {
	return &Subscription{topic: topic}
}

func (s *Subscription) Topic() string { return s.topic }

// Register adds l unless it is already present. Nil and non-comparable
// listeners are rejected.
func (s *Subscription) Register(l TopicListener) error {
	if l == nil {
		return errspkg.ErrListenerRequired
	}
	if !reflect.TypeOf(l).Comparable() {
		return fmt.Errorf("%w: %T", errspkg.ErrListenerNotComparable, l)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.listeners {
		if existing == l {
			return nil
		}
	}
	next := make([]TopicListener, len(s.listeners), len(s.listeners)+1)
	copy(next, s.listeners)
	s.listeners = append(next, l)
	return nil
}

func (s *Subscription) Unregister(l TopicListener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.listeners {
		if existing != l {
			continue
		}
		next := make([]TopicListener, 0, len(s.listeners)-1)
		next = append(next, s.listeners[:i]...)
		s.listeners = append(next, s.listeners[i+1:]...)
		return
	}
}

// Listeners returns the number of registered listeners.
func (s *Subscription) Listeners() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

// Deliver hands raw to every registered listener.
func (s *Subscription) Deliver(raw string) {
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()

	for _, l := range listeners {
		l.OnTopicMessage(raw)
	}
}

// Handler adapts the subscription to a Watermill router handler. Messages
// are always acknowledged: correlation never asks the broker to redeliver.
func (s *Subscription) Handler() message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		s.Deliver(string(msg.Payload))
		return nil
	}
}
