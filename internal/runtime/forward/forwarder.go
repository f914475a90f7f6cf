// Package forward implements the correlation index: listeners registered
// under a tuple of values receive every inbound message whose selectors
// extract exactly that tuple.
package forward

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	errspkg "github.com/drblury/replyflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/replyflow/internal/runtime/logging"
	"github.com/drblury/replyflow/internal/runtime/selector"
)

// Listener receives matched messages. Implementations must be comparable
// (typically a pointer) so they can be unregistered.
type Listener interface {
	OnMessage(raw string, parsed any)
}

type funcListener struct {
	fn func(raw string, parsed any)
}

func (l *funcListener) OnMessage(raw string, parsed any) { l.fn(raw, parsed) }

// ListenFunc wraps fn in a Listener. Each call returns a distinct listener.
func ListenFunc(fn func(raw string, parsed any)) Listener {
	return &funcListener{fn: fn}
}

// Observer receives dispatch events, typically for metrics.
type Observer interface {
	Matched(shape string, listeners int)
	Unmatched(shape string)
	ListenerPanicked(shape string)
}

// Forwarder maps correlation tuples onto listeners for one key shape.
//
// Listener slices are never mutated in place: register and unregister swap
// in a fresh slice, so a dispatch holding the previous slice iterates a
// stable snapshot without copying.
type Forwarder struct {
	shape   selector.Shape
	shapeID string
	log     loggingpkg.ServiceLogger
	obs     Observer

	mu        sync.RWMutex
	listeners map[string][]Listener
}

// Option customises a Forwarder.
type Option func(*Forwarder)

// WithLogger sets the logger used for listener failures.
func WithLogger(log loggingpkg.ServiceLogger) Option {
	return func(f *Forwarder) { f.log = log }
}

// WithObserver attaches a dispatch observer.
func WithObserver(obs Observer) Option {
	return func(f *Forwarder) { f.obs = obs }
}

// New creates a Forwarder correlating on shape.
func New(shape selector.Shape, opts ...Option) *Forwarder {
	f := &Forwarder{
		shape:     selector.NewShape(shape...),
		shapeID:   shape.ID(),
		listeners: make(map[string][]Listener),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.log = loggingpkg.OrDiscard(f.log).With(loggingpkg.LogFields{"key_shape": f.shapeID})
	return f
}

// Shape returns the forwarder's key shape.
func (f *Forwarder) Shape() selector.Shape {
	return selector.NewShape(f.shape...)
}

// Register adds listener under values. values must have one entry per key
// in the shape, and listener must be comparable.
func (f *Forwarder) Register(values []string, listener Listener) error {
	if len(values) != f.shape.Len() {
		return errspkg.KeyValueMismatch(f.shape.Len(), len(values))
	}
	if listener == nil {
		return errspkg.ErrListenerRequired
	}
	if !reflect.TypeOf(listener).Comparable() {
		return fmt.Errorf("%w: %T", errspkg.ErrListenerNotComparable, listener)
	}
	key := tupleKey(values)

	f.mu.Lock()
	defer f.mu.Unlock()

	current := f.listeners[key]
	next := make([]Listener, len(current), len(current)+1)
	copy(next, current)
	f.listeners[key] = append(next, listener)
	return nil
}

// Unregister removes one registration of listener under values. Missing
// tuples or listeners are ignored.
func (f *Forwarder) Unregister(values []string, listener Listener) error {
	if len(values) != f.shape.Len() {
		return errspkg.KeyValueMismatch(f.shape.Len(), len(values))
	}
	key := tupleKey(values)

	f.mu.Lock()
	defer f.mu.Unlock()

	current := f.listeners[key]
	for i, l := range current {
		if l != listener {
			continue
		}
		if len(current) == 1 {
			delete(f.listeners, key)
			return nil
		}
		next := make([]Listener, 0, len(current)-1)
		next = append(next, current[:i]...)
		next = append(next, current[i+1:]...)
		f.listeners[key] = next
		return nil
	}
	return nil
}

// OnMessage offers a decoded message to the forwarder. Messages that do not
// carry every key, or whose tuple has no listeners, are dropped silently.
func (f *Forwarder) OnMessage(raw string, parsed any) {
	values, ok := f.shape.Extract(parsed)
	if !ok {
		f.unmatched()
		return
	}

	f.mu.RLock()
	listeners := f.listeners[tupleKey(values)]
	f.mu.RUnlock()

	if len(listeners) == 0 {
		f.unmatched()
		return
	}
	if f.obs != nil {
		f.obs.Matched(f.shapeID, len(listeners))
	}

	for _, l := range listeners {
		f.invoke(l, values, raw, parsed)
	}
}

// Size returns the number of live registrations.
func (f *Forwarder) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := 0
	for _, ls := range f.listeners {
		n += len(ls)
	}
	return n
}

func (f *Forwarder) invoke(l Listener, values []string, raw string, parsed any) {
	defer func() {
		if r := recover(); r != nil {
			f.log.Error("Listener failed", fmt.Errorf("panic: %v", r), loggingpkg.LogFields{
				"values": values,
			})
			if f.obs != nil {
				f.obs.ListenerPanicked(f.shapeID)
			}
		}
	}()
	l.OnMessage(raw, parsed)
}

func (f *Forwarder) unmatched() {
	if f.obs != nil {
		f.obs.Unmatched(f.shapeID)
	}
}

// tupleKey length-prefixes every value so no two distinct tuples collide.
func tupleKey(values []string) string {
	var b strings.Builder
	for _, v := range values {
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(v)
	}
	return b.String()
}
