// Package topic binds forwarders to one inbound subscription. Every message
// is decoded once and offered to each forwarder in turn.
package topic

import (
	"sync"

	errspkg "github.com/drblury/replyflow/internal/runtime/errors"
	"github.com/drblury/replyflow/internal/runtime/forward"
	"github.com/drblury/replyflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/replyflow/internal/runtime/logging"
	"github.com/drblury/replyflow/internal/runtime/selector"
	"github.com/drblury/replyflow/internal/runtime/transport"
)

// Dispatcher owns the forwarders for one source topic.
type Dispatcher struct {
	source  transport.Source
	decoder jsoncodec.Decoder
	log     loggingpkg.ServiceLogger
	fwdOpts []forward.Option

	mu         sync.Mutex
	forwarders map[string]*forward.Forwarder
	order      []*forward.Forwarder
	started    bool
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithDecoder replaces the default JSON decoder.
func WithDecoder(d jsoncodec.Decoder) Option {
	return func(t *Dispatcher) { t.decoder = d }
}

// WithLogger sets the dispatcher's logger. Forwarders inherit it.
func WithLogger(log loggingpkg.ServiceLogger) Option {
	return func(t *Dispatcher) { t.log = log }
}

// WithForwarderOptions applies opts to every forwarder the dispatcher creates.
func WithForwarderOptions(opts ...forward.Option) Option {
	return func(t *Dispatcher) { t.fwdOpts = append(t.fwdOpts, opts...) }
}

// NewDispatcher creates a stopped dispatcher for source.
func NewDispatcher(source transport.Source, opts ...Option) (*Dispatcher, error) {
	if source == nil {
		return nil, errspkg.ErrSourceRequired
	}
	d := &Dispatcher{
		source:     source,
		decoder:    jsoncodec.Generic,
		forwarders: make(map[string]*forward.Forwarder),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.decoder == nil {
		return nil, errspkg.ErrDecoderRequired
	}
	d.log = loggingpkg.OrDiscard(d.log).With(loggingpkg.LogFields{"topic": source.Topic()})
	return d, nil
}

// AddForwarder returns the forwarder for shape, creating it on first use.
func (d *Dispatcher) AddForwarder(shape selector.Shape) *forward.Forwarder {
	id := shape.ID()

	d.mu.Lock()
	defer d.mu.Unlock()

	if f, ok := d.forwarders[id]; ok {
		return f
	}

	opts := append([]forward.Option{forward.WithLogger(d.log)}, d.fwdOpts...)
	f := forward.New(shape, opts...)
	d.forwarders[id] = f
	d.order = append(d.order, f)
	d.log.Debug("Created forwarder", loggingpkg.LogFields{"key_shape": id})
	return f
}

// Forwarders returns the current forwarders in creation order.
func (d *Dispatcher) Forwarders() []*forward.Forwarder {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*forward.Forwarder(nil), d.order...)
}

// OnTopicMessage decodes raw once and offers it to every forwarder. Decode
// failures are logged and the message dropped.
func (d *Dispatcher) OnTopicMessage(raw string) {
	parsed, err := d.decoder.Decode(raw)
	if err != nil {
		d.log.Error("Failed to decode inbound message", err, loggingpkg.LogFields{
			"payload_size": len(raw),
		})
		return
	}

	d.mu.Lock()
	forwarders := d.order
	d.mu.Unlock()

	for _, f := range forwarders {
		f.OnMessage(raw, parsed)
	}
}

// Start registers the dispatcher with its subscription. Calling Start on a
// started dispatcher does nothing.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return nil
	}
	if err := d.source.Register(d); err != nil {
		return err
	}
	d.started = true
	d.log.Info("Dispatcher started", nil)
	return nil
}

// Stop unregisters the dispatcher. Calling Stop on a stopped dispatcher does
// nothing.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return
	}
	d.source.Unregister(d)
	d.started = false
	d.log.Info("Dispatcher stopped", nil)
}

// Started reports whether the dispatcher is registered with its subscription.
func (d *Dispatcher) Started() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

// Shutdown stops the dispatcher and discards every forwarder, so the next
// AddForwarder for a known shape returns a fresh instance.
func (d *Dispatcher) Shutdown() {
	d.Stop()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.forwarders = make(map[string]*forward.Forwarder)
	d.order = nil
}
