package transport

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
)

// DefaultTransport is built when the config names no backend.
const DefaultTransport = "channel"

// ErrNoFanout is returned by Build when the config requires every replica to
// see every response and the selected backend cannot deliver them that way.
var ErrNoFanout = errors.New("replyflow: transport cannot fan out responses")

// Backend is a named builder together with the guarantees it provides.
type Backend struct {
	Name         string
	Build        Builder
	Capabilities Capabilities
}

// Registry holds the backends a Service can be configured with.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// DefaultRegistry is where the built-in backends register from init.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds b, replacing any backend of the same name. A backend without
// a capabilities name takes its own.
func (r *Registry) Register(b Backend) {
	if b.Capabilities.Name == "" {
		b.Capabilities.Name = b.Name
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.Name] = b
}

// Lookup returns the backend registered as name.
func (r *Registry) Lookup(name string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	return b, ok
}

// GetCapabilities returns what is known about name. Unknown backends yield a
// Capabilities carrying only the name.
func (r *Registry) GetCapabilities(name string) Capabilities {
	if b, ok := r.Lookup(name); ok {
		return b.Capabilities
	}
	return Capabilities{Name: name}
}

// Build creates the transport the config selects. A backend that cannot fan
// out responses is refused when the config requires fan-out, and built with
// a warning otherwise.
func (r *Registry) Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	if cfg == nil {
		return Transport{}, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	name := cfg.GetPubSubSystem()
	if name == "" {
		name = DefaultTransport
	}

	b, ok := r.Lookup(name)
	if !ok {
		return Transport{}, fmt.Errorf("unknown transport: %q (registered: %v)", name, r.Names())
	}

	if !b.Capabilities.SupportsFanout {
		if cfg.GetRequireResponseFanout() {
			return Transport{}, fmt.Errorf("%w: %s", ErrNoFanout, name)
		}
		logger.Info("Transport does not fan out responses, replicas sharing the source topic compete for them",
			watermill.LogFields{"transport": name})
	}

	t, err := b.Build(ctx, cfg, logger)
	if err != nil {
		return Transport{}, fmt.Errorf("build %s transport: %w", name, err)
	}
	return t, nil
}

// Names returns the registered backend names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.backends))
}

// Register adds b to the default registry.
func Register(b Backend) {
	DefaultRegistry.Register(b)
}

// Build creates a transport using the default registry.
func Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	return DefaultRegistry.Build(ctx, cfg, logger)
}
