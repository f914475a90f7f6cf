package transport

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/replyflow/internal/runtime/config"
	newtransport "github.com/drblury/replyflow/transport"

	// Register the built-in transports.
	_ "github.com/drblury/replyflow/transport/transports"
)

// Transport combines a publisher and subscriber pair produced by a factory.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Factory abstracts how the service obtains its broker connection.
type Factory interface {
	Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)

func (f FactoryFunc) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	return f(ctx, conf, logger)
}

// DefaultFactory builds transports through the modular transport registry.
func DefaultFactory() Factory {
	return FactoryFunc(buildFromRegistry)
}

func buildFromRegistry(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	if conf == nil {
		return Transport{}, fmt.Errorf("config is required")
	}

	t, err := newtransport.Build(ctx, conf, logger)
	if err != nil {
		return Transport{}, err
	}
	return Transport{Publisher: t.Publisher, Subscriber: t.Subscriber}, nil
}

// Capabilities reports what the configured transport guarantees.
func Capabilities(conf *config.Config) newtransport.Capabilities {
	if conf == nil {
		return newtransport.Capabilities{}
	}
	name := conf.PubSubSystem
	if name == "" {
		name = newtransport.DefaultTransport
	}
	return newtransport.GetCapabilities(name)
}
