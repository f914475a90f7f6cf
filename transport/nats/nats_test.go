package nats

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/replyflow/transport"
	"github.com/drblury/replyflow/transport/transporttest"
)

func TestRegister(t *testing.T) {
	original := transport.DefaultRegistry
	defer func() { transport.DefaultRegistry = original }()

	transport.DefaultRegistry = transport.NewRegistry()
	Register()

	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, "nats", caps.Name)
	assert.False(t, caps.SupportsOrdering)
	assert.False(t, caps.SupportsReliableDelivery())
}

func applied(t *testing.T, opts []natsgo.Option) natsgo.Options {
	t.Helper()
	o := natsgo.GetDefaultOptions()
	for _, opt := range opts {
		require.NoError(t, opt(&o))
	}
	return o
}

func TestConnectOptions(t *testing.T) {
	o := applied(t, connectOptions(&transporttest.Config{NATSMaxReconnects: 5}))
	assert.Equal(t, ConnectionName, o.Name)
	assert.Equal(t, 5, o.MaxReconnect)

	defaults := applied(t, connectOptions(&transporttest.Config{}))
	assert.Equal(t, natsgo.DefaultMaxReconnect, defaults.MaxReconnect)
}

func stubFactories(t *testing.T) {
	t.Helper()
	originalPub := PublisherFactory
	originalSub := SubscriberFactory
	t.Cleanup(func() {
		PublisherFactory = originalPub
		SubscriberFactory = originalSub
	})
}

func TestBuild(t *testing.T) {
	t.Run("core nats without jetstream", func(t *testing.T) {
		stubFactories(t)

		PublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			assert.Equal(t, "nats://localhost:4222", cfg.URL)
			assert.True(t, cfg.JetStream.Disabled)
			assert.Len(t, cfg.NatsOptions, 2)
			return transporttest.Publisher{}, nil
		}
		SubscriberFactory = func(cfg nats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
			assert.Equal(t, "nats://localhost:4222", cfg.URL)
			assert.True(t, cfg.JetStream.Disabled)
			return transporttest.Subscriber{}, nil
		}

		tr, err := Build(context.Background(), &transporttest.Config{
			NATSURL:           "nats://localhost:4222",
			NATSMaxReconnects: 3,
		}, watermill.NopLogger{})
		require.NoError(t, err)
		assert.Equal(t, transporttest.Subscriber{}, tr.Subscriber)
	})

	t.Run("publisher failure", func(t *testing.T) {
		stubFactories(t)
		PublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			return nil, errors.New("publisher error")
		}

		_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "publisher error")
	})

	t.Run("subscriber failure", func(t *testing.T) {
		stubFactories(t)
		PublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			return transporttest.Publisher{}, nil
		}
		SubscriberFactory = func(cfg nats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
			return nil, errors.New("subscriber error")
		}

		_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "subscriber error")
	})
}
