// Package transport holds the registry of message backends replyflow can
// publish requests to and receive responses from. Each backend lives in its
// own sub-package and registers a Builder from init.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Transport is the publisher/subscriber pair a Builder produces. The
// publisher carries outbound requests on the sink topic, the subscriber feeds
// the source topic that responses arrive on.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close releases both halves of the transport. When the same value backs
// both halves it is closed once.
func (t Transport) Close() error {
	var pubErr, subErr error
	if t.Publisher != nil {
		pubErr = t.Publisher.Close()
	}
	if t.Subscriber != nil && !sameInstance(t.Publisher, t.Subscriber) {
		subErr = t.Subscriber.Close()
	}
	if pubErr != nil {
		return pubErr
	}
	return subErr
}

func sameInstance(pub message.Publisher, sub message.Subscriber) bool {
	if pub == nil {
		return false
	}
	asSub, ok := pub.(message.Subscriber)
	return ok && asSub == sub
}

// Builder creates a transport from config.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config exposes the settings backends read. It keeps sub-packages free of
// the runtime config package.
type Config interface {
	GetPubSubSystem() string
	// GetRequireResponseFanout makes Build refuse backends on which replicas
	// compete for responses.
	GetRequireResponseFanout() bool

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaClientID() string
	GetKafkaConsumerGroup() string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS
	GetNATSURL() string
	GetNATSMaxReconnects() int

	// HTTP
	GetHTTPServerAddress() string
	GetHTTPPublisherURL() string

	// AWS
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}

// CapabilitiesProvider is implemented by backends that report their delivery
// guarantees.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}
