package transport

// Capabilities describes the delivery guarantees of a backend. Operations
// never depend on ordering, but duplicated or late responses are more common
// on backends that redeliver.
type Capabilities struct {
	// Name is the registry name of the backend.
	Name string

	// SupportsOrdering reports whether messages on one topic arrive in
	// publish order.
	SupportsOrdering bool

	// SupportsAck reports whether the subscriber acknowledges messages.
	SupportsAck bool

	// SupportsNack reports whether a negative ack triggers redelivery.
	SupportsNack bool

	// SupportsTracing reports whether message metadata survives the trip.
	SupportsTracing bool

	// SupportsFanout reports whether every subscriber sees every message on a
	// topic. Without it, replicas sharing a source topic compete for responses.
	SupportsFanout bool

	// MaxMessageSize is the largest payload in bytes, 0 when unknown.
	MaxMessageSize int64
}

// SupportsReliableDelivery reports at-least-once delivery (ack and nack).
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.SupportsAck && c.SupportsNack
}

// MayRedeliver reports whether a response can arrive more than once.
func (c Capabilities) MayRedeliver() bool {
	return c.SupportsNack
}

var (
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
		SupportsFanout:   true,
	}

	KafkaCapabilities = Capabilities{
		Name:             "kafka",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsTracing:  true,
		SupportsFanout:   true,
		MaxMessageSize:   1048576,
	}

	RabbitMQCapabilities = Capabilities{
		Name:             "rabbitmq",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
		SupportsTracing:  true,
		SupportsFanout:   true,
	}

	NATSCapabilities = Capabilities{
		Name:            "nats",
		SupportsTracing: true,
		SupportsFanout:  true,
		MaxMessageSize:  1048576,
	}

	AWSCapabilities = Capabilities{
		Name:             "aws",
		SupportsOrdering: false,
		SupportsAck:      true,
		SupportsNack:     true,
		SupportsTracing:  true,
		SupportsFanout:   true,
		MaxMessageSize:   262144,
	}

	HTTPCapabilities = Capabilities{
		Name:            "http",
		SupportsTracing: true,
	}
)

// GetCapabilities returns what the default registry knows about name.
// Unknown backends yield a Capabilities carrying only the name.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
