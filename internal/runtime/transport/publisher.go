package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/replyflow/internal/runtime/errors"
	idspkg "github.com/drblury/replyflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/replyflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/replyflow/internal/runtime/metadata"
)

// Sink is the outbound half of the transport boundary.
type Sink interface {
	Publish(ctx context.Context, topic string, payload []byte, md metadatapkg.Metadata) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, topic string, payload []byte, md metadatapkg.Metadata) error

func (f SinkFunc) Publish(ctx context.Context, topic string, payload []byte, md metadatapkg.Metadata) error {
	return f(ctx, topic, payload, md)
}

// Publisher publishes text payloads through a Watermill publisher.
type Publisher struct {
	inner message.Publisher
	log   loggingpkg.ServiceLogger
}

// NewPublisher wraps pub. A nil logger discards network logs.
func NewPublisher(pub message.Publisher, log loggingpkg.ServiceLogger) *Publisher {
	return &Publisher{inner: pub, log: loggingpkg.OrDiscard(log)}
}

func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte, md metadatapkg.Metadata) error {
	if p == nil || p.inner == nil {
		return errspkg.ErrPublisherRequired
	}
	if topic == "" {
		return errspkg.ErrTopicRequired
	}

	msg := message.NewMessage(idspkg.NewCorrelationID(), payload)
	msg.Metadata = md.ToWatermill()
	if ctx != nil {
		msg.SetContext(ctx)
	}

	loggingpkg.Network(p.log, loggingpkg.Outbound, topic, payload)
	return p.inner.Publish(topic, msg)
}
