// Package channel provides the in-memory transport. Requests and responses
// travel through one gochannel, so an operation can be answered in-process
// by Respond.
package channel

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/replyflow/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "channel"

// OutputBuffer is the per-subscriber buffer of transports built by New.
const OutputBuffer = 64

// Factory allows overriding the channel creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

func init() {
	Register()
}

// Register adds the channel transport to the default registry.
func Register() {
	transport.Register(transport.Backend{
		Name:         TransportName,
		Build:        Build,
		Capabilities: transport.ChannelCapabilities,
	})
}

// New creates a loopback transport: whatever is published on it reaches its
// own subscribers. Share the result between a Service and a responder to
// close the request/response loop in memory.
func New(logger watermill.LoggerAdapter) transport.Transport {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	pub, sub := Factory(gochannel.Config{OutputChannelBuffer: OutputBuffer}, logger)
	return transport.Transport{Publisher: pub, Subscriber: sub}
}

// Build creates a new loopback transport. Each call yields an independent
// broker.
func Build(_ context.Context, _ transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	return New(logger), nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.ChannelCapabilities
}

// Answer maps one request to the response payloads sent back for it, in
// order. Returning nothing drops the request.
type Answer func(request *message.Message) [][]byte

// Respond acts as the remote side of an exchange: every request published on
// requestTopic is acknowledged and answered on responseTopic until ctx is
// done. A failed publish abandons the rest of that request's responses.
func Respond(ctx context.Context, tr transport.Transport, requestTopic, responseTopic string, answer Answer) error {
	if tr.Publisher == nil || tr.Subscriber == nil {
		return fmt.Errorf("respond on %s: transport is incomplete", requestTopic)
	}
	requests, err := tr.Subscriber.Subscribe(ctx, requestTopic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", requestTopic, err)
	}

	go func() {
		for req := range requests {
			req.Ack()
			for _, payload := range answer(req) {
				resp := message.NewMessage(watermill.NewUUID(), payload)
				if err := tr.Publisher.Publish(responseTopic, resp); err != nil {
					break
				}
			}
		}
	}()
	return nil
}
