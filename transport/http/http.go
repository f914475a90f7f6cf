// Package http provides the webhook transport: requests are POSTed to
// <publisher url>/<topic> and responses arrive as POSTs on the local server.
package http

import (
	"context"
	nethttp "net/http"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/replyflow/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "http"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(config http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return http.NewPublisher(config, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(addr string, config http.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return http.NewSubscriber(addr, config, logger)
}

func init() {
	Register()
}

// Register adds the HTTP transport to the default registry.
func Register() {
	transport.Register(transport.Backend{Name: TransportName, Build: Build, Capabilities: transport.HTTPCapabilities})
}

// Build creates a new HTTP transport. The subscriber's server is started in
// the background.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	publisher, err := PublisherFactory(
		http.PublisherConfig{
			MarshalMessageFunc: marshalTo(cfg.GetHTTPPublisherURL()),
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(
		cfg.GetHTTPServerAddress(),
		http.SubscriberConfig{
			UnmarshalMessageFunc: http.DefaultUnmarshalMessageFunc,
		},
		logger,
	)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, err
	}

	if s, ok := subscriber.(*http.Subscriber); ok {
		go func() {
			if err := s.StartHTTPServer(); err != nil && err != nethttp.ErrServerClosed {
				logger.Error("Failed to start HTTP subscriber server", err, nil)
			}
		}()
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}

func marshalTo(baseURL string) http.MarshalMessageFunc {
	base := strings.TrimSuffix(baseURL, "/")
	return func(topic string, msg *message.Message) (*nethttp.Request, error) {
		return http.DefaultMarshalMessageFunc(base+"/"+strings.TrimPrefix(topic, "/"), msg)
	}
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.HTTPCapabilities
}
