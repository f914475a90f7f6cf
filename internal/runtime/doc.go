/*
Package runtime wires the correlation machinery to a message broker.

# Architecture Overview

A Service owns two topics. Requests go out on the sink topic through a
Watermill publisher; responses arrive on the source topic through a
Watermill router. Every response is decoded once by a topic dispatcher and
offered to each forwarder, and a forwarder hands it to the listeners
registered under the correlation tuple it extracts.

# Package Structure

## Core Service (service.go)

The Service struct wires together:
  - Message router (Watermill) subscribed to the source topic
  - Publisher and subscriber built by the transport registry
  - The topic dispatcher and its forwarders
  - Operation defaults taken from the configuration
  - HTTP servers for metrics

## Middleware (middleware.go)

Inbound messages pass through:
  - LogMessages: network logging of response payloads
  - Tracer: OpenTelemetry consumer spans
  - Metrics: Watermill router metrics on Prometheus
  - Recoverer: panic recovery

## Metrics (metrics.go)

OperationMetrics counts operation outcomes, retries and durations, and
observes forwarder dispatch.

# Sub-packages

  - classify/: ready-made status classifiers
  - config/: Service configuration with validation
  - errors/: Sentinel errors
  - forward/: correlation tuple to listener routing
  - ids/: ULID correlation values
  - jsoncodec/: JSON decoding and request encoding
  - logging/: Logger interface and adapters
  - metadata/: Message metadata utilities
  - operation/: the request/response state machine
  - selector/: key paths and shapes
  - topic/: per-topic dispatch
  - transport/: the publish and subscription boundary

# Usage Example

	cfg := &replyflow.Config{
		PubSubSystem: "kafka",
		KafkaBrokers: []string{"localhost:9092"},
		SinkTopic:    "provisioning.requests",
		SourceTopic:  "provisioning.responses",
	}

	svc, err := replyflow.NewService(cfg, logger, ctx, replyflow.ServiceDependencies{})

	op, err := svc.NewOperation(replyflow.OperationParams{
		Name:      "provision",
		Forwarder: svc.Forwarder(replyflow.NewKey("requestId")),
		Build:     buildRequest,
		Classify:  replyflow.ClassifyField(replyflow.NewKey("status"), table),
	})

	outcome, err := op.Start(ctx).Wait(ctx)
*/
package runtime
