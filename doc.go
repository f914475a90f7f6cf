// Package replyflow correlates asynchronous responses with the requests that
// caused them. A request goes out on one topic, its response comes back on
// another, and the two are tied together by values the responder echoes
// back: a correlation ID, possibly combined with other fields.
//
// Three layers do the work. A Forwarder extracts a correlation tuple from each
// decoded response using a Shape of Keys and hands the response to the
// listeners registered under that tuple. A Dispatcher owns the forwarders of
// one source topic and decodes every message once. An Operation publishes a
// request, listens for its correlation tuple, classifies each response as
// still waiting, success or failure, and retries with a fresh correlation value
// when an attempt times out. Its Future resolves exactly once, to success,
// failure, timeout or cancellation.
//
// Service puts these on top of Watermill. It reads the target transport
// (Kafka, RabbitMQ, AWS SNS/SQS, NATS, HTTP, or Go Channels) from Config,
// runs a router on the source topic, and creates operations that publish on
// the sink topic with the configured retry and timeout defaults.
//
// # Transports
//
// Replyflow supports 6 message transports out of the box:
//   - channel: In-memory Go channels for testing
//   - kafka: Streaming without a consumer group so every replica sees every response
//   - rabbitmq: AMQP with a per-replica queue bound to each topic
//   - aws: AWS SNS/SQS with LocalStack support
//   - nats: Core NATS messaging
//   - http: Requests POSTed to a remote endpoint, responses received on a local server
//
// # Middleware
//
// The default inbound middleware chain logs response payloads, opens a
// tracing span, records Prometheus router metrics when enabled, and recovers
// from panics.
//
// # Example
//
//	svc, err := replyflow.NewService(cfg, logger, ctx, replyflow.ServiceDependencies{})
//	op, err := svc.NewOperation(replyflow.OperationParams{
//		Name:      "provision",
//		Forwarder: svc.Forwarder(replyflow.NewKey("requestId")),
//		Build:     build,
//		Classify:  replyflow.ClassifyField(replyflow.NewKey("status"), table),
//	})
//	outcome, err := op.Start(ctx).Wait(ctx)
package replyflow
