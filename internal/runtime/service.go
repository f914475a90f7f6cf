package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	configpkg "github.com/drblury/replyflow/internal/runtime/config"
	errspkg "github.com/drblury/replyflow/internal/runtime/errors"
	"github.com/drblury/replyflow/internal/runtime/forward"
	"github.com/drblury/replyflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/replyflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/replyflow/internal/runtime/metadata"
	"github.com/drblury/replyflow/internal/runtime/operation"
	"github.com/drblury/replyflow/internal/runtime/selector"
	"github.com/drblury/replyflow/internal/runtime/topic"
	transportpkg "github.com/drblury/replyflow/internal/runtime/transport"
	newtransport "github.com/drblury/replyflow/transport"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

const httpShutdownTimeout = 5 * time.Second

// ServiceDependencies holds the optional collaborators that the Service can use.
// Leave fields nil to get the defaults.
type ServiceDependencies struct {
	Middlewares               []MiddlewareRegistration // Appended after the default middleware chain.
	DisableDefaultMiddlewares bool                     // Skips registering the default middleware chain when true.
	TransportFactory          transportpkg.Factory
	// Decoder parses inbound responses. Defaults to jsoncodec.Generic.
	Decoder jsoncodec.Decoder
	// Registry receives the Prometheus collectors when metrics are enabled.
	// Defaults to the global registry.
	Registry *prometheus.Registry
	// Hooks run for every operation created through the Service, after the
	// built-in logging and metrics hooks.
	Hooks  operation.Hooks
	Tracer trace.Tracer
}

// Service owns one response topic and the request publisher: a Watermill
// router feeds the source topic to a topic dispatcher, and operations
// created through the Service publish on the sink topic.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router

	subscription *transportpkg.Subscription
	dispatcher   *topic.Dispatcher
	sink         *transportpkg.Publisher

	metrics    *OperationMetrics
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	hooks      operation.Hooks
	tracer     trace.Tracer

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex
	running       []*http.Server

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewService constructs a Service for the supplied configuration. Create
// forwarders on the returned Service before calling Start.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}

	wmLogger := loggingpkg.NewWatermillAdapter(log)
	log.Info("Creating replyflow service",
		loggingpkg.LogFields{
			"pubsub_system": conf.PubSubSystem,
			"source_topic":  conf.SourceTopic,
			"sink_topic":    conf.SinkTopic,
			"config":        conf,
		})

	s := &Service{
		Conf:         conf,
		Logger:       log,
		subscription: transportpkg.NewSubscription(conf.SourceTopic),
		tracer:       deps.Tracer,
	}

	factory := deps.TransportFactory
	if factory == nil {
		factory = transportpkg.DefaultFactory()
	}
	transport, err := factory.Build(ctx, conf, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("build transport: %w", err)
	}
	s.publisher = transport.Publisher
	s.subscriber = transport.Subscriber
	s.sink = transportpkg.NewPublisher(s.publisher, log)

	s.hooks = operation.LoggingHooks(log)
	dispatcherOpts := []topic.Option{topic.WithLogger(log)}
	if deps.Decoder != nil {
		dispatcherOpts = append(dispatcherOpts, topic.WithDecoder(deps.Decoder))
	}
	if conf.MetricsEnabled {
		if err := s.enableMetrics(deps.Registry); err != nil {
			_ = s.closeTransport()
			return nil, err
		}
		s.hooks = s.hooks.Merge(s.metrics.Hooks())
		dispatcherOpts = append(dispatcherOpts, topic.WithForwarderOptions(forward.WithObserver(s.metrics)))
	}
	s.hooks = s.hooks.Merge(deps.Hooks)
	dispatcher, err := topic.NewDispatcher(s.subscription, dispatcherOpts...)
	if err != nil {
		_ = s.closeTransport()
		return nil, fmt.Errorf("create dispatcher: %w", err)
	}
	s.dispatcher = dispatcher

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		_ = s.closeTransport()
		return nil, fmt.Errorf("create router: %w", err)
	}
	s.router = router
	s.router.AddPlugin(plugin.SignalsHandler)

	if err := s.registerConfiguredMiddlewares(deps); err != nil {
		_ = s.closeTransport()
		return nil, err
	}

	s.router.AddNoPublisherHandler(
		"replyflow_"+conf.SourceTopic,
		conf.SourceTopic,
		s.subscriber,
		s.subscription.Handler(),
	)

	return s, nil
}

func (s *Service) enableMetrics(registry *prometheus.Registry) error {
	s.registerer, s.gatherer = prometheus.DefaultRegisterer, prometheus.DefaultGatherer
	if registry != nil {
		s.registerer, s.gatherer = registry, registry
	}
	s.metrics = NewOperationMetrics(s.registerer)
	if err := s.metrics.Register(); err != nil {
		return fmt.Errorf("register operation metrics: %w", err)
	}
	return nil
}

func (s *Service) registerConfiguredMiddlewares(deps ServiceDependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := s.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("failed to register middleware %s: %w", name, err)
		}
	}
	return nil
}

// Start attaches the dispatcher and runs the router until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	if s.dispatcher != nil {
		if err := s.dispatcher.Start(); err != nil {
			return fmt.Errorf("start dispatcher: %w", err)
		}
	}
	s.startHTTPServers()
	return routerRun(s.router, ctx)
}

// Running is closed once the router has subscribed to the source topic.
func (s *Service) Running() <-chan struct{} {
	return s.router.Running()
}

// Stop detaches the dispatcher from the source topic. Responses arriving
// afterwards are dropped; registered forwarders and operations are kept.
func (s *Service) Stop() {
	if s.dispatcher != nil {
		s.dispatcher.Stop()
	}
}

// Shutdown stops the dispatcher, drops its forwarders, and closes the
// router, the transport and any HTTP servers. It is safe to call more than
// once.
func (s *Service) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		var errs []error
		if s.dispatcher != nil {
			s.dispatcher.Shutdown()
		}
		// Close blocks for its full timeout on a router that never ran.
		if s.router != nil && s.router.IsRunning() {
			if err := s.router.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close router: %w", err))
			}
		}
		if err := s.closeTransport(); err != nil {
			errs = append(errs, err)
		}
		if err := s.stopHTTPServers(ctx); err != nil {
			errs = append(errs, err)
		}
		s.shutdownErr = errors.Join(errs...)
	})
	return s.shutdownErr
}

func (s *Service) closeTransport() error {
	var errs []error
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if s.subscriber != nil && any(s.subscriber) != any(s.publisher) {
		if err := s.subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Forwarder returns the forwarder correlating on keys, creating it on first
// use.
func (s *Service) Forwarder(keys ...selector.Key) *forward.Forwarder {
	return s.dispatcher.AddForwarder(selector.NewShape(keys...))
}

// Dispatcher exposes the topic dispatcher for the source topic.
func (s *Service) Dispatcher() *topic.Dispatcher {
	return s.dispatcher
}

// Sink is the publisher operations use.
func (s *Service) Sink() transportpkg.Sink {
	return s.sink
}

// Metrics returns the operation metrics, or nil when metrics are disabled.
func (s *Service) Metrics() *OperationMetrics {
	return s.metrics
}

// Capabilities reports what the configured transport guarantees.
func (s *Service) Capabilities() newtransport.Capabilities {
	return transportpkg.Capabilities(s.Conf)
}

// Publish encodes payload and sends it to the sink topic.
func (s *Service) Publish(ctx context.Context, payload any, md metadatapkg.Metadata) error {
	return s.PublishTo(ctx, s.Conf.SinkTopic, payload, md)
}

// PublishTo encodes payload and sends it to topicName.
func (s *Service) PublishTo(ctx context.Context, topicName string, payload any, md metadatapkg.Metadata) error {
	body, err := jsoncodec.EncodeRequest(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return s.sink.Publish(ctx, topicName, body, md)
}

// NewOperation creates an operation with the Service's defaults filled in:
// the sink and sink topic, the configured timeout, retry count, deadline
// and unclassified policies, the Service logger, tracer and hooks. Only
// unset fields take defaults, so an explicit DeadlineFixed or
// UnclassifiedFail wins over the configuration. A zero Retries takes
// Config.OperationRetries; pass a negative value for none.
func (s *Service) NewOperation(p operation.Params) (*operation.Operation, error) {
	if s == nil {
		return nil, errspkg.ErrServiceRequired
	}
	if p.Sink == nil {
		p.Sink = s.sink
	}
	if p.Topic == "" {
		p.Topic = s.Conf.SinkTopic
	}
	if p.Timeout == 0 {
		p.Timeout = s.Conf.EffectiveOperationTimeout()
	}
	if p.Retries == 0 {
		p.Retries = s.Conf.OperationRetries
	}
	if p.Deadline == operation.DeadlineDefault && s.Conf.ResetDeadlineOnProgress {
		p.Deadline = operation.DeadlineResetOnProgress
	}
	if p.Unclassified == operation.UnclassifiedDefault {
		policy, err := operation.ParseUnclassifiedPolicy(s.Conf.UnclassifiedPolicy)
		if err != nil {
			return nil, err
		}
		p.Unclassified = policy
	}
	if p.Logger == nil {
		p.Logger = s.Logger
	}
	if p.Tracer == nil {
		p.Tracer = s.tracer
	}
	p.Hooks = s.hooks.Merge(p.Hooks)
	return operation.New(p)
}

// RegisterHTTPHandler mounts handler on an HTTP server started with the
// Service.
func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (s *Service) metricsHandler() http.Handler {
	if s.gatherer == nil || s.gatherer == prometheus.DefaultGatherer {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
}

func (s *Service) startHTTPServers() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for port, mux := range s.httpServers {
		addr := fmt.Sprintf(":%d", port)
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: httpShutdownTimeout}
		s.running = append(s.running, srv)
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": addr})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Error("Failed to start HTTP server", err, loggingpkg.LogFields{"address": addr})
			}
		}()
	}
}

func (s *Service) stopHTTPServers(ctx context.Context) error {
	s.httpServersMu.Lock()
	servers := s.running
	s.running = nil
	s.httpServersMu.Unlock()

	if len(servers) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, httpShutdownTimeout)
	defer cancel()

	var errs []error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http server %s: %w", srv.Addr, err))
		}
	}
	return errors.Join(errs...)
}
