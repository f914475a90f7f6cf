package replyflow

import (
	runtimepkg "github.com/drblury/replyflow/internal/runtime"
	"github.com/drblury/replyflow/internal/runtime/classify"
	configpkg "github.com/drblury/replyflow/internal/runtime/config"
	errspkg "github.com/drblury/replyflow/internal/runtime/errors"
	"github.com/drblury/replyflow/internal/runtime/forward"
	idspkg "github.com/drblury/replyflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/replyflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/replyflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/replyflow/internal/runtime/metadata"
	"github.com/drblury/replyflow/internal/runtime/operation"
	"github.com/drblury/replyflow/internal/runtime/selector"
	"github.com/drblury/replyflow/internal/runtime/topic"
	transportpkg "github.com/drblury/replyflow/internal/runtime/transport"
	newtransport "github.com/drblury/replyflow/transport"
)

type (
	Config               = configpkg.Config
	Service              = runtimepkg.Service
	ServiceDependencies  = runtimepkg.ServiceDependencies
	Transport            = transportpkg.Transport
	TransportFactory     = transportpkg.Factory
	TransportFactoryFunc = transportpkg.FactoryFunc

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration

	// Correlation
	Key        = selector.Key
	Shape      = selector.Shape
	Forwarder  = forward.Forwarder
	Listener   = forward.Listener
	Observer   = forward.Observer
	Dispatcher = topic.Dispatcher

	// Operations
	Operation          = operation.Operation
	OperationParams    = operation.Params
	OperationState     = operation.State
	Request            = operation.Request
	RequestBuilder     = operation.RequestBuilder
	Status             = operation.Status
	Classifier         = operation.Classifier
	StatusTable        = classify.Table
	Result             = operation.Result
	Outcome            = operation.Outcome
	Future             = operation.Future
	Attempt            = operation.Attempt
	Hooks              = operation.Hooks
	UnclassifiedPolicy = operation.UnclassifiedPolicy
	DeadlinePolicy     = operation.DeadlinePolicy
	Registrar          = operation.Registrar

	// Metrics
	OperationMetrics         = runtimepkg.OperationMetrics
	OperationStats           = runtimepkg.OperationStats
	OperationMetricsSnapshot = runtimepkg.OperationMetricsSnapshot

	// Transport boundary
	Sink          = transportpkg.Sink
	SinkFunc      = transportpkg.SinkFunc
	Source        = transportpkg.Source
	TopicListener = transportpkg.TopicListener
	Subscription  = transportpkg.Subscription
	Publisher     = transportpkg.Publisher
	Decoder       = jsoncodec.Decoder
	DecoderFunc   = jsoncodec.DecoderFunc

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	IDGenerator = idspkg.Generator

	ConfigValidationError = errspkg.ConfigValidationError

	// Modular transport types
	TransportBuilder      = newtransport.Builder
	TransportConfig       = newtransport.Config
	TransportRegistry     = newtransport.Registry
	TransportCapabilities = newtransport.Capabilities
)

var (
	NewService     = runtimepkg.NewService
	ValidateConfig = configpkg.ValidateConfig

	DefaultMiddlewares    = runtimepkg.DefaultMiddlewares
	LogMessagesMiddleware = runtimepkg.LogMessagesMiddleware
	TracerMiddleware      = runtimepkg.TracerMiddleware
	MetricsMiddleware     = runtimepkg.MetricsMiddleware
	RecovererMiddleware   = runtimepkg.RecovererMiddleware

	NewKey   = selector.NewKey
	NewShape = selector.NewShape
	Paths    = selector.Paths

	NewForwarder          = forward.New
	WithForwarderLogger   = forward.WithLogger
	WithForwarderObserver = forward.WithObserver
	ListenFunc            = forward.ListenFunc

	NewDispatcher                  = topic.NewDispatcher
	WithDecoder                    = topic.WithDecoder
	WithDispatcherLogger           = topic.WithLogger
	WithDispatcherForwarderOptions = topic.WithForwarderOptions

	NewOperation             = operation.New
	ParseUnclassifiedPolicy  = operation.ParseUnclassifiedPolicy
	LoggingHooks             = operation.LoggingHooks
	NewOperationMetrics      = runtimepkg.NewOperationMetrics

	ClassifyField      = classify.Field
	ClassifyPath       = classify.Path
	ClassifyHTTPStatus = classify.HTTPStatus
	ClassifyAlways     = classify.Always

	NewSubscription          = transportpkg.NewSubscription
	NewPublisher             = transportpkg.NewPublisher
	DefaultFactory           = transportpkg.DefaultFactory
	GetCapabilities          = newtransport.GetCapabilities
	DefaultTransportRegistry = newtransport.DefaultRegistry
	RegisterTransport        = newtransport.Register
	BuildTransport           = newtransport.Build

	DecodeGeneric = jsoncodec.DecodeGeneric
	EncodeRequest = jsoncodec.EncodeRequest
	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	DiscardLogger             = loggingpkg.Discard

	NewMetadata = metadatapkg.New

	NewCorrelationID = idspkg.NewCorrelationID
	SequenceIDs      = idspkg.Sequence

	ErrKeyValueMismatch   = errspkg.ErrKeyValueMismatch
	ErrForwarderRequired  = errspkg.ErrForwarderRequired
	ErrListenerRequired   = errspkg.ErrListenerRequired
	ErrPublisherRequired  = errspkg.ErrPublisherRequired
	ErrTopicRequired      = errspkg.ErrTopicRequired
	ErrBuilderRequired    = errspkg.ErrBuilderRequired
	ErrClassifierRequired = errspkg.ErrClassifierRequired
	ErrSourceRequired     = errspkg.ErrSourceRequired
	ErrDecoderRequired    = errspkg.ErrDecoderRequired
	ErrConfigRequired     = errspkg.ErrConfigRequired
	ErrLoggerRequired     = errspkg.ErrLoggerRequired
	ErrServiceRequired    = errspkg.ErrServiceRequired
	ErrUnrecognizedStatus = errspkg.ErrUnrecognizedStatus
	ErrTimeoutRequired    = errspkg.ErrTimeoutRequired
	ErrOperationTimedOut  = errspkg.ErrOperationTimedOut
	ErrOperationCancelled = errspkg.ErrOperationCancelled

	ErrListenerNotComparable = errspkg.ErrListenerNotComparable
)

// Classification results.
const (
	StillWaiting = operation.StillWaiting
	Success      = operation.Success
	Failure      = operation.Failure
)

// Operation lifecycle states.
const (
	StateInit        = operation.Init
	StateWaiting     = operation.Waiting
	StateRetrying    = operation.Retrying
	StateDoneSuccess = operation.DoneSuccess
	StateDoneFailure = operation.DoneFailure
	StateDoneTimeout = operation.DoneTimeout
	StateCancelled   = operation.Cancelled
)

// Terminal results.
const (
	ResultSuccess   = operation.ResultSuccess
	ResultFailure   = operation.ResultFailure
	ResultTimeout   = operation.ResultTimeout
	ResultCancelled = operation.ResultCancelled
)

// Unclassified response and deadline policies.
const (
	UnclassifiedDefault     = operation.UnclassifiedDefault
	UnclassifiedFail        = operation.UnclassifiedFail
	UnclassifiedIgnore      = operation.UnclassifiedIgnore
	DeadlineDefault         = operation.DeadlineDefault
	DeadlineFixed           = operation.DeadlineFixed
	DeadlineResetOnProgress = operation.DeadlineResetOnProgress
)

// Metadata keys set on every request.
const (
	MetadataKeyCorrelationID = metadatapkg.KeyCorrelationID
	MetadataKeyAttempt       = metadatapkg.KeyAttempt
	MetadataKeyOperation     = metadatapkg.KeyOperation
)
