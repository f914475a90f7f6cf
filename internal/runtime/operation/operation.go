package operation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	errspkg "github.com/drblury/replyflow/internal/runtime/errors"
	"github.com/drblury/replyflow/internal/runtime/forward"
	idspkg "github.com/drblury/replyflow/internal/runtime/ids"
	"github.com/drblury/replyflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/replyflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/replyflow/internal/runtime/metadata"
	"github.com/drblury/replyflow/internal/runtime/transport"
)

const tracerName = "github.com/drblury/replyflow/operation"

// Registrar is the part of a forwarder an operation uses.
type Registrar interface {
	Register(values []string, listener forward.Listener) error
	Unregister(values []string, listener forward.Listener) error
}

// Request is what a RequestBuilder produces for one attempt.
type Request struct {
	// Payload is encoded with jsoncodec.EncodeRequest.
	Payload any
	// Values is the tuple the attempt listens on. It must be extractable from
	// the response by the forwarder's key shape. Defaults to the correlation
	// value alone.
	Values []string
	// Metadata is merged over the attempt metadata.
	Metadata metadatapkg.Metadata
}

// RequestBuilder builds the request for an attempt. The correlation value
// must be embedded where the responder echoes it back.
type RequestBuilder func(attempt int, correlationID string) (Request, error)

// UnclassifiedPolicy decides what a response the classifier rejects with an
// error does to the operation.
type UnclassifiedPolicy int

const (
	// UnclassifiedDefault leaves the choice to whoever creates the operation.
	// New treats it as UnclassifiedFail.
	UnclassifiedDefault UnclassifiedPolicy = iota
	// UnclassifiedFail resolves the operation to a failure carrying the error.
	UnclassifiedFail
	// UnclassifiedIgnore logs the response and keeps waiting.
	UnclassifiedIgnore
)

// ParseUnclassifiedPolicy maps "fail" or "ignore" to a policy. The empty
// string means UnclassifiedFail.
func ParseUnclassifiedPolicy(s string) (UnclassifiedPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail":
		return UnclassifiedFail, nil
	case "ignore":
		return UnclassifiedIgnore, nil
	default:
		return UnclassifiedDefault, fmt.Errorf("unknown unclassified policy %q", s)
	}
}

func (p UnclassifiedPolicy) String() string {
	switch p {
	case UnclassifiedFail:
		return "fail"
	case UnclassifiedIgnore:
		return "ignore"
	default:
		return "default"
	}
}

// DeadlinePolicy decides whether a StillWaiting response restarts the
// attempt deadline.
type DeadlinePolicy int

const (
	// DeadlineDefault leaves the choice to whoever creates the operation.
	// New treats it as DeadlineFixed.
	DeadlineDefault DeadlinePolicy = iota
	// DeadlineFixed keeps the attempt's first deadline in force.
	DeadlineFixed
	// DeadlineResetOnProgress restarts the deadline on every StillWaiting
	// response.
	DeadlineResetOnProgress
)

func (p DeadlinePolicy) String() string {
	switch p {
	case DeadlineFixed:
		return "fixed"
	case DeadlineResetOnProgress:
		return "reset_on_progress"
	default:
		return "default"
	}
}

// Params configures an Operation.
type Params struct {
	// Name labels logs, metrics and spans. Defaults to "operation".
	Name      string
	Forwarder Registrar
	Sink      transport.Sink
	// Topic receives the requests.
	Topic    string
	Build    RequestBuilder
	Classify Classifier

	// Retries is the number of attempts after the first.
	Retries int
	// Timeout bounds each attempt.
	Timeout time.Duration
	// Deadline and Unclassified default to DeadlineFixed and
	// UnclassifiedFail.
	Deadline     DeadlinePolicy
	Unclassified UnclassifiedPolicy

	// NewCorrelationID defaults to ids.NewCorrelationID.
	NewCorrelationID idspkg.Generator
	Hooks            Hooks
	Logger           loggingpkg.ServiceLogger
	// Tracer defaults to the global otel tracer provider.
	Tracer trace.Tracer
}

// Operation is a single correlated exchange. Create it with New, run it with
// Start.
type Operation struct {
	p      Params
	log    loggingpkg.ServiceLogger
	future *Future

	mu            sync.Mutex
	state         State
	started       bool
	attempt       int
	correlationID string
	values        []string
	listener      *attemptListener
	timer         *time.Timer
	deadlineSeq   uint64
	start         time.Time
	ctx           context.Context
	span          trace.Span
	stopWatch     func() bool
}

// New validates p and returns an operation in state INIT.
func New(p Params) (*Operation, error) {
	switch {
	case p.Forwarder == nil:
		return nil, errspkg.ErrForwarderRequired
	case p.Sink == nil:
		return nil, errspkg.ErrPublisherRequired
	case p.Topic == "":
		return nil, errspkg.ErrTopicRequired
	case p.Build == nil:
		return nil, errspkg.ErrBuilderRequired
	case p.Classify == nil:
		return nil, errspkg.ErrClassifierRequired
	case p.Timeout <= 0:
		return nil, errspkg.ErrTimeoutRequired
	}

	if p.Retries < 0 {
		p.Retries = 0
	}
	if p.Name == "" {
		p.Name = "operation"
	}
	if p.Deadline == DeadlineDefault {
		p.Deadline = DeadlineFixed
	}
	if p.Unclassified == UnclassifiedDefault {
		p.Unclassified = UnclassifiedFail
	}
	if p.NewCorrelationID == nil {
		p.NewCorrelationID = idspkg.NewCorrelationID
	}
	if p.Tracer == nil {
		p.Tracer = otel.Tracer(tracerName)
	}

	return &Operation{
		p:      p,
		log:    loggingpkg.OrDiscard(p.Logger).With(loggingpkg.LogFields{"operation": p.Name}),
		future: newFuture(),
		ctx:    context.Background(),
	}, nil
}

func (o *Operation) Name() string { return o.p.Name }

// Future returns the handle Start returns.
func (o *Operation) Future() *Future { return o.future }

// State returns the current lifecycle state.
func (o *Operation) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Attempt returns the number of the current attempt, 0 before the first.
func (o *Operation) Attempt() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempt
}

// CorrelationID returns the correlation value of the current attempt.
func (o *Operation) CorrelationID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.correlationID
}

// Start runs the operation in the background and returns its Future. When
// ctx is cancelled the operation is cancelled. Calling Start again returns
// the same Future.
func (o *Operation) Start(ctx context.Context) *Future {
	if ctx == nil {
		ctx = context.Background()
	}

	o.mu.Lock()
	if o.started || o.state.Terminal() {
		o.mu.Unlock()
		return o.future
	}
	o.started = true
	o.start = time.Now()
	o.ctx, o.span = o.p.Tracer.Start(ctx, "replyflow.operation "+o.p.Name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("replyflow.operation", o.p.Name),
			attribute.String("replyflow.topic", o.p.Topic),
			attribute.Int("replyflow.retries", o.p.Retries),
		),
	)
	o.mu.Unlock()

	if h := o.p.Hooks.OnStart; h != nil {
		h(o.p.Name)
	}

	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			o.cancel(context.Cause(ctx))
		})
		o.mu.Lock()
		o.stopWatch = stop
		o.mu.Unlock()
	}

	go o.launch(1)
	return o.future
}

// Cancel resolves the operation to CANCELLED unless it already finished. It
// reports whether this call decided the outcome.
func (o *Operation) Cancel() bool {
	return o.cancel(nil)
}

func (o *Operation) cancel(cause error) bool {
	o.mu.Lock()
	if o.state.Terminal() {
		o.mu.Unlock()
		return false
	}

	err := errspkg.ErrOperationCancelled
	if cause != nil {
		err = fmt.Errorf("%w: %w", errspkg.ErrOperationCancelled, cause)
	}
	o.finishLocked(o.outcomeLocked(ResultCancelled, "operation cancelled", err))
	return true
}

// launch runs attempt n: build, register, arm the deadline, publish.
func (o *Operation) launch(n int) {
	o.mu.Lock()
	if o.state.Terminal() {
		o.mu.Unlock()
		return
	}
	correlationID := o.p.NewCorrelationID()
	o.mu.Unlock()

	req, err := o.p.Build(n, correlationID)
	var payload []byte
	if err == nil {
		payload, err = jsoncodec.EncodeRequest(req.Payload)
	}
	if err != nil {
		o.abort(n, correlationID, fmt.Errorf("build request: %w", err))
		return
	}

	values := req.Values
	if len(values) == 0 {
		values = []string{correlationID}
	}
	l := &attemptListener{op: o, attempt: n}

	o.mu.Lock()
	if o.state.Terminal() {
		o.mu.Unlock()
		return
	}
	if err := o.p.Forwarder.Register(values, l); err != nil {
		o.mu.Unlock()
		o.abort(n, correlationID, fmt.Errorf("register attempt: %w", err))
		return
	}
	o.attempt = n
	o.correlationID = correlationID
	o.values = values
	o.listener = l
	o.state = Waiting
	o.armLocked(n)
	ctx := o.ctx
	info := o.attemptInfoLocked()
	o.mu.Unlock()

	if h := o.p.Hooks.OnAttempt; h != nil {
		h(info)
	}

	md := metadatapkg.ForAttempt(o.p.Name, correlationID, n)
	for k, v := range req.Metadata {
		md[k] = v
	}
	if err := o.p.Sink.Publish(ctx, o.p.Topic, payload, md); err != nil {
		o.abort(n, correlationID, fmt.Errorf("publish attempt %d: %w", n, err))
	}
}

// abort fails the operation because attempt n could not be sent. Failures
// of attempts that were already superseded are only logged.
func (o *Operation) abort(n int, correlationID string, err error) {
	o.mu.Lock()
	if o.state.Terminal() {
		o.mu.Unlock()
		return
	}
	if o.attempt > n {
		o.mu.Unlock()
		o.log.Error("Superseded attempt failed", err, loggingpkg.LogFields{"attempt": n})
		return
	}
	o.attempt = n
	o.correlationID = correlationID
	o.finishLocked(o.outcomeLocked(ResultFailure, err.Error(), err))
}

func (o *Operation) armLocked(n int) {
	if o.timer != nil {
		o.timer.Stop()
	}
	o.deadlineSeq++
	seq := o.deadlineSeq
	o.timer = time.AfterFunc(o.p.Timeout, func() {
		o.onDeadline(n, seq)
	})
}

func (o *Operation) onDeadline(n int, seq uint64) {
	o.mu.Lock()
	if o.state != Waiting || o.attempt != n || o.deadlineSeq != seq {
		o.mu.Unlock()
		return
	}

	o.unregisterLocked()
	if n <= o.p.Retries {
		o.state = Retrying
		o.timer = nil
		correlationID := o.correlationID
		o.mu.Unlock()

		o.log.Debug("Attempt timed out, retrying", loggingpkg.LogFields{
			"attempt":        n,
			"correlation_id": correlationID,
		})
		o.launch(n + 1)
		return
	}

	msg := fmt.Sprintf("no response after %d attempt(s) of %s", n, o.p.Timeout)
	o.finishLocked(o.outcomeLocked(ResultTimeout, msg, fmt.Errorf("%w: %s", errspkg.ErrOperationTimedOut, msg)))
}

func (o *Operation) onResponse(n int, raw string, parsed any) {
	status, err := o.classify(raw, parsed)

	o.mu.Lock()
	if o.state != Waiting || o.attempt != n {
		o.mu.Unlock()
		o.log.Trace("Ignoring stale response", loggingpkg.LogFields{"attempt": n})
		return
	}

	if err == nil && status != StillWaiting && status != Success && status != Failure {
		err = fmt.Errorf("%w: %d", errspkg.ErrUnrecognizedStatus, int(status))
	}
	if err != nil {
		if o.p.Unclassified == UnclassifiedIgnore {
			correlationID := o.correlationID
			o.mu.Unlock()
			o.log.Error("Ignoring unclassifiable response", err, loggingpkg.LogFields{
				"attempt":        n,
				"correlation_id": correlationID,
			})
			return
		}
		out := o.outcomeLocked(ResultFailure, "response could not be classified", err)
		out.Response, out.Raw = parsed, raw
		o.finishLocked(out)
		return
	}

	switch status {
	case StillWaiting:
		if o.p.Deadline == DeadlineResetOnProgress {
			o.armLocked(n)
		}
		info := o.attemptInfoLocked()
		o.mu.Unlock()
		if h := o.p.Hooks.OnProgress; h != nil {
			h(info)
		}
	case Success:
		out := o.outcomeLocked(ResultSuccess, "operation succeeded", nil)
		out.Response, out.Raw = parsed, raw
		o.finishLocked(out)
	default:
		out := o.outcomeLocked(ResultFailure, "response reported failure", nil)
		out.Response, out.Raw = parsed, raw
		o.finishLocked(out)
	}
}

func (o *Operation) classify(raw string, parsed any) (status Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: classifier panicked: %v", errspkg.ErrUnrecognizedStatus, r)
		}
	}()
	return o.p.Classify(raw, parsed)
}

func (o *Operation) outcomeLocked(result Result, msg string, err error) Outcome {
	end := time.Now()
	start := o.start
	if start.IsZero() {
		start = end
	}
	return Outcome{
		Result:        result,
		Message:       msg,
		Attempts:      o.attempt,
		CorrelationID: o.correlationID,
		Start:         start,
		End:           end,
		Err:           err,
	}
}

func (o *Operation) attemptInfoLocked() Attempt {
	return Attempt{
		Operation:     o.p.Name,
		Number:        o.attempt,
		CorrelationID: o.correlationID,
		Topic:         o.p.Topic,
		StartedAt:     o.start,
	}
}

func (o *Operation) unregisterLocked() {
	if o.listener == nil {
		return
	}
	if err := o.p.Forwarder.Unregister(o.values, o.listener); err != nil {
		o.log.Error("Failed to unregister attempt", err, loggingpkg.LogFields{"attempt": o.attempt})
	}
	o.listener = nil
	o.values = nil
}

// finishLocked moves to the terminal state for out, releases the listener
// and timer, and unlocks before resolving the future and running hooks.
func (o *Operation) finishLocked(out Outcome) {
	o.state = out.Result.State()
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.unregisterLocked()
	stop, span := o.stopWatch, o.span
	o.stopWatch = nil
	o.mu.Unlock()

	if stop != nil {
		stop()
	}
	o.future.complete(out)

	if span != nil {
		span.SetAttributes(
			attribute.String("replyflow.result", string(out.Result)),
			attribute.Int("replyflow.attempts", out.Attempts),
		)
		if out.Succeeded() {
			span.SetStatus(codes.Ok, out.Message)
		} else {
			if out.Err != nil {
				span.RecordError(out.Err)
			}
			span.SetStatus(codes.Error, out.Message)
		}
		span.End()
	}

	if h := o.p.Hooks.OnComplete; h != nil {
		h(o.p.Name, out)
	}
}

// attemptListener binds responses to the attempt that registered it, so a
// late delivery to an old attempt's listener is recognised as stale.
type attemptListener struct {
	op      *Operation
	attempt int
}

func (l *attemptListener) OnMessage(raw string, parsed any) {
	l.op.onResponse(l.attempt, raw, parsed)
}
