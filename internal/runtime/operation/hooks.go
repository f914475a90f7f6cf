package operation

import (
	"time"

	loggingpkg "github.com/drblury/replyflow/internal/runtime/logging"
)

// Attempt describes one published request.
type Attempt struct {
	Operation     string
	Number        int
	CorrelationID string
	Topic         string
	StartedAt     time.Time
}

// Hooks are callbacks around an operation's lifecycle. All of them are
// optional and run outside the operation's lock.
type Hooks struct {
	// OnStart runs once when the operation starts.
	OnStart func(name string)
	// OnAttempt runs after each request is registered, before it is published.
	OnAttempt func(a Attempt)
	// OnProgress runs for every response classified as still waiting.
	OnProgress func(a Attempt)
	// OnComplete runs once with the final outcome.
	OnComplete func(name string, outcome Outcome)
}

// Merge returns hooks that call h first and then other.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnStart:    chain(h.OnStart, other.OnStart),
		OnAttempt:  chain(h.OnAttempt, other.OnAttempt),
		OnProgress: chain(h.OnProgress, other.OnProgress),
		OnComplete: chain2(h.OnComplete, other.OnComplete),
	}
}

func chain[T any](a, b func(T)) func(T) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(v T) {
		a(v)
		b(v)
	}
}

func chain2[A, B any](a, b func(A, B)) func(A, B) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(x A, y B) {
		a(x, y)
		b(x, y)
	}
}

// LoggingHooks logs attempts at debug level and outcomes at info, or error
// for anything but success.
func LoggingHooks(log loggingpkg.ServiceLogger) Hooks {
	log = loggingpkg.OrDiscard(log)
	return Hooks{
		OnAttempt: func(a Attempt) {
			log.Debug("Operation attempt", loggingpkg.LogFields{
				"operation":      a.Operation,
				"attempt":        a.Number,
				"correlation_id": a.CorrelationID,
				"topic":          a.Topic,
			})
		},
		OnProgress: func(a Attempt) {
			log.Debug("Operation still waiting", loggingpkg.LogFields{
				"operation":      a.Operation,
				"attempt":        a.Number,
				"correlation_id": a.CorrelationID,
			})
		},
		OnComplete: func(name string, out Outcome) {
			fields := loggingpkg.LogFields{
				"operation":      name,
				"result":         string(out.Result),
				"attempts":       out.Attempts,
				"correlation_id": out.CorrelationID,
				"duration_ms":    out.Duration().Milliseconds(),
			}
			if out.Succeeded() {
				log.Info("Operation completed", fields)
				return
			}
			log.Error("Operation completed", out.Err, fields)
		},
	}
}
