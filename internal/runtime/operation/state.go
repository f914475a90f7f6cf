package operation

import "time"

// State is a position in an operation's lifecycle.
type State int

const (
	Init State = iota
	Waiting
	Retrying
	DoneSuccess
	DoneFailure
	DoneTimeout
	Cancelled
)

var stateNames = [...]string{
	Init:        "INIT",
	Waiting:     "WAITING",
	Retrying:    "RETRYING",
	DoneSuccess: "DONE_SUCCESS",
	DoneFailure: "DONE_FAILURE",
	DoneTimeout: "DONE_TIMEOUT",
	Cancelled:   "CANCELLED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s >= DoneSuccess
}

// Status is what a classifier makes of one response.
type Status int

const (
	StillWaiting Status = iota
	Success
	Failure
)

func (s Status) String() string {
	switch s {
	case StillWaiting:
		return "STILL_WAITING"
	case Success:
		return "SUCCESS"
	case Failure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

// Classifier maps a response to a Status. It must not panic on malformed
// input; an error means the response could not be classified and the
// operation's UnclassifiedPolicy applies.
type Classifier func(raw string, parsed any) (Status, error)

// Result is the terminal classification of an operation.
type Result string

const (
	ResultSuccess   Result = "success"
	ResultFailure   Result = "failure"
	ResultTimeout   Result = "timeout"
	ResultCancelled Result = "cancelled"
)

// State returns the terminal state that produces r.
func (r Result) State() State {
	switch r {
	case ResultSuccess:
		return DoneSuccess
	case ResultFailure:
		return DoneFailure
	case ResultTimeout:
		return DoneTimeout
	default:
		return Cancelled
	}
}

// Outcome is the single value an operation resolves to.
type Outcome struct {
	Result Result
	// Response is the decoded response that ended the operation, if any.
	Response any
	// Raw is the response text as it arrived.
	Raw string
	// Message describes the outcome for humans.
	Message string
	// Attempts is how many requests were published or attempted.
	Attempts int
	// CorrelationID is the value carried by the last attempt.
	CorrelationID string
	Start         time.Time
	End           time.Time
	// Err is set for timeouts, cancellations, unclassifiable responses and
	// build or publish failures.
	Err error
}

// Duration is the time from Start to End.
func (o Outcome) Duration() time.Duration {
	return o.End.Sub(o.Start)
}

// Succeeded reports whether the operation ended in success.
func (o Outcome) Succeeded() bool {
	return o.Result == ResultSuccess
}
