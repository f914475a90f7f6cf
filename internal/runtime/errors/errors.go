package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrKeyValueMismatch   = sterrors.New("replyflow: key/value mismatch")
	ErrForwarderRequired  = sterrors.New("replyflow: forwarder is required")
	ErrListenerRequired   = sterrors.New("replyflow: listener is required")
	ErrPublisherRequired  = sterrors.New("replyflow: publisher is required")
	ErrTopicRequired      = sterrors.New("replyflow: topic is required")
	ErrBuilderRequired    = sterrors.New("replyflow: request builder is required")
	ErrClassifierRequired = sterrors.New("replyflow: status classifier is required")
	ErrSourceRequired     = sterrors.New("replyflow: subscription source is required")
	ErrDecoderRequired    = sterrors.New("replyflow: decoder is required")
	ErrConfigRequired     = sterrors.New("replyflow: configuration is required")
	ErrLoggerRequired     = sterrors.New("replyflow: logger is required")
	ErrServiceRequired    = sterrors.New("replyflow: service is required")
	ErrUnrecognizedStatus = sterrors.New("replyflow: unrecognized response status")
	ErrTimeoutRequired    = sterrors.New("replyflow: operation timeout must be positive")
	ErrOperationTimedOut  = sterrors.New("replyflow: operation timed out")
	ErrOperationCancelled = sterrors.New("replyflow: operation cancelled")

	// ErrListenerNotComparable rejects listeners that cannot be unregistered
	// by identity.
	ErrListenerNotComparable = sterrors.New("replyflow: listener is not comparable")
)

// ConfigValidationError wraps the joined errors returned by Config.Validate.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("replyflow: invalid configuration: %v", e.Err)
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError returns nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}

// KeyValueMismatch reports a tuple whose arity does not match the key shape.
func KeyValueMismatch(want, got int) error {
	return fmt.Errorf("%w: expected %d values, got %d", ErrKeyValueMismatch, want, got)
}
