// Package metadata carries the transport headers attached to outbound
// requests. Correlation itself never depends on headers; they only help
// operators trace a request across brokers.
package metadata

import (
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	KeyCorrelationID = "correlation_id"
	KeyAttempt       = "replyflow_attempt"
	KeyOperation     = "replyflow_operation"
)

// Metadata represents the headers carried alongside a message.
type Metadata map[string]string

// New constructs a Metadata map from alternating key/value pairs. A trailing
// key without a value is ignored.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}

// ForAttempt builds the headers for one attempt of an operation.
func ForAttempt(operation, correlationID string, attempt int) Metadata {
	return New(
		KeyOperation, operation,
		KeyCorrelationID, correlationID,
		KeyAttempt, strconv.Itoa(attempt),
	)
}

// Clone returns a shallow copy, never nil.
func (m Metadata) Clone() Metadata {
	cloned := make(Metadata, len(m))
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// With returns a copy containing the extra entry.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.Clone()
	cloned[key] = value
	return cloned
}

// ToWatermill copies the entries into a Watermill metadata map.
func (m Metadata) ToWatermill() message.Metadata {
	wm := make(message.Metadata, len(m))
	for k, v := range m {
		wm[k] = v
	}
	return wm
}

// FromWatermill copies Watermill metadata into a Metadata map.
func FromWatermill(md message.Metadata) Metadata {
	result := make(Metadata, len(md))
	for k, v := range md {
		result[k] = v
	}
	return result
}
