// Package ids produces correlation values for outbound requests.
package ids

import (
	"crypto/rand"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator returns a fresh correlation value on every call.
type Generator func() string

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewCorrelationID returns a time-sortable ULID encoded as a 26-character
// string. Values are strictly increasing within the process.
func NewCorrelationID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Sequence returns a Generator that prefixes a counter, handy for tests that
// need predictable values.
func Sequence(prefix string) Generator {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + strconv.Itoa(n)
	}
}
