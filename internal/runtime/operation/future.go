package operation

import (
	"context"
	"sync"
)

// Future resolves exactly once to an operation's Outcome.
type Future struct {
	done    chan struct{}
	once    sync.Once
	outcome Outcome
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// complete stores o unless the future is already resolved and reports
// whether this call was the one that resolved it.
func (f *Future) complete(o Outcome) bool {
	won := false
	f.once.Do(func() {
		f.outcome = o
		close(f.done)
		won = true
	})
	return won
}

// Done is closed once the outcome is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the outcome is available or ctx is done. Giving up on
// the wait does not cancel the operation.
func (f *Future) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-f.done:
		return f.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Outcome returns the outcome without blocking. The boolean is false while
// the operation is still running.
func (f *Future) Outcome() (Outcome, bool) {
	select {
	case <-f.done:
		return f.outcome, true
	default:
		return Outcome{}, false
	}
}
