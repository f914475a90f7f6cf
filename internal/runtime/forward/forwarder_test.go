package forward

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/replyflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/replyflow/internal/runtime/logging"
	"github.com/drblury/replyflow/internal/runtime/selector"
)

var twoKeyShape = selector.Paths([]string{"text1"}, []string{"text2"})

type countingListener struct {
	calls atomic.Int32
	raws  chan string
}

func newCountingListener() *countingListener {
	return &countingListener{raws: make(chan string, 16)}
}

func (c *countingListener) OnMessage(raw string, _ any) {
	c.calls.Add(1)
	select {
	case c.raws <- raw:
	default:
	}
}

func message(text1, text2 string) map[string]any {
	return map[string]any{"text1": text1, "text2": text2}
}

func TestRegisterArityMismatch(t *testing.T) {
	f := New(twoKeyShape)
	l := newCountingListener()

	for _, values := range [][]string{nil, {}, {"hello"}, {"a", "b", "c"}} {
		err := f.Register(values, l)
		assert.ErrorIs(t, err, errspkg.ErrKeyValueMismatch, "register %v", values)

		err = f.Unregister(values, l)
		assert.ErrorIs(t, err, errspkg.ErrKeyValueMismatch, "unregister %v", values)
	}
	assert.Zero(t, f.Size())
}

func TestRegisterRequiresListener(t *testing.T) {
	f := New(twoKeyShape)
	assert.ErrorIs(t, f.Register([]string{"a", "b"}, nil), errspkg.ErrListenerRequired)
}

type sliceListener struct {
	raws []string
}

func (s sliceListener) OnMessage(string, any) {}

func TestRegisterRejectsNonComparableListener(t *testing.T) {
	f := New(twoKeyShape)

	err := f.Register([]string{"a", "b"}, sliceListener{raws: []string{"seen"}})
	assert.ErrorIs(t, err, errspkg.ErrListenerNotComparable)
	assert.ErrorContains(t, err, "sliceListener")
	assert.Zero(t, f.Size())

	l := &sliceListener{}
	require.NoError(t, f.Register([]string{"a", "b"}, l))
	require.NoError(t, f.Unregister([]string{"a", "b"}, l))
	assert.Zero(t, f.Size())
}

func TestDispatchExactTuple(t *testing.T) {
	f := New(twoKeyShape)
	l := newCountingListener()
	require.NoError(t, f.Register([]string{"hello", "world"}, l))

	f.OnMessage("match", message("hello", "world"))
	f.OnMessage("swapped", message("world", "hello"))
	f.OnMessage("partial", map[string]any{"text1": "hello"})
	f.OnMessage("other", message("hello", "there"))

	assert.EqualValues(t, 1, l.calls.Load())
	assert.Equal(t, "match", <-l.raws)
}

func TestEmptyShapeMatchesEveryMessage(t *testing.T) {
	f := New(nil)
	l := newCountingListener()
	require.NoError(t, f.Register(nil, l))

	f.OnMessage("first", message("a", "b"))
	f.OnMessage("second", "scalar")

	assert.EqualValues(t, 2, l.calls.Load())
}

func TestTuplesDoNotCollide(t *testing.T) {
	f := New(twoKeyShape)
	l := newCountingListener()
	require.NoError(t, f.Register([]string{"a:b", "c"}, l))

	f.OnMessage("", message("a", "b:c"))
	f.OnMessage("", message("a:", "bc"))
	assert.Zero(t, l.calls.Load())
}

func TestFanOutInRegistrationOrder(t *testing.T) {
	f := New(twoKeyShape)
	var order []string
	first := ListenFunc(func(string, any) { order = append(order, "first") })
	second := ListenFunc(func(string, any) { order = append(order, "second") })
	third := ListenFunc(func(string, any) { order = append(order, "third") })

	values := []string{"hello", "world"}
	require.NoError(t, f.Register(values, first))
	require.NoError(t, f.Register(values, second))
	require.NoError(t, f.Register(values, third))
	assert.Equal(t, 3, f.Size())

	f.OnMessage("", message("hello", "world"))
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestFanOutIsolatesPanics(t *testing.T) {
	capture := watermill.NewCaptureLogger()
	f := New(twoKeyShape, WithLogger(loggingpkg.NewWatermillServiceLogger(capture)))

	values := []string{"hello", "world"}
	require.NoError(t, f.Register(values, ListenFunc(func(string, any) { panic("listener exploded") })))
	survivor := newCountingListener()
	require.NoError(t, f.Register(values, survivor))

	assert.NotPanics(t, func() { f.OnMessage("", message("hello", "world")) })
	assert.EqualValues(t, 1, survivor.calls.Load())
	assert.Len(t, capture.Captured()[watermill.ErrorLogLevel], 1)
}

func TestUnregister(t *testing.T) {
	f := New(twoKeyShape)
	values := []string{"hello", "world"}
	l1 := newCountingListener()
	l2 := newCountingListener()
	require.NoError(t, f.Register(values, l1))
	require.NoError(t, f.Register(values, l2))

	require.NoError(t, f.Unregister(values, l1))
	f.OnMessage("", message("hello", "world"))

	assert.Zero(t, l1.calls.Load())
	assert.EqualValues(t, 1, l2.calls.Load())

	require.NoError(t, f.Unregister(values, l2))
	assert.Zero(t, f.Size())
}

func TestUnregisterUnknownIsNoop(t *testing.T) {
	f := New(twoKeyShape)
	l := newCountingListener()
	other := newCountingListener()
	require.NoError(t, f.Register([]string{"a", "b"}, l))

	assert.NoError(t, f.Unregister([]string{"x", "y"}, l))
	assert.NoError(t, f.Unregister([]string{"a", "b"}, other))
	assert.Equal(t, 1, f.Size())
}

func TestDuplicateRegistrationsAreCountedSeparately(t *testing.T) {
	f := New(twoKeyShape)
	l := newCountingListener()
	values := []string{"a", "b"}
	require.NoError(t, f.Register(values, l))
	require.NoError(t, f.Register(values, l))

	f.OnMessage("", message("a", "b"))
	assert.EqualValues(t, 2, l.calls.Load())

	require.NoError(t, f.Unregister(values, l))
	f.OnMessage("", message("a", "b"))
	assert.EqualValues(t, 3, l.calls.Load())
}

func TestListenerMayUnregisterItselfDuringDispatch(t *testing.T) {
	f := New(twoKeyShape)
	values := []string{"a", "b"}
	var self Listener
	var calls int
	self = ListenFunc(func(string, any) {
		calls++
		require.NoError(t, f.Unregister(values, self))
	})
	sibling := newCountingListener()
	require.NoError(t, f.Register(values, self))
	require.NoError(t, f.Register(values, sibling))

	f.OnMessage("", message("a", "b"))
	f.OnMessage("", message("a", "b"))

	assert.Equal(t, 1, calls)
	assert.EqualValues(t, 2, sibling.calls.Load())
}

func TestConcurrentRegisterAndDispatch(t *testing.T) {
	f := New(twoKeyShape)
	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				values := []string{fmt.Sprintf("w%d", w), fmt.Sprintf("%d", i)}
				l := newCountingListener()
				assert.NoError(t, f.Register(values, l))
				f.OnMessage("", message(values[0], values[1]))
				assert.EqualValues(t, 1, l.calls.Load())
				assert.NoError(t, f.Unregister(values, l))
			}
		}(w)
	}
	wg.Wait()

	assert.Zero(t, f.Size())
}

type recordingObserver struct {
	mu        sync.Mutex
	matched   int
	unmatched int
	panics    int
}

func (r *recordingObserver) Matched(string, int) {
	r.mu.Lock()
	r.matched++
	r.mu.Unlock()
}

func (r *recordingObserver) Unmatched(string) {
	r.mu.Lock()
	r.unmatched++
	r.mu.Unlock()
}

func (r *recordingObserver) ListenerPanicked(string) {
	r.mu.Lock()
	r.panics++
	r.mu.Unlock()
}

func TestObserver(t *testing.T) {
	obs := &recordingObserver{}
	f := New(twoKeyShape, WithObserver(obs))
	require.NoError(t, f.Register([]string{"a", "b"}, ListenFunc(func(string, any) { panic("boom") })))

	f.OnMessage("", message("a", "b"))
	f.OnMessage("", message("a", "c"))
	f.OnMessage("", map[string]any{})

	assert.Equal(t, 1, obs.matched)
	assert.Equal(t, 2, obs.unmatched)
	assert.Equal(t, 1, obs.panics)
}

func TestShapeIsCopied(t *testing.T) {
	shape := selector.Paths([]string{"a"})
	f := New(shape)
	shape[0] = selector.NewKey("b")

	assert.True(t, f.Shape().Equal(selector.Paths([]string{"a"})))
}
