package runtime

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/replyflow/internal/runtime/operation"
)

func outcome(result operation.Result, attempts int, d time.Duration) operation.Outcome {
	start := time.Now()
	return operation.Outcome{Result: result, Attempts: attempts, Start: start, End: start.Add(d)}
}

func TestOperationMetrics_RecordOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOperationMetrics(reg)
	require.NoError(t, m.Register())

	m.RecordStart("provision")
	m.RecordStart("provision")
	m.RecordStart("provision")
	m.RecordOutcome("provision", outcome(operation.ResultSuccess, 1, time.Second))
	m.RecordOutcome("provision", outcome(operation.ResultTimeout, 3, 3*time.Second))

	stats, ok := m.GetOperationStats("provision")
	require.True(t, ok)
	assert.Equal(t, uint64(3), stats.Started)
	assert.Equal(t, uint64(1), stats.InFlight)
	assert.Equal(t, uint64(1), stats.Succeeded)
	assert.Equal(t, uint64(1), stats.TimedOut)
	assert.Equal(t, uint64(2), stats.Completed())
	assert.Equal(t, 2*time.Second, stats.AverageDuration())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomesTotal.WithLabelValues("provision", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomesTotal.WithLabelValues("provision", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inflight.WithLabelValues("provision")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.durationSeconds))
}

func TestOperationMetrics_RetriesSkipFirstAttempt(t *testing.T) {
	m := NewOperationMetrics(prometheus.NewRegistry())

	for n := 1; n <= 3; n++ {
		m.RecordAttempt(operation.Attempt{Operation: "query", Number: n})
	}

	stats, ok := m.GetOperationStats("query")
	require.True(t, ok)
	assert.Equal(t, uint64(2), stats.Retries)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.retriesTotal.WithLabelValues("query")))
}

func TestOperationMetrics_ForwarderObserver(t *testing.T) {
	m := NewOperationMetrics(prometheus.NewRegistry())

	m.Matched("requestId", 2)
	m.Matched("requestId", 1)
	m.Unmatched("requestId")
	m.ListenerPanicked("requestId")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.matchedTotal.WithLabelValues("requestId")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.unmatchedTotal.WithLabelValues("requestId")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.panicsTotal.WithLabelValues("requestId")))
}

func TestOperationMetrics_Hooks(t *testing.T) {
	m := NewOperationMetrics(prometheus.NewRegistry())
	hooks := m.Hooks()

	hooks.OnStart("query")
	hooks.OnAttempt(operation.Attempt{Operation: "query", Number: 2})
	hooks.OnComplete("query", outcome(operation.ResultCancelled, 2, 0))

	stats, ok := m.GetOperationStats("query")
	require.True(t, ok)
	assert.Equal(t, uint64(1), stats.Cancelled)
	assert.Equal(t, uint64(1), stats.Retries)
	assert.Zero(t, stats.InFlight)
}

func TestOperationMetrics_RegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOperationMetrics(reg)

	require.NoError(t, m.Register())
	require.NoError(t, m.Register())

	// Collectors already present on the registry are tolerated.
	other := NewOperationMetrics(reg)
	assert.NoError(t, other.Register())
}

func TestOperationMetrics_SnapshotIsACopy(t *testing.T) {
	m := NewOperationMetrics(prometheus.NewRegistry())
	m.RecordStart("a")
	m.RecordStart("b")

	snapshot := m.GetSnapshot()
	require.Len(t, snapshot.Operations, 2)
	assert.False(t, snapshot.CollectedAt.IsZero())

	m.RecordStart("a")
	assert.Equal(t, uint64(1), snapshot.Operations["a"].Started)

	_, ok := m.GetOperationStats("missing")
	assert.False(t, ok)
}

func TestOperationMetrics_Reset(t *testing.T) {
	m := NewOperationMetrics(prometheus.NewRegistry())
	m.RecordStart("a")
	m.Unmatched("k")

	m.Reset()

	assert.Empty(t, m.GetSnapshot().Operations)
	assert.Zero(t, testutil.CollectAndCount(m.unmatchedTotal))
}

func TestOperationMetrics_Concurrent(t *testing.T) {
	m := NewOperationMetrics(prometheus.NewRegistry())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordStart("c")
			m.RecordOutcome("c", outcome(operation.ResultFailure, 1, time.Millisecond))
		}()
	}
	wg.Wait()

	stats, _ := m.GetOperationStats("c")
	assert.Equal(t, uint64(20), stats.Failed)
	assert.Zero(t, stats.InFlight)
}
