package runtime

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/replyflow/internal/runtime/operation"
)

// OperationMetrics tracks operation outcomes and forwarder dispatch.
type OperationMetrics struct {
	mu sync.RWMutex

	// Per-operation counts
	operations map[string]*OperationStats

	// Prometheus collectors
	startedTotal    *prometheus.CounterVec
	outcomesTotal   *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	inflight        *prometheus.GaugeVec
	durationSeconds *prometheus.HistogramVec
	attemptsHist    *prometheus.HistogramVec
	matchedTotal    *prometheus.CounterVec
	unmatchedTotal  *prometheus.CounterVec
	panicsTotal     *prometheus.CounterVec

	registerer prometheus.Registerer
	registered bool
}

// OperationStats holds the counts for one operation name.
type OperationStats struct {
	Started       uint64        `json:"started"`
	InFlight      uint64        `json:"in_flight"`
	Succeeded     uint64        `json:"succeeded"`
	Failed        uint64        `json:"failed"`
	TimedOut      uint64        `json:"timed_out"`
	Cancelled     uint64        `json:"cancelled"`
	Retries       uint64        `json:"retries"`
	TotalDuration time.Duration `json:"total_duration"`
	LastOutcomeAt time.Time     `json:"last_outcome_at,omitempty"`
}

// Completed is the number of operations that reached a terminal state.
func (s OperationStats) Completed() uint64 {
	return s.Succeeded + s.Failed + s.TimedOut + s.Cancelled
}

// AverageDuration is the mean duration of completed operations.
func (s OperationStats) AverageDuration() time.Duration {
	n := s.Completed()
	if n == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(n)
}

// OperationMetricsSnapshot provides a point-in-time view of operation metrics.
type OperationMetricsSnapshot struct {
	Operations  map[string]OperationStats `json:"operations"`
	CollectedAt time.Time                 `json:"collected_at"`
}

func newCounterVec(subsystem, name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "replyflow",
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newHistogramVec(subsystem, name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "replyflow",
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

// NewOperationMetrics creates a collector. A nil registerer means the
// Prometheus default registerer.
func NewOperationMetrics(registerer prometheus.Registerer) *OperationMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OperationMetrics{
		operations:    make(map[string]*OperationStats),
		registerer:    registerer,
		startedTotal:  newCounterVec("operation", "started_total", "Total number of operations started", []string{"operation"}),
		outcomesTotal: newCounterVec("operation", "outcomes_total", "Total number of operations completed, by result", []string{"operation", "result"}),
		retriesTotal:  newCounterVec("operation", "retries_total", "Total number of attempts published after the first", []string{"operation"}),
		inflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "replyflow",
				Subsystem: "operation",
				Name:      "in_flight",
				Help:      "Operations started and not yet completed",
			},
			[]string{"operation"},
		),
		durationSeconds: newHistogramVec("operation", "duration_seconds", "Time from start to outcome", prometheus.DefBuckets, []string{"operation", "result"}),
		attemptsHist:    newHistogramVec("operation", "attempts", "Attempts used per completed operation", []float64{1, 2, 3, 5, 10}, []string{"operation"}),
		matchedTotal:    newCounterVec("forwarder", "matched_total", "Responses delivered to at least one listener", []string{"shape"}),
		unmatchedTotal:  newCounterVec("forwarder", "unmatched_total", "Responses dropped because no listener matched", []string{"shape"}),
		panicsTotal:     newCounterVec("forwarder", "listener_panics_total", "Listener panics recovered during dispatch", []string{"shape"}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *OperationMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.startedTotal,
		m.outcomesTotal,
		m.retriesTotal,
		m.inflight,
		m.durationSeconds,
		m.attemptsHist,
		m.matchedTotal,
		m.unmatchedTotal,
		m.panicsTotal,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// RecordStart records an operation starting.
func (m *OperationMetrics) RecordStart(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.getOrCreate(name)
	stats.Started++
	stats.InFlight++

	m.startedTotal.WithLabelValues(name).Inc()
	m.inflight.WithLabelValues(name).Set(float64(stats.InFlight))
}

// RecordAttempt records a published attempt. Only attempts after the first
// count as retries.
func (m *OperationMetrics) RecordAttempt(a operation.Attempt) {
	if a.Number <= 1 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.getOrCreate(a.Operation).Retries++
	m.retriesTotal.WithLabelValues(a.Operation).Inc()
}

// RecordOutcome records a terminal outcome.
func (m *OperationMetrics) RecordOutcome(name string, out operation.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.getOrCreate(name)
	switch out.Result {
	case operation.ResultSuccess:
		stats.Succeeded++
	case operation.ResultFailure:
		stats.Failed++
	case operation.ResultTimeout:
		stats.TimedOut++
	default:
		stats.Cancelled++
	}
	if stats.InFlight > 0 {
		stats.InFlight--
	}
	stats.TotalDuration += out.Duration()
	stats.LastOutcomeAt = out.End

	result := string(out.Result)
	m.outcomesTotal.WithLabelValues(name, result).Inc()
	m.inflight.WithLabelValues(name).Set(float64(stats.InFlight))
	m.durationSeconds.WithLabelValues(name, result).Observe(out.Duration().Seconds())
	m.attemptsHist.WithLabelValues(name).Observe(float64(out.Attempts))
}

// Hooks returns operation hooks feeding this collector.
func (m *OperationMetrics) Hooks() operation.Hooks {
	return operation.Hooks{
		OnStart:    m.RecordStart,
		OnAttempt:  m.RecordAttempt,
		OnComplete: m.RecordOutcome,
	}
}

// Matched implements forward.Observer.
func (m *OperationMetrics) Matched(shape string, listeners int) {
	m.matchedTotal.WithLabelValues(shape).Inc()
}

// Unmatched implements forward.Observer.
func (m *OperationMetrics) Unmatched(shape string) {
	m.unmatchedTotal.WithLabelValues(shape).Inc()
}

// ListenerPanicked implements forward.Observer.
func (m *OperationMetrics) ListenerPanicked(shape string) {
	m.panicsTotal.WithLabelValues(shape).Inc()
}

// GetSnapshot returns a copy of the per-operation counts.
func (m *OperationMetrics) GetSnapshot() OperationMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := OperationMetricsSnapshot{
		Operations:  make(map[string]OperationStats, len(m.operations)),
		CollectedAt: time.Now(),
	}
	for name, stats := range m.operations {
		snapshot.Operations[name] = *stats
	}
	return snapshot
}

// GetOperationStats returns the counts for name, or false if it never ran.
func (m *OperationMetrics) GetOperationStats(name string) (OperationStats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats, ok := m.operations[name]
	if !ok {
		return OperationStats{}, false
	}
	return *stats, true
}

func (m *OperationMetrics) getOrCreate(name string) *OperationStats {
	if stats, ok := m.operations[name]; ok {
		return stats
	}
	stats := &OperationStats{}
	m.operations[name] = stats
	return stats
}

// Reset resets all metrics (useful for testing).
func (m *OperationMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.operations = make(map[string]*OperationStats)
	m.startedTotal.Reset()
	m.outcomesTotal.Reset()
	m.retriesTotal.Reset()
	m.inflight.Reset()
	m.durationSeconds.Reset()
	m.attemptsHist.Reset()
	m.matchedTotal.Reset()
	m.unmatchedTotal.Reset()
	m.panicsTotal.Reset()
}
