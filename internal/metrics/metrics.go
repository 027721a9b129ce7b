// Package metrics provides Prometheus metrics for boundary operations.
//
// All metrics use the zcore_ prefix. Methods handle a nil receiver
// gracefully, so a nil *Operations acts as a no-op collector and callers
// never need their own enable checks.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Operations tracks boundary-call metrics.
type Operations struct {
	// CallsTotal counts boundary calls by operation and outcome.
	// Labels: op, outcome=[success, soft_misses, fault]
	CallsTotal *prometheus.CounterVec

	// CallDuration tracks boundary call latency by operation.
	CallDuration *prometheus.HistogramVec

	// SoftMissesTotal counts targets reported as soft misses by operation.
	SoftMissesTotal *prometheus.CounterVec

	// EngineStatus counts non-zero engine statuses by operation and errno.
	EngineStatus *prometheus.CounterVec

	// OutputRetries counts reply-buffer regrows after an ENOMEM status.
	OutputRetries prometheus.Counter

	// StreamBytes counts bytes moved through send/receive streams.
	// Labels: direction=[send, receive]
	StreamBytes *prometheus.CounterVec
}

// NewOperations creates operation metrics registered with reg.
//
// Parameters:
//   - reg: Prometheus registerer (typically prometheus.DefaultRegisterer)
//
// Panics if registration fails (expected during initialization only).
func NewOperations(reg prometheus.Registerer) *Operations {
	m := &Operations{
		CallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zcore_operations_total",
				Help: "Total boundary operations by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		CallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zcore_operation_duration_seconds",
				Help:    "Boundary operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		SoftMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zcore_soft_misses_total",
				Help: "Total batch targets treated as soft misses by operation",
			},
			[]string{"op"},
		),
		EngineStatus: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zcore_engine_status_total",
				Help: "Total non-zero engine statuses by operation and errno",
			},
			[]string{"op", "errno"},
		),
		OutputRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "zcore_output_retries_total",
				Help: "Total reply buffer regrows after ENOMEM",
			},
		),
		StreamBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zcore_stream_bytes_total",
				Help: "Total bytes moved through replication streams by direction",
			},
			[]string{"direction"},
		),
	}

	reg.MustRegister(
		m.CallsTotal,
		m.CallDuration,
		m.SoftMissesTotal,
		m.EngineStatus,
		m.OutputRetries,
		m.StreamBytes,
	)

	return m
}

// Null returns nil, which acts as a no-op collector. All Operations
// methods handle a nil receiver gracefully.
func Null() *Operations {
	return nil
}

// RecordCall records one completed boundary call.
//
// Parameters:
//   - op: operation name (snapshot, hold, destroy_snapshots, ...)
//   - outcome: "success", "soft_misses" or "fault"
//   - seconds: call duration in seconds
func (m *Operations) RecordCall(op, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.CallsTotal.WithLabelValues(op, outcome).Inc()
	m.CallDuration.WithLabelValues(op).Observe(seconds)
}

// RecordSoftMisses adds n soft misses for an operation.
func (m *Operations) RecordSoftMisses(op string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SoftMissesTotal.WithLabelValues(op).Add(float64(n))
}

// RecordEngineStatus records a non-zero engine status for an operation.
func (m *Operations) RecordEngineStatus(op string, errno int) {
	if m == nil || errno == 0 {
		return
	}
	m.EngineStatus.WithLabelValues(op, strconv.Itoa(errno)).Inc()
}

// RecordOutputRetry records one reply-buffer regrow.
func (m *Operations) RecordOutputRetry() {
	if m == nil {
		return
	}
	m.OutputRetries.Inc()
}

// RecordStreamBytes adds bytes moved through a stream.
//
// Parameters:
//   - direction: "send" or "receive"
//   - n: bytes moved
func (m *Operations) RecordStreamBytes(direction string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.StreamBytes.WithLabelValues(direction).Add(float64(n))
}
