package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Call completion statuses.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

var (
	callsStartedTotal   *prometheus.CounterVec
	callsCompletedTotal *prometheus.CounterVec
	callDuration        *prometheus.HistogramVec
	pendingCalls        prometheus.Gauge
	operationsTotal     *prometheus.CounterVec

	metricsOnce       sync.Once
	metricsRegistered bool
)

// CallMetrics records backend call activity. The zero value is usable;
// nothing is recorded until InitMetrics has run.
type CallMetrics struct{}

// NewCallMetrics creates a new CallMetrics instance.
func NewCallMetrics() *CallMetrics {
	return &CallMetrics{}
}

// InitMetrics registers all collectors with the default Prometheus registry.
// Safe to call more than once.
func InitMetrics() {
	metricsOnce.Do(func() {
		callsStartedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretpass_calls_started_total",
				Help: "Total number of secret service method calls issued",
			},
			[]string{"method"},
		)

		callsCompletedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretpass_calls_completed_total",
				Help: "Total number of secret service method calls completed",
			},
			[]string{"method", "status"},
		)

		callDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secretpass_call_duration_seconds",
				Help:    "Round-trip duration of secret service method calls in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method"},
		)

		pendingCalls = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "secretpass_pending_calls",
				Help: "Number of calls awaiting a reply",
			},
		)

		operationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretpass_operations_total",
				Help: "Total number of password operations by outcome",
			},
			[]string{"operation", "status"},
		)

		metricsRegistered = true
	})
}

// RecordCallStarted records a call being issued.
func (m *CallMetrics) RecordCallStarted(method string) {
	if !metricsRegistered {
		return
	}
	callsStartedTotal.WithLabelValues(method).Inc()
	pendingCalls.Inc()
}

// RecordCallCompleted records the terminal state of a call.
func (m *CallMetrics) RecordCallCompleted(method, status string, elapsed time.Duration) {
	if !metricsRegistered {
		return
	}
	callsCompletedTotal.WithLabelValues(method, status).Inc()
	callDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	pendingCalls.Dec()
}

// RecordOperation records the outcome of a password operation
// (lookup, store, clear, search).
func (m *CallMetrics) RecordOperation(operation, status string) {
	if !metricsRegistered {
		return
	}
	operationsTotal.WithLabelValues(operation, status).Inc()
}

// IsMetricsRegistered reports whether InitMetrics has run.
func IsMetricsRegistered() bool { return metricsRegistered }

// GetCallsStartedTotal returns the started-calls counter (for testing).
func GetCallsStartedTotal() *prometheus.CounterVec { return callsStartedTotal }

// GetCallsCompletedTotal returns the completed-calls counter (for testing).
func GetCallsCompletedTotal() *prometheus.CounterVec { return callsCompletedTotal }

// GetPendingCalls returns the pending-calls gauge (for testing).
func GetPendingCalls() prometheus.Gauge { return pendingCalls }

// GetOperationsTotal returns the operations counter (for testing).
func GetOperationsTotal() *prometheus.CounterVec { return operationsTotal }
