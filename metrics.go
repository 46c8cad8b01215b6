package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OperationRegister = "register"
	OperationLogin    = "login"
	OperationLogout   = "logout"
	OperationRefresh  = "refresh"
)

// Metrics observes the outcome of every session operation.
type Metrics interface {
	Observe(operation, outcome string, elapsed time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) Observe(string, string, time.Duration) {}

func normalizeMetrics(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

// PrometheusMetrics exports operation counters and latencies.
type PrometheusMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

var _ Metrics = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics registers the collectors with reg. A nil reg
// leaves them unregistered, which is handy in tests.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "session_auth",
			Name:      "operations_total",
			Help:      "Session operations by outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "session_auth",
			Name:      "operation_duration_seconds",
			Help:      "Session operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.operations, m.duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

func (m *PrometheusMetrics) Observe(operation, outcome string, elapsed time.Duration) {
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// Operations exposes the counter vector, mostly for tests.
func (m *PrometheusMetrics) Operations() *prometheus.CounterVec {
	return m.operations
}
