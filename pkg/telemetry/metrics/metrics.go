// Package metrics exposes Prometheus collectors for the policy engine:
// validation outcomes, lifecycle operations, and version creation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus collectors for the policy engine.
type Metrics struct {
	validations          *prometheus.CounterVec
	validationViolations prometheus.Counter
	operations           *prometheus.CounterVec
	versionsCreated      prometheus.Counter
	operationDuration    *prometheus.HistogramVec
}

// New creates the engine's Prometheus collectors, registered on the
// default registerer.
func New() *Metrics {
	return NewWith(nil)
}

// NewWith creates the collectors on reg, or the default registerer when
// reg is nil. Tests pass their own registry to avoid duplicate
// registration.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	if reg == nil {
		factory = promauto.With(prometheus.DefaultRegisterer)
	}

	return &Metrics{
		validations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maskwise_policy_validations_total",
				Help: "Total number of policy document validations performed",
			},
			[]string{"result"},
		),

		validationViolations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "maskwise_policy_validation_violations_total",
				Help: "Total number of schema violations reported across all validations",
			},
		),

		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maskwise_policy_operations_total",
				Help: "Total number of policy lifecycle operations",
			},
			[]string{"operation", "result"},
		),

		versionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "maskwise_policy_versions_created_total",
				Help: "Total number of policy versions created",
			},
		),

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "maskwise_policy_operation_duration_seconds",
				Help:    "Duration of policy lifecycle operations in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15), // 100µs to ~1.6s
			},
			[]string{"operation"},
		),
	}
}

// RecordValidation records one validation outcome and the number of
// violations it reported.
func (m *Metrics) RecordValidation(result string, violations int) {
	m.validations.WithLabelValues(result).Inc()
	if violations > 0 {
		m.validationViolations.Add(float64(violations))
	}
}

// RecordOperation records one lifecycle operation and its duration.
func (m *Metrics) RecordOperation(operation, result string, duration time.Duration) {
	m.operations.WithLabelValues(operation, result).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordVersionCreated counts a newly created policy version.
func (m *Metrics) RecordVersionCreated() {
	m.versionsCreated.Inc()
}
