package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"diligence/internal/evidence/registry/providers"
)

// Metrics provides observability for registry fan-out.
type Metrics struct {
	// Registry call latencies by source and outcome ("ok", "failed", "skipped")
	RegistryLatency *prometheus.HistogramVec

	// Registry failures by source and error category
	RegistryFailures *prometheus.CounterVec

	// Wall-clock duration of a full four-registry aggregation
	AggregateLatency prometheus.Histogram
}

// NewMetrics registers the registry metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RegistryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "diligence_registry_request_duration_seconds",
			Help:    "Duration of Portal da Transparência registry calls by source and outcome",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"source", "outcome"}),

		RegistryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "diligence_registry_failures_total",
			Help: "Registry calls that degraded to an empty result, by source and category",
		}, []string{"source", "category"}),

		AggregateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "diligence_registry_aggregate_duration_seconds",
			Help:    "Duration of a complete fan-out across the core registries",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		}),
	}
}

// ObserveRegistry records one registry call.
func (m *Metrics) ObserveRegistry(source providers.Source, outcome string, d time.Duration) {
	if m != nil {
		m.RegistryLatency.WithLabelValues(string(source), outcome).Observe(d.Seconds())
	}
}

// IncrementFailure records a degraded registry call.
func (m *Metrics) IncrementFailure(source providers.Source, category providers.ErrorCategory) {
	if m != nil {
		m.RegistryFailures.WithLabelValues(string(source), string(category)).Inc()
	}
}

// ObserveAggregate records the total fan-out duration.
func (m *Metrics) ObserveAggregate(d time.Duration) {
	if m != nil {
		m.AggregateLatency.Observe(d.Seconds())
	}
}
