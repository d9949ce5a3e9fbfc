package narration

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK            = "ok"
	outcomeFailed        = "failed"
	outcomeNoData        = "no_data"
	outcomeConfiguration = "configuration_error"
)

// Metrics provides observability for compliance narration.
type Metrics struct {
	Outcomes *prometheus.CounterVec
	Latency  prometheus.Histogram
	Tokens   *prometheus.CounterVec
}

// NewMetrics registers the narration metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "diligence_narration_total",
			Help: "Compliance narration attempts by outcome",
		}, []string{"outcome"}),

		Latency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "diligence_narration_duration_seconds",
			Help:    "Duration of chat-completion calls",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}),

		Tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "diligence_narration_tokens_total",
			Help: "Tokens reported by the language model, by kind",
		}, []string{"kind"}),
	}
}

func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveLatency(d time.Duration) {
	if m != nil {
		m.Latency.Observe(d.Seconds())
	}
}

func (m *Metrics) AddTokens(prompt, completion *int) {
	if m == nil {
		return
	}
	if prompt != nil {
		m.Tokens.WithLabelValues("prompt").Add(float64(*prompt))
	}
	if completion != nil {
		m.Tokens.WithLabelValues("completion").Add(float64(*completion))
	}
}
