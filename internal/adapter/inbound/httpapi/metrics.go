package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics the mediator's decision path reports.
type Metrics struct {
	DecisionsTotal   *prometheus.CounterVec
	PipelineDuration *prometheus.HistogramVec
	ThreatLevel      *prometheus.GaugeVec
	EvaluateRequests *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		DecisionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quadguard",
				Name:      "decisions_total",
				Help:      "Total number of mediator decisions",
			},
			[]string{"kind", "decision"}, // kind=message/action, decision=allow/deny
		),
		PipelineDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "quadguard",
				Name:      "pipeline_duration_seconds",
				Help:      "Duration of each mediator pipeline stage",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind", "stage"}, // stage=predicate_watcher/threat_watcher/verifier/judge/chief_judge
		),
		ThreatLevel: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "quadguard",
				Name:      "threat_level",
				Help:      "Current per-sender threat level",
			},
			[]string{"sender"},
		),
		EvaluateRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quadguard",
				Name:      "evaluate_requests_total",
				Help:      "Total requests to the synthetic evaluation endpoint",
			},
			[]string{"kind", "result"},
		),
	}
}

// RecordDecision counts one mediator decision. kind is "message" or
// "action". It implements outbound.MetricsRecorder.
func (m *Metrics) RecordDecision(kind string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	m.DecisionsTotal.WithLabelValues(kind, decision).Inc()
}

// ObserveStage records one pipeline stage's duration for a decision of the
// given kind. It implements outbound.MetricsRecorder.
func (m *Metrics) ObserveStage(kind, stage string, seconds float64) {
	m.PipelineDuration.WithLabelValues(kind, stage).Observe(seconds)
}

// SetThreatLevel reports a sender's current threat level. It implements
// outbound.MetricsRecorder.
func (m *Metrics) SetThreatLevel(sender string, level int) {
	m.ThreatLevel.WithLabelValues(sender).Set(float64(level))
}
