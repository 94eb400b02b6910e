package metrics

import (
	"time"

	"ledgerline/policyforge/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics tracks rules engine runs.
//
// Metrics:
//   - policyforge_rule_evaluations_total{outcome}: rules evaluated, by outcome
//   - policyforge_evaluation_duration_seconds: time for one engine run
type EngineMetrics struct {
	ruleOutcomes       *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
}

// NewEngineMetrics creates and registers engine metrics.
func NewEngineMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EngineMetrics {
	em := &EngineMetrics{
		ruleOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_evaluations_total",
				Help:      "Total number of rule evaluations by outcome",
			},
			[]string{"outcome"},
		),
		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of a rules engine run in seconds",
				Buckets:   cfg.DurationBuckets,
			},
		),
	}
	registry.MustRegister(em.ruleOutcomes, em.evaluationDuration)
	return em
}

// RecordOutcome counts one rule outcome.
func (em *EngineMetrics) RecordOutcome(outcome string) {
	em.ruleOutcomes.WithLabelValues(outcome).Inc()
}

// RecordEvaluation observes one engine run.
func (em *EngineMetrics) RecordEvaluation(d time.Duration) {
	em.evaluationDuration.Observe(d.Seconds())
}
