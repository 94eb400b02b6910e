package metrics

import (
	"time"

	"ledgerline/policyforge/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// EnhancementMetrics tracks the enhancement worker and scheduled maintenance.
//
// Metrics:
//   - policyforge_enhancement_jobs_total{status}
//   - policyforge_enhancement_job_duration_seconds{status}
//   - policyforge_enhancement_clauses_total{result}
//   - policyforge_policies_expired_total
//   - policyforge_jobs_requeued_total{result}: "requeued" or "failed"
type EnhancementMetrics struct {
	jobs        *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	clauses     *prometheus.CounterVec
	expired     prometheus.Counter
	requeued    *prometheus.CounterVec
}

// NewEnhancementMetrics creates and registers enhancement metrics.
func NewEnhancementMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EnhancementMetrics {
	em := &EnhancementMetrics{
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "enhancement_jobs_total",
				Help:      "Total number of finished enhancement jobs by status",
			},
			[]string{"status"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "enhancement_job_duration_seconds",
				Help:      "Duration of enhancement jobs in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"status"},
		),
		clauses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "enhancement_clauses_total",
				Help:      "Total number of clauses sent to the generator by result",
			},
			[]string{"result"},
		),
		expired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policies_expired_total",
				Help:      "Total number of approved policies expired past their review date",
			},
		),
		requeued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "jobs_requeued_total",
				Help:      "Total number of stalled enhancement jobs by result",
			},
			[]string{"result"},
		),
	}
	registry.MustRegister(em.jobs, em.jobDuration, em.clauses, em.expired, em.requeued)
	return em
}

// RecordJob records a finished job.
func (em *EnhancementMetrics) RecordJob(status string, d time.Duration) {
	em.jobs.WithLabelValues(status).Inc()
	em.jobDuration.WithLabelValues(status).Observe(d.Seconds())
}

// RecordClause counts one generator call.
func (em *EnhancementMetrics) RecordClause(ok bool) {
	em.clauses.WithLabelValues(result(ok)).Inc()
}

// RecordExpired adds n expired policies.
func (em *EnhancementMetrics) RecordExpired(n int) {
	em.expired.Add(float64(n))
}

// RecordRequeued adds the outcome of a stale job sweep.
func (em *EnhancementMetrics) RecordRequeued(requeued, failed int) {
	if requeued > 0 {
		em.requeued.WithLabelValues("requeued").Add(float64(requeued))
	}
	if failed > 0 {
		em.requeued.WithLabelValues("failed").Add(float64(failed))
	}
}
