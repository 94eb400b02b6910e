package metrics

import (
	"time"

	"ledgerline/policyforge/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// PolicyMetrics tracks the catalog, assembly and publish paths.
//
// Metrics:
//   - policyforge_catalog_loads_total{result}
//   - policyforge_catalog_templates: templates in the active catalog
//   - policyforge_assemblies_total{template_code}
//   - policyforge_assembly_duration_seconds{template_code}
//   - policyforge_assembled_clauses: clauses per assembled policy
//   - policyforge_publishes_total{result}
type PolicyMetrics struct {
	catalogLoads     *prometheus.CounterVec
	catalogTemplates prometheus.Gauge
	assemblies       *prometheus.CounterVec
	assemblyDuration *prometheus.HistogramVec
	clauses          prometheus.Histogram
	publishes        *prometheus.CounterVec
}

// NewPolicyMetrics creates and registers policy metrics.
func NewPolicyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PolicyMetrics {
	pm := &PolicyMetrics{
		catalogLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "catalog_loads_total",
				Help:      "Total number of catalog loads by result",
			},
			[]string{"result"},
		),
		catalogTemplates: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "catalog_templates",
				Help:      "Number of templates in the active catalog",
			},
		),
		assemblies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "assemblies_total",
				Help:      "Total number of policy assemblies by template",
			},
			[]string{"template_code"},
		),
		assemblyDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "assembly_duration_seconds",
				Help:      "Duration of policy assembly in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"template_code"},
		),
		clauses: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "assembled_clauses",
				Help:      "Number of clauses in an assembled policy",
				Buckets:   []float64{1, 5, 10, 20, 50, 100, 200},
			},
		),
		publishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "publishes_total",
				Help:      "Total number of version publishes by result",
			},
			[]string{"result"},
		),
	}
	registry.MustRegister(
		pm.catalogLoads,
		pm.catalogTemplates,
		pm.assemblies,
		pm.assemblyDuration,
		pm.clauses,
		pm.publishes,
	)
	return pm
}

// RecordCatalogLoad counts a load; successful loads also set the template
// gauge.
func (pm *PolicyMetrics) RecordCatalogLoad(ok bool, templates int) {
	pm.catalogLoads.WithLabelValues(result(ok)).Inc()
	if ok {
		pm.catalogTemplates.Set(float64(templates))
	}
}

// RecordAssembly records one assembly.
func (pm *PolicyMetrics) RecordAssembly(templateCode string, clauses int, d time.Duration) {
	pm.assemblies.WithLabelValues(templateCode).Inc()
	pm.assemblyDuration.WithLabelValues(templateCode).Observe(d.Seconds())
	pm.clauses.Observe(float64(clauses))
}

// RecordPublish counts a publish.
func (pm *PolicyMetrics) RecordPublish(ok bool) {
	pm.publishes.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
