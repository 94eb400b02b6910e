// Package metrics exposes policyforge's Prometheus metrics.
//
// A single Collector implements the Metrics interfaces of the rules engine,
// the policy manager, the enhancement worker and the scheduler:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	eng := engine.New(cfg.Engine, logger).WithMetrics(collector)
//	mgr := manager.New(...).WithMetrics(collector)
//	_ = collector.WatchCache("renderer", renderCache)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// # Metrics
//
//   - rule_evaluations_total{outcome} and evaluation_duration_seconds
//   - catalog_loads_total{result} and catalog_templates
//   - assemblies_total{template_code}, assembly_duration_seconds{template_code}
//     and assembled_clauses
//   - publishes_total{result}
//   - enhancement_jobs_total{status}, enhancement_job_duration_seconds{status}
//     and enhancement_clauses_total{result}
//   - policies_expired_total and jobs_requeued_total{result}
//   - cache_entries, cache_hits_total and cache_misses_total per watched cache
//
// All names carry the configured namespace (default "policyforge") and
// optional subsystem.
//
// # Cardinality
//
// The template_code label is bounded by a CardinalityLimiter; codes past
// DefaultMaxTemplateLabels are reported as "other".
//
// # Disabled collection
//
// When telemetry.metrics.enabled is false the Record methods return
// immediately. The registry still exists so the handler serves an empty
// exposition.
package metrics
