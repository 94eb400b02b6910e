package metrics

import (
	"sync"
	"time"

	"ledgerline/policyforge/pkg/config"
	"ledgerline/policyforge/pkg/enhance"
	"ledgerline/policyforge/pkg/policy"
	"ledgerline/policyforge/pkg/policy/engine"
	"ledgerline/policyforge/pkg/policy/manager"
	"ledgerline/policyforge/pkg/scheduler"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMaxTemplateLabels bounds the number of distinct template_code label
// values. Codes past the limit are reported as "other".
const DefaultMaxTemplateLabels = 500

// Collector owns every policyforge metric. It satisfies the Metrics
// interfaces of the rules engine, the policy manager, the enhancement worker
// and the scheduler, so one value can be handed to each of them.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	engineMetrics      *EngineMetrics
	policyMetrics      *PolicyMetrics
	enhancementMetrics *EnhancementMetrics
	cacheMetrics       *CacheMetrics

	templates *CardinalityLimiter
}

var (
	_ engine.Metrics    = (*Collector)(nil)
	_ manager.Metrics   = (*Collector)(nil)
	_ enhance.Metrics   = (*Collector)(nil)
	_ scheduler.Metrics = (*Collector)(nil)
)

// NewCollector creates a collector and registers its metrics. A nil registry
// gets a fresh prometheus.NewRegistry(); a nil cfg uses config.Default()'s
// metrics section. Empty namespace and buckets are filled in on a copy.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	var c0 config.MetricsConfig
	if cfg != nil {
		c0 = *cfg
	} else {
		c0 = config.Default().Telemetry.Metrics
	}
	if c0.Namespace == "" {
		c0.Namespace = config.DefaultMetricsNamespace
	}
	if len(c0.DurationBuckets) == 0 {
		c0.DurationBuckets = append([]float64(nil), config.DefaultDurationBuckets...)
	}

	c := &Collector{
		config:    &c0,
		registry:  registry,
		templates: NewCardinalityLimiter(DefaultMaxTemplateLabels),
	}
	c.engineMetrics = NewEngineMetrics(&c0, registry)
	c.policyMetrics = NewPolicyMetrics(&c0, registry)
	c.enhancementMetrics = NewEnhancementMetrics(&c0, registry)
	c.cacheMetrics = NewCacheMetrics(&c0, registry)
	return c
}

// Enabled reports whether recording is switched on.
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}

// RecordRuleOutcome counts one rule evaluation by outcome.
func (c *Collector) RecordRuleOutcome(outcome engine.Outcome) {
	if !c.config.Enabled {
		return
	}
	c.engineMetrics.RecordOutcome(string(outcome))
}

// RecordEvaluation records how long one rules engine run took.
func (c *Collector) RecordEvaluation(duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.engineMetrics.RecordEvaluation(duration)
}

// RecordCatalogLoad counts a catalog (re)load and, on success, the number of
// templates it holds.
func (c *Collector) RecordCatalogLoad(ok bool, templates int) {
	if !c.config.Enabled {
		return
	}
	c.policyMetrics.RecordCatalogLoad(ok, templates)
}

// RecordAssembly records one clause assembly for a template.
func (c *Collector) RecordAssembly(templateCode string, clauses int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.policyMetrics.RecordAssembly(c.templateLabel(templateCode), clauses, duration)
}

// RecordPublish counts a publish attempt.
func (c *Collector) RecordPublish(ok bool) {
	if !c.config.Enabled {
		return
	}
	c.policyMetrics.RecordPublish(ok)
}

// RecordEnhancementJob records a finished enhancement job.
func (c *Collector) RecordEnhancementJob(status policy.JobStatus, d time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.enhancementMetrics.RecordJob(string(status), d)
}

// RecordEnhancementClause counts one clause sent to the generator.
func (c *Collector) RecordEnhancementClause(ok bool) {
	if !c.config.Enabled {
		return
	}
	c.enhancementMetrics.RecordClause(ok)
}

// RecordPoliciesExpired counts policies moved to expired by the review sweep.
func (c *Collector) RecordPoliciesExpired(n int) {
	if !c.config.Enabled || n <= 0 {
		return
	}
	c.enhancementMetrics.RecordExpired(n)
}

// RecordJobsRequeued counts stalled jobs put back in the queue or given up on.
func (c *Collector) RecordJobsRequeued(requeued, failed int) {
	if !c.config.Enabled {
		return
	}
	c.enhancementMetrics.RecordRequeued(requeued, failed)
}

// WatchCache exports a cache's size and hit/miss counters under name. The
// source is read at scrape time.
func (c *Collector) WatchCache(name string, source CacheSource) error {
	return c.cacheMetrics.Watch(name, source)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) templateLabel(code string) string {
	if code == "" {
		return "unknown"
	}
	if !c.templates.Allow(code) {
		return "other"
	}
	return code
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet may be used: it is already known, or there
// is still room for it.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
