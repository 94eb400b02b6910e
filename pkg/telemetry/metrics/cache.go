package metrics

import (
	"fmt"
	"sync"

	"ledgerline/policyforge/pkg/config"
	"ledgerline/policyforge/pkg/template"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheSource is anything that reports template cache statistics, such as
// *template.Cache.
type CacheSource interface {
	Stats() template.CacheStats
}

// CacheMetrics exports cache statistics read at scrape time.
//
// Metrics:
//   - policyforge_cache_entries{cache}
//   - policyforge_cache_hits_total{cache}
//   - policyforge_cache_misses_total{cache}
type CacheMetrics struct {
	cfg      *config.MetricsConfig
	registry *prometheus.Registry

	mu      sync.Mutex
	watched map[string]bool
}

// NewCacheMetrics creates cache metrics. Nothing is registered until a cache
// is watched.
func NewCacheMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CacheMetrics {
	return &CacheMetrics{cfg: cfg, registry: registry, watched: make(map[string]bool)}
}

// Watch registers scrape-time metrics for source under the cache label name.
func (cm *CacheMetrics) Watch(name string, source CacheSource) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.watched[name] {
		return fmt.Errorf("cache %q is already watched", name)
	}

	labels := prometheus.Labels{"cache": name}
	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace:   cm.cfg.Namespace,
				Subsystem:   cm.cfg.Subsystem,
				Name:        "cache_entries",
				Help:        "Current number of entries in cache",
				ConstLabels: labels,
			},
			func() float64 { return float64(source.Stats().Size) },
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace:   cm.cfg.Namespace,
				Subsystem:   cm.cfg.Subsystem,
				Name:        "cache_hits_total",
				Help:        "Total number of cache hits",
				ConstLabels: labels,
			},
			func() float64 { return float64(source.Stats().Hits) },
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace:   cm.cfg.Namespace,
				Subsystem:   cm.cfg.Subsystem,
				Name:        "cache_misses_total",
				Help:        "Total number of cache misses",
				ConstLabels: labels,
			},
			func() float64 { return float64(source.Stats().Misses) },
		),
	}
	for _, c := range collectors {
		if err := cm.registry.Register(c); err != nil {
			return fmt.Errorf("failed to register cache metrics for %q: %w", name, err)
		}
	}
	cm.watched[name] = true
	return nil
}
