package config

import (
	"time"

	"ledgerline/policyforge/pkg/enhance"
	"ledgerline/policyforge/pkg/policy/engine"
	"ledgerline/policyforge/pkg/policy/git"
	"ledgerline/policyforge/pkg/policy/manager"
	"ledgerline/policyforge/pkg/scheduler"
	"ledgerline/policyforge/pkg/secrets"
	"ledgerline/policyforge/pkg/storage"
	"ledgerline/policyforge/pkg/template"
	"ledgerline/policyforge/pkg/versioning"
)

// Default values for configuration fields owned by this package. Component
// sections take their defaults from the component's DefaultConfig.
const (
	// Catalog defaults
	DefaultCatalogMode     = CatalogModeFile
	DefaultCatalogPath     = "./catalog"
	DefaultCatalogDebounce = 100 * time.Millisecond

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:9090"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "json"
	DefaultLoggingRedactPII    = true
	DefaultMetricsEnabled      = true
	DefaultMetricsPath         = "/metrics"
	DefaultMetricsNamespace    = "policyforge"
	DefaultTracingEnabled      = false
	DefaultTracingSampler      = "parent_based"
	DefaultTracingSamplingRate = 1.0
	DefaultTracingExporter     = "otlp"
	DefaultTracingEndpoint     = "localhost:4317"
	DefaultTracingServiceName  = "policyforge"
	DefaultOTLPTimeout         = 10 * time.Second
	DefaultHealthEnabled       = true
	DefaultLivenessPath        = "/health"
	DefaultReadinessPath       = "/ready"
	DefaultVersionPath         = "/version"
	DefaultHealthCheckTimeout  = 5 * time.Second
)

// DefaultDurationBuckets are the histogram buckets used for evaluation,
// assembly and generation timings.
var DefaultDurationBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}

// Default returns a configuration with every field at its default value.
// Boolean fields that default to true are only set here; LoadConfig decodes
// YAML on top of Default so an explicit false survives.
func Default() *Config {
	cfg := &Config{
		Catalog: CatalogConfig{
			Mode:     DefaultCatalogMode,
			Path:     DefaultCatalogPath,
			Debounce: DefaultCatalogDebounce,
			Git:      git.DefaultConfig(),
		},
		Manager:     *manager.DefaultConfig(),
		Engine:      *engine.DefaultConfig(),
		Renderer:    RendererConfig{CacheSize: template.DefaultCacheSize},
		Storage:     *storage.DefaultConfig(),
		Versioning:  *versioning.DefaultConfig(),
		Enhancement: *enhance.DefaultConfig(),
		Scheduler:   *scheduler.DefaultConfig(),
		Secrets:     *secrets.DefaultConfig(),
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{RedactPII: DefaultLoggingRedactPII},
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
			Tracing: TracingConfig{Enabled: DefaultTracingEnabled},
			Health:  HealthConfig{Enabled: DefaultHealthEnabled},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Catalog defaults
	if cfg.Catalog.Mode == "" {
		cfg.Catalog.Mode = DefaultCatalogMode
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = DefaultCatalogPath
	}
	if cfg.Catalog.Debounce == 0 {
		cfg.Catalog.Debounce = DefaultCatalogDebounce
	}
	applyGitDefaults(&cfg.Catalog.Git)

	// Component defaults
	applyManagerDefaults(&cfg.Manager)
	applyEngineDefaults(&cfg.Engine)
	if cfg.Renderer.CacheSize == 0 {
		cfg.Renderer.CacheSize = template.DefaultCacheSize
	}
	applyStorageDefaults(&cfg.Storage)
	applyVersioningDefaults(&cfg.Versioning)
	applyEnhancementDefaults(&cfg.Enhancement)
	applySchedulerDefaults(&cfg.Scheduler)
	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = secrets.DefaultConfig().EnvPrefix
	}

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyGitDefaults(g *git.Config) {
	d := git.DefaultConfig()
	if g.Branch == "" {
		g.Branch = d.Branch
	}
	if g.PollInterval == 0 {
		g.PollInterval = d.PollInterval
	}
	if g.Timeout == 0 {
		g.Timeout = d.Timeout
	}
	if g.Auth.Type == "" {
		g.Auth.Type = d.Auth.Type
	}
}

func applyManagerDefaults(m *manager.Config) {
	d := manager.DefaultConfig()
	if m.MaxConditionDepth == 0 {
		m.MaxConditionDepth = d.MaxConditionDepth
	}
	if m.MaxUpdateRetries == 0 {
		m.MaxUpdateRetries = d.MaxUpdateRetries
	}
}

func applyEngineDefaults(e *engine.Config) {
	d := engine.DefaultConfig()
	if e.MaxRules == 0 {
		e.MaxRules = d.MaxRules
	}
	if e.MaxConditionDepth == 0 {
		e.MaxConditionDepth = d.MaxConditionDepth
	}
}

func applyStorageDefaults(s *storage.Config) {
	d := storage.DefaultConfig()
	if s.Backend == "" {
		s.Backend = d.Backend
	}
	if s.SQLite.Path == "" {
		s.SQLite.Path = d.SQLite.Path
	}
	if s.SQLite.Driver == "" {
		s.SQLite.Driver = d.SQLite.Driver
	}
	if s.SQLite.BusyTimeout == 0 {
		s.SQLite.BusyTimeout = d.SQLite.BusyTimeout
	}
	if s.Postgres.MaxOpenConns == 0 {
		s.Postgres.MaxOpenConns = d.Postgres.MaxOpenConns
	}
	if s.Postgres.MaxIdleConns == 0 {
		s.Postgres.MaxIdleConns = d.Postgres.MaxIdleConns
	}
	if s.Postgres.ConnMaxLifetime == 0 {
		s.Postgres.ConnMaxLifetime = d.Postgres.ConnMaxLifetime
	}
}

func applyVersioningDefaults(v *versioning.Config) {
	d := versioning.DefaultConfig()
	if v.MaxPublishRetries == 0 {
		v.MaxPublishRetries = d.MaxPublishRetries
	}
	if v.RetryBackoff == 0 {
		v.RetryBackoff = d.RetryBackoff
	}
}

func applyEnhancementDefaults(e *enhance.Config) {
	d := enhance.DefaultConfig()
	if e.BatchSize == 0 {
		e.BatchSize = d.BatchSize
	}
	if e.Concurrency == 0 {
		e.Concurrency = d.Concurrency
	}
	if e.BatchDelay == 0 {
		e.BatchDelay = d.BatchDelay
	}
	if e.Timeout == 0 {
		e.Timeout = d.Timeout
	}
	if e.PollInterval == 0 {
		e.PollInterval = d.PollInterval
	}
	if e.Generator.MaxTokens == 0 {
		e.Generator.MaxTokens = d.Generator.MaxTokens
	}
	if e.Generator.Timeout == 0 {
		e.Generator.Timeout = d.Generator.Timeout
	}
}

func applySchedulerDefaults(s *scheduler.Config) {
	d := scheduler.DefaultConfig()
	if s.StaleAfter == 0 {
		s.StaleAfter = d.StaleAfter
	}
	if s.MaxAttempts == 0 {
		s.MaxAttempts = d.MaxAttempts
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(t.Metrics.DurationBuckets) == 0 {
		t.Metrics.DurationBuckets = append([]float64(nil), DefaultDurationBuckets...)
	}
	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingSamplingRate
	}
	if t.Tracing.Exporter == "" {
		t.Tracing.Exporter = DefaultTracingExporter
	}
	if t.Tracing.Endpoint == "" {
		t.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingServiceName
	}
	if t.Tracing.OTLP.Timeout == 0 {
		t.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}
	if t.Health.LivenessPath == "" {
		t.Health.LivenessPath = DefaultLivenessPath
	}
	if t.Health.ReadinessPath == "" {
		t.Health.ReadinessPath = DefaultReadinessPath
	}
	if t.Health.VersionPath == "" {
		t.Health.VersionPath = DefaultVersionPath
	}
	if t.Health.CheckTimeout == 0 {
		t.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
