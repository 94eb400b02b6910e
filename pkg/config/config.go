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
	"ledgerline/policyforge/pkg/versioning"
)

// Config is the root configuration structure for policyforge.
// Component sections reuse the component packages' own Config types so a
// YAML file maps one-to-one onto what each constructor takes.
type Config struct {
	// Catalog selects where template definitions are loaded from and whether
	// they are reloaded on change.
	Catalog CatalogConfig `yaml:"catalog"`

	// Manager controls catalog linting and policy writes.
	Manager manager.Config `yaml:"manager"`

	// Engine contains rules engine limits and tracing.
	Engine engine.Config `yaml:"engine"`

	// Renderer contains clause body renderer settings.
	Renderer RendererConfig `yaml:"renderer"`

	// Storage selects the persistence backend.
	Storage storage.Config `yaml:"storage"`

	// Versioning tunes publish retries.
	Versioning versioning.Config `yaml:"versioning"`

	// Enhancement configures the asynchronous prose rewrite overlay.
	Enhancement enhance.Config `yaml:"enhancement"`

	// Scheduler configures the cron maintenance jobs.
	Scheduler scheduler.Config `yaml:"scheduler"`

	// Secrets resolves ${secret:name} references in credential fields.
	Secrets secrets.Config `yaml:"secrets"`

	// Server configures the HTTP listener used by "serve" for health and
	// metrics endpoints.
	Server ServerConfig `yaml:"server"`

	// Telemetry contains configuration for logging, metrics, tracing and
	// health checks.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Catalog modes.
const (
	CatalogModeFile = "file"
	CatalogModeGit  = "git"
)

// CatalogConfig contains configuration for the template catalog.
type CatalogConfig struct {
	// Mode specifies how templates are loaded.
	// Options: "file" (local directory), "git" (Git repository)
	// Default: "file"
	Mode string `yaml:"mode"`

	// Path is the directory (or single YAML file) holding the catalog when
	// Mode is "file".
	// Default: "./catalog"
	Path string `yaml:"path"`

	// Watch enables automatic reloading when catalog files change. In git
	// mode the repository is polled instead.
	// Default: false
	Watch bool `yaml:"watch"`

	// Debounce coalesces bursts of file events into one reload.
	// Default: 100ms
	Debounce time.Duration `yaml:"debounce"`

	// Git configures the catalog repository. Used when Mode is "git".
	Git git.Config `yaml:"git"`
}

// RendererConfig contains configuration for the clause body renderer.
type RendererConfig struct {
	// CacheSize is the number of compiled clause bodies kept in memory.
	// Default: 1024
	CacheSize int `yaml:"cache_size"`
}

// ServerConfig contains configuration for the HTTP listener.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:9090").
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 60s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig contains configuration for observability features.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check endpoint configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in logs.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII masks e-mail addresses, phone numbers and similar values in
	// log attributes. Answer sets routinely carry contact details.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns adds custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern is a custom redaction rule.
type RedactPattern struct {
	// Name identifies the pattern in diagnostics.
	Name string `yaml:"name"`

	// Pattern is a regular expression.
	Pattern string `yaml:"pattern"`

	// Replacement replaces every match.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "policyforge"
	Namespace string `yaml:"namespace"`

	// Subsystem is inserted between namespace and metric name.
	// Default: ""
	Subsystem string `yaml:"subsystem"`

	// DurationBuckets are histogram buckets in seconds for evaluation,
	// assembly and generation timings.
	// Default: [0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30]
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler selects the sampling strategy.
	// Options: "always", "never", "ratio", "parent_based"
	// Default: "parent_based"
	Sampler string `yaml:"sampler"`

	// SampleRatio is used by the "ratio" and "parent_based" samplers.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Exporter selects the span exporter.
	// Options: "otlp", "stdout"
	// Default: "otlp"
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service.name resource attribute.
	// Default: "policyforge"
	ServiceName string `yaml:"service_name"`

	// OTLP contains exporter connection settings.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter settings.
type OTLPConfig struct {
	// Insecure disables TLS to the collector.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// Enabled controls whether health endpoints are served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// LivenessPath is the liveness probe path.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the readiness probe path.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// VersionPath reports build information.
	// Default: "/version"
	VersionPath string `yaml:"version_path"`

	// CheckTimeout bounds each readiness check.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
