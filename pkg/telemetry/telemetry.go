package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"ledgerline/policyforge/pkg/config"
	"ledgerline/policyforge/pkg/telemetry/health"
	"ledgerline/policyforge/pkg/telemetry/logging"
	"ledgerline/policyforge/pkg/telemetry/metrics"
	"ledgerline/policyforge/pkg/telemetry/tracing"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Telemetry bundles the logger, metrics collector, tracer and health checker
// built from one telemetry configuration section.
type Telemetry struct {
	config  *config.TelemetryConfig
	build   BuildInfo
	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	health  *health.Checker
}

// Options adjusts New.
type Options struct {
	// LogWriter receives log output (defaults to os.Stderr).
	LogWriter io.Writer

	// TraceWriter receives spans when the stdout exporter is configured.
	TraceWriter io.Writer
}

// New builds every telemetry component. The logger is also installed as
// slog's default so components given a nil logger share it.
func New(cfg *config.TelemetryConfig, build BuildInfo, opts Options) (*Telemetry, error) {
	if cfg == nil {
		return nil, errors.New("telemetry config is nil")
	}

	logCfg := logging.FromConfig(cfg.Logging)
	logCfg.Writer = opts.LogWriter
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(logger)

	tracer, err := tracing.New(&cfg.Tracing, tracing.Options{Version: build.Version, Writer: opts.TraceWriter})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	return &Telemetry{
		config:  cfg,
		build:   build,
		logger:  logger,
		metrics: metrics.NewCollector(&cfg.Metrics, nil),
		tracer:  tracer,
		health:  health.New(cfg.Health.CheckTimeout),
	}, nil
}

// Logger returns the configured logger.
func (t *Telemetry) Logger() *slog.Logger { return t.logger }

// Metrics returns the metrics collector.
func (t *Telemetry) Metrics() *metrics.Collector { return t.metrics }

// Tracer returns the tracer.
func (t *Telemetry) Tracer() *tracing.Tracer { return t.tracer }

// Health returns the health checker.
func (t *Telemetry) Health() *health.Checker { return t.health }

// Mount registers the metrics endpoint (when enabled) and the health probes
// on mux. catalogVersion is reported by the version endpoint and may be nil.
func (t *Telemetry) Mount(mux *http.ServeMux, catalogVersion func() string) {
	if t.config.Metrics.Enabled {
		mux.Handle(t.config.Metrics.Path, t.metrics.Handler())
	}
	t.health.Mount(mux, t.config.Health, health.VersionInfo{
		Version:   t.build.Version,
		Commit:    t.build.Commit,
		BuildTime: t.build.BuildTime,
	}, catalogVersion)
}

// Shutdown flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.tracer.Shutdown(ctx)
}
