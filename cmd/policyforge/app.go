package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"ledgerline/policyforge/pkg/assembly"
	"ledgerline/policyforge/pkg/cli"
	"ledgerline/policyforge/pkg/config"
	"ledgerline/policyforge/pkg/enhance"
	"ledgerline/policyforge/pkg/policy/engine"
	"ledgerline/policyforge/pkg/policy/manager"
	"ledgerline/policyforge/pkg/policy/source"
	"ledgerline/policyforge/pkg/secrets"
	"ledgerline/policyforge/pkg/storage"
	"ledgerline/policyforge/pkg/telemetry"
	"ledgerline/policyforge/pkg/telemetry/logging"
	"ledgerline/policyforge/pkg/telemetry/tracing"
	"ledgerline/policyforge/pkg/template"
	"ledgerline/policyforge/pkg/versioning"
)

// app holds the components one command invocation works with.
type app struct {
	cfg       *config.Config
	telemetry *telemetry.Telemetry
	logger    *slog.Logger
	store     storage.Store
	cache     *template.Cache
	queue     *enhance.Queue
	manager   *manager.Manager
}

// appOptions selects what newApp builds.
type appOptions struct {
	// ephemeral uses an in-memory store regardless of configuration, for
	// commands that never persist anything.
	ephemeral bool
}

// stdout returns the command's output writer.
func stdout(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return os.Stdout
	}
	return cmd.OutOrStdout()
}

// loadConfig reads --config. A missing file at the default path falls back
// to defaults plus environment overrides.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	_, statErr := os.Stat(cfgFile)
	if errors.Is(statErr, fs.ErrNotExist) && !rootCmd.PersistentFlags().Changed("config") {
		cfg, err = config.LoadFromEnv()
	} else {
		cfg, err = config.LoadConfigWithEnvOverrides(cfgFile)
	}
	if err != nil {
		return nil, cli.NewConfigError("", err)
	}

	if catalogPath != "" {
		cfg.Catalog.Mode = config.CatalogModeFile
		cfg.Catalog.Path = catalogPath
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	config.SetConfig(cfg)
	return cfg, nil
}

// newApp wires telemetry, storage and the catalog manager from cfg and
// loads the catalog.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	tel, err := telemetry.New(&cfg.Telemetry, telemetry.BuildInfo{
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildDate,
	}, telemetry.Options{LogWriter: os.Stderr, TraceWriter: os.Stderr})
	if err != nil {
		return nil, cli.NewConfigError("telemetry", err)
	}
	logger := tel.Logger()

	if err := resolveSecrets(ctx, cfg, logger); err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	var store storage.Store
	if opts.ephemeral {
		store = storage.NewMemoryStore()
	} else {
		store, err = storage.Open(ctx, &cfg.Storage, logger)
		if err != nil {
			_ = tel.Shutdown(ctx)
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
	}

	src, err := newSource(cfg, logger)
	if err != nil {
		store.Close()
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		telemetry: tel,
		logger:    logger,
		store:     store,
		cache:     template.NewCache(cfg.Renderer.CacheSize),
	}

	a.manager = manager.New(src, store, &cfg.Manager, logger).
		WithEngine(engine.New(&cfg.Engine, logger).WithMetrics(tel.Metrics())).
		WithAssembler(assembly.New(a.cache, logger)).
		WithVersioning(versioning.New(store, &cfg.Versioning, logger)).
		WithMetrics(tel.Metrics())
	if cfg.Enhancement.Enabled {
		a.queue = enhance.NewQueue(store, logger)
		a.manager.WithEnhancement(a.queue)
	}

	if err := a.manager.Load(ctx); err != nil {
		a.Close(ctx)
		return nil, cli.NewValidationError("catalog", err)
	}
	return a, nil
}

// resolveSecrets replaces ${secret:name} references in credential fields.
func resolveSecrets(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	fields := map[string]*string{
		"enhancement.generator.api_key": &cfg.Enhancement.Generator.APIKey,
		"storage.postgres.dsn":          &cfg.Storage.Postgres.DSN,
		"catalog.git.auth.token":        &cfg.Catalog.Git.Auth.Token,
	}
	var pending bool
	for _, f := range fields {
		pending = pending || secrets.HasReference(*f)
	}
	if !pending {
		return nil
	}

	resolver, err := secrets.New(&cfg.Secrets, logger)
	if err != nil {
		return cli.NewConfigError("secrets", err)
	}
	if err := resolver.ResolveAll(ctx, fields); err != nil {
		return cli.NewConfigError("secrets", err)
	}
	return nil
}

// newSource builds the catalog source for the configured mode.
func newSource(cfg *config.Config, logger *slog.Logger) (source.Source, error) {
	switch cfg.Catalog.Mode {
	case config.CatalogModeGit:
		src, err := source.NewGitSource(cfg.Catalog.Git, logger)
		if err != nil {
			return nil, cli.NewConfigError("catalog.git", err)
		}
		return src, nil
	default:
		return source.NewFileSource(cfg.Catalog.Path, logger).WithDebounce(cfg.Catalog.Debounce), nil
	}
}

// target names what a command acts on. Empty fields are left out of log
// records and span attributes.
type target struct {
	organizationID string
	templateCode   string
	policyID       string
	actor          string
}

// begin tags ctx with a request ID and the target's log fields and starts
// the command's root span. Pass the command's error to end.
func (a *app) begin(ctx context.Context, name string, t target) (context.Context, trace.Span) {
	requestID := uuid.NewString()
	ctx = logging.WithRequestID(ctx, requestID)
	ctx = logging.WithOrganizationID(ctx, t.organizationID)
	ctx = logging.WithTemplateCode(ctx, t.templateCode)
	ctx = logging.WithPolicyID(ctx, t.policyID)
	ctx = logging.WithActor(ctx, t.actor)

	attrs := tracing.NewAttributeBuilder().
		WithRequest(requestID, t.organizationID, t.actor).
		WithTemplate(t.templateCode, "").
		WithPolicy(t.policyID, "")
	ctx, span := a.telemetry.Tracer().Start(ctx, "cli."+name, attrs.Build())
	a.logger.DebugContext(ctx, "command started", "command", name)
	return ctx, span
}

// end records err on span and ends it.
func (a *app) end(span trace.Span, err *error) {
	tracing.SetError(span, *err)
	span.End()
}

// Close releases the store and flushes telemetry.
func (a *app) Close(ctx context.Context) {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close storage", "error", err)
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("failed to flush telemetry", "error", err)
	}
}

// openApp loads configuration and builds the app in one step.
func openApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, opts)
}
