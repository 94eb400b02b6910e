package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ledgerline/policyforge/pkg/cli"
	"ledgerline/policyforge/pkg/enhance"
	"ledgerline/policyforge/pkg/scheduler"
	"ledgerline/policyforge/pkg/telemetry/health"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the background services",
	Long: `Run the long-lived policyforge process.

serve loads the catalog (and reloads it on change when catalog.watch is set),
runs the expiry and stalled-job maintenance schedule, processes queued
enhancement jobs when enhancement is enabled, and serves health and metrics
endpoints on the configured listen address.

Examples:
  # Start with default config
  policyforge serve

  # Start with custom config
  policyforge serve --config /etc/policyforge/config.yaml

  # Override listen address
  policyforge serve --listen 0.0.0.0:9090

  # Validate config and catalog without starting anything
  policyforge serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config and catalog without serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}

	ctx, stop := cli.SetupSignalHandler(commandContext(cmd))
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{ephemeral: serveFlags.dryRun})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		a.Close(closeCtx)
	}()

	if serveFlags.dryRun {
		st := a.manager.Status()
		fmt.Fprintf(stdout(cmd), "✓ Configuration valid\n✓ Catalog loaded (%d templates, version %s)\n", st.Templates, st.Version)
		return nil
	}

	logger := a.logger
	tel := a.telemetry
	collector := tel.Metrics()

	sched := scheduler.New(a.store, &cfg.Scheduler, logger)
	sched.Maintainer().WithMetrics(collector)
	if err := sched.Start(ctx); err != nil {
		return cli.NewCommandError("serve", fmt.Errorf("failed to start scheduler: %w", err))
	}
	defer sched.Stop()

	checks := tel.Health()
	checks.RegisterCheck("store", health.StoreCheck(a.store))
	checks.RegisterCheck("catalog", health.CatalogCheck(a.manager))
	checks.RegisterOptional("scheduler", health.SchedulerCheck(sched))

	if err := collector.WatchCache("renderer", a.cache); err != nil {
		logger.Warn("failed to register renderer cache metrics", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Catalog.Watch {
		g.Go(func() error { return a.manager.Watch(gctx) })
	}

	if cfg.Enhancement.Enabled {
		gen := enhance.NewHTTPGenerator(cfg.Enhancement.Generator, logger)
		worker := enhance.NewWorker(a.store, gen, &cfg.Enhancement, logger).
			WithWake(a.queue.Wake()).
			WithMetrics(collector)
		g.Go(func() error { return worker.Run(gctx) })
	}

	mux := http.NewServeMux()
	tel.Mount(mux, func() string { return a.manager.Status().Version })

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddress,
		Handler:           tel.Tracer().Middleware("/", mux),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return gctx },
	}

	ln, err := net.Listen("tcp", cfg.Server.ListenAddress)
	if err != nil {
		return cli.NewCommandError("serve", fmt.Errorf("failed to listen on %s: %w", cfg.Server.ListenAddress, err))
	}
	logger.Info("serving health and metrics", "address", ln.Addr().String())
	fmt.Fprintf(stdout(cmd), "✓ Listening on %s\n", ln.Addr())

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	start := time.Now()
	if err := g.Wait(); err != nil {
		return cli.NewCommandError("serve", err)
	}
	logger.Info("stopped", "uptime", time.Since(start).Round(time.Second).String())
	return nil
}
