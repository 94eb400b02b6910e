package main

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"ledgerline/policyforge/pkg/cli"
	"ledgerline/policyforge/pkg/config"
	"ledgerline/policyforge/pkg/telemetry/logging"
)

func TestResolveSecrets(t *testing.T) {
	t.Setenv("POLICYFORGE_SECRET_GENERATOR_API_KEY", "gk-123")
	t.Setenv("POLICYFORGE_SECRET_PG_PASSWORD", "pw")

	cfg := config.Default()
	cfg.Enhancement.Generator.APIKey = "${secret:generator-api-key}"
	cfg.Storage.Postgres.DSN = "postgres://policyforge:${secret:pg-password}@db/policyforge"
	cfg.Catalog.Git.Auth.Token = "literal-token"

	if err := resolveSecrets(context.Background(), cfg, slog.Default()); err != nil {
		t.Fatalf("resolveSecrets() error = %v", err)
	}
	if cfg.Enhancement.Generator.APIKey != "gk-123" {
		t.Errorf("api key = %q", cfg.Enhancement.Generator.APIKey)
	}
	if cfg.Storage.Postgres.DSN != "postgres://policyforge:pw@db/policyforge" {
		t.Errorf("dsn = %q", cfg.Storage.Postgres.DSN)
	}
	if cfg.Catalog.Git.Auth.Token != "literal-token" {
		t.Errorf("token = %q", cfg.Catalog.Git.Auth.Token)
	}
}

func TestResolveSecrets_Unresolved(t *testing.T) {
	cfg := config.Default()
	cfg.Enhancement.Generator.APIKey = "${secret:policyforge-test-unset}"

	err := resolveSecrets(context.Background(), cfg, slog.Default())
	var cfgErr *cli.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("resolveSecrets() error = %v, want *cli.ConfigError", err)
	}
	if cli.ExitCode(err) != cli.ExitConfig {
		t.Errorf("exit code = %d, want %d", cli.ExitCode(err), cli.ExitConfig)
	}
}

func TestBegin_TagsContext(t *testing.T) {
	useTestEnv(t)
	ctx := context.Background()
	a, err := openApp(ctx, appOptions{ephemeral: true})
	if err != nil {
		t.Fatalf("openApp() error = %v", err)
	}
	defer a.Close(ctx)

	ctx, span := a.begin(ctx, "policy.publish", target{policyID: "pol-1", actor: "mlro@example.com"})
	var runErr error = errors.New("boom")
	a.end(span, &runErr)

	if logging.Get(ctx, logging.RequestIDKey) == "" {
		t.Error("request id not set")
	}
	if got := logging.Get(ctx, logging.PolicyIDKey); got != "pol-1" {
		t.Errorf("policy id = %q", got)
	}
	if got := logging.Get(ctx, logging.ActorKey); got != "mlro@example.com" {
		t.Errorf("actor = %q", got)
	}
	if got := logging.Get(ctx, logging.OrganizationIDKey); got != "" {
		t.Errorf("organization id = %q, want empty", got)
	}
}
