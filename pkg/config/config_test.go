package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ledgerline/policyforge/pkg/storage"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "policyforge.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate(Default()) error = %v", err)
	}
	if cfg.Catalog.Mode != CatalogModeFile || cfg.Catalog.Path != DefaultCatalogPath {
		t.Errorf("catalog = %+v", cfg.Catalog)
	}
	if !cfg.Manager.AutoEnhance || !cfg.Telemetry.Metrics.Enabled || !cfg.Storage.SQLite.WALMode {
		t.Error("true-by-default booleans not set")
	}
	if cfg.Scheduler.ExpirySchedule == "" {
		t.Error("expiry schedule not defaulted")
	}
}

func TestLoadConfig_PartialFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
catalog:
  path: ./templates
  watch: true
engine:
  enable_trace: true
storage:
  backend: postgres
  postgres:
    dsn: postgres://policyforge@localhost/policyforge
manager:
  auto_enhance: false
  review_interval: 4380h
telemetry:
  logging:
    level: debug
    format: text
  metrics:
    enabled: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"catalog.path", cfg.Catalog.Path, "./templates"},
		{"catalog.watch", cfg.Catalog.Watch, true},
		{"catalog.mode default", cfg.Catalog.Mode, CatalogModeFile},
		{"engine.enable_trace", cfg.Engine.EnableTrace, true},
		{"engine.max_rules default", cfg.Engine.MaxRules, 500},
		{"storage.backend", cfg.Storage.Backend, storage.BackendPostgres},
		{"storage.postgres.max_open_conns default", cfg.Storage.Postgres.MaxOpenConns, 10},
		{"manager.auto_enhance explicit false", cfg.Manager.AutoEnhance, false},
		{"manager.review_interval", cfg.Manager.ReviewInterval, 4380 * time.Hour},
		{"telemetry.logging.level", cfg.Telemetry.Logging.Level, "debug"},
		{"telemetry.metrics.enabled explicit false", cfg.Telemetry.Metrics.Enabled, false},
		{"telemetry.metrics.path default", cfg.Telemetry.Metrics.Path, DefaultMetricsPath},
		{"server.listen_address default", cfg.Server.ListenAddress, DefaultListenAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadConfig() of a missing file succeeded")
	}

	bad := writeConfig(t, dir, "catalog: [not, a, map]\n")
	if _, err := LoadConfig(bad); err == nil {
		t.Error("LoadConfig() of malformed YAML succeeded")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"bad catalog mode", func(c *Config) { c.Catalog.Mode = "svn" }, "catalog.mode"},
		{"git without repository", func(c *Config) { c.Catalog.Mode = CatalogModeGit }, "catalog.git"},
		{"bad storage backend", func(c *Config) { c.Storage.Backend = "mongo" }, "storage"},
		{"bad engine limit", func(c *Config) { c.Engine.MaxRules = -1 }, "engine"},
		{"enhancement without endpoint", func(c *Config) { c.Enhancement.Enabled = true }, "enhancement"},
		{"bad cron", func(c *Config) { c.Scheduler.ExpirySchedule = "nightly" }, "scheduler"},
		{"bad listen address", func(c *Config) { c.Server.ListenAddress = "9090" }, "server.listen_address"},
		{"negative timeout", func(c *Config) { c.Server.ReadTimeout = -time.Second }, "server.read_timeout"},
		{"bad log level", func(c *Config) { c.Telemetry.Logging.Level = "loud" }, "telemetry.logging.level"},
		{"bad redact pattern", func(c *Config) {
			c.Telemetry.Logging.RedactPatterns = []RedactPattern{{Name: "x", Pattern: "("}}
		}, "telemetry.logging.redact_patterns[0]"},
		{"unsorted buckets", func(c *Config) { c.Telemetry.Metrics.DurationBuckets = []float64{1, 0.5} }, "telemetry.metrics.duration_buckets"},
		{"bad sample ratio", func(c *Config) { c.Telemetry.Tracing.SampleRatio = 2 }, "telemetry.tracing.sample_ratio"},
		{"bad health path", func(c *Config) { c.Telemetry.Health.ReadinessPath = "ready" }, "telemetry.health.readiness_path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			if !verr.HasField(tt.wantField) {
				t.Errorf("Validate() errors = %v, want field %s", verr.Errors, tt.wantField)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	one := ValidationError{Errors: []FieldError{{Field: "catalog.mode", Message: "bad"}}}
	if got := one.Error(); got != "configuration validation failed: catalog.mode: bad" {
		t.Errorf("Error() = %q", got)
	}
	two := ValidationError{Errors: []FieldError{{Field: "a", Message: "x"}, {Field: "b", Message: "y"}}}
	if got := two.Error(); got != "configuration validation failed with 2 errors:\n  - a: x\n  - b: y\n" {
		t.Errorf("Error() = %q", got)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
storage:
  backend: sqlite
  sqlite:
    path: ${PF_TEST_DATA_DIR}/policies.db
telemetry:
  logging:
    level: info
`)

	t.Setenv("PF_TEST_DATA_DIR", "/var/lib/policyforge")
	t.Setenv("POLICYFORGE_TELEMETRY_LOGGING_LEVEL", "warn")
	t.Setenv("POLICYFORGE_CATALOG_WATCH", "true")
	t.Setenv("POLICYFORGE_ENGINE_MAX_RULES", "not-a-number")
	t.Setenv("POLICYFORGE_MANAGER_REVIEW_INTERVAL", "720h")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}
	if cfg.Storage.SQLite.Path != "/var/lib/policyforge/policies.db" {
		t.Errorf("sqlite path = %q", cfg.Storage.SQLite.Path)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("logging level = %q, want env value", cfg.Telemetry.Logging.Level)
	}
	if !cfg.Catalog.Watch {
		t.Error("catalog.watch override not applied")
	}
	if cfg.Engine.MaxRules != 500 {
		t.Errorf("unparseable override changed max rules to %d", cfg.Engine.MaxRules)
	}
	if cfg.Manager.ReviewInterval != 720*time.Hour {
		t.Errorf("review interval = %v", cfg.Manager.ReviewInterval)
	}
}

func TestLoadConfigWithEnvOverrides_KeepsSecretReferences(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
enhancement:
  generator:
    endpoint: ${PF_TEST_GENERATOR}
    api_key: "${secret:generator-api-key}"
secrets:
  cache_ttl: 1m
`)
	t.Setenv("PF_TEST_GENERATOR", "https://gen.internal/v1/messages")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}
	if cfg.Enhancement.Generator.Endpoint != "https://gen.internal/v1/messages" {
		t.Errorf("endpoint = %q", cfg.Enhancement.Generator.Endpoint)
	}
	if cfg.Enhancement.Generator.APIKey != "${secret:generator-api-key}" {
		t.Errorf("api key = %q, want the reference kept", cfg.Enhancement.Generator.APIKey)
	}
	if cfg.Secrets.EnvPrefix != "POLICYFORGE_SECRET_" || cfg.Secrets.CacheTTL != time.Minute {
		t.Errorf("secrets = %+v", cfg.Secrets)
	}
}

func TestLoadConfigWithEnvOverrides_DotEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "catalog:\n  path: ./catalog\n")
	dotenv := "POLICYFORGE_STORAGE_BACKEND=memory\nPOLICYFORGE_SERVER_LISTEN_ADDRESS=0.0.0.0:7070\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(dotenv), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("POLICYFORGE_STORAGE_BACKEND")
	})
	// Already-set variables win over the .env file.
	t.Setenv("POLICYFORGE_SERVER_LISTEN_ADDRESS", "127.0.0.1:6060")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}
	if cfg.Storage.Backend != storage.BackendMemory {
		t.Errorf("storage backend = %q, want value from .env", cfg.Storage.Backend)
	}
	if cfg.Server.ListenAddress != "127.0.0.1:6060" {
		t.Errorf("listen address = %q, want process environment value", cfg.Server.ListenAddress)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidOverride(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "catalog:\n  mode: file\n")
	t.Setenv("POLICYFORGE_CATALOG_MODE", "svn")
	if _, err := LoadConfigWithEnvOverrides(path); err == nil {
		t.Error("invalid override accepted")
	}
}

func TestLoadConfig_ExampleFile(t *testing.T) {
	cfg, err := LoadConfig("../../config.example.yaml")
	if err != nil {
		t.Fatalf("LoadConfig(example) error = %v", err)
	}
	if cfg.Catalog.Path != "./catalog" || !cfg.Catalog.Watch {
		t.Errorf("catalog = %+v", cfg.Catalog)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("storage backend = %q, want sqlite", cfg.Storage.Backend)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("POLICYFORGE_STORAGE_BACKEND", "memory")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("storage backend = %q, want memory", cfg.Storage.Backend)
	}
	if cfg.Catalog.Path != DefaultCatalogPath {
		t.Errorf("catalog path = %q, want default", cfg.Catalog.Path)
	}

	t.Setenv("POLICYFORGE_CATALOG_MODE", "svn")
	if _, err := LoadFromEnv(); err == nil {
		t.Error("invalid override accepted")
	}
}

func TestSingleton(t *testing.T) {
	reset()
	t.Cleanup(reset)

	if GetConfig() != nil {
		t.Fatal("GetConfig() before Initialize should be nil")
	}

	dir := t.TempDir()
	first := writeConfig(t, dir, "server:\n  listen_address: 127.0.0.1:7001\n")
	if err := Initialize(first); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if got := MustGetConfig().Server.ListenAddress; got != "127.0.0.1:7001" {
		t.Errorf("listen address = %q", got)
	}

	second := filepath.Join(dir, "second.yaml")
	if err := os.WriteFile(second, []byte("server:\n  listen_address: 127.0.0.1:7002\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Initialize(second); err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}
	if got := GetConfig().Server.ListenAddress; got != "127.0.0.1:7001" {
		t.Errorf("second Initialize replaced config: %q", got)
	}

	if err := ReloadConfig(second); err != nil {
		t.Fatalf("ReloadConfig() error = %v", err)
	}
	if got := GetConfig().Server.ListenAddress; got != "127.0.0.1:7002" {
		t.Errorf("after reload listen address = %q", got)
	}

	if err := ReloadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("ReloadConfig() of a missing file succeeded")
	}
	if got := GetConfig().Server.ListenAddress; got != "127.0.0.1:7002" {
		t.Errorf("failed reload changed config: %q", got)
	}
}

func TestMustGetConfig_Panics(t *testing.T) {
	reset()
	t.Cleanup(reset)
	defer func() {
		if recover() == nil {
			t.Error("MustGetConfig() did not panic")
		}
	}()
	MustGetConfig()
}
