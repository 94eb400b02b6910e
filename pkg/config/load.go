package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "POLICYFORGE_"

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded on top of Default, so omitted fields keep their
// default values. The configuration is validated but not modified by
// environment variables; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration on top of the defaults without
// validating it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention POLICYFORGE_SECTION_FIELD (e.g., POLICYFORGE_STORAGE_BACKEND).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Preload .env files (the config file's directory, then the working
// directory); variables already set in the environment are kept
// 2. Expand ${VAR} references and decode the YAML on top of the defaults
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env"); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}
	cfg, err := Parse([]byte(expandEnv(string(data))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv builds configuration from the defaults, a .env file in the
// working directory and environment overrides. It is used when no
// configuration file exists.
func LoadFromEnv() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg := Default()
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// expandEnv substitutes ${VAR} references. ${secret:name} references are
// left for the secrets manager.
func expandEnv(s string) string {
	return os.Expand(s, func(name string) string {
		if strings.HasPrefix(name, "secret:") {
			return "${" + name + "}"
		}
		return os.Getenv(name)
	})
}

// loadDotEnv loads each existing file once. Missing files are skipped.
func loadDotEnv(paths ...string) error {
	seen := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if err := godotenv.Load(abs); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Values that fail to parse are ignored.
func applyEnvOverrides(cfg *Config) {
	// Catalog overrides
	envString("CATALOG_MODE", &cfg.Catalog.Mode)
	envString("CATALOG_PATH", &cfg.Catalog.Path)
	envBool("CATALOG_WATCH", &cfg.Catalog.Watch)
	envString("CATALOG_GIT_REPOSITORY", &cfg.Catalog.Git.Repository)
	envString("CATALOG_GIT_BRANCH", &cfg.Catalog.Git.Branch)
	envString("CATALOG_GIT_PATH", &cfg.Catalog.Git.Path)
	envString("CATALOG_GIT_LOCAL_PATH", &cfg.Catalog.Git.LocalPath)
	envDuration("CATALOG_GIT_POLL_INTERVAL", &cfg.Catalog.Git.PollInterval)
	envString("CATALOG_GIT_AUTH_TYPE", &cfg.Catalog.Git.Auth.Type)
	envString("CATALOG_GIT_AUTH_TOKEN", &cfg.Catalog.Git.Auth.Token)
	envString("CATALOG_GIT_AUTH_SSH_KEY_PATH", &cfg.Catalog.Git.Auth.SSHKeyPath)

	// Manager and engine overrides
	envBool("MANAGER_STRICT", &cfg.Manager.Strict)
	envBool("MANAGER_AUTO_ENHANCE", &cfg.Manager.AutoEnhance)
	envDuration("MANAGER_REVIEW_INTERVAL", &cfg.Manager.ReviewInterval)
	envInt("ENGINE_MAX_RULES", &cfg.Engine.MaxRules)
	envBool("ENGINE_ENABLE_TRACE", &cfg.Engine.EnableTrace)

	// Storage overrides
	envString("STORAGE_BACKEND", &cfg.Storage.Backend)
	envString("STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	envString("STORAGE_SQLITE_DRIVER", &cfg.Storage.SQLite.Driver)
	envString("STORAGE_POSTGRES_DSN", &cfg.Storage.Postgres.DSN)

	// Enhancement overrides
	envBool("ENHANCEMENT_ENABLED", &cfg.Enhancement.Enabled)
	envInt("ENHANCEMENT_CONCURRENCY", &cfg.Enhancement.Concurrency)
	envString("ENHANCEMENT_GENERATOR_ENDPOINT", &cfg.Enhancement.Generator.Endpoint)
	envString("ENHANCEMENT_GENERATOR_API_KEY", &cfg.Enhancement.Generator.APIKey)
	envString("ENHANCEMENT_GENERATOR_MODEL", &cfg.Enhancement.Generator.Model)

	// Scheduler overrides
	envString("SCHEDULER_EXPIRY_SCHEDULE", &cfg.Scheduler.ExpirySchedule)
	envString("SCHEDULER_REQUEUE_SCHEDULE", &cfg.Scheduler.RequeueSchedule)

	// Secrets overrides
	envString("SECRETS_DIR", &cfg.Secrets.Dir)

	// Server overrides
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
}

func envString(key string, dst *string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = val
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envFloat(key string, dst *float64) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
