package config

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "catalog.mode").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// HasField reports whether any error concerns the given field path.
func (e ValidationError) HasField(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateCatalog(&cfg.Catalog)...)

	// Component sections validate themselves; their messages already name
	// the offending field.
	components := []struct {
		field    string
		validate func() error
	}{
		{"manager", cfg.Manager.Validate},
		{"engine", cfg.Engine.Validate},
		{"storage", cfg.Storage.Validate},
		{"versioning", cfg.Versioning.Validate},
		{"enhancement", cfg.Enhancement.Validate},
		{"scheduler", cfg.Scheduler.Validate},
		{"secrets", cfg.Secrets.Validate},
	}
	for _, c := range components {
		if err := c.validate(); err != nil {
			errs = append(errs, FieldError{Field: c.field, Message: err.Error()})
		}
	}

	if cfg.Renderer.CacheSize < 0 {
		errs = append(errs, FieldError{
			Field:   "renderer.cache_size",
			Message: "cache size must be non-negative",
		})
	}

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateCatalog validates catalog configuration.
func validateCatalog(cfg *CatalogConfig) []FieldError {
	var errs []FieldError

	switch cfg.Mode {
	case CatalogModeFile:
		if cfg.Path == "" {
			errs = append(errs, FieldError{
				Field:   "catalog.path",
				Message: "catalog path is required in file mode",
			})
		}
	case CatalogModeGit:
		if err := cfg.Git.Validate(); err != nil {
			errs = append(errs, FieldError{
				Field:   "catalog.git",
				Message: err.Error(),
			})
		}
	case "":
		errs = append(errs, FieldError{
			Field:   "catalog.mode",
			Message: "catalog mode is required",
		})
	default:
		errs = append(errs, FieldError{
			Field:   "catalog.mode",
			Message: fmt.Sprintf("invalid catalog mode %q: must be 'file' or 'git'", cfg.Mode),
		})
	}

	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{
			Field:   "catalog.debounce",
			Message: "debounce must be non-negative",
		})
	}

	return errs
}

// validateServer validates server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address: %v", err),
		})
	}

	timeouts := []struct {
		field string
		value time.Duration
	}{
		{"server.read_timeout", cfg.ReadTimeout},
		{"server.write_timeout", cfg.WriteTimeout},
		{"server.idle_timeout", cfg.IdleTimeout},
		{"server.shutdown_timeout", cfg.ShutdownTimeout},
	}
	for _, t := range timeouts {
		if t.value < 0 {
			errs = append(errs, FieldError{
				Field:   t.field,
				Message: "timeout must be positive",
			})
		}
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	// Validate logging format
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text', or 'console'", cfg.Logging.Format),
		})
	}

	for i, p := range cfg.Logging.RedactPatterns {
		field := fmt.Sprintf("telemetry.logging.redact_patterns[%d]", i)
		if p.Pattern == "" {
			errs = append(errs, FieldError{Field: field, Message: "pattern is required"})
			continue
		}
		if _, err := regexp.Compile(p.Pattern); err != nil {
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("invalid pattern: %v", err)})
		}
	}

	// Validate metrics path
	if cfg.Metrics.Enabled && cfg.Metrics.Path == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path is required when metrics are enabled",
		})
	}
	if cfg.Metrics.Path != "" && cfg.Metrics.Path[0] != '/' {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}
	for i := 1; i < len(cfg.Metrics.DurationBuckets); i++ {
		if cfg.Metrics.DurationBuckets[i] <= cfg.Metrics.DurationBuckets[i-1] {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.duration_buckets",
				Message: "buckets must be strictly increasing",
			})
			break
		}
	}

	// Validate tracing configuration
	if cfg.Tracing.Enabled && cfg.Tracing.Exporter == "otlp" && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true, "parent_based": true}
	if cfg.Tracing.Sampler != "" && !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q", cfg.Tracing.Sampler),
		})
	}
	validExporters := map[string]bool{"otlp": true, "stdout": true}
	if cfg.Tracing.Exporter != "" && !validExporters[cfg.Tracing.Exporter] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.exporter",
			Message: fmt.Sprintf("invalid exporter %q: must be 'otlp' or 'stdout'", cfg.Tracing.Exporter),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	// Validate health check configuration
	if cfg.Health.Enabled {
		paths := []struct {
			field string
			value string
		}{
			{"telemetry.health.liveness_path", cfg.Health.LivenessPath},
			{"telemetry.health.readiness_path", cfg.Health.ReadinessPath},
			{"telemetry.health.version_path", cfg.Health.VersionPath},
		}
		for _, p := range paths {
			if p.value == "" {
				errs = append(errs, FieldError{
					Field:   p.field,
					Message: "path is required when health checks are enabled",
				})
			} else if p.value[0] != '/' {
				errs = append(errs, FieldError{
					Field:   p.field,
					Message: "path must start with /",
				})
			}
		}

		if cfg.Health.CheckTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.check_timeout",
				Message: "check timeout must be positive",
			})
		}
		if cfg.Health.CheckTimeout > 60*time.Second {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.check_timeout",
				Message: "check timeout exceeds reasonable limit (60s)",
			})
		}
	}

	return errs
}
