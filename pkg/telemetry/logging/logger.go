package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"ledgerline/policyforge/pkg/config"
)

// LogFormat represents the output format for logs.
type LogFormat string

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON LogFormat = "json"
	// FormatText outputs logs in logfmt-style text.
	FormatText LogFormat = "text"
	// FormatConsole outputs text without timestamps, for terminals.
	FormatConsole LogFormat = "console"
)

// Config contains configuration for New.
type Config struct {
	// Level is the minimum log level ("debug", "info", "warn", "error")
	Level string

	// Format is the output format ("json", "text", "console")
	Format string

	// AddSource includes file and line number in logs
	AddSource bool

	// RedactPII masks personal data and secrets in attribute values
	RedactPII bool

	// RedactPatterns adds custom redaction patterns
	RedactPatterns []config.RedactPattern

	// Writer is the output writer (defaults to os.Stderr)
	Writer io.Writer
}

// FromConfig converts the telemetry.logging configuration section.
func FromConfig(c config.LoggingConfig) Config {
	return Config{
		Level:          c.Level,
		Format:         c.Format,
		AddSource:      c.AddSource,
		RedactPII:      c.RedactPII,
		RedactPatterns: c.RedactPatterns,
	}
}

// New builds a *slog.Logger. Records pass through a handler that adds the
// fields stored in the record's context (see WithPolicyID and friends), then
// through the redactor when RedactPII is set.
func New(cfg Config) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	format, err := parseFormat(cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("invalid log format: %w", err)
	}

	writer := cfg.Writer
	if writer == nil {
		writer = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch format {
	case FormatText:
		handler = slog.NewTextHandler(writer, opts)
	case FormatConsole:
		opts.ReplaceAttr = dropTime
		handler = slog.NewTextHandler(writer, opts)
	default:
		handler = slog.NewJSONHandler(writer, opts)
	}

	if cfg.RedactPII {
		handler = NewRedactingHandler(handler, NewRedactor(cfg.RedactPatterns))
	}
	return slog.New(newContextHandler(handler)), nil
}

func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

// ParseLevel parses a log level string into slog.Level. Empty means info.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", levelStr)
	}
}

// parseFormat parses a log format string into LogFormat.
func parseFormat(formatStr string) (LogFormat, error) {
	switch strings.ToLower(formatStr) {
	case "json", "":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	case "console":
		return FormatConsole, nil
	default:
		return FormatJSON, fmt.Errorf("unknown log format: %s", formatStr)
	}
}
