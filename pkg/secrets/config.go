package secrets

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is wrapped by Config.Validate errors.
var ErrInvalidConfig = errors.New("invalid secrets configuration")

// Config configures where secret references are resolved from.
type Config struct {
	// EnvPrefix is prepended to environment variable names.
	EnvPrefix string `yaml:"env_prefix"`

	// Dir holds one file per secret. Empty disables the file provider.
	Dir string `yaml:"dir"`

	// CacheTTL is how long a resolved value is reused. Zero disables caching.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// CacheSize bounds the number of cached values.
	CacheSize int `yaml:"cache_size"`
}

// DefaultConfig returns the default secrets configuration.
func DefaultConfig() *Config {
	return &Config{
		EnvPrefix: "POLICYFORGE_SECRET_",
		CacheTTL:  5 * time.Minute,
		CacheSize: 100,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must be >= 0: %w", ErrInvalidConfig)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must be >= 0, got %d: %w", c.CacheSize, ErrInvalidConfig)
	}
	return nil
}
