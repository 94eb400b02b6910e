package versioning

import (
	"fmt"
	"time"
)

// Config tunes publish retries.
type Config struct {
	// MaxPublishRetries is how many extra attempts Publish makes after losing
	// the version number race.
	// Default: 5
	MaxPublishRetries int `yaml:"max_publish_retries"`

	// RetryBackoff is the pause before each retry, multiplied by the attempt.
	// Default: 10ms
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// DefaultConfig returns the default versioning configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxPublishRetries: 5,
		RetryBackoff:      10 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxPublishRetries < 0 {
		return fmt.Errorf("max_publish_retries must be >= 0, got %d: %w", c.MaxPublishRetries, ErrInvalidConfig)
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry_backoff must be >= 0, got %s: %w", c.RetryBackoff, ErrInvalidConfig)
	}
	return nil
}
