package manager

import (
	"fmt"
	"time"
)

// Config controls catalog validation and policy writes.
type Config struct {
	// Strict turns lint warnings into load errors.
	// Default: false.
	Strict bool `yaml:"strict"`

	// MaxConditionDepth is the nesting limit checked when linting.
	// Default: 10.
	MaxConditionDepth int `yaml:"max_condition_depth"`

	// AutoEnhance queues every created or reassembled policy for prose
	// rewriting when an enhancement queue is attached.
	// Default: true.
	AutoEnhance bool `yaml:"auto_enhance"`

	// ReviewInterval sets NextReviewAt when a policy is approved. Zero leaves
	// the review date unset.
	// Default: 8760h (one year).
	ReviewInterval time.Duration `yaml:"review_interval"`

	// MaxUpdateRetries bounds compare-and-swap retries on policy writes.
	// Default: 5.
	MaxUpdateRetries int `yaml:"max_update_retries"`
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() *Config {
	return &Config{
		Strict:            false,
		MaxConditionDepth: 10,
		AutoEnhance:       true,
		ReviewInterval:    365 * 24 * time.Hour,
		MaxUpdateRetries:  5,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.MaxConditionDepth <= 0 {
		return fmt.Errorf("%w: max_condition_depth must be positive", ErrInvalidConfig)
	}
	if c.ReviewInterval < 0 {
		return fmt.Errorf("%w: review_interval cannot be negative", ErrInvalidConfig)
	}
	if c.MaxUpdateRetries <= 0 {
		return fmt.Errorf("%w: max_update_retries must be positive", ErrInvalidConfig)
	}
	return nil
}
