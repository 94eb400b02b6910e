package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidConfig is returned when the scheduler configuration is invalid.
var ErrInvalidConfig = errors.New("invalid scheduler configuration")

// Config controls the maintenance jobs.
type Config struct {
	// ExpirySchedule is the cron expression for the review-date sweep. Empty
	// disables it.
	// Default: "0 2 * * *" (daily at 2 AM).
	ExpirySchedule string `yaml:"expiry_schedule"`

	// RequeueSchedule is the cron expression for the stalled job sweep. Empty
	// disables it.
	// Default: "*/5 * * * *".
	RequeueSchedule string `yaml:"requeue_schedule"`

	// StaleAfter is how long a running job may go without an update before
	// it counts as stalled.
	// Default: 10m.
	StaleAfter time.Duration `yaml:"stale_after"`

	// MaxAttempts is the number of claims after which a stalled job fails
	// instead of returning to the queue.
	// Default: 3.
	MaxAttempts int `yaml:"max_attempts"`
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		ExpirySchedule:  "0 2 * * *",
		RequeueSchedule: "*/5 * * * *",
		StaleAfter:      10 * time.Minute,
		MaxAttempts:     3,
	}
}

// Validate validates the configuration, including both cron expressions.
func (c *Config) Validate() error {
	for name, spec := range map[string]string{
		"expiry_schedule":  c.ExpirySchedule,
		"requeue_schedule": c.RequeueSchedule,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%w: %s %q: %v", ErrInvalidConfig, name, spec, err)
		}
	}
	if c.StaleAfter <= 0 {
		return fmt.Errorf("%w: stale_after must be positive", ErrInvalidConfig)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max_attempts must be positive", ErrInvalidConfig)
	}
	return nil
}
