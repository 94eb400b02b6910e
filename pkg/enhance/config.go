package enhance

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned when the enhancement configuration is invalid.
var ErrInvalidConfig = errors.New("invalid enhancement configuration")

// Config controls the enhancement worker.
type Config struct {
	// Enabled turns the overlay on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// BatchSize is the number of clauses rewritten per batch.
	// Default: 3
	BatchSize int `yaml:"batch_size"`

	// Concurrency caps in-flight generator calls within a batch.
	// Default: 3
	Concurrency int `yaml:"concurrency"`

	// BatchDelay is the pause between batches.
	// Default: 1s
	BatchDelay time.Duration `yaml:"batch_delay"`

	// Timeout bounds each generator call.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// PollInterval is how often the worker looks for pending jobs when it is
	// not woken.
	// Default: 2s
	PollInterval time.Duration `yaml:"poll_interval"`

	Generator GeneratorConfig `yaml:"generator"`
}

// GeneratorConfig configures HTTPGenerator.
type GeneratorConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Retries   int           `yaml:"retries"`
	Timeout   time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the default enhancement configuration.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:    3,
		Concurrency:  3,
		BatchDelay:   time.Second,
		Timeout:      30 * time.Second,
		PollInterval: 2 * time.Second,
		Generator: GeneratorConfig{
			MaxTokens: 1024,
			Retries:   2,
			Timeout:   60 * time.Second,
		},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be >= 1, got %d: %w", c.BatchSize, ErrInvalidConfig)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d: %w", c.Concurrency, ErrInvalidConfig)
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("batch_delay must be >= 0: %w", ErrInvalidConfig)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0: %w", ErrInvalidConfig)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be > 0: %w", ErrInvalidConfig)
	}
	if c.Enabled && c.Generator.Endpoint == "" {
		return fmt.Errorf("generator.endpoint is required when enhancement is enabled: %w", ErrInvalidConfig)
	}
	return nil
}
