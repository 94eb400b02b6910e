package engine

import "fmt"

// Config contains configuration for the rules engine.
type Config struct {
	// MaxRules is the maximum number of enabled rules evaluated per template.
	// Rules beyond the limit are recorded as error firings.
	// Default: 500.
	MaxRules int `yaml:"max_rules"`

	// MaxConditionDepth bounds condition nesting.
	// Default: 10.
	MaxConditionDepth int `yaml:"max_condition_depth"`

	// EnableTrace records every rule evaluation, including rules that did not
	// match, in DecisionSet.Trace.
	// Default: false.
	EnableTrace bool `yaml:"enable_trace"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxRules:          500,
		MaxConditionDepth: 10,
		EnableTrace:       false,
	}
}

// Validate validates the engine configuration.
func (c *Config) Validate() error {
	if c.MaxRules <= 0 {
		return fmt.Errorf("%w: max rules must be positive", ErrInvalidConfig)
	}
	if c.MaxConditionDepth <= 0 {
		return fmt.Errorf("%w: max condition depth must be positive", ErrInvalidConfig)
	}
	return nil
}

// WithTrace returns a copy of c with tracing set.
func (c *Config) WithTrace(enabled bool) *Config {
	cp := *c
	cp.EnableTrace = enabled
	return &cp
}
