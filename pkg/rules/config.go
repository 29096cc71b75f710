package rules

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid rule engine configuration")

// Config configures the rule engine.
type Config struct {
	// StrictValidation rejects unknown operators and action types at
	// create/update time with an UnsupportedOperationError. When false
	// only the shape of a rule is checked and unknown operators evaluate
	// to false at run time.
	// Default: false.
	StrictValidation bool

	// BulkConcurrency is the number of leads BulkApplyRules processes at
	// once. 1 processes leads sequentially. Results keep input order either way.
	// Default: 1.
	BulkConcurrency int

	// MaxConditions is the maximum number of conditions per rule.
	// Default: 50.
	MaxConditions int

	// MaxActions is the maximum number of actions per rule.
	// Default: 20.
	MaxActions int
}

// DefaultConfig returns the default rule engine configuration.
func DefaultConfig() *Config {
	return &Config{
		StrictValidation: false,
		BulkConcurrency:  1,
		MaxConditions:    50,
		MaxActions:       20,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.BulkConcurrency < 1 {
		return fmt.Errorf("%w: bulk concurrency must be at least 1", ErrInvalidConfig)
	}
	if c.MaxConditions <= 0 {
		return fmt.Errorf("%w: max conditions must be positive", ErrInvalidConfig)
	}
	if c.MaxActions <= 0 {
		return fmt.Errorf("%w: max actions must be positive", ErrInvalidConfig)
	}
	return nil
}

// WithStrictValidation enables or disables strict validation.
func (c *Config) WithStrictValidation(strict bool) *Config {
	c.StrictValidation = strict
	return c
}

// WithBulkConcurrency sets the bulk concurrency.
func (c *Config) WithBulkConcurrency(n int) *Config {
	c.BulkConcurrency = n
	return c
}

// WithMaxConditions sets the maximum number of conditions per rule.
func (c *Config) WithMaxConditions(max int) *Config {
	c.MaxConditions = max
	return c
}

// WithMaxActions sets the maximum number of actions per rule.
func (c *Config) WithMaxActions(max int) *Config {
	c.MaxActions = max
	return c
}
