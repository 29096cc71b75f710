package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid workflow engine configuration")

// Config configures the workflow engine and its delay scheduler.
type Config struct {
	// StrictValidation rejects unknown step types at create/update time.
	// When false an unknown step type only fails when it runs.
	// Default: false.
	StrictValidation bool

	// MaxSteps is the maximum number of steps per workflow.
	// Default: 100.
	MaxSteps int

	// MaxDelay is the longest delay a delay step may request.
	// Default: 720h.
	MaxDelay time.Duration

	// MaxConcurrentResumes bounds the executions resumed at once.
	// Default: 8.
	MaxConcurrentResumes int

	// SweepSchedule is the cron spec for re-arming due executions found in
	// the store. Empty disables the sweep.
	// Default: "@every 30s".
	SweepSchedule string

	// SweepBatch is the most due executions one sweep picks up.
	// Default: 500.
	SweepBatch int
}

// DefaultConfig returns the default workflow engine configuration.
func DefaultConfig() *Config {
	return &Config{
		StrictValidation:     false,
		MaxSteps:             100,
		MaxDelay:             720 * time.Hour,
		MaxConcurrentResumes: 8,
		SweepSchedule:        "@every 30s",
		SweepBatch:           500,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.MaxSteps <= 0 {
		return fmt.Errorf("%w: max steps must be positive", ErrInvalidConfig)
	}
	if c.MaxDelay <= 0 {
		return fmt.Errorf("%w: max delay must be positive", ErrInvalidConfig)
	}
	if c.MaxConcurrentResumes < 1 {
		return fmt.Errorf("%w: max concurrent resumes must be at least 1", ErrInvalidConfig)
	}
	if c.SweepBatch <= 0 {
		return fmt.Errorf("%w: sweep batch must be positive", ErrInvalidConfig)
	}
	if c.SweepSchedule != "" {
		if _, err := cron.ParseStandard(c.SweepSchedule); err != nil {
			return fmt.Errorf("%w: sweep schedule %q: %v", ErrInvalidConfig, c.SweepSchedule, err)
		}
	}
	return nil
}

// WithStrictValidation enables or disables strict validation.
func (c *Config) WithStrictValidation(strict bool) *Config {
	c.StrictValidation = strict
	return c
}

// WithMaxSteps sets the maximum number of steps per workflow.
func (c *Config) WithMaxSteps(max int) *Config {
	c.MaxSteps = max
	return c
}

// WithMaxDelay sets the longest allowed delay.
func (c *Config) WithMaxDelay(d time.Duration) *Config {
	c.MaxDelay = d
	return c
}

// WithMaxConcurrentResumes sets the resume concurrency bound.
func (c *Config) WithMaxConcurrentResumes(n int) *Config {
	c.MaxConcurrentResumes = n
	return c
}

// WithSweepSchedule sets the sweep cron spec.
func (c *Config) WithSweepSchedule(spec string) *Config {
	c.SweepSchedule = spec
	return c
}
