package cli

import (
	"errors"
	"fmt"

	"leadflow-hq/relay/pkg/automation"
	"leadflow-hq/relay/pkg/config"
)

// Process exit codes.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitUsage      = 2
	ExitNotFound   = 3
	ExitConfig     = 4
	ExitValidation = 5
)

// ConfigError reports a flag or configuration value that cannot be used.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError wraps the failure of one subcommand.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError reports a command invoked with invalid arguments.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return "usage: " + e.Message
}

// NewUsageError creates a UsageError.
func NewUsageError(message string) *UsageError {
	return &UsageError{Message: message}
}

// NewConfigError creates a ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewCommandError creates a CommandError. A nil err stays nil.
func NewCommandError(command string, err error) error {
	if err == nil {
		return nil
	}
	return &CommandError{Command: command, Err: err}
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var cfgErr *ConfigError
	var usageErr *UsageError
	var cfgValidation config.ValidationError
	switch {
	case errors.As(err, &usageErr):
		return ExitUsage
	case errors.As(err, &cfgErr), errors.As(err, &cfgValidation):
		return ExitConfig
	case errors.Is(err, automation.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, automation.ErrValidation), errors.Is(err, automation.ErrUnsupported):
		return ExitValidation
	}
	return ExitFailure
}
