package definitions

import (
	"fmt"
	"strings"
)

// LoadError reports a definitions file that could not be read.
type LoadError struct {
	FilePath string
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load definitions file %q: %s: %v", e.FilePath, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load definitions file %q: %s", e.FilePath, e.Message)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// ParseError reports a definitions file that is not valid YAML for File.
type ParseError struct {
	FilePath string
	Cause    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %q: %v", e.FilePath, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// SyncError collects the per-definition failures of one sync.
type SyncError struct {
	Errors []error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = "  - " + err.Error()
	}
	return fmt.Sprintf("%d definitions failed to sync:\n%s", len(e.Errors), strings.Join(msgs, "\n"))
}

// Unwrap returns every collected error.
func (e *SyncError) Unwrap() []error {
	return e.Errors
}
