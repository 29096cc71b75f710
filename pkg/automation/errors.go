package automation

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched by the typed errors below through errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrExecution   = errors.New("execution failed")
	ErrUnsupported = errors.New("unsupported operation")
)

// ValidationError reports a malformed rule, condition, action, workflow or step.
type ValidationError struct {
	Entity string
	ID     string
	Errors []string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	subject := e.Entity
	if e.ID != "" {
		subject = fmt.Sprintf("%s %s", e.Entity, e.ID)
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("%s: validation error: %s", subject, e.Errors[0])
	}
	return fmt.Sprintf("%s: %d validation errors: %s", subject, len(e.Errors), strings.Join(e.Errors, "; "))
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a ValidationError.
func NewValidationError(entity, id string, errs ...string) *ValidationError {
	return &ValidationError{Entity: entity, ID: id, Errors: errs}
}

// NotFoundError reports an id that does not resolve.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error returns the error message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %q", e.Entity, e.ID)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// ExecutionError reports a step or action that failed because of a
// downstream fault such as a persistence write.
type ExecutionError struct {
	Operation string
	ID        string
	Cause     error
}

// Error returns the error message.
func (e *ExecutionError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Operation, e.ID, e.Cause)
	}
	return fmt.Sprintf("%s failed: %v", e.Operation, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches ErrExecution.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}

// NewExecutionError creates an ExecutionError.
func NewExecutionError(operation, id string, cause error) *ExecutionError {
	return &ExecutionError{Operation: operation, ID: id, Cause: cause}
}

// UnsupportedOperationError reports an unknown operator, action type or step type.
type UnsupportedOperationError struct {
	Kind string
	Name string
}

// Error returns the error message.
func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported %s: %q", e.Kind, e.Name)
}

// Is matches ErrUnsupported.
func (e *UnsupportedOperationError) Is(target error) bool {
	return target == ErrUnsupported
}

// NewUnsupportedOperationError creates an UnsupportedOperationError.
func NewUnsupportedOperationError(kind, name string) *UnsupportedOperationError {
	return &UnsupportedOperationError{Kind: kind, Name: name}
}
