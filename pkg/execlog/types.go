package execlog

import (
	"context"
	"time"
)

// Kind distinguishes rule attempts from workflow outcomes.
type Kind string

const (
	KindRule     Kind = "rule"
	KindWorkflow Kind = "workflow"
)

// Record is one append-only audit entry. A rule record carries RuleID and
// the trigger event; a workflow record carries WorkflowID, ExecutionID and,
// for a failed execution, the failing StepID.
type Record struct {
	ID           string        `json:"id"`
	Kind         Kind          `json:"kind"`
	LeadID       string        `json:"lead_id,omitempty"`
	RuleID       string        `json:"rule_id,omitempty"`
	WorkflowID   string        `json:"workflow_id,omitempty"`
	StepID       string        `json:"step_id,omitempty"`
	ExecutionID  string        `json:"execution_id,omitempty"`
	TriggerEvent string        `json:"trigger_event,omitempty"`
	Success      bool          `json:"success"`
	ErrorMessage string        `json:"error_message,omitempty"`
	ExecutedAt   time.Time     `json:"executed_at"`
	Duration     time.Duration `json:"duration"`
}

// Query filters execution records. Zero values do not filter.
type Query struct {
	Kind         Kind       `json:"kind,omitempty"`
	LeadID       string     `json:"lead_id,omitempty"`
	RuleID       string     `json:"rule_id,omitempty"`
	WorkflowID   string     `json:"workflow_id,omitempty"`
	ExecutionID  string     `json:"execution_id,omitempty"`
	TriggerEvent string     `json:"trigger_event,omitempty"`
	Success      *bool      `json:"success,omitempty"`
	StartTime    *time.Time `json:"start_time,omitempty"` // inclusive
	EndTime      *time.Time `json:"end_time,omitempty"`   // inclusive

	// Pagination
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// Sorting
	SortBy    string `json:"sort_by,omitempty"`    // "executed_at", "duration"
	SortOrder string `json:"sort_order,omitempty"` // "asc", "desc"
}

// Pagination selects a page of a query result.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Stats is the success-rate rollup over a query.
type Stats struct {
	Total       int64   `json:"total"`
	Successful  int64   `json:"successful"`
	Failed      int64   `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// Page is one page of execution records.
type Page struct {
	Items      []*Record `json:"items"`
	TotalCount int64     `json:"total_count"`
	HasMore    bool      `json:"has_more"`
}

// Storage defines the interface for execution log backends.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Store persists a record.
	Store(ctx context.Context, record *Record) error

	// Query returns the records matching q, sorted and paginated.
	// Returns an empty slice if no records match.
	Query(ctx context.Context, q *Query) ([]*Record, error)

	// Count returns the number of records matching q, ignoring pagination.
	Count(ctx context.Context, q *Query) (int64, error)

	// Delete removes the records matching q, ignoring pagination, and
	// returns how many were removed.
	Delete(ctx context.Context, q *Query) (int64, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Logger accepts execution records. Log never fails; implementations
// report their own problems through logging and metrics.
type Logger interface {
	Log(ctx context.Context, record *Record)
}

// NopLogger discards every record.
type NopLogger struct{}

// Log implements Logger.
func (NopLogger) Log(context.Context, *Record) {}
