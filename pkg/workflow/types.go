package workflow

import (
	"context"
	"time"

	"leadflow-hq/relay/pkg/automation"
)

// StepType identifies a step variant.
type StepType string

const (
	StepAction       StepType = "action"
	StepCondition    StepType = "condition"
	StepDelay        StepType = "delay"
	StepNotification StepType = "notification"
	StepIntegration  StepType = "integration"
)

// StepTypes lists every declared step variant.
func StepTypes() []StepType {
	return []StepType{StepAction, StepCondition, StepDelay, StepNotification, StepIntegration}
}

// Valid reports whether t is a declared step variant.
func (t StepType) Valid() bool {
	for _, known := range StepTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Status is the state of an execution. Running is the only non-terminal
// state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether s is completed or failed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Workflow is an ordered list of steps started by a trigger event.
type Workflow struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Trigger     string    `json:"trigger" yaml:"trigger"`
	Steps       []Step    `json:"steps" yaml:"steps"`
	Priority    int       `json:"priority" yaml:"priority"`
	IsActive    bool      `json:"isActive" yaml:"isActive"`
	CreatedBy   string    `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"-"`
}

// Step is one unit of work. Config is interpreted by the step's handler.
type Step struct {
	ID     string         `json:"id" yaml:"id"`
	Name   string         `json:"name" yaml:"name"`
	Type   StepType       `json:"type" yaml:"type"`
	Order  int            `json:"order" yaml:"order"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// Clone returns a copy of w with its own step slice. Step configs are shared.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	c := *w
	c.Steps = append([]Step(nil), w.Steps...)
	return &c
}

// WorkflowFilter narrows ListWorkflows. Zero values match everything.
type WorkflowFilter struct {
	Trigger   string
	Active    *bool
	CreatedBy string
}

// Matches reports whether w passes the filter.
func (f WorkflowFilter) Matches(w *Workflow) bool {
	if f.Trigger != "" && w.Trigger != f.Trigger {
		return false
	}
	if f.Active != nil && w.IsActive != *f.Active {
		return false
	}
	if f.CreatedBy != "" && w.CreatedBy != f.CreatedBy {
		return false
	}
	return true
}

// WorkflowPatch is a partial update. Nil fields are left unchanged; a
// non-nil Steps replaces every step.
type WorkflowPatch struct {
	Name        *string
	Description *string
	Trigger     *string
	Steps       []Step
	Priority    *int
	IsActive    *bool
}

func (p WorkflowPatch) apply(w *Workflow) {
	if p.Name != nil {
		w.Name = *p.Name
	}
	if p.Description != nil {
		w.Description = *p.Description
	}
	if p.Trigger != nil {
		w.Trigger = *p.Trigger
	}
	if p.Steps != nil {
		w.Steps = append([]Step(nil), p.Steps...)
	}
	if p.Priority != nil {
		w.Priority = *p.Priority
	}
	if p.IsActive != nil {
		w.IsActive = *p.IsActive
	}
}

// StepResult is the outcome of one step run. Index is the position in the
// execution's step log.
type StepResult struct {
	Index       int            `json:"index"`
	StepID      string         `json:"stepId"`
	StepType    StepType       `json:"stepType"`
	Success     bool           `json:"success"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt time.Time      `json:"completedAt"`
}

// Execution is one run of a workflow. While suspended on a delay step it
// stays running with NextStep and ResumeAt set.
type Execution struct {
	ID           string         `json:"id"`
	WorkflowID   string         `json:"workflowId"`
	LeadID       string         `json:"leadId,omitempty"`
	UserID       string         `json:"userId,omitempty"`
	TriggerEvent string         `json:"triggerEvent,omitempty"`
	Status       Status         `json:"status"`
	StepResults  StepLog        `json:"stepResults"`
	TriggerData  map[string]any `json:"triggerData,omitempty"`
	StartedAt    time.Time      `json:"startedAt"`
	CompletedAt  *time.Time     `json:"completedAt,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	NextStep     int            `json:"nextStep"`
	ResumeAt     *time.Time     `json:"resumeAt,omitempty"`
}

// Clone returns a deep copy of the execution's own state. TriggerData
// values are shared.
func (x *Execution) Clone() *Execution {
	if x == nil {
		return nil
	}
	c := *x
	c.StepResults = *x.StepResults.Clone()
	if x.CompletedAt != nil {
		t := *x.CompletedAt
		c.CompletedAt = &t
	}
	if x.ResumeAt != nil {
		t := *x.ResumeAt
		c.ResumeAt = &t
	}
	return &c
}

// ExecutionContext carries what started an execution.
type ExecutionContext struct {
	LeadID      string
	UserID      string
	Event       string
	TriggerData map[string]any
}

// ExecutionResult is what ExecuteWorkflow and Await report. A suspended
// execution has Status running and ResumeAt set.
type ExecutionResult struct {
	ExecutionID  string       `json:"executionId"`
	WorkflowID   string       `json:"workflowId"`
	Status       Status       `json:"status"`
	Success      bool         `json:"success"`
	StepResults  []StepResult `json:"stepResults"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
	ResumeAt     *time.Time   `json:"resumeAt,omitempty"`
}

// TriggerResult is the per-workflow outcome of TriggerWorkflows.
type TriggerResult struct {
	WorkflowID   string `json:"workflowId"`
	WorkflowName string `json:"workflowName"`
	ExecutionID  string `json:"executionId,omitempty"`
	Status       Status `json:"status,omitempty"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

// Wakeup is a suspended execution due to resume.
type Wakeup struct {
	ExecutionID string
	ResumeAt    time.Time
}

// Repository is the persistence the workflow engine needs.
type Repository interface {
	automation.LeadStore

	CreateWorkflow(ctx context.Context, wf *Workflow) error
	// GetWorkflow returns the workflow with steps sorted by order.
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)
	ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*Workflow, error)
	UpdateWorkflow(ctx context.Context, wf *Workflow) error
	// DeleteWorkflow removes the workflow, its steps and its executions.
	DeleteWorkflow(ctx context.Context, id string) error

	CreateExecution(ctx context.Context, exec *Execution) error
	GetExecution(ctx context.Context, id string) (*Execution, error)
	// UpdateExecution writes status, completion, error, cursor and resume
	// time. Step results are written only through AppendStepResult.
	UpdateExecution(ctx context.Context, exec *Execution) error
	AppendStepResult(ctx context.Context, executionID string, result StepResult) error

	// ClaimExecution clears ResumeAt if it still equals resumeAt and the
	// execution is running. It reports whether this caller won the claim.
	ClaimExecution(ctx context.Context, id string, resumeAt time.Time) (bool, error)
	// ListDueExecutions returns running executions with ResumeAt at or
	// before the given time, earliest first.
	ListDueExecutions(ctx context.Context, before time.Time, limit int) ([]Wakeup, error)
}
