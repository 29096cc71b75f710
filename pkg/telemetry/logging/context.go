package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// LeadIDKey is the context key for the lead being processed.
	LeadIDKey contextKey = "lead_id"

	// RuleIDKey is the context key for rule identifiers.
	RuleIDKey contextKey = "rule_id"

	// WorkflowIDKey is the context key for workflow identifiers.
	WorkflowIDKey contextKey = "workflow_id"

	// ExecutionIDKey is the context key for workflow execution identifiers.
	ExecutionIDKey contextKey = "execution_id"

	// TriggerEventKey is the context key for the trigger event name.
	TriggerEventKey contextKey = "trigger_event"

	// ActorKey is the context key for the user or process acting on a definition.
	ActorKey contextKey = "actor"
)

// contextKeys lists the keys extracted into log records, in output order.
var contextKeys = []contextKey{
	LeadIDKey,
	RuleIDKey,
	WorkflowIDKey,
	ExecutionIDKey,
	TriggerEventKey,
	ActorKey,
}

// WithLeadID adds a lead ID to the context.
func WithLeadID(ctx context.Context, leadID string) context.Context {
	return context.WithValue(ctx, LeadIDKey, leadID)
}

// GetLeadID retrieves the lead ID from the context.
func GetLeadID(ctx context.Context) string {
	return getString(ctx, LeadIDKey)
}

// WithRuleID adds a rule ID to the context.
func WithRuleID(ctx context.Context, ruleID string) context.Context {
	return context.WithValue(ctx, RuleIDKey, ruleID)
}

// GetRuleID retrieves the rule ID from the context.
func GetRuleID(ctx context.Context) string {
	return getString(ctx, RuleIDKey)
}

// WithWorkflowID adds a workflow ID to the context.
func WithWorkflowID(ctx context.Context, workflowID string) context.Context {
	return context.WithValue(ctx, WorkflowIDKey, workflowID)
}

// GetWorkflowID retrieves the workflow ID from the context.
func GetWorkflowID(ctx context.Context) string {
	return getString(ctx, WorkflowIDKey)
}

// WithExecutionID adds a workflow execution ID to the context.
func WithExecutionID(ctx context.Context, executionID string) context.Context {
	return context.WithValue(ctx, ExecutionIDKey, executionID)
}

// GetExecutionID retrieves the workflow execution ID from the context.
func GetExecutionID(ctx context.Context) string {
	return getString(ctx, ExecutionIDKey)
}

// WithTriggerEvent adds a trigger event name to the context.
func WithTriggerEvent(ctx context.Context, event string) context.Context {
	return context.WithValue(ctx, TriggerEventKey, event)
}

// GetTriggerEvent retrieves the trigger event name from the context.
func GetTriggerEvent(ctx context.Context) string {
	return getString(ctx, TriggerEventKey)
}

// WithActor adds an actor to the context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// GetActor retrieves the actor from the context.
func GetActor(ctx context.Context) string {
	return getString(ctx, ActorKey)
}

func getString(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// extractContextFields returns the context fields that are set, as attrs
// ready to be added to a record.
func extractContextFields(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, key := range contextKeys {
		if v := getString(ctx, key); v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	return attrs
}
