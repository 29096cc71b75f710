package workflow

import (
	"context"
	"fmt"
	"time"

	"leadflow-hq/relay/pkg/automation"
	"leadflow-hq/relay/pkg/lead"
)

// StepRun is what a step handler sees of the running execution.
type StepRun struct {
	ExecutionID string
	WorkflowID  string
	LeadID      string
	UserID      string
	Step        Step
	TriggerData map[string]any
}

// StepOutcome is a successful step's result. A positive Delay suspends the
// execution before the next step.
type StepOutcome struct {
	Result map[string]any
	Delay  time.Duration
}

// StepHandler runs one step variant. A returned error fails the step.
type StepHandler interface {
	Handle(ctx context.Context, run *StepRun) (*StepOutcome, error)
}

// StepHandlerFunc adapts a function to StepHandler.
type StepHandlerFunc func(ctx context.Context, run *StepRun) (*StepOutcome, error)

// Handle calls f.
func (f StepHandlerFunc) Handle(ctx context.Context, run *StepRun) (*StepOutcome, error) {
	return f(ctx, run)
}

// Workflow action names accepted by action steps.
const (
	ActionUpdateStatus = "update_status"
	ActionAssignUser   = "assign_user"
	ActionAssignTeam   = "assign_team"
	ActionUpdateScore  = "update_score"
)

func (e *Engine) defaultHandlers() map[StepType]StepHandler {
	return map[StepType]StepHandler{
		StepAction:       StepHandlerFunc(e.runAction),
		StepCondition:    StepHandlerFunc(e.runCondition),
		StepDelay:        StepHandlerFunc(e.runDelay),
		StepNotification: StepHandlerFunc(e.runNotification),
		StepIntegration:  StepHandlerFunc(e.runIntegration),
	}
}

func (e *Engine) runAction(ctx context.Context, run *StepRun) (*StepOutcome, error) {
	if run.LeadID == "" {
		return nil, automation.NewValidationError("step", run.Step.ID, "action step requires a lead")
	}

	name := automation.ToString(run.Step.Config["action"])
	value := run.Step.Config["value"]

	var action automation.Action
	switch name {
	case ActionUpdateStatus:
		action = automation.Action{Type: automation.ActionStatusChange, Value: value}
	case ActionAssignUser:
		action = automation.Action{Type: automation.ActionAssignment, Target: automation.TargetUser, Value: value}
	case ActionAssignTeam:
		action = automation.Action{Type: automation.ActionAssignment, Target: automation.TargetTeam, Value: value}
	case ActionUpdateScore:
		action = automation.Action{Type: automation.ActionScoring, Value: value}
	default:
		return nil, automation.NewUnsupportedOperationError("workflow action", name)
	}

	res, err := e.dispatcher.Apply(ctx, run.LeadID, action)
	if err != nil {
		return nil, err
	}

	result := map[string]any{"action": name, "applied": res.Applied}
	for k, v := range res.Details {
		result[k] = v
	}
	return &StepOutcome{Result: result}, nil
}

// runCondition re-reads the lead so earlier steps' writes are visible.
func (e *Engine) runCondition(ctx context.Context, run *StepRun) (*StepOutcome, error) {
	cond := automation.Condition{
		Field:    automation.ToString(run.Step.Config["field"]),
		Operator: automation.Operator(automation.ToString(run.Step.Config["operator"])),
		Value:    run.Step.Config["value"],
	}

	var current *lead.Lead
	if run.LeadID != "" {
		l, err := e.repo.GetLead(ctx, run.LeadID)
		if err != nil {
			return nil, err
		}
		current = l
	}

	matched, err := e.evaluator.EvaluateStrict(cond, current, run.TriggerData)
	if err != nil {
		return nil, err
	}

	return &StepOutcome{Result: map[string]any{
		"field":    cond.Field,
		"operator": string(cond.Operator),
		"matched":  matched,
	}}, nil
}

func (e *Engine) runDelay(_ context.Context, run *StepRun) (*StepOutcome, error) {
	d, err := parseDelay(run.Step.Config)
	if err != nil {
		return nil, automation.NewValidationError("step", run.Step.ID, err.Error())
	}
	if d > e.config.MaxDelay {
		return nil, automation.NewValidationError("step", run.Step.ID,
			fmt.Sprintf("delay %s exceeds maximum %s", d, e.config.MaxDelay))
	}
	return &StepOutcome{
		Result: map[string]any{"delayMs": d.Milliseconds()},
		Delay:  d,
	}, nil
}

var delayUnits = []struct {
	key  string
	unit time.Duration
}{
	{"hours", time.Hour},
	{"minutes", time.Minute},
	{"seconds", time.Second},
}

// parseDelay reads "duration" (a duration string or milliseconds) plus any
// of hours, minutes and seconds. The parts add up.
func parseDelay(cfg map[string]any) (time.Duration, error) {
	var total time.Duration
	found := false

	if v, ok := cfg["duration"]; ok {
		found = true
		switch d := v.(type) {
		case string:
			parsed, err := time.ParseDuration(d)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q", d)
			}
			total += parsed
		case bool:
			return 0, fmt.Errorf("invalid duration %v", d)
		default:
			ms, ok := automation.ToNumber(v)
			if !ok {
				return 0, fmt.Errorf("invalid duration %v", v)
			}
			total += time.Duration(ms * float64(time.Millisecond))
		}
	}

	for _, u := range delayUnits {
		v, ok := cfg[u.key]
		if !ok {
			continue
		}
		found = true
		if _, isBool := v.(bool); isBool {
			return 0, fmt.Errorf("invalid %s %v", u.key, v)
		}
		n, ok := automation.ToNumber(v)
		if !ok {
			return 0, fmt.Errorf("invalid %s %v", u.key, v)
		}
		total += time.Duration(n * float64(u.unit))
	}

	if !found {
		return 0, fmt.Errorf("delay requires duration, hours, minutes or seconds")
	}
	if total < 0 {
		return 0, fmt.Errorf("delay must not be negative")
	}
	return total, nil
}

func (e *Engine) runNotification(ctx context.Context, run *StepRun) (*StepOutcome, error) {
	channel := automation.ToString(run.Step.Config["channel"])
	msg := automation.Message{
		Kind:      "notification",
		LeadID:    run.LeadID,
		Target:    channel,
		Value:     run.Step.Config["message"],
		Metadata:  stepMetadata(run, run.Step.Config),
		Timestamp: e.now(),
	}
	e.publish(ctx, msg)
	return &StepOutcome{Result: map[string]any{"channel": channel, "sent": true}}, nil
}

func (e *Engine) runIntegration(ctx context.Context, run *StepRun) (*StepOutcome, error) {
	integration := automation.ToString(run.Step.Config["integration"])
	operation := automation.ToString(run.Step.Config["operation"])
	msg := automation.Message{
		Kind:      "integration",
		LeadID:    run.LeadID,
		Target:    integration,
		Value:     run.Step.Config["payload"],
		Metadata:  stepMetadata(run, map[string]any{"operation": operation}),
		Timestamp: e.now(),
	}
	e.publish(ctx, msg)
	return &StepOutcome{Result: map[string]any{
		"integration": integration,
		"operation":   operation,
		"sent":        true,
	}}, nil
}

// publish logs sink failures; outbound delivery never fails a step.
func (e *Engine) publish(ctx context.Context, msg automation.Message) {
	if err := e.sink.Publish(ctx, msg); err != nil {
		e.logger.WarnContext(ctx, "sink publish failed",
			"kind", msg.Kind,
			"target", msg.Target,
			"error", err,
		)
	}
}

func stepMetadata(run *StepRun, extra map[string]any) map[string]any {
	md := make(map[string]any, len(extra)+3)
	for k, v := range extra {
		md[k] = v
	}
	md["workflowId"] = run.WorkflowID
	md["executionId"] = run.ExecutionID
	md["stepId"] = run.Step.ID
	return md
}
