package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"leadflow-hq/relay/pkg/lead"
)

// LeadStore is the slice of the entity store the dispatcher writes through.
type LeadStore interface {
	GetLead(ctx context.Context, id string) (*lead.Lead, error)
	UpdateLead(ctx context.Context, id string, patch lead.Patch) (*lead.Lead, error)
}

// ActionHandler applies one action variant.
type ActionHandler interface {
	Handle(ctx context.Context, leadID string, action Action) (*ActionResult, error)
}

// ActionHandlerFunc adapts a function to ActionHandler.
type ActionHandlerFunc func(ctx context.Context, leadID string, action Action) (*ActionResult, error)

// Handle calls f.
func (f ActionHandlerFunc) Handle(ctx context.Context, leadID string, action Action) (*ActionResult, error) {
	return f(ctx, leadID, action)
}

// ActionDispatcher applies typed actions to leads through a handler table.
type ActionDispatcher struct {
	leads  LeadStore
	sink   Sink
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[ActionType]ActionHandler
}

// NewActionDispatcher creates a dispatcher with a handler registered for
// every declared ActionType. A nil sink publishes to the log.
func NewActionDispatcher(leads LeadStore, sink Sink, logger *slog.Logger) *ActionDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "automation.dispatcher")
	if sink == nil {
		sink = NewLogSink(logger)
	}

	d := &ActionDispatcher{
		leads:  leads,
		sink:   sink,
		logger: logger,
	}
	d.handlers = map[ActionType]ActionHandler{
		ActionAssignment:   ActionHandlerFunc(d.applyAssignment),
		ActionScoring:      ActionHandlerFunc(d.applyScoring),
		ActionStatusChange: ActionHandlerFunc(d.applyStatusChange),
		ActionNotification: ActionHandlerFunc(d.publish),
		ActionEnrichment:   ActionHandlerFunc(d.publish),
	}
	return d
}

// Register replaces the handler for t.
func (d *ActionDispatcher) Register(t ActionType, h ActionHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = h
}

// CheckHandlers returns an error naming every declared ActionType that has
// no handler.
func (d *ActionDispatcher) CheckHandlers() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var missing []string
	for _, t := range ActionTypes() {
		if d.handlers[t] == nil {
			missing = append(missing, string(t))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("action dispatcher: no handler for %v", missing)
	}
	return nil
}

// Apply dispatches a single action. Unknown action types are logged and
// skipped without an error.
func (d *ActionDispatcher) Apply(ctx context.Context, leadID string, action Action) (*ActionResult, error) {
	d.mu.RLock()
	h, ok := d.handlers[action.Type]
	d.mu.RUnlock()

	if !ok {
		d.logger.WarnContext(ctx, "unsupported action type, skipping",
			"lead_id", leadID,
			"action_type", action.Type,
		)
		return &ActionResult{ActionType: action.Type, Skipped: true}, nil
	}

	d.logger.DebugContext(ctx, "applying action",
		"lead_id", leadID,
		"action_type", action.Type,
		"target", action.Target,
	)

	return h.Handle(ctx, leadID, action)
}

func (d *ActionDispatcher) applyAssignment(ctx context.Context, leadID string, action Action) (*ActionResult, error) {
	value := toString(action.Value)

	var patch lead.Patch
	switch action.Target {
	case TargetUser:
		patch.AssignedToID = &value
	case TargetTeam:
		patch.AssignedTeamID = &value
	default:
		d.logger.WarnContext(ctx, "assignment target not supported, skipping",
			"lead_id", leadID,
			"target", action.Target,
		)
		return &ActionResult{ActionType: action.Type, Skipped: true}, nil
	}

	if err := d.update(ctx, leadID, action.Type, patch); err != nil {
		return nil, err
	}

	return &ActionResult{
		ActionType: action.Type,
		Applied:    true,
		Details:    map[string]any{"target": action.Target, "value": value},
	}, nil
}

func (d *ActionDispatcher) applyStatusChange(ctx context.Context, leadID string, action Action) (*ActionResult, error) {
	if action.Value == nil {
		return nil, NewValidationError("action", string(action.Type), "status value is required")
	}
	status := toString(action.Value)

	if err := d.update(ctx, leadID, action.Type, lead.Patch{Status: &status}); err != nil {
		return nil, err
	}

	d.logger.InfoContext(ctx, "lead status changed",
		"lead_id", leadID,
		"status", status,
	)

	return &ActionResult{
		ActionType: action.Type,
		Applied:    true,
		Details:    map[string]any{"status": status},
	}, nil
}

func (d *ActionDispatcher) applyScoring(ctx context.Context, leadID string, action Action) (*ActionResult, error) {
	score, ok := coerceNumber(action.Value)
	if !ok {
		return nil, NewValidationError("action", string(action.Type),
			fmt.Sprintf("score value %v is not numeric", action.Value))
	}

	if err := d.update(ctx, leadID, action.Type, lead.Patch{Score: &score}); err != nil {
		return nil, err
	}

	return &ActionResult{
		ActionType: action.Type,
		Applied:    true,
		Details:    map[string]any{"score": score},
	}, nil
}

// publish hands notification and enrichment actions to the sink. Sink
// failures are logged, never returned.
func (d *ActionDispatcher) publish(ctx context.Context, leadID string, action Action) (*ActionResult, error) {
	msg := Message{
		Kind:      string(action.Type),
		LeadID:    leadID,
		Target:    action.Target,
		Value:     action.Value,
		Metadata:  action.Metadata,
		Timestamp: time.Now().UTC(),
	}

	if err := d.sink.Publish(ctx, msg); err != nil {
		d.logger.WarnContext(ctx, "sink publish failed",
			"lead_id", leadID,
			"kind", msg.Kind,
			"error", err,
		)
	}

	return &ActionResult{
		ActionType: action.Type,
		Applied:    true,
		Details:    map[string]any{"target": action.Target},
	}, nil
}

func (d *ActionDispatcher) update(ctx context.Context, leadID string, t ActionType, patch lead.Patch) error {
	if _, err := d.leads.UpdateLead(ctx, leadID, patch); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return NewExecutionError(string(t), leadID, err)
	}
	return nil
}
