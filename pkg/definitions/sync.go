package definitions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"leadflow-hq/relay/pkg/automation"
	"leadflow-hq/relay/pkg/rules"
	"leadflow-hq/relay/pkg/workflow"
)

// RuleStore is the part of the rule engine a Syncer writes through.
type RuleStore interface {
	CreateRule(ctx context.Context, rule *rules.Rule) (*rules.Rule, error)
	GetRules(ctx context.Context, filter rules.RuleFilter) ([]*rules.Rule, error)
	GetRuleByID(ctx context.Context, id string) (*rules.Rule, error)
	UpdateRule(ctx context.Context, id string, patch rules.RulePatch) (*rules.Rule, error)
	DeleteRule(ctx context.Context, id, actorID string) error
}

// WorkflowStore is the part of the workflow engine a Syncer writes through.
type WorkflowStore interface {
	CreateWorkflow(ctx context.Context, wf *workflow.Workflow) (*workflow.Workflow, error)
	ListWorkflows(ctx context.Context, filter workflow.WorkflowFilter) ([]*workflow.Workflow, error)
	GetWorkflowByID(ctx context.Context, id string) (*workflow.Workflow, error)
	UpdateWorkflow(ctx context.Context, id string, patch workflow.WorkflowPatch) (*workflow.Workflow, error)
	DeleteWorkflow(ctx context.Context, id, actorID string) error
}

// SyncResult counts what one sync changed.
type SyncResult struct {
	RulesCreated     int
	RulesUpdated     int
	RulesDeleted     int
	WorkflowsCreated int
	WorkflowsUpdated int
	WorkflowsDeleted int
}

// Syncer upserts file definitions by id. Definitions it creates are owned
// by its actor; with pruning on, owned definitions missing from the file
// are deleted. Definitions created through other paths are never pruned.
type Syncer struct {
	rules     RuleStore
	workflows WorkflowStore
	actor     string
	prune     bool
	logger    *slog.Logger
}

// NewSyncer creates a syncer. Either store may be nil to skip that kind.
func NewSyncer(ruleStore RuleStore, workflowStore WorkflowStore, actor string, prune bool, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	if actor == "" {
		actor = "definitions"
	}
	return &Syncer{
		rules:     ruleStore,
		workflows: workflowStore,
		actor:     actor,
		prune:     prune,
		logger:    logger.With("component", "definitions.syncer"),
	}
}

// SyncFile loads path and syncs it.
func (s *Syncer) SyncFile(ctx context.Context, path string) (*SyncResult, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	res, err := s.Sync(ctx, f)
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "definitions synced",
		"path", path,
		"rules_created", res.RulesCreated,
		"rules_updated", res.RulesUpdated,
		"rules_deleted", res.RulesDeleted,
		"workflows_created", res.WorkflowsCreated,
		"workflows_updated", res.WorkflowsUpdated,
		"workflows_deleted", res.WorkflowsDeleted,
		"failed", err != nil,
	)
	return res, err
}

// Sync applies f. Every definition is attempted; failures are collected
// into a *SyncError. Pruning is skipped when anything failed.
func (s *Syncer) Sync(ctx context.Context, f *File) (*SyncResult, error) {
	res := &SyncResult{}
	if f == nil {
		return res, nil
	}

	var errs []error
	if s.rules != nil {
		errs = append(errs, s.syncRules(ctx, f.Rules, res)...)
	} else if len(f.Rules) > 0 {
		errs = append(errs, errors.New("rules defined but no rule store configured"))
	}
	if s.workflows != nil {
		errs = append(errs, s.syncWorkflows(ctx, f.Workflows, res)...)
	} else if len(f.Workflows) > 0 {
		errs = append(errs, errors.New("workflows defined but no workflow store configured"))
	}

	if len(errs) > 0 {
		return res, &SyncError{Errors: errs}
	}

	if s.prune {
		if err := s.pruneOwned(ctx, f, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (s *Syncer) syncRules(ctx context.Context, defs []*rules.Rule, res *SyncResult) []error {
	var errs []error
	seen := make(map[string]bool, len(defs))

	for i, def := range defs {
		if def == nil || def.ID == "" {
			errs = append(errs, fmt.Errorf("rules[%d]: id is required", i))
			continue
		}
		if seen[def.ID] {
			errs = append(errs, fmt.Errorf("rules[%d]: duplicate id %q", i, def.ID))
			continue
		}
		seen[def.ID] = true

		_, err := s.rules.GetRuleByID(ctx, def.ID)
		switch {
		case errors.Is(err, automation.ErrNotFound):
			r := def.Clone()
			r.CreatedBy = s.actor
			if _, err := s.rules.CreateRule(ctx, r); err != nil {
				errs = append(errs, fmt.Errorf("rule %q: %w", def.ID, err))
				continue
			}
			res.RulesCreated++
		case err != nil:
			errs = append(errs, fmt.Errorf("rule %q: %w", def.ID, err))
		default:
			if _, err := s.rules.UpdateRule(ctx, def.ID, rulePatch(def)); err != nil {
				errs = append(errs, fmt.Errorf("rule %q: %w", def.ID, err))
				continue
			}
			res.RulesUpdated++
		}
	}
	return errs
}

func (s *Syncer) syncWorkflows(ctx context.Context, defs []*workflow.Workflow, res *SyncResult) []error {
	var errs []error
	seen := make(map[string]bool, len(defs))

	for i, def := range defs {
		if def == nil || def.ID == "" {
			errs = append(errs, fmt.Errorf("workflows[%d]: id is required", i))
			continue
		}
		if seen[def.ID] {
			errs = append(errs, fmt.Errorf("workflows[%d]: duplicate id %q", i, def.ID))
			continue
		}
		seen[def.ID] = true

		_, err := s.workflows.GetWorkflowByID(ctx, def.ID)
		switch {
		case errors.Is(err, automation.ErrNotFound):
			w := def.Clone()
			w.CreatedBy = s.actor
			if _, err := s.workflows.CreateWorkflow(ctx, w); err != nil {
				errs = append(errs, fmt.Errorf("workflow %q: %w", def.ID, err))
				continue
			}
			res.WorkflowsCreated++
		case err != nil:
			errs = append(errs, fmt.Errorf("workflow %q: %w", def.ID, err))
		default:
			if _, err := s.workflows.UpdateWorkflow(ctx, def.ID, workflowPatch(def)); err != nil {
				errs = append(errs, fmt.Errorf("workflow %q: %w", def.ID, err))
				continue
			}
			res.WorkflowsUpdated++
		}
	}
	return errs
}

func (s *Syncer) pruneOwned(ctx context.Context, f *File, res *SyncResult) error {
	if s.rules != nil {
		keep := make(map[string]bool, len(f.Rules))
		for _, r := range f.Rules {
			keep[r.ID] = true
		}
		owned, err := s.rules.GetRules(ctx, rules.RuleFilter{CreatedBy: s.actor})
		if err != nil {
			return fmt.Errorf("list owned rules: %w", err)
		}
		for _, r := range owned {
			if keep[r.ID] {
				continue
			}
			if err := s.rules.DeleteRule(ctx, r.ID, s.actor); err != nil {
				return fmt.Errorf("prune rule %q: %w", r.ID, err)
			}
			res.RulesDeleted++
		}
	}

	if s.workflows != nil {
		keep := make(map[string]bool, len(f.Workflows))
		for _, w := range f.Workflows {
			keep[w.ID] = true
		}
		owned, err := s.workflows.ListWorkflows(ctx, workflow.WorkflowFilter{CreatedBy: s.actor})
		if err != nil {
			return fmt.Errorf("list owned workflows: %w", err)
		}
		for _, w := range owned {
			if keep[w.ID] {
				continue
			}
			if err := s.workflows.DeleteWorkflow(ctx, w.ID, s.actor); err != nil {
				return fmt.Errorf("prune workflow %q: %w", w.ID, err)
			}
			res.WorkflowsDeleted++
		}
	}
	return nil
}

// rulePatch replaces every editable field, so clearing a list in the file
// clears it in storage.
func rulePatch(r *rules.Rule) rules.RulePatch {
	conditions := r.Conditions
	if conditions == nil {
		conditions = []automation.Condition{}
	}
	actions := r.Actions
	if actions == nil {
		actions = []automation.Action{}
	}
	return rules.RulePatch{
		Name:        &r.Name,
		Description: &r.Description,
		Type:        &r.Type,
		Conditions:  conditions,
		Actions:     actions,
		Priority:    &r.Priority,
		IsActive:    &r.IsActive,
	}
}

func workflowPatch(w *workflow.Workflow) workflow.WorkflowPatch {
	steps := w.Steps
	if steps == nil {
		steps = []workflow.Step{}
	}
	return workflow.WorkflowPatch{
		Name:        &w.Name,
		Description: &w.Description,
		Trigger:     &w.Trigger,
		Steps:       steps,
		Priority:    &w.Priority,
		IsActive:    &w.IsActive,
	}
}
