package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"leadflow-hq/relay/pkg/automation"
	"leadflow-hq/relay/pkg/execlog"
	"leadflow-hq/relay/pkg/lead"
	"leadflow-hq/relay/pkg/telemetry/logging"
	"leadflow-hq/relay/pkg/telemetry/metrics"
)

// TriggerBulk is the trigger event recorded for BulkApplyRules attempts.
const TriggerBulk = "bulk"

// Engine manages rules and applies them to leads.
type Engine struct {
	config     *Config
	repo       Repository
	evaluator  *automation.ConditionEvaluator
	dispatcher *automation.ActionDispatcher
	execLog    execlog.Logger
	metrics    *metrics.RuleMetrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewEngine creates a rule engine over repo. A nil config uses
// DefaultConfig and a nil dispatcher gets one writing through repo.
func NewEngine(config *Config, repo Repository, dispatcher *automation.ActionDispatcher, logger *slog.Logger) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if repo == nil {
		return nil, fmt.Errorf("rule repository cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if dispatcher == nil {
		dispatcher = automation.NewActionDispatcher(repo, nil, logger)
	}
	if err := dispatcher.CheckHandlers(); err != nil {
		return nil, err
	}

	return &Engine{
		config:     config,
		repo:       repo,
		evaluator:  automation.NewConditionEvaluator(logger),
		dispatcher: dispatcher,
		execLog:    execlog.NopLogger{},
		logger:     logger.With("component", "rules.engine"),
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// SetExecutionLogger sets where bulk and event attempts are recorded.
func (e *Engine) SetExecutionLogger(l execlog.Logger) {
	if l == nil {
		l = execlog.NopLogger{}
	}
	e.execLog = l
}

// SetMetrics attaches rule metrics.
func (e *Engine) SetMetrics(m *metrics.RuleMetrics) {
	e.metrics = m
}

// CreateRule validates and stores a copy of rule. An id is generated when
// missing.
func (e *Engine) CreateRule(ctx context.Context, rule *Rule) (*Rule, error) {
	if rule == nil {
		return nil, automation.NewValidationError("rule", "", "rule is required")
	}

	r := rule.Clone()
	if err := validateRule(r, e.config); err != nil {
		return nil, err
	}
	if err := normalizeRule(r); err != nil {
		return nil, err
	}

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := e.now()
	r.CreatedAt = now
	r.UpdatedAt = now

	if err := e.repo.CreateRule(ctx, r); err != nil {
		return nil, err
	}

	e.logger.InfoContext(logging.WithRuleID(ctx, r.ID), "rule created",
		"name", r.Name,
		"type", r.Type,
		"priority", r.Priority,
	)
	return r.Clone(), nil
}

// GetRules returns the rules passing filter, highest priority first.
func (e *Engine) GetRules(ctx context.Context, filter RuleFilter) ([]*Rule, error) {
	rules, err := e.repo.ListRules(ctx, filter)
	if err != nil {
		return nil, err
	}
	SortRules(rules)
	return rules, nil
}

// GetRuleByID returns one rule.
func (e *Engine) GetRuleByID(ctx context.Context, id string) (*Rule, error) {
	return e.repo.GetRule(ctx, id)
}

// UpdateRule applies patch to the stored rule and re-validates it.
func (e *Engine) UpdateRule(ctx context.Context, id string, patch RulePatch) (*Rule, error) {
	existing, err := e.repo.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	r := existing.Clone()
	patch.apply(r)
	r.ID = existing.ID
	r.CreatedAt = existing.CreatedAt
	if err := validateRule(r, e.config); err != nil {
		return nil, err
	}
	if err := normalizeRule(r); err != nil {
		return nil, err
	}
	r.UpdatedAt = e.now()

	if err := e.repo.UpdateRule(ctx, r); err != nil {
		return nil, err
	}

	e.logger.InfoContext(logging.WithRuleID(ctx, id), "rule updated")
	return r.Clone(), nil
}

// DeleteRule removes a rule. The actor is only logged.
func (e *Engine) DeleteRule(ctx context.Context, id, actorID string) error {
	if err := e.repo.DeleteRule(ctx, id); err != nil {
		return err
	}

	ctx = logging.WithActor(logging.WithRuleID(ctx, id), actorID)
	e.logger.InfoContext(ctx, "rule deleted")
	return nil
}

// EvaluateRules returns a MatchResult for every active rule whose
// conditions match the lead, highest priority first.
func (e *Engine) EvaluateRules(ctx context.Context, leadID string, evalCtx map[string]any) ([]MatchResult, error) {
	l, err := e.repo.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	active := true
	rules, err := e.GetRules(ctx, RuleFilter{Active: &active})
	if err != nil {
		return nil, err
	}

	return e.evaluateLead(ctx, l, rules, evalCtx), nil
}

func (e *Engine) evaluateLead(ctx context.Context, l *lead.Lead, rules []*Rule, evalCtx map[string]any) []MatchResult {
	start := time.Now()

	matches := []MatchResult{}
	for _, r := range rules {
		if !e.evaluator.Evaluate(r.Conditions, l, evalCtx) {
			continue
		}
		matches = append(matches, MatchResult{
			Matched:    true,
			RuleID:     r.ID,
			RuleName:   r.Name,
			Priority:   r.Priority,
			Actions:    r.Actions,
			Conditions: r.Conditions,
		})
	}

	e.metrics.RecordEvaluation(len(rules), len(matches), time.Since(start))
	e.logger.DebugContext(ctx, "rules evaluated",
		"evaluated", len(rules),
		"matched", len(matches),
	)
	return matches
}

// ApplyRuleActions applies actions to the lead in order. The first failing
// action stops the call and its error is returned.
func (e *Engine) ApplyRuleActions(ctx context.Context, leadID string, actions []automation.Action) error {
	if _, err := e.repo.GetLead(ctx, leadID); err != nil {
		return err
	}
	_, err := e.applyActions(ctx, leadID, actions)
	return err
}

// applyActions returns how many actions were dispatched before any error.
// Skipped actions count: they were handled, just without an effect.
func (e *Engine) applyActions(ctx context.Context, leadID string, actions []automation.Action) (int, error) {
	dispatched := 0
	for _, action := range actions {
		result, err := e.dispatcher.Apply(ctx, leadID, action)
		if err != nil {
			e.metrics.RecordAction(string(action.Type), "error")
			return dispatched, err
		}
		dispatched++
		if result != nil && result.Skipped {
			e.metrics.RecordAction(string(action.Type), "skipped")
			continue
		}
		e.metrics.RecordAction(string(action.Type), "applied")
	}
	return dispatched, nil
}

// TestRuleEvaluation evaluates one rule against a sample lead without
// touching any stored lead or writing execution records.
func (e *Engine) TestRuleEvaluation(ctx context.Context, ruleID string, sample *lead.Lead) (*TestResult, error) {
	r, err := e.repo.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	return &TestResult{
		Matched:    e.evaluator.Evaluate(r.Conditions, sample, nil),
		Actions:    r.Actions,
		Conditions: r.Conditions,
	}, nil
}

// BulkApplyRules evaluates and applies the active rules for each lead.
// A failure or panic on one lead is captured in its result and never
// affects the others. Results are in input order.
func (e *Engine) BulkApplyRules(ctx context.Context, leadIDs []string, evalCtx map[string]any) []BulkResult {
	results := make([]BulkResult, len(leadIDs))

	if e.config.BulkConcurrency <= 1 {
		for i, id := range leadIDs {
			results[i] = e.bulkApplyOne(ctx, id, evalCtx)
		}
	} else {
		var wg sync.WaitGroup
		sem := make(chan struct{}, e.config.BulkConcurrency)
		for i, id := range leadIDs {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int, id string) {
				defer wg.Done()
				defer func() { <-sem }()
				results[i] = e.bulkApplyOne(ctx, id, evalCtx)
			}(i, id)
		}
		wg.Wait()
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	e.logger.InfoContext(ctx, "bulk apply completed",
		"leads", len(leadIDs),
		"failed", failed,
	)
	return results
}

func (e *Engine) bulkApplyOne(ctx context.Context, leadID string, evalCtx map[string]any) (result BulkResult) {
	ctx = logging.WithTriggerEvent(logging.WithLeadID(ctx, leadID), TriggerBulk)
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			e.logger.ErrorContext(ctx, "panic while applying rules", "panic", p)
			result = BulkResult{LeadID: leadID, Success: false, Error: fmt.Sprintf("panic: %v", p)}
			e.record(ctx, leadID, "", TriggerBulk, start, fmt.Errorf("panic: %v", p))
		}
		e.metrics.RecordBulkItem(result.Success)
	}()

	matches, err := e.EvaluateRules(ctx, leadID, evalCtx)
	if err != nil {
		e.record(ctx, leadID, "", TriggerBulk, start, err)
		return BulkResult{LeadID: leadID, Success: false, Error: err.Error()}
	}

	applied := 0
	for _, m := range matches {
		ruleStart := time.Now()
		n, err := e.applyActions(logging.WithRuleID(ctx, m.RuleID), leadID, m.Actions)
		applied += n
		e.record(ctx, leadID, m.RuleID, TriggerBulk, ruleStart, err)
		if err != nil {
			e.logger.WarnContext(ctx, "bulk apply failed",
				"rule_id", m.RuleID,
				"error", err,
			)
			return BulkResult{LeadID: leadID, Success: false, RulesMatched: len(matches), ActionsApplied: applied, Error: err.Error()}
		}
	}

	return BulkResult{
		LeadID:         leadID,
		Success:        true,
		RulesMatched:   len(matches),
		ActionsApplied: applied,
	}
}

// ProcessEvent applies the matching active rules for a lifecycle event,
// highest priority first. A rule whose actions fail is recorded in
// Failures and the remaining rules still run. Errors loading the lead or
// the rules are returned.
func (e *Engine) ProcessEvent(ctx context.Context, leadID, event string, evalCtx map[string]any) (*EventResult, error) {
	ctx = logging.WithTriggerEvent(logging.WithLeadID(ctx, leadID), event)
	start := time.Now()

	matches, err := e.EvaluateRules(ctx, leadID, evalCtx)
	if err != nil {
		e.record(ctx, leadID, "", event, start, err)
		return nil, err
	}

	result := &EventResult{
		LeadID:       leadID,
		Event:        event,
		RulesMatched: len(matches),
	}

	for _, m := range matches {
		ruleStart := time.Now()
		n, err := e.applyActions(logging.WithRuleID(ctx, m.RuleID), leadID, m.Actions)
		result.ActionsApplied += n
		e.record(ctx, leadID, m.RuleID, event, ruleStart, err)
		if err != nil {
			e.logger.WarnContext(ctx, "rule actions failed",
				"rule_id", m.RuleID,
				"error", err,
			)
			result.Failures = append(result.Failures, RuleFailure{RuleID: m.RuleID, Error: err.Error()})
		}
	}

	e.logger.InfoContext(ctx, "event processed",
		"rules_matched", result.RulesMatched,
		"actions_applied", result.ActionsApplied,
		"failures", len(result.Failures),
	)
	return result, nil
}

func (e *Engine) record(ctx context.Context, leadID, ruleID, event string, start time.Time, err error) {
	r := &execlog.Record{
		Kind:         execlog.KindRule,
		LeadID:       leadID,
		RuleID:       ruleID,
		TriggerEvent: event,
		Success:      err == nil,
		ExecutedAt:   e.now(),
		Duration:     time.Since(start),
	}
	if err != nil {
		r.ErrorMessage = err.Error()
	}
	e.execLog.Log(ctx, r)
}
