package rules

import (
	"context"
	"time"

	"leadflow-hq/relay/pkg/automation"
)

// RuleType classifies a rule by the effect it is written for.
type RuleType string

const (
	TypeAssignment   RuleType = "assignment"
	TypeScoring      RuleType = "scoring"
	TypeNotification RuleType = "notification"
	TypeStatusChange RuleType = "status_change"
	TypeEnrichment   RuleType = "enrichment"
)

// Valid reports whether t is a declared rule type.
func (t RuleType) Valid() bool {
	switch t {
	case TypeAssignment, TypeScoring, TypeNotification, TypeStatusChange, TypeEnrichment:
		return true
	}
	return false
}

// Rule is a named, prioritized set of conditions and actions.
type Rule struct {
	ID          string                 `json:"id" yaml:"id"`
	Name        string                 `json:"name" yaml:"name"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Type        RuleType               `json:"type" yaml:"type"`
	Conditions  []automation.Condition `json:"conditions" yaml:"conditions"`
	Actions     []automation.Action    `json:"actions" yaml:"actions"`
	Priority    int                    `json:"priority" yaml:"priority"`
	IsActive    bool                   `json:"isActive" yaml:"isActive"`
	CreatedBy   string                 `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`
	CreatedAt   time.Time              `json:"createdAt" yaml:"-"`
	UpdatedAt   time.Time              `json:"updatedAt" yaml:"-"`
}

// Clone returns a copy of r whose slices can be modified independently.
// Condition and action values are shared.
func (r *Rule) Clone() *Rule {
	if r == nil {
		return nil
	}
	c := *r
	c.Conditions = append([]automation.Condition(nil), r.Conditions...)
	c.Actions = append([]automation.Action(nil), r.Actions...)
	return &c
}

// RuleFilter narrows GetRules. Zero values match everything.
type RuleFilter struct {
	Type      RuleType
	Active    *bool
	CreatedBy string
}

// Matches reports whether r passes the filter.
func (f RuleFilter) Matches(r *Rule) bool {
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.Active != nil && r.IsActive != *f.Active {
		return false
	}
	if f.CreatedBy != "" && r.CreatedBy != f.CreatedBy {
		return false
	}
	return true
}

// RulePatch is a partial update. Nil fields are left unchanged.
type RulePatch struct {
	Name        *string
	Description *string
	Type        *RuleType
	Conditions  []automation.Condition
	Actions     []automation.Action
	Priority    *int
	IsActive    *bool
}

func (p RulePatch) apply(r *Rule) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.Conditions != nil {
		r.Conditions = p.Conditions
	}
	if p.Actions != nil {
		r.Actions = p.Actions
	}
	if p.Priority != nil {
		r.Priority = *p.Priority
	}
	if p.IsActive != nil {
		r.IsActive = *p.IsActive
	}
}

// MatchResult is one active rule whose conditions matched a lead.
type MatchResult struct {
	Matched    bool                   `json:"matched"`
	RuleID     string                 `json:"ruleId"`
	RuleName   string                 `json:"ruleName"`
	Priority   int                    `json:"priority"`
	Actions    []automation.Action    `json:"actions"`
	Conditions []automation.Condition `json:"conditions"`
}

// TestResult is the outcome of evaluating one rule against a sample lead.
type TestResult struct {
	Matched    bool                   `json:"matched"`
	Actions    []automation.Action    `json:"actions"`
	Conditions []automation.Condition `json:"conditions"`
}

// BulkResult is the per-lead outcome of BulkApplyRules. ActionsApplied
// counts every action handed to the dispatcher, including unknown types and
// unsupported targets that were skipped; on success it equals the length of
// the matched rules' flattened action list.
type BulkResult struct {
	LeadID         string `json:"leadId"`
	Success        bool   `json:"success"`
	RulesMatched   int    `json:"rulesMatched,omitempty"`
	ActionsApplied int    `json:"actionsApplied,omitempty"`
	Error          string `json:"error,omitempty"`
}

// RuleFailure names a rule whose actions failed during event processing.
type RuleFailure struct {
	RuleID string `json:"ruleId"`
	Error  string `json:"error"`
}

// EventResult is the outcome of ProcessEvent.
type EventResult struct {
	LeadID         string        `json:"leadId"`
	Event          string        `json:"event"`
	RulesMatched   int           `json:"rulesMatched"`
	ActionsApplied int           `json:"actionsApplied"`
	Failures       []RuleFailure `json:"failures,omitempty"`
}

// Success reports whether every matched rule applied cleanly.
func (r *EventResult) Success() bool {
	return len(r.Failures) == 0
}

// Lifecycle events recognized by ProcessEvent callers. Event names are
// free-form; these are the ones the lead lifecycle emits.
const (
	EventLeadCreated  = "lead.created"
	EventLeadUpdated  = "lead.updated"
	EventLeadScored   = "lead.scored"
	EventLeadEnriched = "lead.enriched"
)

// Repository is the persistence the rule engine needs.
type Repository interface {
	automation.LeadStore

	CreateRule(ctx context.Context, rule *Rule) error
	GetRule(ctx context.Context, id string) (*Rule, error)
	ListRules(ctx context.Context, filter RuleFilter) ([]*Rule, error)
	UpdateRule(ctx context.Context, rule *Rule) error
	DeleteRule(ctx context.Context, id string) error
}
