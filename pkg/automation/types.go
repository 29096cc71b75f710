package automation

import (
	"strings"
	"time"
)

// Operator is a comparison operator used by a Condition.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorContains    Operator = "contains"
	OperatorIn          Operator = "in"
	OperatorNotIn       Operator = "not_in"
)

// Valid reports whether o is a supported operator.
func (o Operator) Valid() bool {
	switch o {
	case OperatorEquals, OperatorNotEquals, OperatorGreaterThan, OperatorLessThan,
		OperatorContains, OperatorIn, OperatorNotIn:
		return true
	}
	return false
}

// LogicalOperator combines a condition with the one that follows it.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// Normalize upper-cases the operator. The empty operator stays empty.
func (l LogicalOperator) Normalize() LogicalOperator {
	return LogicalOperator(strings.ToUpper(strings.TrimSpace(string(l))))
}

// Valid reports whether l is AND, OR or unset.
func (l LogicalOperator) Valid() bool {
	switch l.Normalize() {
	case "", LogicalAnd, LogicalOr:
		return true
	}
	return false
}

// Condition is a single field/operator/value comparison.
type Condition struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value" yaml:"value"`

	// LogicalOperator decides how the next condition combines with the
	// running result. Unset keeps the previous operator (AND for the first).
	LogicalOperator LogicalOperator `json:"logicalOperator,omitempty" yaml:"logicalOperator,omitempty"`
}

// ActionType identifies an action variant.
type ActionType string

const (
	ActionAssignment   ActionType = "assignment"
	ActionScoring      ActionType = "scoring"
	ActionNotification ActionType = "notification"
	ActionStatusChange ActionType = "status_change"
	ActionEnrichment   ActionType = "enrichment"
)

// ActionTypes lists every declared action variant.
func ActionTypes() []ActionType {
	return []ActionType{
		ActionAssignment,
		ActionScoring,
		ActionNotification,
		ActionStatusChange,
		ActionEnrichment,
	}
}

// Valid reports whether t is a declared action variant.
func (t ActionType) Valid() bool {
	for _, known := range ActionTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Assignment targets.
const (
	TargetUser = "user"
	TargetTeam = "team"
)

// Action is a typed effect applied to a lead.
type Action struct {
	Type     ActionType     `json:"type" yaml:"type"`
	Target   string         `json:"target,omitempty" yaml:"target,omitempty"`
	Value    any            `json:"value,omitempty" yaml:"value,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ActionResult describes what a dispatched action did.
type ActionResult struct {
	ActionType ActionType
	Applied    bool
	Skipped    bool
	Details    map[string]any
}

// Message is an outbound notification, enrichment request or integration
// call handed to a Sink.
type Message struct {
	Kind      string         `json:"kind"`
	LeadID    string         `json:"leadId,omitempty"`
	Target    string         `json:"target,omitempty"`
	Value     any            `json:"value,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
