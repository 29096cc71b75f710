package automation

import (
	"log/slog"

	"leadflow-hq/relay/pkg/lead"
)

// ConditionEvaluator evaluates condition lists against a lead and a context map.
// It has no side effects beyond debug logging and is safe for concurrent use.
type ConditionEvaluator struct {
	logger *slog.Logger
}

// NewConditionEvaluator creates a condition evaluator.
func NewConditionEvaluator(logger *slog.Logger) *ConditionEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConditionEvaluator{
		logger: logger.With("component", "automation.evaluator"),
	}
}

// Evaluate folds conditions left to right. An empty list matches.
//
// The running result starts as the first condition's outcome and the
// current operator as its LogicalOperator (AND when unset). Every following
// condition is evaluated, combined with the running result using the current
// operator, and then replaces the current operator with its own when set.
func (e *ConditionEvaluator) Evaluate(conditions []Condition, entity *lead.Lead, context map[string]any) bool {
	if len(conditions) == 0 {
		return true
	}

	result := e.EvaluateCondition(conditions[0], entity, context)
	current := conditions[0].LogicalOperator.Normalize()
	if current == "" {
		current = LogicalAnd
	}

	for _, cond := range conditions[1:] {
		matched := e.EvaluateCondition(cond, entity, context)

		switch current {
		case LogicalOr:
			result = result || matched
		default:
			result = result && matched
		}

		if next := cond.LogicalOperator.Normalize(); next != "" {
			current = next
		}
	}

	return result
}

// EvaluateCondition evaluates a single condition. Malformed conditions
// evaluate to false.
func (e *ConditionEvaluator) EvaluateCondition(cond Condition, entity *lead.Lead, context map[string]any) bool {
	if cond.Field == "" || cond.Operator == "" {
		e.logger.Debug("malformed condition",
			"field", cond.Field,
			"operator", cond.Operator,
		)
		return false
	}

	actual, _ := Resolve(cond.Field, entity, context)

	matched, err := evaluateOperator(cond.Operator, actual, cond.Value)
	if err != nil {
		e.logger.Debug("condition evaluation failed",
			"field", cond.Field,
			"operator", cond.Operator,
			"error", err,
		)
		return false
	}

	e.logger.Debug("condition evaluated",
		"field", cond.Field,
		"operator", cond.Operator,
		"expected", cond.Value,
		"actual", actual,
		"matched", matched,
	)

	return matched
}

// EvaluateStrict evaluates a single condition and reports unknown operators
// and unresolvable fields as errors instead of folding them into false.
func (e *ConditionEvaluator) EvaluateStrict(cond Condition, entity *lead.Lead, context map[string]any) (bool, error) {
	if cond.Field == "" {
		return false, NewValidationError("condition", "", "field is required")
	}
	if !cond.Operator.Valid() {
		return false, NewUnsupportedOperationError("operator", string(cond.Operator))
	}

	actual, ok := Resolve(cond.Field, entity, context)
	if !ok {
		return false, NewUnsupportedOperationError("field", cond.Field)
	}

	return evaluateOperator(cond.Operator, actual, cond.Value)
}

// Resolve looks a field up on the lead first and in context second. The
// second result is false when the field is neither a known lead field nor a
// context key.
func Resolve(field string, entity *lead.Lead, context map[string]any) (any, bool) {
	if v, ok := entity.Field(field); ok {
		return v, true
	}
	if context != nil {
		if v, ok := context[field]; ok {
			return v, true
		}
	}
	return nil, false
}
