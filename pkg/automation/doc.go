// Package automation holds the building blocks shared by the rule and
// workflow engines: the condition evaluator, the action dispatcher, the
// outbound message sink and the error taxonomy.
//
// # Condition Evaluation
//
// Conditions are evaluated against a lead snapshot plus an optional context
// map. Known lead fields shadow context keys of the same name. Conditions are
// folded strictly left to right: each condition's LogicalOperator decides how
// the NEXT condition combines with the running result. There is no operator
// precedence and no short circuit, so
//
//	A (OR) B (AND) C   ==   (A || B) && C
//
// A malformed condition evaluates to false instead of returning an error.
//
// # Action Dispatch
//
// Actions are resolved through a handler table keyed by ActionType. Every
// declared ActionType has a handler; an undeclared type is logged as a warning
// and skipped. Mutating actions write through a LeadStore, notification and
// enrichment actions are published to a Sink.
//
// # Errors
//
// ValidationError, NotFoundError, ExecutionError and UnsupportedOperationError
// match the sentinels ErrValidation, ErrNotFound, ErrExecution and
// ErrUnsupported through errors.Is.
package automation
