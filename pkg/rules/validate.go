package rules

import (
	"fmt"
	"strings"

	"leadflow-hq/relay/pkg/automation"
)

// validateRule checks the shape of a rule. With strict validation enabled
// unknown operators and action types are reported as unsupported.
func validateRule(r *Rule, cfg *Config) error {
	var errs []string

	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, "name is required")
	}
	switch {
	case r.Type == "":
		errs = append(errs, "type is required")
	case !r.Type.Valid():
		errs = append(errs, fmt.Sprintf("unknown type %q", r.Type))
	}

	if len(r.Conditions) == 0 {
		errs = append(errs, "at least one condition is required")
	}
	if len(r.Conditions) > cfg.MaxConditions {
		errs = append(errs, fmt.Sprintf("too many conditions: %d (max %d)", len(r.Conditions), cfg.MaxConditions))
	}
	for i, c := range r.Conditions {
		if strings.TrimSpace(c.Field) == "" {
			errs = append(errs, fmt.Sprintf("conditions[%d]: field is required", i))
		}
		if c.Operator == "" {
			errs = append(errs, fmt.Sprintf("conditions[%d]: operator is required", i))
		}
		if !c.LogicalOperator.Valid() {
			errs = append(errs, fmt.Sprintf("conditions[%d]: logicalOperator must be AND or OR, got %q", i, c.LogicalOperator))
		}
	}

	if len(r.Actions) == 0 {
		errs = append(errs, "at least one action is required")
	}
	if len(r.Actions) > cfg.MaxActions {
		errs = append(errs, fmt.Sprintf("too many actions: %d (max %d)", len(r.Actions), cfg.MaxActions))
	}
	for i, a := range r.Actions {
		if a.Type == "" {
			errs = append(errs, fmt.Sprintf("actions[%d]: type is required", i))
		}
	}

	if len(errs) > 0 {
		return automation.NewValidationError("rule", r.ID, errs...)
	}

	if !cfg.StrictValidation {
		return nil
	}
	for _, c := range r.Conditions {
		if !c.Operator.Valid() {
			return automation.NewUnsupportedOperationError("operator", string(c.Operator))
		}
	}
	for _, a := range r.Actions {
		if !a.Type.Valid() {
			return automation.NewUnsupportedOperationError("action type", string(a.Type))
		}
	}
	return nil
}

// normalizeRule puts condition and action values in their stored shape.
func normalizeRule(r *Rule) error {
	var err error
	if r.Conditions, err = automation.Normalize("rule", r.ID, r.Conditions); err != nil {
		return err
	}
	r.Actions, err = automation.Normalize("rule", r.ID, r.Actions)
	return err
}
