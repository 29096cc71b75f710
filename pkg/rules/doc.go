// Package rules stores lead rules and applies them.
//
// A rule pairs a condition list, folded left to right by
// automation.ConditionEvaluator, with a list of actions run through an
// automation.ActionDispatcher. The Engine offers CRUD over a Repository,
// evaluation of every active rule against a lead, bulk application with
// per-lead failure isolation, and lifecycle event processing:
//
//	engine, err := rules.NewEngine(rules.DefaultConfig(), repo, nil, logger)
//	if err != nil {
//		return err
//	}
//	engine.SetExecutionLogger(recorder)
//
//	matches, err := engine.EvaluateRules(ctx, leadID, nil)
//	results := engine.BulkApplyRules(ctx, leadIDs, nil)
//
// Rules are returned highest priority first, then by name. Bulk and event
// attempts are written to the execution log; evaluation and
// TestRuleEvaluation write nothing.
package rules
