// Package workflow runs ordered, multi-step automations against leads.
//
// A Workflow is a trigger event plus steps sorted by order. ExecuteWorkflow
// creates an Execution and runs the steps one after another through a
// handler table keyed by StepType:
//
//   - action: update_status, assign_user, assign_team or update_score on the lead
//   - condition: evaluates one condition against the current lead and trigger data
//   - delay: suspends the execution until the delay elapses
//   - notification and integration: publish a message to the Sink
//
// The first failing step ends the execution as failed. Every step result is
// appended to the execution's StepLog and persisted as it happens.
//
// # Delays
//
// A delay step does not block. The execution is stored with the index of the
// next step and a resume time, and ExecuteWorkflow returns with status
// running. The Scheduler keeps pending wakeups in a min-heap served by one
// timer goroutine and sweeps the store on a cron schedule, so executions
// survive a restart. Before resuming, the scheduler claims the execution by
// clearing its resume time in the store; a wakeup that loses the claim is
// dropped. Await blocks until an execution is completed or failed.
//
// # Example
//
//	engine, err := workflow.NewEngine(workflow.DefaultConfig(), repo, sink, logger)
//	if err != nil {
//		return err
//	}
//	if err := engine.Start(ctx); err != nil {
//		return err
//	}
//	defer engine.Stop()
//
//	results, err := engine.TriggerWorkflows(ctx, "lead.created", workflow.ExecutionContext{LeadID: id})
package workflow
