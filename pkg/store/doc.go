// Package store persists leads, rules, workflows and workflow executions.
//
// Two backends implement Repository: MemoryRepository for tests and
// single-process use, and SQLiteRepository for durable storage. Both
// satisfy rules.Repository and workflow.Repository, so one instance serves
// both engines. Deleting a workflow deletes its steps, executions and step
// results.
package store
