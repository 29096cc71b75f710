package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadflow-hq/relay/pkg/automation"
	"leadflow-hq/relay/pkg/workflow"
)

const workflowColumns = `id, name, description, trigger_event, priority, is_active, created_by,
	created_at, updated_at`

const executionColumns = `id, workflow_id, lead_id, user_id, trigger_event, status, trigger_data,
	started_at, completed_at, error_message, next_step, resume_at`

func (r *SQLiteRepository) CreateWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	return r.withTx(ctx, "create_workflow", func(tx *sql.Tx) error {
		found, err := exists(ctx, tx, "workflows", wf.ID)
		if err != nil {
			return newStorageError("sqlite", "create_workflow", err)
		}
		if found {
			return alreadyExists("workflow", wf.ID)
		}
		return writeWorkflow(ctx, tx, wf)
	})
}

// writeWorkflow upserts the workflow row and replaces its steps.
func writeWorkflow(ctx context.Context, tx *sql.Tx, wf *workflow.Workflow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO workflows (`+workflowColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			trigger_event = excluded.trigger_event,
			priority = excluded.priority,
			is_active = excluded.is_active,
			created_by = excluded.created_by,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		wf.ID, wf.Name, nullString(wf.Description), wf.Trigger, wf.Priority, wf.IsActive,
		nullString(wf.CreatedBy), wf.CreatedAt.UnixNano(), wf.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return newStorageError("sqlite", "write_workflow", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM workflow_steps WHERE workflow_id = ?", wf.ID); err != nil {
		return newStorageError("sqlite", "write_workflow_steps", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO workflow_steps (workflow_id, id, name, type, step_order, config)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return newStorageError("sqlite", "write_workflow_steps", err)
	}
	defer stmt.Close()

	for _, s := range wf.Steps {
		var cfg sql.NullString
		if s.Config != nil {
			data, err := json.Marshal(s.Config)
			if err != nil {
				return fmt.Errorf("failed to marshal step %s config: %w", s.ID, err)
			}
			cfg = sql.NullString{String: string(data), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, wf.ID, s.ID, nullString(s.Name), string(s.Type), s.Order, cfg); err != nil {
			return newStorageError("sqlite", "write_workflow_steps", err)
		}
	}
	return nil
}

func scanWorkflow(row rowScanner) (*workflow.Workflow, error) {
	var (
		wf                     workflow.Workflow
		description, createdBy sql.NullString
		createdAt, updatedAt   int64
	)
	if err := row.Scan(&wf.ID, &wf.Name, &description, &wf.Trigger, &wf.Priority, &wf.IsActive,
		&createdBy, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	wf.Description = description.String
	wf.CreatedBy = createdBy.String
	wf.CreatedAt = time.Unix(0, createdAt).UTC()
	wf.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &wf, nil
}

func (r *SQLiteRepository) loadSteps(ctx context.Context, wf *workflow.Workflow) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, type, step_order, config
		FROM workflow_steps
		WHERE workflow_id = ?
		ORDER BY step_order ASC`, wf.ID)
	if err != nil {
		return newStorageError("sqlite", "load_steps", err)
	}
	defer rows.Close()

	wf.Steps = []workflow.Step{}
	for rows.Next() {
		var (
			s         workflow.Step
			name, cfg sql.NullString
			stepType  string
		)
		if err := rows.Scan(&s.ID, &name, &stepType, &s.Order, &cfg); err != nil {
			return newStorageError("sqlite", "scan_step", err)
		}
		s.Name = name.String
		s.Type = workflow.StepType(stepType)
		if cfg.Valid {
			if err := json.Unmarshal([]byte(cfg.String), &s.Config); err != nil {
				return fmt.Errorf("failed to unmarshal step %s config: %w", s.ID, err)
			}
		}
		wf.Steps = append(wf.Steps, s)
	}
	if err := rows.Err(); err != nil {
		return newStorageError("sqlite", "load_steps", err)
	}
	return nil
}

func (r *SQLiteRepository) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+workflowColumns+" FROM workflows WHERE id = ?", id)
	wf, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, automation.NewNotFoundError("workflow", id)
	}
	if err != nil {
		return nil, newStorageError("sqlite", "get_workflow", err)
	}
	if err := r.loadSteps(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

func (r *SQLiteRepository) ListWorkflows(ctx context.Context, filter workflow.WorkflowFilter) ([]*workflow.Workflow, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Trigger != "" {
		clauses = append(clauses, "trigger_event = ?")
		args = append(args, filter.Trigger)
	}
	if filter.Active != nil {
		clauses = append(clauses, "is_active = ?")
		args = append(args, *filter.Active)
	}
	if filter.CreatedBy != "" {
		clauses = append(clauses, "created_by = ?")
		args = append(args, filter.CreatedBy)
	}

	q := "SELECT " + workflowColumns + " FROM workflows"
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	q += " ORDER BY id ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, newStorageError("sqlite", "list_workflows", err)
	}
	out := []*workflow.Workflow{}
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			rows.Close()
			return nil, newStorageError("sqlite", "scan_workflow", err)
		}
		out = append(out, wf)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, newStorageError("sqlite", "list_workflows", err)
	}

	for _, wf := range out {
		if err := r.loadSteps(ctx, wf); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	return r.withTx(ctx, "update_workflow", func(tx *sql.Tx) error {
		found, err := exists(ctx, tx, "workflows", wf.ID)
		if err != nil {
			return newStorageError("sqlite", "update_workflow", err)
		}
		if !found {
			return automation.NewNotFoundError("workflow", wf.ID)
		}
		return writeWorkflow(ctx, tx, wf)
	})
}

// DeleteWorkflow deletes dependents explicitly so the cascade does not
// depend on the foreign_keys pragma of the connection in use.
func (r *SQLiteRepository) DeleteWorkflow(ctx context.Context, id string) error {
	return r.withTx(ctx, "delete_workflow", func(tx *sql.Tx) error {
		found, err := exists(ctx, tx, "workflows", id)
		if err != nil {
			return newStorageError("sqlite", "delete_workflow", err)
		}
		if !found {
			return automation.NewNotFoundError("workflow", id)
		}

		for _, q := range []string{
			`DELETE FROM workflow_step_results WHERE execution_id IN
				(SELECT id FROM workflow_executions WHERE workflow_id = ?)`,
			"DELETE FROM workflow_executions WHERE workflow_id = ?",
			"DELETE FROM workflow_steps WHERE workflow_id = ?",
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return newStorageError("sqlite", "delete_workflow", err)
			}
		}
		return deleteByID(ctx, tx, "workflows", "workflow", id)
	})
}

func (r *SQLiteRepository) CreateExecution(ctx context.Context, x *workflow.Execution) error {
	var triggerData sql.NullString
	if x.TriggerData != nil {
		data, err := json.Marshal(x.TriggerData)
		if err != nil {
			return fmt.Errorf("failed to marshal trigger data: %w", err)
		}
		triggerData = sql.NullString{String: string(data), Valid: true}
	}

	return r.withTx(ctx, "create_execution", func(tx *sql.Tx) error {
		found, err := exists(ctx, tx, "workflow_executions", x.ID)
		if err != nil {
			return newStorageError("sqlite", "create_execution", err)
		}
		if found {
			return alreadyExists("execution", x.ID)
		}
		found, err = exists(ctx, tx, "workflows", x.WorkflowID)
		if err != nil {
			return newStorageError("sqlite", "create_execution", err)
		}
		if !found {
			return automation.NewNotFoundError("workflow", x.WorkflowID)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO workflow_executions (`+executionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			x.ID, x.WorkflowID, nullString(x.LeadID), nullString(x.UserID), nullString(x.TriggerEvent),
			string(x.Status), triggerData, x.StartedAt.UnixNano(), nullTime(x.CompletedAt),
			nullString(x.ErrorMessage), x.NextStep, nullTime(x.ResumeAt),
		)
		if err != nil {
			return newStorageError("sqlite", "create_execution", err)
		}

		for _, sr := range x.StepResults.Results() {
			if err := appendStepResult(ctx, tx, x.ID, sr); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) GetExecution(ctx context.Context, id string) (*workflow.Execution, error) {
	var (
		x                                   workflow.Execution
		leadID, userID, event, data, errMsg sql.NullString
		status                              string
		startedAt                           int64
		completedAt, resumeAt               sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, "SELECT "+executionColumns+" FROM workflow_executions WHERE id = ?", id).Scan(
		&x.ID, &x.WorkflowID, &leadID, &userID, &event, &status, &data,
		&startedAt, &completedAt, &errMsg, &x.NextStep, &resumeAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, automation.NewNotFoundError("execution", id)
	}
	if err != nil {
		return nil, newStorageError("sqlite", "get_execution", err)
	}

	x.LeadID = leadID.String
	x.UserID = userID.String
	x.TriggerEvent = event.String
	x.Status = workflow.Status(status)
	x.ErrorMessage = errMsg.String
	x.StartedAt = time.Unix(0, startedAt).UTC()
	x.CompletedAt = timePtr(completedAt)
	x.ResumeAt = timePtr(resumeAt)
	if data.Valid {
		if err := json.Unmarshal([]byte(data.String), &x.TriggerData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger data: %w", err)
		}
	}

	results, err := r.loadStepResults(ctx, id)
	if err != nil {
		return nil, err
	}
	x.StepResults = *workflow.NewStepLog(results...)
	return &x, nil
}

func (r *SQLiteRepository) loadStepResults(ctx context.Context, executionID string) ([]workflow.StepResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT idx, step_id, step_type, success, result, error, started_at, completed_at
		FROM workflow_step_results
		WHERE execution_id = ?
		ORDER BY idx ASC`, executionID)
	if err != nil {
		return nil, newStorageError("sqlite", "load_step_results", err)
	}
	defer rows.Close()

	var out []workflow.StepResult
	for rows.Next() {
		var (
			sr                               workflow.StepResult
			stepID, stepType, result, errMsg sql.NullString
			startedAt, completedAt           int64
		)
		if err := rows.Scan(&sr.Index, &stepID, &stepType, &sr.Success, &result, &errMsg,
			&startedAt, &completedAt); err != nil {
			return nil, newStorageError("sqlite", "scan_step_result", err)
		}
		sr.StepID = stepID.String
		sr.StepType = workflow.StepType(stepType.String)
		sr.Error = errMsg.String
		sr.StartedAt = time.Unix(0, startedAt).UTC()
		sr.CompletedAt = time.Unix(0, completedAt).UTC()
		if result.Valid {
			if err := json.Unmarshal([]byte(result.String), &sr.Result); err != nil {
				return nil, fmt.Errorf("failed to unmarshal step result: %w", err)
			}
		}
		out = append(out, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError("sqlite", "load_step_results", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateExecution(ctx context.Context, x *workflow.Execution) error {
	return r.withTx(ctx, "update_execution", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE workflow_executions
			SET status = ?, completed_at = ?, error_message = ?, next_step = ?, resume_at = ?
			WHERE id = ?`,
			string(x.Status), nullTime(x.CompletedAt), nullString(x.ErrorMessage),
			x.NextStep, nullTime(x.ResumeAt), x.ID,
		)
		if err != nil {
			return newStorageError("sqlite", "update_execution", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return automation.NewNotFoundError("execution", x.ID)
		}
		return nil
	})
}

func (r *SQLiteRepository) AppendStepResult(ctx context.Context, executionID string, result workflow.StepResult) error {
	return r.withTx(ctx, "append_step_result", func(tx *sql.Tx) error {
		found, err := exists(ctx, tx, "workflow_executions", executionID)
		if err != nil {
			return newStorageError("sqlite", "append_step_result", err)
		}
		if !found {
			return automation.NewNotFoundError("execution", executionID)
		}
		return appendStepResult(ctx, tx, executionID, result)
	})
}

// appendStepResult stores result at the next index of the execution's
// log, ignoring result.Index.
func appendStepResult(ctx context.Context, tx *sql.Tx, executionID string, result workflow.StepResult) error {
	var data sql.NullString
	if result.Result != nil {
		b, err := json.Marshal(result.Result)
		if err != nil {
			return fmt.Errorf("failed to marshal step result: %w", err)
		}
		data = sql.NullString{String: string(b), Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO workflow_step_results
			(execution_id, idx, step_id, step_type, success, result, error, started_at, completed_at)
		VALUES (?, (SELECT COALESCE(MAX(idx) + 1, 0) FROM workflow_step_results WHERE execution_id = ?),
			?, ?, ?, ?, ?, ?, ?)`,
		executionID, executionID, nullString(result.StepID), nullString(string(result.StepType)),
		result.Success, data, nullString(result.Error),
		result.StartedAt.UnixNano(), result.CompletedAt.UnixNano(),
	)
	if err != nil {
		return newStorageError("sqlite", "append_step_result", err)
	}
	return nil
}

// ClaimExecution is a compare-and-clear on resume_at.
func (r *SQLiteRepository) ClaimExecution(ctx context.Context, id string, resumeAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `
		UPDATE workflow_executions
		SET resume_at = NULL
		WHERE id = ? AND status = ? AND resume_at = ?`,
		id, string(workflow.StatusRunning), resumeAt.UnixNano(),
	)
	if err != nil {
		return false, newStorageError("sqlite", "claim_execution", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, newStorageError("sqlite", "claim_execution", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) ListDueExecutions(ctx context.Context, before time.Time, limit int) ([]workflow.Wakeup, error) {
	q, args := appendPaging(`
		SELECT id, resume_at
		FROM workflow_executions
		WHERE status = ? AND resume_at IS NOT NULL AND resume_at <= ?
		ORDER BY resume_at ASC, id ASC`,
		[]any{string(workflow.StatusRunning), before.UnixNano()}, limit, 0)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, newStorageError("sqlite", "list_due_executions", err)
	}
	defer rows.Close()

	var due []workflow.Wakeup
	for rows.Next() {
		var (
			w  workflow.Wakeup
			at int64
		)
		if err := rows.Scan(&w.ExecutionID, &at); err != nil {
			return nil, newStorageError("sqlite", "scan_due_execution", err)
		}
		w.ResumeAt = time.Unix(0, at).UTC()
		due = append(due, w)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError("sqlite", "list_due_executions", err)
	}
	return due, nil
}
