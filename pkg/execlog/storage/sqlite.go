package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"leadflow-hq/relay/pkg/config"
	"leadflow-hq/relay/pkg/execlog"
)

const selectColumns = `id, kind, lead_id, rule_id, workflow_id, step_id, execution_id,
	trigger_event, success, error_message, executed_at, duration`

// SQLiteStorage implements execlog.Storage on SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config config.SQLiteConfig
	insert *sql.Stmt
	logger *slog.Logger
}

// NewSQLiteStorage opens the database at cfg.Path, creating its directory
// and schema if needed.
func NewSQLiteStorage(cfg config.SQLiteConfig) (*SQLiteStorage, error) {
	logger := slog.Default().With("component", "execlog.storage.sqlite")

	if dir := filepath.Dir(cfg.Path); dir != "." && cfg.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, execlog.NewStorageError("sqlite", "mkdir", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, execlog.NewStorageError("sqlite", "open", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	s := &SQLiteStorage{
		db:     db,
		config: cfg,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite execution log initialized",
		"path", cfg.Path,
		"wal_mode", cfg.WALMode,
		"max_open_conns", cfg.MaxOpenConns,
	)

	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return execlog.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return execlog.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return execlog.NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return execlog.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return execlog.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return execlog.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.insert, err = s.db.Prepare(`
		INSERT INTO executions (
			id, kind, lead_id, rule_id, workflow_id, step_id, execution_id,
			trigger_event, success, error_message, executed_at, duration
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return execlog.NewStorageError("sqlite", "prepare", err)
	}

	return nil
}

// Store persists a record.
func (s *SQLiteStorage) Store(ctx context.Context, record *execlog.Record) error {
	_, err := s.insert.ExecContext(ctx,
		record.ID, string(record.Kind),
		nullString(record.LeadID), nullString(record.RuleID), nullString(record.WorkflowID),
		nullString(record.StepID), nullString(record.ExecutionID), nullString(record.TriggerEvent),
		record.Success, nullString(record.ErrorMessage),
		record.ExecutedAt.UnixNano(), int64(record.Duration),
	)
	if err != nil {
		return execlog.NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query returns the matching records.
func (s *SQLiteStorage) Query(ctx context.Context, q *execlog.Query) ([]*execlog.Record, error) {
	whereClause, args := buildWhereClause(q)

	sqlQuery := "SELECT " + selectColumns + " FROM executions"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	sortBy := "executed_at"
	if execlog.ValidSortFields[q.SortBy] {
		sortBy = q.SortBy
	}
	sortOrder := "DESC"
	if strings.EqualFold(q.SortOrder, "asc") {
		sortOrder = "ASC"
	}
	sqlQuery += fmt.Sprintf(" ORDER BY %s %s, id ASC", sortBy, sortOrder)

	if q.Limit > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT %d", q.Limit)
	} else if q.Offset > 0 {
		sqlQuery += " LIMIT -1"
	}
	if q.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, execlog.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*execlog.Record{}
	for rows.Next() {
		record, err := scanRow(rows)
		if err != nil {
			return nil, execlog.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, execlog.NewStorageError("sqlite", "query", err)
	}

	return records, nil
}

// Count returns the number of matching records.
func (s *SQLiteStorage) Count(ctx context.Context, q *execlog.Query) (int64, error) {
	whereClause, args := buildWhereClause(q)

	sqlQuery := "SELECT COUNT(*) FROM executions"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, execlog.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Delete removes the matching records.
func (s *SQLiteStorage) Delete(ctx context.Context, q *execlog.Query) (int64, error) {
	whereClause, args := buildWhereClause(q)

	sqlQuery := "DELETE FROM executions"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	result, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return 0, execlog.NewStorageError("sqlite", "delete", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, execlog.NewStorageError("sqlite", "delete", err)
	}
	return count, nil
}

// Close releases the prepared statement and the database.
func (s *SQLiteStorage) Close() error {
	if s.insert != nil {
		s.insert.Close()
	}
	if err := s.db.Close(); err != nil {
		return execlog.NewStorageError("sqlite", "close", err)
	}

	s.logger.Info("SQLite execution log closed")
	return nil
}

// Ping checks the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func buildWhereClause(q *execlog.Query) (string, []any) {
	var conditions []string
	var args []any

	if q.StartTime != nil {
		conditions = append(conditions, "executed_at >= ?")
		args = append(args, q.StartTime.UnixNano())
	}
	if q.EndTime != nil {
		conditions = append(conditions, "executed_at <= ?")
		args = append(args, q.EndTime.UnixNano())
	}

	eq := func(column, value string) {
		if value != "" {
			conditions = append(conditions, column+" = ?")
			args = append(args, value)
		}
	}
	eq("kind", string(q.Kind))
	eq("lead_id", q.LeadID)
	eq("rule_id", q.RuleID)
	eq("workflow_id", q.WorkflowID)
	eq("execution_id", q.ExecutionID)
	eq("trigger_event", q.TriggerEvent)

	if q.Success != nil {
		conditions = append(conditions, "success = ?")
		args = append(args, *q.Success)
	}

	return strings.Join(conditions, " AND "), args
}

func scanRow(rows *sql.Rows) (*execlog.Record, error) {
	var record execlog.Record
	var kind string
	var leadID, ruleID, workflowID, stepID, executionID, triggerEvent, errorMessage sql.NullString
	var executedAt, duration int64

	err := rows.Scan(
		&record.ID, &kind,
		&leadID, &ruleID, &workflowID, &stepID, &executionID, &triggerEvent,
		&record.Success, &errorMessage,
		&executedAt, &duration,
	)
	if err != nil {
		return nil, err
	}

	record.Kind = execlog.Kind(kind)
	record.LeadID = leadID.String
	record.RuleID = ruleID.String
	record.WorkflowID = workflowID.String
	record.StepID = stepID.String
	record.ExecutionID = executionID.String
	record.TriggerEvent = triggerEvent.String
	record.ErrorMessage = errorMessage.String
	record.ExecutedAt = time.Unix(0, executedAt).UTC()
	record.Duration = time.Duration(duration)

	return &record, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
