package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"leadflow-hq/relay/pkg/automation"
	"leadflow-hq/relay/pkg/config"
	"leadflow-hq/relay/pkg/lead"
	"leadflow-hq/relay/pkg/rules"
)

const leadColumns = `id, company_name, domain, industry, status, score, assigned_to_id,
	assigned_team_id, campaign_id, confidence, company_size, revenue, created_at, updated_at`

const ruleColumns = `id, name, description, type, conditions, actions, priority, is_active,
	created_by, created_at, updated_at`

// SQLiteRepository implements Repository on SQLite. Writes are serialized
// through a mutex; reads go through the connection pool.
type SQLiteRepository struct {
	db        *sql.DB
	path      string
	mu        sync.Mutex
	closeOnce sync.Once
	logger    *slog.Logger
	now       func() time.Time
}

// NewSQLiteRepository opens the database at cfg.Path, creating its
// directory and schema if needed.
func NewSQLiteRepository(cfg config.SQLiteConfig) (*SQLiteRepository, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, newStorageError("sqlite", "mkdir", err)
		}
	}

	pragmas := url.Values{}
	pragmas.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	pragmas.Add("_pragma", "foreign_keys(1)")
	pragmas.Add("_pragma", "synchronous(NORMAL)")
	if cfg.WALMode {
		pragmas.Add("_pragma", "journal_mode(WAL)")
	}
	dsn := fmt.Sprintf("%s?%s", cfg.Path, pragmas.Encode())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, newStorageError("sqlite", "open", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(0)

	r := &SQLiteRepository{
		db:     db,
		path:   cfg.Path,
		logger: slog.Default().With("component", "store.sqlite"),
		now:    func() time.Time { return time.Now().UTC() },
	}

	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	r.logger.Info("SQLite repository initialized",
		"path", cfg.Path,
		"wal_mode", cfg.WALMode,
		"max_open_conns", cfg.MaxOpenConns,
	)
	return r, nil
}

func (r *SQLiteRepository) initSchema() error {
	if _, err := r.db.Exec(schema); err != nil {
		return newStorageError("sqlite", "create_schema", err)
	}

	var version int
	err := r.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := r.db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return newStorageError("sqlite", "set_schema_version", err)
		}
	case err != nil:
		return newStorageError("sqlite", "get_schema_version", err)
	case version != schemaVersion:
		return newStorageError("sqlite", "check_schema_version",
			fmt.Errorf("database schema version %d, expected %d", version, schemaVersion))
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.db.Close()
	})
	return err
}

// withTx runs fn in a transaction under the write lock.
func (r *SQLiteRepository) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return newStorageError("sqlite", op, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return newStorageError("sqlite", op, err)
	}
	return nil
}

func exists(ctx context.Context, tx *sql.Tx, table, id string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (r *SQLiteRepository) SaveLead(ctx context.Context, l *lead.Lead) error {
	if l == nil || l.ID == "" {
		return automation.NewValidationError("lead", "", "id is required")
	}

	return r.withTx(ctx, "save_lead", func(tx *sql.Tx) error {
		c := l.Clone()
		now := r.now()

		var createdAt int64
		err := tx.QueryRowContext(ctx, "SELECT created_at FROM leads WHERE id = ?", c.ID).Scan(&createdAt)
		switch {
		case err == nil:
			c.CreatedAt = time.Unix(0, createdAt).UTC()
		case errors.Is(err, sql.ErrNoRows):
			if c.CreatedAt.IsZero() {
				c.CreatedAt = now
			}
		default:
			return newStorageError("sqlite", "save_lead", err)
		}
		c.UpdatedAt = now

		if err := writeLead(ctx, tx, c); err != nil {
			return err
		}
		*l = *c
		return nil
	})
}

func writeLead(ctx context.Context, tx *sql.Tx, l *lead.Lead) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO leads (`+leadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			company_name = excluded.company_name,
			domain = excluded.domain,
			industry = excluded.industry,
			status = excluded.status,
			score = excluded.score,
			assigned_to_id = excluded.assigned_to_id,
			assigned_team_id = excluded.assigned_team_id,
			campaign_id = excluded.campaign_id,
			confidence = excluded.confidence,
			company_size = excluded.company_size,
			revenue = excluded.revenue,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		l.ID, l.CompanyName, nullString(l.Domain), nullString(l.Industry), l.Status, l.Score,
		nullString(l.AssignedToID), nullString(l.AssignedTeamID), nullString(l.CampaignID),
		nullFloat(l.Confidence), nullInt(l.CompanySize), nullFloat(l.Revenue),
		l.CreatedAt.UnixNano(), l.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return newStorageError("sqlite", "write_lead", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*lead.Lead, error) {
	var (
		l                                      lead.Lead
		domain, industry, assignedTo, team, cp sql.NullString
		confidence, revenue                    sql.NullFloat64
		companySize                            sql.NullInt64
		createdAt, updatedAt                   int64
	)
	if err := row.Scan(&l.ID, &l.CompanyName, &domain, &industry, &l.Status, &l.Score,
		&assignedTo, &team, &cp, &confidence, &companySize, &revenue, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	l.Domain = domain.String
	l.Industry = industry.String
	l.AssignedToID = assignedTo.String
	l.AssignedTeamID = team.String
	l.CampaignID = cp.String
	if confidence.Valid {
		l.Confidence = &confidence.Float64
	}
	if revenue.Valid {
		l.Revenue = &revenue.Float64
	}
	if companySize.Valid {
		n := int(companySize.Int64)
		l.CompanySize = &n
	}
	l.CreatedAt = time.Unix(0, createdAt).UTC()
	l.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &l, nil
}

func (r *SQLiteRepository) GetLead(ctx context.Context, id string) (*lead.Lead, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+leadColumns+" FROM leads WHERE id = ?", id)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, automation.NewNotFoundError("lead", id)
	}
	if err != nil {
		return nil, newStorageError("sqlite", "get_lead", err)
	}
	return l, nil
}

// UpdateLead reads, patches and writes the lead in one transaction.
func (r *SQLiteRepository) UpdateLead(ctx context.Context, id string, patch lead.Patch) (*lead.Lead, error) {
	var updated *lead.Lead
	err := r.withTx(ctx, "update_lead", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT "+leadColumns+" FROM leads WHERE id = ?", id)
		l, err := scanLead(row)
		if errors.Is(err, sql.ErrNoRows) {
			return automation.NewNotFoundError("lead", id)
		}
		if err != nil {
			return newStorageError("sqlite", "update_lead", err)
		}

		patch.Apply(l, r.now())
		if err := writeLead(ctx, tx, l); err != nil {
			return err
		}
		updated = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *SQLiteRepository) ListLeads(ctx context.Context, filter LeadFilter) ([]*lead.Lead, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(column, value string) {
		if value != "" {
			clauses = append(clauses, column+" = ?")
			args = append(args, value)
		}
	}
	add("status", filter.Status)
	add("assigned_to_id", filter.AssignedToID)
	add("assigned_team_id", filter.AssignedTeamID)
	add("campaign_id", filter.CampaignID)

	q := "SELECT " + leadColumns + " FROM leads"
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	q += " ORDER BY created_at ASC, id ASC"
	q, args = appendPaging(q, args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, newStorageError("sqlite", "list_leads", err)
	}
	defer rows.Close()

	out := []*lead.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, newStorageError("sqlite", "scan_lead", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError("sqlite", "list_leads", err)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteLead(ctx context.Context, id string) error {
	return r.withTx(ctx, "delete_lead", func(tx *sql.Tx) error {
		return deleteByID(ctx, tx, "leads", "lead", id)
	})
}

func deleteByID(ctx context.Context, tx *sql.Tx, table, entity, id string) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return newStorageError("sqlite", "delete_"+entity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return newStorageError("sqlite", "delete_"+entity, err)
	}
	if n == 0 {
		return automation.NewNotFoundError(entity, id)
	}
	return nil
}

func (r *SQLiteRepository) CreateRule(ctx context.Context, rule *rules.Rule) error {
	return r.withTx(ctx, "create_rule", func(tx *sql.Tx) error {
		found, err := exists(ctx, tx, "rules", rule.ID)
		if err != nil {
			return newStorageError("sqlite", "create_rule", err)
		}
		if found {
			return alreadyExists("rule", rule.ID)
		}
		return writeRule(ctx, tx, rule)
	})
}

func writeRule(ctx context.Context, tx *sql.Tx, rule *rules.Rule) error {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal conditions: %w", err)
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			type = excluded.type,
			conditions = excluded.conditions,
			actions = excluded.actions,
			priority = excluded.priority,
			is_active = excluded.is_active,
			created_by = excluded.created_by,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		rule.ID, rule.Name, nullString(rule.Description), string(rule.Type),
		string(conditions), string(actions), rule.Priority, rule.IsActive,
		nullString(rule.CreatedBy), rule.CreatedAt.UnixNano(), rule.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return newStorageError("sqlite", "write_rule", err)
	}
	return nil
}

func scanRule(row rowScanner) (*rules.Rule, error) {
	var (
		rule                   rules.Rule
		description, createdBy sql.NullString
		ruleType               string
		conditions, actions    string
		createdAt, updatedAt   int64
	)
	if err := row.Scan(&rule.ID, &rule.Name, &description, &ruleType, &conditions, &actions,
		&rule.Priority, &rule.IsActive, &createdBy, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.Type = rules.RuleType(ruleType)
	rule.CreatedBy = createdBy.String
	rule.CreatedAt = time.Unix(0, createdAt).UTC()
	rule.UpdatedAt = time.Unix(0, updatedAt).UTC()

	if err := json.Unmarshal([]byte(conditions), &rule.Conditions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conditions: %w", err)
	}
	if err := json.Unmarshal([]byte(actions), &rule.Actions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
	}
	return &rule, nil
}

func (r *SQLiteRepository) GetRule(ctx context.Context, id string) (*rules.Rule, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+ruleColumns+" FROM rules WHERE id = ?", id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, automation.NewNotFoundError("rule", id)
	}
	if err != nil {
		return nil, newStorageError("sqlite", "get_rule", err)
	}
	return rule, nil
}

func (r *SQLiteRepository) ListRules(ctx context.Context, filter rules.RuleFilter) ([]*rules.Rule, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Active != nil {
		clauses = append(clauses, "is_active = ?")
		args = append(args, *filter.Active)
	}
	if filter.CreatedBy != "" {
		clauses = append(clauses, "created_by = ?")
		args = append(args, filter.CreatedBy)
	}

	q := "SELECT " + ruleColumns + " FROM rules"
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	q += " ORDER BY id ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, newStorageError("sqlite", "list_rules", err)
	}
	defer rows.Close()

	out := []*rules.Rule{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, newStorageError("sqlite", "scan_rule", err)
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError("sqlite", "list_rules", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateRule(ctx context.Context, rule *rules.Rule) error {
	return r.withTx(ctx, "update_rule", func(tx *sql.Tx) error {
		found, err := exists(ctx, tx, "rules", rule.ID)
		if err != nil {
			return newStorageError("sqlite", "update_rule", err)
		}
		if !found {
			return automation.NewNotFoundError("rule", rule.ID)
		}
		return writeRule(ctx, tx, rule)
	})
}

func (r *SQLiteRepository) DeleteRule(ctx context.Context, id string) error {
	return r.withTx(ctx, "delete_rule", func(tx *sql.Tx) error {
		return deleteByID(ctx, tx, "rules", "rule", id)
	})
}

func appendPaging(q string, args []any, limit, offset int) (string, []any) {
	switch {
	case limit > 0:
		q += " LIMIT ?"
		args = append(args, limit)
	case offset > 0:
		q += " LIMIT -1"
	}
	if offset > 0 {
		q += " OFFSET ?"
		args = append(args, offset)
	}
	return q, args
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}
