package store

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS leads (
	id               TEXT PRIMARY KEY,
	company_name     TEXT NOT NULL,
	domain           TEXT,
	industry         TEXT,
	status           TEXT NOT NULL,
	score            REAL NOT NULL DEFAULT 0,
	assigned_to_id   TEXT,
	assigned_team_id TEXT,
	campaign_id      TEXT,
	confidence       REAL,
	company_size     INTEGER,
	revenue          REAL,
	created_at       INTEGER NOT NULL,
	updated_at       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);

CREATE TABLE IF NOT EXISTS rules (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT,
	type        TEXT NOT NULL,
	conditions  TEXT NOT NULL,
	actions     TEXT NOT NULL,
	priority    INTEGER NOT NULL DEFAULT 0,
	is_active   INTEGER NOT NULL DEFAULT 0,
	created_by  TEXT,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rules_active ON rules(is_active, priority);

CREATE TABLE IF NOT EXISTS workflows (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	description   TEXT,
	trigger_event TEXT NOT NULL,
	priority      INTEGER NOT NULL DEFAULT 0,
	is_active     INTEGER NOT NULL DEFAULT 0,
	created_by    TEXT,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_workflows_trigger ON workflows(trigger_event, is_active);

CREATE TABLE IF NOT EXISTS workflow_steps (
	workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
	id          TEXT NOT NULL,
	name        TEXT,
	type        TEXT NOT NULL,
	step_order  INTEGER NOT NULL,
	config      TEXT,
	PRIMARY KEY (workflow_id, id)
);

CREATE TABLE IF NOT EXISTS workflow_executions (
	id            TEXT PRIMARY KEY,
	workflow_id   TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
	lead_id       TEXT,
	user_id       TEXT,
	trigger_event TEXT,
	status        TEXT NOT NULL,
	trigger_data  TEXT,
	started_at    INTEGER NOT NULL,
	completed_at  INTEGER,
	error_message TEXT,
	next_step     INTEGER NOT NULL DEFAULT 0,
	resume_at     INTEGER
);

CREATE INDEX IF NOT EXISTS idx_executions_workflow ON workflow_executions(workflow_id);
CREATE INDEX IF NOT EXISTS idx_executions_due ON workflow_executions(status, resume_at);

CREATE TABLE IF NOT EXISTS workflow_step_results (
	execution_id TEXT NOT NULL REFERENCES workflow_executions(id) ON DELETE CASCADE,
	idx          INTEGER NOT NULL,
	step_id      TEXT,
	step_type    TEXT,
	success      INTEGER NOT NULL,
	result       TEXT,
	error        TEXT,
	started_at   INTEGER NOT NULL,
	completed_at INTEGER NOT NULL,
	PRIMARY KEY (execution_id, idx)
);
`
