package config

import "time"

// Config is the root configuration structure for Relay.
type Config struct {
	// Engine contains rule and workflow engine settings.
	Engine EngineConfig `yaml:"engine"`

	// Storage selects the repository holding leads, rules, workflows and
	// workflow executions.
	Storage StorageConfig `yaml:"storage"`

	// ExecutionLog configures the append-only execution audit log.
	ExecutionLog ExecutionLogConfig `yaml:"execution_log"`

	// Scheduler configures the delay step scheduler.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Definitions points at a YAML file of rules and workflows synced into
	// storage at startup.
	Definitions DefinitionsConfig `yaml:"definitions"`

	// Telemetry contains logging, metrics and health check settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Server configures the operations HTTP server.
	Server ServerConfig `yaml:"server"`
}

// EngineConfig contains configuration for the rule and workflow engines.
type EngineConfig struct {
	// StrictValidation rejects unknown operators, action types and step
	// types when rules and workflows are created or updated.
	// Default: false
	StrictValidation bool `yaml:"strict_validation"`

	// BulkConcurrency is the number of leads a bulk apply processes at once.
	// Default: 1 (sequential)
	BulkConcurrency int `yaml:"bulk_concurrency"`

	// MaxConditions is the maximum number of conditions per rule.
	// Default: 50
	MaxConditions int `yaml:"max_conditions"`

	// MaxActions is the maximum number of actions per rule.
	// Default: 20
	MaxActions int `yaml:"max_actions"`

	// MaxSteps is the maximum number of steps per workflow.
	// Default: 100
	MaxSteps int `yaml:"max_steps"`

	// MaxDelay is the longest delay a workflow step may request.
	// Default: 720h
	MaxDelay time.Duration `yaml:"max_delay"`

	// MaxConcurrentResumes bounds how many suspended executions resume at once.
	// Default: 16
	MaxConcurrentResumes int `yaml:"max_concurrent_resumes"`
}

// StorageConfig contains configuration for the entity repository.
type StorageConfig struct {
	// Backend selects the repository implementation.
	// Options: "sqlite", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains settings for the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig contains settings shared by SQLite-backed stores.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// ExecutionLogConfig contains configuration for the execution audit log.
type ExecutionLogConfig struct {
	// Enabled controls whether rule and workflow outcomes are recorded.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend selects the log storage.
	// Options: "sqlite", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains settings for the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Recorder contains async write settings.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention contains pruning settings.
	Retention RetentionConfig `yaml:"retention"`

	// Query contains query limits.
	Query QueryConfig `yaml:"query"`
}

// RecorderConfig contains settings for the async execution log recorder.
type RecorderConfig struct {
	// AsyncBuffer is the number of records buffered before new records are dropped.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds each storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RetentionConfig contains settings for pruning old execution records.
type RetentionConfig struct {
	// Days is how long records are kept. 0 keeps records forever.
	// Default: 90
	Days int `yaml:"days"`

	// MaxRecords caps the number of stored records. 0 means unlimited.
	// Default: 0
	MaxRecords int64 `yaml:"max_records"`

	// PruneSchedule is a standard cron expression.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// QueryConfig contains execution log query limits.
type QueryConfig struct {
	// DefaultLimit applies when a query sets no limit.
	// Default: 100
	DefaultLimit int `yaml:"default_limit"`

	// MaxLimit is the largest page a query may request.
	// Default: 10000
	MaxLimit int `yaml:"max_limit"`

	// Timeout bounds each query.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`
}

// SchedulerConfig contains configuration for the delay step scheduler.
type SchedulerConfig struct {
	// SweepSchedule is the cron spec for re-arming due executions found in storage.
	// Default: "@every 30s"
	SweepSchedule string `yaml:"sweep_schedule"`

	// SweepBatch is the maximum number of due executions loaded per sweep.
	// Default: 500
	SweepBatch int `yaml:"sweep_batch"`
}

// DefinitionsConfig contains configuration for the definitions file.
type DefinitionsConfig struct {
	// Path is the YAML file holding rules and workflows. Empty disables syncing.
	Path string `yaml:"path"`

	// Watch re-syncs the file when it changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// Debounce is the quiet period before a change is synced.
	// Default: 100ms
	Debounce time.Duration `yaml:"debounce"`

	// Actor is recorded as createdBy for definitions synced from the file.
	// Default: "definitions"
	Actor string `yaml:"actor"`

	// Prune deletes rules and workflows created by Actor that are no longer
	// in the file.
	// Default: false
	Prune bool `yaml:"prune"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII masks contact details in logged notification payloads.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns contains custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern is a custom log redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "relay"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "engine"
	Subsystem string `yaml:"subsystem"`

	// DurationBuckets defines histogram buckets for evaluation and
	// execution durations in seconds.
	// Default: [0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5]
	DurationBuckets []float64 `yaml:"duration_buckets"`

	// MaxCardinality caps the number of distinct workflow label values.
	// Default: 1000
	MaxCardinality int `yaml:"max_cardinality"`
}

// HealthConfig contains health check configuration.
type HealthConfig struct {
	// LivenessPath is the path for the liveness check endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness check endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout bounds each component check.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// ServerConfig contains configuration for the operations HTTP server.
type ServerConfig struct {
	// Enabled controls whether the server starts with `relay run`.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the host:port to listen on.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 60s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}
