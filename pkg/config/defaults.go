package config

import "time"

// Default values for configuration fields.
const (
	// Engine defaults
	DefaultBulkConcurrency      = 1
	DefaultMaxConditions        = 50
	DefaultMaxActions           = 20
	DefaultMaxSteps             = 100
	DefaultMaxDelay             = 720 * time.Hour
	DefaultMaxConcurrentResumes = 16

	// Storage defaults
	DefaultStorageBackend    = "sqlite"
	DefaultStorageSQLitePath = "data/relay.db"

	// SQLite defaults
	DefaultSQLiteMaxOpenConns = 10
	DefaultSQLiteMaxIdleConns = 5
	DefaultSQLiteWALMode      = true
	DefaultSQLiteBusyTimeout  = 5 * time.Second

	// Execution log defaults
	DefaultExecutionLogEnabled    = true
	DefaultExecutionLogBackend    = "sqlite"
	DefaultExecutionLogSQLitePath = "data/executions.db"
	DefaultRecorderAsyncBuffer    = 1000
	DefaultRecorderWriteTimeout   = 5 * time.Second
	DefaultRetentionDays          = 90
	DefaultRetentionPruneSchedule = "0 3 * * *"
	DefaultRetentionMaxRecords    = int64(0)
	DefaultQueryDefaultLimit      = 100
	DefaultQueryMaxLimit          = 10000
	DefaultQueryTimeout           = 30 * time.Second

	// Scheduler defaults
	DefaultSchedulerSweepSchedule = "@every 30s"
	DefaultSchedulerSweepBatch    = 500

	// Definitions defaults
	DefaultDefinitionsDebounce = 100 * time.Millisecond
	DefaultDefinitionsActor    = "definitions"

	// Telemetry defaults
	DefaultLoggingLevel          = "info"
	DefaultLoggingFormat         = "json"
	DefaultLoggingRedactPII      = true
	DefaultMetricsEnabled        = true
	DefaultMetricsPath           = "/metrics"
	DefaultMetricsNamespace      = "relay"
	DefaultMetricsSubsystem      = "engine"
	DefaultMetricsMaxCardinality = 1000
	DefaultHealthLivenessPath    = "/health"
	DefaultHealthReadinessPath   = "/ready"
	DefaultHealthCheckTimeout    = 5 * time.Second

	// Server defaults
	DefaultServerEnabled         = true
	DefaultServerListenAddress   = "127.0.0.1:9090"
	DefaultServerReadTimeout     = 10 * time.Second
	DefaultServerWriteTimeout    = 10 * time.Second
	DefaultServerIdleTimeout     = 60 * time.Second
	DefaultServerShutdownTimeout = 15 * time.Second
)

// DefaultDurationBuckets are histogram buckets (seconds) for rule evaluation
// and workflow execution durations.
var DefaultDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// Default returns a configuration with every field set to its default.
// LoadConfig decodes the file on top of it, so booleans that default to true
// stay true unless the file sets them to false.
func Default() *Config {
	cfg := &Config{
		ExecutionLog: ExecutionLogConfig{
			Enabled: DefaultExecutionLogEnabled,
			SQLite:  SQLiteConfig{WALMode: DefaultSQLiteWALMode},
		},
		Storage: StorageConfig{
			SQLite: SQLiteConfig{WALMode: DefaultSQLiteWALMode},
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{RedactPII: DefaultLoggingRedactPII},
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
		},
		Server: ServerConfig{Enabled: DefaultServerEnabled},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	// Engine defaults
	if cfg.Engine.BulkConcurrency == 0 {
		cfg.Engine.BulkConcurrency = DefaultBulkConcurrency
	}
	if cfg.Engine.MaxConditions == 0 {
		cfg.Engine.MaxConditions = DefaultMaxConditions
	}
	if cfg.Engine.MaxActions == 0 {
		cfg.Engine.MaxActions = DefaultMaxActions
	}
	if cfg.Engine.MaxSteps == 0 {
		cfg.Engine.MaxSteps = DefaultMaxSteps
	}
	if cfg.Engine.MaxDelay == 0 {
		cfg.Engine.MaxDelay = DefaultMaxDelay
	}
	if cfg.Engine.MaxConcurrentResumes == 0 {
		cfg.Engine.MaxConcurrentResumes = DefaultMaxConcurrentResumes
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultStorageSQLitePath
	}
	applySQLiteDefaults(&cfg.Storage.SQLite)

	// Execution log defaults
	if cfg.ExecutionLog.Backend == "" {
		cfg.ExecutionLog.Backend = DefaultExecutionLogBackend
	}
	if cfg.ExecutionLog.SQLite.Path == "" {
		cfg.ExecutionLog.SQLite.Path = DefaultExecutionLogSQLitePath
	}
	applySQLiteDefaults(&cfg.ExecutionLog.SQLite)
	if cfg.ExecutionLog.Recorder.AsyncBuffer == 0 {
		cfg.ExecutionLog.Recorder.AsyncBuffer = DefaultRecorderAsyncBuffer
	}
	if cfg.ExecutionLog.Recorder.WriteTimeout == 0 {
		cfg.ExecutionLog.Recorder.WriteTimeout = DefaultRecorderWriteTimeout
	}
	if cfg.ExecutionLog.Retention.Days == 0 {
		cfg.ExecutionLog.Retention.Days = DefaultRetentionDays
	}
	if cfg.ExecutionLog.Retention.PruneSchedule == "" {
		cfg.ExecutionLog.Retention.PruneSchedule = DefaultRetentionPruneSchedule
	}
	if cfg.ExecutionLog.Query.DefaultLimit == 0 {
		cfg.ExecutionLog.Query.DefaultLimit = DefaultQueryDefaultLimit
	}
	if cfg.ExecutionLog.Query.MaxLimit == 0 {
		cfg.ExecutionLog.Query.MaxLimit = DefaultQueryMaxLimit
	}
	if cfg.ExecutionLog.Query.Timeout == 0 {
		cfg.ExecutionLog.Query.Timeout = DefaultQueryTimeout
	}

	// Scheduler defaults
	if cfg.Scheduler.SweepSchedule == "" {
		cfg.Scheduler.SweepSchedule = DefaultSchedulerSweepSchedule
	}
	if cfg.Scheduler.SweepBatch == 0 {
		cfg.Scheduler.SweepBatch = DefaultSchedulerSweepBatch
	}

	// Definitions defaults
	if cfg.Definitions.Debounce == 0 {
		cfg.Definitions.Debounce = DefaultDefinitionsDebounce
	}
	if cfg.Definitions.Actor == "" {
		cfg.Definitions.Actor = DefaultDefinitionsActor
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Telemetry.Metrics.DurationBuckets) == 0 {
		cfg.Telemetry.Metrics.DurationBuckets = append([]float64(nil), DefaultDurationBuckets...)
	}
	if cfg.Telemetry.Metrics.MaxCardinality == 0 {
		cfg.Telemetry.Metrics.MaxCardinality = DefaultMetricsMaxCardinality
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultHealthLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultHealthReadinessPath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultHealthCheckTimeout
	}

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultServerListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultServerIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}
}

func applySQLiteDefaults(cfg *SQLiteConfig) {
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = DefaultSQLiteBusyTimeout
	}
}
