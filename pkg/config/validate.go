package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "storage.backend").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. All field errors are
// collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateExecutionLog(&cfg.ExecutionLog)...)
	errs = append(errs, validateScheduler(&cfg.Scheduler)...)
	errs = append(errs, validateDefinitions(&cfg.Definitions)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateServer(&cfg.Server)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError

	if cfg.BulkConcurrency < 1 {
		errs = append(errs, FieldError{Field: "engine.bulk_concurrency", Message: "must be at least 1"})
	}
	if cfg.MaxConditions < 1 {
		errs = append(errs, FieldError{Field: "engine.max_conditions", Message: "must be at least 1"})
	}
	if cfg.MaxActions < 1 {
		errs = append(errs, FieldError{Field: "engine.max_actions", Message: "must be at least 1"})
	}
	if cfg.MaxSteps < 1 {
		errs = append(errs, FieldError{Field: "engine.max_steps", Message: "must be at least 1"})
	}
	if cfg.MaxDelay <= 0 {
		errs = append(errs, FieldError{Field: "engine.max_delay", Message: "must be positive"})
	}
	if cfg.MaxConcurrentResumes < 1 {
		errs = append(errs, FieldError{Field: "engine.max_concurrent_resumes", Message: "must be at least 1"})
	}

	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	return validateBackend("storage", cfg.Backend, &cfg.SQLite)
}

func validateBackend(prefix, backend string, sqlite *SQLiteConfig) []FieldError {
	var errs []FieldError

	switch backend {
	case "memory":
	case "sqlite":
		if sqlite.Path == "" {
			errs = append(errs, FieldError{Field: prefix + ".sqlite.path", Message: "path is required for the sqlite backend"})
		}
		if sqlite.MaxOpenConns < 1 {
			errs = append(errs, FieldError{Field: prefix + ".sqlite.max_open_conns", Message: "must be at least 1"})
		}
		if sqlite.MaxIdleConns < 0 || sqlite.MaxIdleConns > sqlite.MaxOpenConns {
			errs = append(errs, FieldError{Field: prefix + ".sqlite.max_idle_conns", Message: "must be between 0 and max_open_conns"})
		}
		if sqlite.BusyTimeout < 0 {
			errs = append(errs, FieldError{Field: prefix + ".sqlite.busy_timeout", Message: "must not be negative"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   prefix + ".backend",
			Message: fmt.Sprintf("unknown backend %q (expected sqlite or memory)", backend),
		})
	}

	return errs
}

func validateExecutionLog(cfg *ExecutionLogConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	errs := validateBackend("execution_log", cfg.Backend, &cfg.SQLite)

	if cfg.Recorder.AsyncBuffer < 1 {
		errs = append(errs, FieldError{Field: "execution_log.recorder.async_buffer", Message: "must be at least 1"})
	}
	if cfg.Recorder.WriteTimeout <= 0 {
		errs = append(errs, FieldError{Field: "execution_log.recorder.write_timeout", Message: "must be positive"})
	}
	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{Field: "execution_log.retention.days", Message: "must not be negative"})
	}
	if cfg.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{Field: "execution_log.retention.max_records", Message: "must not be negative"})
	}
	if _, err := cron.ParseStandard(cfg.Retention.PruneSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "execution_log.retention.prune_schedule",
			Message: fmt.Sprintf("invalid cron expression: %v", err),
		})
	}
	if cfg.Query.DefaultLimit < 1 || cfg.Query.DefaultLimit > cfg.Query.MaxLimit {
		errs = append(errs, FieldError{Field: "execution_log.query.default_limit", Message: "must be between 1 and max_limit"})
	}

	return errs
}

func validateScheduler(cfg *SchedulerConfig) []FieldError {
	var errs []FieldError

	if _, err := cron.ParseStandard(cfg.SweepSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "scheduler.sweep_schedule",
			Message: fmt.Sprintf("invalid cron expression: %v", err),
		})
	}
	if cfg.SweepBatch < 1 {
		errs = append(errs, FieldError{Field: "scheduler.sweep_batch", Message: "must be at least 1"})
	}

	return errs
}

func validateDefinitions(cfg *DefinitionsConfig) []FieldError {
	var errs []FieldError

	if cfg.Watch && cfg.Path == "" {
		errs = append(errs, FieldError{Field: "definitions.watch", Message: "watch requires definitions.path"})
	}
	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{Field: "definitions.debounce", Message: "must not be negative"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q", cfg.Logging.Level),
		})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q", cfg.Logging.Format),
		})
	}
	for i, p := range cfg.Logging.RedactPatterns {
		if p.Pattern == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i),
				Message: "pattern is required",
			})
		}
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}
	for i := 1; i < len(cfg.Metrics.DurationBuckets); i++ {
		if cfg.Metrics.DurationBuckets[i] <= cfg.Metrics.DurationBuckets[i-1] {
			errs = append(errs, FieldError{Field: "telemetry.metrics.duration_buckets", Message: "buckets must be strictly increasing"})
			break
		}
	}
	if cfg.Metrics.MaxCardinality < 1 {
		errs = append(errs, FieldError{Field: "telemetry.metrics.max_cardinality", Message: "must be at least 1"})
	}

	if !strings.HasPrefix(cfg.Health.LivenessPath, "/") {
		errs = append(errs, FieldError{Field: "telemetry.health.liveness_path", Message: "must start with /"})
	}
	if !strings.HasPrefix(cfg.Health.ReadinessPath, "/") {
		errs = append(errs, FieldError{Field: "telemetry.health.readiness_path", Message: "must start with /"})
	}

	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return nil
	}

	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid host:port: %v", err),
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "must not be negative"})
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_timeout", Message: "must be positive"})
	}

	return errs
}
