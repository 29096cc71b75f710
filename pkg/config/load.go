package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables that override file values.
const EnvPrefix = "RELAY_"

// LoadConfig loads configuration from a YAML file, applies defaults and
// validates the result. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML on top of the defaults. The result is not validated.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention RELAY_SECTION_FIELD (e.g., RELAY_STORAGE_SQLITE_PATH) and always
// take precedence over the file.
//
// An empty path loads the defaults.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		cfg, err = LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies RELAY_* environment variables. Values that do
// not parse are ignored.
func applyEnvOverrides(cfg *Config) {
	// Engine overrides
	envBool("ENGINE_STRICT_VALIDATION", &cfg.Engine.StrictValidation)
	envInt("ENGINE_BULK_CONCURRENCY", &cfg.Engine.BulkConcurrency)
	envInt("ENGINE_MAX_STEPS", &cfg.Engine.MaxSteps)
	envDuration("ENGINE_MAX_DELAY", &cfg.Engine.MaxDelay)
	envInt("ENGINE_MAX_CONCURRENT_RESUMES", &cfg.Engine.MaxConcurrentResumes)

	// Storage overrides
	envString("STORAGE_BACKEND", &cfg.Storage.Backend)
	envString("STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	envDuration("STORAGE_SQLITE_BUSY_TIMEOUT", &cfg.Storage.SQLite.BusyTimeout)

	// Execution log overrides
	envBool("EXECUTION_LOG_ENABLED", &cfg.ExecutionLog.Enabled)
	envString("EXECUTION_LOG_BACKEND", &cfg.ExecutionLog.Backend)
	envString("EXECUTION_LOG_SQLITE_PATH", &cfg.ExecutionLog.SQLite.Path)
	envInt("EXECUTION_LOG_RETENTION_DAYS", &cfg.ExecutionLog.Retention.Days)
	envString("EXECUTION_LOG_RETENTION_PRUNE_SCHEDULE", &cfg.ExecutionLog.Retention.PruneSchedule)
	if val := os.Getenv(EnvPrefix + "EXECUTION_LOG_RETENTION_MAX_RECORDS"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.ExecutionLog.Retention.MaxRecords = i
		}
	}

	// Scheduler overrides
	envString("SCHEDULER_SWEEP_SCHEDULE", &cfg.Scheduler.SweepSchedule)

	// Definitions overrides
	envString("DEFINITIONS_PATH", &cfg.Definitions.Path)
	envBool("DEFINITIONS_WATCH", &cfg.Definitions.Watch)
	envBool("DEFINITIONS_PRUNE", &cfg.Definitions.Prune)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_LOGGING_REDACT_PII", &cfg.Telemetry.Logging.RedactPII)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)

	// Server overrides
	envBool("SERVER_ENABLED", &cfg.Server.Enabled)
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
