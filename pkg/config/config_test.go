package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
engine:
  strict_validation: true
  bulk_concurrency: 4
  max_delay: "48h"

storage:
  backend: "sqlite"
  sqlite:
    path: "./relay-test.db"

execution_log:
  backend: "memory"
  retention:
    days: 30
    max_records: 5000

definitions:
  path: "./definitions.yaml"
  watch: true

telemetry:
  logging:
    level: "debug"
    format: "text"
  metrics:
    enabled: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if !cfg.Engine.StrictValidation {
		t.Error("expected strict validation")
	}
	if cfg.Engine.BulkConcurrency != 4 {
		t.Errorf("expected bulk concurrency 4, got %d", cfg.Engine.BulkConcurrency)
	}
	if cfg.Engine.MaxDelay != 48*time.Hour {
		t.Errorf("expected max delay 48h, got %v", cfg.Engine.MaxDelay)
	}
	if cfg.Storage.SQLite.Path != "./relay-test.db" {
		t.Errorf("expected sqlite path ./relay-test.db, got %q", cfg.Storage.SQLite.Path)
	}
	if cfg.ExecutionLog.Retention.MaxRecords != 5000 {
		t.Errorf("expected max records 5000, got %d", cfg.ExecutionLog.Retention.MaxRecords)
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("expected metrics disabled by file")
	}

	// Untouched sections keep their defaults.
	if !cfg.ExecutionLog.Enabled {
		t.Error("expected execution log enabled by default")
	}
	if cfg.Server.ListenAddress != DefaultServerListenAddress {
		t.Errorf("expected default listen address, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Scheduler.SweepSchedule != DefaultSchedulerSweepSchedule {
		t.Errorf("expected default sweep schedule, got %q", cfg.Scheduler.SweepSchedule)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{
			name:    "unknown storage backend",
			content: "storage:\n  backend: postgres\n",
			field:   "storage.backend",
		},
		{
			name:    "bad prune schedule",
			content: "execution_log:\n  retention:\n    prune_schedule: \"every night\"\n",
			field:   "execution_log.retention.prune_schedule",
		},
		{
			name:    "watch without path",
			content: "definitions:\n  watch: true\n",
			field:   "definitions.watch",
		},
		{
			name:    "bad log level",
			content: "telemetry:\n  logging:\n    level: chatty\n",
			field:   "telemetry.logging.level",
		},
		{
			name:    "bad listen address",
			content: "server:\n  listen_address: localhost\n",
			field:   "server.listen_address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T: %v", err, err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tt.field, verr.Errors)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "engine: [unclosed")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "storage:\n  backend: sqlite\n")

	t.Setenv("RELAY_STORAGE_BACKEND", "memory")
	t.Setenv("RELAY_ENGINE_MAX_DELAY", "2h")
	t.Setenv("RELAY_EXECUTION_LOG_RETENTION_MAX_RECORDS", "42")
	t.Setenv("RELAY_SERVER_ENABLED", "false")
	t.Setenv("RELAY_ENGINE_BULK_CONCURRENCY", "not-a-number")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Storage.Backend != "memory" {
		t.Errorf("expected backend memory, got %q", cfg.Storage.Backend)
	}
	if cfg.Engine.MaxDelay != 2*time.Hour {
		t.Errorf("expected max delay 2h, got %v", cfg.Engine.MaxDelay)
	}
	if cfg.ExecutionLog.Retention.MaxRecords != 42 {
		t.Errorf("expected max records 42, got %d", cfg.ExecutionLog.Retention.MaxRecords)
	}
	if cfg.Server.Enabled {
		t.Error("expected server disabled")
	}
	if cfg.Engine.BulkConcurrency != DefaultBulkConcurrency {
		t.Errorf("unparseable override should be ignored, got %d", cfg.Engine.BulkConcurrency)
	}
}

func TestLoadConfigWithEnvOverrides_EmptyPath(t *testing.T) {
	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}
	if cfg.Storage.Backend != DefaultStorageBackend {
		t.Errorf("expected default backend, got %q", cfg.Storage.Backend)
	}
}

func TestDefault_IsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default configuration is invalid: %v", err)
	}
}

func TestValidationError_Message(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if got := single.Error(); got != "configuration validation failed: a: bad" {
		t.Errorf("unexpected message %q", got)
	}

	multi := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	if got := multi.Error(); got == single.Error() {
		t.Error("expected multi-error message")
	}
}

func TestLoadConfig_ExampleFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "relay.example.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	defaults := Default()
	if cfg.Engine != defaults.Engine {
		t.Errorf("example engine section = %+v, want defaults %+v", cfg.Engine, defaults.Engine)
	}
	if cfg.Server.ListenAddress != DefaultServerListenAddress {
		t.Errorf("ListenAddress = %q, want %q", cfg.Server.ListenAddress, DefaultServerListenAddress)
	}
	if !cfg.Definitions.Watch || cfg.Definitions.Path == "" {
		t.Errorf("example should enable watching a definitions file, got %+v", cfg.Definitions)
	}
}
