package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"leadflow-hq/relay/pkg/automation"
	"leadflow-hq/relay/pkg/cli"
	"leadflow-hq/relay/pkg/config"
	"leadflow-hq/relay/pkg/execlog"
	"leadflow-hq/relay/pkg/execlog/recorder"
	"leadflow-hq/relay/pkg/execlog/storage"
	"leadflow-hq/relay/pkg/rules"
	"leadflow-hq/relay/pkg/store"
	"leadflow-hq/relay/pkg/telemetry/logging"
	"leadflow-hq/relay/pkg/telemetry/metrics"
	"leadflow-hq/relay/pkg/workflow"
)

// app holds everything a command needs, wired from one configuration.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	repo      store.Repository
	logStore  execlog.Storage
	recorder  *recorder.Recorder
	execlog   *execlog.Service
	collector *metrics.Collector

	rules     *rules.Engine
	workflows *workflow.Engine
}

// loadConfig reads --config with RELAY_* overrides. A missing file at the
// default path falls back to defaults; an explicitly named file must exist.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !rootCmd.PersistentFlags().Changed("config") {
		path = ""
	}
	if err := config.ReloadConfig(path); err != nil {
		return nil, err
	}
	return config.GetConfig(), nil
}

// newLogger builds the process logger. Verbose forces debug level. Logs go
// to stderr so command output on stdout stays machine readable.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	lc := logging.FromConfig(cfg.Telemetry.Logging)
	if verbose {
		lc.Level = "debug"
	}
	lc.Writer = w
	return logging.New(lc)
}

// openApp loads configuration and wires storage, the execution log and
// both engines. The workflow scheduler is not started.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	return newApp(cfg, logger)
}

func newApp(cfg *config.Config, logger *slog.Logger) (a *app, err error) {
	a = &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	if cfg.Telemetry.Metrics.Enabled {
		a.collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	a.repo, err = store.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	var execLogger execlog.Logger = execlog.NopLogger{}
	if cfg.ExecutionLog.Enabled {
		a.logStore, err = openExecLogStorage(cfg.ExecutionLog)
		if err != nil {
			return nil, fmt.Errorf("open execution log: %w", err)
		}
		a.recorder = recorder.NewRecorder(a.logStore, cfg.ExecutionLog.Recorder)
		a.recorder.SetMetrics(a.collector.ExecLog())
		a.execlog = execlog.NewService(a.logStore, cfg.ExecutionLog.Query, logger)
		execLogger = a.recorder
	}

	sink := automation.NewLogSink(logger)
	dispatcher := automation.NewActionDispatcher(a.repo, sink, logger)

	a.rules, err = rules.NewEngine(ruleConfig(cfg), a.repo, dispatcher, logger)
	if err != nil {
		return nil, fmt.Errorf("create rule engine: %w", err)
	}
	a.rules.SetExecutionLogger(execLogger)
	a.rules.SetMetrics(a.collector.Rules())

	a.workflows, err = workflow.NewEngine(workflowConfig(cfg), a.repo, sink, logger)
	if err != nil {
		return nil, fmt.Errorf("create workflow engine: %w", err)
	}
	a.workflows.SetExecutionLogger(execLogger)
	a.workflows.SetMetrics(a.collector.Workflows())

	return a, nil
}

func openExecLogStorage(cfg config.ExecutionLogConfig) (execlog.Storage, error) {
	switch cfg.Backend {
	case "sqlite":
		return storage.NewSQLiteStorage(cfg.SQLite)
	case "memory":
		return storage.NewMemoryStorage(), nil
	default:
		return nil, cli.NewConfigError("execution_log.backend", fmt.Sprintf("unsupported backend %q", cfg.Backend))
	}
}

func ruleConfig(cfg *config.Config) *rules.Config {
	return &rules.Config{
		StrictValidation: cfg.Engine.StrictValidation,
		BulkConcurrency:  cfg.Engine.BulkConcurrency,
		MaxConditions:    cfg.Engine.MaxConditions,
		MaxActions:       cfg.Engine.MaxActions,
	}
}

func workflowConfig(cfg *config.Config) *workflow.Config {
	return &workflow.Config{
		StrictValidation:     cfg.Engine.StrictValidation,
		MaxSteps:             cfg.Engine.MaxSteps,
		MaxDelay:             cfg.Engine.MaxDelay,
		MaxConcurrentResumes: cfg.Engine.MaxConcurrentResumes,
		SweepSchedule:        cfg.Scheduler.SweepSchedule,
		SweepBatch:           cfg.Scheduler.SweepBatch,
	}
}

// requireExecLog fails commands that read the execution log when it is
// disabled.
func (a *app) requireExecLog() error {
	if a.execlog == nil {
		return cli.NewConfigError("execution_log.enabled", "execution log is disabled")
	}
	return nil
}

// Close stops the workflow scheduler, flushes queued execution records
// and closes storage.
func (a *app) Close() {
	if a.workflows != nil {
		a.workflows.Stop()
	}
	if a.recorder != nil {
		_ = a.recorder.Close()
	}
	if a.logStore != nil {
		if err := a.logStore.Close(); err != nil {
			a.logger.Warn("closing execution log failed", "error", err)
		}
	}
	if a.repo != nil {
		if err := a.repo.Close(); err != nil {
			a.logger.Warn("closing storage failed", "error", err)
		}
	}
}
