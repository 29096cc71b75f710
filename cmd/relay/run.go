package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"leadflow-hq/relay/pkg/cli"
	"leadflow-hq/relay/pkg/definitions"
	"leadflow-hq/relay/pkg/execlog/retention"
	"leadflow-hq/relay/pkg/server"
	"leadflow-hq/relay/pkg/telemetry/health"
)

var runFlags struct {
	listenAddress string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the engine",
	Long: `Start the rule and workflow engine and block until SIGINT or SIGTERM.

On start relay syncs the definitions file, resumes delayed workflow
executions that came due while it was down, starts the execution log
retention schedule and serves health, readiness and metrics endpoints.

Examples:
  # Start with the default config file (relay.yaml)
  relay run

  # Override the operations listen address
  relay run --listen 0.0.0.0:9090

  # Validate config and definitions without starting
  relay run --dry-run`,
	RunE: runEngine,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override operations listen address")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config and definitions without starting")
}

func runEngine(cmd *cobra.Command, args []string) error {
	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	if runFlags.dryRun {
		return dryRun(cmd)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	logger := a.logger

	if cfg.Definitions.Path != "" {
		syncer := definitions.NewSyncer(a.rules, a.workflows, cfg.Definitions.Actor, cfg.Definitions.Prune, logger)
		if _, err := syncer.SyncFile(ctx, cfg.Definitions.Path); err != nil {
			return cli.NewCommandError("run", fmt.Errorf("sync definitions: %w", err))
		}

		if cfg.Definitions.Watch {
			w, err := definitions.NewWatcher(cfg.Definitions.Path, syncer, cfg.Definitions.Debounce, logger)
			if err != nil {
				return cli.NewCommandError("run", err)
			}
			defer w.Stop()
			go func() {
				if err := w.Watch(ctx); err != nil {
					logger.Error("definitions watcher exited", "error", err)
				}
			}()
		}
	}

	if err := a.workflows.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	if a.logStore != nil && cfg.ExecutionLog.Retention.PruneSchedule != "" {
		pruner := retention.NewPruner(a.logStore, cfg.ExecutionLog.Retention)
		pruner.SetMetrics(a.collector.ExecLog())
		if err := pruner.Start(ctx); err != nil {
			logger.Warn("failed to start retention scheduler", "error", err)
		} else {
			defer pruner.Stop()
			if next := pruner.NextPruning(); next != nil {
				logger.Debug("execution log retention scheduled", "next_pruning", next)
			}
		}
	}

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	checker.RegisterCheck("store", health.PingCheck(a.repo))
	if p, ok := a.logStore.(health.Pinger); ok {
		checker.RegisterCheck("execution_log", health.PingCheck(p))
	}
	checker.RegisterCheck("scheduler", health.RunningCheck("delay scheduler", a.workflows.Scheduler().IsRunning))

	errCh := make(chan error, 1)
	if cfg.Server.Enabled {
		opts := []server.Option{
			server.WithLogger(logger),
			server.WithVersion(Version, GitCommit, BuildDate),
		}
		if a.collector != nil {
			opts = append(opts, server.WithMetricsHandler(a.collector.Handler()))
		}
		srv := server.New(&cfg.Server, &cfg.Telemetry, checker, opts...)
		go func() {
			errCh <- srv.Start(ctx)
		}()
	}

	logger.Info("relay started",
		"version", Version,
		"storage", cfg.Storage.Backend,
		"definitions", cfg.Definitions.Path,
		"server", cfg.Server.Enabled,
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if cfg.Server.Enabled {
			if err := <-errCh; err != nil {
				return cli.NewCommandError("run", err)
			}
		}
	case err := <-errCh:
		if err != nil {
			return cli.NewCommandError("run", err)
		}
	}

	slog.Info("relay stopped")
	return nil
}

// dryRun validates configuration and the definitions file without opening
// storage.
func dryRun(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "configuration valid")

	if cfg.Definitions.Path == "" {
		return nil
	}
	f, err := definitions.Load(cfg.Definitions.Path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "definitions valid: %d rules, %d workflows\n", len(f.Rules), len(f.Workflows))
	return nil
}

