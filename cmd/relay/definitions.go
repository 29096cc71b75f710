package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"leadflow-hq/relay/pkg/cli"
	"leadflow-hq/relay/pkg/definitions"
)

var definitionsCmd = &cobra.Command{
	Use:   "definitions",
	Short: "Validate and sync the rules and workflows file",
}

var definitionsSyncCmd = &cobra.Command{
	Use:   "sync [FILE]",
	Short: "Upsert rules and workflows from a definitions file",
	Long: `Upsert rules and workflows from a definitions file, by id. The file
defaults to definitions.path from the config. With definitions.prune set,
definitions previously synced from the file and no longer in it are
deleted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		path := a.cfg.Definitions.Path
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return cli.NewUsageError("no definitions file given and definitions.path is not set")
		}

		syncer := definitions.NewSyncer(a.rules, a.workflows, a.cfg.Definitions.Actor, a.cfg.Definitions.Prune, a.logger)
		res, err := syncer.SyncFile(cmd.Context(), path)
		if res != nil {
			fmt.Fprintf(cmd.OutOrStdout(),
				"rules: %d created, %d updated, %d deleted\nworkflows: %d created, %d updated, %d deleted\n",
				res.RulesCreated, res.RulesUpdated, res.RulesDeleted,
				res.WorkflowsCreated, res.WorkflowsUpdated, res.WorkflowsDeleted)
		}
		if err != nil {
			return cli.NewCommandError("definitions sync", err)
		}
		return nil
	},
}

var definitionsValidateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Parse a definitions file without touching storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := definitions.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rules, %d workflows\n", args[0], len(f.Rules), len(f.Workflows))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(definitionsCmd)
	definitionsCmd.AddCommand(definitionsSyncCmd, definitionsValidateCmd)
}
