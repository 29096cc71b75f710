package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"leadflow-hq/relay/pkg/cli"
)

var (
	cfgFile      string
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay - lead rule and workflow execution engine",
	Long: `Relay evaluates prioritized rules against leads and runs multi-step
workflows triggered by lead lifecycle events.

Rules match on lead fields and event context, then assign, score, change
status, notify or request enrichment. Workflows chain actions, conditions,
notifications, integrations and durable delays. Every attempt is written to
an execution log that backs success-rate statistics.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a code derived from the
// error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "relay.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format (text, json, csv)")
}

// printResult writes data in the format chosen by --output.
func printResult(cmd *cobra.Command, data any) error {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), data)
}
