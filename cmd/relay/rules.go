package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"leadflow-hq/relay/pkg/automation"
	"leadflow-hq/relay/pkg/cli"
	"leadflow-hq/relay/pkg/lead"
	"leadflow-hq/relay/pkg/rules"
	"leadflow-hq/relay/pkg/store"
)

var rulesFlags struct {
	ruleType string
	active   string
	leadID   string
	leadFile string
	context  map[string]string
	dryRun   bool
	status   string
	all      bool
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect, test and apply rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules, highest priority first",
	RunE: func(cmd *cobra.Command, args []string) error {
		active, err := parseBoolFlag("active", rulesFlags.active)
		if err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.rules.GetRules(cmd.Context(), rules.RuleFilter{
			Type:   rules.RuleType(rulesFlags.ruleType),
			Active: active,
		})
		if err != nil {
			return cli.NewCommandError("rules list", err)
		}
		return printResult(cmd, ruleTable(list))
	},
}

var rulesTestCmd = &cobra.Command{
	Use:   "test RULE_ID",
	Short: "Evaluate one rule against a lead without applying it",
	Long: `Evaluate one rule against a lead without applying its actions.

The lead is either read from storage (--lead) or from a YAML or JSON file
(--lead-file), so rules can be tried against leads that do not exist yet.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (rulesFlags.leadID == "") == (rulesFlags.leadFile == "") {
			return cli.NewUsageError("exactly one of --lead or --lead-file is required")
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var sample *lead.Lead
		if rulesFlags.leadFile != "" {
			leads, err := readLeads(rulesFlags.leadFile)
			if err != nil {
				return err
			}
			if len(leads) != 1 {
				return cli.NewUsageError(fmt.Sprintf("--lead-file must hold exactly one lead, found %d", len(leads)))
			}
			sample = leads[0]
		} else {
			sample, err = a.repo.GetLead(cmd.Context(), rulesFlags.leadID)
			if err != nil {
				return cli.NewCommandError("rules test", err)
			}
		}

		res, err := a.rules.TestRuleEvaluation(cmd.Context(), args[0], sample)
		if err != nil {
			return cli.NewCommandError("rules test", err)
		}
		return printResult(cmd, testResult{res})
	},
}

var rulesApplyCmd = &cobra.Command{
	Use:   "apply LEAD_ID",
	Short: "Evaluate active rules against a lead and apply every match",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		matches, err := a.rules.EvaluateRules(ctx, args[0], parseValues(rulesFlags.context))
		if err != nil {
			return cli.NewCommandError("rules apply", err)
		}

		if !rulesFlags.dryRun {
			for _, m := range matches {
				if err := a.rules.ApplyRuleActions(ctx, args[0], m.Actions); err != nil {
					return cli.NewCommandError("rules apply", fmt.Errorf("rule %s: %w", m.RuleID, err))
				}
			}
		}
		return printResult(cmd, matchTable(matches))
	},
}

var rulesBulkCmd = &cobra.Command{
	Use:   "bulk [LEAD_ID...]",
	Short: "Apply matching rules to many leads",
	Long: `Apply matching rules to many leads. Each lead is processed on its own;
a failing lead is reported and the rest continue.

Leads are given as arguments or selected with --all and --status.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && !rulesFlags.all {
			return cli.NewUsageError("give lead ids or --all")
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		ids := args
		if rulesFlags.all {
			leads, err := a.repo.ListLeads(ctx, store.LeadFilter{Status: rulesFlags.status})
			if err != nil {
				return cli.NewCommandError("rules bulk", err)
			}
			for _, l := range leads {
				ids = append(ids, l.ID)
			}
		}

		results := a.rules.BulkApplyRules(ctx, ids, parseValues(rulesFlags.context))
		if err := printResult(cmd, bulkTable(results)); err != nil {
			return err
		}

		failed := 0
		for _, r := range results {
			if !r.Success {
				failed++
			}
		}
		if failed > 0 {
			return cli.NewCommandError("rules bulk", fmt.Errorf("%d of %d leads failed", failed, len(results)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesTestCmd, rulesApplyCmd, rulesBulkCmd)

	rulesListCmd.Flags().StringVar(&rulesFlags.ruleType, "type", "", "filter by rule type")
	rulesListCmd.Flags().StringVar(&rulesFlags.active, "active", "", "filter by active flag (true or false)")

	rulesTestCmd.Flags().StringVar(&rulesFlags.leadID, "lead", "", "stored lead id")
	rulesTestCmd.Flags().StringVar(&rulesFlags.leadFile, "lead-file", "", "YAML or JSON file holding one lead")

	for _, c := range []*cobra.Command{rulesApplyCmd, rulesBulkCmd} {
		c.Flags().StringToStringVar(&rulesFlags.context, "context", nil, "evaluation context (key=value, repeatable)")
	}
	rulesApplyCmd.Flags().BoolVar(&rulesFlags.dryRun, "dry-run", false, "report matches without applying actions")
	rulesBulkCmd.Flags().BoolVar(&rulesFlags.all, "all", false, "apply to every stored lead")
	rulesBulkCmd.Flags().StringVar(&rulesFlags.status, "status", "", "with --all, only leads in this status")
}

type ruleTable []*rules.Rule

func (t ruleTable) Headers() []string {
	return []string{"ID", "NAME", "TYPE", "PRIORITY", "ACTIVE", "CONDITIONS", "ACTIONS"}
}

func (t ruleTable) Rows() [][]string {
	rows := make([][]string, len(t))
	for i, r := range t {
		rows[i] = []string{
			r.ID, r.Name, string(r.Type),
			strconv.Itoa(r.Priority),
			strconv.FormatBool(r.IsActive),
			strconv.Itoa(len(r.Conditions)),
			strconv.Itoa(len(r.Actions)),
		}
	}
	return rows
}

type matchTable []rules.MatchResult

func (t matchTable) Headers() []string {
	return []string{"RULE", "NAME", "PRIORITY", "ACTIONS"}
}

func (t matchTable) Rows() [][]string {
	rows := make([][]string, len(t))
	for i, m := range t {
		rows[i] = []string{m.RuleID, m.RuleName, strconv.Itoa(m.Priority), describeActions(m.Actions)}
	}
	return rows
}

type bulkTable []rules.BulkResult

func (t bulkTable) Headers() []string {
	return []string{"LEAD", "SUCCESS", "MATCHED", "APPLIED", "ERROR"}
}

func (t bulkTable) Rows() [][]string {
	rows := make([][]string, len(t))
	for i, r := range t {
		rows[i] = []string{
			r.LeadID,
			strconv.FormatBool(r.Success),
			strconv.Itoa(r.RulesMatched),
			strconv.Itoa(r.ActionsApplied),
			orDash(r.Error),
		}
	}
	return rows
}

type testResult struct {
	*rules.TestResult
}

func (t testResult) Headers() []string { return []string{"MATCHED", "ACTIONS"} }

func (t testResult) Rows() [][]string {
	return [][]string{{strconv.FormatBool(t.Matched), describeActions(t.Actions)}}
}

func describeActions(actions []automation.Action) string {
	if len(actions) == 0 {
		return "-"
	}
	parts := make([]string, len(actions))
	for i, a := range actions {
		switch {
		case a.Target != "":
			parts[i] = fmt.Sprintf("%s(%s=%v)", a.Type, a.Target, a.Value)
		case a.Value != nil:
			parts[i] = fmt.Sprintf("%s(%v)", a.Type, a.Value)
		default:
			parts[i] = string(a.Type)
		}
	}
	return strings.Join(parts, ", ")
}

