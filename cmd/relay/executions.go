package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"leadflow-hq/relay/pkg/cli"
	"leadflow-hq/relay/pkg/execlog"
	"leadflow-hq/relay/pkg/workflow"
)

var executionsFlags struct {
	kind        string
	leadID      string
	ruleID      string
	workflowID  string
	executionID string
	event       string
	success     string
	since       time.Duration
	from        string
	to          string
	limit       int
	offset      int
	sortBy      string
	sortOrder   string
}

var executionsCmd = &cobra.Command{
	Use:   "executions",
	Short: "Query the execution log",
	Long: `Query the execution log: one record per rule attempt and one per
finished workflow execution.

Time filters accept --since (a duration back from now) or --from/--to
(RFC3339 timestamps, inclusive).`,
}

var executionsQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "List execution records",
	Example: `  relay executions query --kind rule --lead lead-42
  relay executions query --workflow onboarding --success false --since 24h -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := buildExecQuery()
		if err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.requireExecLog(); err != nil {
			return err
		}

		page, err := a.execlog.GetExecutions(cmd.Context(), q, execlog.Pagination{
			Limit:  executionsFlags.limit,
			Offset: executionsFlags.offset,
		})
		if err != nil {
			return cli.NewCommandError("executions query", err)
		}
		return printResult(cmd, recordPage{page})
	},
}

var executionsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Success rate over matching execution records",
	Example: `  relay executions stats --rule hot-leads
  relay executions stats --kind workflow --since 168h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := buildExecQuery()
		if err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.requireExecLog(); err != nil {
			return err
		}

		stats, err := a.execlog.GetExecutionStats(cmd.Context(), q)
		if err != nil {
			return cli.NewCommandError("executions stats", err)
		}
		return printResult(cmd, statsView{stats})
	},
}

var executionsGetCmd = &cobra.Command{
	Use:   "get EXECUTION_ID",
	Short: "Show the stored state and step log of a workflow execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		exec, err := a.workflows.GetExecution(cmd.Context(), args[0])
		if err != nil {
			return cli.NewCommandError("executions get", err)
		}
		return printResult(cmd, executionView{&workflow.ExecutionResult{
			ExecutionID:  exec.ID,
			WorkflowID:   exec.WorkflowID,
			Status:       exec.Status,
			Success:      exec.Status == workflow.StatusCompleted,
			StepResults:  exec.StepResults.Results(),
			ErrorMessage: exec.ErrorMessage,
			ResumeAt:     exec.ResumeAt,
		}})
	},
}

func init() {
	rootCmd.AddCommand(executionsCmd)
	executionsCmd.AddCommand(executionsQueryCmd, executionsStatsCmd, executionsGetCmd)

	for _, c := range []*cobra.Command{executionsQueryCmd, executionsStatsCmd} {
		f := c.Flags()
		f.StringVar(&executionsFlags.kind, "kind", "", "record kind (rule or workflow)")
		f.StringVar(&executionsFlags.leadID, "lead", "", "filter by lead id")
		f.StringVar(&executionsFlags.ruleID, "rule", "", "filter by rule id")
		f.StringVar(&executionsFlags.workflowID, "workflow", "", "filter by workflow id")
		f.StringVar(&executionsFlags.executionID, "execution", "", "filter by workflow execution id")
		f.StringVar(&executionsFlags.event, "event", "", "filter by trigger event")
		f.StringVar(&executionsFlags.success, "success", "", "filter by outcome (true or false)")
		f.DurationVar(&executionsFlags.since, "since", 0, "only records newer than this")
		f.StringVar(&executionsFlags.from, "from", "", "start time (RFC3339)")
		f.StringVar(&executionsFlags.to, "to", "", "end time (RFC3339)")
	}
	f := executionsQueryCmd.Flags()
	f.IntVar(&executionsFlags.limit, "limit", 0, "page size (default from config)")
	f.IntVar(&executionsFlags.offset, "offset", 0, "records to skip")
	f.StringVar(&executionsFlags.sortBy, "sort-by", "executed_at", "sort field (executed_at or duration)")
	f.StringVar(&executionsFlags.sortOrder, "sort-order", "desc", "sort order (asc or desc)")
}

func buildExecQuery() (*execlog.Query, error) {
	fl := executionsFlags
	q := &execlog.Query{
		Kind:         execlog.Kind(fl.kind),
		LeadID:       fl.leadID,
		RuleID:       fl.ruleID,
		WorkflowID:   fl.workflowID,
		ExecutionID:  fl.executionID,
		TriggerEvent: fl.event,
		SortBy:       fl.sortBy,
		SortOrder:    fl.sortOrder,
	}

	var err error
	if q.Success, err = parseBoolFlag("success", fl.success); err != nil {
		return nil, cli.NewUsageError(err.Error())
	}

	if fl.since > 0 && fl.from != "" {
		return nil, cli.NewUsageError("--since and --from are mutually exclusive")
	}
	if fl.since > 0 {
		start := time.Now().UTC().Add(-fl.since)
		q.StartTime = &start
	}
	if fl.from != "" {
		t, err := time.Parse(time.RFC3339, fl.from)
		if err != nil {
			return nil, cli.NewUsageError(fmt.Sprintf("--from: %v", err))
		}
		q.StartTime = &t
	}
	if fl.to != "" {
		t, err := time.Parse(time.RFC3339, fl.to)
		if err != nil {
			return nil, cli.NewUsageError(fmt.Sprintf("--to: %v", err))
		}
		q.EndTime = &t
	}
	return q, nil
}

type recordPage struct {
	*execlog.Page
}

func (p recordPage) Headers() []string {
	return []string{"EXECUTED_AT", "KIND", "LEAD", "RULE/WORKFLOW", "EXECUTION", "STEP", "SUCCESS", "DURATION", "ERROR"}
}

func (p recordPage) Rows() [][]string {
	rows := make([][]string, len(p.Items))
	for i, r := range p.Items {
		subject := r.RuleID
		if r.Kind == execlog.KindWorkflow {
			subject = r.WorkflowID
		}
		rows[i] = []string{
			r.ExecutedAt.UTC().Format(time.RFC3339),
			string(r.Kind),
			orDash(r.LeadID),
			orDash(subject),
			orDash(r.ExecutionID),
			orDash(r.StepID),
			strconv.FormatBool(r.Success),
			r.Duration.String(),
			orDash(r.ErrorMessage),
		}
	}
	return rows
}

type statsView struct {
	*execlog.Stats
}

func (s statsView) Headers() []string {
	return []string{"TOTAL", "SUCCESSFUL", "FAILED", "SUCCESS_RATE"}
}

func (s statsView) Rows() [][]string {
	return [][]string{{
		strconv.FormatInt(s.Total, 10),
		strconv.FormatInt(s.Successful, 10),
		strconv.FormatInt(s.Failed, 10),
		strconv.FormatFloat(s.SuccessRate, 'f', 1, 64) + "%",
	}}
}
