package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"leadflow-hq/relay/pkg/cli"
	"leadflow-hq/relay/pkg/workflow"
)

var workflowsFlags struct {
	trigger string
	active  string
	leadID  string
	userID  string
	data    map[string]string
	wait    time.Duration
}

var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "Inspect and run workflows",
}

var workflowsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflows, highest priority first",
	RunE: func(cmd *cobra.Command, args []string) error {
		active, err := parseBoolFlag("active", workflowsFlags.active)
		if err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.workflows.ListWorkflows(cmd.Context(), workflow.WorkflowFilter{
			Trigger: workflowsFlags.trigger,
			Active:  active,
		})
		if err != nil {
			return cli.NewCommandError("workflows list", err)
		}
		return printResult(cmd, workflowTable(list))
	},
}

var workflowsExecuteCmd = &cobra.Command{
	Use:   "execute WORKFLOW_ID",
	Short: "Run one workflow now",
	Long: `Run one workflow now, whether or not it is active.

A workflow that reaches a delay step is suspended and stored; ` + "`relay run`" + `
resumes it when the delay is due. With --wait the command starts the delay
scheduler itself and waits up to the given duration for the execution to
finish.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if workflowsFlags.wait > 0 {
			if err := a.workflows.Start(ctx); err != nil {
				return cli.NewCommandError("workflows execute", err)
			}
		}

		res, err := a.workflows.ExecuteWorkflow(ctx, args[0], workflow.ExecutionContext{
			LeadID:      workflowsFlags.leadID,
			UserID:      workflowsFlags.userID,
			TriggerData: parseValues(workflowsFlags.data),
		})
		if err != nil {
			return cli.NewCommandError("workflows execute", err)
		}

		if res.Status == workflow.StatusRunning && workflowsFlags.wait > 0 {
			res, err = awaitExecution(ctx, a.workflows, res.ExecutionID, workflowsFlags.wait)
			if err != nil {
				return cli.NewCommandError("workflows execute", err)
			}
		}

		if err := printResult(cmd, executionView{res}); err != nil {
			return err
		}
		if res.Status == workflow.StatusFailed {
			return cli.NewCommandError("workflows execute", errors.New(res.ErrorMessage))
		}
		return nil
	},
}

var workflowsTriggerCmd = &cobra.Command{
	Use:   "trigger EVENT",
	Short: "Run every active workflow for an event",
	Long: `Run every active workflow whose trigger is EVENT, highest priority
first. Each workflow runs on its own; one failing does not stop the rest.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.workflows.TriggerWorkflows(cmd.Context(), args[0], workflow.ExecutionContext{
			LeadID:      workflowsFlags.leadID,
			UserID:      workflowsFlags.userID,
			TriggerData: parseValues(workflowsFlags.data),
		})
		if err != nil {
			return cli.NewCommandError("workflows trigger", err)
		}
		return printResult(cmd, triggerTable(results))
	},
}

func init() {
	rootCmd.AddCommand(workflowsCmd)
	workflowsCmd.AddCommand(workflowsListCmd, workflowsExecuteCmd, workflowsTriggerCmd)

	workflowsListCmd.Flags().StringVar(&workflowsFlags.trigger, "trigger", "", "filter by trigger event")
	workflowsListCmd.Flags().StringVar(&workflowsFlags.active, "active", "", "filter by active flag (true or false)")

	for _, c := range []*cobra.Command{workflowsExecuteCmd, workflowsTriggerCmd} {
		c.Flags().StringVar(&workflowsFlags.leadID, "lead", "", "lead id")
		c.Flags().StringVar(&workflowsFlags.userID, "user", "", "user id")
		c.Flags().StringToStringVar(&workflowsFlags.data, "data", nil, "trigger data (key=value, repeatable)")
	}
	workflowsExecuteCmd.Flags().DurationVar(&workflowsFlags.wait, "wait", 0, "wait this long for a delayed execution to finish")
}

// awaitExecution waits for a suspended execution. On timeout the last
// stored state is returned.
func awaitExecution(ctx context.Context, e *workflow.Engine, id string, d time.Duration) (*workflow.ExecutionResult, error) {
	waitCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	res, err := e.Await(waitCtx, id)
	if err == nil || !errors.Is(err, context.DeadlineExceeded) {
		return res, err
	}

	exec, err := e.GetExecution(ctx, id)
	if err != nil {
		return nil, err
	}
	return &workflow.ExecutionResult{
		ExecutionID:  exec.ID,
		WorkflowID:   exec.WorkflowID,
		Status:       exec.Status,
		Success:      exec.Status == workflow.StatusCompleted,
		StepResults:  exec.StepResults.Results(),
		ErrorMessage: exec.ErrorMessage,
		ResumeAt:     exec.ResumeAt,
	}, nil
}

type workflowTable []*workflow.Workflow

func (t workflowTable) Headers() []string {
	return []string{"ID", "NAME", "TRIGGER", "PRIORITY", "ACTIVE", "STEPS"}
}

func (t workflowTable) Rows() [][]string {
	rows := make([][]string, len(t))
	for i, w := range t {
		rows[i] = []string{
			w.ID, w.Name, w.Trigger,
			strconv.Itoa(w.Priority),
			strconv.FormatBool(w.IsActive),
			strconv.Itoa(len(w.Steps)),
		}
	}
	return rows
}

type triggerTable []workflow.TriggerResult

func (t triggerTable) Headers() []string {
	return []string{"WORKFLOW", "NAME", "EXECUTION", "STATUS", "ERROR"}
}

func (t triggerTable) Rows() [][]string {
	rows := make([][]string, len(t))
	for i, r := range t {
		rows[i] = []string{r.WorkflowID, r.WorkflowName, orDash(r.ExecutionID), orDash(string(r.Status)), orDash(r.Error)}
	}
	return rows
}

// executionView prints an execution as one row per step.
type executionView struct {
	*workflow.ExecutionResult
}

func (v executionView) Headers() []string {
	return []string{"STEP", "ID", "TYPE", "SUCCESS", "RESULT", "ERROR"}
}

func (v executionView) Rows() [][]string {
	rows := make([][]string, 0, len(v.StepResults)+1)
	for _, s := range v.StepResults {
		rows = append(rows, []string{
			strconv.Itoa(s.Index), s.StepID, string(s.StepType),
			strconv.FormatBool(s.Success), formatMap(s.Result), orDash(s.Error),
		})
	}
	status := fmt.Sprintf("execution %s %s", v.ExecutionID, v.Status)
	if v.ResumeAt != nil {
		status += " until " + formatTime(v.ResumeAt)
	}
	rows = append(rows, []string{"-", "-", "-", strconv.FormatBool(v.Success), status, orDash(v.ErrorMessage)})
	return rows
}
