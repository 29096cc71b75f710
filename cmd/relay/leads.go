package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"leadflow-hq/relay/pkg/cli"
	"leadflow-hq/relay/pkg/lead"
	"leadflow-hq/relay/pkg/rules"
	"leadflow-hq/relay/pkg/store"
	"leadflow-hq/relay/pkg/telemetry/logging"
	"leadflow-hq/relay/pkg/workflow"
)

var leadsFlags struct {
	events   bool
	userID   string
	context  map[string]string
	status   string
	campaign string
	limit    int
}

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Import leads and fire lifecycle events",
}

var leadsImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import leads from a YAML or JSON file",
	Long: `Import leads from a YAML or JSON file holding a list of leads, or a
document with a top-level "leads" list. Leads without an id get one.

With --events (the default) every new lead fires lead.created and every
existing lead fires lead.updated, running matching rules and workflows.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		leads, err := readLeads(args[0])
		if err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		progress := cli.NewProgressReporter(cmd.ErrOrStderr(), "import")
		progress.Start(int64(len(leads)))

		var failures []error
		for _, l := range leads {
			if err := importLead(ctx, a, l); err != nil {
				failures = append(failures, fmt.Errorf("lead %s: %w", l.ID, err))
				progress.Increment(true)
				continue
			}
			progress.Increment(false)
		}
		progress.Finish()

		processed, failed := progress.Counts()
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d leads\n", processed-failed, processed)
		if len(failures) > 0 {
			return cli.NewCommandError("leads import", errors.Join(failures...))
		}
		return nil
	},
}

var leadsShowCmd = &cobra.Command{
	Use:   "show [LEAD_ID]",
	Short: "Show one lead, or list leads",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if len(args) == 1 {
			l, err := a.repo.GetLead(ctx, args[0])
			if err != nil {
				return cli.NewCommandError("leads show", err)
			}
			return printResult(cmd, leadTable{l})
		}

		leads, err := a.repo.ListLeads(ctx, store.LeadFilter{
			Status:     leadsFlags.status,
			CampaignID: leadsFlags.campaign,
			Limit:      leadsFlags.limit,
		})
		if err != nil {
			return cli.NewCommandError("leads show", err)
		}
		return printResult(cmd, leadTable(leads))
	},
}

var leadsEventCmd = &cobra.Command{
	Use:   "event LEAD_ID EVENT",
	Short: "Fire a lifecycle event for a lead",
	Long: `Fire a lifecycle event for a lead: matching active rules are applied
in priority order and every active workflow whose trigger is the event
runs. Common events are lead.created, lead.updated, lead.scored and
lead.enriched; any name is accepted.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := fireEvent(cmd.Context(), a, args[0], args[1], leadsFlags.userID, parseValues(leadsFlags.context))
		if err != nil {
			return cli.NewCommandError("leads event", err)
		}
		if err := printResult(cmd, out); err != nil {
			return err
		}
		if !out.success() {
			return cli.NewCommandError("leads event", fmt.Errorf("event %s had failures", args[1]))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(leadsCmd)
	leadsCmd.AddCommand(leadsImportCmd, leadsShowCmd, leadsEventCmd)

	leadsImportCmd.Flags().BoolVar(&leadsFlags.events, "events", true, "fire lead.created or lead.updated for each lead")
	leadsImportCmd.Flags().StringVar(&leadsFlags.userID, "user", "", "user id recorded on triggered workflow executions")

	leadsShowCmd.Flags().StringVar(&leadsFlags.status, "status", "", "filter by status")
	leadsShowCmd.Flags().StringVar(&leadsFlags.campaign, "campaign", "", "filter by campaign id")
	leadsShowCmd.Flags().IntVar(&leadsFlags.limit, "limit", 100, "maximum leads listed")

	leadsEventCmd.Flags().StringVar(&leadsFlags.userID, "user", "", "user id recorded on triggered workflow executions")
	leadsEventCmd.Flags().StringToStringVar(&leadsFlags.context, "context", nil, "rule context and workflow trigger data (key=value, repeatable)")
}

// readLeads decodes a lead list. JSON is accepted as YAML.
func readLeads(path string) ([]*lead.Lead, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Leads []*lead.Lead `yaml:"leads"`
	}
	if err := yaml.Unmarshal(data, &doc); err == nil && doc.Leads != nil {
		return doc.Leads, nil
	}

	var leads []*lead.Lead
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&leads); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse leads %q: %w", path, err)
	}
	return leads, nil
}

func importLead(ctx context.Context, a *app, l *lead.Lead) error {
	if l == nil {
		return errors.New("empty entry")
	}
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.Status == "" {
		l.Status = lead.StatusRaw
	}

	event := rules.EventLeadCreated
	if _, err := a.repo.GetLead(ctx, l.ID); err == nil {
		event = rules.EventLeadUpdated
	}

	if err := a.repo.SaveLead(ctx, l); err != nil {
		return err
	}
	if !leadsFlags.events {
		return nil
	}

	out, err := fireEvent(ctx, a, l.ID, event, leadsFlags.userID, nil)
	if err != nil {
		return err
	}
	if !out.success() {
		return fmt.Errorf("%s had failures", event)
	}
	return nil
}

// eventOutcome is what one lifecycle event did.
type eventOutcome struct {
	Rules     *rules.EventResult       `json:"rules"`
	Workflows []workflow.TriggerResult `json:"workflows"`
}

// success treats a workflow suspended on a delay as healthy.
func (o *eventOutcome) success() bool {
	if !o.Rules.Success() {
		return false
	}
	for _, w := range o.Workflows {
		if w.Error != "" || w.Status == workflow.StatusFailed {
			return false
		}
	}
	return true
}

func (o *eventOutcome) Headers() []string {
	return []string{"KIND", "ID", "STATUS", "DETAIL"}
}

func (o *eventOutcome) Rows() [][]string {
	rows := [][]string{{
		"rules", o.Rules.Event, "",
		fmt.Sprintf("matched=%d applied=%d failed=%d", o.Rules.RulesMatched, o.Rules.ActionsApplied, len(o.Rules.Failures)),
	}}
	if o.Rules.Success() {
		rows[0][2] = "ok"
	} else {
		rows[0][2] = "failed"
	}
	for _, f := range o.Rules.Failures {
		rows = append(rows, []string{"rule", f.RuleID, "failed", f.Error})
	}
	for _, w := range o.Workflows {
		rows = append(rows, []string{"workflow", w.WorkflowID, orDash(string(w.Status)), orDash(w.Error)})
	}
	return rows
}

// fireEvent runs the rule engine and then the workflow fan-out for event.
// A rule failure does not stop the workflows.
func fireEvent(ctx context.Context, a *app, leadID, event, userID string, data map[string]any) (*eventOutcome, error) {
	ctx = logging.WithTriggerEvent(logging.WithLeadID(ctx, leadID), event)

	ruleRes, err := a.rules.ProcessEvent(ctx, leadID, event, data)
	if err != nil {
		return nil, err
	}

	triggered, err := a.workflows.TriggerWorkflows(ctx, event, workflow.ExecutionContext{
		LeadID:      leadID,
		UserID:      userID,
		TriggerData: data,
	})
	if err != nil {
		return nil, err
	}
	return &eventOutcome{Rules: ruleRes, Workflows: triggered}, nil
}

type leadTable []*lead.Lead

func (t leadTable) Headers() []string {
	return []string{"ID", "COMPANY", "STATUS", "SCORE", "ASSIGNED_TO", "TEAM", "UPDATED"}
}

func (t leadTable) Rows() [][]string {
	rows := make([][]string, len(t))
	for i, l := range t {
		updated := l.UpdatedAt.UTC().Format(time.RFC3339)
		rows[i] = []string{
			l.ID, l.CompanyName, l.Status,
			strconv.FormatFloat(l.Score, 'f', -1, 64),
			orDash(l.AssignedToID), orDash(l.AssignedTeamID), updated,
		}
	}
	return rows
}
