package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"leadflow-hq/relay/pkg/automation"
	"leadflow-hq/relay/pkg/config"
	"leadflow-hq/relay/pkg/lead"
	"leadflow-hq/relay/pkg/rules"
	"leadflow-hq/relay/pkg/workflow"
)

func sqliteConfig(t *testing.T) config.SQLiteConfig {
	return config.SQLiteConfig{
		Path:         filepath.Join(t.TempDir(), "relay.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// forEachBackend runs fn against a fresh repository of every backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, repo Repository)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryRepository())
	})
	t.Run("sqlite", func(t *testing.T) {
		repo, err := NewSQLiteRepository(sqliteConfig(t))
		if err != nil {
			t.Fatalf("NewSQLiteRepository() failed: %v", err)
		}
		t.Cleanup(func() { repo.Close() })
		fn(t, repo)
	})
}

// must fails the test on a non-nil error.
func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func wantErr(t *testing.T, what string, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Errorf("%s = %v, want %v", what, err, target)
	}
}

func ptr[T any](v T) *T { return &v }

func sampleLead(id string, created time.Time) *lead.Lead {
	return &lead.Lead{
		ID:          id,
		CompanyName: "Company " + id,
		Industry:    "Software",
		Status:      lead.StatusRaw,
		Score:       10,
		Revenue:     ptr(1_000_000.0),
		CompanySize: ptr(42),
		CreatedAt:   created,
	}
}

func leadIDs(leads []*lead.Lead) []string {
	ids := make([]string, 0, len(leads))
	for _, l := range leads {
		ids = append(ids, l.ID)
	}
	return ids
}

func TestRepository_Leads(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

		must(t, repo.SaveLead(ctx, sampleLead("b", base.Add(time.Hour))))
		must(t, repo.SaveLead(ctx, sampleLead("a", base.Add(time.Hour))))
		must(t, repo.SaveLead(ctx, sampleLead("c", base)))

		got, err := repo.GetLead(ctx, "a")
		must(t, err)
		if got.CompanyName != "Company a" || !got.CreatedAt.Equal(base.Add(time.Hour)) {
			t.Errorf("lead = %+v", got)
		}
		if got.Revenue == nil || *got.Revenue != 1_000_000.0 {
			t.Errorf("Revenue = %v, want 1000000", got.Revenue)
		}
		if got.CompanySize == nil || *got.CompanySize != 42 {
			t.Errorf("CompanySize = %v, want 42", got.CompanySize)
		}
		if got.Confidence != nil {
			t.Errorf("Confidence = %v, want nil", *got.Confidence)
		}

		all, err := repo.ListLeads(ctx, LeadFilter{})
		must(t, err)
		if ids := leadIDs(all); !reflect.DeepEqual(ids, []string{"c", "a", "b"}) {
			t.Errorf("ListLeads() order = %v, want [c a b]", ids)
		}

		paged, err := repo.ListLeads(ctx, LeadFilter{Offset: 1})
		must(t, err)
		if len(paged) != 2 {
			t.Errorf("offset 1 returned %d leads, want 2", len(paged))
		}
		paged, err = repo.ListLeads(ctx, LeadFilter{Limit: 1, Offset: 2})
		must(t, err)
		if ids := leadIDs(paged); !reflect.DeepEqual(ids, []string{"b"}) {
			t.Errorf("limit 1 offset 2 = %v, want [b]", ids)
		}

		updated, err := repo.UpdateLead(ctx, "a", lead.Patch{
			Status:       ptr(lead.StatusQualified),
			AssignedToID: ptr("user-7"),
		})
		must(t, err)
		if updated.Status != lead.StatusQualified || updated.AssignedToID != "user-7" {
			t.Errorf("updated = %+v", updated)
		}

		qualified, err := repo.ListLeads(ctx, LeadFilter{Status: lead.StatusQualified, AssignedToID: "user-7"})
		must(t, err)
		if ids := leadIDs(qualified); !reflect.DeepEqual(ids, []string{"a"}) {
			t.Errorf("filtered = %v, want [a]", ids)
		}

		// Saving again keeps the original creation time.
		again := sampleLead("a", base.Add(48*time.Hour))
		must(t, repo.SaveLead(ctx, again))
		if !again.CreatedAt.Equal(base.Add(time.Hour)) {
			t.Errorf("CreatedAt = %v, want %v", again.CreatedAt, base.Add(time.Hour))
		}

		must(t, repo.DeleteLead(ctx, "a"))
		_, err = repo.GetLead(ctx, "a")
		wantErr(t, "GetLead after delete", err, automation.ErrNotFound)
		wantErr(t, "second DeleteLead", repo.DeleteLead(ctx, "a"), automation.ErrNotFound)
		_, err = repo.UpdateLead(ctx, "a", lead.Patch{Score: ptr(1.0)})
		wantErr(t, "UpdateLead(missing)", err, automation.ErrNotFound)

		wantErr(t, "SaveLead(no id)", repo.SaveLead(ctx, &lead.Lead{}), automation.ErrValidation)
	})
}

func sampleRule(id string, active bool) *rules.Rule {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	return &rules.Rule{
		ID:   id,
		Name: "rule " + id,
		Type: rules.TypeStatusChange,
		Conditions: []automation.Condition{
			{Field: "score", Operator: automation.OperatorGreaterThan, Value: 80.0, LogicalOperator: automation.LogicalOr},
			{Field: "industry", Operator: automation.OperatorIn, Value: []any{"Software", "Finance"}},
		},
		Actions: []automation.Action{
			{Type: automation.ActionStatusChange, Value: lead.StatusQualified},
		},
		Priority:  5,
		IsActive:  active,
		CreatedBy: "admin",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRepository_Rules(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()

		must(t, repo.CreateRule(ctx, sampleRule("r1", true)))
		must(t, repo.CreateRule(ctx, sampleRule("r2", false)))
		wantErr(t, "duplicate CreateRule", repo.CreateRule(ctx, sampleRule("r1", true)), ErrAlreadyExists)

		got, err := repo.GetRule(ctx, "r1")
		must(t, err)
		want := sampleRule("r1", true)
		if !reflect.DeepEqual(got.Conditions, want.Conditions) {
			t.Errorf("Conditions = %#v, want %#v", got.Conditions, want.Conditions)
		}
		if !reflect.DeepEqual(got.Actions, want.Actions) {
			t.Errorf("Actions = %#v, want %#v", got.Actions, want.Actions)
		}
		if !got.CreatedAt.Equal(want.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
		}

		active, err := repo.ListRules(ctx, rules.RuleFilter{Active: ptr(true)})
		must(t, err)
		if len(active) != 1 || active[0].ID != "r1" {
			t.Errorf("active rules = %v, want only r1", active)
		}

		all, err := repo.ListRules(ctx, rules.RuleFilter{Type: rules.TypeStatusChange, CreatedBy: "admin"})
		must(t, err)
		if len(all) != 2 {
			t.Errorf("got %d rules, want 2", len(all))
		}

		got.Name = "renamed"
		must(t, repo.UpdateRule(ctx, got))
		got, err = repo.GetRule(ctx, "r1")
		must(t, err)
		if got.Name != "renamed" {
			t.Errorf("Name = %q, want renamed", got.Name)
		}

		wantErr(t, "UpdateRule(missing)", repo.UpdateRule(ctx, sampleRule("missing", true)), automation.ErrNotFound)
		must(t, repo.DeleteRule(ctx, "r1"))
		wantErr(t, "second DeleteRule", repo.DeleteRule(ctx, "r1"), automation.ErrNotFound)
	})
}

func sampleWorkflow(id string) *workflow.Workflow {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	return &workflow.Workflow{
		ID:       id,
		Name:     "workflow " + id,
		Trigger:  "lead.created",
		Priority: 3,
		IsActive: true,
		Steps: []workflow.Step{
			{ID: "s2", Name: "notify", Type: workflow.StepNotification, Order: 2, Config: map[string]any{"channel": "sales"}},
			{ID: "s1", Name: "wait", Type: workflow.StepDelay, Order: 1, Config: map[string]any{"duration": "1h"}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRepository_Workflows(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()

		must(t, repo.CreateWorkflow(ctx, sampleWorkflow("w1")))
		wantErr(t, "duplicate CreateWorkflow", repo.CreateWorkflow(ctx, sampleWorkflow("w1")), ErrAlreadyExists)

		got, err := repo.GetWorkflow(ctx, "w1")
		must(t, err)
		if len(got.Steps) != 2 {
			t.Fatalf("got %d steps, want 2", len(got.Steps))
		}
		if got.Steps[0].ID != "s1" {
			t.Errorf("first step = %q, want s1; steps come back in order", got.Steps[0].ID)
		}
		if got.Steps[0].Config["duration"] != "1h" {
			t.Errorf("duration = %v, want 1h", got.Steps[0].Config["duration"])
		}

		other := sampleWorkflow("w2")
		other.Trigger = "lead.scored"
		other.IsActive = false
		must(t, repo.CreateWorkflow(ctx, other))

		listed, err := repo.ListWorkflows(ctx, workflow.WorkflowFilter{Trigger: "lead.created", Active: ptr(true)})
		must(t, err)
		if len(listed) != 1 || listed[0].ID != "w1" || len(listed[0].Steps) != 2 {
			t.Errorf("listed = %+v, want w1 with its 2 steps", listed)
		}

		got.Steps = got.Steps[:1]
		got.Name = "shorter"
		must(t, repo.UpdateWorkflow(ctx, got))
		got, err = repo.GetWorkflow(ctx, "w1")
		must(t, err)
		if got.Name != "shorter" || len(got.Steps) != 1 {
			t.Errorf("updated = %+v, want shorter with 1 step", got)
		}

		wantErr(t, "UpdateWorkflow(missing)", repo.UpdateWorkflow(ctx, sampleWorkflow("missing")), automation.ErrNotFound)
	})
}

func TestRepository_Executions(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		must(t, repo.CreateWorkflow(ctx, sampleWorkflow("w1")))

		started := time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC)
		x := &workflow.Execution{
			ID:           "x1",
			WorkflowID:   "w1",
			LeadID:       "lead-1",
			TriggerEvent: "lead.created",
			Status:       workflow.StatusRunning,
			TriggerData:  map[string]any{"source": "webinar"},
			StartedAt:    started,
		}
		must(t, repo.CreateExecution(ctx, x))
		wantErr(t, "duplicate CreateExecution", repo.CreateExecution(ctx, x), ErrAlreadyExists)
		wantErr(t, "CreateExecution(unknown workflow)",
			repo.CreateExecution(ctx, &workflow.Execution{ID: "x2", WorkflowID: "nope", Status: workflow.StatusRunning}),
			automation.ErrNotFound)

		for i, id := range []string{"s1", "s2"} {
			errMsg := ""
			if i == 1 {
				errMsg = "boom"
			}
			must(t, repo.AppendStepResult(ctx, "x1", workflow.StepResult{
				Index:       99,
				StepID:      id,
				StepType:    workflow.StepNotification,
				Success:     i == 0,
				Result:      map[string]any{"sent": true},
				Error:       errMsg,
				StartedAt:   started,
				CompletedAt: started.Add(time.Second),
			}))
		}
		wantErr(t, "AppendStepResult(missing)", repo.AppendStepResult(ctx, "missing", workflow.StepResult{}), automation.ErrNotFound)

		resumeAt := started.Add(time.Hour)
		x.NextStep = 2
		x.ResumeAt = &resumeAt
		must(t, repo.UpdateExecution(ctx, x))

		got, err := repo.GetExecution(ctx, "x1")
		must(t, err)
		if got.Status != workflow.StatusRunning || got.TriggerData["source"] != "webinar" || got.NextStep != 2 {
			t.Errorf("execution = %+v", got)
		}
		if got.ResumeAt == nil || !got.ResumeAt.Equal(resumeAt) {
			t.Errorf("ResumeAt = %v, want %v", got.ResumeAt, resumeAt)
		}
		if got.StepResults.Len() != 2 {
			t.Fatalf("got %d step results, want 2", got.StepResults.Len())
		}
		second, _ := got.StepResults.At(1)
		if second.Index != 1 || second.StepID != "s2" || second.Error != "boom" || second.Result["sent"] != true {
			t.Errorf("second step result = %+v", second)
		}

		due, err := repo.ListDueExecutions(ctx, started, 10)
		must(t, err)
		if len(due) != 0 {
			t.Errorf("due before resume time = %+v, want none", due)
		}
		due, err = repo.ListDueExecutions(ctx, resumeAt, 10)
		must(t, err)
		if len(due) != 1 || due[0].ExecutionID != "x1" {
			t.Errorf("due at resume time = %+v, want x1", due)
		}

		ok, err := repo.ClaimExecution(ctx, "x1", resumeAt.Add(time.Nanosecond))
		must(t, err)
		if ok {
			t.Error("claim with a stale resume time succeeded")
		}
		ok, err = repo.ClaimExecution(ctx, "x1", resumeAt)
		must(t, err)
		if !ok {
			t.Error("first claim failed")
		}
		ok, err = repo.ClaimExecution(ctx, "x1", resumeAt)
		must(t, err)
		if ok {
			t.Error("second claim succeeded")
		}

		completed := resumeAt.Add(time.Minute)
		x.Status = workflow.StatusCompleted
		x.CompletedAt = &completed
		x.ResumeAt = nil
		must(t, repo.UpdateExecution(ctx, x))

		got, err = repo.GetExecution(ctx, "x1")
		must(t, err)
		if got.Status != workflow.StatusCompleted || got.CompletedAt == nil || !got.CompletedAt.Equal(completed) {
			t.Errorf("completed execution = %+v", got)
		}
		if got.ResumeAt != nil {
			t.Errorf("ResumeAt = %v, want nil", got.ResumeAt)
		}
		if got.StepResults.Len() != 2 {
			t.Errorf("got %d step results; status updates keep step results", got.StepResults.Len())
		}

		wantErr(t, "UpdateExecution(missing)", repo.UpdateExecution(ctx, &workflow.Execution{ID: "missing"}), automation.ErrNotFound)
	})
}

func TestRepository_DeleteWorkflowCascades(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		must(t, repo.CreateWorkflow(ctx, sampleWorkflow("w1")))
		must(t, repo.CreateWorkflow(ctx, sampleWorkflow("w2")))

		for _, x := range []*workflow.Execution{
			{ID: "x1", WorkflowID: "w1", Status: workflow.StatusRunning, StartedAt: time.Now()},
			{ID: "x2", WorkflowID: "w2", Status: workflow.StatusRunning, StartedAt: time.Now()},
		} {
			must(t, repo.CreateExecution(ctx, x))
			must(t, repo.AppendStepResult(ctx, x.ID, workflow.StepResult{StepID: "s1", Success: true}))
		}

		must(t, repo.DeleteWorkflow(ctx, "w1"))

		_, err := repo.GetWorkflow(ctx, "w1")
		wantErr(t, "GetWorkflow after delete", err, automation.ErrNotFound)
		_, err = repo.GetExecution(ctx, "x1")
		wantErr(t, "GetExecution of deleted workflow", err, automation.ErrNotFound)

		kept, err := repo.GetExecution(ctx, "x2")
		must(t, err)
		if kept.StepResults.Len() != 1 {
			t.Errorf("kept execution has %d step results, want 1", kept.StepResults.Len())
		}

		wantErr(t, "second DeleteWorkflow", repo.DeleteWorkflow(ctx, "w1"), automation.ErrNotFound)
	})
}

func TestRepository_DrivesEngines(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		must(t, repo.SaveLead(ctx, sampleLead("lead-1", time.Now())))

		engine, err := workflow.NewEngine(workflow.DefaultConfig().WithSweepSchedule(""), repo, nil, nil)
		must(t, err)
		must(t, engine.Start(ctx))
		defer engine.Stop()

		wf, err := engine.CreateWorkflow(ctx, &workflow.Workflow{
			Name:    "nurture",
			Trigger: "lead.created",
			Steps: []workflow.Step{
				{Name: "wait", Type: workflow.StepDelay, Order: 1, Config: map[string]any{"duration": "10ms"}},
				{Name: "score", Type: workflow.StepAction, Order: 2, Config: map[string]any{"action": "update_score", "value": 77}},
			},
		})
		must(t, err)

		res, err := engine.ExecuteWorkflow(ctx, wf.ID, workflow.ExecutionContext{LeadID: "lead-1"})
		must(t, err)
		if res.Status != workflow.StatusRunning {
			t.Fatalf("status = %s, want running", res.Status)
		}

		awaitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		final, err := engine.Await(awaitCtx, res.ExecutionID)
		must(t, err)
		if final.Status != workflow.StatusCompleted {
			t.Errorf("final status = %s, want completed", final.Status)
		}

		l, err := repo.GetLead(ctx, "lead-1")
		must(t, err)
		if l.Score != 77 {
			t.Errorf("score = %v, want 77", l.Score)
		}

		ruleEngine, err := rules.NewEngine(nil, repo, nil, nil)
		must(t, err)
		_, err = ruleEngine.CreateRule(ctx, sampleRule("", true))
		must(t, err)
		matches, err := ruleEngine.EvaluateRules(ctx, "lead-1", nil)
		must(t, err)
		if len(matches) != 1 {
			t.Errorf("got %d matches, want 1", len(matches))
		}
	})
}

func TestRepository_EngineValuesReadBackUnchanged(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()

		ruleEngine, err := rules.NewEngine(nil, repo, nil, nil)
		must(t, err)
		created, err := ruleEngine.CreateRule(ctx, &rules.Rule{
			Name: "hot lead",
			Type: rules.TypeStatusChange,
			Conditions: []automation.Condition{
				{Field: "score", Operator: automation.OperatorGreaterThan, Value: 70},
				{Field: "companySize", Operator: automation.OperatorIn, Value: []int{10, 50}},
			},
			Actions: []automation.Action{
				{Type: automation.ActionStatusChange, Target: "status", Value: "QUALIFIED"},
			},
		})
		must(t, err)

		got, err := ruleEngine.GetRuleByID(ctx, created.ID)
		must(t, err)
		if !reflect.DeepEqual(got.Conditions, created.Conditions) {
			t.Errorf("Conditions = %#v, want %#v", got.Conditions, created.Conditions)
		}
		if !reflect.DeepEqual(got.Actions, created.Actions) {
			t.Errorf("Actions = %#v, want %#v", got.Actions, created.Actions)
		}
		if v, ok := got.Conditions[0].Value.(float64); !ok || v != 70 {
			t.Errorf("score value = %#v, want float64(70)", got.Conditions[0].Value)
		}

		wfEngine, err := workflow.NewEngine(workflow.DefaultConfig().WithSweepSchedule(""), repo, nil, nil)
		must(t, err)
		wf, err := wfEngine.CreateWorkflow(ctx, &workflow.Workflow{
			Name:    "bump",
			Trigger: "lead.created",
			Steps: []workflow.Step{
				{Name: "score", Type: workflow.StepAction, Order: 1, Config: map[string]any{"action": "update_score", "value": 77}},
			},
		})
		must(t, err)
		stored, err := wfEngine.GetWorkflowByID(ctx, wf.ID)
		must(t, err)
		if !reflect.DeepEqual(stored.Steps, wf.Steps) {
			t.Errorf("Steps = %#v, want %#v", stored.Steps, wf.Steps)
		}
	})
}

func TestNew(t *testing.T) {
	repo, err := New(config.StorageConfig{Backend: "memory"})
	must(t, err)
	if _, ok := repo.(*MemoryRepository); !ok {
		t.Errorf("memory backend = %T, want *MemoryRepository", repo)
	}
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping() failed: %v", err)
	}

	repo, err = New(config.StorageConfig{Backend: "sqlite", SQLite: sqliteConfig(t)})
	must(t, err)
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping() failed: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}

	if _, err := New(config.StorageConfig{Backend: "postgres"}); err == nil {
		t.Error("New(postgres) succeeded, want error")
	}
}

func TestSQLiteRepository_Reopen(t *testing.T) {
	cfg := sqliteConfig(t)
	ctx := context.Background()

	repo, err := NewSQLiteRepository(cfg)
	must(t, err)
	must(t, repo.SaveLead(ctx, sampleLead("persisted", time.Now())))
	must(t, repo.Close())

	repo, err = NewSQLiteRepository(cfg)
	must(t, err)
	defer repo.Close()

	got, err := repo.GetLead(ctx, "persisted")
	must(t, err)
	if got.CompanyName != "Company persisted" {
		t.Errorf("CompanyName = %q, want Company persisted", got.CompanyName)
	}
}
