package rules

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"leadflow-hq/relay/pkg/automation"
	"leadflow-hq/relay/pkg/execlog"
	"leadflow-hq/relay/pkg/lead"
)

// memRepo is a minimal in-memory Repository.
type memRepo struct {
	mu         sync.Mutex
	leads      map[string]*lead.Lead
	rules      map[string]*Rule
	failUpdate map[string]error
}

func newMemRepo(leads ...*lead.Lead) *memRepo {
	r := &memRepo{
		leads:      map[string]*lead.Lead{},
		rules:      map[string]*Rule{},
		failUpdate: map[string]error{},
	}
	for _, l := range leads {
		r.leads[l.ID] = l
	}
	return r
}

func (r *memRepo) GetLead(_ context.Context, id string) (*lead.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return nil, automation.NewNotFoundError("lead", id)
	}
	return l.Clone(), nil
}

func (r *memRepo) UpdateLead(_ context.Context, id string, p lead.Patch) (*lead.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failUpdate[id]; err != nil {
		return nil, err
	}
	l, ok := r.leads[id]
	if !ok {
		return nil, automation.NewNotFoundError("lead", id)
	}
	p.Apply(l, time.Now())
	return l.Clone(), nil
}

func (r *memRepo) CreateRule(_ context.Context, rule *Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.ID] = rule.Clone()
	return nil
}

func (r *memRepo) GetRule(_ context.Context, id string) (*Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, automation.NewNotFoundError("rule", id)
	}
	return rule.Clone(), nil
}

func (r *memRepo) ListRules(_ context.Context, f RuleFilter) ([]*Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Rule
	for _, rule := range r.rules {
		if f.Matches(rule) {
			out = append(out, rule.Clone())
		}
	}
	return out, nil
}

func (r *memRepo) UpdateRule(_ context.Context, rule *Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[rule.ID]; !ok {
		return automation.NewNotFoundError("rule", rule.ID)
	}
	r.rules[rule.ID] = rule.Clone()
	return nil
}

func (r *memRepo) DeleteRule(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return automation.NewNotFoundError("rule", id)
	}
	delete(r.rules, id)
	return nil
}

type recordingLog struct {
	mu      sync.Mutex
	records []*execlog.Record
}

func (l *recordingLog) Log(_ context.Context, r *execlog.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, r)
}

func (l *recordingLog) all() []*execlog.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*execlog.Record(nil), l.records...)
}

func rawLead(id string, score float64) *lead.Lead {
	return &lead.Lead{ID: id, CompanyName: "Company " + id, Status: lead.StatusRaw, Score: score}
}

func qualifyRule() *Rule {
	return &Rule{
		Name:       "Qualify hot leads",
		Type:       TypeStatusChange,
		Conditions: []automation.Condition{{Field: "score", Operator: automation.OperatorGreaterThan, Value: 70}},
		Actions:    []automation.Action{{Type: automation.ActionStatusChange, Target: "status", Value: lead.StatusQualified}},
		IsActive:   true,
	}
}

func newTestEngine(t *testing.T, repo *memRepo, cfg *Config) (*Engine, *recordingLog) {
	t.Helper()
	e, err := NewEngine(cfg, repo, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}
	log := &recordingLog{}
	e.SetExecutionLogger(log)
	return e, log
}

func TestEngine_QualifyScenario(t *testing.T) {
	repo := newMemRepo(rawLead("lead-1", 85))
	e, _ := newTestEngine(t, repo, nil)
	ctx := context.Background()

	rule, err := e.CreateRule(ctx, qualifyRule())
	if err != nil {
		t.Fatalf("CreateRule() failed: %v", err)
	}

	matches, err := e.EvaluateRules(ctx, "lead-1", nil)
	if err != nil {
		t.Fatalf("EvaluateRules() failed: %v", err)
	}
	if len(matches) != 1 || matches[0].RuleID != rule.ID || !matches[0].Matched {
		t.Fatalf("EvaluateRules() = %+v, want one match for %s", matches, rule.ID)
	}

	if err := e.ApplyRuleActions(ctx, "lead-1", matches[0].Actions); err != nil {
		t.Fatalf("ApplyRuleActions() failed: %v", err)
	}

	l, _ := repo.GetLead(ctx, "lead-1")
	if l.Status != lead.StatusQualified {
		t.Errorf("status = %q, want %q", l.Status, lead.StatusQualified)
	}
}

func TestEngine_CreateRuleValidation(t *testing.T) {
	tests := []struct {
		name    string
		strict  bool
		mutate  func(r *Rule)
		wantErr error
	}{
		{name: "valid", mutate: func(r *Rule) {}},
		{name: "missing name", mutate: func(r *Rule) { r.Name = " " }, wantErr: automation.ErrValidation},
		{name: "missing type", mutate: func(r *Rule) { r.Type = "" }, wantErr: automation.ErrValidation},
		{name: "unknown type", mutate: func(r *Rule) { r.Type = "routing" }, wantErr: automation.ErrValidation},
		{name: "no conditions", mutate: func(r *Rule) { r.Conditions = nil }, wantErr: automation.ErrValidation},
		{name: "no actions", mutate: func(r *Rule) { r.Actions = nil }, wantErr: automation.ErrValidation},
		{name: "condition without field", mutate: func(r *Rule) { r.Conditions[0].Field = "" }, wantErr: automation.ErrValidation},
		{name: "action without type", mutate: func(r *Rule) { r.Actions[0].Type = "" }, wantErr: automation.ErrValidation},
		{name: "bad logical operator", mutate: func(r *Rule) { r.Conditions[0].LogicalOperator = "XOR" }, wantErr: automation.ErrValidation},
		{name: "lowercase logical operator", mutate: func(r *Rule) { r.Conditions[0].LogicalOperator = "or" }},
		{name: "unknown operator accepted by default", mutate: func(r *Rule) { r.Conditions[0].Operator = "matches" }},
		{name: "unknown operator strict", strict: true, mutate: func(r *Rule) { r.Conditions[0].Operator = "matches" }, wantErr: automation.ErrUnsupported},
		{name: "unknown action type strict", strict: true, mutate: func(r *Rule) { r.Actions[0].Type = "teleport" }, wantErr: automation.ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t, newMemRepo(), DefaultConfig().WithStrictValidation(tt.strict))
			r := qualifyRule()
			tt.mutate(r)

			created, err := e.CreateRule(context.Background(), r)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("CreateRule() failed: %v", err)
				}
				if created.ID == "" || created.CreatedAt.IsZero() {
					t.Errorf("CreateRule() = %+v, want id and timestamps", created)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateRule() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEngine_RuleRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t, newMemRepo(), nil)
	ctx := context.Background()

	in := qualifyRule()
	in.Conditions = append(in.Conditions, automation.Condition{
		Field: "industry", Operator: automation.OperatorIn, Value: []any{"SaaS", "Fintech"}, LogicalOperator: automation.LogicalOr,
	})
	in.Actions = append(in.Actions, automation.Action{Type: automation.ActionAssignment, Target: automation.TargetTeam, Value: "team-7"})

	created, err := e.CreateRule(ctx, in)
	if err != nil {
		t.Fatalf("CreateRule() failed: %v", err)
	}
	got, err := e.GetRuleByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetRuleByID() failed: %v", err)
	}

	if !reflect.DeepEqual(got.Conditions, created.Conditions) {
		t.Errorf("conditions = %+v, want %+v", got.Conditions, created.Conditions)
	}
	if !reflect.DeepEqual(got.Actions, in.Actions) {
		t.Errorf("actions = %+v, want %+v", got.Actions, in.Actions)
	}

	// Integer values are stored as float64, whatever the repository.
	if v, ok := got.Conditions[0].Value.(float64); !ok || v != 70 {
		t.Errorf("conditions[0].Value = %#v, want float64(70)", got.Conditions[0].Value)
	}
	if in.Conditions[0].Value != 70 {
		t.Errorf("caller's rule was modified: %#v", in.Conditions[0].Value)
	}
}

func TestEngine_UpdateRuleNormalizesValues(t *testing.T) {
	e, _ := newTestEngine(t, newMemRepo(), nil)
	ctx := context.Background()

	created, err := e.CreateRule(ctx, qualifyRule())
	if err != nil {
		t.Fatalf("CreateRule() failed: %v", err)
	}
	updated, err := e.UpdateRule(ctx, created.ID, RulePatch{
		Conditions: []automation.Condition{{Field: "companySize", Operator: automation.OperatorIn, Value: []int{10, 50}}},
	})
	if err != nil {
		t.Fatalf("UpdateRule() failed: %v", err)
	}

	want := []any{10.0, 50.0}
	if !reflect.DeepEqual(updated.Conditions[0].Value, want) {
		t.Errorf("Value = %#v, want %#v", updated.Conditions[0].Value, want)
	}

	_, err = e.CreateRule(ctx, &Rule{
		Name:       "bad value",
		Type:       TypeScoring,
		Conditions: []automation.Condition{{Field: "score", Operator: automation.OperatorEquals, Value: make(chan int)}},
		Actions:    []automation.Action{{Type: automation.ActionScoring, Value: 1}},
	})
	if !errors.Is(err, automation.ErrValidation) {
		t.Errorf("CreateRule() with unserializable value = %v, want ErrValidation", err)
	}
}

func TestEngine_BulkApplyRulesCountsSkippedActions(t *testing.T) {
	repo := newMemRepo(rawLead("lead-1", 85))
	e, _ := newTestEngine(t, repo, nil)
	ctx := context.Background()

	r := qualifyRule()
	r.Actions = append(r.Actions,
		automation.Action{Type: "archive", Value: true},
		automation.Action{Type: automation.ActionAssignment, Target: "region", Value: "emea"},
	)
	if _, err := e.CreateRule(ctx, r); err != nil {
		t.Fatalf("CreateRule() failed: %v", err)
	}

	results := e.BulkApplyRules(ctx, []string{"lead-1"}, nil)
	if len(results) != 1 || !results[0].Success {
		t.Fatalf("BulkApplyRules() = %+v", results)
	}
	if results[0].ActionsApplied != 3 {
		t.Errorf("ActionsApplied = %d, want 3 (the flattened action count)", results[0].ActionsApplied)
	}
}

func TestEngine_GetRulesOrderAndFilter(t *testing.T) {
	e, _ := newTestEngine(t, newMemRepo(), nil)
	ctx := context.Background()

	for _, tc := range []struct {
		name     string
		priority int
		active   bool
		typ      RuleType
	}{
		{"b-low", 1, true, TypeStatusChange},
		{"a-high", 10, true, TypeScoring},
		{"c-high", 10, false, TypeStatusChange},
		{"d-mid", 5, true, TypeStatusChange},
	} {
		r := qualifyRule()
		r.Name, r.Priority, r.IsActive, r.Type = tc.name, tc.priority, tc.active, tc.typ
		if _, err := e.CreateRule(ctx, r); err != nil {
			t.Fatalf("CreateRule(%s) failed: %v", tc.name, err)
		}
	}

	names := func(rules []*Rule) []string {
		var out []string
		for _, r := range rules {
			out = append(out, r.Name)
		}
		return out
	}

	all, _ := e.GetRules(ctx, RuleFilter{})
	if want := []string{"a-high", "c-high", "d-mid", "b-low"}; !reflect.DeepEqual(names(all), want) {
		t.Errorf("GetRules() = %v, want %v", names(all), want)
	}

	active := true
	got, _ := e.GetRules(ctx, RuleFilter{Active: &active, Type: TypeStatusChange})
	if want := []string{"d-mid", "b-low"}; !reflect.DeepEqual(names(got), want) {
		t.Errorf("GetRules(filtered) = %v, want %v", names(got), want)
	}
}

func TestEngine_UpdateAndDeleteRule(t *testing.T) {
	e, _ := newTestEngine(t, newMemRepo(), nil)
	ctx := context.Background()

	created, err := e.CreateRule(ctx, qualifyRule())
	if err != nil {
		t.Fatalf("CreateRule() failed: %v", err)
	}

	priority := 42
	updated, err := e.UpdateRule(ctx, created.ID, RulePatch{Priority: &priority})
	if err != nil {
		t.Fatalf("UpdateRule() failed: %v", err)
	}
	if updated.Priority != 42 || updated.Name != created.Name || !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("UpdateRule() = %+v, want only priority changed", updated)
	}

	if _, err := e.UpdateRule(ctx, created.ID, RulePatch{Actions: []automation.Action{}}); !errors.Is(err, automation.ErrValidation) {
		t.Errorf("UpdateRule(empty actions) error = %v, want ErrValidation", err)
	}
	if _, err := e.UpdateRule(ctx, "missing", RulePatch{Priority: &priority}); !errors.Is(err, automation.ErrNotFound) {
		t.Errorf("UpdateRule(missing) error = %v, want ErrNotFound", err)
	}

	if err := e.DeleteRule(ctx, created.ID, "user-1"); err != nil {
		t.Fatalf("DeleteRule() failed: %v", err)
	}
	if _, err := e.GetRuleByID(ctx, created.ID); !errors.Is(err, automation.ErrNotFound) {
		t.Errorf("GetRuleByID(deleted) error = %v, want ErrNotFound", err)
	}
	if err := e.DeleteRule(ctx, created.ID, "user-1"); !errors.Is(err, automation.ErrNotFound) {
		t.Errorf("DeleteRule(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestEngine_EvaluateRules(t *testing.T) {
	repo := newMemRepo(rawLead("lead-1", 50))
	e, _ := newTestEngine(t, repo, nil)
	ctx := context.Background()

	inactive := qualifyRule()
	inactive.Conditions[0].Value = 10
	inactive.IsActive = false

	fromContext := qualifyRule()
	fromContext.Name = "webinar leads"
	fromContext.Conditions = []automation.Condition{{Field: "source", Operator: automation.OperatorEquals, Value: "webinar"}}

	for _, r := range []*Rule{qualifyRule(), inactive, fromContext} {
		if _, err := e.CreateRule(ctx, r); err != nil {
			t.Fatalf("CreateRule() failed: %v", err)
		}
	}

	matches, err := e.EvaluateRules(ctx, "lead-1", map[string]any{"source": "webinar"})
	if err != nil {
		t.Fatalf("EvaluateRules() failed: %v", err)
	}
	if len(matches) != 1 || matches[0].RuleName != "webinar leads" {
		t.Errorf("EvaluateRules() = %+v, want only the context rule", matches)
	}

	if _, err := e.EvaluateRules(ctx, "missing", nil); !errors.Is(err, automation.ErrNotFound) {
		t.Errorf("EvaluateRules(missing) error = %v, want ErrNotFound", err)
	}
}

func TestEngine_ApplyRuleActionsStopsAtFirstError(t *testing.T) {
	repo := newMemRepo(rawLead("lead-1", 10))
	e, _ := newTestEngine(t, repo, nil)
	ctx := context.Background()

	actions := []automation.Action{
		{Type: automation.ActionStatusChange, Value: lead.StatusContacted},
		{Type: automation.ActionScoring, Value: "not a number"},
		{Type: automation.ActionAssignment, Target: automation.TargetUser, Value: "user-9"},
	}

	err := e.ApplyRuleActions(ctx, "lead-1", actions)
	if !errors.Is(err, automation.ErrValidation) {
		t.Fatalf("ApplyRuleActions() error = %v, want ErrValidation", err)
	}

	l, _ := repo.GetLead(ctx, "lead-1")
	if l.Status != lead.StatusContacted {
		t.Errorf("status = %q, want first action applied", l.Status)
	}
	if l.AssignedToID != "" {
		t.Errorf("assignedToId = %q, want actions after the failure skipped", l.AssignedToID)
	}

	if err := e.ApplyRuleActions(ctx, "missing", actions); !errors.Is(err, automation.ErrNotFound) {
		t.Errorf("ApplyRuleActions(missing) error = %v, want ErrNotFound", err)
	}
}

func TestEngine_TestRuleEvaluationIsPure(t *testing.T) {
	repo := newMemRepo()
	e, log := newTestEngine(t, repo, nil)
	ctx := context.Background()

	created, _ := e.CreateRule(ctx, qualifyRule())

	hot := rawLead("sample", 90)
	res, err := e.TestRuleEvaluation(ctx, created.ID, hot)
	if err != nil {
		t.Fatalf("TestRuleEvaluation() failed: %v", err)
	}
	if !res.Matched || len(res.Actions) != 1 {
		t.Errorf("TestRuleEvaluation() = %+v, want matched with actions", res)
	}
	if hot.Status != lead.StatusRaw {
		t.Errorf("sample lead mutated: status %q", hot.Status)
	}

	cold, _ := e.TestRuleEvaluation(ctx, created.ID, rawLead("sample", 10))
	if cold.Matched {
		t.Error("TestRuleEvaluation() matched a cold lead")
	}

	if len(log.all()) != 0 {
		t.Errorf("TestRuleEvaluation wrote %d records, want 0", len(log.all()))
	}
	if _, err := e.TestRuleEvaluation(ctx, "missing", hot); !errors.Is(err, automation.ErrNotFound) {
		t.Errorf("TestRuleEvaluation(missing) error = %v, want ErrNotFound", err)
	}
}

func TestEngine_BulkApplyRules(t *testing.T) {
	for _, concurrency := range []int{1, 3} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			repo := newMemRepo(
				rawLead("lead-1", 80),
				rawLead("lead-2", 90),
				rawLead("lead-3", 95),
				rawLead("lead-4", 20),
				rawLead("lead-5", 75),
			)
			repo.failUpdate["lead-3"] = errors.New("database is locked")

			e, log := newTestEngine(t, repo, DefaultConfig().WithBulkConcurrency(concurrency))
			ctx := context.Background()
			rule, _ := e.CreateRule(ctx, qualifyRule())

			ids := []string{"lead-1", "lead-2", "lead-3", "lead-4", "lead-5", "lead-missing"}
			results := e.BulkApplyRules(ctx, ids, nil)

			if len(results) != len(ids) {
				t.Fatalf("got %d results, want %d", len(results), len(ids))
			}
			for i, r := range results {
				if r.LeadID != ids[i] {
					t.Errorf("results[%d].LeadID = %s, want %s", i, r.LeadID, ids[i])
				}
			}

			wantSuccess := []bool{true, true, false, true, true, false}
			for i, want := range wantSuccess {
				if results[i].Success != want {
					t.Errorf("results[%d] = %+v, want success=%v", i, results[i], want)
				}
			}
			if results[2].Error == "" {
				t.Error("failed lead has no error message")
			}
			if results[3].RulesMatched != 0 || results[0].ActionsApplied != 1 {
				t.Errorf("unexpected counts: %+v / %+v", results[3], results[0])
			}

			for _, id := range []string{"lead-1", "lead-2", "lead-5"} {
				l, _ := repo.GetLead(ctx, id)
				if l.Status != lead.StatusQualified {
					t.Errorf("%s status = %q, want QUALIFIED", id, l.Status)
				}
			}

			// lead-4 matched nothing, so no record; lead-missing failed before matching.
			records := log.all()
			if len(records) != 5 {
				t.Fatalf("got %d records, want 5", len(records))
			}
			for _, rec := range records {
				if rec.Kind != execlog.KindRule || rec.TriggerEvent != TriggerBulk {
					t.Errorf("record = %+v, want rule record for bulk", rec)
				}
				switch rec.LeadID {
				case "lead-3":
					if rec.Success || rec.RuleID != rule.ID {
						t.Errorf("lead-3 record = %+v, want failure for rule", rec)
					}
				case "lead-missing":
					if rec.Success || rec.RuleID != "" {
						t.Errorf("lead-missing record = %+v, want failure without rule", rec)
					}
				default:
					if !rec.Success {
						t.Errorf("%s record = %+v, want success", rec.LeadID, rec)
					}
				}
			}
		})
	}
}

func TestEngine_BulkApplyRulesRecoversPanic(t *testing.T) {
	repo := newMemRepo(rawLead("lead-1", 80), rawLead("lead-2", 80), rawLead("lead-3", 80))

	dispatcher := automation.NewActionDispatcher(repo, nil, nil)
	dispatcher.Register(automation.ActionNotification, automation.ActionHandlerFunc(
		func(_ context.Context, leadID string, _ automation.Action) (*automation.ActionResult, error) {
			if leadID == "lead-2" {
				panic("sink exploded")
			}
			return &automation.ActionResult{ActionType: automation.ActionNotification, Applied: true}, nil
		}))

	e, err := NewEngine(nil, repo, dispatcher, nil)
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}
	log := &recordingLog{}
	e.SetExecutionLogger(log)

	r := qualifyRule()
	r.Type = TypeNotification
	r.Actions = []automation.Action{{Type: automation.ActionNotification, Target: "sales"}}
	if _, err := e.CreateRule(context.Background(), r); err != nil {
		t.Fatalf("CreateRule() failed: %v", err)
	}

	results := e.BulkApplyRules(context.Background(), []string{"lead-1", "lead-2", "lead-3"}, nil)

	if !results[0].Success || !results[2].Success {
		t.Errorf("siblings of the panicking lead failed: %+v", results)
	}
	if results[1].Success || results[1].Error != "panic: sink exploded" {
		t.Errorf("results[1] = %+v, want captured panic", results[1])
	}
}

func TestEngine_ProcessEventContinuesAfterRuleFailure(t *testing.T) {
	repo := newMemRepo(rawLead("lead-1", 85))
	e, log := newTestEngine(t, repo, nil)
	ctx := context.Background()

	broken := qualifyRule()
	broken.Name = "broken scoring"
	broken.Type = TypeScoring
	broken.Priority = 10
	broken.Actions = []automation.Action{{Type: automation.ActionScoring, Value: "lots"}}

	if _, err := e.CreateRule(ctx, broken); err != nil {
		t.Fatalf("CreateRule() failed: %v", err)
	}
	if _, err := e.CreateRule(ctx, qualifyRule()); err != nil {
		t.Fatalf("CreateRule() failed: %v", err)
	}

	res, err := e.ProcessEvent(ctx, "lead-1", EventLeadScored, nil)
	if err != nil {
		t.Fatalf("ProcessEvent() failed: %v", err)
	}
	if res.RulesMatched != 2 || res.ActionsApplied != 1 || res.Success() || len(res.Failures) != 1 {
		t.Errorf("ProcessEvent() = %+v, want 2 matched, 1 applied, 1 failure", res)
	}

	l, _ := repo.GetLead(ctx, "lead-1")
	if l.Status != lead.StatusQualified {
		t.Errorf("status = %q, want lower priority rule still applied", l.Status)
	}

	records := log.all()
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Success || records[0].TriggerEvent != EventLeadScored {
		t.Errorf("first record = %+v, want failed %s", records[0], EventLeadScored)
	}
	if !records[1].Success {
		t.Errorf("second record = %+v, want success", records[1])
	}

	if _, err := e.ProcessEvent(ctx, "missing", EventLeadCreated, nil); !errors.Is(err, automation.ErrNotFound) {
		t.Errorf("ProcessEvent(missing) error = %v, want ErrNotFound", err)
	}
}

func TestNewEngine_Errors(t *testing.T) {
	if _, err := NewEngine(nil, nil, nil, nil); err == nil {
		t.Error("expected error for nil repository")
	}
	if _, err := NewEngine(&Config{BulkConcurrency: 0, MaxConditions: 1, MaxActions: 1}, newMemRepo(), nil, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewEngine(bad config) error = %v, want ErrInvalidConfig", err)
	}

	d := automation.NewActionDispatcher(newMemRepo(), nil, nil)
	d.Register(automation.ActionScoring, nil)
	if _, err := NewEngine(nil, newMemRepo(), d, nil); err == nil {
		t.Error("expected error for incomplete handler table")
	}
}
