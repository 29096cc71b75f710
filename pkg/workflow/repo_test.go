package workflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"leadflow-hq/relay/pkg/automation"
	"leadflow-hq/relay/pkg/execlog"
	"leadflow-hq/relay/pkg/lead"
)

// memRepo is a minimal in-memory Repository.
type memRepo struct {
	mu         sync.Mutex
	leads      map[string]*lead.Lead
	workflows  map[string]*Workflow
	executions map[string]*Execution
	claims     int

	// panicOnCreate panics CreateExecution for the given workflow ids.
	panicOnCreate map[string]bool
	// listErr fails ListWorkflows when set.
	listErr error
}

func newMemRepo(leads ...*lead.Lead) *memRepo {
	r := &memRepo{
		leads:         map[string]*lead.Lead{},
		workflows:     map[string]*Workflow{},
		executions:    map[string]*Execution{},
		panicOnCreate: map[string]bool{},
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
	l, ok := r.leads[id]
	if !ok {
		return nil, automation.NewNotFoundError("lead", id)
	}
	p.Apply(l, time.Now())
	return l.Clone(), nil
}

func (r *memRepo) CreateWorkflow(_ context.Context, wf *Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflows[wf.ID] = wf.Clone()
	return nil
}

func (r *memRepo) GetWorkflow(_ context.Context, id string) (*Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wf, ok := r.workflows[id]
	if !ok {
		return nil, automation.NewNotFoundError("workflow", id)
	}
	return wf.Clone(), nil
}

func (r *memRepo) ListWorkflows(_ context.Context, f WorkflowFilter) ([]*Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*Workflow
	for _, wf := range r.workflows {
		if f.Matches(wf) {
			out = append(out, wf.Clone())
		}
	}
	return out, nil
}

func (r *memRepo) UpdateWorkflow(_ context.Context, wf *Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workflows[wf.ID]; !ok {
		return automation.NewNotFoundError("workflow", wf.ID)
	}
	r.workflows[wf.ID] = wf.Clone()
	return nil
}

func (r *memRepo) DeleteWorkflow(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workflows[id]; !ok {
		return automation.NewNotFoundError("workflow", id)
	}
	delete(r.workflows, id)
	for xid, x := range r.executions {
		if x.WorkflowID == id {
			delete(r.executions, xid)
		}
	}
	return nil
}

func (r *memRepo) CreateExecution(_ context.Context, x *Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.panicOnCreate[x.WorkflowID] {
		panic("storage exploded")
	}
	r.executions[x.ID] = x.Clone()
	return nil
}

func (r *memRepo) GetExecution(_ context.Context, id string) (*Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	x, ok := r.executions[id]
	if !ok {
		return nil, automation.NewNotFoundError("execution", id)
	}
	return x.Clone(), nil
}

func (r *memRepo) UpdateExecution(_ context.Context, x *Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.executions[x.ID]
	if !ok {
		return automation.NewNotFoundError("execution", x.ID)
	}
	c := x.Clone()
	c.StepResults = *stored.StepResults.Clone()
	r.executions[x.ID] = c
	return nil
}

func (r *memRepo) AppendStepResult(_ context.Context, id string, sr StepResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	x, ok := r.executions[id]
	if !ok {
		return automation.NewNotFoundError("execution", id)
	}
	x.StepResults.Append(sr)
	return nil
}

func (r *memRepo) ClaimExecution(_ context.Context, id string, resumeAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	x, ok := r.executions[id]
	if !ok || x.Status != StatusRunning || x.ResumeAt == nil || !x.ResumeAt.Equal(resumeAt) {
		return false, nil
	}
	x.ResumeAt = nil
	r.claims++
	return true, nil
}

func (r *memRepo) ListDueExecutions(_ context.Context, before time.Time, limit int) ([]Wakeup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []Wakeup
	for _, x := range r.executions {
		if x.Status == StatusRunning && x.ResumeAt != nil && !x.ResumeAt.After(before) {
			due = append(due, Wakeup{ExecutionID: x.ID, ResumeAt: *x.ResumeAt})
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ResumeAt.Before(due[j].ResumeAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *memRepo) claimCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.claims
}

// recordingLog keeps every execution record.
type recordingLog struct {
	mu      sync.Mutex
	records []execlog.Record
}

func (l *recordingLog) Log(_ context.Context, rec *execlog.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, *rec)
}

func (l *recordingLog) all() []execlog.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]execlog.Record(nil), l.records...)
}

// recordingSink keeps every published message.
type recordingSink struct {
	mu       sync.Mutex
	messages []automation.Message
}

func (s *recordingSink) Publish(_ context.Context, msg automation.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *recordingSink) all() []automation.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]automation.Message(nil), s.messages...)
}
