package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"leadflow-hq/relay/pkg/automation"
	"leadflow-hq/relay/pkg/lead"
	"leadflow-hq/relay/pkg/rules"
	"leadflow-hq/relay/pkg/workflow"
)

// MemoryRepository keeps everything in maps. Stored values are copied on
// the way in and out.
type MemoryRepository struct {
	mu         sync.RWMutex
	leads      map[string]*lead.Lead
	rules      map[string]*rules.Rule
	workflows  map[string]*workflow.Workflow
	executions map[string]*workflow.Execution
	now        func() time.Time
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		leads:      make(map[string]*lead.Lead),
		rules:      make(map[string]*rules.Rule),
		workflows:  make(map[string]*workflow.Workflow),
		executions: make(map[string]*workflow.Execution),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryRepository) SaveLead(_ context.Context, l *lead.Lead) error {
	if l == nil || l.ID == "" {
		return automation.NewValidationError("lead", "", "id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := l.Clone()
	now := m.now()
	if existing, ok := m.leads[l.ID]; ok {
		c.CreatedAt = existing.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	m.leads[c.ID] = c
	*l = *c.Clone()
	return nil
}

func (m *MemoryRepository) GetLead(_ context.Context, id string) (*lead.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.leads[id]
	if !ok {
		return nil, automation.NewNotFoundError("lead", id)
	}
	return l.Clone(), nil
}

func (m *MemoryRepository) UpdateLead(_ context.Context, id string, patch lead.Patch) (*lead.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leads[id]
	if !ok {
		return nil, automation.NewNotFoundError("lead", id)
	}
	patch.Apply(l, m.now())
	return l.Clone(), nil
}

func (m *MemoryRepository) ListLeads(_ context.Context, filter LeadFilter) ([]*lead.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*lead.Lead, 0, len(m.leads))
	for _, l := range m.leads {
		if filter.Matches(l) {
			out = append(out, l.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (m *MemoryRepository) DeleteLead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.leads[id]; !ok {
		return automation.NewNotFoundError("lead", id)
	}
	delete(m.leads, id)
	return nil
}

func (m *MemoryRepository) CreateRule(_ context.Context, r *rules.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rules[r.ID]; ok {
		return alreadyExists("rule", r.ID)
	}
	m.rules[r.ID] = r.Clone()
	return nil
}

func (m *MemoryRepository) GetRule(_ context.Context, id string) (*rules.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rules[id]
	if !ok {
		return nil, automation.NewNotFoundError("rule", id)
	}
	return r.Clone(), nil
}

func (m *MemoryRepository) ListRules(_ context.Context, filter rules.RuleFilter) ([]*rules.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*rules.Rule, 0, len(m.rules))
	for _, r := range m.rules {
		if filter.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) UpdateRule(_ context.Context, r *rules.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rules[r.ID]; !ok {
		return automation.NewNotFoundError("rule", r.ID)
	}
	m.rules[r.ID] = r.Clone()
	return nil
}

func (m *MemoryRepository) DeleteRule(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rules[id]; !ok {
		return automation.NewNotFoundError("rule", id)
	}
	delete(m.rules, id)
	return nil
}

func (m *MemoryRepository) CreateWorkflow(_ context.Context, wf *workflow.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.workflows[wf.ID]; ok {
		return alreadyExists("workflow", wf.ID)
	}
	c := wf.Clone()
	workflow.SortSteps(c.Steps)
	m.workflows[wf.ID] = c
	return nil
}

func (m *MemoryRepository) GetWorkflow(_ context.Context, id string) (*workflow.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wf, ok := m.workflows[id]
	if !ok {
		return nil, automation.NewNotFoundError("workflow", id)
	}
	return wf.Clone(), nil
}

func (m *MemoryRepository) ListWorkflows(_ context.Context, filter workflow.WorkflowFilter) ([]*workflow.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*workflow.Workflow, 0, len(m.workflows))
	for _, wf := range m.workflows {
		if filter.Matches(wf) {
			out = append(out, wf.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) UpdateWorkflow(_ context.Context, wf *workflow.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.workflows[wf.ID]; !ok {
		return automation.NewNotFoundError("workflow", wf.ID)
	}
	c := wf.Clone()
	workflow.SortSteps(c.Steps)
	m.workflows[wf.ID] = c
	return nil
}

func (m *MemoryRepository) DeleteWorkflow(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.workflows[id]; !ok {
		return automation.NewNotFoundError("workflow", id)
	}
	delete(m.workflows, id)
	for xid, x := range m.executions {
		if x.WorkflowID == id {
			delete(m.executions, xid)
		}
	}
	return nil
}

func (m *MemoryRepository) CreateExecution(_ context.Context, x *workflow.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.executions[x.ID]; ok {
		return alreadyExists("execution", x.ID)
	}
	if _, ok := m.workflows[x.WorkflowID]; !ok {
		return automation.NewNotFoundError("workflow", x.WorkflowID)
	}
	m.executions[x.ID] = x.Clone()
	return nil
}

func (m *MemoryRepository) GetExecution(_ context.Context, id string) (*workflow.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	x, ok := m.executions[id]
	if !ok {
		return nil, automation.NewNotFoundError("execution", id)
	}
	return x.Clone(), nil
}

func (m *MemoryRepository) UpdateExecution(_ context.Context, x *workflow.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.executions[x.ID]
	if !ok {
		return automation.NewNotFoundError("execution", x.ID)
	}
	stored.Status = x.Status
	stored.ErrorMessage = x.ErrorMessage
	stored.NextStep = x.NextStep
	stored.CompletedAt = copyTime(x.CompletedAt)
	stored.ResumeAt = copyTime(x.ResumeAt)
	return nil
}

func (m *MemoryRepository) AppendStepResult(_ context.Context, executionID string, result workflow.StepResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	x, ok := m.executions[executionID]
	if !ok {
		return automation.NewNotFoundError("execution", executionID)
	}
	x.StepResults.Append(result)
	return nil
}

func (m *MemoryRepository) ClaimExecution(_ context.Context, id string, resumeAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	x, ok := m.executions[id]
	if !ok || x.Status != workflow.StatusRunning || x.ResumeAt == nil || !x.ResumeAt.Equal(resumeAt) {
		return false, nil
	}
	x.ResumeAt = nil
	return true, nil
}

func (m *MemoryRepository) ListDueExecutions(_ context.Context, before time.Time, limit int) ([]workflow.Wakeup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []workflow.Wakeup
	for _, x := range m.executions {
		if x.Status == workflow.StatusRunning && x.ResumeAt != nil && !x.ResumeAt.After(before) {
			due = append(due, workflow.Wakeup{ExecutionID: x.ID, ResumeAt: *x.ResumeAt})
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].ResumeAt.Equal(due[j].ResumeAt) {
			return due[i].ResumeAt.Before(due[j].ResumeAt)
		}
		return due[i].ExecutionID < due[j].ExecutionID
	})
	return page(due, limit, 0), nil
}

func (m *MemoryRepository) Ping(context.Context) error {
	return nil
}

func (m *MemoryRepository) Close() error {
	return nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
