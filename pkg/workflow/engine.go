package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"leadflow-hq/relay/pkg/automation"
	"leadflow-hq/relay/pkg/execlog"
	"leadflow-hq/relay/pkg/telemetry/logging"
	"leadflow-hq/relay/pkg/telemetry/metrics"
)

// Engine manages workflows and runs their executions.
type Engine struct {
	config     *Config
	repo       Repository
	evaluator  *automation.ConditionEvaluator
	dispatcher *automation.ActionDispatcher
	sink       automation.Sink
	execLog    execlog.Logger
	metrics    *metrics.WorkflowMetrics
	scheduler  *Scheduler
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.RWMutex
	handlers map[StepType]StepHandler

	waitMu  sync.Mutex
	waiters map[string][]chan struct{}
}

// NewEngine creates a workflow engine over repo. A nil config uses
// DefaultConfig and a nil sink publishes to the log.
func NewEngine(config *Config, repo Repository, sink automation.Sink, logger *slog.Logger) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if repo == nil {
		return nil, fmt.Errorf("workflow repository cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = automation.NewLogSink(logger)
	}

	e := &Engine{
		config:     config,
		repo:       repo,
		evaluator:  automation.NewConditionEvaluator(logger),
		dispatcher: automation.NewActionDispatcher(repo, sink, logger),
		sink:       sink,
		execLog:    execlog.NopLogger{},
		logger:     logger.With("component", "workflow.engine"),
		now:        func() time.Time { return time.Now().UTC() },
		waiters:    make(map[string][]chan struct{}),
	}
	e.handlers = e.defaultHandlers()
	if err := e.CheckHandlers(); err != nil {
		return nil, err
	}
	e.scheduler = newScheduler(repo, config, e.resume, logger)
	return e, nil
}

// SetExecutionLogger sets where execution outcomes are recorded.
func (e *Engine) SetExecutionLogger(l execlog.Logger) {
	if l == nil {
		l = execlog.NopLogger{}
	}
	e.execLog = l
}

// SetMetrics attaches workflow metrics.
func (e *Engine) SetMetrics(m *metrics.WorkflowMetrics) {
	e.metrics = m
	e.scheduler.metrics = m
}

// Register replaces the handler for t.
func (e *Engine) Register(t StepType, h StepHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[t] = h
}

// CheckHandlers returns an error naming every declared StepType that has
// no handler.
func (e *Engine) CheckHandlers() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var missing []string
	for _, t := range StepTypes() {
		if e.handlers[t] == nil {
			missing = append(missing, string(t))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("workflow engine: no step handler for %v", missing)
	}
	return nil
}

// Scheduler returns the delay scheduler.
func (e *Engine) Scheduler() *Scheduler {
	return e.scheduler
}

// Start starts the delay scheduler. Executions already due in the store
// are picked up immediately.
func (e *Engine) Start(ctx context.Context) error {
	return e.scheduler.Start(ctx)
}

// Stop stops the delay scheduler and waits for resumed executions.
func (e *Engine) Stop() {
	e.scheduler.Stop()
}

// CreateWorkflow validates and stores a copy of wf. Missing workflow and
// step ids are generated.
func (e *Engine) CreateWorkflow(ctx context.Context, wf *Workflow) (*Workflow, error) {
	if wf == nil {
		return nil, automation.NewValidationError("workflow", "", "workflow is required")
	}

	w := wf.Clone()
	if err := validateWorkflow(w, e.config); err != nil {
		return nil, err
	}

	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	now := e.now()
	w.CreatedAt = now
	w.UpdatedAt = now

	if err := e.repo.CreateWorkflow(ctx, w); err != nil {
		return nil, err
	}

	e.logger.InfoContext(logging.WithWorkflowID(ctx, w.ID), "workflow created",
		"name", w.Name,
		"trigger", w.Trigger,
		"steps", len(w.Steps),
	)
	return w.Clone(), nil
}

// GetWorkflowByID returns one workflow with its steps in order.
func (e *Engine) GetWorkflowByID(ctx context.Context, id string) (*Workflow, error) {
	w, err := e.repo.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	SortSteps(w.Steps)
	return w, nil
}

// ListWorkflows returns the workflows passing filter, highest priority
// first with ties broken by name.
func (e *Engine) ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*Workflow, error) {
	workflows, err := e.repo.ListWorkflows(ctx, filter)
	if err != nil {
		return nil, err
	}
	SortWorkflows(workflows)
	return workflows, nil
}

// UpdateWorkflow applies patch to the stored workflow and re-validates it.
func (e *Engine) UpdateWorkflow(ctx context.Context, id string, patch WorkflowPatch) (*Workflow, error) {
	existing, err := e.repo.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}

	w := existing.Clone()
	patch.apply(w)
	w.ID = existing.ID
	w.CreatedAt = existing.CreatedAt
	if err := validateWorkflow(w, e.config); err != nil {
		return nil, err
	}
	w.UpdatedAt = e.now()

	if err := e.repo.UpdateWorkflow(ctx, w); err != nil {
		return nil, err
	}

	e.logger.InfoContext(logging.WithWorkflowID(ctx, id), "workflow updated")
	return w.Clone(), nil
}

// DeleteWorkflow removes a workflow with its steps and executions. The
// actor is only logged.
func (e *Engine) DeleteWorkflow(ctx context.Context, id, actorID string) error {
	if err := e.repo.DeleteWorkflow(ctx, id); err != nil {
		return err
	}

	ctx = logging.WithActor(logging.WithWorkflowID(ctx, id), actorID)
	e.logger.InfoContext(ctx, "workflow deleted")
	return nil
}

// GetExecution returns the stored state of an execution.
func (e *Engine) GetExecution(ctx context.Context, id string) (*Execution, error) {
	return e.repo.GetExecution(ctx, id)
}

// ExecuteWorkflow starts an execution and runs it until it completes,
// fails or suspends on a delay step.
func (e *Engine) ExecuteWorkflow(ctx context.Context, workflowID string, ectx ExecutionContext) (*ExecutionResult, error) {
	wf, err := e.GetWorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	exec := &Execution{
		ID:           uuid.New().String(),
		WorkflowID:   wf.ID,
		LeadID:       ectx.LeadID,
		UserID:       ectx.UserID,
		TriggerEvent: ectx.Event,
		Status:       StatusRunning,
		TriggerData:  ectx.TriggerData,
		StartedAt:    e.now(),
	}
	if err := e.repo.CreateExecution(ctx, exec); err != nil {
		return nil, automation.NewExecutionError("create execution", exec.ID, err)
	}

	ctx = executionContext(ctx, exec)
	e.logger.InfoContext(ctx, "workflow execution started",
		"workflow_name", wf.Name,
		"steps", len(wf.Steps),
	)
	return e.run(ctx, wf, exec), nil
}

func executionContext(ctx context.Context, exec *Execution) context.Context {
	ctx = logging.WithExecutionID(logging.WithWorkflowID(ctx, exec.WorkflowID), exec.ID)
	if exec.LeadID != "" {
		ctx = logging.WithLeadID(ctx, exec.LeadID)
	}
	if exec.TriggerEvent != "" {
		ctx = logging.WithTriggerEvent(ctx, exec.TriggerEvent)
	}
	return ctx
}

// run executes steps from exec.NextStep. The deferred block finalizes the
// execution on every exit except a suspension, including a panic outside
// the step handlers.
func (e *Engine) run(ctx context.Context, wf *Workflow, exec *Execution) (result *ExecutionResult) {
	start := time.Now()
	status := StatusCompleted
	var errMsg, failedStep string
	suspended := false

	defer func() {
		if p := recover(); p != nil {
			e.logger.ErrorContext(ctx, "workflow execution panicked", "panic", p)
			status, errMsg = StatusFailed, fmt.Sprintf("panic: %v", p)
			suspended = false
		}
		if !suspended {
			e.finalize(ctx, exec, status, errMsg, failedStep, time.Since(start))
		}
		result = exec.result()
	}()

	for i := exec.NextStep; i < len(wf.Steps); i++ {
		step := wf.Steps[i]
		failedStep = step.ID

		sr, delay := e.runStep(ctx, exec, step)
		idx := exec.StepResults.Append(sr)
		sr.Index = idx
		if err := e.repo.AppendStepResult(ctx, exec.ID, sr); err != nil {
			e.logger.ErrorContext(ctx, "failed to persist step result",
				"step_id", step.ID,
				"error", err,
			)
		}

		if !sr.Success {
			status, errMsg = StatusFailed, sr.Error
			return
		}
		if delay > 0 {
			if err := e.suspend(ctx, exec, i+1, delay); err != nil {
				status, errMsg = StatusFailed, fmt.Sprintf("suspend execution: %v", err)
				return
			}
			suspended = true
			return
		}
	}

	failedStep = ""
	return
}

// runStep runs a single step. A handler panic becomes the step's error.
func (e *Engine) runStep(ctx context.Context, exec *Execution, step Step) (sr StepResult, delay time.Duration) {
	sr = StepResult{StepID: step.ID, StepType: step.Type, StartedAt: e.now()}
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			e.logger.ErrorContext(ctx, "step handler panicked",
				"step_id", step.ID,
				"step_type", step.Type,
				"panic", p,
			)
			sr.Success, sr.Result, sr.Error = false, nil, fmt.Sprintf("panic: %v", p)
			delay = 0
		}
		sr.CompletedAt = e.now()
		e.metrics.RecordStep(string(step.Type), sr.Success, time.Since(start))
	}()

	e.mu.RLock()
	h := e.handlers[step.Type]
	e.mu.RUnlock()
	if h == nil {
		sr.Error = automation.NewUnsupportedOperationError("step type", string(step.Type)).Error()
		return sr, 0
	}

	out, err := h.Handle(ctx, &StepRun{
		ExecutionID: exec.ID,
		WorkflowID:  exec.WorkflowID,
		LeadID:      exec.LeadID,
		UserID:      exec.UserID,
		Step:        step,
		TriggerData: exec.TriggerData,
	})
	if err != nil {
		e.logger.WarnContext(ctx, "workflow step failed",
			"step_id", step.ID,
			"step_type", step.Type,
			"error", err,
		)
		sr.Error = err.Error()
		return sr, 0
	}

	sr.Success = true
	if out != nil {
		sr.Result = out.Result
		delay = out.Delay
	}
	e.logger.DebugContext(ctx, "workflow step completed",
		"step_id", step.ID,
		"step_type", step.Type,
	)
	return sr, delay
}

func (e *Engine) suspend(ctx context.Context, exec *Execution, next int, delay time.Duration) error {
	resumeAt := e.now().Add(delay).Truncate(time.Millisecond)
	exec.NextStep = next
	exec.ResumeAt = &resumeAt

	if err := e.repo.UpdateExecution(ctx, exec); err != nil {
		exec.ResumeAt = nil
		return err
	}
	e.scheduler.Schedule(exec.ID, resumeAt)

	e.logger.InfoContext(ctx, "workflow execution suspended",
		"next_step", next,
		"resume_at", resumeAt,
	)
	return nil
}

// finalize moves a running execution to a terminal status, records the
// outcome and wakes any Await callers. Terminal executions are left alone.
func (e *Engine) finalize(ctx context.Context, exec *Execution, status Status, errMsg, failedStep string, elapsed time.Duration) {
	if exec.Status.IsTerminal() {
		return
	}

	now := e.now()
	exec.Status = status
	exec.CompletedAt = &now
	exec.ErrorMessage = errMsg
	exec.ResumeAt = nil

	if err := e.repo.UpdateExecution(ctx, exec); err != nil {
		e.logger.ErrorContext(ctx, "failed to persist execution status",
			"status", status,
			"error", err,
		)
	}

	rec := &execlog.Record{
		Kind:         execlog.KindWorkflow,
		LeadID:       exec.LeadID,
		WorkflowID:   exec.WorkflowID,
		ExecutionID:  exec.ID,
		TriggerEvent: exec.TriggerEvent,
		Success:      status == StatusCompleted,
		ErrorMessage: errMsg,
		ExecutedAt:   now,
		Duration:     now.Sub(exec.StartedAt),
	}
	if status == StatusFailed {
		rec.StepID = failedStep
	}
	e.execLog.Log(ctx, rec)
	e.metrics.RecordExecution(exec.WorkflowID, string(status), elapsed)

	if status == StatusFailed {
		e.logger.WarnContext(ctx, "workflow execution failed",
			"step_id", failedStep,
			"error", errMsg,
		)
	} else {
		e.logger.InfoContext(ctx, "workflow execution completed",
			"steps", exec.StepResults.Len(),
		)
	}

	e.notify(exec.ID)
}

// resume continues a claimed execution at its next step.
func (e *Engine) resume(ctx context.Context, executionID, source string) {
	exec, err := e.repo.GetExecution(ctx, executionID)
	if err != nil {
		e.logger.WarnContext(ctx, "cannot resume execution",
			"execution_id", executionID,
			"error", err,
		)
		return
	}
	if exec.Status != StatusRunning {
		return
	}

	ctx = executionContext(ctx, exec)
	e.metrics.RecordResume(source)
	e.logger.InfoContext(ctx, "workflow execution resumed",
		"next_step", exec.NextStep,
		"source", source,
	)

	wf, err := e.GetWorkflowByID(ctx, exec.WorkflowID)
	if err != nil {
		e.finalize(ctx, exec, StatusFailed, fmt.Sprintf("load workflow: %v", err), "", 0)
		return
	}
	e.run(ctx, wf, exec)
}

// Await blocks until the execution is completed or failed, or ctx ends.
func (e *Engine) Await(ctx context.Context, executionID string) (*ExecutionResult, error) {
	for {
		ch := e.subscribe(executionID)

		exec, err := e.repo.GetExecution(ctx, executionID)
		if err != nil {
			e.unsubscribe(executionID, ch)
			return nil, err
		}
		if exec.Status.IsTerminal() {
			e.unsubscribe(executionID, ch)
			return exec.result(), nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			e.unsubscribe(executionID, ch)
			return nil, ctx.Err()
		}
	}
}

func (e *Engine) subscribe(id string) chan struct{} {
	ch := make(chan struct{})
	e.waitMu.Lock()
	e.waiters[id] = append(e.waiters[id], ch)
	e.waitMu.Unlock()
	return ch
}

func (e *Engine) unsubscribe(id string, ch chan struct{}) {
	e.waitMu.Lock()
	defer e.waitMu.Unlock()

	list := e.waiters[id]
	for i, c := range list {
		if c == ch {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(e.waiters, id)
	} else {
		e.waiters[id] = list
	}
}

func (e *Engine) notify(id string) {
	e.waitMu.Lock()
	list := e.waiters[id]
	delete(e.waiters, id)
	e.waitMu.Unlock()

	for _, ch := range list {
		close(ch)
	}
}

// TriggerWorkflows executes every active workflow whose trigger is event,
// highest priority first. Each workflow runs independently; an error or
// panic becomes that workflow's failed result. The error is only for a
// failure to select the workflows, in which case none ran.
func (e *Engine) TriggerWorkflows(ctx context.Context, event string, ectx ExecutionContext) ([]TriggerResult, error) {
	active := true
	workflows, err := e.ListWorkflows(ctx, WorkflowFilter{Trigger: event, Active: &active})
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to list workflows for trigger",
			"trigger_event", event,
			"error", err,
		)
		return nil, fmt.Errorf("select workflows for %s: %w", event, err)
	}

	ectx.Event = event
	results := make([]TriggerResult, 0, len(workflows))
	for _, wf := range workflows {
		results = append(results, e.trigger(ctx, wf, ectx))
	}
	return results, nil
}

func (e *Engine) trigger(ctx context.Context, wf *Workflow, ectx ExecutionContext) (tr TriggerResult) {
	tr = TriggerResult{WorkflowID: wf.ID, WorkflowName: wf.Name}

	defer func() {
		if p := recover(); p != nil {
			e.logger.ErrorContext(ctx, "triggered workflow panicked",
				"workflow_id", wf.ID,
				"panic", p,
			)
			tr.Status, tr.Success, tr.Error = StatusFailed, false, fmt.Sprintf("panic: %v", p)
		}
	}()

	res, err := e.ExecuteWorkflow(ctx, wf.ID, ectx)
	if err != nil {
		tr.Status, tr.Error = StatusFailed, err.Error()
		return tr
	}

	tr.ExecutionID = res.ExecutionID
	tr.Status = res.Status
	tr.Success = res.Success
	tr.Error = res.ErrorMessage
	return tr
}

func (x *Execution) result() *ExecutionResult {
	r := &ExecutionResult{
		ExecutionID:  x.ID,
		WorkflowID:   x.WorkflowID,
		Status:       x.Status,
		Success:      x.Status == StatusCompleted,
		StepResults:  x.StepResults.Results(),
		ErrorMessage: x.ErrorMessage,
	}
	if x.ResumeAt != nil {
		t := *x.ResumeAt
		r.ResumeAt = &t
	}
	return r
}
