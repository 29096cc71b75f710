package workflow

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"leadflow-hq/relay/pkg/telemetry/metrics"
)

// Resume sources reported to metrics and logs.
const (
	SourceTimer = "timer"
	SourceSweep = "sweep"
)

type resumeFunc func(ctx context.Context, executionID, source string)

type wakeupEntry struct {
	Wakeup
	source string
}

type wakeupHeap []wakeupEntry

func (h wakeupHeap) Len() int           { return len(h) }
func (h wakeupHeap) Less(i, j int) bool { return h[i].ResumeAt.Before(h[j].ResumeAt) }
func (h wakeupHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *wakeupHeap) Push(x any) { *h = append(*h, x.(wakeupEntry)) }

func (h *wakeupHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Scheduler resumes suspended executions when their delay elapses. Pending
// wakeups sit in a min-heap serviced by one timer goroutine. A cron sweep
// re-arms due executions found in the store, and every resume is preceded
// by a claim so the same wakeup never runs twice.
type Scheduler struct {
	repo    Repository
	config  *Config
	resume  resumeFunc
	metrics *metrics.WorkflowMetrics
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	queue wakeupHeap
	wake  chan struct{}

	sem     chan struct{}
	cron    *cron.Cron
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	stopped chan struct{}
	wg      sync.WaitGroup
}

func newScheduler(repo Repository, config *Config, resume resumeFunc, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		repo:   repo,
		config: config,
		resume: resume,
		logger: logger.With("component", "workflow.scheduler"),
		now:    func() time.Time { return time.Now().UTC() },
		wake:   make(chan struct{}, 1),
		sem:    make(chan struct{}, config.MaxConcurrentResumes),
	}
}

// Schedule arms a wakeup for an execution. Duplicate wakeups are harmless.
func (s *Scheduler) Schedule(executionID string, resumeAt time.Time) {
	s.push(wakeupEntry{Wakeup: Wakeup{ExecutionID: executionID, ResumeAt: resumeAt}, source: SourceTimer})
}

func (s *Scheduler) push(e wakeupEntry) {
	s.mu.Lock()
	heap.Push(&s.queue, e)
	s.metrics.SetSuspended(s.queue.Len())
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of armed wakeups.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Start runs an initial sweep, starts the timer goroutine and registers the
// sweep job. The scheduler stops when ctx ends.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	runCtx := context.WithoutCancel(ctx)
	s.cron = nil
	if schedule := s.config.SweepSchedule; schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(schedule, func() { s.runSweep(runCtx) }); err != nil {
			return fmt.Errorf("failed to schedule sweep: %w", err)
		}
		s.cron = c
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})
	s.running = true

	go s.loop(loopCtx, runCtx)
	if s.cron != nil {
		s.cron.Start()
	}
	go s.runSweep(runCtx)

	s.logger.Info("delay scheduler started",
		"sweep_schedule", s.config.SweepSchedule,
		"max_concurrent_resumes", s.config.MaxConcurrentResumes,
	)
	return nil
}

// Stop stops the timer goroutine and the sweep, then waits for resumed
// executions to finish. Wakeups still in the heap are kept for the next
// Start; the store remains the source of truth either way.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done, stopped, c := s.cancel, s.done, s.stopped, s.cron
	s.mu.Unlock()

	cancel()
	<-done
	if c != nil {
		<-c.Stop().Done()
	}
	close(stopped)
	s.wg.Wait()

	s.logger.Info("delay scheduler stopped")
}

// IsRunning reports whether the scheduler is started.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Sweep arms a wakeup for every due execution in the store and returns how
// many it found.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	due, err := s.repo.ListDueExecutions(ctx, s.now(), s.config.SweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list due executions: %w", err)
	}
	for _, w := range due {
		s.push(wakeupEntry{Wakeup: w, source: SourceSweep})
	}
	return len(due), nil
}

func (s *Scheduler) runSweep(ctx context.Context) {
	n, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("delay sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Debug("delay sweep armed executions", "count", n)
	}
}

func (s *Scheduler) loop(ctx, runCtx context.Context) {
	defer close(s.done)

	for {
		due, wait := s.popDue()
		for _, e := range due {
			s.dispatch(runCtx, e)
		}

		var timer *time.Timer
		var fire <-chan time.Time
		if wait > 0 {
			timer = time.NewTimer(wait)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.wake:
		case <-fire:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// popDue removes every due wakeup and returns the wait until the next one,
// or zero when the heap is empty.
func (s *Scheduler) popDue() ([]wakeupEntry, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var due []wakeupEntry
	for s.queue.Len() > 0 && !s.queue[0].ResumeAt.After(now) {
		due = append(due, heap.Pop(&s.queue).(wakeupEntry))
	}
	s.metrics.SetSuspended(s.queue.Len())

	if s.queue.Len() == 0 {
		return due, 0
	}
	return due, s.queue[0].ResumeAt.Sub(now)
}

// dispatch claims and resumes one wakeup on its own goroutine. The claim
// happens only after a resume slot is free, so a wakeup abandoned by Stop
// stays claimable in the store.
func (s *Scheduler) dispatch(ctx context.Context, e wakeupEntry) {
	stopped := s.stopped
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case s.sem <- struct{}{}:
		case <-stopped:
			return
		}
		defer func() { <-s.sem }()

		claimed, err := s.repo.ClaimExecution(ctx, e.ExecutionID, e.ResumeAt)
		if err != nil {
			s.logger.Error("failed to claim execution",
				"execution_id", e.ExecutionID,
				"error", err,
			)
			return
		}
		if !claimed {
			s.logger.Debug("execution already claimed",
				"execution_id", e.ExecutionID,
				"source", e.source,
			)
			return
		}

		s.resume(ctx, e.ExecutionID, e.source)
	}()
}
