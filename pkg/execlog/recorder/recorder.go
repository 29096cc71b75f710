package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"leadflow-hq/relay/pkg/config"
	"leadflow-hq/relay/pkg/execlog"
	"leadflow-hq/relay/pkg/telemetry/metrics"
)

// Recorder is the asynchronous execlog.Logger. Records are queued on a
// buffered channel and written by a single worker, so Log never blocks on
// storage.
type Recorder struct {
	storage    execlog.Storage
	config     config.RecorderConfig
	recordChan chan *execlog.Record
	wg         sync.WaitGroup
	done       chan struct{}
	closeOnce  sync.Once
	// mu orders enqueues against Close so no record lands after the drain.
	mu         sync.RWMutex
	closed     bool
	logger     *slog.Logger
	metrics    *metrics.ExecLogMetrics
}

var _ execlog.Logger = (*Recorder)(nil)

// NewRecorder creates a recorder writing to storage and starts its worker.
func NewRecorder(storage execlog.Storage, cfg config.RecorderConfig) *Recorder {
	if cfg.AsyncBuffer <= 0 {
		cfg.AsyncBuffer = config.DefaultRecorderAsyncBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = config.DefaultRecorderWriteTimeout
	}

	r := &Recorder{
		storage:    storage,
		config:     cfg,
		recordChan: make(chan *execlog.Record, cfg.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     slog.Default().With("component", "execlog.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("execution recorder initialized",
		"async_buffer", cfg.AsyncBuffer,
		"write_timeout", cfg.WriteTimeout,
	)

	return r
}

// SetMetrics attaches execution log metrics. Call before the first Log.
func (r *Recorder) SetMetrics(m *metrics.ExecLogMetrics) {
	r.metrics = m
}

// Log stamps the record with an id and time when missing and queues it.
// A full buffer or a closed recorder drops the record.
func (r *Recorder) Log(ctx context.Context, record *execlog.Record) {
	if record == nil {
		return
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.ExecutedAt.IsZero() {
		record.ExecutedAt = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.logger.WarnContext(ctx, "recorder closed, dropping record",
			"record_id", record.ID,
			"kind", record.Kind,
		)
		r.metrics.RecordDropped(string(record.Kind))
		return
	}

	select {
	case r.recordChan <- record:
		r.metrics.SetQueueDepth(len(r.recordChan))
	default:
		r.logger.ErrorContext(ctx, "execution record buffer full, dropping record",
			"record_id", record.ID,
			"kind", record.Kind,
			"channel_capacity", r.config.AsyncBuffer,
			"error", execlog.NewRecorderError(record.ID, context.DeadlineExceeded),
		)
		r.metrics.RecordDropped(string(record.Kind))
	}
}

// Close stops accepting records, drains the buffer and waits for the
// worker. Calling Close more than once is safe.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.logger.Info("shutting down execution recorder")
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.done)
		r.wg.Wait()
		r.logger.Info("execution recorder shut down complete")
	})
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeRecord(record)

		case <-r.done:
			r.logger.Debug("draining execution records before shutdown",
				"pending_count", len(r.recordChan),
			)
			for {
				select {
				case record := <-r.recordChan:
					r.writeRecord(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) writeRecord(record *execlog.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := r.storage.Store(ctx, record)
	r.metrics.RecordWrite(string(record.Kind), err)
	r.metrics.SetQueueDepth(len(r.recordChan))

	if err != nil {
		r.logger.Error("failed to store execution record",
			"record_id", record.ID,
			"kind", record.Kind,
			"error", err,
		)
		return
	}

	duration := time.Since(start)
	r.logger.Debug("execution recorded",
		"record_id", record.ID,
		"kind", record.Kind,
		"success", record.Success,
		"duration_ms", duration.Milliseconds(),
	)

	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow execution record write",
			"record_id", record.ID,
			"duration_ms", duration.Milliseconds(),
			"threshold_ms", (r.config.WriteTimeout / 2).Milliseconds(),
		)
	}
}
