package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"leadflow-hq/relay/pkg/config"
	"leadflow-hq/relay/pkg/execlog"
	"leadflow-hq/relay/pkg/telemetry/metrics"
)

// Pruner enforces retention on the execution log.
type Pruner struct {
	storage   execlog.Storage
	config    config.RetentionConfig
	logger    *slog.Logger
	metrics   *metrics.ExecLogMetrics
	scheduler *Scheduler
	now       func() time.Time
}

// NewPruner creates a pruner over storage.
func NewPruner(storage execlog.Storage, cfg config.RetentionConfig) *Pruner {
	p := &Pruner{
		storage: storage,
		config:  cfg,
		logger:  slog.Default().With("component", "execlog.retention"),
		now:     time.Now,
	}
	p.scheduler = NewScheduler(p)
	return p
}

// SetMetrics attaches execution log metrics.
func (p *Pruner) SetMetrics(m *metrics.ExecLogMetrics) {
	p.metrics = m
}

// Prune deletes records older than the retention period, then the oldest
// records beyond MaxRecords. Either phase is skipped when its limit is zero.
// Returns the total number of records deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var totalDeleted int64

	if p.config.Days > 0 {
		deleted, err := p.pruneByAge(ctx)
		totalDeleted += deleted
		if err != nil {
			return totalDeleted, fmt.Errorf("prune by age failed: %w", err)
		}
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.pruneByCount(ctx)
		totalDeleted += deleted
		if err != nil {
			return totalDeleted, fmt.Errorf("prune by count failed: %w", err)
		}
	}

	p.metrics.RecordPruned(totalDeleted)

	if totalDeleted > 0 {
		p.logger.Info("execution log pruned",
			"total_deleted", totalDeleted,
			"retention_days", p.config.Days,
			"max_records", p.config.MaxRecords,
		)
	}

	return totalDeleted, nil
}

func (p *Pruner) pruneByAge(ctx context.Context) (int64, error) {
	cutoff := p.now().AddDate(0, 0, -p.config.Days)

	deleted, err := p.storage.Delete(ctx, &execlog.Query{EndTime: &cutoff})
	if err != nil {
		return 0, execlog.NewRetentionError(p.config.Days, err)
	}

	p.logger.Debug("pruned records by age",
		"deleted_count", deleted,
		"cutoff_time", cutoff,
	)
	return deleted, nil
}

// pruneByCount deletes everything up to and including the timestamp of the
// newest record that falls outside the limit.
func (p *Pruner) pruneByCount(ctx context.Context) (int64, error) {
	count, err := p.storage.Count(ctx, &execlog.Query{})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	if count <= p.config.MaxRecords {
		return 0, nil
	}

	toDelete := count - p.config.MaxRecords
	oldest, err := p.storage.Query(ctx, &execlog.Query{
		SortBy:    "executed_at",
		SortOrder: "asc",
		Limit:     int(toDelete),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to query records: %w", err)
	}
	if len(oldest) == 0 {
		return 0, nil
	}

	cutoff := oldest[len(oldest)-1].ExecutedAt
	deleted, err := p.storage.Delete(ctx, &execlog.Query{EndTime: &cutoff})
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}

	p.logger.Debug("pruned records by count",
		"deleted_count", deleted,
		"max_records", p.config.MaxRecords,
	)
	return deleted, nil
}

// Start starts the pruning schedule.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops the pruning schedule and waits for a running prune.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled prune, or nil.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
