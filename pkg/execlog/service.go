package execlog

import (
	"context"
	"log/slog"

	"leadflow-hq/relay/pkg/config"
)

// Service answers reporting queries over the execution log.
type Service struct {
	storage Storage
	config  config.QueryConfig
	logger  *slog.Logger
}

// NewService creates a reporting service over storage. Zero values in cfg
// fall back to the package defaults.
func NewService(storage Storage, cfg config.QueryConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = MaxLimit
	}
	return &Service{
		storage: storage,
		config:  cfg,
		logger:  logger.With("component", "execlog.service"),
	}
}

// GetExecutionStats counts the records matching q. SuccessRate is a
// percentage and is zero when nothing matched. A nil q counts everything.
func (s *Service) GetExecutionStats(ctx context.Context, q *Query) (*Stats, error) {
	filter := Query{}
	if q != nil {
		filter = *q
	}
	filter.Limit, filter.Offset = 0, 0
	if err := ValidateQuery(&filter, s.config.MaxLimit); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	total, err := s.storage.Count(ctx, &filter)
	if err != nil {
		return nil, err
	}

	var successful int64
	switch {
	case filter.Success != nil && *filter.Success:
		successful = total
	case filter.Success != nil:
		successful = 0
	default:
		succeeded := true
		filter.Success = &succeeded
		successful, err = s.storage.Count(ctx, &filter)
		if err != nil {
			return nil, err
		}
	}

	stats := &Stats{
		Total:      total,
		Successful: successful,
		Failed:     total - successful,
	}
	if total > 0 {
		stats.SuccessRate = float64(successful) / float64(total) * 100
	}
	return stats, nil
}

// GetExecutions returns one page of records matching q. HasMore reports
// whether records remain past this page.
func (s *Service) GetExecutions(ctx context.Context, q *Query, page Pagination) (*Page, error) {
	filter := Query{}
	if q != nil {
		filter = *q
	}
	filter.Limit = page.Limit
	filter.Offset = page.Offset
	ApplyQueryDefaults(&filter, s.config.DefaultLimit)

	if err := ValidateQuery(&filter, s.config.MaxLimit); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	items, err := s.storage.Query(ctx, &filter)
	if err != nil {
		return nil, err
	}
	total, err := s.storage.Count(ctx, &filter)
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "executions queried",
		"returned", len(items),
		"total", total,
		"offset", filter.Offset,
	)

	return &Page{
		Items:      items,
		TotalCount: total,
		HasMore:    int64(filter.Offset+len(items)) < total,
	}, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.Timeout)
}
