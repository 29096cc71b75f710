package store

import (
	"context"
	"errors"
	"fmt"

	"leadflow-hq/relay/pkg/config"
	"leadflow-hq/relay/pkg/lead"
	"leadflow-hq/relay/pkg/rules"
	"leadflow-hq/relay/pkg/workflow"
)

// ErrAlreadyExists is returned when creating an entity whose id is taken.
var ErrAlreadyExists = errors.New("already exists")

// Repository holds leads, rules, workflows and workflow executions. It
// satisfies both rules.Repository and workflow.Repository.
type Repository interface {
	rules.Repository
	workflow.Repository

	// SaveLead inserts or replaces a lead. CreatedAt is kept for an
	// existing lead and set for a new one; UpdatedAt is always set.
	SaveLead(ctx context.Context, l *lead.Lead) error
	ListLeads(ctx context.Context, filter LeadFilter) ([]*lead.Lead, error)
	DeleteLead(ctx context.Context, id string) error

	Ping(ctx context.Context) error
	Close() error
}

// LeadFilter narrows ListLeads. Zero values match everything. Results are
// ordered by creation time, then id.
type LeadFilter struct {
	Status         string
	AssignedToID   string
	AssignedTeamID string
	CampaignID     string
	Limit          int
	Offset         int
}

// Matches reports whether l passes the filter, ignoring paging.
func (f LeadFilter) Matches(l *lead.Lead) bool {
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.AssignedToID != "" && l.AssignedToID != f.AssignedToID {
		return false
	}
	if f.AssignedTeamID != "" && l.AssignedTeamID != f.AssignedTeamID {
		return false
	}
	if f.CampaignID != "" && l.CampaignID != f.CampaignID {
		return false
	}
	return true
}

// New opens the repository selected by cfg.Backend.
func New(cfg config.StorageConfig) (Repository, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryRepository(), nil
	case "sqlite", "":
		return NewSQLiteRepository(cfg.SQLite)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// StorageError wraps a failure of the underlying database.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

func newStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}

func alreadyExists(entity, id string) error {
	return fmt.Errorf("%s %q: %w", entity, id, ErrAlreadyExists)
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
