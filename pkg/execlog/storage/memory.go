package storage

import (
	"context"
	"sort"
	"sync"

	"leadflow-hq/relay/pkg/execlog"
)

// MemoryStorage implements execlog.Storage with an in-memory map. Records
// are lost on restart.
type MemoryStorage struct {
	records map[string]*execlog.Record
	mu      sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*execlog.Record),
	}
}

// Store persists a copy of record.
func (s *MemoryStorage) Store(ctx context.Context, record *execlog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recordCopy := *record
	s.records[record.ID] = &recordCopy

	return nil
}

// Query returns copies of the matching records, sorted and paginated.
func (s *MemoryStorage) Query(ctx context.Context, q *execlog.Query) ([]*execlog.Record, error) {
	s.mu.RLock()
	results := []*execlog.Record{}
	for _, record := range s.records {
		if matchesQuery(record, q) {
			recordCopy := *record
			results = append(results, &recordCopy)
		}
	}
	s.mu.RUnlock()

	sortRecords(results, q.SortBy, q.SortOrder)

	start := q.Offset
	if start > len(results) {
		return []*execlog.Record{}, nil
	}
	end := len(results)
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}

	return results[start:end], nil
}

// Count returns the number of matching records.
func (s *MemoryStorage) Count(ctx context.Context, q *execlog.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if matchesQuery(record, q) {
			count++
		}
	}

	return count, nil
}

// Delete removes the matching records.
func (s *MemoryStorage) Delete(ctx context.Context, q *execlog.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, record := range s.records {
		if matchesQuery(record, q) {
			delete(s.records, id)
			deleted++
		}
	}

	return deleted, nil
}

// Close drops all records.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*execlog.Record)
	return nil
}

// Size returns the number of stored records.
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

func matchesQuery(record *execlog.Record, q *execlog.Query) bool {
	if q.StartTime != nil && record.ExecutedAt.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && record.ExecutedAt.After(*q.EndTime) {
		return false
	}

	if q.Kind != "" && record.Kind != q.Kind {
		return false
	}
	if q.LeadID != "" && record.LeadID != q.LeadID {
		return false
	}
	if q.RuleID != "" && record.RuleID != q.RuleID {
		return false
	}
	if q.WorkflowID != "" && record.WorkflowID != q.WorkflowID {
		return false
	}
	if q.ExecutionID != "" && record.ExecutionID != q.ExecutionID {
		return false
	}
	if q.TriggerEvent != "" && record.TriggerEvent != q.TriggerEvent {
		return false
	}
	if q.Success != nil && record.Success != *q.Success {
		return false
	}

	return true
}

// sortRecords orders by the requested field, newest first by default, with
// the id as a stable tiebreak.
func sortRecords(records []*execlog.Record, sortBy, sortOrder string) {
	asc := sortOrder == "asc"
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]

		var cmp int
		switch sortBy {
		case "duration":
			cmp = compare(int64(a.Duration), int64(b.Duration))
		default:
			cmp = compare(a.ExecutedAt.UnixNano(), b.ExecutedAt.UnixNano())
		}
		if cmp == 0 {
			return a.ID < b.ID
		}
		if asc {
			return cmp < 0
		}
		return cmp > 0
	})
}

func compare(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
