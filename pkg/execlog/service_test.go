package execlog_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"leadflow-hq/relay/pkg/config"
	"leadflow-hq/relay/pkg/execlog"
	"leadflow-hq/relay/pkg/execlog/storage"
)

func boolPtr(b bool) *bool { return &b }

func newService(t *testing.T, outcomes ...bool) *execlog.Service {
	t.Helper()
	store := storage.NewMemoryStorage()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, ok := range outcomes {
		err := store.Store(context.Background(), &execlog.Record{
			ID:         fmt.Sprintf("r%02d", i),
			Kind:       execlog.KindRule,
			RuleID:     "rule-1",
			Success:    ok,
			ExecutedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Store() failed: %v", err)
		}
	}
	return execlog.NewService(store, config.QueryConfig{DefaultLimit: 2, MaxLimit: 50}, nil)
}

func TestService_GetExecutionStats(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []bool
		query    *execlog.Query
		want     execlog.Stats
	}{
		{
			name: "empty log has zero rate",
			want: execlog.Stats{},
		},
		{
			name:     "mixed",
			outcomes: []bool{true, true, true, false},
			want:     execlog.Stats{Total: 4, Successful: 3, Failed: 1, SuccessRate: 75},
		},
		{
			name:     "filtered to failures",
			outcomes: []bool{true, false, false},
			query:    &execlog.Query{Success: boolPtr(false)},
			want:     execlog.Stats{Total: 2, Successful: 0, Failed: 2, SuccessRate: 0},
		},
		{
			name:     "filtered to successes",
			outcomes: []bool{true, false, true},
			query:    &execlog.Query{Success: boolPtr(true)},
			want:     execlog.Stats{Total: 2, Successful: 2, Failed: 0, SuccessRate: 100},
		},
		{
			name:     "filter matching nothing",
			outcomes: []bool{true},
			query:    &execlog.Query{RuleID: "other"},
			want:     execlog.Stats{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newService(t, tt.outcomes...)
			got, err := s.GetExecutionStats(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("GetExecutionStats() failed: %v", err)
			}
			if *got != tt.want {
				t.Errorf("GetExecutionStats() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestService_GetExecutions(t *testing.T) {
	s := newService(t, true, false, true, true, false)
	ctx := context.Background()

	tests := []struct {
		name        string
		page        execlog.Pagination
		wantIDs     []string
		wantHasMore bool
	}{
		{name: "default limit", page: execlog.Pagination{}, wantIDs: []string{"r04", "r03"}, wantHasMore: true},
		{name: "middle page", page: execlog.Pagination{Limit: 2, Offset: 2}, wantIDs: []string{"r02", "r01"}, wantHasMore: true},
		{name: "last page", page: execlog.Pagination{Limit: 2, Offset: 4}, wantIDs: []string{"r00"}, wantHasMore: false},
		{name: "exact end", page: execlog.Pagination{Limit: 5}, wantIDs: []string{"r04", "r03", "r02", "r01", "r00"}, wantHasMore: false},
		{name: "past end", page: execlog.Pagination{Limit: 2, Offset: 9}, wantIDs: []string{}, wantHasMore: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := s.GetExecutions(ctx, &execlog.Query{RuleID: "rule-1"}, tt.page)
			if err != nil {
				t.Fatalf("GetExecutions() failed: %v", err)
			}
			if page.TotalCount != 5 {
				t.Errorf("TotalCount = %d, want 5", page.TotalCount)
			}
			if page.HasMore != tt.wantHasMore {
				t.Errorf("HasMore = %v, want %v", page.HasMore, tt.wantHasMore)
			}
			if len(page.Items) != len(tt.wantIDs) {
				t.Fatalf("got %d items, want %d", len(page.Items), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if page.Items[i].ID != id {
					t.Errorf("Items[%d] = %s, want %s", i, page.Items[i].ID, id)
				}
			}
		})
	}
}

func TestService_InvalidQuery(t *testing.T) {
	s := newService(t, true)
	ctx := context.Background()
	start := time.Now()
	end := start.Add(-time.Hour)

	tests := []struct {
		name  string
		query *execlog.Query
		page  execlog.Pagination
	}{
		{name: "limit over max", page: execlog.Pagination{Limit: 51}},
		{name: "negative offset", page: execlog.Pagination{Offset: -1}},
		{name: "reversed range", query: &execlog.Query{StartTime: &start, EndTime: &end}},
		{name: "unknown sort", query: &execlog.Query{SortBy: "lead_id"}},
		{name: "unknown kind", query: &execlog.Query{Kind: "job"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.GetExecutions(ctx, tt.query, tt.page)
			var qerr *execlog.QueryError
			if !errors.As(err, &qerr) {
				t.Errorf("GetExecutions() error = %v, want *QueryError", err)
			}
		})
	}
}
