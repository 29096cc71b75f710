package logging

import (
	"context"
	"testing"
)

func TestContextFields(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		with func(context.Context, string) context.Context
		get  func(context.Context) string
	}{
		{"lead", WithLeadID, GetLeadID},
		{"rule", WithRuleID, GetRuleID},
		{"workflow", WithWorkflowID, GetWorkflowID},
		{"execution", WithExecutionID, GetExecutionID},
		{"trigger event", WithTriggerEvent, GetTriggerEvent},
		{"actor", WithActor, GetActor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.get(ctx); got != "" {
				t.Errorf("empty context returned %q", got)
			}
			if got := tt.get(tt.with(ctx, "value-1")); got != "value-1" {
				t.Errorf("got %q, want value-1", got)
			}
		})
	}
}

func TestExtractContextFields_Order(t *testing.T) {
	ctx := WithActor(context.Background(), "ops")
	ctx = WithLeadID(ctx, "lead-1")

	attrs := extractContextFields(ctx)
	if len(attrs) != 2 {
		t.Fatalf("len(attrs) = %d, want 2", len(attrs))
	}
	if attrs[0].Key != "lead_id" || attrs[1].Key != "actor" {
		t.Errorf("keys = %s, %s; want lead_id, actor", attrs[0].Key, attrs[1].Key)
	}
}
