package logging

import (
	"log/slog"
	"strings"
	"testing"

	"leadflow-hq/relay/pkg/config"
)

func TestRedactor_RedactString(t *testing.T) {
	r := NewRedactor(nil)

	tests := []struct {
		name  string
		input string
		leak  string
	}{
		{"email", "contact jane@acme.io today", "jane@"},
		{"phone", "call (555) 123-4567", "123-4567"},
		{"bearer", "Authorization: Bearer eyJhbGciOi.abc", "eyJhbGciOi"},
		{"api key", "key_0123456789abcdef", "0123456789abcdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.RedactString(tt.input)
			if strings.Contains(got, tt.leak) {
				t.Errorf("RedactString(%q) = %q, still contains %q", tt.input, got, tt.leak)
			}
		})
	}

	if got := r.RedactString("Acme Robotics"); got != "Acme Robotics" {
		t.Errorf("plain text changed: %q", got)
	}
}

func TestRedactor_CustomPatterns(t *testing.T) {
	r := NewRedactor([]config.RedactPattern{
		{Name: "crm_id", Pattern: `CRM-\d+`, Replacement: "CRM-***"},
		{Name: "broken", Pattern: `([`, Replacement: "x"},
	})

	if got := r.RedactString("ref CRM-12345"); got != "ref CRM-***" {
		t.Errorf("RedactString() = %q, want %q", got, "ref CRM-***")
	}
}

func TestRedactor_RedactAttr(t *testing.T) {
	r := NewRedactor(nil)

	if got := r.RedactAttr(slog.String("webhook_secret", "s3cr3t")); got.Value.String() != "***" {
		t.Errorf("sensitive key value = %q, want ***", got.Value.String())
	}

	if got := r.RedactAttr(slog.Int("score", 85)); got.Value.Int64() != 85 {
		t.Errorf("int attr changed: %v", got.Value)
	}

	group := r.RedactAttr(slog.Group("owner", slog.String("email", "bob@acme.io")))
	for _, a := range group.Value.Group() {
		if strings.Contains(a.Value.String(), "bob@") {
			t.Errorf("group member not redacted: %v", a.Value)
		}
	}
}
