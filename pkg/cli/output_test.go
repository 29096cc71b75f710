package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

type table struct{}

func (table) Headers() []string { return []string{"ID", "NAME"} }
func (table) Rows() [][]string {
	return [][]string{{"r1", "Hot leads"}, {"r2", "Cold, stale"}}
}

func TestParseOutputFormat(t *testing.T) {
	for _, in := range []string{"", "text", "json", "csv"} {
		if _, err := ParseOutputFormat(in); err != nil {
			t.Errorf("ParseOutputFormat(%q) error = %v", in, err)
		}
	}
	if _, err := ParseOutputFormat("yaml"); err == nil {
		t.Error("ParseOutputFormat(yaml) error = nil")
	}
}

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatText).FormatTo(&buf, table{}); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "ID  ") || !strings.Contains(lines[0], "NAME") {
		t.Errorf("header = %q", lines[0])
	}

	buf.Reset()
	if err := NewFormatter(FormatText).FormatTo(&buf, "plain"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "plain\n" {
		t.Errorf("plain output = %q", buf.String())
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	data := map[string]int{"matched": 2}
	if err := NewFormatter(FormatJSON).FormatTo(&buf, data); err != nil {
		t.Fatal(err)
	}

	var got map[string]int
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got["matched"] != 2 {
		t.Errorf("got %v", got)
	}
}

func TestCSVFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatCSV).FormatTo(&buf, table{}); err != nil {
		t.Fatal(err)
	}
	want := "ID,NAME\nr1,Hot leads\nr2,\"Cold, stale\"\n"
	if buf.String() != want {
		t.Errorf("csv = %q, want %q", buf.String(), want)
	}

	if err := NewFormatter(FormatCSV).FormatTo(&buf, 42); err == nil {
		t.Error("expected error for non-tabular data")
	}
}
