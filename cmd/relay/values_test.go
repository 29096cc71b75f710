package main

import (
	"reflect"
	"testing"
	"time"
)

func TestParseValues(t *testing.T) {
	got := parseValues(map[string]string{
		"score":  "85",
		"ratio":  "0.5",
		"vip":    "true",
		"source": "webinar",
	})
	want := map[string]any{
		"score":  85.0,
		"ratio":  0.5,
		"vip":    true,
		"source": "webinar",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseValues() = %v, want %v", got, want)
	}

	if parseValues(nil) != nil {
		t.Error("parseValues(nil) should be nil")
	}
}

func TestParseBoolFlag(t *testing.T) {
	v, err := parseBoolFlag("active", "")
	if err != nil || v != nil {
		t.Errorf("unset flag = %v, %v; want nil, nil", v, err)
	}

	v, err = parseBoolFlag("active", "false")
	if err != nil || v == nil || *v {
		t.Errorf("false flag = %v, %v", v, err)
	}

	if _, err := parseBoolFlag("active", "maybe"); err == nil {
		t.Error("expected error for non-boolean value")
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatTime(nil); got != "-" {
		t.Errorf("formatTime(nil) = %q", got)
	}
	ts := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	if got := formatTime(&ts); got != "2025-03-04T05:06:07Z" {
		t.Errorf("formatTime() = %q", got)
	}
	if got := formatMap(map[string]any{"b": 2, "a": "x"}); got != "a=x b=2" {
		t.Errorf("formatMap() = %q", got)
	}
	if got := orDash(""); got != "-" {
		t.Errorf("orDash(\"\") = %q", got)
	}
}
