package definitions

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesBursts(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var calls atomic.Int32
	for i := 0; i < 5; i++ {
		d.Trigger(func() { calls.Add(1) })
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("callback ran %d times, want 1", got)
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	d.Trigger(func() { calls.Add(1) })

	time.Sleep(80 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("callback ran %d times after Stop, want 0", got)
	}
}

func TestWatcher_SyncsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "definitions.yaml", "rules: []\n")

	e := newEngines(t)
	s := NewSyncer(e.rules, e.workflows, "", false, nil)

	w, err := NewWatcher(path, s, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)

	// Unrelated files in the same directory are ignored.
	writeFile(t, dir, "other.yaml", sampleDefinitions)
	time.Sleep(80 * time.Millisecond)
	if _, err := e.rules.GetRuleByID(ctx, "hot-leads"); err == nil {
		t.Fatal("unrelated file triggered a sync")
	}

	// Replace by rename, the way editors save.
	tmp := filepath.Join(dir, ".definitions.yaml.tmp")
	if err := os.WriteFile(tmp, []byte(sampleDefinitions), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := e.rules.GetRuleByID(ctx, "hot-leads"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("rule not synced after file change")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Watch() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestWatcher_StopBeforeWatch(t *testing.T) {
	e := newEngines(t)
	w, err := NewWatcher(filepath.Join(t.TempDir(), "definitions.yaml"), NewSyncer(e.rules, e.workflows, "", false, nil), 0, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
