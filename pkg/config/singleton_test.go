package config

import (
	"sync"
	"testing"
)

func resetGlobal() {
	globalConfig = nil
	initOnce = sync.Once{}
}

func TestInitialize(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	path := writeConfig(t, "engine:\n  bulk_concurrency: 3\n")
	if err := Initialize(path); err != nil {
		t.Fatalf("failed to initialize config: %v", err)
	}

	cfg := GetConfig()
	if cfg == nil {
		t.Fatal("expected non-nil config after initialization")
	}
	if cfg.Engine.BulkConcurrency != 3 {
		t.Errorf("expected bulk concurrency 3, got %d", cfg.Engine.BulkConcurrency)
	}

	// Later calls are ignored.
	other := writeConfig(t, "engine:\n  bulk_concurrency: 7\n")
	if err := Initialize(other); err != nil {
		t.Fatalf("second Initialize returned error: %v", err)
	}
	if GetConfig().Engine.BulkConcurrency != 3 {
		t.Error("second Initialize replaced the configuration")
	}
}

func TestReloadConfig(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	SetConfig(Default())

	if err := ReloadConfig(writeConfig(t, "storage:\n  backend: nope\n")); err == nil {
		t.Fatal("expected reload error")
	}
	if GetConfig().Storage.Backend != DefaultStorageBackend {
		t.Error("failed reload replaced the configuration")
	}

	if err := ReloadConfig(writeConfig(t, "storage:\n  backend: memory\n")); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if GetConfig().Storage.Backend != "memory" {
		t.Error("reload did not apply")
	}
}

func TestMustGetConfig_Panics(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustGetConfig()
}
