package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigMatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Limits.MaxStringBytes != 4096 {
		t.Errorf("MaxStringBytes = %d, want 4096", cfg.Limits.MaxStringBytes)
	}
	if cfg.Limits.MaxArrayElems != 1024 {
		t.Errorf("MaxArrayElems = %d, want 1024", cfg.Limits.MaxArrayElems)
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "limits.yaml")
	contents := "limits:\n  call_deadline: 2s\n  max_string_bytes: 2048\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Limits.CallDeadline != 2*time.Second {
		t.Errorf("CallDeadline = %v, want 2s", cfg.Limits.CallDeadline)
	}
	if cfg.Limits.MaxStringBytes != 2048 {
		t.Errorf("MaxStringBytes = %d, want 2048", cfg.Limits.MaxStringBytes)
	}
	// Untouched fields keep their defaults.
	if cfg.Limits.MaxArrayElems != 1024 {
		t.Errorf("MaxArrayElems = %d, want default 1024", cfg.Limits.MaxArrayElems)
	}
}

func TestLoadFromEnvOverridesDeadline(t *testing.T) {
	t.Setenv("NOVASANDBOX_CALL_DEADLINE", "9s")
	cfg := DefaultConfig()
	LoadFromEnv(cfg)
	if cfg.Limits.CallDeadline != 9*time.Second {
		t.Errorf("CallDeadline = %v, want 9s", cfg.Limits.CallDeadline)
	}
}
