package config

import (
	"path/filepath"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := &Config{
		DefaultSession:          "work",
		PinBlindSort:            true,
		SnapshotIntervalSeconds: 30,
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.DefaultSession != "work" {
		t.Errorf("default_session = %q", loaded.DefaultSession)
	}
	if !loaded.PinBlindSort {
		t.Error("pin_blind_sort lost")
	}
	if loaded.SnapshotInterval() != 30 {
		t.Errorf("snapshot interval = %d", loaded.SnapshotInterval())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSnapshotIntervalDefault(t *testing.T) {
	cfg := &Config{}
	if got := cfg.SnapshotInterval(); got != 60 {
		t.Errorf("default interval = %d, want 60", got)
	}
}
