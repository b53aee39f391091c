package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	if err := os.WriteFile(path, []byte(validConfigYAML), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Hardware) != 2 {
		t.Fatalf("expected 2 hardware targets, got %d", len(cfg.Hardware))
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadWorkload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workload.yaml")
	if err := os.WriteFile(path, []byte(validWorkloadYAML), 0o644); err != nil {
		t.Fatalf("write temp workload: %v", err)
	}

	w, err := LoadWorkload(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Hardware != "a100" {
		t.Fatalf("hardware = %s, want a100", w.Hardware)
	}
}
