package undo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigCheck(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := cfg.Check(); err == nil {
		t.Fatal("config without files passed Check")
	}

	cfg.Input = "mysql-bin.000001"
	cfg.Output = "undo-bin.000001"
	if _, err := cfg.Check(); err == nil {
		t.Fatal("start-pos inside the file header passed Check")
	}

	cfg.StartPos = 194
	if ok, err := cfg.Check(); !ok || err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg.MaxEventSize = "lots"
	if _, err := cfg.Check(); err == nil {
		t.Fatal("bogus max-event-size passed Check")
	}
}

func TestMaxEventSizeMB(t *testing.T) {
	cfg := DefaultConfig()
	if mb, err := cfg.MaxEventSizeMB(); err != nil || mb != 64 {
		t.Fatalf("default size: %d, %v", mb, err)
	}

	cfg.MaxEventSize = "512KB"
	if mb, _ := cfg.MaxEventSizeMB(); mb != 1 {
		t.Fatalf("sub-mebibyte size rounded to %d, want 1", mb)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "undo.toml")
	content := `
input = "mysql-bin.000007"
output = "undo-bin.000007"
start-pos = 194
server-id = 17
quiet = true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Input != "mysql-bin.000007" || cfg.StartPos != 194 || cfg.ServerID != 17 || !cfg.Quiet {
		t.Fatalf("config not applied: %+v", cfg)
	}
	// untouched fields keep their defaults
	if cfg.MaxEventSize != "64MB" {
		t.Fatalf("max-event-size %q, want default", cfg.MaxEventSize)
	}
	if ok, err := cfg.Check(); !ok || err != nil {
		t.Fatalf("loaded config rejected: %v", err)
	}
}
