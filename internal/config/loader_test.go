package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aulavoz/aulavoz/internal/config"
)

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "aulavoz.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q, want %q", cfg.Server.ListenAddr, ":8080")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load("/nonexistent/aulavoz.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "open") {
		t.Errorf("error should mention open, got: %v", err)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "aulavoz.yaml")
	if err := os.WriteFile(path, []byte("backend: ["), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for malformed YAML, got nil")
	}
}

func TestValidate_DuplicatePhraseIsNotAnError(t *testing.T) {
	t.Parallel()
	// Duplicates only warn; the first occurrence wins at match time.
	yaml := `
backend:
  base_url: "https://api.campus.example"
commands:
  navigation:
    - phrase: inicio
      action: /
    - phrase: Inicio
      action: /home
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_ZeroValuesAreValid(t *testing.T) {
	t.Parallel()
	// Everything except the backend URL may be left to component defaults.
	yaml := `
backend:
  base_url: "http://localhost:9000"
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Matcher.Threshold != 0 {
		t.Errorf("threshold should be zero, got %v", cfg.Matcher.Threshold)
	}
	if cfg.Timers.SilenceWindow != 0 {
		t.Errorf("silence_window should be zero, got %s", cfg.Timers.SilenceWindow)
	}
}
