package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "anthropic" || cfg.Model != "claude-sonnet-4-5" || cfg.StepBudget != 20 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
provider: openai
model: gpt-5.2
step_budget: 40
skip_confirm: true
command_timeout_seconds: 60
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "openai" {
		t.Errorf("provider = %s", cfg.Provider)
	}
	if cfg.Model != "gpt-5.2" {
		t.Errorf("model = %s", cfg.Model)
	}
	if cfg.StepBudget != 40 {
		t.Errorf("step budget = %d", cfg.StepBudget)
	}
	if !cfg.SkipConfirm {
		t.Error("skip_confirm not set")
	}
	if cfg.CommandTimeoutSeconds != 60 {
		t.Errorf("command timeout = %d", cfg.CommandTimeoutSeconds)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("model: opus\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "opus" {
		t.Errorf("model = %s", cfg.Model)
	}
	if cfg.Provider != "anthropic" || cfg.StepBudget != 20 {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("model: [unclosed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestPathHonorsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	path, err := Path()
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if !strings.HasSuffix(path, filepath.Join("xdg", "tern", "config.yaml")) {
		t.Errorf("path = %s", path)
	}
}
