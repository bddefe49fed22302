// Package config loads tern's YAML configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds user-facing settings. Zero values fall back to the
// defaults from Default.
type Config struct {
	// Provider selects the model backend: "anthropic" or "openai".
	Provider string `yaml:"provider"`
	// Model is a catalog id or alias, e.g. "claude-sonnet-4-5" or "sonnet".
	Model string `yaml:"model"`
	// MaxTokens caps the output of a single model call. 0 uses the
	// adapter default.
	MaxTokens int `yaml:"max_tokens"`
	// StepBudget is the maximum number of model calls per turn.
	StepBudget int `yaml:"step_budget"`
	// SkipConfirm approves every mutating tool call without prompting.
	// Only honored when stdin is not a terminal.
	SkipConfirm bool `yaml:"skip_confirm"`
	// SessionRoot overrides where transcripts are stored.
	SessionRoot string `yaml:"session_root"`
	// CommandTimeoutSeconds overrides the bash tool's wall clock limit.
	CommandTimeoutSeconds int `yaml:"command_timeout_seconds"`
	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Provider:   "anthropic",
		Model:      "claude-sonnet-4-5",
		StepBudget: 20,
	}
}

// Path returns the config file location, honoring XDG_CONFIG_HOME.
func Path() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "tern", "config.yaml"), nil
}

// Load reads the config file at path, layering it over Default. A
// missing file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Provider == "" {
		c.Provider = def.Provider
	}
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.StepBudget <= 0 {
		c.StepBudget = def.StepBudget
	}
}

// APIKey returns the environment API key for the configured provider.
func (c Config) APIKey() string {
	switch c.Provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}
