// Package main is the tern CLI: an interactive terminal coding
// assistant. The root command starts a REPL in the current working
// directory; the sessions subcommands manage stored transcripts.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/ternlabs/tern/config"
	"github.com/ternlabs/tern/llm"
	"github.com/ternlabs/tern/llm/anthropic"
)

var version = "dev"

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, renderError(err.Error()))
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var (
		configPath  string
		model       string
		resumeID    string
		skipConfirm bool
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:     "tern",
		Short:   "Interactive terminal coding assistant",
		Version: version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if model != "" {
				cfg.Model = model
			}
			if skipConfirm {
				cfg.SkipConfirm = true
			}
			if verbose {
				cfg.Verbose = true
			}
			setupLogger(cfg.Verbose)
			return runREPL(cfg, resumeID)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default ~/.config/tern/config.yaml)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model id or alias")
	cmd.Flags().StringVarP(&resumeID, "resume", "r", "", "Resume the session with this id prefix")
	cmd.Flags().BoolVar(&skipConfirm, "yes", false, "Approve all tool confirmations (non-interactive runs)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(buildSessionsCmd())
	return cmd
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		var err error
		path, err = config.Path()
		if err != nil {
			return config.Default(), err
		}
	}
	return config.Load(path)
}

func setupLogger(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	})
	slog.SetDefault(slog.New(handler))
}

// buildProvider selects the streaming adapter for the configured
// backend.
func buildProvider(cfg config.Config) (llm.StreamProvider, error) {
	key := cfg.APIKey()

	switch cfg.Provider {
	case "anthropic":
		if key == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
		}
		return anthropic.New(key, anthropic.WithDefaultModel(resolveModelID(cfg.Model))), nil
	case "openai":
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		adapter, err := llm.NewGollmAdapter("openai", key, llm.WithGollmModel(resolveModelID(cfg.Model)))
		if err != nil {
			return nil, err
		}
		return adapter, nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want anthropic or openai)", cfg.Provider)
	}
}

// resolveModelID turns a catalog alias into its canonical id.
func resolveModelID(model string) string {
	if info := llm.GetModelInfo(model); info != nil {
		return info.ID
	}
	return model
}
