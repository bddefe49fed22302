package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ternlabs/tern/config"
	"github.com/ternlabs/tern/session"
)

func buildSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage stored sessions for this directory",
	}
	cmd.AddCommand(
		buildSessionsListCmd(),
		buildSessionsResumeCmd(),
		buildSessionsDeleteCmd(),
	)
	return cmd
}

func openStore(configPath string) (*session.Store, config.Config, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, cfg, err
	}
	workDir, err := os.Getwd()
	if err != nil {
		return nil, cfg, err
	}
	store, err := session.NewStore(cfg.SessionRoot, workDir)
	return store, cfg, err
}

func buildSessionsListCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently used first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore(configPath)
			if err != nil {
				return err
			}
			entries, err := store.List()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println(renderDim("no sessions in this directory"))
				return nil
			}
			for _, e := range entries {
				branch := ""
				if e.Branch != "" {
					branch = " [" + e.Branch + "]"
				}
				fmt.Printf("%s  %s  %3d msgs%s  %s\n",
					toolStyle.Render(session.ShortID(e.ID)),
					e.Modified.Local().Format("2006-01-02 15:04"),
					e.MessageCount,
					renderDim(branch),
					e.Preview)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	return cmd
}

func buildSessionsResumeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "resume <id-prefix>",
		Short: "Resume a session in the REPL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			setupLogger(cfg.Verbose)
			return runREPL(cfg, args[0])
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	return cmd
}

func buildSessionsDeleteCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "delete <id-prefix>",
		Short: "Delete a session and its transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore(configPath)
			if err != nil {
				return err
			}
			entry, err := store.Resolve(args[0])
			if err != nil {
				return err
			}
			if err := store.Delete(entry.ID); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", session.ShortID(entry.ID))
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	return cmd
}
