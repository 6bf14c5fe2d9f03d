package main

import (
	"fmt"
	"strings"

	"github.com/lumenforge/conduit/internal/config"
	"github.com/lumenforge/conduit/internal/sessions"
	"github.com/spf13/cobra"
)

func buildContinuationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "continuation",
		Short: "Inspect continuation checkpoints written on step-budget exhaustion",
	}
	cmd.AddCommand(buildContinuationShowCmd())
	return cmd
}

func buildContinuationShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <checkpoint-path>",
		Short: "Print a continuation checkpoint",
		Long: `show reads and prints the checkpoint a run wrote when it exhausted its
step budget without completing. The path is the one named in the
[CONTINUATION_NEEDED:...] sentinel at the end of that run's output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if trimmed, ok := sessions.ParseContinuationSentinel(strings.TrimSpace(path)); ok {
				path = trimmed
			}

			cp, err := sessions.ReadCheckpoint(path)
			if err != nil {
				return fmt.Errorf("read checkpoint: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session:        %s\n", cp.SessionID)
			fmt.Fprintf(out, "chain depth:    %d\n", cp.ChainDepth)
			fmt.Fprintf(out, "total steps:    %d\n", cp.TotalSteps)
			fmt.Fprintf(out, "goal:           %s\n", cp.Goal)
			fmt.Fprintf(out, "summary:        %s\n", cp.Summary)
			fmt.Fprintf(out, "remaining work: %s\n", cp.RemainingWork)
			if len(cp.KeyDecisions) > 0 {
				fmt.Fprintln(out, "key decisions:")
				for _, d := range cp.KeyDecisions {
					fmt.Fprintf(out, "  - %s\n", d)
				}
			}
			fmt.Fprintf(out, "\nresume with: agentctl run --session %s <follow-up prompt>\n",
				sessions.NewChainSessionID(cp.SessionID, cp.ChainDepth+1))
			return nil
		},
	}

	return cmd
}

func buildDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and storage health",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			configPath := resolveConfigPath(configPathFlag)

			cfg, err := config.Load(configPath)
			if err != nil {
				fmt.Fprintf(out, "FAIL  config %s: %v\n", configPath, err)
				return err
			}
			fmt.Fprintf(out, "OK    config %s loaded\n", configPath)

			if _, err := buildProvider(cfg, cfg.Model.DefaultProvider); err != nil {
				fmt.Fprintf(out, "FAIL  default provider %q: %v\n", cfg.Model.DefaultProvider, err)
			} else {
				fmt.Fprintf(out, "OK    default provider %q constructs cleanly\n", cfg.Model.DefaultProvider)
			}

			store, err := sessions.NewFileStore(cfg.Session.StateDir)
			if err != nil {
				fmt.Fprintf(out, "FAIL  session state dir %s: %v\n", cfg.Session.StateDir, err)
			} else {
				list, err := store.List(cmd.Context(), "", sessions.ListOptions{})
				if err != nil {
					fmt.Fprintf(out, "FAIL  list sessions: %v\n", err)
				} else {
					fmt.Fprintf(out, "OK    session state dir %s (%d sessions)\n", cfg.Session.StateDir, len(list))
				}
			}

			return nil
		},
	}
	return cmd
}
