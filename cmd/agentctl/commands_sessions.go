package main

import (
	"fmt"

	"github.com/lumenforge/conduit/internal/config"
	"github.com/lumenforge/conduit/internal/sessions"
	"github.com/spf13/cobra"
)

func buildSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect persisted sessions",
	}
	cmd.AddCommand(buildSessionsListCmd(), buildSessionsShowCmd())
	return cmd
}

func buildSessionsListCmd() *cobra.Command {
	var agentID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath(configPathFlag))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := sessions.NewFileStore(cfg.Session.StateDir)
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}

			list, err := store.List(cmd.Context(), agentID, sessions.ListOptions{})
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "no sessions found")
				return nil
			}
			for _, s := range list {
				fmt.Fprintf(out, "%s\tagent=%s\tchannel=%s\tkey=%s\tupdated=%s\n",
					s.ID, s.AgentID, s.Surface, s.Key, s.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&agentID, "agent", "", "Filter by agent id")
	return cmd
}

func buildSessionsShowCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session's message history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath(configPathFlag))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := sessions.NewFileStore(cfg.Session.StateDir)
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}

			session, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get session: %w", err)
			}
			history, err := store.GetHistory(cmd.Context(), args[0], limit)
			if err != nil {
				return fmt.Errorf("get history: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session %s (agent=%s surface=%s key=%s)\n", session.ID, session.AgentID, session.Surface, session.Key)
			for _, msg := range history {
				fmt.Fprintf(out, "[%s] %s: %s\n", msg.CreatedAt.Format("15:04:05"), msg.Role, msg.Content)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Limit to the N most recent messages (0 = all)")
	return cmd
}
