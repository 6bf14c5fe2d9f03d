package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lumenforge/conduit/internal/agent"
	"github.com/lumenforge/conduit/internal/config"
	"github.com/lumenforge/conduit/internal/sessions"
	"github.com/lumenforge/conduit/pkg/models"
	"github.com/spf13/cobra"
)

func buildRunCmd() *cobra.Command {
	var (
		sessionKey string
		agentID    string
	)

	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Run one control-loop turn against a prompt",
		Long: `run loads (or creates) a session, appends the given prompt as a user
message, and drives the control loop to completion or until its step budget
is exhausted, printing model output as it streams.

If the run exhausts its step budget, the final line is the literal
continuation sentinel naming the checkpoint file a later "agentctl run"
against the same --session can pick up from.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			cfg, err := config.Load(resolveConfigPath(configPathFlag))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			asm, err := buildRuntime(cfg)
			if err != nil {
				return err
			}

			ctx := agent.WithToolPolicy(cmd.Context(), asm.resolver, asm.policy)

			session, err := asm.store.GetOrCreate(ctx, sessionKey, agentID, models.SurfaceCLI, sessionKey)
			if err != nil {
				return fmt.Errorf("open session: %w", err)
			}

			msg := &models.Message{
				ID:        uuid.NewString(),
				SessionID: session.ID,
				Surface:   session.Surface,
				SurfaceID: session.SurfaceID,
				Role:      models.RoleUser,
				Direction: models.DirectionInbound,
				Content:   prompt,
			}
			if err := asm.store.AppendMessage(ctx, session.ID, msg); err != nil {
				return fmt.Errorf("append prompt: %w", err)
			}

			chunks, err := asm.runtime.Process(ctx, session, msg)
			if err != nil {
				return fmt.Errorf("start run: %w", err)
			}

			out := cmd.OutOrStdout()
			var finalText strings.Builder
			for chunk := range chunks {
				if chunk == nil {
					continue
				}
				if chunk.Error != nil {
					return chunk.Error
				}
				if chunk.Text != "" {
					fmt.Fprint(out, chunk.Text)
					finalText.WriteString(chunk.Text)
				}
			}
			fmt.Fprintln(out)

			if err := saveApprovalLedger(cfg, asm.gate); err != nil {
				return fmt.Errorf("save approval ledger: %w", err)
			}

			if path, ok := sessions.ParseContinuationSentinel(strings.TrimSpace(finalText.String())); ok {
				fmt.Fprintf(out, "\ncontinuation checkpoint written: %s\n", path)
				fmt.Fprintf(out, "resume with: agentctl run --session %s <follow-up prompt>\n", sessions.NewChainSessionID(session.ID, sessions.ParseChainDepth(session.ID)+1))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&sessionKey, "session", "default", "Session key to resume or create")
	cmd.Flags().StringVar(&agentID, "agent", "", "Agent id to scope the session under")

	return cmd
}
