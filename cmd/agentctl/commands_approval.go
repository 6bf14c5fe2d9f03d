package main

import (
	"fmt"

	"github.com/lumenforge/conduit/internal/approval"
	"github.com/lumenforge/conduit/internal/config"
	"github.com/spf13/cobra"
)

func buildApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <request-id>",
		Short: "Approve a pending tool-call approval request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return resolveApproval(cmd, args[0], true)
		},
	}
	return cmd
}

func buildRejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <request-id>",
		Short: "Deny a pending tool-call approval request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return resolveApproval(cmd, args[0], false)
		},
	}
	return cmd
}

func resolveApproval(cmd *cobra.Command, requestID string, approve bool) error {
	cfg, err := config.Load(resolveConfigPath(configPathFlag))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gate := approval.New()
	ledgerPath := cfg.Session.StateDir + "/approvals.json"
	if err := gate.ReadFile(ledgerPath); err != nil {
		return fmt.Errorf("read approval ledger: %w", err)
	}

	if approve {
		if err := gate.Approve(requestID); err != nil {
			return fmt.Errorf("approve %s: %w", requestID, err)
		}
	} else {
		if err := gate.Deny(requestID); err != nil {
			return fmt.Errorf("deny %s: %w", requestID, err)
		}
	}

	if err := gate.WriteFile(ledgerPath); err != nil {
		return fmt.Errorf("write approval ledger: %w", err)
	}

	verb := "approved"
	if !approve {
		verb = "denied"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, requestID)
	return nil
}
