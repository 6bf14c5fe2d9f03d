// Package main provides the CLI entry point for agentctl, the control-loop
// binary for a long-running personal AI assistant: cache-aware context
// management, drift/critic-driven escalation, parallel tool execution, and
// bounded self-continuation when a run exhausts its step budget.
//
// # Basic usage
//
// Run a single turn against a prompt:
//
//	agentctl run --config agentctl.yaml --session local "summarize today's notes"
//
// Start the long-running server:
//
//	agentctl serve --config agentctl.yaml
//
// Resolve a pending approval:
//
//	agentctl approve <id>
//	agentctl reject <id>
//
// # Environment variables
//
//   - AGENTCTL_CONFIG: path to the configuration file (default: agentctl.yaml)
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY: provider credentials referenced via ${VAR} in config
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var configPathFlag string

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() so it can be exercised from tests.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agentctl",
		Short: "agentctl - long-running agent control loop",
		Long: `agentctl drives a single-agent control loop: it manages conversation
context with cache-aware prefix splitting, detects plan drift and escalates
to a grounding critic, executes tools in parallel under an approval gate,
and checkpoints itself into a continuation session when a run's step budget
runs out before the task is done.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPathFlag, "config", "c", "", "Path to YAML configuration file (default: agentctl.yaml, or $AGENTCTL_CONFIG)")

	rootCmd.AddCommand(
		buildRunCmd(),
		buildServeCmd(),
		buildApproveCmd(),
		buildRejectCmd(),
		buildSessionsCmd(),
		buildContinuationCmd(),
		buildDoctorCmd(),
	)

	return rootCmd
}

// resolveConfigPath applies the --config flag, falling back to
// $AGENTCTL_CONFIG and then the default filename in the working directory.
func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("AGENTCTL_CONFIG"); env != "" {
		return env
	}
	return "agentctl.yaml"
}
