package main

import (
	"fmt"

	"github.com/lumenforge/conduit/internal/agent"
	"github.com/lumenforge/conduit/internal/approval"
	"github.com/lumenforge/conduit/internal/config"
	"github.com/lumenforge/conduit/internal/sessions"
	policy "github.com/lumenforge/conduit/internal/toolpolicy"
)

// assembled bundles the pieces a run/serve invocation needs together so
// callers don't have to re-derive them from cfg independently.
type assembled struct {
	runtime  *agent.Runtime
	store    sessions.Store
	gate     *approval.Gate
	resolver *policy.Resolver
	policy   *policy.Policy
	model    string
}

// buildRuntime wires a Runtime from cfg the way agentctl's commands need it:
// provider selection, persisted sessions, the approval gate ledger, tool
// policy, and the drift/critic/continuation levers added on top of the
// inherited tool-execution loop.
func buildRuntime(cfg *config.Config) (*assembled, error) {
	providerName := cfg.Model.DefaultProvider
	if providerName == "" {
		return nil, fmt.Errorf("model.default_provider is not set")
	}
	provider, err := buildProvider(cfg, providerName)
	if err != nil {
		return nil, fmt.Errorf("build provider: %w", err)
	}

	store, err := sessions.NewFileStore(cfg.Session.StateDir)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	gate := approval.New()
	ledgerPath := cfg.Session.StateDir + "/approvals.json"
	if err := gate.ReadFile(ledgerPath); err != nil {
		return nil, fmt.Errorf("read approval ledger: %w", err)
	}

	checker := agent.NewApprovalChecker(agent.DefaultApprovalPolicy())
	checker.SetStore(agent.NewGateApprovalStore(gate))
	if len(cfg.Approval.SensitiveTools) > 0 {
		checker.SetAgentPolicy("", &agent.ApprovalPolicy{
			RequireApproval: cfg.Approval.SensitiveTools,
			Denylist:        cfg.Approval.NeverTools,
			AskFallback:     true,
			DefaultDecision: agent.ApprovalAllowed,
			RequestTTL:      cfg.Approval.TTL,
		})
	}
	if cfg.Approval.AutoApprove {
		checker.SetUIAvailableCheck(func() bool { return true })
	}

	opts := agent.DefaultRuntimeOptions()
	opts.MaxIterations = cfg.Loop.MaxSteps
	opts.ToolParallelism = cfg.Loop.ToolParallelism
	opts.ToolTimeout = cfg.Loop.ToolTimeout
	opts.ToolMaxAttempts = cfg.Loop.ToolMaxAttempts
	opts.ApprovalChecker = checker

	runtime := agent.NewRuntimeWithOptions(provider, store, opts)
	runtime.SetMaxChainDepth(cfg.Loop.MaxChainDepth)
	runtime.SetCheckpointDir(cfg.Session.StateDir + "/checkpoints")
	runtime.SetDriftDir(cfg.Session.StateDir + "/drift")
	runtime.SetCriticConfig(agent.CriticConfig{Interval: cfg.Drift.CriticInterval})
	runtime.SetWindowCompactionConfig(agent.WindowCompactionConfig{
		ContextWindowTokens: cfg.Context.TokenBudget,
		TriggerFraction:     cfg.Context.CompactionRatio,
		KeepRecent:          cfg.Context.KeepRecentTurns,
	})
	model := ""
	if spec, ok := cfg.Model.Providers[providerName]; ok {
		model = spec.Model
	}
	runtime.SetDefaultModel(model)

	if cfg.Model.EscalatedProvider != "" {
		escalatedModel := cfg.Model.EscalatedProvider
		if spec, ok := cfg.Model.Providers[cfg.Model.EscalatedProvider]; ok {
			escalatedModel = spec.Model
		}
		runtime.SetEscalatedModel(escalatedModel, cfg.Model.EscalationSteps)
	}

	resolver := policy.NewResolver()
	pol := policy.NewPolicy(policy.ProfileFull)
	pol.Deny = cfg.Approval.NeverTools

	return &assembled{
		runtime:  runtime,
		store:    store,
		gate:     gate,
		resolver: resolver,
		policy:   pol,
		model:    model,
	}, nil
}

// saveApprovalLedger persists the approval gate ledger back to the session
// state directory so pending approvals survive across agentctl invocations.
func saveApprovalLedger(cfg *config.Config, gate *approval.Gate) error {
	return gate.WriteFile(cfg.Session.StateDir + "/approvals.json")
}
