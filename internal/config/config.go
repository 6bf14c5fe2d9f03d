package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the agent control loop binary.
// It covers the environment levers named in the control-loop design: context
// budget, compaction behavior, drift/critic cadence, continuation limits,
// approval gating, and the subsystems (model hook, memory store, MCP plugins,
// background queue) those levers apply to.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Model    ModelConfig    `yaml:"model"`
	Context  ContextConfig  `yaml:"context"`
	Drift    DriftConfig    `yaml:"drift"`
	Loop     LoopConfig     `yaml:"loop"`
	Approval ApprovalConfig `yaml:"approval"`
	Tools    ToolsConfig    `yaml:"tools"`
	Memory   MemoryConfig   `yaml:"memory"`
	MCP      MCPConfig      `yaml:"mcp"`
	Cron     CronConfig     `yaml:"cron"`
	SubAgent SubAgentConfig `yaml:"subagent"`
	Session  SessionConfig  `yaml:"session"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the control-plane ports exposed by agentctl serve.
type ServerConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// ModelConfig selects and tunes the model hook used to complete each step.
type ModelConfig struct {
	// DefaultProvider names an entry in Providers used absent a per-session override.
	DefaultProvider string `yaml:"default_provider"`
	// EscalatedProvider is swapped in for EscalationSteps steps once the critic
	// escalation ladder crosses its top band.
	EscalatedProvider string                  `yaml:"escalated_provider"`
	EscalationSteps   int                     `yaml:"escalation_steps"`
	Providers         map[string]ProviderSpec `yaml:"providers"`
	MaxTokens         int                     `yaml:"max_tokens"`
}

// ProviderSpec configures one named model-hook backend.
type ProviderSpec struct {
	Kind    string `yaml:"kind"` // "anthropic", "openai", "bedrock", "subprocess"
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Region  string `yaml:"region"`  // bedrock
	Command string `yaml:"command"` // subprocess stdio hook
}

// ContextConfig governs the compactor: the budget it packs against and how it
// splits the stable system prefix from the summarizable middle.
type ContextConfig struct {
	TokenBudget     int     `yaml:"token_budget"`
	CompactionRatio float64 `yaml:"compaction_ratio"`
	KeepRecentTurns int     `yaml:"keep_recent_turns"`
	CharsPerToken   int     `yaml:"chars_per_token"`
}

// DriftConfig tunes the drift/critic subsystem's EMA, cycle window, and
// escalation ladder bands.
type DriftConfig struct {
	EMADecay            float64 `yaml:"ema_decay"`
	CriticInterval      int     `yaml:"critic_interval"`
	PlanRecitationEvery int     `yaml:"plan_recitation_every"`
	CycleWindow         int     `yaml:"cycle_window"`
	Bands               []int   `yaml:"bands"` // violation-count thresholds, ascending
}

// LoopConfig bounds one control-loop run.
type LoopConfig struct {
	MaxSteps         int           `yaml:"max_steps"`
	MaxChainDepth    int           `yaml:"max_chain_depth"`
	StaleOutputAfter time.Duration `yaml:"stale_output_after"`
	ToolParallelism  int           `yaml:"tool_parallelism"`
	ToolTimeout      time.Duration `yaml:"tool_timeout"`
	ToolMaxAttempts  int           `yaml:"tool_max_attempts"`
}

// ApprovalConfig configures the approval gate.
type ApprovalConfig struct {
	AutoApprove    bool          `yaml:"auto_approve"`
	SensitiveTools []string      `yaml:"sensitive_tools"`
	NeverTools     []string      `yaml:"never_tools"`
	TTL            time.Duration `yaml:"ttl"`
}

// ToolsConfig configures the tool executor and background-queue off-ramp.
type ToolsConfig struct {
	OutputCharCap      int      `yaml:"output_char_cap"`
	AsyncTools         []string `yaml:"async_tools"`
	BackgroundQueueURL string   `yaml:"background_queue_url"`
}

// MemoryConfig configures the content-addressed memory store backend.
type MemoryConfig struct {
	Backend   string `yaml:"backend"` // "sqlitevec"
	Path      string `yaml:"path"`
	Dimension int    `yaml:"dimension"`
}

// MCPConfig lists plugin subprocesses to launch at startup.
type MCPConfig struct {
	Plugins []MCPPluginSpec `yaml:"plugins"`
}

// MCPPluginSpec names one MCP plugin subprocess and its invocation.
type MCPPluginSpec struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// CronConfig lists trigger definitions loaded at startup.
type CronConfig struct {
	Enabled bool            `yaml:"enabled"`
	Jobs    []CronJobConfig `yaml:"jobs"`
}

// CronJobConfig describes one scheduled job entry.
type CronJobConfig struct {
	ID       string             `yaml:"id"`
	Name     string             `yaml:"name"`
	Type     string             `yaml:"type"` // "message", "agent", "webhook", "custom"
	Enabled  bool               `yaml:"enabled"`
	Schedule CronScheduleConfig `yaml:"schedule"`
	Message  *CronMessageConfig `yaml:"message,omitempty"`
	Webhook  *CronWebhookConfig `yaml:"webhook,omitempty"`
	Custom   *CronCustomConfig  `yaml:"custom,omitempty"`
	Retry    CronRetryConfig    `yaml:"retry"`
}

// CronScheduleConfig describes when a job fires: a one-time absolute time
// (At), a recurring interval (Every), or a cron expression (Cron).
type CronScheduleConfig struct {
	At       string        `yaml:"at,omitempty"`
	Every    time.Duration `yaml:"every,omitempty"`
	Cron     string        `yaml:"cron,omitempty"`
	Timezone string        `yaml:"timezone,omitempty"`
}

// CronMessageConfig describes a step fired onto a session from a cron job,
// either delivered verbatim (message jobs) or fed into the agent as a prompt
// (agent jobs).
type CronMessageConfig struct {
	Surface   string   `yaml:"surface"`
	SurfaceID string   `yaml:"surface_id"`
	Content   string   `yaml:"content"`
	Template  string   `yaml:"template"`
	Tools     []string `yaml:"tools,omitempty"`
}

// CronWebhookConfig describes an outbound HTTP call fired on schedule.
type CronWebhookConfig struct {
	URL     string            `yaml:"url"`
	Method  string            `yaml:"method"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Body    string            `yaml:"body"`
	Timeout time.Duration     `yaml:"timeout"`
	Auth    *CronWebhookAuth  `yaml:"auth,omitempty"`
}

// CronWebhookAuth configures authentication for a webhook job.
type CronWebhookAuth struct {
	Type   string `yaml:"type"` // "bearer", "basic", "api_key"
	Token  string `yaml:"token,omitempty"`
	User   string `yaml:"user,omitempty"`
	Pass   string `yaml:"pass,omitempty"`
	Header string `yaml:"header,omitempty"`
}

// CronCustomConfig names a registered handler for custom jobs.
type CronCustomConfig struct {
	Handler string         `yaml:"handler"`
	Args    map[string]any `yaml:"args,omitempty"`
}

// CronRetryConfig controls retry backoff for failed job executions.
type CronRetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// SubAgentConfig bounds the sub-agent dispatcher.
type SubAgentConfig struct {
	MaxConcurrent int           `yaml:"max_concurrent"`
	Timeout       time.Duration `yaml:"timeout"`
}

// SessionConfig bounds persisted turn history.
type SessionConfig struct {
	StateDir     string `yaml:"state_dir"`
	MaxTurnsKept int    `yaml:"max_turns_kept"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level          string   `yaml:"level"`
	Format         string   `yaml:"format"` // "json" or "text"
	RedactPatterns []string `yaml:"redact_patterns"`
}

// Load reads path, resolving $include directives, expanding ${VAR} references,
// applying defaults and environment-variable overrides, and validating the
// result.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}

	payload, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize config: %w", err)
	}
	expanded := os.ExpandEnv(string(payload))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}

	if cfg.Model.MaxTokens == 0 {
		cfg.Model.MaxTokens = 4096
	}
	if cfg.Model.EscalationSteps == 0 {
		cfg.Model.EscalationSteps = 3
	}

	if cfg.Context.TokenBudget == 0 {
		cfg.Context.TokenBudget = 100000
	}
	if cfg.Context.CompactionRatio == 0 {
		cfg.Context.CompactionRatio = 0.4
	}
	if cfg.Context.KeepRecentTurns == 0 {
		cfg.Context.KeepRecentTurns = 6
	}
	if cfg.Context.CharsPerToken == 0 {
		cfg.Context.CharsPerToken = 4
	}

	if cfg.Drift.EMADecay == 0 {
		cfg.Drift.EMADecay = 0.7
	}
	if cfg.Drift.CriticInterval == 0 {
		cfg.Drift.CriticInterval = 5
	}
	if cfg.Drift.PlanRecitationEvery == 0 {
		cfg.Drift.PlanRecitationEvery = 10
	}
	if cfg.Drift.CycleWindow == 0 {
		cfg.Drift.CycleWindow = 8
	}
	if len(cfg.Drift.Bands) == 0 {
		cfg.Drift.Bands = []int{3, 5, 7}
	}

	if cfg.Loop.MaxSteps == 0 {
		cfg.Loop.MaxSteps = 40
	}
	if cfg.Loop.MaxChainDepth == 0 {
		cfg.Loop.MaxChainDepth = 5
	}
	if cfg.Loop.StaleOutputAfter == 0 {
		cfg.Loop.StaleOutputAfter = 10 * time.Minute
	}
	if cfg.Loop.ToolParallelism == 0 {
		cfg.Loop.ToolParallelism = 4
	}
	if cfg.Loop.ToolTimeout == 0 {
		cfg.Loop.ToolTimeout = 30 * time.Second
	}
	if cfg.Loop.ToolMaxAttempts == 0 {
		cfg.Loop.ToolMaxAttempts = 1
	}

	if cfg.Approval.TTL == 0 {
		cfg.Approval.TTL = 15 * time.Minute
	}

	if cfg.Tools.OutputCharCap == 0 {
		cfg.Tools.OutputCharCap = 8000
	}

	if cfg.Memory.Backend == "" {
		cfg.Memory.Backend = "sqlitevec"
	}
	if cfg.Memory.Dimension == 0 {
		cfg.Memory.Dimension = 1536
	}

	if cfg.SubAgent.MaxConcurrent == 0 {
		cfg.SubAgent.MaxConcurrent = 3
	}

	if cfg.Session.StateDir == "" {
		cfg.Session.StateDir = "./state/sessions"
	}
	if cfg.Session.MaxTurnsKept == 0 {
		cfg.Session.MaxTurnsKept = 200
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// applyEnvOverrides lets deployment environments override the handful of
// levers that commonly vary per host without editing the config file.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if value := strings.TrimSpace(os.Getenv("AGENTCTL_HOST")); value != "" {
		cfg.Server.Host = value
	}
	if value := strings.TrimSpace(os.Getenv("AGENTCTL_HTTP_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.HTTPPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("AGENTCTL_CONTEXT_TOKEN_BUDGET")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Context.TokenBudget = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("AGENTCTL_KEEP_RECENT_TURNS")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Context.KeepRecentTurns = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("AGENTCTL_CRITIC_INTERVAL")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Drift.CriticInterval = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("AGENTCTL_MAX_CHAIN_DEPTH")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Loop.MaxChainDepth = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("AGENTCTL_AUTO_APPROVE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			cfg.Approval.AutoApprove = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("AGENTCTL_BACKGROUND_QUEUE_URL")); value != "" {
		cfg.Tools.BackgroundQueueURL = value
	}
	if value := strings.TrimSpace(os.Getenv("AGENTCTL_SESSION_STATE_DIR")); value != "" {
		cfg.Session.StateDir = value
	}
}

// ConfigValidationError reports one or more configuration problems.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	if cfg.Context.TokenBudget <= 0 {
		issues = append(issues, "context.token_budget must be > 0")
	}
	if cfg.Context.CompactionRatio <= 0 || cfg.Context.CompactionRatio >= 1 {
		issues = append(issues, "context.compaction_ratio must be between 0 and 1")
	}
	if cfg.Context.KeepRecentTurns < 0 {
		issues = append(issues, "context.keep_recent_turns must be >= 0")
	}
	if cfg.Drift.EMADecay <= 0 || cfg.Drift.EMADecay >= 1 {
		issues = append(issues, "drift.ema_decay must be between 0 and 1")
	}
	if cfg.Loop.MaxSteps <= 0 {
		issues = append(issues, "loop.max_steps must be > 0")
	}
	if cfg.Loop.MaxChainDepth <= 0 {
		issues = append(issues, "loop.max_chain_depth must be > 0")
	}
	if cfg.Loop.ToolParallelism <= 0 {
		issues = append(issues, "loop.tool_parallelism must be > 0")
	}

	defaultProvider := strings.TrimSpace(cfg.Model.DefaultProvider)
	if defaultProvider != "" {
		if _, ok := cfg.Model.Providers[defaultProvider]; !ok {
			issues = append(issues, fmt.Sprintf("model.default_provider %q has no matching entry in model.providers", defaultProvider))
		}
	}

	issues = append(issues, pluginValidationIssues(cfg)...)

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}
