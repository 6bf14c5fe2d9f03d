package policy

import (
	"os"
	"strings"
)

// AutonomyLevel is a per-tool override of the default approval decision,
// set via the TOOL_AUTONOMY_<TOOL> environment variable.
type AutonomyLevel string

const (
	// AutonomyConfirm is the default: fall through to the static sensitive-tool rules.
	AutonomyConfirm AutonomyLevel = "confirm"
	// AutonomyAutonomous always skips approval for this tool.
	AutonomyAutonomous AutonomyLevel = "autonomous"
	// AutonomyBackground always skips approval; the tool is expected to run
	// via the background-queue off-ramp rather than inline.
	AutonomyBackground AutonomyLevel = "background"
	// AutonomySuggestOnly always requires approval for this tool, even if the
	// static rules below would otherwise allow it unattended.
	AutonomySuggestOnly AutonomyLevel = "suggest_only"
)

// sensitiveTools always require approval regardless of autonomy overrides
// that don't name them explicitly.
var sensitiveTools = map[string]bool{
	"exec":            true,
	"email_send":      true,
	"fs_write":        true,
	"notify":          true,
	"config_set":      true,
	"trigger_add":     true,
	"trigger_remove":  true,
	"self_upgrade":    true,
	"memory_export":   true,
}

// ToolAutonomy reads the TOOL_AUTONOMY_<TOOL> environment override for name,
// e.g. TOOL_AUTONOMY_EXEC=autonomous. Tool name matching is case-insensitive
// and non-alphanumeric characters become underscores.
func ToolAutonomy(name string) AutonomyLevel {
	key := "TOOL_AUTONOMY_" + envSafe(name)
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch AutonomyLevel(value) {
	case AutonomyAutonomous, AutonomyBackground, AutonomySuggestOnly:
		return AutonomyLevel(value)
	default:
		return AutonomyConfirm
	}
}

func envSafe(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// RequiresApproval implements the decision table from the approval gate
// design: bridge auto-approve, then per-tool autonomy override, then the
// static sensitive-tool list and the two argument-sensitive special cases
// (http_request with a non-GET method, scale with action "resize").
func RequiresApproval(name string, args map[string]any, autoApprove bool) bool {
	if autoApprove {
		return false
	}

	switch ToolAutonomy(name) {
	case AutonomyAutonomous, AutonomyBackground:
		return false
	case AutonomySuggestOnly:
		return true
	}

	if strings.HasPrefix(name, "mcp__") {
		return true
	}

	if sensitiveTools[name] {
		return true
	}

	switch name {
	case "http_request":
		method, _ := args["method"].(string)
		method = strings.ToUpper(strings.TrimSpace(method))
		if method == "" {
			method = "GET"
		}
		return method != "GET"
	case "scale":
		action, _ := args["action"].(string)
		return action == "resize"
	}

	return false
}
