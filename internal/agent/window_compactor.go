package agent

import (
	"context"
	"fmt"
	"strings"
)

// WindowCompactionConfig controls when and how the in-flight request
// message list is compacted mid-run, independent of the session-level
// summarizer that runs at the start of a turn. This is the "estimated
// tokens exceed a configured fraction of the window" trigger from the
// control-loop design: it fires inside the step loop, not between turns.
type WindowCompactionConfig struct {
	// ContextWindowTokens is the budget to compare usage against.
	// Default: 120000.
	ContextWindowTokens int

	// TriggerFraction is the fraction of ContextWindowTokens at which
	// compaction runs. Default: 0.82.
	TriggerFraction float64

	// KeepRecent is how many trailing messages are preserved verbatim.
	// Default: 6.
	KeepRecent int
}

// DefaultWindowCompactionConfig returns the reference thresholds.
func DefaultWindowCompactionConfig() WindowCompactionConfig {
	return WindowCompactionConfig{
		ContextWindowTokens: 120000,
		TriggerFraction:     0.82,
		KeepRecent:          6,
	}
}

// estimatedTokens approximates usage the same way the rest of the codebase
// does: total content characters divided by four. A real tokenizer would be
// strictly better but the loop cannot afford to block step start on one.
func estimatedTokens(messages []CompletionMessage) int {
	chars := 0
	for _, m := range messages {
		chars += len(m.Content)
		for _, tr := range m.ToolResults {
			chars += len(tr.Content)
		}
	}
	return chars / 4
}

// ShouldCompactWindow reports whether messages' estimated token usage
// exceeds cfg's trigger fraction of the context window.
func ShouldCompactWindow(messages []CompletionMessage, cfg WindowCompactionConfig) bool {
	if cfg.ContextWindowTokens <= 0 {
		cfg = DefaultWindowCompactionConfig()
	}
	if cfg.TriggerFraction <= 0 {
		cfg.TriggerFraction = DefaultWindowCompactionConfig().TriggerFraction
	}
	threshold := int(float64(cfg.ContextWindowTokens) * cfg.TriggerFraction)
	return estimatedTokens(messages) > threshold
}

const compactionSummaryTemplate = `GOAL: %s
PROGRESS: %s
PENDING: %s
KEY_FILES: %s
AVOID: %s
CORRECTIONS: %s
SECURITY_INCIDENTS: %s
CONTEXT: %s`

// BuildWindowCompactionPrompt renders the strict template the one-shot
// summarization call is asked to fill in for the messages being compacted.
func BuildWindowCompactionPrompt(messages []CompletionMessage) string {
	var sb strings.Builder
	sb.WriteString("Summarize the conversation below so a new assistant turn can resume it with no other context. ")
	sb.WriteString("Reply with exactly these eight lines, each filled in (use \"none\" if empty):\n\n")
	sb.WriteString(fmt.Sprintf(compactionSummaryTemplate, "…", "…", "…", "…", "…", "…", "…", "…"))
	sb.WriteString("\n\nConversation:\n\n")
	for _, m := range messages {
		if m.Content == "" && len(m.ToolResults) == 0 && len(m.ToolCalls) == 0 {
			continue
		}
		sb.WriteString("[" + m.Role + "] ")
		if m.Content != "" {
			sb.WriteString(m.Content)
		}
		for _, tc := range m.ToolCalls {
			sb.WriteString(fmt.Sprintf(" <tool_call %s>", tc.Name))
		}
		for _, tr := range m.ToolResults {
			sb.WriteString(fmt.Sprintf(" <tool_result error=%v>%s</tool_result>", tr.IsError, tr.Content))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// ExtractGoalLine pulls the "GOAL: …" line out of a compaction summary, or
// returns "" if the summary carries none.
func ExtractGoalLine(summary string) string {
	for _, line := range strings.Split(summary, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "GOAL:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "GOAL:"))
		}
	}
	return ""
}

// modelTextCaller is satisfied by anything that can run a one-shot,
// non-streaming prompt through the model hook — used by both window
// compaction and the critic so neither has to know about provider wiring.
type modelTextCaller interface {
	callModelText(ctx context.Context, system, prompt, model string) (string, error)
}

// CompactWindow implements the mid-run context compactor (spec §4.3):
// leading system messages and the last cfg.KeepRecent messages are kept
// verbatim; everything between is replaced by a one-shot summary call
// rendered into a synthetic user/assistant acknowledgement pair. It returns
// the rewritten message list and the extracted GOAL line (empty if the
// summary omitted one or no compaction was needed).
func CompactWindow(ctx context.Context, caller modelTextCaller, model string, messages []CompletionMessage, cfg WindowCompactionConfig) ([]CompletionMessage, string, error) {
	if cfg.KeepRecent <= 0 {
		cfg.KeepRecent = DefaultWindowCompactionConfig().KeepRecent
	}

	systemCount := 0
	for _, m := range messages {
		if m.Role != "system" {
			break
		}
		systemCount++
	}

	if len(messages) < cfg.KeepRecent+2 {
		return messages, "", nil
	}

	tailStart := len(messages) - cfg.KeepRecent
	if tailStart < systemCount {
		tailStart = systemCount
	}

	toSummarize := messages[systemCount:tailStart]
	if len(toSummarize) == 0 {
		return messages, "", nil
	}

	prompt := BuildWindowCompactionPrompt(toSummarize)
	summary, err := caller.callModelText(ctx, "You compact agent run history into a fixed template. Reply with only the template lines.", prompt, model)
	if err != nil {
		// Compaction failures are non-fatal (spec §7 class 5): the loop
		// continues uncompacted and will retry on a later step.
		return messages, "", err
	}

	out := make([]CompletionMessage, 0, systemCount+2+cfg.KeepRecent)
	out = append(out, messages[:systemCount]...)
	out = append(out, CompletionMessage{
		Role:    "user",
		Content: "[Context compacted. Summary of prior conversation:]\n" + summary,
	})
	out = append(out, CompletionMessage{
		Role:    "assistant",
		Content: "Understood. Continuing from the summary above.",
	})
	out = append(out, messages[tailStart:]...)

	return out, ExtractGoalLine(summary), nil
}
