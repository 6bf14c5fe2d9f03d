package agent

import (
	"context"
	"fmt"
	"strings"
)

// CriticConfig controls the independent grounding-check call fired
// periodically during a run.
type CriticConfig struct {
	// Interval is the number of steps between critic fires. Default: 4.
	Interval int

	// Model, when set, overrides the run's model for the critic call
	// (cheaper/faster models are appropriate here).
	Model string
}

// DefaultCriticConfig returns the reference interval.
func DefaultCriticConfig() CriticConfig {
	return CriticConfig{Interval: 4}
}

const criticSystemPrompt = `You are a grounding critic for an autonomous agent. You are given the user's
original request, the agent's recent turns, and its step budget. Decide
whether the agent's latest assistant turn makes any factual claim that is
NOT directly supported by the tool output already in the transcript.

If every claim is grounded, reply with exactly: OK
If not, reply with a short, direct correction the agent should see next,
starting with "Correction:". Do not add any other commentary.`

// BuildCriticPrompt renders the context the critic needs to make its call:
// the original prompt, the tail of the conversation, and the step budget.
func BuildCriticPrompt(originalPrompt string, recent []CompletionMessage, step, maxSteps int) string {
	var sb strings.Builder
	sb.WriteString("Original request: ")
	sb.WriteString(originalPrompt)
	sb.WriteString(fmt.Sprintf("\n\nStep %d of %d.\n\nRecent turns:\n", step, maxSteps))
	for _, m := range recent {
		if m.Content == "" && len(m.ToolResults) == 0 {
			continue
		}
		sb.WriteString("[" + m.Role + "] ")
		sb.WriteString(m.Content)
		for _, tr := range m.ToolResults {
			sb.WriteString(fmt.Sprintf(" <tool_result error=%v>%s</tool_result>", tr.IsError, tr.Content))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// RunCritic fires the grounding critic and returns a correction string, or
// "" if the critic found nothing to correct.
func RunCritic(ctx context.Context, caller modelTextCaller, cfg CriticConfig, originalPrompt string, recent []CompletionMessage, step, maxSteps int) (string, error) {
	prompt := BuildCriticPrompt(originalPrompt, recent, step, maxSteps)
	reply, err := caller.callModelText(ctx, criticSystemPrompt, prompt, cfg.Model)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" || reply == "OK" || strings.EqualFold(reply, "ok") {
		return "", nil
	}
	if !strings.HasPrefix(reply, "Correction:") {
		// Be lenient about exact formatting: any non-"OK" reply is a
		// correction worth surfacing.
		return reply, nil
	}
	return strings.TrimSpace(strings.TrimPrefix(reply, "Correction:")), nil
}

// recentTail returns up to n trailing messages, for passing a bounded
// window to the critic instead of the full request history.
func recentTail(messages []CompletionMessage, n int) []CompletionMessage {
	if len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}
