package agent

import (
	"context"
	"sync"
	"time"
)

// ProgressPhase describes what the loop is doing right now, for an observer
// thread that relays typing indicators or narration to a bridge.
type ProgressPhase string

const (
	PhaseRecordThinking ProgressPhase = "thinking"
	PhaseRecordDone     ProgressPhase = "done"
)

// ToolPhase formats the "tool:<names>" phase string used while tool calls
// for the current step are executing.
func ToolPhase(names []string) ProgressPhase {
	s := "tool:"
	for i, n := range names {
		if i > 0 {
			s += ","
		}
		s += n
	}
	return ProgressPhase(s)
}

// ProgressRecord is the shared mutable state between the loop thread and any
// observer thread (bridge typing indicators, mid-run steering, checkpoint
// prompts). All access goes through its methods, which hold an internal
// mutex — callers never read or write the fields directly.
type ProgressRecord struct {
	mu sync.Mutex

	currentStep         int
	effectiveMaxSteps   int
	phase               ProgressPhase
	lastAssistantPreview string
	toolUsage           map[string]int
	startedAt           time.Time

	checkpointPromptSent bool
	checkpointResponse   string

	extendedMaxSteps int

	interimMessages []string
	steeringQueue   []string

	expensiveSteps  int
	delegatedSteps  int
	firstAckSent    bool
}

// NewProgressRecord creates a record with startedAt set to now and the given
// initial step budget.
func NewProgressRecord(maxSteps int) *ProgressRecord {
	return &ProgressRecord{
		effectiveMaxSteps: maxSteps,
		phase:             PhaseRecordThinking,
		toolUsage:         make(map[string]int),
		startedAt:         time.Now(),
	}
}

// SetStep records the current loop step.
func (p *ProgressRecord) SetStep(step int) {
	p.mu.Lock()
	p.currentStep = step
	p.mu.Unlock()
}

// SetPhase records the current loop phase ("thinking", "tool:<names>", "done").
func (p *ProgressRecord) SetPhase(phase ProgressPhase) {
	p.mu.Lock()
	p.phase = phase
	p.mu.Unlock()
}

// SetPreview stashes a preview of the last assistant text for an observer
// to relay. Callers should truncate before calling if they want a bound
// shorter than the full text.
func (p *ProgressRecord) SetPreview(text string) {
	p.mu.Lock()
	p.lastAssistantPreview = text
	p.mu.Unlock()
}

// IncToolUsage bumps the usage counter for a tool name.
func (p *ProgressRecord) IncToolUsage(name string) {
	p.mu.Lock()
	if p.toolUsage == nil {
		p.toolUsage = make(map[string]int)
	}
	p.toolUsage[name]++
	p.mu.Unlock()
}

// Snapshot returns a point-in-time copy safe to read without holding the lock.
type ProgressSnapshot struct {
	CurrentStep          int
	EffectiveMaxSteps    int
	Phase                ProgressPhase
	LastAssistantPreview string
	ToolUsage            map[string]int
	StartedAt            time.Time
	CheckpointPromptSent bool
	CheckpointResponse   string
	ExtendedMaxSteps     int
	ExpensiveSteps       int
	DelegatedSteps       int
	FirstAckSent         bool
}

func (p *ProgressRecord) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	usage := make(map[string]int, len(p.toolUsage))
	for k, v := range p.toolUsage {
		usage[k] = v
	}
	return ProgressSnapshot{
		CurrentStep:          p.currentStep,
		EffectiveMaxSteps:    p.effectiveMaxSteps,
		Phase:                p.phase,
		LastAssistantPreview: p.lastAssistantPreview,
		ToolUsage:            usage,
		StartedAt:            p.startedAt,
		CheckpointPromptSent: p.checkpointPromptSent,
		CheckpointResponse:   p.checkpointResponse,
		ExtendedMaxSteps:     p.extendedMaxSteps,
		ExpensiveSteps:       p.expensiveSteps,
		DelegatedSteps:       p.delegatedSteps,
		FirstAckSent:         p.firstAckSent,
	}
}

// RequestExtendedMaxSteps records the user's "continue" reply, raising the
// step cap the loop will pick up on its next iteration-start check.
func (p *ProgressRecord) RequestExtendedMaxSteps(n int) {
	p.mu.Lock()
	p.extendedMaxSteps = n
	p.mu.Unlock()
}

// TakeExtendedMaxSteps returns a pending extended cap and clears it, or
// returns (0, false) if none is pending or it does not raise the cap.
func (p *ProgressRecord) TakeExtendedMaxSteps(currentMax int) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.extendedMaxSteps > currentMax {
		n := p.extendedMaxSteps
		p.extendedMaxSteps = 0
		p.effectiveMaxSteps = n
		return n, true
	}
	p.extendedMaxSteps = 0
	return 0, false
}

// RequestWrapUp marks that a wrap-up response has been recorded (the user
// replied to a checkpoint prompt asking to finish up rather than continue).
func (p *ProgressRecord) RequestWrapUp() {
	p.mu.Lock()
	p.checkpointResponse = "wrap_up"
	p.checkpointPromptSent = true
	p.mu.Unlock()
}

// TakeWrapUp reports whether a wrap-up was requested and not yet injected,
// and marks it injected.
func (p *ProgressRecord) TakeWrapUp() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.checkpointResponse == "wrap_up" {
		p.checkpointResponse = "wrap_up_injected"
		return true
	}
	return false
}

// MarkCheckpointPromptSent flags that the loop has asked the user whether to
// continue or wrap up.
func (p *ProgressRecord) MarkCheckpointPromptSent() {
	p.mu.Lock()
	p.checkpointPromptSent = true
	p.mu.Unlock()
}

// PushSteering enqueues a steering message produced by the user for the
// loop to inject on its next step.
func (p *ProgressRecord) PushSteering(text string) {
	p.mu.Lock()
	p.steeringQueue = append(p.steeringQueue, text)
	p.mu.Unlock()
}

// DrainSteering removes and returns all queued steering messages.
func (p *ProgressRecord) DrainSteering() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.steeringQueue) == 0 {
		return nil
	}
	out := p.steeringQueue
	p.steeringQueue = nil
	return out
}

// PushInterim enqueues narration produced by the loop for a bridge to relay.
func (p *ProgressRecord) PushInterim(text string) {
	p.mu.Lock()
	p.interimMessages = append(p.interimMessages, text)
	p.mu.Unlock()
}

// DrainInterim removes and returns all queued interim narration messages.
func (p *ProgressRecord) DrainInterim() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.interimMessages) == 0 {
		return nil
	}
	out := p.interimMessages
	p.interimMessages = nil
	return out
}

// MarkExpensiveStep increments the counter of steps classified as expensive
// (ran a heavyweight tool, escalated model, etc).
func (p *ProgressRecord) MarkExpensiveStep() {
	p.mu.Lock()
	p.expensiveSteps++
	p.mu.Unlock()
}

// MarkDelegatedStep increments the counter of steps that delegated to a
// sub-agent rather than doing the work inline.
func (p *ProgressRecord) MarkDelegatedStep() {
	p.mu.Lock()
	p.delegatedSteps++
	p.mu.Unlock()
}

// TakeFirstAck reports whether this is the first call (and records that an
// acknowledgement has now been sent), used to gate a single "got it, working
// on it" style narration per run.
func (p *ProgressRecord) TakeFirstAck() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.firstAckSent {
		return false
	}
	p.firstAckSent = true
	return true
}

type progressRecordKey struct{}

// WithProgressRecord attaches a ProgressRecord to ctx for the loop and any
// observer goroutine to share.
func WithProgressRecord(ctx context.Context, p *ProgressRecord) context.Context {
	if p == nil {
		return ctx
	}
	return context.WithValue(ctx, progressRecordKey{}, p)
}

// ProgressRecordFromContext retrieves the ProgressRecord stashed by
// WithProgressRecord, or nil if none is present.
func ProgressRecordFromContext(ctx context.Context) *ProgressRecord {
	p, _ := ctx.Value(progressRecordKey{}).(*ProgressRecord)
	return p
}
