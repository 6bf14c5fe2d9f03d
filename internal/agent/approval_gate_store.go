package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lumenforge/conduit/internal/approval"
)

// GateApprovalStore adapts a hash-keyed approval.Gate ledger to the
// ApprovalStore interface consulted by ApprovalChecker. Using it means the
// same ledger an operator approves or denies against through agentctl's
// approve/reject commands is the ledger the control loop blocks on, rather
// than two independent approval queues.
type GateApprovalStore struct {
	gate *approval.Gate
}

// NewGateApprovalStore wraps gate as an ApprovalStore.
func NewGateApprovalStore(gate *approval.Gate) *GateApprovalStore {
	return &GateApprovalStore{gate: gate}
}

// Create registers req with the gate, keyed by (tool, args) rather than
// req.ID: the gate assigns its own id, which Create writes back into req so
// the caller surfaces the id the ledger actually tracks.
func (s *GateApprovalStore) Create(ctx context.Context, req *ApprovalRequest) error {
	if req == nil {
		return nil
	}
	args := decodeToolArgs(req.Input)
	_, id := s.gate.Check(req.ToolName, args)
	req.ID = id
	return nil
}

// Get looks up a pending entry by id. Approved entries are consumed on
// their next Check and so are not retrievable here.
func (s *GateApprovalStore) Get(ctx context.Context, id string) (*ApprovalRequest, error) {
	for _, e := range s.gate.ListPending() {
		if e.ID == id {
			return entryToApprovalRequest(&e), nil
		}
	}
	return nil, nil
}

// Update applies req's decision to the gate: Allowed approves the entry,
// Denied removes it. Any other decision is a no-op.
func (s *GateApprovalStore) Update(ctx context.Context, req *ApprovalRequest) error {
	if req == nil {
		return nil
	}
	switch req.Decision {
	case ApprovalAllowed:
		return s.gate.Approve(req.ID)
	case ApprovalDenied:
		return s.gate.Deny(req.ID)
	}
	return nil
}

// ListPending returns all pending entries. The gate ledger is not
// partitioned per agent, so agentID is ignored.
func (s *GateApprovalStore) ListPending(ctx context.Context, agentID string) ([]*ApprovalRequest, error) {
	entries := s.gate.ListPending()
	out := make([]*ApprovalRequest, 0, len(entries))
	for i := range entries {
		out = append(out, entryToApprovalRequest(&entries[i]))
	}
	return out, nil
}

// Prune is a no-op: the gate ledger has no TTL concept of its own, an
// operator resolves entries explicitly via approve/reject.
func (s *GateApprovalStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

func decodeToolArgs(raw []byte) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"_raw": string(raw)}
	}
	return m
}

func entryToApprovalRequest(e *approval.Entry) *ApprovalRequest {
	decision := ApprovalPending
	if e.Status == approval.StatusApproved {
		decision = ApprovalAllowed
	}
	return &ApprovalRequest{
		ID:        e.ID,
		ToolName:  e.Tool,
		Input:     []byte(e.Args),
		CreatedAt: e.CreatedAt,
		Decision:  decision,
	}
}
