// Package approval implements the hash-based approval gate: a ledger of
// pending and approved tool invocations keyed by a canonical hash of
// (tool name, arguments), consulted by the tool executor before any
// sensitive tool runs.
package approval

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/zeebo/blake3"
)

// Status is the lifecycle state of an Entry.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
)

var (
	ErrNotFound = errors.New("approval entry not found")
)

// Entry is one row of the approval ledger.
type Entry struct {
	ID        string    `json:"id"`
	Tool      string    `json:"tool"`
	Hash      string    `json:"hash"`
	Args      string    `json:"args"` // canonical JSON, preserved for replay on approve
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Gate is the in-memory approval ledger. Callers persist it to disk via
// Snapshot/Restore around process lifetime boundaries (spec §9: the ledger
// must preserve insertion order so "list pending" has a stable view).
type Gate struct {
	mu      sync.Mutex
	order   []string // hash, insertion order
	entries map[string]*Entry
	seq     int64
}

// New returns an empty Gate.
func New() *Gate {
	return &Gate{entries: make(map[string]*Entry)}
}

// Hash computes the canonical (key-ordered) JSON hash of (tool, args) used
// to identify an approval entry, per spec §4.6.
func Hash(tool string, args map[string]any) string {
	canonical := canonicalize(map[string]any{"tool": tool, "args": args})
	sum := blake3.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// canonicalize serializes v with map keys sorted, so that semantically
// identical argument sets always hash the same way regardless of the
// order Go's map iteration (or the original JSON) presented them in.
func canonicalize(v any) string {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := "{"
		for i, k := range keys {
			if i > 0 {
				out += ","
			}
			kb, _ := json.Marshal(k)
			out += string(kb) + ":" + canonicalize(t[k])
		}
		return out + "}"
	case []any:
		out := "["
		for i, e := range t {
			if i > 0 {
				out += ","
			}
			out += canonicalize(e)
		}
		return out + "]"
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// Check implements the gate flow from spec §4.6:
//  1. an approved entry for this hash exists → consume it (single-use) and allow;
//  2. a pending entry exists → return its id, still pending;
//  3. otherwise insert a new pending entry and return its id.
//
// allowed=true means the call may proceed immediately. When allowed=false,
// id names the (possibly newly created) pending entry.
func (g *Gate) Check(tool string, args map[string]any) (allowed bool, id string) {
	hash := Hash(tool, args)

	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.entries[hash]; ok {
		if existing.Status == StatusApproved {
			delete(g.entries, hash)
			g.removeFromOrder(hash)
			return true, existing.ID
		}
		return false, existing.ID
	}

	argsJSON, _ := json.Marshal(args)
	g.seq++
	entry := &Entry{
		ID:        generateID(hash, g.seq),
		Tool:      tool,
		Hash:      hash,
		Args:      string(argsJSON),
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	g.entries[hash] = entry
	g.order = append(g.order, hash)
	return false, entry.ID
}

// Approve flips the named pending entry to approved. Idempotent: a second
// call against an already-consumed or already-approved id is a no-op success
// (spec §8 law: "Idempotence of approval").
func (g *Gate) Approve(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry := g.findByID(id)
	if entry == nil {
		return nil
	}
	entry.Status = StatusApproved
	return nil
}

// Deny removes the named pending entry entirely.
func (g *Gate) Deny(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry := g.findByID(id)
	if entry == nil {
		return ErrNotFound
	}
	delete(g.entries, entry.Hash)
	g.removeFromOrder(entry.Hash)
	return nil
}

// ListPending returns pending entries in insertion order.
func (g *Gate) ListPending() []Entry {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []Entry
	for _, hash := range g.order {
		entry, ok := g.entries[hash]
		if ok && entry.Status == StatusPending {
			out = append(out, *entry)
		}
	}
	return out
}

func (g *Gate) findByID(id string) *Entry {
	for _, entry := range g.entries {
		if entry.ID == id {
			return entry
		}
	}
	return nil
}

func (g *Gate) removeFromOrder(hash string) {
	for i, h := range g.order {
		if h == hash {
			g.order = append(g.order[:i], g.order[i+1:]...)
			return
		}
	}
}

// Snapshot serializes the ledger to JSON, preserving insertion order, so it
// can be restored after a process restart (the gate itself is in-memory).
func (g *Gate) Snapshot() ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entries := make([]*Entry, 0, len(g.order))
	for _, hash := range g.order {
		if entry, ok := g.entries[hash]; ok {
			entries = append(entries, entry)
		}
	}
	return json.MarshalIndent(entries, "", "  ")
}

// WriteFile persists a Snapshot to path.
func (g *Gate) WriteFile(path string) error {
	data, err := g.Snapshot()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Restore replaces the ledger's contents with entries decoded from data,
// restoring insertion order.
func (g *Gate) Restore(data []byte) error {
	var entries []*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decode approval ledger: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.entries = make(map[string]*Entry, len(entries))
	g.order = g.order[:0]
	for _, entry := range entries {
		g.entries[entry.Hash] = entry
		g.order = append(g.order, entry.Hash)
	}
	return nil
}

// ReadFile loads a ledger previously written with WriteFile. A missing file
// is not an error; the gate starts empty.
func (g *Gate) ReadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return g.Restore(data)
}

func generateID(hash string, _ int64) string {
	prefix := hash
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("apr_%d_%s", time.Now().UnixNano(), prefix)
}
