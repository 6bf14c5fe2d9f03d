package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lumenforge/conduit/pkg/models"
)

// FileStore persists sessions and their message history as one JSON file per
// session under dir, so a CLI invocation can resume a session across process
// restarts without a database. It wraps an in-memory index for lookups and
// writes the affected session's file through on every mutation.
type FileStore struct {
	dir string
	mu  sync.Mutex
	mem *MemoryStore
}

type fileStoreRecord struct {
	Session  *models.Session   `json:"session"`
	Messages []*models.Message `json:"messages"`
}

// NewFileStore opens (or creates) a file-backed session store rooted at dir,
// loading any previously persisted sessions into memory.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("state dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session state dir: %w", err)
	}
	fs := &FileStore{dir: dir, mem: NewMemoryStore()}
	if err := fs.loadAll(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) loadAll() error {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return fmt.Errorf("read session state dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(fs.dir, entry.Name()))
		if err != nil {
			continue
		}
		var rec fileStoreRecord
		if err := json.Unmarshal(data, &rec); err != nil || rec.Session == nil {
			continue
		}
		fs.mem.sessions[rec.Session.ID] = rec.Session
		if rec.Session.Key != "" {
			fs.mem.byKey[rec.Session.Key] = rec.Session.ID
		}
		fs.mem.messages[rec.Session.ID] = rec.Messages
	}
	return nil
}

func (fs *FileStore) path(sessionID string) string {
	return filepath.Join(fs.dir, SanitizeSessionFilename(sessionID)+".json")
}

func (fs *FileStore) persist(ctx context.Context, sessionID string) error {
	session, err := fs.mem.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	history, err := fs.mem.GetHistory(ctx, sessionID, 0)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(fileStoreRecord{Session: session, Messages: history}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	return os.WriteFile(fs.path(sessionID), data, 0o644)
}

// Create persists a new session record, delegating id/timestamp generation
// to the in-memory layer.
func (fs *FileStore) Create(ctx context.Context, session *models.Session) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.mem.Create(ctx, session); err != nil {
		return err
	}
	return fs.persist(ctx, session.ID)
}

// Get returns the session with the given id.
func (fs *FileStore) Get(ctx context.Context, id string) (*models.Session, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.mem.Get(ctx, id)
}

// Update persists changes to an existing session.
func (fs *FileStore) Update(ctx context.Context, session *models.Session) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.mem.Update(ctx, session); err != nil {
		return err
	}
	return fs.persist(ctx, session.ID)
}

// Delete removes a session's in-memory record and its file on disk.
func (fs *FileStore) Delete(ctx context.Context, id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.mem.Delete(ctx, id); err != nil {
		return err
	}
	if err := os.Remove(fs.path(id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// GetByKey looks up a session by its lookup key.
func (fs *FileStore) GetByKey(ctx context.Context, key string) (*models.Session, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.mem.GetByKey(ctx, key)
}

// GetOrCreate returns the existing session for key, or creates and persists
// a new one.
func (fs *FileStore) GetOrCreate(ctx context.Context, key string, agentID string, surface models.SurfaceType, surfaceID string) (*models.Session, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	session, err := fs.mem.GetOrCreate(ctx, key, agentID, surface, surfaceID)
	if err != nil {
		return nil, err
	}
	if err := fs.persist(ctx, session.ID); err != nil {
		return nil, err
	}
	return session, nil
}

// List returns sessions matching agentID and opts.
func (fs *FileStore) List(ctx context.Context, agentID string, opts ListOptions) ([]*models.Session, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.mem.List(ctx, agentID, opts)
}

// AppendMessage appends msg to sessionID's history and persists the record.
func (fs *FileStore) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.mem.AppendMessage(ctx, sessionID, msg); err != nil {
		return err
	}
	return fs.persist(ctx, sessionID)
}

// GetHistory returns up to limit trailing messages for sessionID (0 = all).
func (fs *FileStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.mem.GetHistory(ctx, sessionID, limit)
}
