package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/LyrebirdAI/console/logger"
)

// fileState is the on-disk document holding everything the store retains.
type fileState struct {
	Conversations map[string]*Conversation     `json:"conversations,omitempty"`
	Artifacts     map[ArtifactKind][]*Artifact `json:"artifacts,omitempty"`
	Scripts       map[string][]*ScriptVersion  `json:"scripts,omitempty"`
	Snapshot      *Snapshot                    `json:"snapshot,omitempty"`
}

// FileStore is a Store backed by a single JSON file. Writes are atomic
// (temp file plus rename). A corrupt or unreadable file degrades to an
// empty store rather than failing: local history is a convenience, never
// worth blocking the console over.
type FileStore struct {
	path string
	cap  int

	mu    sync.Mutex
	state fileState
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithFileCap overrides the per-collection retention cap.
func WithFileCap(n int) FileOption {
	return func(s *FileStore) {
		if n > 0 {
			s.cap = n
		}
	}
}

// NewFileStore opens or creates a JSON-file-backed store at path. The
// parent directory is created if missing.
func NewFileStore(path string, opts ...FileOption) (*FileStore, error) {
	s := &FileStore{path: path, cap: DefaultCap}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	s.state = loadFileState(path)
	return s, nil
}

// loadFileState reads the document, tolerating absence and corruption.
func loadFileState(path string) fileState {
	empty := fileState{
		Conversations: make(map[string]*Conversation),
		Artifacts:     make(map[ArtifactKind][]*Artifact),
		Scripts:       make(map[string][]*ScriptVersion),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("failed to read history file, starting empty", "path", path, "error", err)
		}
		return empty
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		logger.Warn("corrupt history file, starting empty", "path", path, "error", err)
		return empty
	}

	if state.Conversations == nil {
		state.Conversations = make(map[string]*Conversation)
	}
	if state.Artifacts == nil {
		state.Artifacts = make(map[ArtifactKind][]*Artifact)
	}
	if state.Scripts == nil {
		state.Scripts = make(map[string][]*ScriptVersion)
	}
	return state
}

// persistLocked writes the document atomically. Caller holds the lock.
func (s *FileStore) persistLocked() error {
	data, err := json.MarshalIndent(&s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace history file: %w", err)
	}
	return nil
}

// LoadConversation retrieves a conversation by ID.
func (s *FileStore) LoadConversation(_ context.Context, id string) (*Conversation, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.state.Conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyConversation(conv), nil
}

// SaveConversation persists a conversation and evicts beyond the cap.
func (s *FileStore) SaveConversation(_ context.Context, conv *Conversation) error {
	if conv == nil || conv.ID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := copyConversation(conv)
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = stored.UpdatedAt
	}
	s.state.Conversations[conv.ID] = stored

	for len(s.state.Conversations) > s.cap {
		oldestID := ""
		var oldest time.Time
		for id, c := range s.state.Conversations {
			if oldestID == "" || c.UpdatedAt.Before(oldest) {
				oldestID = id
				oldest = c.UpdatedAt
			}
		}
		delete(s.state.Conversations, oldestID)
	}

	return s.persistLocked()
}

// ListConversations returns all conversations, most recently updated first.
func (s *FileStore) ListConversations(_ context.Context) ([]*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Conversation, 0, len(s.state.Conversations))
	for _, conv := range s.state.Conversations {
		out = append(out, copyConversation(conv))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// DeleteConversation removes a conversation if present.
func (s *FileStore) DeleteConversation(_ context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.Conversations[id]; !ok {
		return nil
	}
	delete(s.state.Conversations, id)
	return s.persistLocked()
}

// AddArtifact stores an artifact at the head of its kind's list.
func (s *FileStore) AddArtifact(_ context.Context, artifact *Artifact) error {
	if artifact == nil {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := copyArtifact(artifact)
	if stored.ID == "" {
		stored.ID = NewID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	list := append([]*Artifact{stored}, s.state.Artifacts[stored.Kind]...)
	if len(list) > s.cap {
		list = list[:s.cap]
	}
	s.state.Artifacts[stored.Kind] = list

	return s.persistLocked()
}

// RecentArtifacts returns up to n artifacts of the kind, newest first.
func (s *FileStore) RecentArtifacts(_ context.Context, kind ArtifactKind, n int) ([]*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.state.Artifacts[kind]
	if n <= 0 || n > len(list) {
		n = len(list)
	}
	out := make([]*Artifact, 0, n)
	for _, artifact := range list[:n] {
		out = append(out, copyArtifact(artifact))
	}
	return out, nil
}

// ClearArtifacts removes all artifacts of the kind.
func (s *FileStore) ClearArtifacts(_ context.Context, kind ArtifactKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.Artifacts[kind]; !ok {
		return nil
	}
	delete(s.state.Artifacts, kind)
	return s.persistLocked()
}

// SaveScriptVersion appends a revision for the script and evicts beyond
// the cap.
func (s *FileStore) SaveScriptVersion(_ context.Context, scriptID, content string) (*ScriptVersion, error) {
	if scriptID == "" {
		return nil, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	version := &ScriptVersion{
		ID:      NewID(),
		Content: content,
		SavedAt: time.Now(),
	}

	list := append([]*ScriptVersion{version}, s.state.Scripts[scriptID]...)
	if len(list) > s.cap {
		list = list[:s.cap]
	}
	s.state.Scripts[scriptID] = list

	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	out := *version
	return &out, nil
}

// ScriptVersions returns the script's revisions, newest first.
func (s *FileStore) ScriptVersions(_ context.Context, scriptID string) ([]*ScriptVersion, error) {
	if scriptID == "" {
		return nil, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.state.Scripts[scriptID]
	out := make([]*ScriptVersion, 0, len(list))
	for _, version := range list {
		v := *version
		out = append(out, &v)
	}
	return out, nil
}

// SaveSnapshot replaces the autosave snapshot.
func (s *FileStore) SaveSnapshot(_ context.Context, snap *Snapshot) error {
	if snap == nil {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *snap
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now()
	}
	s.state.Snapshot = &stored
	return s.persistLocked()
}

// LoadSnapshot returns the autosave snapshot.
func (s *FileStore) LoadSnapshot(_ context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Snapshot == nil {
		return nil, ErrNotFound
	}
	out := *s.state.Snapshot
	return &out, nil
}
