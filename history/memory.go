package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/LyrebirdAI/console/types"
)

// MemoryStore is an in-memory Store for tests and single-process use. All
// methods are safe for concurrent use. Entries are deep-copied on the way
// in and out so callers cannot mutate stored state.
type MemoryStore struct {
	mu            sync.RWMutex
	cap           int
	conversations map[string]*Conversation
	artifacts     map[ArtifactKind][]*Artifact // newest first
	scripts       map[string][]*ScriptVersion  // newest first
	snapshot      *Snapshot
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithCap overrides the per-collection retention cap.
func WithCap(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.cap = n
		}
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		cap:           DefaultCap,
		conversations: make(map[string]*Conversation),
		artifacts:     make(map[ArtifactKind][]*Artifact),
		scripts:       make(map[string][]*ScriptVersion),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadConversation retrieves a conversation by ID.
func (s *MemoryStore) LoadConversation(_ context.Context, id string) (*Conversation, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyConversation(conv), nil
}

// SaveConversation persists a conversation, evicting the least recently
// updated one when the cap is exceeded.
func (s *MemoryStore) SaveConversation(_ context.Context, conv *Conversation) error {
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
	s.conversations[conv.ID] = stored

	for len(s.conversations) > s.cap {
		delete(s.conversations, s.oldestConversationLocked())
	}
	return nil
}

// ListConversations returns all conversations, most recently updated first.
func (s *MemoryStore) ListConversations(_ context.Context) ([]*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, copyConversation(conv))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// DeleteConversation removes a conversation if present.
func (s *MemoryStore) DeleteConversation(_ context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, id)
	return nil
}

// AddArtifact stores an artifact at the head of its kind's list.
func (s *MemoryStore) AddArtifact(_ context.Context, artifact *Artifact) error {
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

	list := append([]*Artifact{stored}, s.artifacts[stored.Kind]...)
	if len(list) > s.cap {
		list = list[:s.cap]
	}
	s.artifacts[stored.Kind] = list
	return nil
}

// RecentArtifacts returns up to n artifacts of the kind, newest first.
func (s *MemoryStore) RecentArtifacts(_ context.Context, kind ArtifactKind, n int) ([]*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.artifacts[kind]
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
func (s *MemoryStore) ClearArtifacts(_ context.Context, kind ArtifactKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.artifacts, kind)
	return nil
}

// SaveScriptVersion appends a revision for the script, evicting the oldest
// beyond the cap.
func (s *MemoryStore) SaveScriptVersion(_ context.Context, scriptID, content string) (*ScriptVersion, error) {
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

	list := append([]*ScriptVersion{version}, s.scripts[scriptID]...)
	if len(list) > s.cap {
		list = list[:s.cap]
	}
	s.scripts[scriptID] = list

	out := *version
	return &out, nil
}

// ScriptVersions returns the script's revisions, newest first.
func (s *MemoryStore) ScriptVersions(_ context.Context, scriptID string) ([]*ScriptVersion, error) {
	if scriptID == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.scripts[scriptID]
	out := make([]*ScriptVersion, 0, len(list))
	for _, version := range list {
		v := *version
		out = append(out, &v)
	}
	return out, nil
}

// SaveSnapshot replaces the autosave snapshot.
func (s *MemoryStore) SaveSnapshot(_ context.Context, snap *Snapshot) error {
	if snap == nil {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *snap
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now()
	}
	s.snapshot = &stored
	return nil
}

// LoadSnapshot returns the autosave snapshot.
func (s *MemoryStore) LoadSnapshot(_ context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil {
		return nil, ErrNotFound
	}
	out := *s.snapshot
	return &out, nil
}

// oldestConversationLocked returns the ID of the least recently updated
// conversation. Caller holds the write lock.
func (s *MemoryStore) oldestConversationLocked() string {
	var oldestID string
	var oldest time.Time
	for id, conv := range s.conversations {
		if oldestID == "" || conv.UpdatedAt.Before(oldest) {
			oldestID = id
			oldest = conv.UpdatedAt
		}
	}
	return oldestID
}

func copyConversation(conv *Conversation) *Conversation {
	out := *conv
	out.Messages = make([]types.Message, len(conv.Messages))
	copy(out.Messages, conv.Messages)
	for i, msg := range out.Messages {
		if msg.Attachments != nil {
			out.Messages[i].Attachments = append([]types.Attachment(nil), msg.Attachments...)
		}
	}
	return &out
}

func copyArtifact(artifact *Artifact) *Artifact {
	out := *artifact
	if artifact.Data != nil {
		out.Data = append([]byte(nil), artifact.Data...)
	}
	return &out
}
