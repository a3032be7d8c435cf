// Package history provides capped local persistence for console artifacts:
// conversations, generated media, script versions, and the workspace
// autosave snapshot. Backends share the same semantics so callers can swap
// an in-memory store for a file or Redis store without behavior changes.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/LyrebirdAI/console/types"
)

// DefaultCap is the number of entries retained per capped collection. When
// a save exceeds the cap the oldest entry is evicted.
const DefaultCap = 10

// ErrNotFound is returned when the requested entry does not exist.
var ErrNotFound = errors.New("history entry not found")

// ErrInvalidID is returned when an empty or malformed ID is provided.
var ErrInvalidID = errors.New("invalid history ID")

// NewID returns a fresh unique entry ID.
func NewID() string {
	return uuid.NewString()
}

// Conversation is one saved chat session.
type Conversation struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Messages  []types.Message `json:"messages"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ArtifactKind distinguishes the capped artifact collections.
type ArtifactKind string

// Artifact kinds.
const (
	KindImage    ArtifactKind = "image"
	KindAnalysis ArtifactKind = "analysis"
	KindVideo    ArtifactKind = "video"
)

// Artifact is one generated output worth keeping: an image, a media
// analysis, or a video result reference.
type Artifact struct {
	ID        string       `json:"id"`
	Kind      ArtifactKind `json:"kind"`
	Prompt    string       `json:"prompt"`
	MimeType  string       `json:"mime_type,omitempty"`
	Data      []byte       `json:"data,omitempty"`
	Text      string       `json:"text,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// ScriptVersion is one saved revision of a script document.
type ScriptVersion struct {
	ID      string    `json:"id"`
	Content string    `json:"content"`
	SavedAt time.Time `json:"saved_at"`
}

// Snapshot is the autosaved workspace state, restored on next launch.
type Snapshot struct {
	ConversationID string    `json:"conversation_id,omitempty"`
	ActiveTab      string    `json:"active_tab,omitempty"`
	Draft          string    `json:"draft,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ConversationStore persists chat sessions.
type ConversationStore interface {
	// LoadConversation retrieves a conversation by ID. Returns ErrNotFound
	// if it does not exist.
	LoadConversation(ctx context.Context, id string) (*Conversation, error)

	// SaveConversation persists a conversation, creating or replacing it.
	// Saving beyond the cap evicts the least recently updated conversation.
	SaveConversation(ctx context.Context, conv *Conversation) error

	// ListConversations returns all conversations, most recently updated
	// first.
	ListConversations(ctx context.Context) ([]*Conversation, error)

	// DeleteConversation removes a conversation. Deleting a missing ID is
	// not an error.
	DeleteConversation(ctx context.Context, id string) error
}

// ArtifactStore persists capped collections of generated outputs.
type ArtifactStore interface {
	// AddArtifact stores an artifact, evicting the oldest of the same kind
	// when the cap is exceeded. A missing ID or timestamp is filled in.
	AddArtifact(ctx context.Context, artifact *Artifact) error

	// RecentArtifacts returns up to n artifacts of the given kind, newest
	// first. n <= 0 means all retained entries.
	RecentArtifacts(ctx context.Context, kind ArtifactKind, n int) ([]*Artifact, error)

	// ClearArtifacts removes all artifacts of the given kind.
	ClearArtifacts(ctx context.Context, kind ArtifactKind) error
}

// ScriptStore persists script revisions, capped per script.
type ScriptStore interface {
	// SaveScriptVersion appends a new revision for the script and returns
	// it. Exceeding the cap evicts the oldest revision.
	SaveScriptVersion(ctx context.Context, scriptID, content string) (*ScriptVersion, error)

	// ScriptVersions returns the script's revisions, newest first.
	ScriptVersions(ctx context.Context, scriptID string) ([]*ScriptVersion, error)
}

// SnapshotStore persists the single autosave snapshot.
type SnapshotStore interface {
	// SaveSnapshot replaces the autosave snapshot.
	SaveSnapshot(ctx context.Context, snap *Snapshot) error

	// LoadSnapshot returns the autosave snapshot, or ErrNotFound if none
	// was saved.
	LoadSnapshot(ctx context.Context) (*Snapshot, error)
}

// Store is the full persistence surface. All backends implement it.
type Store interface {
	ConversationStore
	ArtifactStore
	ScriptStore
	SnapshotStore
}
