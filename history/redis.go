package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LyrebirdAI/console/logger"
)

// RedisStore is a Redis-backed Store for deployments where history must
// survive the process or be shared across instances. Values are JSON.
// Capped collections use LPUSH plus LTRIM; conversations keep a sorted set
// index scored by update time for listing and eviction.
type RedisStore struct {
	client *redis.Client
	cap    int
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisCap overrides the per-collection retention cap.
func WithRedisCap(n int) RedisOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.cap = n
		}
	}
}

// WithTTL sets the expiry applied to conversation keys. Zero means no
// expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix. Default is "console".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a Redis-backed store using the given client.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		cap:    DefaultCap,
		prefix: "console",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) conversationKey(id string) string {
	return fmt.Sprintf("%s:conv:%s", s.prefix, id)
}

func (s *RedisStore) conversationIndexKey() string {
	return s.prefix + ":conv:index"
}

func (s *RedisStore) artifactKey(kind ArtifactKind) string {
	return fmt.Sprintf("%s:artifact:%s", s.prefix, kind)
}

func (s *RedisStore) scriptKey(id string) string {
	return fmt.Sprintf("%s:script:%s", s.prefix, id)
}

func (s *RedisStore) snapshotKey() string {
	return s.prefix + ":snapshot"
}

// LoadConversation retrieves a conversation by ID.
func (s *RedisStore) LoadConversation(ctx context.Context, id string) (*Conversation, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	data, err := s.client.Get(ctx, s.conversationKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	return &conv, nil
}

// SaveConversation persists a conversation, updates the index, and evicts
// the least recently updated entries beyond the cap.
func (s *RedisStore) SaveConversation(ctx context.Context, conv *Conversation) error {
	if conv == nil || conv.ID == "" {
		return ErrInvalidID
	}

	stored := copyConversation(conv)
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = stored.UpdatedAt
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.conversationKey(conv.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.conversationIndexKey(), redis.Z{
		Score:  float64(stored.UpdatedAt.UnixNano()),
		Member: conv.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}

	return s.evictConversations(ctx)
}

// evictConversations trims the index to the cap, deleting evicted bodies.
func (s *RedisStore) evictConversations(ctx context.Context) error {
	count, err := s.client.ZCard(ctx, s.conversationIndexKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to count conversations: %w", err)
	}
	excess := count - int64(s.cap)
	if excess <= 0 {
		return nil
	}

	// Lowest scores are the least recently updated.
	evicted, err := s.client.ZRange(ctx, s.conversationIndexKey(), 0, excess-1).Result()
	if err != nil {
		return fmt.Errorf("failed to find evictable conversations: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, id := range evicted {
		pipe.Del(ctx, s.conversationKey(id))
		pipe.ZRem(ctx, s.conversationIndexKey(), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to evict conversations: %w", err)
	}
	return nil
}

// ListConversations returns all conversations, most recently updated first.
// Entries whose body is missing or corrupt are skipped.
func (s *RedisStore) ListConversations(ctx context.Context) ([]*Conversation, error) {
	ids, err := s.client.ZRevRange(ctx, s.conversationIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	out := make([]*Conversation, 0, len(ids))
	for _, id := range ids {
		conv, err := s.LoadConversation(ctx, id)
		if err != nil {
			logger.Warn("skipping unreadable conversation", "id", id, "error", err)
			continue
		}
		out = append(out, conv)
	}
	return out, nil
}

// DeleteConversation removes a conversation and its index entry.
func (s *RedisStore) DeleteConversation(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.conversationKey(id))
	pipe.ZRem(ctx, s.conversationIndexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// AddArtifact pushes an artifact onto its kind's list and trims to the cap.
func (s *RedisStore) AddArtifact(ctx context.Context, artifact *Artifact) error {
	if artifact == nil {
		return ErrInvalidID
	}

	stored := copyArtifact(artifact)
	if stored.ID == "" {
		stored.ID = NewID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.artifactKey(stored.Kind), data)
	pipe.LTrim(ctx, s.artifactKey(stored.Kind), 0, int64(s.cap)-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add artifact: %w", err)
	}
	return nil
}

// RecentArtifacts returns up to n artifacts of the kind, newest first.
func (s *RedisStore) RecentArtifacts(ctx context.Context, kind ArtifactKind, n int) ([]*Artifact, error) {
	stop := int64(n) - 1
	if n <= 0 {
		stop = -1
	}

	items, err := s.client.LRange(ctx, s.artifactKey(kind), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load artifacts: %w", err)
	}

	out := make([]*Artifact, 0, len(items))
	for _, item := range items {
		var artifact Artifact
		if err := json.Unmarshal([]byte(item), &artifact); err != nil {
			logger.Warn("skipping corrupt artifact entry", "kind", kind, "error", err)
			continue
		}
		out = append(out, &artifact)
	}
	return out, nil
}

// ClearArtifacts removes all artifacts of the kind.
func (s *RedisStore) ClearArtifacts(ctx context.Context, kind ArtifactKind) error {
	if err := s.client.Del(ctx, s.artifactKey(kind)).Err(); err != nil {
		return fmt.Errorf("failed to clear artifacts: %w", err)
	}
	return nil
}

// SaveScriptVersion pushes a revision onto the script's list and trims to
// the cap.
func (s *RedisStore) SaveScriptVersion(ctx context.Context, scriptID, content string) (*ScriptVersion, error) {
	if scriptID == "" {
		return nil, ErrInvalidID
	}

	version := &ScriptVersion{
		ID:      NewID(),
		Content: content,
		SavedAt: time.Now(),
	}
	data, err := json.Marshal(version)
	if err != nil {
		return nil, fmt.Errorf("failed to encode script version: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.scriptKey(scriptID), data)
	pipe.LTrim(ctx, s.scriptKey(scriptID), 0, int64(s.cap)-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to save script version: %w", err)
	}
	return version, nil
}

// ScriptVersions returns the script's revisions, newest first.
func (s *RedisStore) ScriptVersions(ctx context.Context, scriptID string) ([]*ScriptVersion, error) {
	if scriptID == "" {
		return nil, ErrInvalidID
	}

	items, err := s.client.LRange(ctx, s.scriptKey(scriptID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load script versions: %w", err)
	}

	out := make([]*ScriptVersion, 0, len(items))
	for _, item := range items {
		var version ScriptVersion
		if err := json.Unmarshal([]byte(item), &version); err != nil {
			logger.Warn("skipping corrupt script version", "script_id", scriptID, "error", err)
			continue
		}
		out = append(out, &version)
	}
	return out, nil
}

// SaveSnapshot replaces the autosave snapshot.
func (s *RedisStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return ErrInvalidID
	}

	stored := *snap
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now()
	}
	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.snapshotKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the autosave snapshot.
func (s *RedisStore) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	data, err := s.client.Get(ctx, s.snapshotKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}
