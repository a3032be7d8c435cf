package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LyrebirdAI/console/types"
)

// storeUnderTest builds each backend once so every behavior test runs
// against all three.
func storeUnderTest(t *testing.T) map[string]Store {
	t.Helper()

	fileStore, err := NewFileStore(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	redisStore := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fileStore,
		"redis":  redisStore,
	}
}

func TestConversationRoundTrip(t *testing.T) {
	for name, store := range storeUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			conv := &Conversation{
				ID:    NewID(),
				Title: "greetings",
				Messages: []types.Message{
					{Role: types.RoleUser, Text: "hello"},
					{Role: types.RoleModel, Text: "Hi there!"},
				},
			}

			require.NoError(t, store.SaveConversation(ctx, conv))

			loaded, err := store.LoadConversation(ctx, conv.ID)
			require.NoError(t, err)
			assert.Equal(t, conv.Title, loaded.Title)
			require.Len(t, loaded.Messages, 2)
			assert.Equal(t, "hello", loaded.Messages[0].Text)
			assert.Equal(t, "Hi there!", loaded.Messages[1].Text)
			assert.False(t, loaded.UpdatedAt.IsZero())
		})
	}
}

func TestConversationNotFound(t *testing.T) {
	for name, store := range storeUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.LoadConversation(context.Background(), "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = store.LoadConversation(context.Background(), "")
			assert.ErrorIs(t, err, ErrInvalidID)
		})
	}
}

func TestConversationEviction(t *testing.T) {
	for name, store := range storeUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now().Add(-time.Hour)

			var firstID string
			for i := 0; i < DefaultCap+1; i++ {
				conv := &Conversation{
					ID:        NewID(),
					Title:     fmt.Sprintf("conversation %d", i),
					UpdatedAt: base.Add(time.Duration(i) * time.Minute),
				}
				if i == 0 {
					firstID = conv.ID
				}
				require.NoError(t, store.SaveConversation(ctx, conv))
			}

			list, err := store.ListConversations(ctx)
			require.NoError(t, err)
			assert.Len(t, list, DefaultCap)

			// The least recently updated entry is the one evicted.
			_, err = store.LoadConversation(ctx, firstID)
			assert.ErrorIs(t, err, ErrNotFound)

			// Newest first.
			assert.Equal(t, fmt.Sprintf("conversation %d", DefaultCap), list[0].Title)
		})
	}
}

func TestConversationDelete(t *testing.T) {
	for name, store := range storeUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			conv := &Conversation{ID: NewID(), Title: "doomed"}
			require.NoError(t, store.SaveConversation(ctx, conv))

			require.NoError(t, store.DeleteConversation(ctx, conv.ID))
			_, err := store.LoadConversation(ctx, conv.ID)
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting again is a no-op.
			assert.NoError(t, store.DeleteConversation(ctx, conv.ID))
		})
	}
}

func TestArtifactCapAndOrder(t *testing.T) {
	for name, store := range storeUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i := 0; i < DefaultCap+3; i++ {
				require.NoError(t, store.AddArtifact(ctx, &Artifact{
					Kind:   KindImage,
					Prompt: fmt.Sprintf("prompt %d", i),
					Data:   []byte{byte(i)},
				}))
			}

			recent, err := store.RecentArtifacts(ctx, KindImage, 0)
			require.NoError(t, err)
			require.Len(t, recent, DefaultCap)
			assert.Equal(t, fmt.Sprintf("prompt %d", DefaultCap+2), recent[0].Prompt)
			assert.Equal(t, "prompt 3", recent[DefaultCap-1].Prompt)
			assert.NotEmpty(t, recent[0].ID)

			// Kinds are independent collections.
			analyses, err := store.RecentArtifacts(ctx, KindAnalysis, 0)
			require.NoError(t, err)
			assert.Empty(t, analyses)

			limited, err := store.RecentArtifacts(ctx, KindImage, 2)
			require.NoError(t, err)
			assert.Len(t, limited, 2)

			require.NoError(t, store.ClearArtifacts(ctx, KindImage))
			recent, err = store.RecentArtifacts(ctx, KindImage, 0)
			require.NoError(t, err)
			assert.Empty(t, recent)
		})
	}
}

func TestScriptVersionsCapped(t *testing.T) {
	for name, store := range storeUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			scriptID := NewID()

			for i := 0; i < DefaultCap+2; i++ {
				_, err := store.SaveScriptVersion(ctx, scriptID, fmt.Sprintf("draft %d", i))
				require.NoError(t, err)
			}

			versions, err := store.ScriptVersions(ctx, scriptID)
			require.NoError(t, err)
			require.Len(t, versions, DefaultCap)
			assert.Equal(t, fmt.Sprintf("draft %d", DefaultCap+1), versions[0].Content)
			assert.Equal(t, "draft 2", versions[DefaultCap-1].Content)
		})
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	for name, store := range storeUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.LoadSnapshot(ctx)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.SaveSnapshot(ctx, &Snapshot{
				ActiveTab: "script",
				Draft:     "INT. LIGHTHOUSE - NIGHT",
			}))

			snap, err := store.LoadSnapshot(ctx)
			require.NoError(t, err)
			assert.Equal(t, "script", snap.ActiveTab)
			assert.Equal(t, "INT. LIGHTHOUSE - NIGHT", snap.Draft)
			assert.False(t, snap.UpdatedAt.IsZero())
		})
	}
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)
	conv := &Conversation{ID: NewID(), Title: "persisted"}
	require.NoError(t, store.SaveConversation(ctx, conv))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	loaded, err := reopened.LoadConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", loaded.Title)
}

func TestFileStore_CorruptFileDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store, err := NewFileStore(path)
	require.NoError(t, err)

	list, err := store.ListConversations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryStore_CopiesOnWrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	conv := &Conversation{
		ID:       NewID(),
		Title:    "immutable",
		Messages: []types.Message{{Role: types.RoleUser, Text: "original"}},
	}
	require.NoError(t, store.SaveConversation(ctx, conv))

	conv.Messages[0].Text = "mutated"
	loaded, err := store.LoadConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", loaded.Messages[0].Text)
}
