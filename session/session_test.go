package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LyrebirdAI/console/gateway"
	"github.com/LyrebirdAI/console/history"
	"github.com/LyrebirdAI/console/types"
)

// scriptedChat replays a canned reply per Send call and records the
// requests it saw.
type scriptedChat struct {
	mu       sync.Mutex
	replies  []string
	failWith error
	requests []gateway.GenerateRequest
}

func (c *scriptedChat) GenerateStream(ctx context.Context, req gateway.GenerateRequest) (<-chan gateway.StreamChunk, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	var reply string
	if len(c.replies) > 0 {
		reply = c.replies[0]
		c.replies = c.replies[1:]
	}
	failWith := c.failWith
	c.mu.Unlock()

	out := make(chan gateway.StreamChunk, 4)
	go func() {
		defer close(out)
		if failWith != nil {
			out <- gateway.StreamChunk{Error: failWith}
			return
		}
		half := len(reply) / 2
		acc := ""
		for _, delta := range []string{reply[:half], reply[half:]} {
			if delta == "" {
				continue
			}
			acc += delta
			out <- gateway.StreamChunk{Content: acc, Delta: delta}
		}
		stop := "STOP"
		out <- gateway.StreamChunk{Content: acc, FinishReason: &stop}
	}()
	return out, nil
}

func (c *scriptedChat) seenRequests() []gateway.GenerateRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]gateway.GenerateRequest(nil), c.requests...)
}

func TestManager_RoundTrip(t *testing.T) {
	ctx := context.Background()
	chat := &scriptedChat{replies: []string{"Hi there!", "Blue, mostly."}}
	store := history.NewMemoryStore()
	m := NewManager(chat, store, Config{System: "be friendly"})

	id := m.Start()

	reply, err := m.Send(ctx, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", reply)

	reply, err = m.Send(ctx, "what color is the sky?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Blue, mostly.", reply)

	// Full alternating history, oldest first.
	msgs := m.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, types.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.Equal(t, types.RoleModel, msgs[1].Role)
	assert.Equal(t, "Hi there!", msgs[1].Text)
	assert.Equal(t, "what color is the sky?", msgs[2].Text)

	// The second request carried the whole conversation so far.
	reqs := chat.seenRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "be friendly", reqs[1].System)
	assert.Len(t, reqs[1].Messages, 3)

	// Persisted and reloadable.
	reloaded := NewManager(chat, store, Config{})
	require.NoError(t, reloaded.Load(ctx, id))
	assert.Len(t, reloaded.Messages(), 4)
	saved, err := store.LoadConversation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello", saved.Title)
}

func TestManager_SendWithoutConversation(t *testing.T) {
	m := NewManager(&scriptedChat{}, history.NewMemoryStore(), Config{})

	_, err := m.Send(context.Background(), "hello", nil)
	assert.ErrorIs(t, err, ErrNoActiveConversation)
}

func TestManager_StreamFailureKeepsUserMessage(t *testing.T) {
	ctx := context.Background()
	streamErr := errors.New("quota exceeded")
	chat := &scriptedChat{failWith: streamErr}
	store := history.NewMemoryStore()
	m := NewManager(chat, store, Config{})

	id := m.Start()
	_, err := m.Send(ctx, "doomed question", nil)
	assert.ErrorIs(t, err, streamErr)

	// The user side of the exchange survives for retry.
	saved, err := store.LoadConversation(ctx, id)
	require.NoError(t, err)
	require.Len(t, saved.Messages, 1)
	assert.Equal(t, "doomed question", saved.Messages[0].Text)
}

func TestManager_AttachmentsTravel(t *testing.T) {
	chat := &scriptedChat{replies: []string{"a sunset photo"}}
	m := NewManager(chat, history.NewMemoryStore(), Config{})
	m.Start()

	attachment := types.Attachment{MimeType: "image/jpeg", Data: "aGVsbG8="}
	_, err := m.Send(context.Background(), "describe this", []types.Attachment{attachment})
	require.NoError(t, err)

	reqs := chat.seenRequests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Messages[0].Attachments, 1)
	assert.Equal(t, attachment, reqs[0].Messages[0].Attachments[0])
}

func TestDeriveTitle(t *testing.T) {
	assert.Equal(t, "hello world", deriveTitle("  hello\n\nworld  "))

	long := deriveTitle("a very long opening message that should be truncated well before it ends because titles are short")
	assert.LessOrEqual(t, len([]rune(long)), titleRunes+1)
}
