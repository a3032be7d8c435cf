// Package session ties chat orchestration together: it owns the active
// conversation, streams model replies through a stream.Controller, and
// persists completed exchanges to the history store.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/LyrebirdAI/console/gateway"
	"github.com/LyrebirdAI/console/history"
	"github.com/LyrebirdAI/console/logger"
	"github.com/LyrebirdAI/console/stream"
	"github.com/LyrebirdAI/console/types"
)

// titleRunes caps the auto-generated conversation title length.
const titleRunes = 48

// ErrNoActiveConversation is returned by Send before Start or Load.
var ErrNoActiveConversation = errors.New("no active conversation")

// Chat is the slice of the gateway the session needs.
type Chat interface {
	GenerateStream(ctx context.Context, req gateway.GenerateRequest) (<-chan gateway.StreamChunk, error)
}

// Config describes a chat session.
type Config struct {
	System string
	Params types.GenerationParams
}

// Manager runs one chat conversation at a time. Safe for concurrent use.
type Manager struct {
	chat  Chat
	store history.ConversationStore
	ctrl  *stream.Controller
	cfg   Config

	mu   sync.Mutex
	conv *history.Conversation
}

// NewManager creates a Manager backed by the given gateway surface and
// conversation store.
func NewManager(chat Chat, store history.ConversationStore, cfg Config, opts ...stream.Option) *Manager {
	m := &Manager{
		chat:  chat,
		store: store,
		cfg:   cfg,
	}
	m.ctrl = stream.New(chat.GenerateStream, opts...)
	return m
}

// Start begins a fresh conversation and returns its ID.
func (m *Manager) Start() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conv = &history.Conversation{
		ID:        history.NewID(),
		CreatedAt: time.Now(),
	}
	return m.conv.ID
}

// Load resumes a stored conversation.
func (m *Manager) Load(ctx context.Context, id string) error {
	conv, err := m.store.LoadConversation(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	m.mu.Lock()
	m.conv = conv
	m.mu.Unlock()
	return nil
}

// Messages returns the active conversation's messages, oldest first.
func (m *Manager) Messages() []types.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conv == nil {
		return nil
	}
	out := make([]types.Message, len(m.conv.Messages))
	copy(out, m.conv.Messages)
	return out
}

// Snapshot exposes the in-flight stream state.
func (m *Manager) Snapshot() stream.Snapshot {
	return m.ctrl.Snapshot()
}

// Cancel stops the in-flight reply, if any. The partial text already
// received is kept as the model message.
func (m *Manager) Cancel() {
	m.ctrl.Cancel()
}

// Send appends the user message and streams the model's reply. It returns
// once the exchange reaches a terminal state. The user message is recorded
// even when the reply fails, so a retry resends context correctly.
func (m *Manager) Send(ctx context.Context, text string, attachments []types.Attachment) (string, error) {
	m.mu.Lock()
	if m.conv == nil {
		m.mu.Unlock()
		return "", ErrNoActiveConversation
	}

	userMsg := types.Message{
		Role:        types.RoleUser,
		Text:        text,
		Attachments: attachments,
		Timestamp:   time.Now(),
	}
	m.conv.Messages = append(m.conv.Messages, userMsg)
	if m.conv.Title == "" {
		m.conv.Title = deriveTitle(text)
	}
	req := gateway.GenerateRequest{
		System:   m.cfg.System,
		Messages: append([]types.Message(nil), m.conv.Messages...),
		Params:   m.cfg.Params,
	}
	m.mu.Unlock()

	done, err := m.ctrl.Start(ctx, req)
	if err != nil {
		m.persist(ctx)
		return "", err
	}

	select {
	case <-done:
	case <-ctx.Done():
		m.ctrl.Cancel()
		<-done
	}

	snap := m.ctrl.Snapshot()
	if snap.Text != "" {
		m.mu.Lock()
		m.conv.Messages = append(m.conv.Messages, types.Message{
			Role:      types.RoleModel,
			Text:      snap.Text,
			Timestamp: time.Now(),
		})
		m.mu.Unlock()
	}
	m.persist(ctx)

	if snap.State == stream.StateErrored {
		return snap.Text, snap.Err
	}
	return snap.Text, nil
}

// persist saves the active conversation, logging rather than failing:
// losing a history write must not break the exchange itself.
func (m *Manager) persist(ctx context.Context) {
	m.mu.Lock()
	conv := m.conv
	if conv != nil {
		conv.UpdatedAt = time.Now()
	}
	m.mu.Unlock()

	if conv == nil {
		return
	}
	if err := m.store.SaveConversation(ctx, conv); err != nil {
		logger.Warn("failed to save conversation", "id", conv.ID, "error", err)
	}
}

// deriveTitle builds a display title from the first user message.
func deriveTitle(text string) string {
	title := strings.Join(strings.Fields(text), " ")
	runes := []rune(title)
	if len(runes) > titleRunes {
		title = string(runes[:titleRunes]) + "…"
	}
	return title
}
