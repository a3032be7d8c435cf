package live

import (
	"strings"
	"sync"

	"github.com/LyrebirdAI/console/types"
)

// TranscriptBuilder accumulates per-side transcription fragments and turns
// them into an ordered transcript. Fragments for a speaker concatenate
// until that speaker's turn completes; empty fragments and empty turns are
// dropped.
type TranscriptBuilder struct {
	mu      sync.Mutex
	turns   []types.TranscriptTurn
	pending map[string]*strings.Builder
}

// NewTranscriptBuilder returns an empty builder.
func NewTranscriptBuilder() *TranscriptBuilder {
	return &TranscriptBuilder{
		pending: map[string]*strings.Builder{
			types.SpeakerUser:  {},
			types.SpeakerModel: {},
		},
	}
}

// Append adds a transcription fragment to the speaker's open turn.
func (b *TranscriptBuilder) Append(speaker, text string) {
	if text == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := b.pending[speaker]
	if !ok {
		return
	}
	buf.WriteString(text)
}

// CompleteTurn closes the speaker's open turn, committing it to the
// transcript. Completing an empty turn is a no-op.
func (b *TranscriptBuilder) CompleteTurn(speaker string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := b.pending[speaker]
	if !ok {
		return
	}
	text := strings.TrimSpace(buf.String())
	buf.Reset()
	if text == "" {
		return
	}
	b.turns = append(b.turns, types.TranscriptTurn{Speaker: speaker, Text: text})
}

// Partial returns the speaker's uncommitted text.
func (b *TranscriptBuilder) Partial(speaker string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if buf, ok := b.pending[speaker]; ok {
		return buf.String()
	}
	return ""
}

// Turns returns a copy of the committed transcript in order.
func (b *TranscriptBuilder) Turns() []types.TranscriptTurn {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]types.TranscriptTurn, len(b.turns))
	copy(out, b.turns)
	return out
}
