package live

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LyrebirdAI/console/types"
)

func TestTranscriptBuilder_AccumulatesPerSpeaker(t *testing.T) {
	b := NewTranscriptBuilder()

	b.Append(types.SpeakerUser, "what is ")
	b.Append(types.SpeakerModel, "The capital ")
	b.Append(types.SpeakerUser, "the capital of France?")
	b.Append(types.SpeakerModel, "of France is Paris.")

	assert.Equal(t, "what is the capital of France?", b.Partial(types.SpeakerUser))
	assert.Empty(t, b.Turns())

	b.CompleteTurn(types.SpeakerUser)
	b.CompleteTurn(types.SpeakerModel)

	turns := b.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, types.TranscriptTurn{Speaker: types.SpeakerUser, Text: "what is the capital of France?"}, turns[0])
	assert.Equal(t, types.TranscriptTurn{Speaker: types.SpeakerModel, Text: "The capital of France is Paris."}, turns[1])
	assert.Empty(t, b.Partial(types.SpeakerUser))
}

func TestTranscriptBuilder_EmptyTurnsDropped(t *testing.T) {
	b := NewTranscriptBuilder()

	b.CompleteTurn(types.SpeakerUser)
	b.Append(types.SpeakerModel, "   ")
	b.CompleteTurn(types.SpeakerModel)

	assert.Empty(t, b.Turns())
}

func TestTranscriptBuilder_UnknownSpeakerIgnored(t *testing.T) {
	b := NewTranscriptBuilder()

	b.Append("narrator", "off stage")
	b.CompleteTurn("narrator")

	assert.Empty(t, b.Turns())
	assert.Empty(t, b.Partial("narrator"))
}

func TestTranscriptBuilder_TurnsReturnsCopy(t *testing.T) {
	b := NewTranscriptBuilder()
	b.Append(types.SpeakerUser, "hello")
	b.CompleteTurn(types.SpeakerUser)

	turns := b.Turns()
	turns[0].Text = "mutated"

	assert.Equal(t, "hello", b.Turns()[0].Text)
}
