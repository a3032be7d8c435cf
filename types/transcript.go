package types

// Transcript speakers.
const (
	SpeakerUser  = "user"
	SpeakerModel = "model"
)

// TranscriptTurn is one utterance attributed to a speaker in a live session
// transcript. Turns are immutable once appended.
type TranscriptTurn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}
