package live

import "encoding/json"

// decodeServerMessage parses one frame off the wire.
func decodeServerMessage(data []byte, msg *serverMessage) error {
	return json.Unmarshal(data, msg)
}

// Client messages. The first message on a session must be the setup
// envelope; afterwards audio and video travel as realtime input and typed
// text as client content.

type setupMessage struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model             string         `json:"model"`
	GenerationConfig  liveGenConfig  `json:"generationConfig"`
	SystemInstruction *clientContent `json:"systemInstruction,omitempty"`

	// Empty objects opt in to server-side transcription of each direction.
	InputAudioTranscription  *struct{} `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{} `json:"outputAudioTranscription,omitempty"`
}

type liveGenConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []inlineData `json:"mediaChunks"`
}

type clientContentMessage struct {
	ClientContent clientContentPayload `json:"clientContent"`
}

type clientContentPayload struct {
	Turns        []clientContent `json:"turns"`
	TurnComplete bool            `json:"turnComplete"`
}

type clientContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []clientPart `json:"parts"`
}

type clientPart struct {
	Text string `json:"text,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

// Server messages.

type serverMessage struct {
	SetupComplete *setupComplete `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
}

type setupComplete struct{}

type serverContent struct {
	ModelTurn           *modelTurn     `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
}

type modelTurn struct {
	Parts []serverPart `json:"parts,omitempty"`
}

type serverPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type transcription struct {
	Text string `json:"text,omitempty"`
}
