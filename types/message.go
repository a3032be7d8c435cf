// Package types defines the shared data types exchanged between the console
// panels, the gateway facade, and the persistence stores.
package types

import "time"

// Message roles.
const (
	RoleUser   = "user"
	RoleModel  = "model"
	RoleSystem = "system"
)

// Attachment is a piece of media carried alongside a message.
// Data is base64-encoded for JSON transport.
type Attachment struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Message is one utterance in a conversation.
type Message struct {
	Role        string       `json:"role"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Timestamp   time.Time    `json:"timestamp,omitempty"`
}

// HasAttachments reports whether the message carries media content.
func (m *Message) HasAttachments() bool {
	return len(m.Attachments) > 0
}

// GenerationParams are the sampling parameters a panel attaches to a request.
// Zero values mean "use the configured default".
type GenerationParams struct {
	Temperature float32 `json:"temperature,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
	TopP        float32 `json:"top_p,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}
