// Package share encodes script documents into URL-safe payloads so a
// console link can carry a script and open on the right tab, with no
// server-side storage involved.
package share

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// MaxEncodedLen bounds the payload so links stay within common URL length
// limits.
const MaxEncodedLen = 8 * 1024

// Known console tabs a shared link may preselect.
const (
	TabChat       = "chat"
	TabPlayground = "playground"
	TabImage      = "image"
	TabVideo      = "video"
	TabLive       = "live"
	TabScript     = "script"
)

// ErrPayloadTooLarge is returned when the encoded payload would exceed
// MaxEncodedLen.
var ErrPayloadTooLarge = errors.New("share payload too large")

// ErrMalformedPayload is returned when a payload cannot be decoded.
var ErrMalformedPayload = errors.New("malformed share payload")

// Payload is the shareable document.
type Payload struct {
	// Tab preselects a console tab. Unknown values fall back to the
	// script tab on decode.
	Tab string `json:"tab,omitempty"`

	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// Encode serializes the payload to a URL-safe string.
func Encode(p *Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode share payload: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(data)
	if len(encoded) > MaxEncodedLen {
		return "", ErrPayloadTooLarge
	}
	return encoded, nil
}

// Decode parses a payload produced by Encode. Unknown tabs are normalized
// to the script tab so a stale link still opens somewhere sensible.
func Decode(encoded string) (*Payload, error) {
	if encoded == "" || len(encoded) > MaxEncodedLen {
		return nil, ErrMalformedPayload
	}

	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrMalformedPayload
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, ErrMalformedPayload
	}

	if !validTab(p.Tab) {
		p.Tab = TabScript
	}
	return &p, nil
}

func validTab(tab string) bool {
	switch tab {
	case TabChat, TabPlayground, TabImage, TabVideo, TabLive, TabScript:
		return true
	}
	return false
}
