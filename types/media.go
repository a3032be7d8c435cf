package types

// MediaChunk is one unit of streamed media (audio frame or video still)
// bound for or received from the live API channel.
type MediaChunk struct {
	// Data is the raw media bytes (PCM16 audio or encoded image).
	Data []byte `json:"data"`

	// MimeType describes the chunk payload, e.g. "audio/pcm;rate=16000".
	MimeType string `json:"mime_type"`

	// SequenceNum orders chunks within one stream.
	SequenceNum int64 `json:"sequence_num"`

	// IsLast marks the final chunk of a stream.
	IsLast bool `json:"is_last,omitempty"`
}
