package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/LyrebirdAI/console/logger"
	"github.com/LyrebirdAI/console/media"
	"github.com/LyrebirdAI/console/metrics"
	"github.com/LyrebirdAI/console/types"
)

// Transcribe converts audio bytes to text. Transcription is a secondary
// enhancement to the panels that use it, so failures are swallowed: the
// error is logged and an empty string returned, never an error to the
// caller.
func (g *Gateway) Transcribe(ctx context.Context, audio []byte, mimeType string) string {
	start := time.Now()
	text, err := g.transcribe(ctx, audio, mimeType)
	metrics.ObserveRequest("transcribe", time.Since(start), err)
	if err != nil {
		logger.Warn("transcription failed", "error", err)
		return ""
	}
	return text
}

func (g *Gateway) transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	req := GenerateRequest{
		Messages: []types.Message{{
			Role: types.RoleUser,
			Text: "Transcribe this audio verbatim. Reply with the transcription only.",
			Attachments: []types.Attachment{{
				MimeType: mimeType,
				Data:     media.ToBase64(audio),
			}},
		}},
	}

	result, _, err := g.generateContent(ctx, "transcribe", req, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Text), nil
}

// Synthesize converts text to 24kHz mono PCM16 speech audio. Like
// transcription, synthesis failures are swallowed: nil is returned and the
// error logged.
func (g *Gateway) Synthesize(ctx context.Context, text string) []byte {
	start := time.Now()
	pcm, err := g.synthesize(ctx, text)
	metrics.ObserveRequest("synthesize", time.Since(start), err)
	if err != nil {
		logger.Warn("speech synthesis failed", "error", err)
		return nil
	}
	return pcm
}

func (g *Gateway) synthesize(ctx context.Context, text string) ([]byte, error) {
	apiReq := apiRequest{
		Contents: []apiContent{{
			Role:  types.RoleUser,
			Parts: []apiPart{{Text: text}},
		}},
		GenerationConfig: apiGenConfig{
			ResponseModalities: []string{"AUDIO"},
		},
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.ttsModel, g.apiKey)
	respBody, err := g.doJSON(ctx, "synthesize", url, apiReq)
	if err != nil {
		return nil, err
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("malformed response: %v", err)}
	}

	candidate, err := firstCandidate(&apiResp)
	if err != nil {
		return nil, err
	}

	for _, part := range candidate.Content.Parts {
		if part.InlineData == nil {
			continue
		}
		if !strings.HasPrefix(part.InlineData.MimeType, "audio/") {
			continue
		}
		return media.FromBase64(part.InlineData.Data)
	}

	return nil, &UpstreamError{Message: "no audio in response"}
}
