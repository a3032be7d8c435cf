package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LyrebirdAI/console/logger"
	"github.com/LyrebirdAI/console/metrics"
)

// StreamChunk is one incremental unit of streamed text output.
type StreamChunk struct {
	// Content is the accumulated text so far.
	Content string

	// Delta is the new text in this chunk.
	Delta string

	// FinishReason is nil until the stream is complete.
	FinishReason *string

	// Error is set if the stream failed; it is always the last chunk sent.
	Error error
}

// GenerateStream performs a streaming generation call. Chunks are delivered
// on the returned channel in order; the channel is closed after the final
// chunk. The sequence is finite and not restartable. Canceling ctx stops the
// stream.
func (g *Gateway) GenerateStream(ctx context.Context, req GenerateRequest) (<-chan StreamChunk, error) {
	start := time.Now()

	apiReq := g.buildRequest(req)
	reqBody, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if g.apiKey == "" {
		return nil, &CredentialError{Message: "no API key configured"}
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?key=%s", g.baseURL, g.textModel, g.apiKey)
	logger.APIRequest("generate_stream", http.MethodPost, url, apiReq)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set(contentTypeHeader, applicationJSON)

	// The client timeout would cut the body read mid-stream; the context
	// bounds streaming calls instead.
	client := *g.httpClient
	client.Timeout = 0

	//nolint:bodyclose // body is closed in the streamResponse goroutine
	resp, err := client.Do(httpReq)
	if err != nil {
		metrics.ObserveRequest("generate_stream", time.Since(start), err)
		return nil, &TransportError{Op: "generate_stream", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body := readAllLimited(resp.Body)
		err := classifyHTTPError(resp.StatusCode, body)
		metrics.ObserveRequest("generate_stream", time.Since(start), err)
		return nil, err
	}

	out := make(chan StreamChunk)
	go g.streamResponse(ctx, resp, out, start)

	return out, nil
}

// streamResponse incrementally decodes the vendor's streamed JSON array of
// response objects and forwards one chunk per text part, in delivery order.
func (g *Gateway) streamResponse(ctx context.Context, resp *http.Response, out chan<- StreamChunk, start time.Time) {
	defer close(out)
	defer resp.Body.Close()

	var streamErr error
	defer func() {
		metrics.ObserveRequest("generate_stream", time.Since(start), streamErr)
	}()

	dec := json.NewDecoder(resp.Body)

	// Opening '[' of the response array.
	if _, err := dec.Token(); err != nil {
		streamErr = &TransportError{Op: "generate_stream", Err: err}
		sendChunk(ctx, out, StreamChunk{Error: streamErr, FinishReason: strPtr("error")})
		return
	}

	var accumulated strings.Builder
	for dec.More() {
		select {
		case <-ctx.Done():
			streamErr = ctx.Err()
			return
		default:
		}

		var chunk apiResponse
		if err := dec.Decode(&chunk); err != nil {
			streamErr = &TransportError{Op: "generate_stream", Err: err}
			sendChunk(ctx, out, StreamChunk{
				Content:      accumulated.String(),
				Error:        streamErr,
				FinishReason: strPtr("error"),
			})
			return
		}

		if len(chunk.Candidates) == 0 {
			continue
		}
		candidate := chunk.Candidates[0]

		for _, part := range candidate.Content.Parts {
			if part.Text == "" {
				continue
			}
			accumulated.WriteString(part.Text)
			metrics.CountChunk()
			if !sendChunk(ctx, out, StreamChunk{
				Content: accumulated.String(),
				Delta:   part.Text,
			}) {
				streamErr = ctx.Err()
				return
			}
		}

		if candidate.FinishReason != "" {
			sendChunk(ctx, out, StreamChunk{
				Content:      accumulated.String(),
				FinishReason: &candidate.FinishReason,
			})
			return
		}
	}

	// Stream ended without an explicit finish reason.
	sendChunk(ctx, out, StreamChunk{
		Content:      accumulated.String(),
		FinishReason: strPtr("stop"),
	})
}

// sendChunk delivers a chunk unless the context is canceled first.
func sendChunk(ctx context.Context, out chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// strPtr returns a pointer to s.
func strPtr(s string) *string {
	return &s
}

// readAllLimited drains up to 1MB of an error response body.
func readAllLimited(r io.Reader) []byte {
	data, _ := io.ReadAll(io.LimitReader(r, 1<<20))
	return data
}
