// Package gateway is the single choke point for calls to the remote
// generative API. It attaches the configured credential, shapes requests for
// each operation kind, and maps vendor failures to a small local error
// taxonomy (CredentialError, UpstreamError, TransportError).
//
// The gateway holds no mutable state across calls; every method is safe for
// concurrent use.
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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/LyrebirdAI/console/logger"
	"github.com/LyrebirdAI/console/media"
	"github.com/LyrebirdAI/console/metrics"
	"github.com/LyrebirdAI/console/types"
)

// HTTP constants.
const (
	contentTypeHeader = "Content-Type"
	applicationJSON   = "application/json"

	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultTimeout = 60 * time.Second
)

// Default model identifiers per operation.
const (
	DefaultTextModel  = "gemini-2.5-flash"
	DefaultImageModel = "imagen-4.0-generate-001"
	DefaultVideoModel = "veo-3.0-generate-001"
	DefaultTTSModel   = "gemini-2.5-flash-preview-tts"
)

// Gateway wraps the vendor REST API behind typed operations.
type Gateway struct {
	apiKey     string
	baseURL    string
	textModel  string
	imageModel string
	videoModel string
	ttsModel   string
	httpClient *http.Client
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithBaseURL overrides the API base URL (used by tests to point at a mock
// server).
func WithBaseURL(url string) Option {
	return func(g *Gateway) {
		g.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithTextModel overrides the text generation model.
func WithTextModel(model string) Option {
	return func(g *Gateway) {
		g.textModel = model
	}
}

// WithImageModel overrides the image generation model.
func WithImageModel(model string) Option {
	return func(g *Gateway) {
		g.imageModel = model
	}
}

// WithVideoModel overrides the video generation model.
func WithVideoModel(model string) Option {
	return func(g *Gateway) {
		g.videoModel = model
	}
}

// WithTTSModel overrides the speech synthesis model.
func WithTTSModel(model string) Option {
	return func(g *Gateway) {
		g.ttsModel = model
	}
}

// WithTimeout overrides the per-request timeout. Streaming calls are bounded
// by their context instead.
func WithTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		if timeout > 0 {
			g.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.httpClient = client
	}
}

// New creates a Gateway. The API key is required; a missing key fails at call
// time with CredentialError so panels can render a consistent message.
func New(apiKey string, opts ...Option) *Gateway {
	g := &Gateway{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		textModel:  DefaultTextModel,
		imageModel: DefaultImageModel,
		videoModel: DefaultVideoModel,
		ttsModel:   DefaultTTSModel,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// GenerateRequest is a single text generation call.
type GenerateRequest struct {
	System   string
	Messages []types.Message
	Params   types.GenerationParams
}

// GenerateResult is the resolved output of a single-shot generation.
type GenerateResult struct {
	Text string
}

// GroundedResult is the output of a search-grounded generation.
type GroundedResult struct {
	Text    string
	Sources []types.GroundingSource
}

// Generate performs a single-shot text generation call.
func (g *Gateway) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	start := time.Now()
	result, _, err := g.generateContent(ctx, "generate", req, nil)
	metrics.ObserveRequest("generate", time.Since(start), err)
	return result, err
}

// GenerateGrounded performs a search-grounded generation call. Citations are
// deduplicated by URI with first-appearance order preserved.
func (g *Gateway) GenerateGrounded(ctx context.Context, req GenerateRequest) (GroundedResult, error) {
	start := time.Now()
	tools := []apiTool{{GoogleSearch: &struct{}{}}}
	result, candidate, err := g.generateContent(ctx, "generate_grounded", req, tools)
	metrics.ObserveRequest("generate_grounded", time.Since(start), err)
	if err != nil {
		return GroundedResult{}, err
	}

	var sources []types.GroundingSource
	if candidate != nil && candidate.GroundingMetadata != nil {
		for _, chunk := range candidate.GroundingMetadata.GroundingChunks {
			if chunk.Web == nil {
				continue
			}
			sources = append(sources, types.GroundingSource{
				URI:   chunk.Web.URI,
				Title: chunk.Web.Title,
			})
		}
	}

	return GroundedResult{
		Text:    result.Text,
		Sources: types.DedupeSources(sources),
	}, nil
}

// AnalyzeMedia sends a prompt plus media bytes for analysis (image or video
// understanding) and returns generated text.
func (g *Gateway) AnalyzeMedia(ctx context.Context, prompt string, data []byte, mimeType string) (string, error) {
	start := time.Now()

	req := GenerateRequest{
		Messages: []types.Message{{
			Role: types.RoleUser,
			Text: prompt,
			Attachments: []types.Attachment{{
				MimeType: mimeType,
				Data:     media.ToBase64(data),
			}},
		}},
	}

	result, _, err := g.generateContent(ctx, "analyze_media", req, nil)
	metrics.ObserveRequest("analyze_media", time.Since(start), err)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// SuggestPrompt asks the model for an improved version of a draft prompt.
// This is a secondary enhancement: failures are swallowed and an empty string
// is returned so the primary flow is never blocked.
func (g *Gateway) SuggestPrompt(ctx context.Context, draft string) string {
	req := GenerateRequest{
		System: "Rewrite the user's draft into a clearer, more specific prompt. Reply with the rewritten prompt only.",
		Messages: []types.Message{
			{Role: types.RoleUser, Text: draft},
		},
	}

	result, _, err := g.generateContent(ctx, "suggest_prompt", req, nil)
	if err != nil {
		logger.Warn("prompt suggestion failed", "error", err)
		return ""
	}
	return strings.TrimSpace(result.Text)
}

// generateContent is the shared single-shot path for all text-producing
// operations.
func (g *Gateway) generateContent(
	ctx context.Context, operation string, req GenerateRequest, tools []apiTool,
) (GenerateResult, *apiCandidate, error) {
	apiReq := g.buildRequest(req)
	apiReq.Tools = tools

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.textModel, g.apiKey)
	respBody, err := g.doJSON(ctx, operation, url, apiReq)
	if err != nil {
		return GenerateResult{}, nil, err
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return GenerateResult{}, nil, &UpstreamError{Message: fmt.Sprintf("malformed response: %v", err)}
	}

	candidate, err := firstCandidate(&apiResp)
	if err != nil {
		return GenerateResult{}, nil, err
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}

	return GenerateResult{Text: text.String()}, candidate, nil
}

// buildRequest converts a GenerateRequest to the vendor wire format.
func (g *Gateway) buildRequest(req GenerateRequest) apiRequest {
	contents := make([]apiContent, 0, len(req.Messages))
	for i := range req.Messages {
		msg := &req.Messages[i]
		if msg.Role == types.RoleSystem {
			continue
		}

		parts := make([]apiPart, 0, 1+len(msg.Attachments))
		if msg.Text != "" {
			parts = append(parts, apiPart{Text: msg.Text})
		}
		for _, att := range msg.Attachments {
			parts = append(parts, apiPart{
				InlineData: &apiInlineData{MimeType: att.MimeType, Data: att.Data},
			})
		}

		contents = append(contents, apiContent{Role: msg.Role, Parts: parts})
	}

	apiReq := apiRequest{
		Contents: contents,
		GenerationConfig: apiGenConfig{
			Temperature:     req.Params.Temperature,
			TopK:            req.Params.TopK,
			TopP:            req.Params.TopP,
			MaxOutputTokens: req.Params.MaxTokens,
		},
	}

	if req.System != "" {
		apiReq.SystemInstruction = &apiContent{
			Parts: []apiPart{{Text: req.System}},
		}
	}

	return apiReq
}

// firstCandidate validates the response envelope and extracts the first
// candidate, mapping block reasons and empty responses to UpstreamError.
func firstCandidate(resp *apiResponse) (*apiCandidate, error) {
	if len(resp.Candidates) == 0 {
		message := "no candidates in response"
		hint := HintNone
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			message = fmt.Sprintf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
			hint = HintSafety
		}
		return nil, &UpstreamError{Message: message, Hint: hint}
	}

	candidate := &resp.Candidates[0]
	if candidate.FinishReason == "SAFETY" {
		return nil, &UpstreamError{
			Message: "response blocked by safety filters",
			Hint:    HintSafety,
		}
	}

	return candidate, nil
}

// doJSON POSTs a JSON body and returns the raw response bytes, mapping
// failures to the local taxonomy.
func (g *Gateway) doJSON(ctx context.Context, operation, url string, body interface{}) ([]byte, error) {
	if g.apiKey == "" {
		return nil, &CredentialError{Message: "no API key configured"}
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	logger.APIRequest(operation, http.MethodPost, url, body)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set(contentTypeHeader, applicationJSON)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		logger.APIResponse(operation, 0, "", err)
		return nil, &TransportError{Op: operation, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.APIResponse(operation, resp.StatusCode, "", err)
		return nil, &TransportError{Op: operation, Err: err}
	}

	logger.APIResponse(operation, resp.StatusCode, string(respBody), nil)

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(resp.StatusCode, respBody)
	}

	return respBody, nil
}

// doGET issues a GET request and returns the raw response bytes.
func (g *Gateway) doGET(ctx context.Context, operation, url string) ([]byte, error) {
	if g.apiKey == "" {
		return nil, &CredentialError{Message: "no API key configured"}
	}

	logger.APIRequest(operation, http.MethodGet, url, nil)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		logger.APIResponse(operation, 0, "", err)
		return nil, &TransportError{Op: operation, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.APIResponse(operation, resp.StatusCode, "", err)
		return nil, &TransportError{Op: operation, Err: err}
	}

	logger.APIResponse(operation, resp.StatusCode, string(respBody), nil)

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(resp.StatusCode, respBody)
	}

	return respBody, nil
}
