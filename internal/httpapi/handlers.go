package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/LyrebirdAI/console/audio"
	"github.com/LyrebirdAI/console/gateway"
	"github.com/LyrebirdAI/console/history"
	"github.com/LyrebirdAI/console/jobs"
	"github.com/LyrebirdAI/console/logger"
	"github.com/LyrebirdAI/console/media"
	"github.com/LyrebirdAI/console/share"
	"github.com/LyrebirdAI/console/types"
)

// generateRequest is the JSON body for the generation endpoints.
type generateRequest struct {
	System   string                 `json:"system,omitempty"`
	Messages []types.Message        `json:"messages"`
	Params   types.GenerationParams `json:"params"`
}

func (r *generateRequest) toGateway() gateway.GenerateRequest {
	return gateway.GenerateRequest{System: r.System, Messages: r.Messages, Params: r.Params}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !readJSON(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeBadRequest(w, "messages are required")
		return
	}

	result, err := s.gw.Generate(r.Context(), req.toGateway())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": result.Text})
}

func (s *Server) handleGenerateGrounded(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !readJSON(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeBadRequest(w, "messages are required")
		return
	}

	result, err := s.gw.GenerateGrounded(r.Context(), req.toGateway())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"text":    result.Text,
		"sources": result.Sources,
	})
}

// handleGenerateStream streams chunks as server-sent events: "delta"
// events carry incremental text, a final "done" event carries the finish
// reason, and "error" events carry a failure.
func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !readJSON(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 {
		writeBadRequest(w, "messages are required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming unsupported by connection"))
		return
	}

	ch, err := s.gw.GenerateStream(r.Context(), req.toGateway())
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	for chunk := range ch {
		switch {
		case chunk.Error != nil:
			writeSSE(w, "error", map[string]string{"error": chunk.Error.Error()})
		case chunk.FinishReason != nil:
			writeSSE(w, "done", map[string]string{
				"content":       chunk.Content,
				"finish_reason": *chunk.FinishReason,
			})
		default:
			writeSSE(w, "delta", map[string]string{"delta": chunk.Delta})
		}
		flusher.Flush()
	}
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Draft string `json:"draft"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	suggestion := s.gw.SuggestPrompt(r.Context(), req.Draft)
	writeJSON(w, http.StatusOK, map[string]string{"suggestion": suggestion})
}

func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt      string `json:"prompt"`
		AspectRatio string `json:"aspect_ratio,omitempty"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.Prompt == "" {
		writeBadRequest(w, "prompt is required")
		return
	}

	result, err := s.gw.GenerateImage(r.Context(), gateway.ImageRequest{
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.recordArtifact(r, &history.Artifact{
		Kind:     history.KindImage,
		Prompt:   req.Prompt,
		MimeType: result.MimeType,
		Data:     result.Data,
	})
	writeJSON(w, http.StatusOK, map[string]string{
		"data":      base64.StdEncoding.EncodeToString(result.Data),
		"mime_type": result.MimeType,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt   string `json:"prompt"`
		Data     string `json:"data"` // base64
		MimeType string `json:"mime_type"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil || len(data) == 0 {
		writeBadRequest(w, "data must be non-empty base64")
		return
	}

	// Oversized image uploads are downscaled before heading upstream;
	// audio and video pass through untouched.
	if media.InferKind(req.MimeType) == "image" {
		scaled, mimeType, err := media.Downscale(data, media.DefaultAnalysisMaxDim)
		if err != nil {
			logger.Warn("failed to downscale analysis image", "error", err)
		} else {
			data, req.MimeType = scaled, mimeType
		}
	}

	text, err := s.gw.AnalyzeMedia(r.Context(), req.Prompt, data, req.MimeType)
	if err != nil {
		writeError(w, err)
		return
	}

	s.recordArtifact(r, &history.Artifact{
		Kind:     history.KindAnalysis,
		Prompt:   req.Prompt,
		MimeType: req.MimeType,
		Text:     text,
	})
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleStartVideo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt      string `json:"prompt"`
		AspectRatio string `json:"aspect_ratio,omitempty"`
		Resolution  string `json:"resolution,omitempty"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.Prompt == "" {
		writeBadRequest(w, "prompt is required")
		return
	}

	name, err := s.gw.StartVideoJob(r.Context(), gateway.VideoRequest{
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		Resolution:  req.Resolution,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"operation": name})
}

func (s *Server) handleVideoStatus(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("operation")
	if name == "" {
		writeBadRequest(w, "operation is required")
		return
	}

	status, err := s.gw.PollVideoJob(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleVideoWait blocks until the operation finishes, polling at the
// configured interval. The HTTP request context bounds the wait.
func (s *Server) handleVideoWait(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Operation string `json:"operation"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.Operation == "" {
		writeBadRequest(w, "operation is required")
		return
	}

	status, err := s.poller.Wait(r.Context(), func(ctx context.Context) (jobs.Status, error) {
		return s.gw.PollVideoJob(ctx, req.Operation)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleVideoDownload(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		writeBadRequest(w, "uri is required")
		return
	}

	data, err := s.gw.DownloadVideo(r.Context(), uri)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Data     string `json:"data"` // base64
		MimeType string `json:"mime_type"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		writeBadRequest(w, "data must be base64")
		return
	}

	// Transcription never fails the caller: an empty result means "nothing
	// usable", matching the microphone affordances it backs.
	text := s.gw.Transcribe(r.Context(), data, req.MimeType)
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	pcm := s.gw.Synthesize(r.Context(), req.Text)
	if pcm == nil {
		// Swallowed synthesis failure: no audio, not an error.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	wav := audio.WrapPCMAsWAV(pcm, audio.PlaybackSampleRate, audio.Channels, audio.BitDepth)
	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	w.Write(wav)
}

// handleListTemplates serves the prompt presets loaded at startup. An
// unconfigured server returns an empty list, not an error.
func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	templates := s.templates
	if templates == nil {
		templates = []history.PromptTemplate{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListConversations(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.store.LoadConversation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleSaveConversation(w http.ResponseWriter, r *http.Request) {
	var conv history.Conversation
	if !readJSON(w, r, &conv) {
		return
	}
	if conv.ID == "" {
		conv.ID = history.NewID()
	}
	conv.UpdatedAt = time.Now()

	if err := s.store.SaveConversation(r.Context(), &conv); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": conv.ID})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteConversation(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	kind := history.ArtifactKind(chi.URLParam(r, "kind"))
	list, err := s.store.RecentArtifacts(r.Context(), kind, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAddArtifact(w http.ResponseWriter, r *http.Request) {
	var artifact history.Artifact
	if !readJSON(w, r, &artifact) {
		return
	}
	if err := s.store.AddArtifact(r.Context(), &artifact); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": artifact.ID})
}

func (s *Server) handleClearArtifacts(w http.ResponseWriter, r *http.Request) {
	kind := history.ArtifactKind(chi.URLParam(r, "kind"))
	if err := s.store.ClearArtifacts(r.Context(), kind); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleScriptVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.store.ScriptVersions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (s *Server) handleSaveScriptVersion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	version, err := s.store.SaveScriptVersion(r.Context(), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, version)
}

func (s *Server) handleLoadSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.LoadSnapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap history.Snapshot
	if !readJSON(w, r, &snap) {
		return
	}
	if err := s.store.SaveSnapshot(r.Context(), &snap); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEncodeShare(w http.ResponseWriter, r *http.Request) {
	var payload share.Payload
	if !readJSON(w, r, &payload) {
		return
	}

	encoded, err := share.Encode(&payload)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"payload": encoded})
}

func (s *Server) handleDecodeShare(w http.ResponseWriter, r *http.Request) {
	payload, err := share.Decode(chi.URLParam(r, "payload"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// recordArtifact saves a generated output to history, logging failures
// rather than surfacing them.
func (s *Server) recordArtifact(r *http.Request, artifact *history.Artifact) {
	if err := s.store.AddArtifact(r.Context(), artifact); err != nil {
		logger.Warn("failed to record artifact", "kind", artifact.Kind, "error", err)
	}
}

// writeSSE emits one server-sent event.
func writeSSE(w http.ResponseWriter, event string, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		logger.Warn("failed to encode event", "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, body)
}
