// Package httpapi exposes the console's operations over HTTP for the
// browser front end: generation, streaming, media jobs, a live session
// bridge, prompt templates, history, and sharing.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LyrebirdAI/console/gateway"
	"github.com/LyrebirdAI/console/history"
	"github.com/LyrebirdAI/console/jobs"
	"github.com/LyrebirdAI/console/logger"
	"github.com/LyrebirdAI/console/version"
)

// Server wires the HTTP routes to the gateway and history store.
type Server struct {
	gw        *gateway.Gateway
	store     history.Store
	poller    *jobs.Poller
	live      liveSettings
	templates []history.PromptTemplate
	router    chi.Router
}

// liveSettings configures the upstream end of the live bridge.
type liveSettings struct {
	URL    string // WebSocket endpoint, without credentials
	APIKey string
	Model  string
}

// Option configures optional server features.
type Option func(*Server)

// WithLive enables the live session bridge against the given upstream
// endpoint.
func WithLive(url, apiKey, model string) Option {
	return func(s *Server) {
		s.live = liveSettings{URL: url, APIKey: apiKey, Model: model}
	}
}

// WithTemplates serves the given prompt templates on the templates
// endpoint.
func WithTemplates(templates []history.PromptTemplate) Option {
	return func(s *Server) {
		s.templates = templates
	}
}

// New builds the server and its routes.
func New(gw *gateway.Gateway, store history.Store, pollInterval time.Duration, opts ...Option) *Server {
	s := &Server{
		gw:     gw,
		store:  store,
		poller: &jobs.Poller{Interval: pollInterval},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/generate", s.handleGenerate)
		r.Post("/generate/stream", s.handleGenerateStream)
		r.Post("/generate/grounded", s.handleGenerateGrounded)
		r.Post("/suggest", s.handleSuggest)

		r.Post("/images", s.handleGenerateImage)
		r.Post("/analyze", s.handleAnalyze)

		r.Post("/videos", s.handleStartVideo)
		r.Get("/videos/status", s.handleVideoStatus)
		r.Post("/videos/wait", s.handleVideoWait)
		r.Get("/videos/download", s.handleVideoDownload)

		r.Post("/transcriptions", s.handleTranscribe)
		r.Post("/speech", s.handleSynthesize)

		r.Get("/live", s.handleLive)
		r.Get("/templates", s.handleListTemplates)

		r.Get("/conversations", s.handleListConversations)
		r.Get("/conversations/{id}", s.handleGetConversation)
		r.Post("/conversations", s.handleSaveConversation)
		r.Delete("/conversations/{id}", s.handleDeleteConversation)

		r.Get("/artifacts/{kind}", s.handleListArtifacts)
		r.Post("/artifacts", s.handleAddArtifact)
		r.Delete("/artifacts/{kind}", s.handleClearArtifacts)

		r.Get("/scripts/{id}/versions", s.handleScriptVersions)
		r.Post("/scripts/{id}/versions", s.handleSaveScriptVersion)

		r.Get("/snapshot", s.handleLoadSnapshot)
		r.Put("/snapshot", s.handleSaveSnapshot)

		r.Post("/share", s.handleEncodeShare)
		r.Get("/share/{payload}", s.handleDecodeShare)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.String(),
	})
}

// requestLogger records each request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Hint  string `json:"hint,omitempty"`
}

// writeError maps the gateway error taxonomy onto HTTP status codes:
// credential problems are the caller's to fix, upstream refusals pass
// through as bad gateway with their hint, and transport failures read as
// timeouts.
func writeError(w http.ResponseWriter, err error) {
	var credErr *gateway.CredentialError
	var upErr *gateway.UpstreamError
	var transportErr *gateway.TransportError

	switch {
	case errors.As(err, &credErr):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error(), Kind: "credential"})
	case errors.As(err, &upErr):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error(), Kind: "upstream", Hint: string(upErr.Hint)})
	case errors.As(err, &transportErr):
		writeJSON(w, http.StatusGatewayTimeout, errorBody{Error: err.Error(), Kind: "transport"})
	case errors.Is(err, history.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Kind: "not_found"})
	case errors.Is(err, history.ErrInvalidID):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "invalid"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error(), Kind: "internal"})
	}
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Kind: "invalid"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("failed to write response", "error", err)
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}
