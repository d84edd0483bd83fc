// Package server provides the HTTP REST API for the property analyzer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonathan/property-analyzer/internal/analysis"
	"github.com/jonathan/property-analyzer/internal/config"
	"github.com/jonathan/property-analyzer/internal/llm"
	"github.com/jonathan/property-analyzer/internal/server/ratelimit"
	"github.com/jonathan/property-analyzer/internal/storage"
	"github.com/jonathan/property-analyzer/internal/types"
)

// MaxUploadSize is the largest accepted image upload.
const MaxUploadSize = 10 << 20

// maxBodySize bounds JSON request bodies; base64 images are a third larger
// than the upload limit.
const maxBodySize = 16 << 20

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	settings    *config.Settings
	llm         llm.Client
	pipeline    *analysis.Pipeline
	store       *storage.Store
	rateLimiter *ratelimit.Limiter
	logger      *slog.Logger
	now         func() time.Time
}

// Deps are the collaborators the server routes to. Pipeline and Store may
// be nil; their endpoints then answer 503.
type Deps struct {
	Settings *config.Settings
	LLM      llm.Client
	Pipeline *analysis.Pipeline
	Store    *storage.Store
	Logger   *slog.Logger
}

// New creates a new server instance
func New(deps Deps) (*Server, error) {
	if deps.Settings == nil {
		return nil, errors.New("settings are required")
	}
	if deps.LLM == nil {
		return nil, errors.New("LLM client is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		settings:    deps.Settings,
		llm:         deps.LLM,
		pipeline:    deps.Pipeline,
		store:       deps.Store,
		rateLimiter: ratelimit.NewLimiter(ratelimit.NewConfig(deps.Settings.RateLimitRequests, deps.Settings.RateLimitWindow)),
		logger:      logger,
		now:         time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/models", s.handleModels)

	// Generation
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/generate-stream", s.handleGenerateStream)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/analyze-image", s.handleAnalyzeImage)
	mux.HandleFunc("POST /api/upload-image", s.handleUploadImage)

	// Listing analysis
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/analyze-stream", s.handleAnalyzeStream)
	mux.HandleFunc("POST /api/compress", s.handleCompress)

	// Sessions
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /api/storage/stats", s.handleStorageStats)

	s.handler = s.withCORS(s.withLogging(s.withRateLimit(mux)))
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", deps.Settings.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: deps.Settings.RequestTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.httpServer.Addr,
			"project", s.settings.ProjectID, "model", s.settings.DefaultModel)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Close releases the rate limiter. Collaborators are closed by their owner.
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, code, detail string) {
	s.jsonResponse(w, status, types.ErrorResponse{
		Detail:    detail,
		ErrorCode: code,
		Timestamp: s.now().Format(time.RFC3339),
	})
}

// handleError maps err to a status and error code and writes it. Server
// errors are logged; client errors are not.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, prefix string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), prefix, "path", r.URL.Path, "error", err)
	}
	detail := err.Error()
	if prefix != "" {
		detail = prefix + ": " + detail
	}
	s.errorResponse(w, status, code, detail)
}

// decodeJSON reads a JSON body into v and validates it.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{ Validate() error }) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.handleError(w, r, "", err)
			return false
		}
		s.errorResponse(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := v.Validate(); err != nil {
		s.errorResponse(w, http.StatusUnprocessableEntity, CodeValidation, "リクエストの検証に失敗しました: "+err.Error())
		return false
	}
	return true
}
