// Package chi exposes the HTTP API over a go-chi router.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atlascope/wikirag/internal/domain"
	chatuc "github.com/atlascope/wikirag/internal/usecase/chat"
	healthuc "github.com/atlascope/wikirag/internal/usecase/health"
	ingestuc "github.com/atlascope/wikirag/internal/usecase/ingest"
)

// ChatService answers chat messages.
type ChatService interface {
	Respond(ctx context.Context, req chatuc.Request) (chatuc.Response, error)
}

// HistoryService manages stored chat sessions.
type HistoryService interface {
	ListSessions(ctx context.Context, limit int) ([]domain.SessionSummary, error)
	Messages(ctx context.Context, sessionID string) ([]domain.Message, error)
	Rename(ctx context.Context, sessionID, title string) (domain.SessionSummary, error)
	Delete(ctx context.Context, sessionID string) error
}

// IngestService runs ingestion pipelines.
type IngestService interface {
	Run(ctx context.Context, req ingestuc.Request) (ingestuc.Summary, error)
	RunFromURLs(ctx context.Context, req ingestuc.URLRequest) (ingestuc.Summary, error)
}

// KnowledgeService lists and removes ingested articles.
type KnowledgeService interface {
	References(ctx context.Context) ([]domain.KnowledgeReference, error)
	DeleteReference(ctx context.Context, pageID int) error
}

// HealthService aggregates component health checks.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// Server holds the HTTP handlers for the API.
type Server struct {
	chat      ChatService
	history   HistoryService
	ingest    IngestService
	knowledge KnowledgeService
	health    HealthService
	logger    *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	chat ChatService,
	history HistoryService,
	ingest IngestService,
	knowledge KnowledgeService,
	health HealthService,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		chat:      chat,
		history:   history,
		ingest:    ingest,
		knowledge: knowledge,
		health:    health,
		logger:    logger,
	}
}

// Register mounts all API routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/chat", func(r chi.Router) {
		r.Post("/", s.handleChat)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{sessionID}/messages", s.handleSessionMessages)
		r.Patch("/sessions/{sessionID}", s.handleRenameSession)
		r.Delete("/sessions/{sessionID}", s.handleDeleteSession)
	})

	r.Route("/ingest", func(r chi.Router) {
		r.Post("/wikipedia", s.handleIngestWikipedia)
		r.Post("/urls", s.handleIngestURLs)
	})

	r.Route("/knowledge", func(r chi.Router) {
		r.Get("/references", s.handleListReferences)
		r.Delete("/references/{pageID}", s.handleDeleteReference)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "RAG backend is running"})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// handleChat handles POST /chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ucReq, err := req.toUsecase()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.chat.Respond(r.Context(), ucReq)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponseFrom(resp))
}

// handleListSessions handles GET /chat/sessions.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	sessions, err := s.history.ListSessions(r.Context(), limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	out := make([]sessionSummaryResponse, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, sessionSummaryFrom(session))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSessionMessages handles GET /chat/sessions/{sessionID}/messages.
func (s *Server) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := s.history.Messages(r.Context(), sessionID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionMessagesFrom(sessionID, messages))
}

// handleRenameSession handles PATCH /chat/sessions/{sessionID}.
func (s *Server) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req sessionUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.history.Rename(r.Context(), sessionID, req.Title)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionSummaryFrom(summary))
}

// handleDeleteSession handles DELETE /chat/sessions/{sessionID}.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := s.history.Delete(r.Context(), sessionID); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleIngestWikipedia handles POST /ingest/wikipedia.
func (s *Server) handleIngestWikipedia(w http.ResponseWriter, r *http.Request) {
	var req wikipediaIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ucReq, err := req.toUsecase()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.ingest.Run(r.Context(), ucReq)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ingestSummaryFrom(summary))
}

// handleIngestURLs handles POST /ingest/urls.
func (s *Server) handleIngestURLs(w http.ResponseWriter, r *http.Request) {
	var req urlIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ucReq, err := req.toUsecase()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.ingest.RunFromURLs(r.Context(), ucReq)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ingestSummaryFrom(summary))
}

// handleListReferences handles GET /knowledge/references.
func (s *Server) handleListReferences(w http.ResponseWriter, r *http.Request) {
	references, err := s.knowledge.References(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if references == nil {
		references = []domain.KnowledgeReference{}
	}
	writeJSON(w, http.StatusOK, references)
}

// handleDeleteReference handles DELETE /knowledge/references/{pageID}.
func (s *Server) handleDeleteReference(w http.ResponseWriter, r *http.Request) {
	pageID, err := strconv.Atoi(chi.URLParam(r, "pageID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "page id must be an integer")
		return
	}

	if err := s.knowledge.DeleteReference(r.Context(), pageID); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDomainError maps sentinel errors to HTTP statuses without exposing
// internals.
func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))

	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, safeMessage(err, domain.ErrValidation))
	case errors.Is(err, domain.ErrInvalidReference):
		writeError(w, http.StatusBadRequest, safeMessage(err, domain.ErrInvalidReference))
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrUpstream):
		writeError(w, http.StatusBadGateway, "upstream service failure")
	case errors.Is(err, domain.ErrConfig):
		s.logger.Error("configuration error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "configuration error")
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// safeMessage keeps the caller-facing text of validation errors but falls
// back to the sentinel text when the wrap chain is unexpected.
func safeMessage(err error, sentinel error) string {
	if err == nil {
		return sentinel.Error()
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"detail": message})
}
