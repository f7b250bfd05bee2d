package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mincaelectric/inventory-agent/internal/config"
	"github.com/mincaelectric/inventory-agent/internal/observability"
	"github.com/mincaelectric/inventory-agent/internal/pipeline"
)

// Asker is the pipeline surface the transport consumes.
type Asker interface {
	Ask(ctx context.Context, question, sessionID string) (pipeline.Response, error)
}

type Server struct {
	cfg     config.Config
	agent   Asker
	metrics *observability.Metrics
	logger  *zap.Logger
}

func New(cfg config.Config, agent Asker, metrics *observability.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cfg: cfg, agent: agent, metrics: metrics, logger: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSecret)
		r.Post("/v1/questions", s.handleQuestion)
	})

	return r
}

// requireSecret gates the question endpoint behind the shared service
// secret. A missing server-side secret is a deployment fault, not an
// auth failure, so it answers 503 rather than 401.
func (s *Server) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret := strings.TrimSpace(s.cfg.AgentSecret)
		if secret == "" {
			respondError(w, http.StatusServiceUnavailable, "secret_not_configured", "service secret is not configured")
			return
		}
		presented := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			respondError(w, http.StatusUnauthorized, "unauthorized", "invalid service secret")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type questionRequest struct {
	Question  string `json:"pregunta"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		respondError(w, http.StatusBadRequest, "empty_question", "pregunta is required")
		return
	}

	resp, err := s.agent.Ask(r.Context(), req.Question, strings.TrimSpace(req.SessionID))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Client went away; nothing useful to write.
			return
		}
		s.logger.Error("question pipeline failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "no se pudo procesar la pregunta")
		return
	}

	if resp.Categories == nil {
		resp.Categories = []string{}
	}
	if resp.Errors == nil {
		resp.Errors = []string{}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"environment": s.cfg.Environment,
	})
}

func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "metrics not configured")
		return
	}
	respondJSON(w, http.StatusOK, s.metrics.SnapshotStages())
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
