package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"emergency-rag/internal/config"
	"emergency-rag/internal/models"
)

const maxBodySize = 1 << 20 // 1MB

// QueryService is what the HTTP layer needs from the orchestrator.
type QueryService interface {
	Query(ctx context.Context, query string, topK int) (*models.Answer, error)
	Health(ctx context.Context) (*models.Health, error)
}

// Server exposes the query contract over HTTP: POST /query and
// GET /health, JSON in and out, errors as {"detail": ...}.
type Server struct {
	svc          QueryService
	host         string
	port         int
	allowOrigins map[string]bool
	timeout      time.Duration
	server       *http.Server
}

func New(svc QueryService, cfg *config.ServerConfig) *Server {
	origins := make(map[string]bool, len(cfg.AllowOrigins))
	for _, o := range cfg.AllowOrigins {
		origins[o] = true
	}
	return &Server{
		svc:          svc,
		host:         cfg.Host,
		port:         cfg.Port,
		allowOrigins: origins,
		timeout:      time.Duration(cfg.TimeoutSecs) * time.Second,
	}
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /query", s.cors(s.handleQuery))
	mux.HandleFunc("GET /health", s.cors(s.handleHealth))
	mux.HandleFunc("OPTIONS /", s.cors(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  s.timeout,
		WriteTimeout: s.timeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", "http://"+addr).Msg("Query endpoint started")
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (s.allowOrigins["*"] || s.allowOrigins[origin]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		next(w, r)
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	var req queryRequest
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ans, err := s.svc.Query(ctx, req.Query, req.TopK)
	if err != nil {
		status, detail := statusFor(err)
		log.Warn().Err(err).Int("status", status).Msg("Query failed")
		writeError(w, status, detail)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h, err := s.svc.Health(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, models.Health{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, h)
}

// statusFor maps the error taxonomy onto HTTP statuses: caller input
// errors, index-not-built, and service-unavailable are distinct.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidQuery):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrIndexEmpty):
		return http.StatusNotFound, "no manual sections indexed yet, run ingestion first"
	case errors.Is(err, models.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable, "embedding service unavailable, try again later"
	case errors.Is(err, models.ErrIndexUnavailable):
		return http.StatusServiceUnavailable, "vector index unavailable"
	case errors.Is(err, models.ErrModelMismatch):
		return http.StatusInternalServerError, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
