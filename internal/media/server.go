package media

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relayline/relayline/internal/domain"
	"github.com/relayline/relayline/internal/logging"
)

// HealthFunc reports current per-account health for /healthz.
type HealthFunc func() map[string]domain.AccountHealth

// Server exposes tokened artifact fetches, health and metrics.
type Server struct {
	pipeline *Pipeline
	health   HealthFunc
	log      *logging.Logger
	httpSrv  *http.Server
}

// NewServer builds the media HTTP server. health may be nil, in which case
// /healthz reports only liveness.
func NewServer(addr string, pipeline *Pipeline, health HealthFunc, log *logging.Logger) *Server {
	s := &Server{pipeline: pipeline, health: health, log: log.Sub("media-http")}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/media/{artifactID}", s.serveArtifact)
	r.Get("/healthz", s.serveHealth)
	r.Handle("/metrics", promhttp.Handler())

	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("media endpoint listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler returns the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request) {
	artifactID := chi.URLParam(r, "artifactID")
	token := r.URL.Query().Get("token")
	filename := r.URL.Query().Get("filename")

	if err := s.pipeline.tokens.Validate(token, artifactID, filename); err != nil {
		switch {
		case errors.Is(err, ErrTokenUnknown), errors.Is(err, ErrTokenExpired), errors.Is(err, ErrTokenMismatch):
			http.Error(w, err.Error(), http.StatusForbidden)
		default:
			http.Error(w, "token validation failed", http.StatusForbidden)
		}
		return
	}

	data, err := s.pipeline.artifacts.Get(artifactID)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		s.log.Error().Err(err).Str("artifact", artifactID).Msg("reading artifact")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Disposition", `inline; filename="`+filename+`"`)
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	resp := struct {
		Status   string                          `json:"status"`
		Accounts map[string]domain.AccountHealth `json:"accounts,omitempty"`
	}{Status: "ok"}
	if s.health != nil {
		resp.Accounts = s.health()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
