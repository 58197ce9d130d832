// Package server exposes the monitoring and ad-hoc query HTTP
// endpoints used when the driver runs as a daemon.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"querybench/internal/domain"
	"querybench/internal/runner"
)

// AdhocExecutor executes one ad-hoc query outside the batch.
type AdhocExecutor interface {
	Query(ctx context.Context, sqlText, database string) (*runner.ResultSet, error)
}

// Options configures the HTTP server.
type Options struct {
	Addr           string
	Status         *domain.RunStatus
	InFlight       func() int64
	Executor       AdhocExecutor // nil disables the query API
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
	Log            *slog.Logger
}

// Server serves the monitoring and query endpoints.
type Server struct {
	opts Options
	http *http.Server
}

// New creates a Server with its routes mounted.
func New(opts Options) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.Use(RateLimiter(RateLimitConfig{
		RequestsPerSecond: opts.RateLimitRPS,
		Burst:             opts.RateLimitBurst,
	}))

	s := &Server{opts: opts}
	r.Get("/healthz", s.handleHealth)
	r.Get("/v1/status", s.handleStatus)
	if opts.Executor != nil {
		r.Post("/v1/query", s.handleQuery)
	}

	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the mounted HTTP handler, for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var inFlight int64
	if s.opts.InFlight != nil {
		inFlight = s.opts.InFlight()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":           s.opts.Status.State(),
		"iteration":       s.opts.Status.Iteration(),
		"dispatched":      s.opts.Status.Dispatched(),
		"failures":        s.opts.Status.Failures(),
		"async_in_flight": inFlight,
	})
}

type queryRequest struct {
	SQL      string `json:"sql"`
	Database string `json:"database,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sql is required"})
		return
	}

	set, err := s.opts.Executor.Query(r.Context(), req.SQL, req.Database)
	if err != nil {
		s.opts.Log.Error("ad-hoc query failed", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
