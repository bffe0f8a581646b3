// Package server exposes interactive shift sessions over JSON/HTTP.
//
// A client uploads curves to create a session, runs shifts against it,
// adjusts individual shift factors by hand and fetches the master curve or
// an export. Each session owns one engine; requests on the same session
// are serialised.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexshd/tts/config"
	"github.com/alexshd/tts/session"
)

// Server routes HTTP requests to sessions.
type Server struct {
	cfg     *config.Config
	store   *session.Store
	logger  *slog.Logger
	mux     *http.ServeMux
	latency *LatencyTracker
}

// New wires the routes. A nil logger uses slog.Default.
func New(cfg *config.Config, store *session.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		store:   store,
		logger:  logger,
		mux:     http.NewServeMux(),
		latency: NewLatencyTracker(1000),
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("POST /api/sessions/{id}/shift", s.handleShift)
	s.mux.HandleFunc("PUT /api/sessions/{id}/overrides", s.handlePutOverrides)
	s.mux.HandleFunc("DELETE /api/sessions/{id}/overrides/{temperature}", s.handleDeleteOverride)
	s.mux.HandleFunc("GET /api/sessions/{id}/master-curve", s.handleMasterCurve)
	s.mux.HandleFunc("GET /api/sessions/{id}/export", s.handleExport)

	return s
}

// Handler returns the routed handler wrapped in request logging and
// latency tracking.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// ListenAndServe serves on the configured address until ctx is done, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("Server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// statusRecorder captures the response code for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)
		s.latency.Record(elapsed)

		level := slog.LevelInfo
		if rec.status >= 500 {
			level = slog.LevelError
		} else if rec.status >= 400 {
			level = slog.LevelWarn
		}
		s.logger.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", elapsed)
	})
}
