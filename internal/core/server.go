// Package core provides the HTTP chassis for the Content Pilot API. It builds
// the chi router, applies the cross-cutting middleware (recovery, request
// IDs, logging, CORS, timeouts, metrics) and renders responses and errors in
// one envelope format before requests reach the domain handlers.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"contentpilot/internal/config"
)

// Server encapsulates the router and its dependencies. Optional fields are
// set by main after NewServer and before MountRoutes.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// Instrument wraps every request for metrics. Nil disables it.
	Instrument func(http.Handler) http.Handler
	// MetricsHandler is mounted at /metrics when non-nil.
	MetricsHandler http.Handler
	// HealthProbes are run by GET /health.
	HealthProbes []HealthProbe
	// V1RouteRegistrars mount the domain handlers under /v1.
	V1RouteRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer validates the mandatory dependencies and prepares an empty
// router. The caller mounts routes with MountRoutes.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ListenAndServe serves HTTP on the configured port until ctx is cancelled,
// then shuts down gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, shutdownTimeout time.Duration) error {
	addr := ":" + s.Config.Server.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.requestTimeout() + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.Logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.Logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.Logger.Info("HTTP server stopped")
	return nil
}
