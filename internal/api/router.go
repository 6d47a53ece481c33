// Cursus - Learner Activity Analytics and Safety Monitoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cursus

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/cursus/internal/config"
	"github.com/tomtom215/cursus/internal/logging"
)

// NewRouter assembles the admin routes.
func NewRouter(h *Handlers, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Use(chimiddleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if cfg.RateLimit > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
	}
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", h.Stats)

		r.Route("/failures", func(r chi.Router) {
			r.Get("/", h.ListFailures)
			r.Post("/{statementID}/retry", h.RetryFailure)
			r.Post("/{statementID}/resolve", h.ResolveFailure)
		})

		r.Route("/keywords", func(r chi.Router) {
			r.Get("/", h.Keywords)
			r.Put("/", h.UpdateKeywords)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.RecentAlerts)
			r.Get("/summary", h.AlertSummary)
		})

		r.Route("/cohorts", func(r chi.Router) {
			r.Get("/", h.ListCohorts)
			r.Post("/sync", h.TriggerCohortSync)
		})

		r.Get("/profiles/{userID}", h.GetProfile)
	})

	return r
}

// Server runs the admin HTTP server under supervision.
type Server struct {
	srv *http.Server
}

// NewServer creates the server from configuration.
func NewServer(cfg config.ServerConfig, handler http.Handler) *Server {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       timeout,
			WriteTimeout:      timeout,
			IdleTimeout:       2 * timeout,
		},
	}
}

// Serve listens until ctx is canceled, then shuts down gracefully.
// Implements suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	logging.Info().Str("addr", s.srv.Addr).Msg("Admin HTTP server listening")

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Warn().Err(err).Msg("HTTP server shutdown incomplete")
	}
	return ctx.Err()
}
