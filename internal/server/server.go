// Package server exposes the HTTP API: allocation targets, rebalance
// passes, the operation log, and health.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/equilibre/internal/config"
	"github.com/aristath/equilibre/internal/database"
	"github.com/aristath/equilibre/internal/domain"
	"github.com/aristath/equilibre/internal/modules/rebalancing"
)

// Server is the HTTP front of the rebalancer.
type Server struct {
	cfg      *config.Config
	db       *database.DB
	registry *domain.Registry
	svc      *rebalancing.Service
	opLog    *rebalancing.OperationLog

	httpServer *http.Server
	log        zerolog.Logger
}

// New wires the server and its routes.
func New(cfg *config.Config, db *database.DB, registry *domain.Registry, svc *rebalancing.Service, opLog *rebalancing.OperationLog, log zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		db:       db,
		registry: registry,
		svc:      svc,
		opLog:    opLog,
		log:      log.With().Str("service", "http").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/portfolio", s.handlePortfolio)
		r.Get("/targets", s.handleGetTargets)
		r.Put("/targets", s.handlePutTargets)
		r.Get("/operations", s.handleOperations)
		r.Post("/rebalance", s.handleRebalance)
		r.Post("/rebalance/submit", s.handleSubmit)
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
