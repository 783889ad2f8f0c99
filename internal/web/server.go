// Package web serves the label index over a JSON HTTP API.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kozaktomas/faceprints/internal/config"
	"github.com/kozaktomas/faceprints/internal/faceindex"
	"github.com/kozaktomas/faceprints/internal/fingerprint"
	"github.com/kozaktomas/faceprints/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	config     *config.WebConfig
	index      *faceindex.Index
	provider   fingerprint.Provider
	logger     *zap.Logger
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer creates a new web server. provider may be nil to disable image
// classification.
func NewServer(cfg *config.WebConfig, index *faceindex.Index, provider fingerprint.Provider, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()

	s := &Server{
		config:   cfg,
		index:    index,
		provider: provider,
		logger:   logger,
		router:   r,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(2 * time.Minute))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Set up routes
	s.setupRoutes()

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting web server",
		zap.String("addr", s.httpServer.Addr),
		zap.String("index", s.index.Root()))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
