package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/faceprints/internal/web/handlers"
	"github.com/kozaktomas/faceprints/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	// Create handlers
	labelsHandler := handlers.NewLabelsHandler(s.index, s.logger)
	matchHandler := handlers.NewMatchHandler(s.index, s.provider, s.logger)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireToken(s.config.APIToken))

		// Labels
		r.Get("/labels", labelsHandler.List)
		r.Get("/labels/{label}", labelsHandler.Get)
		r.Post("/labels/{label}", labelsHandler.Create)
		r.Delete("/labels/{label}", labelsHandler.Delete)
		r.Get("/labels/{label}/centroid", labelsHandler.Centroid)
		r.Get("/labels/{label}/outliers", labelsHandler.Outliers)

		// Samples
		r.Get("/labels/{label}/samples", labelsHandler.Samples)
		r.Post("/labels/{label}/samples", labelsHandler.AddSample)
		r.Delete("/labels/{label}/samples/{id}", labelsHandler.DeleteSample)

		// Matching
		r.Post("/classify", matchHandler.Classify)
		r.Post("/classify/image", matchHandler.ClassifyImage)
		r.Post("/similar", matchHandler.Similar)
	})
}
