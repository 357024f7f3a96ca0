package server

import (
	"github.com/pinmap/pinmap/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	// Standard health endpoints
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	// Version endpoint
	s.router.Get("/version", handlers.VersionHandler)

	// Metrics endpoint (in server package to access HandleError)
	s.router.Get("/metrics", MetricsHandler)

	mapsHandler := &handlers.MapsHandler{
		Store:        s.deps.Store,
		Orchestrator: s.deps.Orchestrator,
		Leaflet:      s.deps.Leaflet,
		Static:       s.deps.Static,
	}
	geocodeHandler := &handlers.GeocodeHandler{
		Geocoder: s.deps.Geocoder,
		Locator:  s.deps.Locator,
	}

	s.router.Post("/maps", mapsHandler.Save)
	s.router.Get("/maps", mapsHandler.List)
	s.router.Get("/maps/{name}", mapsHandler.Get)
	s.router.Delete("/maps/{name}", mapsHandler.Delete)
	s.router.Get("/maps/{name}/view", mapsHandler.View)
	s.router.Get("/maps/{name}/page", mapsHandler.Page)
	s.router.Get("/maps/{name}/image", mapsHandler.Image)
	s.router.Post("/draw", mapsHandler.Draw)

	s.router.Get("/geocode", geocodeHandler.Geocode)
	s.router.Get("/locate", geocodeHandler.Locate)
}
