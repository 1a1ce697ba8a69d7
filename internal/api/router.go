package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/deckstats/internal/api/handlers"
	"github.com/ramonehamilton/deckstats/internal/api/response"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.healthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		cardHandler := handlers.NewCardHandler(s.services.Stats, s.services.People, s.logger)
		r.Route("/cards", func(r chi.Router) {
			r.Get("/", cardHandler.GetCards)
			r.Get("/{name}", cardHandler.GetCard)
		})
		r.Route("/people/{person}", func(r chi.Router) {
			r.Get("/unique-cards", cardHandler.GetUniqueCards)
			r.Get("/trailblazer-cards", cardHandler.GetTrailblazerCards)
		})

		playabilityHandler := handlers.NewPlayabilityHandler(s.services.Stats, s.logger)
		r.Route("/playability", func(r chi.Router) {
			r.Get("/", playabilityHandler.GetPlayability)
			r.Get("/rank", playabilityHandler.GetRank)
			r.Get("/key-cards", playabilityHandler.GetKeyCards)
		})
		r.Route("/seasons/{seasonID}", func(r chi.Router) {
			r.Get("/playability", playabilityHandler.GetSeasonPlayability)
			r.Get("/deck-count", playabilityHandler.GetSeasonDeckCount)
		})
		r.Route("/archetypes", func(r chi.Router) {
			r.Get("/deck-counts", playabilityHandler.GetDeckCounts)
			r.Get("/{archetypeID}/playability", playabilityHandler.GetArchetypePlayability)
			r.Get("/{archetypeID}/playability/chart", playabilityHandler.GetArchetypeChart)
		})

		systemHandler := handlers.NewSystemHandler(s.services.Loader, s.services.Importer, s.logger)
		r.Route("/system", func(r chi.Router) {
			r.Get("/version", systemHandler.GetVersion)
			r.Get("/refresh-metrics", systemHandler.GetRefreshMetrics)
			r.Get("/families", systemHandler.GetFamilies)
			r.Post("/families/invalidate", systemHandler.InvalidateAll)
			r.Post("/families/{family}/invalidate", systemHandler.InvalidateFamily)
			r.Post("/families/{family}/refresh", systemHandler.RefreshFamily)
			if s.services.Importer != nil {
				r.Post("/cards/import", systemHandler.ImportCards)
			}
		})
	})
}

// healthCheck returns server health status.
func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "deckstats-api",
	})
}
