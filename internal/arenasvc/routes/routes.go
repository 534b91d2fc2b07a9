package routes

import (
	"github.com/go-chi/chi"

	"github.com/stakearena/arena-services/internal/arenasvc/handlers"
)

func SetRoutes(r *chi.Mux, h *handlers.Handler) {
	r.Route("/v1", func(r chi.Router) {
		// The socket authenticates itself before upgrading, so no
		// middleware here.
		r.Get("/ws", h.HandleWebSocket)
		r.Get("/health", h.HealthHandler)
	})
}
