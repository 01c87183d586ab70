package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ldonohue/eventlive/internal/gateway"
)

// NewRouter creates and configures the HTTP router: the two live channel
// endpoints plus the mutation endpoints that feed the notifier.
func NewRouter(gw *gateway.Gateway, h *ParticipantHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// Live channels
	r.Get("/ws/checkin/{eventID}", gw.HandleEventChannel)
	r.Get("/ws/dashboard", gw.HandleDashboard)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())

		r.Post("/events/{eventID}/participants", h.Register)
		r.Post("/participants/{id}/checkin", h.CheckIn)
		r.Post("/participants/{id}/checkout", h.CheckOut)
	})

	return r
}
