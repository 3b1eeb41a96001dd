package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)
	r.Get("/ws", h.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Customer inbound messages
		r.Post("/messages", h.SubmitMessage)

		// Request contexts and audit trails
		r.Get("/requests/{id}", h.GetRequest)
		r.Get("/requests/{id}/audit", h.GetRequestAudit)

		// Review queue
		r.Get("/cases", h.ListCases)
		r.Get("/cases/{id}", h.GetCase)
		r.Post("/cases/{id}/claim", h.ClaimCase)
		r.Post("/cases/{id}/resolve", h.ResolveCase)

		// Customer views
		r.Get("/customers/{id}/cases", h.ListCustomerCases)
		r.Get("/customers/{id}/orders", h.ListCustomerOrders)
		r.Get("/customers/{id}/subscriptions", h.ListCustomerSubscriptions)

		// Subscriptions
		r.Post("/subscriptions", h.CreateSubscription)
		r.Post("/subscriptions/{id}/cancel", h.CancelSubscription)
	})
}
