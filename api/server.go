/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the table-side web app

ROUTE GROUPS:
  /api/sessions             Create and list (public)
  /api/sessions/{id}/join   Join and QR code (public)
  /api/sessions/{id}/*      Participant routes (bearer token)
  /api/requests/{rid}/*     Request resolution (manager)
  /api/scenarios/*          Demo scenarios

AUTH:
  Participant routes require a token for the session in the URL. Manager
  routes additionally go through RequireManager.

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token issue and middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSession)
			r.Get("/", h.ListSessions)

			r.Route("/{id}", func(r chi.Router) {
				r.Post("/join", h.Join)
				r.Get("/qr", h.JoinQR)

				// Participant routes
				r.Group(func(r chi.Router) {
					r.Use(h.Auth.Authenticate)

					r.Get("/", h.GetSession)
					r.Get("/participants", h.ListParticipants)
					r.Get("/summary", h.GetSummary)
					r.Post("/requests", h.CreateRequest)
					r.Get("/requests", h.ListRequests)
					r.Post("/checkout", h.BeginCheckout)
					r.Post("/count", h.SubmitCount)
					r.Post("/preference", h.SetPreference)
					r.Get("/distribution/suggest", h.SuggestDistribution)
					r.Get("/actions", h.GetActions)
					r.Get("/order", h.GetCheckoutOrder)
					r.Get("/notifications", h.ListNotifications)

					// Manager routes
					r.Group(func(r chi.Router) {
						r.Use(RequireManager)

						r.Post("/settle", h.StartSettling)
						r.Post("/close", h.CloseSession)
						r.Post("/participants/{token}/validate", h.ValidateCount)
						r.Post("/participants/{token}/reject", h.RejectCount)
						r.Post("/participants/{token}/override", h.OverrideCount)
						r.Post("/participants/{token}/confirm", h.ConfirmDistribution)
						r.Post("/distribution", h.OverrideDistribution)
						r.Post("/checkout-next", h.CheckoutNext)
						r.Post("/reconcile", h.ReconcilePools)
					})
				})
			})
		})

		r.Route("/requests", func(r chi.Router) {
			r.Use(h.Auth.Authenticate)
			r.Use(RequireManager)

			r.Post("/{rid}/approve", h.ApproveRequest)
			r.Post("/{rid}/decline", h.DeclineRequest)
			r.Post("/{rid}/edit", h.EditRequest)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
