/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the frontend
  5. JWT:        RequireAuth on everything under /api except login;
                 RequireAdmin on /api/admin and /api/scenarios

ROUTE GROUPS:
  /api/auth/*       Token issuance
  /api/admin/*      Customer/policy/installment administration
  /api/customer/*   The authenticated customer's own data
  /api/scenarios/*  Demo scenarios (dev only)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Middleware implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.Login)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAuth)
			r.Use(RequireAdmin)

			r.Route("/customers", func(r chi.Router) {
				r.Get("/", h.ListCustomers)
				r.Post("/", h.CreateCustomer)
				r.Get("/{id}", h.GetCustomer)
				r.Put("/{id}", h.UpdateCustomer)
				r.Delete("/{id}", h.DeleteCustomer)
			})

			r.Route("/policies", func(r chi.Router) {
				r.Get("/", h.ListPolicies)
				r.Post("/", h.CreatePolicy)
				r.Get("/number-exists", h.PolicyNumberExists)
				r.Get("/{id}", h.GetPolicy)
				r.Put("/{id}", h.UpdatePolicy)
				r.Delete("/{id}", h.DeletePolicy)
			})

			r.Route("/installments", func(r chi.Router) {
				r.Get("/", h.ListInstallmentProjections)
				r.Post("/", h.CreateInstallment)
				r.Get("/{id}", h.GetInstallment)
				r.Put("/{id}/payment", h.RecordPayment)
				r.Delete("/{id}", h.DeleteInstallment)
			})

			r.Get("/dashboard", h.Dashboard)
		})

		// Customer routes
		r.Route("/customer", func(r chi.Router) {
			r.Use(RequireAuth)

			r.Get("/policies", h.MyPolicies)
			r.Get("/installments", h.MyInstallments)
		})

		// Scenario routes (dev/demo only)
		r.Route("/scenarios", func(r chi.Router) {
			r.Use(RequireAuth)
			r.Use(RequireAdmin)

			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
