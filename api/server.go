/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests
  5. APIKeyAuth: Shared-key gate on every route

ROUTE GROUPS:
  /carts/*       Cart lifecycle, order search, visit log
  /inventory/*   Audit, capacity planning and delivery

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
// An empty apiKey disables authentication (development mode).
func NewRouter(h *Handler, apiKey string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", HeaderAPIKey},
		AllowCredentials: true,
	}))
	r.Use(APIKeyAuth(apiKey))

	// Cart routes
	r.Route("/carts", func(r chi.Router) {
		r.Post("/", h.CreateCart)
		r.Get("/search/", h.SearchOrders)
		r.Post("/visits/{visit_id}", h.RecordVisits)
		r.Post("/{cart_id}/items/{item_sku}", h.SetCartItem)
		r.Post("/{cart_id}/checkout", h.CheckoutCart)
	})

	// Inventory routes
	r.Route("/inventory", func(r chi.Router) {
		r.Get("/audit", h.GetInventoryAudit)
		r.Post("/plan", h.GetCapacityPlan)
		r.Post("/deliver/{order_id}", h.DeliverCapacity)
	})

	return r
}
