/*
server.go - HTTP router and middleware configuration

PURPOSE:

	Configures the chi router, middleware stack, and route definitions.
	This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
 1. Logger:     Request logging
 2. Recoverer:  Panic recovery (500 instead of crash)
 3. RequestID:  Unique ID per request for tracing
 4. CORS:       Cross-origin requests for a local frontend

SECURITY NOTE:

	No authentication middleware. This is a single-user local tool; all
	endpoints are public on the bound port.

SEE ALSO:
  - handlers.go: Handler implementations
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

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Lot routes
		r.Route("/lots", func(r chi.Router) {
			r.Get("/", h.ListLots)
			r.Post("/", h.CreateLot)
			r.Get("/{id}", h.GetLot)
			r.Put("/{id}", h.UpdateLot)
			r.Delete("/{id}", h.DeleteLot)
			r.Post("/{id}/merge", h.MergeLot)
			r.Post("/{id}/combine", h.CombineLot)
			r.Post("/{id}/keep-separate", h.KeepLotSeparate)
		})

		// Sale routes
		r.Route("/sales", func(r chi.Router) {
			r.Post("/", h.RecordSale)
			r.Post("/preview", h.PreviewSale)
		})

		// Resupply routes
		r.Post("/resupplies", h.RecordResupply)

		// Ledger routes
		r.Route("/ledger", func(r chi.Router) {
			r.Get("/", h.ListLedger)
			r.Post("/sales/{id}/reverse", h.ReverseSaleEntry)
			r.Post("/resupplies/{id}/reverse", h.ReverseResupplyEntry)
		})

		// Transaction routes
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/{id}", h.GetTransaction)
			r.Delete("/{id}", h.ReverseTransaction)
		})

		// Rollups and config
		r.Get("/valuation", h.GetValuation)
		r.Route("/config", func(r chi.Router) {
			r.Get("/tax-rate", h.GetTaxRate)
			r.Put("/tax-rate", h.SetTaxRate)
		})

		// Calculators
		r.Route("/calculator", func(r chi.Router) {
			r.Post("/shipping", h.CalculateShipping)
			r.Post("/unit-cost", h.CalculateUnitCost)
		})
	})

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
