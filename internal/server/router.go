package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/greencycle/greencycle/internal/handler"
	"github.com/greencycle/greencycle/internal/middleware"
)

// NewRouter wires the callback endpoints.
func NewRouter(checkout *handler.CheckoutHandler, health *handler.HealthHandler, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security)

	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	r.Route("/checkout", func(r chi.Router) {
		r.Get("/success", checkout.Success)
		r.Get("/cancel", checkout.Cancel)
	})

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)
	return r
}
