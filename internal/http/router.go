package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CharlesNJoroge8822/space-bookings/internal/observability"
	"github.com/CharlesNJoroge8822/space-bookings/internal/ratelimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *ratelimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(AuthMiddleware(h.cfg.StoreToken))
	r.Use(RateLimitMiddleware(rl))
	r.Use(IdempotencyMiddleware())

	r.Post("/v1/reservations", h.CreateReservation)
	r.Get("/v1/reservations/{id}", h.GetReservation)
	r.Post("/v1/reservations/{id}/cancel", h.CancelReservation)
	r.Get("/v1/spaces", h.ListSpaces)
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
