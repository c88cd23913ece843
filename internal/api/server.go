// Package api wires the agent's local HTTP API: chi router, middleware
// stack, Swagger UI and Prometheus metrics.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/nutricomm/kebun-gizi/internal/api/handler"
	"github.com/nutricomm/kebun-gizi/internal/metrics"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(deps handler.Deps) *chi.Mux {
	cfg := deps.Config
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Handler dependencies ---
	h := handler.New(deps)

	// --- Routes ---

	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/channel", h.HealthCheckChannel)
		r.Get("/cache", h.HealthCheckCache)
		r.Get("/backend", h.HealthCheckBackend)
	})

	r.Handle("/metrics", metrics.Handler())

	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Duty rotation
		r.Get("/duty/today", h.GetDutyToday)
		r.Get("/duty/schedule", h.GetSchedule)
		r.Get("/duty/export", h.ExportSchedule)
		r.Post("/duty/reload", h.ReloadRoster)
		r.Get("/duty/{participantID}", h.GetParticipantSchedule)

		// Live readings
		r.Get("/readings/latest", h.GetLatestReading)
		r.Post("/readings/refresh", h.RefreshReading)
		r.Get("/alerts/thresholds", h.GetThresholds)

		// Backend address
		r.Get("/backend", h.GetBackend)
		r.Put("/backend", h.SetBackend)
	})

	return r
}
