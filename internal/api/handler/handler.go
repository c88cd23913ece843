// Package handler provides HTTP handlers for the agent's local API: duty
// rotation, the latest live reading, channel health and backend settings.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/nutricomm/kebun-gizi/internal/alerts"
	"github.com/nutricomm/kebun-gizi/internal/api/respond"
	"github.com/nutricomm/kebun-gizi/internal/backend"
	"github.com/nutricomm/kebun-gizi/internal/cache"
	"github.com/nutricomm/kebun-gizi/internal/config"
	"github.com/nutricomm/kebun-gizi/internal/livedata"
	"github.com/nutricomm/kebun-gizi/internal/rotation"
)

// LiveSource is the running live data channel as the API sees it.
type LiveSource interface {
	Status() livedata.Status
	Refresh(ctx context.Context) error
	Restart() error
}

// Deps are the shared dependencies of all handlers.
type Deps struct {
	Config     *config.Config
	Endpoints  *config.Endpoints
	Roster     *rotation.Source
	Cache      *cache.Cache
	Latest     *cache.Latest
	Live       LiveSource
	Backend    *backend.Client
	Thresholds alerts.Thresholds
	Logger     *slog.Logger

	// Now is the clock used for "today"; time.Now when nil.
	Now func() time.Time
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	Deps
}

// New creates a Handler with shared dependencies.
func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Cache == nil {
		d.Cache = cache.New(false)
	}
	if d.Latest == nil {
		d.Latest = cache.NewLatest()
	}
	return &Handler{Deps: d}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns agent name, version, garden and documentation path.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"name":      "Kebun Gizi Agent",
		"version":   "1.0.0",
		"status":    "running",
		"garden_id": h.Config.GardenID,
		"docs":      "/docs",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckChannel reports the live data channel's transport state.
// @Summary Live channel health
// @Description Returns transport state, active endpoint, fallback polling flag and delivery counters. 503 while no source is delivering.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/channel [get]
func (h *Handler) HealthCheckChannel(w http.ResponseWriter, r *http.Request) {
	if h.Live == nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "CHANNEL_DISABLED", "Live data channel is not configured")
		return
	}
	st := h.Live.Status()
	snap := h.Latest.Snapshot()

	status := http.StatusOK
	health := "healthy"
	if snap.State != cache.StateLive {
		status = http.StatusServiceUnavailable
		health = "degraded"
	}
	respond.WriteJSONObject(w, status, map[string]any{
		"status":    health,
		"channel":   st,
		"data":      snap.State,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Description Returns in-memory response cache statistics.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"cache":     h.Cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckBackend verifies the garden backend answers.
// @Summary Backend health check
// @Description Calls the backend sensor health endpoint.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/backend [get]
func (h *Handler) HealthCheckBackend(w http.ResponseWriter, r *http.Request) {
	if h.Backend == nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "BACKEND_DISABLED", "Backend client is not configured")
		return
	}
	body, err := h.Backend.Health(r.Context())
	if err != nil {
		h.Logger.Warn("Backend health check failed", "error", err)
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "unhealthy",
			"backend":   h.Endpoints.BackendURL(),
			"error":     "Backend health check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"backend":   h.Endpoints.BackendURL(),
		"response":  body,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
