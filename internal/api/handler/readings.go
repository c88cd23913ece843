package handler

import (
	"errors"
	"net/http"

	"github.com/nutricomm/kebun-gizi/internal/api/respond"
	"github.com/nutricomm/kebun-gizi/internal/cache"
	"github.com/nutricomm/kebun-gizi/internal/livedata"
)

// GetLatestReading returns the newest live reading. Before any data arrives
// the state is "loading"; when no source was reachable it is "unavailable"
// and no reading is included.
// @Summary Latest sensor reading
// @Description Returns {state, reading}. state is loading, live or unavailable.
// @Tags readings
// @Produce json
// @Success 200 {object} cache.Snapshot
// @Success 304 "Not modified"
// @Router /readings/latest [get]
func (h *Handler) GetLatestReading(w http.ResponseWriter, r *http.Request) {
	data, etag := h.Latest.JSON()
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, data, etag, 0, false)
}

// RefreshReading forces one immediate fetch from the backend.
// @Summary Refresh reading
// @Description Pulls the latest reading over HTTP right away without changing the transport state.
// @Tags readings
// @Produce json
// @Success 200 {object} cache.Snapshot
// @Failure 502 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /readings/refresh [post]
func (h *Handler) RefreshReading(w http.ResponseWriter, r *http.Request) {
	if h.Live == nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "CHANNEL_DISABLED", "Live data channel is not configured")
		return
	}
	if err := h.Live.Refresh(r.Context()); err != nil {
		if errors.Is(err, livedata.ErrNotRunning) || errors.Is(err, livedata.ErrStopped) {
			respond.WriteError(w, http.StatusServiceUnavailable, "CHANNEL_STOPPED", "Live data channel is not running")
			return
		}
		h.Logger.Warn("Manual refresh failed", "error", err)
		respond.WriteErrorDetail(w, http.StatusBadGateway, "REFRESH_FAILED", "Could not fetch sensor data", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, h.Latest.Snapshot())
}

// GetThresholds returns the alert bands in effect.
// @Summary Alert thresholds
// @Description Returns the threshold bands used to derive notification candidates.
// @Tags readings
// @Produce json
// @Success 200 {object} alerts.Thresholds
// @Router /alerts/thresholds [get]
func (h *Handler) GetThresholds(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, h.Thresholds)
}
