package handler

import (
	"net/http"
	"time"

	"github.com/nutricomm/kebun-gizi/internal/api/respond"
	"github.com/nutricomm/kebun-gizi/internal/backend"
)

const pingTimeout = 3 * time.Second

type backendView struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	URL       string `json:"url"`
	WebSocket string `json:"websocket"`
}

func (h *Handler) backendView() backendView {
	host, port := h.Endpoints.Backend()
	return backendView{
		Host:      host,
		Port:      port,
		URL:       h.Endpoints.BackendURL(),
		WebSocket: h.Endpoints.WebSocketURL(),
	}
}

// GetBackend returns the backend address in use.
// @Summary Current backend
// @Tags backend
// @Produce json
// @Success 200 {object} handler.backendView
// @Router /backend [get]
func (h *Handler) GetBackend(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, h.backendView())
}

type setBackendRequest struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// SetBackend re-points the agent at another backend and restarts the live
// channel against it. The new address is pinged first unless force=true.
// @Summary Change backend
// @Description Validates and pings host:port, then switches the REST client and live channel to it.
// @Tags backend
// @Accept json
// @Produce json
// @Param body body handler.setBackendRequest true "New backend address"
// @Param force query bool false "Skip the reachability check"
// @Success 200 {object} handler.backendView
// @Failure 400 {object} respond.ErrorResponse
// @Failure 502 {object} respond.ErrorResponse
// @Router /backend [put]
func (h *Handler) SetBackend(w http.ResponseWriter, r *http.Request) {
	var req setBackendRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_BODY", "Body must be {\"host\", \"port\"}", err.Error())
		return
	}
	if req.Host == "" || req.Port <= 0 || req.Port > 65535 {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_ADDRESS", "host is required and port must be 1-65535")
		return
	}

	if r.URL.Query().Get("force") != "true" && !backend.Ping(r.Context(), req.Host, req.Port, pingTimeout) {
		respond.WriteError(w, http.StatusBadGateway, "UNREACHABLE", "No backend answered at the new address")
		return
	}

	if err := h.Endpoints.SetBackend(req.Host, req.Port); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_ADDRESS", err.Error())
		return
	}
	h.Logger.Info("Backend reconfigured", "host", req.Host, "port", req.Port)

	h.Latest.Reset()
	if h.Live != nil {
		if err := h.Live.Restart(); err != nil {
			h.Logger.Error("Live channel restart failed", "error", err)
			respond.WriteErrorDetail(w, http.StatusInternalServerError, "RESTART_FAILED", "Live channel could not restart", err.Error())
			return
		}
	}
	respond.WriteJSONObject(w, http.StatusOK, h.backendView())
}
