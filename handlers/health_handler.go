package handlers

import (
	"context"
	"net/http"
	"time"

	"beatspace/utils"
)

const version = "1.0.0"

type HealthCheckResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
	Channels  int       `json:"websocket_connections"`
}

// HealthCheck reports database connectivity, open push channels and process
// uptime.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthCheckResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Database:  "connected",
		Version:   version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	}
	if h.channels != nil {
		response.Channels = h.channels.Count()
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	code := http.StatusOK
	if err := h.svc.Store().Ping(ctx); err != nil {
		response.Status = "unhealthy"
		response.Database = "disconnected"
		code = http.StatusServiceUnavailable
	}
	utils.RespondWithJSON(w, code, response)
}
