package api

import (
	"net/http"
	"time"

	"github.com/echovault/echovault/internal/api/respond"
)

// HealthHandler serves the aggregated service health.
type HealthHandler struct {
	health HealthReporter
}

// CheckHealth handles GET /api/health. It reports 503 with the component map while any
// dependency is down.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "UP",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.health == nil {
		respond.WriteJSON(w, http.StatusOK, resp)
		return
	}
	resp["components"] = h.health.Components()
	if !h.health.IsHealthy() {
		resp["status"] = "DEGRADED"
		respond.WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	respond.WriteJSON(w, http.StatusOK, resp)
}
