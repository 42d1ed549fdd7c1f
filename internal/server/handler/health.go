package handler

import (
	"net/http"
	"time"
)

// HealthHandler serves the liveness endpoint with the bot's identity and
// uptime so an operator curling the port can tell which process answered
// and how long it has been running.
type HealthHandler struct {
	started time.Time
}

// NewHealthHandler creates a HealthHandler. Uptime is measured from the
// moment of construction, which coincides with process startup.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{started: time.Now().UTC()}
}

// HealthCheck reports liveness.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   "copybot",
		"uptime":    now.Sub(h.started).Round(time.Second).String(),
		"timestamp": now.Format(time.RFC3339),
	})
}
