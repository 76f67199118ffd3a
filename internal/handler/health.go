package handler

import (
	"net/http"

	natsclient "github.com/inkwell/storybot/internal/nats"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	feed *natsclient.Client
}

// NewHealthHandler returns a HealthHandler. feed is the transcript feed
// connection; nil means transcripts are not published and readiness only
// reflects the process being up.
func NewHealthHandler(feed *natsclient.Client) *HealthHandler {
	return &HealthHandler{feed: feed}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready handles GET /ready. Chat keeps working while the transcript feed is
// down, but the instance reports not ready so operators notice lost
// transcripts.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.feed != nil && !h.feed.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "transcript feed not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
