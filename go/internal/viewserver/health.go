package viewserver

import (
	"net/http"
)

// HealthStatus reports whether the dashboard is receiving session data.
type HealthStatus struct {
	Healthy         bool     `json:"healthy"`
	Live            string   `json:"live"`
	StreamConnected bool     `json:"stream_connected"`
	PushConnected   bool     `json:"push_connected"`
	DraftOpen       string   `json:"draft_open,omitempty"`
	Errors          []string `json:"errors"`
}

// Check builds the readiness status from the live indicator.
func (h *Handler) Check() HealthStatus {
	live := h.dash.Live()
	status := HealthStatus{
		Healthy:         live.Live,
		Live:            live.Text,
		StreamConnected: live.Stream,
		PushConnected:   live.Push,
		DraftOpen:       h.dash.DraftID(),
		Errors:          []string{},
	}

	if !live.Stream {
		status.Errors = append(status.Errors, "session stream disconnected")
	}
	if !live.Live {
		status.Errors = append(status.Errors, "no live session channel")
	}
	return status
}

// Ready serves the readiness status; 503 while no channel is live.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := h.Check()
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	h.respondJSON(w, code, status)
}
