package viewserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bzdash/go/internal/events"
)

// viewTopics are forwarded to /view/events subscribers.
var viewTopics = []events.Topic{
	events.TopicViewSessions,
	events.TopicViewDraft,
	events.TopicViewOnline,
	events.TopicViewIndicator,
	events.TopicLiveStatus,
	events.TopicInvitePrompt,
}

// Events streams render-model updates as server-sent events named after
// their topic. The stream ends when the client goes away or the bus closes.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.respondError(w, http.StatusInternalServerError, "streaming unsupported", "")
		return
	}

	sub := h.dash.Bus().Subscribe(viewTopics...)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log.Debug().Str("remote_addr", r.RemoteAddr).Msg("view event stream opened")

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(evt.Payload)
			if err != nil {
				log.Warn().Err(err).Str("topic", string(evt.Topic)).Msg("failed to encode view event")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Topic, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
