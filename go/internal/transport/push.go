package transport

import (
	"context"
	"encoding/json"
	"strings"
)

// Push channel event names.
const (
	EventSessionsUpdate   = "sessions:update"
	EventTeamPickerUpdate = "team_picker:update"
	EventPresenceUpdate   = "presence:update"

	eventJoin  = "join"
	eventLeave = "leave"
)

// Frame is the envelope of every push message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type roomRequest struct {
	Room     string `json:"room"`
	ClientID string `json:"client_id,omitempty"`
}

// PushHandlers receive the lifecycle of a secondary push channel.
type PushHandlers struct {
	OnConnect    func()
	OnDisconnect func(err error)
	OnEvent      func(frame Frame)
}

// PushClient is a room-based secondary push channel. Rooms joined before or
// during a disconnect are re-joined on every (re)connect.
type PushClient interface {
	Run(ctx context.Context, h PushHandlers) error
	Join(room string) error
	Leave(room string) error
}

// TeamPickerRoom names the push room carrying updates for one draft.
func TeamPickerRoom(sessionID string) string {
	return "team_picker:" + sessionID
}

// roomSet tracks joined rooms in join order.
type roomSet struct {
	order []string
}

func (r *roomSet) add(room string) bool {
	for _, existing := range r.order {
		if existing == room {
			return false
		}
	}
	r.order = append(r.order, room)
	return true
}

func (r *roomSet) remove(room string) bool {
	for i, existing := range r.order {
		if existing == room {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return true
		}
	}
	return false
}

func (r *roomSet) list() []string {
	return append([]string(nil), r.order...)
}

func sanitizeSubject(room string) string {
	return strings.NewReplacer(":", ".", " ", "_").Replace(room)
}
