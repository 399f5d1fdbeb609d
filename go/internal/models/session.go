package models

import (
	"strings"
	"time"
)

// SessionState is the lifecycle state reported by the backend for a game session.
// Values are kept as received so filters can match them case-insensitively.
type SessionState string

const (
	SessionStatePreGame  SessionState = "PreGame"
	SessionStateInGame   SessionState = "InGame"
	SessionStatePostGame SessionState = "PostGame"
	SessionStateUnknown  SessionState = "Unknown"
)

// Normalize maps any casing of a known state onto its canonical value; anything
// else (including the empty string) is Unknown.
func (s SessionState) Normalize() SessionState {
	switch strings.ToLower(string(s)) {
	case "pregame":
		return SessionStatePreGame
	case "ingame":
		return SessionStateInGame
	case "postgame":
		return SessionStatePostGame
	default:
		return SessionStateUnknown
	}
}

// Level describes the map a session is running.
type Level struct {
	Name  string `json:"name,omitempty"`
	Image string `json:"image,omitempty"`
}

// ModDetails describes the mod a session is running.
type ModDetails struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Session represents a live game session tracked by the backend.
type Session struct {
	ID         string       `json:"id"`
	Name       string       `json:"name,omitempty"`
	State      SessionState `json:"state,omitempty"`
	NATType    string       `json:"nat_type,omitempty"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	Players    []Player     `json:"players"`
	Attributes Attributes   `json:"attributes,omitempty"`
	Level      *Level       `json:"level,omitempty"`
	MapFile    string       `json:"map_file,omitempty"`
	Mod        string       `json:"mod,omitempty"`
	ModDetails *ModDetails  `json:"mod_details,omitempty"`
}

// DisplayName falls back to the id for unnamed sessions.
func (s Session) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// StartedAtOrZero returns the creation timestamp, or the zero time when the
// backend did not send one.
func (s Session) StartedAtOrZero() time.Time {
	if s.StartedAt == nil {
		return time.Time{}
	}
	return *s.StartedAt
}

// MapName returns the level name, or the raw map file when the level was never enriched.
func (s Session) MapName() string {
	if s.Level != nil && s.Level.Name != "" {
		return s.Level.Name
	}
	return s.MapFile
}

// ModName returns the mod display name, or the raw mod id.
func (s Session) ModName() string {
	if s.ModDetails != nil && s.ModDetails.Name != "" {
		return s.ModDetails.Name
	}
	return s.Mod
}

// Attributes is the free-form attribute bag attached to a session
// (worst_ping, game_mode, time_limit, kill_limit, max_players, ...).
type Attributes map[string]any

// Int reads a numeric attribute. JSON numbers decode as float64 so both are accepted.
func (a Attributes) Int(key string) (int, bool) {
	switch v := a[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}

// String reads a string attribute.
func (a Attributes) String(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

// SessionsPayload is the body shared by the poll endpoint and the streaming channel.
type SessionsPayload struct {
	Sessions []Session `json:"sessions"`
}
