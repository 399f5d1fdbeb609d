package models

// SteamIdentity is the external identity linked to a player.
type SteamIdentity struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// Player represents a player slot inside a session.
type Player struct {
	Name    string         `json:"name,omitempty"`
	Steam   *SteamIdentity `json:"steam,omitempty"`
	SteamID string         `json:"steam_id,omitempty"`
	Slot    int            `json:"slot,omitempty"`
	TeamID  *int           `json:"team_id,omitempty"`
	IsHost  bool           `json:"is_host,omitempty"`
	Score   *int           `json:"score,omitempty"`
}

// DisplayName prefers the linked nickname over the in-game name.
func (p Player) DisplayName() string {
	if p.Steam != nil && p.Steam.Nickname != "" {
		return p.Steam.Nickname
	}
	if p.Name != "" {
		return p.Name
	}
	return "Player"
}

// LinkedID returns the external identity id, if any.
func (p Player) LinkedID() string {
	if p.Steam != nil && p.Steam.ID != "" {
		return p.Steam.ID
	}
	return p.SteamID
}

// Avatar returns the linked avatar URL, if any.
func (p Player) Avatar() string {
	if p.Steam != nil {
		return p.Steam.Avatar
	}
	return ""
}

// IsStar marks hosts and the two commander slots (1 and 6).
func (p Player) IsStar() bool {
	return p.IsHost || p.Slot == 1 || p.Slot == 6
}

// OnTeamTwo reports whether the player is assigned to team 2. Unassigned
// players and team 1 share the other side.
func (p Player) OnTeamTwo() bool {
	return p.TeamID != nil && *p.TeamID == 2
}
