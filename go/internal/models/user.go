package models

// User is the signed-in account returned by /me.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Profile     string `json:"profile,omitempty"`
	Provider    string `json:"provider,omitempty"`
}

// Name returns the trimmed display name or the id.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.ID
}

// OnlinePlayer is an entry from /players/online or /players/site-online.
type OnlinePlayer struct {
	ID      string         `json:"id,omitempty"`
	Name    string         `json:"name,omitempty"`
	Steam   *SteamIdentity `json:"steam,omitempty"`
	SteamID string         `json:"steam_id,omitempty"`
}

// LinkedID returns the best identity key for matching against the site-online list.
func (p OnlinePlayer) LinkedID() string {
	if p.Steam != nil && p.Steam.ID != "" {
		return p.Steam.ID
	}
	if p.SteamID != "" {
		return p.SteamID
	}
	return p.ID
}

// SiteID is the key used by the site-online list.
func (p OnlinePlayer) SiteID() string {
	if p.ID != "" {
		return p.ID
	}
	return p.LinkedID()
}

// DisplayName prefers the linked nickname.
func (p OnlinePlayer) DisplayName() string {
	if p.Steam != nil && p.Steam.Nickname != "" {
		return p.Steam.Nickname
	}
	if p.Name != "" {
		return p.Name
	}
	return "Player"
}

// Mod is an entry of the mods catalogue. The backend keys mods by id, so ID
// is filled in by the client.
type Mod struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Image string `json:"image,omitempty"`
}

// HistoryPoint is one bucket of the activity history summary.
type HistoryPoint struct {
	At       string `json:"t,omitempty"`
	Sessions int    `json:"sessions"`
	Players  int    `json:"players"`
}
