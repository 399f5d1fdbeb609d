package models

// DraftState defines the state of a Team Picker draft.
type DraftState string

const (
	DraftStateNotStarted       DraftState = "not_started"
	DraftStateAwaitingCoinToss DraftState = "awaiting_coin_toss"
	DraftStatePicking          DraftState = "picking"
	DraftStatePicksComplete    DraftState = "picks_complete"
	DraftStateFinalized        DraftState = "finalized"
)

// Role defines a participant's role in a draft.
type Role string

const (
	RoleNone       Role = ""
	RoleCommander1 Role = "commander1"
	RoleCommander2 Role = "commander2"
	RoleSpectator  Role = "spectator"
)

// IsCommander reports whether the role may drive the draft.
func (r Role) IsCommander() bool {
	return r == RoleCommander1 || r == RoleCommander2
}

// Team returns the team a commander role drafts for (0 for non-commanders).
func (r Role) Team() int {
	switch r {
	case RoleCommander1:
		return 1
	case RoleCommander2:
		return 2
	default:
		return 0
	}
}

// RosterPlayer is a player in the draft pool.
type RosterPlayer struct {
	SteamID  string `json:"steam_id"`
	Nickname string `json:"nickname,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Slot     int    `json:"slot,omitempty"`
}

// Name returns the nickname or the id.
func (p RosterPlayer) Name() string {
	if p.Nickname != "" {
		return p.Nickname
	}
	return p.SteamID
}

// Participant is a commander seat.
type Participant struct {
	Role     Role   `json:"role"`
	SteamID  string `json:"steam_id,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// DraftPick records a single pick.
type DraftPick struct {
	Order  int          `json:"order"`
	TeamID int          `json:"team_id"`
	Player RosterPlayer `json:"player"`
}

// DraftSession is the server-authoritative Team Picker record for a session.
type DraftSession struct {
	SessionID          string         `json:"session_id"`
	State              DraftState     `json:"state"`
	Participants       []Participant  `json:"participants"`
	Picks              []DraftPick    `json:"picks"`
	Roster             []RosterPlayer `json:"roster"`
	CoinWinnerTeam     *int           `json:"coin_winner_team"`
	NextTeam           *int           `json:"next_team"`
	PicksComplete      bool           `json:"picks_complete"`
	YourRole           Role           `json:"your_role,omitempty"`
	Commander1Accepted bool           `json:"commander1_accepted"`
	Commander2Accepted bool           `json:"commander2_accepted"`
}

// Commander returns the participant holding role, if present.
func (d *DraftSession) Commander(role Role) (Participant, bool) {
	if d == nil {
		return Participant{}, false
	}
	for _, p := range d.Participants {
		if p.Role == role {
			return p, true
		}
	}
	return Participant{}, false
}

// Picked reports whether the player id already appears in the pick sequence.
func (d *DraftSession) Picked(steamID string) bool {
	if d == nil {
		return false
	}
	for _, p := range d.Picks {
		if p.Player.SteamID == steamID {
			return true
		}
	}
	return false
}

// TeamPicks returns the picks made for a team, in sequence order.
func (d *DraftSession) TeamPicks(team int) []DraftPick {
	if d == nil {
		return nil
	}
	var out []DraftPick
	for _, p := range d.Picks {
		if p.TeamID == team {
			out = append(out, p)
		}
	}
	return out
}

// DraftEnvelope is the body of GET /team_picker/{id}; Session is nil when no draft exists.
type DraftEnvelope struct {
	Session *DraftSession `json:"session"`
}

// DraftUpdate is the optional payload of a team_picker:update push.
type DraftUpdate struct {
	SessionID string        `json:"session_id"`
	Session   *DraftSession `json:"session,omitempty"`
}

// OpenDraft is an entry returned by /team_picker/open_for_me.
type OpenDraft struct {
	SessionID   string `json:"session_id"`
	SessionName string `json:"session_name,omitempty"`
	Role        Role   `json:"role,omitempty"`
}

// Active reports whether a draft exists and has not been finalized.
func (d *DraftSession) Active() bool {
	return d != nil && d.State != DraftStateFinalized
}
