package teampicker

import (
	"fmt"

	"github.com/mcdev12/bzdash/go/internal/models"
	"github.com/mcdev12/bzdash/go/internal/sessions"
)

// Command names a draft action.
type Command string

const (
	CommandStart      Command = "start"
	CommandCoinToss   Command = "coin_toss"
	CommandPick       Command = "pick"
	CommandPickRandom Command = "pick_random"
	CommandFinalize   Command = "finalize"
	CommandRestart    Command = "restart"
)

// Commands lists every command in display order.
var Commands = []Command{CommandStart, CommandCoinToss, CommandPickRandom, CommandFinalize, CommandRestart}

var commandLabels = map[Command]string{
	CommandStart:      "Start Team Picker",
	CommandCoinToss:   "Coin toss",
	CommandPickRandom: "Pick for me",
	CommandFinalize:   "Finalize",
	CommandRestart:    "Restart",
}

// ParseCommand validates a command name.
func ParseCommand(s string) (Command, bool) {
	switch c := Command(s); c {
	case CommandStart, CommandCoinToss, CommandPick, CommandPickRandom, CommandFinalize, CommandRestart:
		return c, true
	default:
		return "", false
	}
}

const (
	BannerNotStarted    = "Team Picker has not started"
	BannerCoinToss      = "Run coin toss to begin"
	BannerTossing       = "Tossing coin…"
	BannerYourPick      = "Your pick"
	BannerPicksComplete = "All picks made, finalize to lock teams"
	BannerAwaitingOther = "Awaiting other commander"
	BannerFinalized     = "Teams finalized"
)

// Control is the render state of one command button.
type Control struct {
	Command Command `json:"command"`
	Label   string  `json:"label"`
	Visible bool    `json:"visible"`
	Enabled bool    `json:"enabled"`
	Pending bool    `json:"pending,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

// PickButton is one eligible player.
type PickButton struct {
	SteamID string `json:"steam_id"`
	Name    string `json:"name"`
	Avatar  string `json:"avatar,omitempty"`
	Enabled bool   `json:"enabled"`
}

// TeamView is one side of the two-team layout.
type TeamView struct {
	Team      int                   `json:"team"`
	Title     string                `json:"title"`
	Commander *models.Participant   `json:"commander,omitempty"`
	Picks     []models.RosterPlayer `json:"picks"`
	OnTurn    bool                  `json:"on_turn"`
	CoinWon   bool                  `json:"coin_won"`
}

// RosterLine is one entry of the free-for-all roster list.
type RosterLine struct {
	Player    models.RosterPlayer `json:"player"`
	Commander bool                `json:"commander,omitempty"`
	Team      int                 `json:"team,omitempty"`
	Order     int                 `json:"order,omitempty"`
}

// View is the render model of the Team Picker modal.
type View struct {
	SessionID     string            `json:"session_id"`
	SessionName   string            `json:"session_name,omitempty"`
	Open          bool              `json:"open"`
	Loaded        bool              `json:"loaded"`
	State         models.DraftState `json:"state"`
	Layout        sessions.Layout   `json:"layout"`
	Banner        string            `json:"banner"`
	Error         string            `json:"error,omitempty"`
	YourRole      models.Role       `json:"your_role,omitempty"`
	YourTurn      bool              `json:"your_turn"`
	AwaitingOther bool              `json:"awaiting_other"`
	Teams         []TeamView        `json:"teams,omitempty"`
	Roster        []RosterLine      `json:"roster,omitempty"`
	Pool          []PickButton      `json:"pool"`
	Controls      []Control         `json:"controls"`
}

// Control returns the render state of cmd.
func (v View) Control(cmd Command) (Control, bool) {
	for _, c := range v.Controls {
		if c.Command == cmd {
			return c, true
		}
	}
	return Control{}, false
}

// Input is everything the renderer reads.
type Input struct {
	SessionID string
	Session   *models.Session
	Draft     *models.DraftSession
	Loaded    bool
	Pending   map[Command]bool
	Tossing   bool
	Error     string
}

// State derives the draft state; a missing record means NotStarted.
func State(d *models.DraftSession) models.DraftState {
	if d == nil {
		return models.DraftStateNotStarted
	}
	if d.State == models.DraftStateFinalized {
		return models.DraftStateFinalized
	}
	if d.PicksComplete || d.State == models.DraftStatePicksComplete {
		return models.DraftStatePicksComplete
	}
	if d.CoinWinnerTeam == nil {
		return models.DraftStateAwaitingCoinToss
	}
	if d.State == "" || d.State == models.DraftStateAwaitingCoinToss {
		return models.DraftStatePicking
	}
	return d.State
}

// YourTurn reports whether the viewer's commander seat matches next_team.
func YourTurn(d *models.DraftSession) bool {
	if d == nil || d.CoinWinnerTeam == nil || d.NextTeam == nil {
		return false
	}
	team := d.YourRole.Team()
	return team != 0 && *d.NextTeam == team
}

// FinalizeEnabled is true exactly when picks are complete and the viewer is a commander.
func FinalizeEnabled(d *models.DraftSession) bool {
	return d != nil && (d.PicksComplete || d.State == models.DraftStatePicksComplete) && d.YourRole.IsCommander()
}

// DetectCommanders returns the players in the two commander slots that carry
// a linked identity.
func DetectCommanders(s *models.Session) []models.Player {
	if s == nil {
		return nil
	}
	var out []models.Player
	for _, p := range s.Players {
		if (p.Slot == 1 || p.Slot == 6) && p.LinkedID() != "" {
			out = append(out, p)
		}
	}
	return out
}

// StartPrecondition returns the error code the server would answer start
// with, or "" when the session looks startable. An unknown session is not judged.
func StartPrecondition(s *models.Session) string {
	if s == nil {
		return ""
	}
	if s.State.Normalize() != models.SessionStatePreGame {
		return "not_pregame"
	}
	if len(DetectCommanders(s)) != 2 {
		return "missing_commanders"
	}
	return ""
}

// Render builds the view. It never mutates its input.
func Render(in Input) View {
	d := in.Draft
	state := State(d)
	v := View{
		SessionID: in.SessionID,
		Open:      in.SessionID != "",
		Loaded:    in.Loaded,
		State:     state,
		Layout:    sessions.LayoutTeams,
		Error:     in.Error,
		YourTurn:  YourTurn(d),
	}
	if in.Session != nil {
		v.SessionName = in.Session.DisplayName()
		if sessions.IsFFA(in.Session.MapName(), in.Session.Name) {
			v.Layout = sessions.LayoutFFA
		}
	}
	if d != nil {
		v.YourRole = d.YourRole
		v.AwaitingOther = d.Commander1Accepted != d.Commander2Accepted
	}

	v.Banner = banner(in, state, v)
	v.Pool = poolButtons(d, v.YourTurn && state == models.DraftStatePicking && !in.Pending[CommandPick])
	if v.Layout == sessions.LayoutFFA {
		v.Roster = rosterLines(d)
	} else {
		v.Teams = teamViews(d)
	}
	v.Controls = controls(in, state, v)
	return v
}

func banner(in Input, state models.DraftState, v View) string {
	if in.Tossing {
		return BannerTossing
	}
	switch state {
	case models.DraftStateNotStarted:
		return BannerNotStarted
	case models.DraftStateAwaitingCoinToss:
		return BannerCoinToss
	case models.DraftStatePicking:
		if v.YourTurn {
			return BannerYourPick
		}
		if in.Draft.NextTeam == nil {
			return "Waiting for next pick"
		}
		return fmt.Sprintf("Team %d is picking", *in.Draft.NextTeam)
	case models.DraftStatePicksComplete:
		if v.AwaitingOther {
			return BannerAwaitingOther
		}
		return BannerPicksComplete
	case models.DraftStateFinalized:
		return BannerFinalized
	default:
		return ""
	}
}

func poolButtons(d *models.DraftSession, enabled bool) []PickButton {
	pool := EligiblePool(d)
	out := make([]PickButton, 0, len(pool))
	for _, p := range pool {
		out = append(out, PickButton{SteamID: p.SteamID, Name: p.Name(), Avatar: p.Avatar, Enabled: enabled})
	}
	return out
}

func teamViews(d *models.DraftSession) []TeamView {
	if d == nil {
		return nil
	}
	out := make([]TeamView, 0, 2)
	for _, role := range []models.Role{models.RoleCommander1, models.RoleCommander2} {
		team := role.Team()
		tv := TeamView{
			Team:    team,
			Title:   fmt.Sprintf("Team %d", team),
			Picks:   make([]models.RosterPlayer, 0),
			OnTurn:  d.CoinWinnerTeam != nil && d.NextTeam != nil && *d.NextTeam == team && !d.PicksComplete,
			CoinWon: d.CoinWinnerTeam != nil && *d.CoinWinnerTeam == team,
		}
		if c, ok := d.Commander(role); ok {
			tv.Commander = &c
		}
		for _, p := range d.TeamPicks(team) {
			tv.Picks = append(tv.Picks, p.Player)
		}
		out = append(out, tv)
	}
	return out
}

func rosterLines(d *models.DraftSession) []RosterLine {
	if d == nil {
		return nil
	}
	commanders := CommanderIDs(d)
	picked := make(map[string]models.DraftPick, len(d.Picks))
	for _, p := range d.Picks {
		picked[p.Player.SteamID] = p
	}

	out := make([]RosterLine, 0, len(d.Roster))
	for _, p := range d.Roster {
		line := RosterLine{Player: p}
		_, line.Commander = commanders[p.SteamID]
		if pick, ok := picked[p.SteamID]; ok {
			line.Team = pick.TeamID
			line.Order = pick.Order
		}
		out = append(out, line)
	}
	return out
}

func controls(in Input, state models.DraftState, v View) []Control {
	d := in.Draft
	commander := d != nil && d.YourRole.IsCommander()
	out := make([]Control, 0, len(Commands))

	for _, cmd := range Commands {
		c := Control{Command: cmd, Label: commandLabels[cmd], Pending: in.Pending[cmd]}
		switch cmd {
		case CommandStart:
			c.Visible = state == models.DraftStateNotStarted
			c.Reason = StartPrecondition(in.Session)
			c.Enabled = c.Visible && c.Reason == ""
		case CommandCoinToss:
			c.Visible = state == models.DraftStateAwaitingCoinToss
			c.Enabled = c.Visible && commander && !in.Tossing
			if c.Visible && !commander {
				c.Reason = "only commanders may " + commandVerbs[cmd]
			}
		case CommandPickRandom:
			c.Pending = in.Pending[CommandPick] || in.Pending[CommandPickRandom]
			c.Visible = state == models.DraftStatePicking && commander
			c.Enabled = c.Visible && v.YourTurn && len(v.Pool) > 0
		case CommandFinalize:
			c.Visible = d != nil && state != models.DraftStateFinalized
			c.Enabled = FinalizeEnabled(d)
			if v.AwaitingOther {
				c.Label = BannerAwaitingOther
			}
		case CommandRestart:
			c.Visible = d != nil
			c.Enabled = commander
		}
		if c.Pending {
			c.Enabled = false
		}
		out = append(out, c)
	}
	return out
}
