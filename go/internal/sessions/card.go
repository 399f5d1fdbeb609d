package sessions

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mcdev12/bzdash/go/internal/models"
)

var ffaPattern = regexp.MustCompile(`(ffa|deathmatch|\bdm\b)`)

// IsFFA reports whether a session looks like free-for-all from its map and session names.
func IsFFA(mapName, sessionName string) bool {
	return ffaPattern.MatchString(strings.ToLower(mapName + " " + sessionName))
}

type Layout string

const (
	LayoutFFA   Layout = "ffa"
	LayoutTeams Layout = "teams"
)

// Badge is a short label rendered in a card header.
type Badge struct {
	Text   string `json:"text"`
	Title  string `json:"title,omitempty"`
	Accent bool   `json:"accent,omitempty"`
}

// PlayerLine is one rendered player row.
type PlayerLine struct {
	Name    string `json:"name"`
	SteamID string `json:"steam_id,omitempty"`
	Avatar  string `json:"avatar,omitempty"`
	Star    bool   `json:"star,omitempty"`
	Score   *int   `json:"score,omitempty"`
}

// TeamColumn is one side of the two-team layout; Open marks an empty side.
type TeamColumn struct {
	Team    int          `json:"team"`
	Title   string       `json:"title"`
	Players []PlayerLine `json:"players"`
	Open    bool         `json:"open"`
}

// Card is the render model for one session in the list.
type Card struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	State       models.SessionState `json:"state"`
	Badges      []Badge             `json:"badges"`
	PlayerCount int                 `json:"player_count"`
	MaxPlayers  int                 `json:"max_players,omitempty"`
	PlayersText string              `json:"players_text"`
	Map         string              `json:"map,omitempty"`
	MapImage    string              `json:"map_image,omitempty"`
	Mod         string              `json:"mod,omitempty"`
	ModURL      string              `json:"mod_url,omitempty"`
	Layout      Layout              `json:"layout"`
	Players     []PlayerLine        `json:"players,omitempty"`
	Teams       []TeamColumn        `json:"teams,omitempty"`
	DraftActive bool                `json:"draft_active"`
	DraftKnown  bool                `json:"draft_known"`
}

func playerLine(p models.Player) PlayerLine {
	return PlayerLine{
		Name:    p.DisplayName(),
		SteamID: p.LinkedID(),
		Avatar:  p.Avatar(),
		Star:    p.IsStar(),
		Score:   p.Score,
	}
}

// SplitTeams partitions players into team 1 (including unassigned) and team 2.
func SplitTeams(players []models.Player) (teamOne, teamTwo []models.Player) {
	for _, p := range players {
		if p.OnTeamTwo() {
			teamTwo = append(teamTwo, p)
		} else {
			teamOne = append(teamOne, p)
		}
	}
	return teamOne, teamTwo
}

func column(team int, players []models.Player) TeamColumn {
	col := TeamColumn{
		Team:    team,
		Title:   fmt.Sprintf("Team %d", team),
		Players: make([]PlayerLine, 0, len(players)),
	}
	for _, p := range players {
		col.Players = append(col.Players, playerLine(p))
	}
	col.Open = len(col.Players) == 0
	return col
}

func badges(s models.Session) []Badge {
	state := string(s.State)
	if state == "" {
		state = string(models.SessionStateUnknown)
	}
	out := []Badge{{Text: state, Accent: s.State == models.SessionStateInGame}}

	if s.NATType != "" {
		out = append(out, Badge{Text: s.NATType})
	}
	if v, ok := s.Attributes.Int("worst_ping"); ok {
		out = append(out, Badge{Text: fmt.Sprintf("Worst %dms", v), Title: "Worst ping seen"})
	}
	if v := s.Attributes.String("game_mode"); v != "" {
		out = append(out, Badge{Text: v, Title: "Game mode"})
	}
	if v, ok := s.Attributes.Int("time_limit"); ok {
		out = append(out, Badge{Text: fmt.Sprintf("TL %dm", v), Title: "Time limit"})
	}
	if v, ok := s.Attributes.Int("kill_limit"); ok {
		out = append(out, Badge{Text: fmt.Sprintf("KL %d", v), Title: "Kill limit"})
	}
	return out
}

// NewCard builds the render model for a session.
func NewCard(s models.Session) Card {
	card := Card{
		ID:          s.ID,
		Title:       s.DisplayName(),
		State:       s.State,
		Badges:      badges(s),
		PlayerCount: len(s.Players),
		Map:         s.MapName(),
		Mod:         s.ModName(),
	}

	card.PlayersText = fmt.Sprintf("%d players", card.PlayerCount)
	if limit, ok := s.Attributes.Int("max_players"); ok && limit > 0 {
		card.MaxPlayers = limit
		card.PlayersText = fmt.Sprintf("%d/%d players", card.PlayerCount, limit)
	}
	if s.Level != nil {
		card.MapImage = s.Level.Image
	}
	if s.ModDetails != nil {
		card.ModURL = s.ModDetails.URL
	}

	if IsFFA(s.MapName(), s.Name) {
		card.Layout = LayoutFFA
		card.Players = make([]PlayerLine, 0, len(s.Players))
		for _, p := range s.Players {
			card.Players = append(card.Players, playerLine(p))
		}
		return card
	}

	card.Layout = LayoutTeams
	one, two := SplitTeams(s.Players)
	card.Teams = []TeamColumn{column(1, one), column(2, two)}
	return card
}
