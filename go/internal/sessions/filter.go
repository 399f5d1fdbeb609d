package sessions

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/mcdev12/bzdash/go/internal/models"
)

// Filter holds the active list criteria. Zero values disable a predicate.
type Filter struct {
	State      string `json:"state,omitempty" yaml:"state"`
	MinPlayers int    `json:"min_players,omitempty" yaml:"min_players"`
	Query      string `json:"q,omitempty" yaml:"q"`
	Mod        string `json:"mod,omitempty" yaml:"mod"`
}

// Match applies every enabled predicate to a session.
func (f Filter) Match(s models.Session) bool {
	if f.State != "" && !strings.EqualFold(string(s.State), f.State) {
		return false
	}
	if f.MinPlayers > 0 && len(s.Players) < f.MinPlayers {
		return false
	}
	if f.Mod != "" && s.Mod != f.Mod {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		return matchesQuery(s, q)
	}
	return true
}

func matchesQuery(s models.Session, q string) bool {
	if strings.Contains(strings.ToLower(s.Name), q) {
		return true
	}
	for _, p := range s.Players {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.DisplayName()), q) {
			return true
		}
	}
	return false
}

// Values encodes the filter as the poll endpoint's query string.
func (f Filter) Values() url.Values {
	v := url.Values{}
	if f.State != "" {
		v.Set("state", f.State)
	}
	if f.MinPlayers > 0 {
		v.Set("min_players", strconv.Itoa(f.MinPlayers))
	}
	if f.Query != "" {
		v.Set("q", f.Query)
	}
	if f.Mod != "" {
		v.Set("mod", f.Mod)
	}
	return v
}

// FilterFromValues is the inverse of Values. Invalid numbers are ignored.
func FilterFromValues(v url.Values) Filter {
	f := Filter{
		State: v.Get("state"),
		Query: v.Get("q"),
		Mod:   v.Get("mod"),
	}
	if n, err := strconv.Atoi(v.Get("min_players")); err == nil && n > 0 {
		f.MinPlayers = n
	}
	return f
}
