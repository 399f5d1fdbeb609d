package sessions

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/mcdev12/bzdash/go/internal/models"
)

// SortMode selects the ordering of the session list.
type SortMode string

const (
	SortNameAsc         SortMode = "name_asc"
	SortStateThenRecent SortMode = "state_then_recent"
	SortPlayersDesc     SortMode = "players_desc"
	SortRecentDesc      SortMode = "recent_desc"

	DefaultSort = SortRecentDesc
)

// ParseSortMode validates a sort mode; the empty string selects DefaultSort.
func ParseSortMode(s string) (SortMode, error) {
	switch m := SortMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return DefaultSort, nil
	case SortNameAsc, SortStateThenRecent, SortPlayersDesc, SortRecentDesc:
		return m, nil
	default:
		return "", fmt.Errorf("unknown sort mode %q", s)
	}
}

func statePriority(s models.SessionState) int {
	switch s.Normalize() {
	case models.SessionStateInGame:
		return 0
	case models.SessionStatePreGame:
		return 1
	case models.SessionStatePostGame:
		return 2
	default:
		return 3
	}
}

func byName(a, b models.Session) int {
	if c := cmp.Compare(strings.ToLower(a.DisplayName()), strings.ToLower(b.DisplayName())); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func byNewest(a, b models.Session) int {
	return b.StartedAtOrZero().Compare(a.StartedAtOrZero())
}

func comparator(mode SortMode) func(a, b models.Session) int {
	switch mode {
	case SortNameAsc:
		return byName
	case SortStateThenRecent:
		return func(a, b models.Session) int {
			if c := cmp.Compare(statePriority(a.State), statePriority(b.State)); c != 0 {
				return c
			}
			if c := byNewest(a, b); c != 0 {
				return c
			}
			return byName(a, b)
		}
	case SortPlayersDesc:
		return func(a, b models.Session) int {
			if c := cmp.Compare(len(b.Players), len(a.Players)); c != 0 {
				return c
			}
			return byName(a, b)
		}
	default:
		return func(a, b models.Session) int {
			if c := byNewest(a, b); c != 0 {
				return c
			}
			if c := cmp.Compare(len(b.Players), len(a.Players)); c != 0 {
				return c
			}
			return byName(a, b)
		}
	}
}

// Sort orders sessions in place. Unknown modes fall back to DefaultSort.
func Sort(list []models.Session, mode SortMode) {
	slices.SortStableFunc(list, comparator(mode))
}

// Apply filters and sorts into a new slice; the input is left untouched.
func Apply(list []models.Session, f Filter, mode SortMode) []models.Session {
	out := make([]models.Session, 0, len(list))
	for _, s := range list {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	Sort(out, mode)
	return out
}
