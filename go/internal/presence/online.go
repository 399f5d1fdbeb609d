package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/bzdash/go/internal/models"
)

// OnlineEntry is one row of the online-players sidebar.
type OnlineEntry struct {
	Name    string `json:"name"`
	SteamID string `json:"steam_id,omitempty"`
	Avatar  string `json:"avatar,omitempty"`
	Active  bool   `json:"active"`
}

// OnlineView is the online-players sidebar. Unavailable is set when the
// in-game list could not be fetched.
type OnlineView struct {
	Players     []OnlineEntry `json:"players"`
	Unavailable bool          `json:"unavailable,omitempty"`
	Message     string        `json:"message,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

const (
	noPlayersMessage   = "No players detected"
	unavailableMessage = "Unavailable"
)

// BuildOnlineView marks in-game players that are also on the site as active.
func BuildOnlineView(ingame, site []models.OnlinePlayer, now time.Time) OnlineView {
	onSite := make(map[string]struct{}, len(site))
	for _, p := range site {
		if id := p.SiteID(); id != "" {
			onSite[id] = struct{}{}
		}
	}

	view := OnlineView{Players: make([]OnlineEntry, 0, len(ingame)), UpdatedAt: now}
	for _, p := range ingame {
		entry := OnlineEntry{Name: p.DisplayName(), SteamID: p.LinkedID()}
		if p.Steam != nil {
			entry.Avatar = p.Steam.Avatar
		}
		if sid := linkedOnly(p); sid != "" {
			_, entry.Active = onSite[sid]
		}
		view.Players = append(view.Players, entry)
	}
	if len(view.Players) == 0 {
		view.Message = noPlayersMessage
	}
	return view
}

// linkedOnly returns the external identity of an in-game player, ignoring the
// bare row id.
func linkedOnly(p models.OnlinePlayer) string {
	if p.Steam != nil && p.Steam.ID != "" {
		return p.Steam.ID
	}
	return p.SteamID
}

// fetchOnline loads both lists concurrently. A failing site list is treated
// as empty; a failing in-game list fails the whole view.
func fetchOnline(ctx context.Context, api API) ([]models.OnlinePlayer, []models.OnlinePlayer, error) {
	var ingame, site []models.OnlinePlayer

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		players, err := api.OnlinePlayers(gctx)
		if err != nil {
			return fmt.Errorf("online players: %w", err)
		}
		ingame = players
		return nil
	})
	g.Go(func() error {
		players, err := api.SiteOnlinePlayers(gctx)
		if err != nil {
			log.Debug().Err(err).Msg("site-online list unavailable")
			return nil
		}
		site = players
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return ingame, site, nil
}
