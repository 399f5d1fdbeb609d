package dashboard

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bzdash/go/internal/events"
	"github.com/mcdev12/bzdash/go/internal/models"
	"github.com/mcdev12/bzdash/go/internal/sessions"
)

// Indicator is a single card's Team Picker badge, published on
// events.TopicViewIndicator when a background refresh resolves.
type Indicator struct {
	SessionID string `json:"session_id"`
	Active    bool   `json:"active"`
}

// Sessions returns the current list view with each card's draft indicator
// taken from the status cache. Stale or missing entries are refreshed in the
// background and reported as Indicator events.
func (d *Dashboard) Sessions() sessions.View {
	view := d.reconciler.View()
	ctx := d.runContext()

	cards := make([]sessions.Card, len(view.Cards))
	copy(cards, view.Cards)
	for i := range cards {
		cards[i].DraftActive, cards[i].DraftKnown = d.status.Watch(ctx, cards[i].ID, d.indicatorChanged)
	}
	view.Cards = cards
	return view
}

func (d *Dashboard) indicatorChanged(sessionID string, active bool) {
	d.bus.Publish(events.TopicViewIndicator, Indicator{SessionID: sessionID, Active: active})
}

// SessionDetail fetches a single session.
func (d *Dashboard) SessionDetail(ctx context.Context, id string) (*models.Session, error) {
	s, err := d.api.Session(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session %s: %w", id, err)
	}
	return s, nil
}

// SetFilter replaces the filter and sort mode and re-polls so the server-side
// filtered list matches.
func (d *Dashboard) SetFilter(ctx context.Context, f sessions.Filter, mode sessions.SortMode) error {
	d.reconciler.SetCriteria(f, mode)
	log.Info().
		Str("state", f.State).
		Int("min_players", f.MinPlayers).
		Str("query", f.Query).
		Str("mod", f.Mod).
		Str("sort", string(mode)).
		Msg("session filter changed")

	if err := d.mux.Poll(ctx); err != nil {
		return fmt.Errorf("failed to poll sessions: %w", err)
	}
	return nil
}

// Poll re-fetches the canonical list.
func (d *Dashboard) Poll(ctx context.Context) error {
	return d.mux.Poll(ctx)
}
