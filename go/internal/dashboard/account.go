package dashboard

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bzdash/go/internal/models"
)

// LoadUser fetches the signed-in user and starts or stops the presence
// timers to match.
func (d *Dashboard) LoadUser(ctx context.Context) (*models.User, error) {
	user, err := d.api.Me(ctx)
	if err != nil {
		return nil, err
	}
	d.setUser(user)
	return user, nil
}

// User returns the signed-in user, or nil.
func (d *Dashboard) User() *models.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.user == nil {
		return nil
	}
	u := *d.user
	return &u
}

// Logout ends the session on the server, clears the user and stops the
// presence timers.
func (d *Dashboard) Logout(ctx context.Context) error {
	if err := d.api.Logout(ctx); err != nil {
		return err
	}
	d.setUser(nil)
	return nil
}

func (d *Dashboard) setUser(user *models.User) {
	d.mu.Lock()
	d.user = user
	d.mu.Unlock()

	if user != nil {
		log.Info().Str("user_id", user.ID).Msg("signed in")
	}
	d.notifier.SetSignedIn(user != nil)
}

// Mods returns the mod catalogue for the filter picker, sorted by name.
func (d *Dashboard) Mods(ctx context.Context) ([]models.Mod, error) {
	mods, err := d.api.Mods(ctx)
	if err != nil {
		return nil, err
	}
	return CatalogueMods(mods), nil
}

// CatalogueMods drops the placeholder and unnamed-id entries and sorts the
// rest by name, case-insensitively.
func CatalogueMods(mods []models.Mod) []models.Mod {
	out := make([]models.Mod, 0, len(mods))
	for _, m := range mods {
		if m.ID == "" || m.ID == "0" {
			continue
		}
		if m.Name == "" {
			m.Name = m.ID
		}
		out = append(out, m)
	}
	slices.SortStableFunc(out, func(a, b models.Mod) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Activity returns the most recent history point over the configured window.
// ok is false when the server returned no points.
func (d *Dashboard) Activity(ctx context.Context) (point models.HistoryPoint, ok bool, err error) {
	points, err := d.api.HistorySummary(ctx, d.cfg.HistoryMinutes)
	if err != nil {
		return models.HistoryPoint{}, false, fmt.Errorf("failed to load activity: %w", err)
	}
	if len(points) == 0 {
		return models.HistoryPoint{}, false, nil
	}
	return points[len(points)-1], true, nil
}
