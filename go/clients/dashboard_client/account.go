package dashboard_client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/mcdev12/bzdash/go/clients"
	"github.com/mcdev12/bzdash/go/internal/models"
)

type meResponse struct {
	User *models.User `json:"user"`
}

// Me returns the signed-in user, or nil when the request is anonymous.
func (c *DashboardClient) Me(ctx context.Context) (*models.User, error) {
	var resp meResponse
	if err := c.Get(ctx, c.path(MeEndpoint), nil, &resp); err != nil {
		if clients.IsUnauthorized(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch current user: %w", err)
	}
	return resp.User, nil
}

func (c *DashboardClient) Logout(ctx context.Context) error {
	// logout lives outside the API prefix
	if err := c.Post(ctx, LogoutEndpoint, nil, nil); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	return nil
}

type modsResponse struct {
	Mods map[string]models.Mod `json:"mods"`
}

// Mods returns the mod catalogue keyed by mod id, unordered.
func (c *DashboardClient) Mods(ctx context.Context) ([]models.Mod, error) {
	var resp modsResponse
	if err := c.Get(ctx, c.path(ModsEndpoint), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch mods: %w", err)
	}

	mods := make([]models.Mod, 0, len(resp.Mods))
	for id, m := range resp.Mods {
		m.ID = id
		mods = append(mods, m)
	}
	return mods, nil
}

type historyResponse struct {
	Points []models.HistoryPoint `json:"points"`
}

// HistorySummary returns activity buckets covering the last minutes.
func (c *DashboardClient) HistorySummary(ctx context.Context, minutes int) ([]models.HistoryPoint, error) {
	query := url.Values{}
	query.Set("minutes", strconv.Itoa(minutes))

	var resp historyResponse
	if err := c.Get(ctx, c.path(HistorySummaryEndpoint), query, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch history summary: %w", err)
	}
	return resp.Points, nil
}
