package dashboard_client

import (
	"context"
	"fmt"

	"github.com/mcdev12/bzdash/go/internal/models"
)

type playersResponse struct {
	Players []models.OnlinePlayer `json:"players"`
}

func (c *DashboardClient) OnlinePlayers(ctx context.Context) ([]models.OnlinePlayer, error) {
	var resp playersResponse
	if err := c.Get(ctx, c.path(OnlinePlayersEndpoint), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch online players: %w", err)
	}
	return resp.Players, nil
}

func (c *DashboardClient) SiteOnlinePlayers(ctx context.Context) ([]models.OnlinePlayer, error) {
	var resp playersResponse
	if err := c.Get(ctx, c.path(SiteOnlinePlayersEndpoint), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch site-online players: %w", err)
	}
	return resp.Players, nil
}

func (c *DashboardClient) Heartbeat(ctx context.Context) error {
	if err := c.Post(ctx, c.path(HeartbeatEndpoint), nil, nil); err != nil {
		return fmt.Errorf("presence heartbeat failed: %w", err)
	}
	return nil
}
