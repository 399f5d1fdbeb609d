package dashboard_client

import (
	"context"
	"fmt"

	"github.com/mcdev12/bzdash/go/clients"
	"github.com/mcdev12/bzdash/go/internal/models"
)

type pickRequest struct {
	PlayerID string `json:"player_id"`
}

// TeamPicker fetches the draft record for a session. A nil record with a nil
// error means no draft exists yet.
func (c *DashboardClient) TeamPicker(ctx context.Context, sessionID string) (*models.DraftSession, error) {
	var envelope models.DraftEnvelope
	if err := c.Get(ctx, c.path(TeamPickerEndpoint, sessionID), nil, &envelope); err != nil {
		if clients.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch team picker %s: %w", sessionID, err)
	}
	return envelope.Session, nil
}

func (c *DashboardClient) command(ctx context.Context, sessionID, name string, in any) (*models.DraftSession, error) {
	var envelope models.DraftEnvelope
	if err := c.Post(ctx, c.path(TeamPickerCommandEndpoint, sessionID, name), in, &envelope); err != nil {
		return nil, fmt.Errorf("team picker %s failed: %w", name, err)
	}
	return envelope.Session, nil
}

// Start creates the draft. The server rejects it with missing_commanders or not_pregame.
func (c *DashboardClient) Start(ctx context.Context, sessionID string) (*models.DraftSession, error) {
	return c.command(ctx, sessionID, CommandStart, nil)
}

func (c *DashboardClient) CoinToss(ctx context.Context, sessionID string) (*models.DraftSession, error) {
	return c.command(ctx, sessionID, CommandCoinToss, nil)
}

func (c *DashboardClient) Pick(ctx context.Context, sessionID, playerID string) (*models.DraftSession, error) {
	return c.command(ctx, sessionID, CommandPick, pickRequest{PlayerID: playerID})
}

func (c *DashboardClient) Finalize(ctx context.Context, sessionID string) (*models.DraftSession, error) {
	return c.command(ctx, sessionID, CommandFinalize, nil)
}

func (c *DashboardClient) Restart(ctx context.Context, sessionID string) (*models.DraftSession, error) {
	return c.command(ctx, sessionID, CommandRestart, nil)
}

// DraftPresence marks the current user as watching the draft.
func (c *DashboardClient) DraftPresence(ctx context.Context, sessionID string) error {
	if err := c.Post(ctx, c.path(TeamPickerCommandEndpoint, sessionID, CommandPresence), nil, nil); err != nil {
		return fmt.Errorf("team picker presence failed: %w", err)
	}
	return nil
}

type openForMeResponse struct {
	Sessions []models.OpenDraft `json:"sessions"`
}

// OpenForMe lists drafts the current user has been invited into.
func (c *DashboardClient) OpenForMe(ctx context.Context) ([]models.OpenDraft, error) {
	var resp openForMeResponse
	if err := c.Get(ctx, c.path(OpenForMeEndpoint), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch open drafts: %w", err)
	}
	return resp.Sessions, nil
}
