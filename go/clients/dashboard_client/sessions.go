package dashboard_client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mcdev12/bzdash/go/internal/models"
)

// CurrentSessions polls the session list. query carries the server-side filter
// (state, min_players, q, mod).
func (c *DashboardClient) CurrentSessions(ctx context.Context, query url.Values) ([]models.Session, error) {
	var payload models.SessionsPayload
	if err := c.Get(ctx, c.path(CurrentSessionsEndpoint), query, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch current sessions: %w", err)
	}
	return payload.Sessions, nil
}

// Session fetches a single session by id.
func (c *DashboardClient) Session(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := c.Get(ctx, c.path(SessionEndpoint, id), nil, &session); err != nil {
		return nil, fmt.Errorf("failed to fetch session %s: %w", id, err)
	}
	return &session, nil
}
