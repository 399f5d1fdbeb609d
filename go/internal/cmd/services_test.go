package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcdev12/bzdash/go/internal/config"
	"github.com/mcdev12/bzdash/go/internal/transport"
)

func TestSetupPushSelectsTransport(t *testing.T) {
	tests := []struct {
		name      string
		transport string
		check     func(t *testing.T, p transport.PushClient)
	}{
		{
			name:      "websocket",
			transport: config.PushWebSocket,
			check: func(t *testing.T, p transport.PushClient) {
				assert.IsType(t, &transport.WebSocketPush{}, p)
			},
		},
		{
			name:      "nats",
			transport: config.PushNATS,
			check: func(t *testing.T, p transport.PushClient) {
				n, ok := p.(*transport.NATSPush)
				if assert.True(t, ok) {
					assert.Equal(t, "dash.room.team_picker.s1", n.RoomSubject(transport.TeamPickerRoom("s1")))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Push.Transport = tt.transport
			cfg.Push.SubjectPrefix = "dash"
			tt.check(t, setupPush(&cfg))
		})
	}
}

func TestSetupDashboardIsIdle(t *testing.T) {
	cfg := config.Default()
	dash := setupDashboard(&cfg)
	assert.Empty(t, dash.DraftID())
	assert.False(t, dash.Multiplexer().PushActive())
}
