package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bzdash/go/internal/presence"
	"github.com/mcdev12/bzdash/go/internal/teampicker"
	"github.com/mcdev12/bzdash/go/internal/transport"
)

// ErrNoSession is returned when a draft is opened without a session id.
var ErrNoSession = errors.New("session id is required")

// DraftID returns the open Team Picker's session id, or "".
func (d *Dashboard) DraftID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draftID
}

// OpenDraft opens the Team Picker for sessionID: it marks the draft open,
// joins its push room, starts the per-draft presence heartbeat and fetches
// the current record. An already open draft is closed first.
func (d *Dashboard) OpenDraft(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	if d.DraftID() != "" {
		d.CloseDraft()
	}

	task := d.scheduler.Every("draft-presence", d.cfg.Timing.DraftPresenceInterval, func(ctx context.Context) error {
		return d.api.DraftPresence(ctx, sessionID)
	})

	d.mu.Lock()
	d.draftID = sessionID
	d.draftTask = task
	d.mu.Unlock()

	d.mux.Join(transport.TeamPickerRoom(sessionID))
	d.notifier.DismissPrompt()

	if err := d.api.DraftPresence(ctx, sessionID); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("draft presence failed")
	}

	s, ok := d.reconciler.Session(sessionID)
	session := &s
	if !ok {
		session = nil
	}
	if err := d.picker.Open(ctx, sessionID, session); err != nil {
		return fmt.Errorf("failed to load team picker: %w", err)
	}
	return nil
}

// CloseDraft stops the presence heartbeat, leaves the room and clears the
// open-draft marker. In-flight responses for the draft are discarded.
func (d *Dashboard) CloseDraft() {
	d.mu.Lock()
	id, task := d.draftID, d.draftTask
	d.draftID, d.draftTask = "", nil
	d.mu.Unlock()

	if id == "" {
		return
	}
	task.Cancel()
	d.mux.Leave(transport.TeamPickerRoom(id))
	d.picker.Close()
}

// Execute runs a draft command against the open Team Picker and returns
// the resulting view.
func (d *Dashboard) Execute(ctx context.Context, cmd teampicker.Command, playerID string) (teampicker.View, error) {
	err := d.picker.Execute(ctx, cmd, playerID)
	return d.picker.View(), err
}

// AcceptInvite opens the draft the current invite prompt points at.
func (d *Dashboard) AcceptInvite(ctx context.Context) (*presence.Invite, error) {
	invite := d.notifier.Prompt()
	if invite == nil {
		return nil, nil
	}
	if err := d.OpenDraft(ctx, invite.SessionID); err != nil {
		return invite, err
	}
	return invite, nil
}
