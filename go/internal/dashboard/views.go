package dashboard

import (
	"github.com/mcdev12/bzdash/go/internal/presence"
	"github.com/mcdev12/bzdash/go/internal/sessions"
	"github.com/mcdev12/bzdash/go/internal/teampicker"
	"github.com/mcdev12/bzdash/go/internal/transport"
)

// Criteria returns the active filter and sort mode.
func (d *Dashboard) Criteria() (sessions.Filter, sessions.SortMode) {
	return d.reconciler.Criteria()
}

func (d *Dashboard) Live() transport.LiveStatus {
	return d.mux.Live().Status()
}

func (d *Dashboard) Online() presence.OnlineView {
	return d.notifier.Online()
}

// Draft renders the open Team Picker.
func (d *Dashboard) Draft() teampicker.View {
	return d.picker.View()
}

// Invite returns the open invite prompt, if any.
func (d *Dashboard) Invite() *presence.Invite {
	return d.notifier.Prompt()
}

// DismissInvite closes the invite prompt; its session stays in cooldown.
func (d *Dashboard) DismissInvite() *presence.Invite {
	return d.notifier.DismissPrompt()
}
