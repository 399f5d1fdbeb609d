package dashboard

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bzdash/go/internal/events"
	"github.com/mcdev12/bzdash/go/internal/transport"
)

// route applies channel events until the subscription closes.
func (d *Dashboard) route(ctx context.Context, sub *events.Subscription) {
	for evt := range sub.C {
		if ctx.Err() != nil {
			return
		}
		switch evt.Topic {
		case events.TopicSessionsSnapshot:
			snap, ok := evt.Payload.(transport.SessionsSnapshot)
			if !ok {
				continue
			}
			d.applySessions(snap)

		case events.TopicDraftSnapshot:
			signal, ok := evt.Payload.(transport.DraftSignal)
			if !ok {
				continue
			}
			d.applyDraft(signal)

		case events.TopicPresenceChanged:
			d.scheduler.After("online-refresh-signal", 0, func(ctx context.Context) error {
				_, err := d.notifier.RefreshOnline(ctx)
				return err
			})
		}
	}
}

func (d *Dashboard) applySessions(snap transport.SessionsSnapshot) {
	d.reconciler.Apply(snap.Source, snap.Sessions)

	id := d.picker.SessionID()
	if id == "" {
		return
	}
	if s, ok := d.reconciler.Session(id); ok {
		d.picker.SetSession(s)
	}
}

func (d *Dashboard) applyDraft(signal transport.DraftSignal) {
	open := d.picker.SessionID()

	if signal.Session != nil && signal.SessionID != "" {
		d.status.Set(signal.SessionID, signal.Session.Active())
		d.picker.Apply(signal.SessionID, signal.Session)
		return
	}

	if signal.SessionID != "" {
		d.status.Invalidate(signal.SessionID)
	}
	if open == "" || (signal.SessionID != "" && signal.SessionID != open) {
		return
	}

	d.scheduler.After("draft-refresh", 0, func(ctx context.Context) error {
		if err := d.picker.Refresh(ctx); err != nil {
			log.Warn().Err(err).Str("session_id", open).Msg("draft refresh after push failed")
		}
		return nil
	})
}
