package presence

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bzdash/go/internal/events"
	"github.com/mcdev12/bzdash/go/internal/models"
	"github.com/mcdev12/bzdash/go/internal/schedule"
)

// API is the slice of the dashboard REST client presence needs.
type API interface {
	Heartbeat(ctx context.Context) error
	OpenForMe(ctx context.Context) ([]models.OpenDraft, error)
	OnlinePlayers(ctx context.Context) ([]models.OnlinePlayer, error)
	SiteOnlinePlayers(ctx context.Context) ([]models.OnlinePlayer, error)
}

// Config holds the presence timings.
type Config struct {
	HeartbeatInterval  time.Duration
	InviteInterval     time.Duration
	InviteCooldown     time.Duration
	OnlineRefreshDelay time.Duration
}

// DefaultConfig returns the standard presence timings.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval:  5 * time.Second,
		InviteInterval:     6 * time.Second,
		InviteCooldown:     120 * time.Second,
		OnlineRefreshDelay: 500 * time.Millisecond,
	}
}

// Invite is an invite prompt for a draft open for the current user.
type Invite struct {
	SessionID   string      `json:"session_id"`
	SessionName string      `json:"session_name,omitempty"`
	Role        models.Role `json:"role,omitempty"`
	ShownAt     time.Time   `json:"shown_at"`
}

// Notifier heartbeats presence, keeps the online view fresh and raises
// deduplicated invite prompts.
type Notifier struct {
	api       API
	scheduler *schedule.Scheduler
	clock     clockwork.Clock
	bus       *events.Bus
	config    Config
	draftOpen func() bool

	mu        sync.Mutex
	signedIn  bool
	epoch     uint64
	heartbeat *schedule.Task
	invites   *schedule.Task
	refresh   *schedule.Task
	shown     map[string]time.Time
	prompt    *Invite
	online    OnlineView
}

// NewNotifier builds a notifier. draftOpen reports whether a Team Picker
// modal is currently open; invites are held back while it is.
func NewNotifier(api API, scheduler *schedule.Scheduler, bus *events.Bus, config Config, draftOpen func() bool) *Notifier {
	if draftOpen == nil {
		draftOpen = func() bool { return false }
	}
	return &Notifier{
		api:       api,
		scheduler: scheduler,
		clock:     scheduler.Clock(),
		bus:       bus,
		config:    config,
		draftOpen: draftOpen,
		shown:     make(map[string]time.Time),
	}
}

// SetSignedIn starts or stops the signed-in timers. Signing in sends an
// immediate heartbeat.
func (n *Notifier) SetSignedIn(signedIn bool) {
	n.mu.Lock()
	if n.signedIn == signedIn {
		n.mu.Unlock()
		return
	}
	n.signedIn = signedIn
	n.epoch++
	epoch := n.epoch

	if !signedIn {
		heartbeat, invites, refresh := n.heartbeat, n.invites, n.refresh
		n.heartbeat, n.invites, n.refresh = nil, nil, nil
		n.prompt = nil
		n.mu.Unlock()

		heartbeat.Cancel()
		invites.Cancel()
		refresh.Cancel()
		log.Info().Msg("presence timers stopped")
		return
	}
	n.mu.Unlock()

	now := n.scheduler.After("presence-heartbeat-now", 0, n.Heartbeat)
	heartbeat := n.scheduler.Every("presence-heartbeat", n.config.HeartbeatInterval, n.Heartbeat)
	invites := n.scheduler.Every("invite-poll", n.config.InviteInterval, func(ctx context.Context) error {
		_, err := n.PollInvites(ctx)
		return err
	})

	n.mu.Lock()
	if n.epoch != epoch {
		// sign-in state changed while the tasks were being scheduled
		n.mu.Unlock()
		now.Cancel()
		heartbeat.Cancel()
		invites.Cancel()
		return
	}
	n.heartbeat, n.invites = heartbeat, invites
	n.mu.Unlock()

	log.Info().
		Dur("heartbeat_interval", n.config.HeartbeatInterval).
		Dur("invite_interval", n.config.InviteInterval).
		Msg("presence timers started")
}

func (n *Notifier) SignedIn() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.signedIn
}

// Heartbeat pings presence and schedules an online refresh shortly after.
func (n *Notifier) Heartbeat(ctx context.Context) error {
	if !n.SignedIn() {
		return nil
	}
	if err := n.api.Heartbeat(ctx); err != nil {
		return err
	}

	n.mu.Lock()
	if !n.signedIn || ctx.Err() != nil {
		n.mu.Unlock()
		return nil
	}
	previous := n.refresh
	n.refresh = n.scheduler.After("online-refresh", n.config.OnlineRefreshDelay, func(ctx context.Context) error {
		_, err := n.RefreshOnline(ctx)
		return err
	})
	n.mu.Unlock()

	previous.Cancel()
	return nil
}

// RefreshOnline rebuilds the online view. On failure the view is marked
// unavailable and the error returned.
func (n *Notifier) RefreshOnline(ctx context.Context) (OnlineView, error) {
	ingame, site, err := fetchOnline(ctx, n.api)
	var view OnlineView
	if err != nil {
		view = OnlineView{Players: []OnlineEntry{}, Unavailable: true, Message: unavailableMessage, UpdatedAt: n.clock.Now()}
	} else {
		view = BuildOnlineView(ingame, site, n.clock.Now())
	}

	n.mu.Lock()
	n.online = view
	n.mu.Unlock()

	if n.bus != nil {
		n.bus.Publish(events.TopicViewOnline, view)
	}
	return view, err
}

// Online returns the last online view.
func (n *Notifier) Online() OnlineView {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online
}

// PollInvites runs one invite cycle and returns the prompt it raised, if any.
func (n *Notifier) PollInvites(ctx context.Context) (*Invite, error) {
	drafts, err := n.api.OpenForMe(ctx)
	if err != nil {
		return nil, err
	}
	return n.consider(drafts), nil
}

func (n *Notifier) consider(drafts []models.OpenDraft) *Invite {
	if len(drafts) == 0 || n.draftOpen() {
		return nil
	}

	now := n.clock.Now()
	n.mu.Lock()
	if n.prompt != nil || !n.signedIn {
		n.mu.Unlock()
		return nil
	}

	var invite *Invite
	for _, d := range drafts {
		if d.SessionID == "" || n.coolingLocked(d.SessionID, now) {
			continue
		}
		invite = &Invite{SessionID: d.SessionID, SessionName: d.SessionName, Role: d.Role, ShownAt: now}
		break
	}
	if invite != nil {
		n.shown[invite.SessionID] = now
		n.prompt = invite
	}
	n.pruneLocked(now)
	n.mu.Unlock()

	if invite == nil {
		return nil
	}
	log.Info().Str("session_id", invite.SessionID).Msg("showing team picker invite")
	if n.bus != nil {
		n.bus.Publish(events.TopicInvitePrompt, *invite)
	}
	return invite
}

func (n *Notifier) coolingLocked(sessionID string, now time.Time) bool {
	shown, ok := n.shown[sessionID]
	return ok && now.Sub(shown) < n.config.InviteCooldown
}

func (n *Notifier) pruneLocked(now time.Time) {
	for id, shown := range n.shown {
		if now.Sub(shown) >= n.config.InviteCooldown {
			delete(n.shown, id)
		}
	}
}

// Prompt returns the open invite prompt, if any.
func (n *Notifier) Prompt() *Invite {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.prompt == nil {
		return nil
	}
	p := *n.prompt
	return &p
}

// DismissPrompt closes the open prompt. The session stays in cooldown.
func (n *Notifier) DismissPrompt() *Invite {
	n.mu.Lock()
	defer n.mu.Unlock()
	p := n.prompt
	n.prompt = nil
	return p
}

// Stop cancels every presence timer.
func (n *Notifier) Stop() {
	n.SetSignedIn(false)
}
