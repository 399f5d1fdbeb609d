package dashboard

import (
	"context"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bzdash/go/internal/config"
	"github.com/mcdev12/bzdash/go/internal/events"
	"github.com/mcdev12/bzdash/go/internal/models"
	"github.com/mcdev12/bzdash/go/internal/presence"
	"github.com/mcdev12/bzdash/go/internal/schedule"
	"github.com/mcdev12/bzdash/go/internal/sessions"
	"github.com/mcdev12/bzdash/go/internal/statuscache"
	"github.com/mcdev12/bzdash/go/internal/teampicker"
	"github.com/mcdev12/bzdash/go/internal/transport"
)

// API is everything the dashboard consumes from the backend.
type API interface {
	teampicker.API
	presence.API

	CurrentSessions(ctx context.Context, query url.Values) ([]models.Session, error)
	Session(ctx context.Context, id string) (*models.Session, error)
	DraftPresence(ctx context.Context, sessionID string) error
	Me(ctx context.Context) (*models.User, error)
	Logout(ctx context.Context) error
	Mods(ctx context.Context) ([]models.Mod, error)
	HistorySummary(ctx context.Context, minutes int) ([]models.HistoryPoint, error)
}

// Deps are the collaborators built by the caller. Stream and Push may be nil.
type Deps struct {
	API      API
	Stream   *transport.Stream
	Push     transport.PushClient
	Clock    clockwork.Clock
	Strategy *teampicker.RandomStrategy
}

// Dashboard is the page-wide context: it owns the bus, the scheduler and
// every sync component, and routes channel events between them.
type Dashboard struct {
	id  uuid.UUID
	api API
	cfg config.Config

	clock      clockwork.Clock
	bus        *events.Bus
	scheduler  *schedule.Scheduler
	reconciler *sessions.Reconciler
	mux        *transport.Multiplexer
	status     *statuscache.Cache
	picker     *teampicker.Client
	notifier   *presence.Notifier

	mu        sync.Mutex
	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	sub       *events.Subscription
	user      *models.User
	draftID   string
	draftTask *schedule.Task
	wg        sync.WaitGroup
}

func New(cfg config.Config, deps Deps) *Dashboard {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	d := &Dashboard{
		id:    uuid.New(),
		api:   deps.API,
		cfg:   cfg,
		clock: clock,
		bus:   events.NewBus(128),
		ctx:   context.Background(),
	}
	d.scheduler = schedule.NewScheduler(clock)

	d.reconciler = sessions.NewReconciler(clock, cfg.Timing.Warmup, d.bus)
	d.reconciler.SetCriteria(cfg.Filter, cfg.SortMode())

	d.mux = transport.NewMultiplexer(deps.Stream, deps.Push, d.poll, d.bus, d.scheduler, cfg.Timing.PushDelay)
	d.mux.SetRealtime(cfg.Realtime)

	d.status = statuscache.New(clock, cfg.Timing.StatusTTL, d.fetchDraftActive)

	d.picker = teampicker.NewClient(deps.API, clock, d.bus, deps.Strategy, cfg.Timing.CoinTossDelay)
	d.picker.OnSnapshot(func(sessionID string, draft *models.DraftSession) {
		d.status.Set(sessionID, draft.Active())
	})

	d.notifier = presence.NewNotifier(deps.API, d.scheduler, d.bus, presence.Config{
		HeartbeatInterval:  cfg.Timing.HeartbeatInterval,
		InviteInterval:     cfg.Timing.InviteInterval,
		InviteCooldown:     cfg.Timing.InviteCooldown,
		OnlineRefreshDelay: cfg.Timing.OnlineRefreshDelay,
	}, func() bool { return d.DraftID() != "" })

	return d
}

// ID identifies this dashboard instance in logs.
func (d *Dashboard) ID() uuid.UUID {
	return d.id
}

func (d *Dashboard) Bus() *events.Bus {
	return d.bus
}

func (d *Dashboard) Scheduler() *schedule.Scheduler {
	return d.scheduler
}

func (d *Dashboard) Reconciler() *sessions.Reconciler {
	return d.reconciler
}

func (d *Dashboard) Multiplexer() *transport.Multiplexer {
	return d.mux
}

func (d *Dashboard) StatusCache() *statuscache.Cache {
	return d.status
}

func (d *Dashboard) TeamPicker() *teampicker.Client {
	return d.picker
}

func (d *Dashboard) Notifier() *presence.Notifier {
	return d.notifier
}

// Start subscribes the router, opens the channels, loads the current user and
// fetches the first snapshot. Failures of the initial fetches are logged;
// the timers retry on their next cycle.
func (d *Dashboard) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.running = true
	d.ctx = runCtx
	d.cancel = cancel
	d.sub = d.bus.Subscribe(events.TopicSessionsSnapshot, events.TopicDraftSnapshot, events.TopicPresenceChanged)
	sub := d.sub
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.route(runCtx, sub)
	}()

	d.mux.Start(runCtx)

	if err := d.mux.Poll(runCtx); err != nil {
		log.Warn().Err(err).Msg("initial session poll failed")
	}
	if _, err := d.LoadUser(runCtx); err != nil {
		log.Warn().Err(err).Msg("failed to load current user")
	}

	d.scheduler.After("online-initial", 0, func(ctx context.Context) error {
		_, err := d.notifier.RefreshOnline(ctx)
		return err
	})
	d.scheduler.Every("status-cache-prune", d.cfg.Timing.StatusTTL, func(context.Context) error {
		if n := d.status.Prune(); n > 0 {
			log.Debug().Int("removed", n).Msg("pruned status cache")
		}
		return nil
	})

	log.Info().
		Str("dashboard_id", d.id.String()).
		Bool("realtime", d.cfg.Realtime).
		Msg("dashboard started")
}

// Stop closes the draft, stops every channel and timer and closes the bus.
func (d *Dashboard) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	cancel, sub := d.cancel, d.sub
	d.mu.Unlock()

	d.CloseDraft()
	d.notifier.Stop()
	d.mux.Stop()
	cancel()
	sub.Close()
	d.wg.Wait()
	d.scheduler.Stop()
	d.bus.Close()

	log.Info().Str("dashboard_id", d.id.String()).Msg("dashboard stopped")
}

// runContext is the context background work outlives requests with.
func (d *Dashboard) runContext() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctx
}

func (d *Dashboard) poll(ctx context.Context) ([]models.Session, error) {
	f, _ := d.reconciler.Criteria()
	return d.api.CurrentSessions(ctx, f.Values())
}

func (d *Dashboard) fetchDraftActive(ctx context.Context, sessionID string) (bool, error) {
	draft, err := d.api.TeamPicker(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return draft.Active(), nil
}
