package teampicker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bzdash/go/internal/events"
	"github.com/mcdev12/bzdash/go/internal/models"
)

// DefaultCoinTossDelay is the minimum time the tossing affordance stays up.
const DefaultCoinTossDelay = 1200 * time.Millisecond

// API is the slice of the dashboard REST client the draft needs.
type API interface {
	TeamPicker(ctx context.Context, sessionID string) (*models.DraftSession, error)
	Start(ctx context.Context, sessionID string) (*models.DraftSession, error)
	CoinToss(ctx context.Context, sessionID string) (*models.DraftSession, error)
	Pick(ctx context.Context, sessionID, playerID string) (*models.DraftSession, error)
	Finalize(ctx context.Context, sessionID string) (*models.DraftSession, error)
	Restart(ctx context.Context, sessionID string) (*models.DraftSession, error)
}

// Client mirrors the server's draft for the one Team Picker currently open.
// State only advances from server snapshots; the client merely disables a
// control while its command is in flight.
type Client struct {
	api           API
	clock         clockwork.Clock
	bus           *events.Bus
	strategy      *RandomStrategy
	coinTossDelay time.Duration
	observer      func(sessionID string, draft *models.DraftSession)

	mu         sync.Mutex
	generation uint64
	sessionID  string
	session    *models.Session
	draft      *models.DraftSession
	loaded     bool
	pending    map[Command]bool
	tossing    bool
	errText    string
}

func NewClient(api API, clock clockwork.Clock, bus *events.Bus, strategy *RandomStrategy, coinTossDelay time.Duration) *Client {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if strategy == nil {
		strategy = NewRandomStrategy()
	}
	if coinTossDelay < 0 {
		coinTossDelay = DefaultCoinTossDelay
	}
	return &Client{
		api:           api,
		clock:         clock,
		bus:           bus,
		strategy:      strategy,
		coinTossDelay: coinTossDelay,
		pending:       make(map[Command]bool),
	}
}

// OnSnapshot registers a hook called with every applied draft record.
// Must be set before the client is used.
func (c *Client) OnSnapshot(fn func(sessionID string, draft *models.DraftSession)) {
	c.observer = fn
}

// Open switches the client to sessionID and fetches its draft. session may be
// nil when the session is not in the current list.
func (c *Client) Open(ctx context.Context, sessionID string, session *models.Session) error {
	c.mu.Lock()
	c.generation++
	c.sessionID = sessionID
	c.session = session
	c.draft = nil
	c.loaded = false
	c.pending = make(map[Command]bool)
	c.tossing = false
	c.errText = ""
	c.mu.Unlock()

	log.Info().Str("session_id", sessionID).Msg("team picker opened")
	c.publish()
	return c.Refresh(ctx)
}

// Close forgets the open draft. In-flight responses are discarded.
func (c *Client) Close() {
	c.mu.Lock()
	if c.sessionID == "" {
		c.mu.Unlock()
		return
	}
	id := c.sessionID
	c.generation++
	c.sessionID = ""
	c.session = nil
	c.draft = nil
	c.loaded = false
	c.pending = make(map[Command]bool)
	c.tossing = false
	c.errText = ""
	c.mu.Unlock()

	log.Info().Str("session_id", id).Msg("team picker closed")
	c.publish()
}

// SessionID returns the open draft's session id, or "".
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// SetSession refreshes the owning session used for layout and start checks.
func (c *Client) SetSession(session models.Session) {
	c.mu.Lock()
	if c.sessionID != session.ID {
		c.mu.Unlock()
		return
	}
	c.session = &session
	c.mu.Unlock()
	c.publish()
}

// Refresh re-fetches the open draft.
func (c *Client) Refresh(ctx context.Context) error {
	id, gen := c.current()
	if id == "" {
		return ErrNoDraft
	}
	draft, err := c.api.TeamPicker(ctx, id)
	if err != nil {
		return err
	}
	c.apply(gen, draft)
	return nil
}

// Apply installs a pushed snapshot if it belongs to the open draft.
func (c *Client) Apply(sessionID string, draft *models.DraftSession) bool {
	c.mu.Lock()
	if sessionID == "" || sessionID != c.sessionID {
		c.mu.Unlock()
		return false
	}
	gen := c.generation
	c.mu.Unlock()
	return c.apply(gen, draft)
}

// Snapshot returns the last applied draft record.
func (c *Client) Snapshot() *models.DraftSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// View renders the current state.
func (c *Client) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Client) Start(ctx context.Context) error {
	return c.run(ctx, CommandStart, func(ctx context.Context, id string) (*models.DraftSession, error) {
		return c.api.Start(ctx, id)
	})
}

// CoinToss shows the tossing affordance for the configured delay before
// asking the server for the result.
func (c *Client) CoinToss(ctx context.Context) error {
	return c.run(ctx, CommandCoinToss, func(ctx context.Context, id string) (*models.DraftSession, error) {
		c.setTossing(true)
		defer c.setTossing(false)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.clock.After(c.coinTossDelay):
		}
		return c.api.CoinToss(ctx, id)
	})
}

// Pick drafts playerID for the viewer's team.
func (c *Client) Pick(ctx context.Context, playerID string) error {
	return c.run(ctx, CommandPick, func(ctx context.Context, id string) (*models.DraftSession, error) {
		if err := c.checkPick(playerID); err != nil {
			return nil, err
		}
		return c.api.Pick(ctx, id, playerID)
	})
}

// PickRandom drafts a uniformly random eligible player.
func (c *Client) PickRandom(ctx context.Context) error {
	return c.run(ctx, CommandPickRandom, func(ctx context.Context, id string) (*models.DraftSession, error) {
		c.mu.Lock()
		pool := EligiblePool(c.draft)
		c.mu.Unlock()

		choice, err := c.strategy.Choose(pool)
		if err != nil {
			return nil, err
		}
		if err := c.checkPick(choice.SteamID); err != nil {
			return nil, err
		}
		log.Info().Str("session_id", id).Str("player_id", choice.SteamID).Msg("picking at random")
		return c.api.Pick(ctx, id, choice.SteamID)
	})
}

func (c *Client) Finalize(ctx context.Context) error {
	return c.run(ctx, CommandFinalize, func(ctx context.Context, id string) (*models.DraftSession, error) {
		c.mu.Lock()
		enabled := FinalizeEnabled(c.draft)
		c.mu.Unlock()
		if !enabled {
			return nil, ErrNotCommander
		}
		return c.api.Finalize(ctx, id)
	})
}

func (c *Client) Restart(ctx context.Context) error {
	return c.run(ctx, CommandRestart, func(ctx context.Context, id string) (*models.DraftSession, error) {
		c.mu.Lock()
		commander := c.draft != nil && c.draft.YourRole.IsCommander()
		c.mu.Unlock()
		if !commander {
			return nil, ErrNotCommander
		}
		return c.api.Restart(ctx, id)
	})
}

// Execute dispatches a command by name; playerID is only read by pick.
func (c *Client) Execute(ctx context.Context, cmd Command, playerID string) error {
	switch cmd {
	case CommandStart:
		return c.Start(ctx)
	case CommandCoinToss:
		return c.CoinToss(ctx)
	case CommandPick:
		return c.Pick(ctx, playerID)
	case CommandPickRandom:
		return c.PickRandom(ctx)
	case CommandFinalize:
		return c.Finalize(ctx)
	case CommandRestart:
		return c.Restart(ctx)
	default:
		return fmt.Errorf("unknown team picker command %q", cmd)
	}
}

func (c *Client) checkPick(playerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.draft
	if d == nil || !d.YourRole.IsCommander() {
		return ErrNotCommander
	}
	if !YourTurn(d) || State(d) != models.DraftStatePicking {
		return ErrNotYourTurn
	}
	for _, p := range EligiblePool(d) {
		if p.SteamID == playerID {
			return nil
		}
	}
	return ErrNotEligible
}

type commandFunc func(ctx context.Context, sessionID string) (*models.DraftSession, error)

// run marks cmd pending, executes it and installs the resulting snapshot.
// Failures re-enable the control and leave an inline error.
func (c *Client) run(ctx context.Context, cmd Command, fn commandFunc) error {
	key := cmd
	if cmd == CommandPickRandom {
		key = CommandPick
	}

	c.mu.Lock()
	if c.sessionID == "" {
		c.mu.Unlock()
		return ErrNoDraft
	}
	if c.pending[key] {
		c.mu.Unlock()
		return ErrCommandPending
	}
	id, gen := c.sessionID, c.generation
	c.pending[key] = true
	c.errText = ""
	c.mu.Unlock()
	c.publish()

	draft, err := fn(ctx, id)
	if err == nil && draft == nil {
		draft, err = c.api.TeamPicker(ctx, id)
	}

	if err != nil {
		c.mu.Lock()
		stale := gen != c.generation
		if !stale {
			delete(c.pending, key)
			c.errText = ErrorText(cmd, err)
		}
		c.mu.Unlock()

		log.Warn().Err(err).Str("session_id", id).Str("command", string(cmd)).Msg("team picker command failed")
		if !stale {
			c.publish()
		}
		return err
	}

	c.mu.Lock()
	if gen == c.generation {
		delete(c.pending, key)
	}
	c.mu.Unlock()
	if !c.apply(gen, draft) {
		log.Debug().Str("session_id", id).Str("command", string(cmd)).Msg("team picker command result discarded")
		return nil
	}

	log.Info().Str("session_id", id).Str("command", string(cmd)).Msg("team picker command applied")
	return nil
}

func (c *Client) apply(gen uint64, draft *models.DraftSession) bool {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return false
	}
	c.draft = draft
	c.loaded = true
	id := c.sessionID
	c.mu.Unlock()

	if c.observer != nil {
		c.observer(id, draft)
	}
	c.publish()
	return true
}

func (c *Client) current() (string, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID, c.generation
}

func (c *Client) setTossing(v bool) {
	c.mu.Lock()
	c.tossing = v
	c.mu.Unlock()
	c.publish()
}

func (c *Client) viewLocked() View {
	pending := make(map[Command]bool, len(c.pending))
	for k, v := range c.pending {
		pending[k] = v
	}
	return Render(Input{
		SessionID: c.sessionID,
		Session:   c.session,
		Draft:     c.draft,
		Loaded:    c.loaded,
		Pending:   pending,
		Tossing:   c.tossing,
		Error:     c.errText,
	})
}

func (c *Client) publish() {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.TopicViewDraft, c.View())
}
