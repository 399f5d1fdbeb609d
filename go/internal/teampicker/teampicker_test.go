package teampicker

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/bzdash/go/clients"
	"github.com/mcdev12/bzdash/go/internal/events"
	"github.com/mcdev12/bzdash/go/internal/models"
	"github.com/mcdev12/bzdash/go/internal/sessions"
)

func intp(v int) *int { return &v }

func roster(ids ...string) []models.RosterPlayer {
	out := make([]models.RosterPlayer, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.RosterPlayer{SteamID: id, Nickname: "nick-" + id})
	}
	return out
}

// picking returns a draft where commander1 (c1) is on the clock.
func picking() *models.DraftSession {
	return &models.DraftSession{
		SessionID: "s1",
		State:     models.DraftStatePicking,
		Participants: []models.Participant{
			{Role: models.RoleCommander1, SteamID: "c1"},
			{Role: models.RoleCommander2, SteamID: "c2"},
		},
		Roster:         roster("c1", "c2", "p1", "p2", "p3", "p4"),
		Picks:          []models.DraftPick{{Order: 1, TeamID: 2, Player: models.RosterPlayer{SteamID: "p2"}}},
		CoinWinnerTeam: intp(2),
		NextTeam:       intp(1),
		YourRole:       models.RoleCommander1,
	}
}

type fakeAPI struct {
	mu      sync.Mutex
	draft   *models.DraftSession
	errs    map[string]error
	calls   []string
	picked  []string
	blockOn string
	release chan struct{}
}

func newFakeAPI(d *models.DraftSession) *fakeAPI {
	return &fakeAPI{draft: d, errs: make(map[string]error)}
}

func (f *fakeAPI) record(name string) (*models.DraftSession, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	err := f.errs[name]
	d := f.draft
	block := f.blockOn == name
	f.mu.Unlock()
	if block {
		<-f.release
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (f *fakeAPI) callsTo(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeAPI) TeamPicker(ctx context.Context, id string) (*models.DraftSession, error) {
	return f.record("get")
}
func (f *fakeAPI) Start(ctx context.Context, id string) (*models.DraftSession, error) {
	return f.record("start")
}
func (f *fakeAPI) CoinToss(ctx context.Context, id string) (*models.DraftSession, error) {
	return f.record("coin_toss")
}
func (f *fakeAPI) Pick(ctx context.Context, id, playerID string) (*models.DraftSession, error) {
	f.mu.Lock()
	f.picked = append(f.picked, playerID)
	f.mu.Unlock()
	return f.record("pick")
}
func (f *fakeAPI) Finalize(ctx context.Context, id string) (*models.DraftSession, error) {
	return f.record("finalize")
}
func (f *fakeAPI) Restart(ctx context.Context, id string) (*models.DraftSession, error) {
	return f.record("restart")
}

func openClient(t *testing.T, api *fakeAPI, clock clockwork.Clock, session *models.Session) *Client {
	t.Helper()
	c := NewClient(api, clock, nil, NewRandomStrategyWithSource(rand.NewSource(1)), DefaultCoinTossDelay)
	require.NoError(t, c.Open(context.Background(), "s1", session))
	return c
}

func TestFinalizeEnabledIffPicksCompleteAndCommander(t *testing.T) {
	roles := []models.Role{models.RoleCommander1, models.RoleCommander2, models.RoleSpectator, models.RoleNone}
	for _, complete := range []bool{true, false} {
		for _, role := range roles {
			t.Run(fmt.Sprintf("complete=%v/role=%q", complete, role), func(t *testing.T) {
				d := picking()
				d.PicksComplete = complete
				d.YourRole = role
				if complete {
					d.State = models.DraftStatePicksComplete
				}

				view := Render(Input{SessionID: "s1", Draft: d, Loaded: true})
				finalize, ok := view.Control(CommandFinalize)
				require.True(t, ok)
				assert.Equal(t, complete && role.IsCommander(), finalize.Enabled)
			})
		}
	}
}

func TestRestartEnabledOnlyForCommanders(t *testing.T) {
	roles := []models.Role{models.RoleCommander1, models.RoleCommander2, models.RoleSpectator, models.RoleNone}
	for _, role := range roles {
		t.Run(fmt.Sprintf("role=%q", role), func(t *testing.T) {
			d := picking()
			d.YourRole = role

			view := Render(Input{SessionID: "s1", Draft: d, Loaded: true})
			restart, ok := view.Control(CommandRestart)
			require.True(t, ok)
			assert.True(t, restart.Visible)
			assert.Equal(t, role.IsCommander(), restart.Enabled)
		})
	}

	view := Render(Input{SessionID: "s1", Loaded: true})
	restart, ok := view.Control(CommandRestart)
	require.True(t, ok)
	assert.False(t, restart.Visible)
	assert.False(t, restart.Enabled)
}

func TestEligiblePoolExcludesCommandersAndPicked(t *testing.T) {
	pool := EligiblePool(picking())
	var ids []string
	for _, p := range pool {
		ids = append(ids, p.SteamID)
	}
	assert.Equal(t, []string{"p1", "p3", "p4"}, ids)
	assert.Nil(t, EligiblePool(nil))
}

func TestPickRandomOnlyChoosesEligiblePlayers(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		d := picking()
		api := newFakeAPI(d)
		c := NewClient(api, clockwork.NewFakeClock(), nil, NewRandomStrategyWithSource(rand.NewSource(seed)), 0)
		require.NoError(t, c.Open(context.Background(), "s1", nil))
		require.NoError(t, c.PickRandom(context.Background()))

		require.Len(t, api.picked, 1)
		assert.Contains(t, []string{"p1", "p3", "p4"}, api.picked[0])
	}
}

func TestPickRandomWithEmptyPool(t *testing.T) {
	d := picking()
	d.Roster = roster("c1", "c2", "p2")
	api := newFakeAPI(d)
	c := openClient(t, api, clockwork.NewFakeClock(), nil)

	view := c.View()
	random, _ := view.Control(CommandPickRandom)
	assert.False(t, random.Enabled)

	err := c.PickRandom(context.Background())
	assert.ErrorIs(t, err, ErrEmptyPool)
	assert.Equal(t, 0, api.callsTo("pick"))
	assert.Equal(t, "no eligible players left", c.View().Error)
}

func TestNoCoinWinnerDisablesPicks(t *testing.T) {
	d := picking()
	d.State = models.DraftStateAwaitingCoinToss
	d.CoinWinnerTeam = nil
	d.NextTeam = nil
	d.Picks = nil

	view := Render(Input{SessionID: "s1", Draft: d, Loaded: true})
	assert.Equal(t, models.DraftStateAwaitingCoinToss, view.State)
	assert.Equal(t, BannerCoinToss, view.Banner)
	require.Len(t, view.Pool, 4)
	for _, b := range view.Pool {
		assert.False(t, b.Enabled, b.SteamID)
	}
	toss, _ := view.Control(CommandCoinToss)
	assert.True(t, toss.Enabled)
}

func TestYourTurnEnablesPicks(t *testing.T) {
	view := Render(Input{SessionID: "s1", Draft: picking(), Loaded: true})
	assert.True(t, view.YourTurn)
	assert.Equal(t, BannerYourPick, view.Banner)
	for _, b := range view.Pool {
		assert.True(t, b.Enabled)
	}

	other := picking()
	other.YourRole = models.RoleCommander2
	view = Render(Input{SessionID: "s1", Draft: other, Loaded: true})
	assert.False(t, view.YourTurn)
	assert.Equal(t, "Team 1 is picking", view.Banner)
	for _, b := range view.Pool {
		assert.False(t, b.Enabled)
	}
	require.Len(t, view.Teams, 2)
	assert.True(t, view.Teams[0].OnTurn)
	assert.True(t, view.Teams[1].CoinWon)
	assert.Equal(t, "p2", view.Teams[1].Picks[0].SteamID)
}

func TestNotStartedView(t *testing.T) {
	session := &models.Session{
		ID:    "s1",
		State: models.SessionStatePreGame,
		Players: []models.Player{
			{Slot: 1, Steam: &models.SteamIdentity{ID: "c1"}},
			{Slot: 6, Steam: &models.SteamIdentity{ID: "c2"}},
		},
	}
	view := Render(Input{SessionID: "s1", Session: session, Loaded: true})
	assert.Equal(t, models.DraftStateNotStarted, view.State)
	assert.Equal(t, BannerNotStarted, view.Banner)
	start, _ := view.Control(CommandStart)
	assert.True(t, start.Visible)
	assert.True(t, start.Enabled)
	finalize, _ := view.Control(CommandFinalize)
	assert.False(t, finalize.Visible)

	session.State = models.SessionStateInGame
	start, _ = Render(Input{SessionID: "s1", Session: session}).Control(CommandStart)
	assert.False(t, start.Enabled)
	assert.Equal(t, "not_pregame", start.Reason)

	session.State = models.SessionStatePreGame
	session.Players = session.Players[:1]
	assert.Equal(t, "missing_commanders", StartPrecondition(session))
}

func TestAwaitingOtherCommander(t *testing.T) {
	d := picking()
	d.PicksComplete = true
	d.Commander1Accepted = true
	view := Render(Input{SessionID: "s1", Draft: d, Loaded: true})
	assert.Equal(t, models.DraftStatePicksComplete, view.State)
	assert.True(t, view.AwaitingOther)
	assert.Equal(t, BannerAwaitingOther, view.Banner)

	d.Commander2Accepted = true
	view = Render(Input{SessionID: "s1", Draft: d, Loaded: true})
	assert.False(t, view.AwaitingOther)
	assert.Equal(t, BannerPicksComplete, view.Banner)

	d.State = models.DraftStateFinalized
	assert.Equal(t, BannerFinalized, Render(Input{SessionID: "s1", Draft: d}).Banner)
}

func TestFFALayout(t *testing.T) {
	session := &models.Session{ID: "s1", Name: "Friday FFA"}
	view := Render(Input{SessionID: "s1", Session: session, Draft: picking(), Loaded: true})
	assert.Equal(t, sessions.LayoutFFA, view.Layout)
	assert.Empty(t, view.Teams)
	require.Len(t, view.Roster, 6)
	assert.True(t, view.Roster[0].Commander)
	assert.Equal(t, 2, view.Roster[3].Team)
}

func TestCoinTossWaitsBeforeRequest(t *testing.T) {
	d := picking()
	d.State = models.DraftStateAwaitingCoinToss
	d.CoinWinnerTeam = nil
	api := newFakeAPI(d)
	clock := clockwork.NewFakeClock()
	c := openClient(t, api, clock, nil)

	done := make(chan error, 1)
	go func() { done <- c.CoinToss(context.Background()) }()

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	view := c.View()
	assert.Equal(t, BannerTossing, view.Banner)
	toss, _ := view.Control(CommandCoinToss)
	assert.False(t, toss.Enabled)
	assert.True(t, toss.Pending)

	assert.ErrorIs(t, c.CoinToss(context.Background()), ErrCommandPending)

	clock.Advance(time.Second)
	assert.Equal(t, 0, api.callsTo("coin_toss"))

	api.mu.Lock()
	api.draft = picking()
	api.mu.Unlock()
	clock.Advance(200 * time.Millisecond)
	require.NoError(t, <-done)

	assert.Equal(t, 1, api.callsTo("coin_toss"))
	view = c.View()
	assert.Equal(t, models.DraftStatePicking, view.State)
	toss, _ = view.Control(CommandCoinToss)
	assert.False(t, toss.Pending)
}

func TestRejectedPickReenablesWithReason(t *testing.T) {
	api := newFakeAPI(picking())
	api.errs["pick"] = &clients.APIError{StatusCode: http.StatusForbidden}
	c := openClient(t, api, clockwork.NewFakeClock(), nil)

	err := c.Pick(context.Background(), "p1")
	require.Error(t, err)

	view := c.View()
	assert.Equal(t, "not your turn", view.Error)
	for _, b := range view.Pool {
		assert.True(t, b.Enabled)
	}
}

func TestLocalPickChecks(t *testing.T) {
	api := newFakeAPI(picking())
	c := openClient(t, api, clockwork.NewFakeClock(), nil)

	assert.ErrorIs(t, c.Pick(context.Background(), "p2"), ErrNotEligible)
	assert.ErrorIs(t, c.Pick(context.Background(), "c2"), ErrNotEligible)

	other := picking()
	other.YourRole = models.RoleCommander2
	c.Apply("s1", other)
	assert.ErrorIs(t, c.Pick(context.Background(), "p1"), ErrNotYourTurn)
	assert.Equal(t, "not your turn", c.View().Error)

	spectator := picking()
	spectator.YourRole = models.RoleSpectator
	c.Apply("s1", spectator)
	assert.ErrorIs(t, c.Restart(context.Background()), ErrNotCommander)
	assert.Equal(t, "only commanders may restart", c.View().Error)
	assert.Equal(t, 0, api.callsTo("pick"))
}

func TestServerErrorCodesAreVerbatim(t *testing.T) {
	api := newFakeAPI(nil)
	api.errs["start"] = &clients.APIError{StatusCode: http.StatusBadRequest, Code: "missing_commanders"}
	c := openClient(t, api, clockwork.NewFakeClock(), nil)

	require.Error(t, c.Start(context.Background()))
	assert.Equal(t, "missing_commanders", c.View().Error)

	delete(api.errs, "start")
	api.errs["get"] = nil
	api.draft = &models.DraftSession{SessionID: "s1", State: models.DraftStateAwaitingCoinToss, YourRole: models.RoleCommander1}
	require.NoError(t, c.Start(context.Background()))
	assert.Empty(t, c.View().Error)
	assert.Equal(t, models.DraftStateAwaitingCoinToss, c.View().State)
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		cmd  Command
		err  error
		want string
	}{
		{CommandFinalize, &clients.APIError{StatusCode: 409, Code: "both_commanders_required"}, "both_commanders_required"},
		{CommandPick, &clients.APIError{StatusCode: 401}, "please sign in"},
		{CommandPick, &clients.APIError{StatusCode: 401, Code: "unauthorized"}, "please sign in"},
		{CommandFinalize, &clients.APIError{StatusCode: 403, Code: "forbidden"}, "only commanders may finalize"},
		{CommandPick, &clients.APIError{StatusCode: 403, Code: "forbidden"}, "not your turn"},
		{CommandStart, &clients.APIError{StatusCode: 403, Code: "not_pregame"}, "not_pregame"},
		{CommandFinalize, &clients.APIError{StatusCode: 403, Code: "both_commanders_required"}, "both_commanders_required"},
		{CommandStart, &clients.APIError{StatusCode: 400, Code: "missing_commanders"}, "missing_commanders"},
		{CommandFinalize, &clients.APIError{StatusCode: 403}, "only commanders may finalize"},
		{CommandPickRandom, &clients.APIError{StatusCode: 403}, "not your turn"},
		{CommandStart, fmt.Errorf("wrapped: %w", ErrNotCommander), "only commanders may start the team picker"},
		{CommandRestart, fmt.Errorf("dial tcp: refused"), "request failed, try again"},
		{CommandRestart, nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorText(tt.cmd, tt.err))
	}
}

func TestClosingDiscardsInFlightResults(t *testing.T) {
	api := newFakeAPI(picking())
	api.blockOn = "finalize"
	api.release = make(chan struct{})
	d := picking()
	d.PicksComplete = true
	api.draft = d

	var logs bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(zerolog.SyncWriter(&logs))
	t.Cleanup(func() { log.Logger = previous })

	c := openClient(t, api, clockwork.NewFakeClock(), nil)
	done := make(chan error, 1)
	go func() { done <- c.Finalize(context.Background()) }()

	require.Eventually(t, func() bool { return api.callsTo("finalize") == 1 }, time.Second, time.Millisecond)
	c.Close()
	close(api.release)
	require.NoError(t, <-done)

	view := c.View()
	assert.False(t, view.Open)
	assert.Nil(t, c.Snapshot())
	assert.NotContains(t, logs.String(), "team picker command applied")
	assert.Contains(t, logs.String(), "team picker command result discarded")
}

func TestApplyIgnoresOtherSessionsAndPublishes(t *testing.T) {
	bus := events.NewBus(32)
	defer bus.Close()
	sub := bus.Subscribe(events.TopicViewDraft)

	var observed []string
	c := NewClient(newFakeAPI(nil), clockwork.NewFakeClock(), bus, nil, 0)
	c.OnSnapshot(func(id string, d *models.DraftSession) { observed = append(observed, id) })
	require.NoError(t, c.Open(context.Background(), "s1", nil))

	assert.False(t, c.Apply("other", picking()))
	assert.True(t, c.Apply("s1", picking()))
	assert.Equal(t, []string{"s1", "s1"}, observed)

	var last View
	for len(sub.C) > 0 {
		last = (<-sub.C).Payload.(View)
	}
	assert.Equal(t, models.DraftStatePicking, last.State)
}

func TestCommandsWithoutOpenDraft(t *testing.T) {
	c := NewClient(newFakeAPI(nil), clockwork.NewFakeClock(), nil, nil, 0)
	assert.ErrorIs(t, c.Start(context.Background()), ErrNoDraft)
	assert.ErrorIs(t, c.Refresh(context.Background()), ErrNoDraft)
	assert.Error(t, c.Execute(context.Background(), Command("bogus"), ""))
	_, ok := ParseCommand("pick_random")
	assert.True(t, ok)
}
