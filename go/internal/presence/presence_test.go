package presence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/bzdash/go/internal/events"
	"github.com/mcdev12/bzdash/go/internal/models"
	"github.com/mcdev12/bzdash/go/internal/schedule"
)

type fakeAPI struct {
	mu         sync.Mutex
	open       []models.OpenDraft
	ingame     []models.OnlinePlayer
	site       []models.OnlinePlayer
	ingameErr  error
	siteErr    error
	heartbeats atomic.Int32
	onlineHits atomic.Int32
}

func (f *fakeAPI) Heartbeat(ctx context.Context) error {
	f.heartbeats.Add(1)
	return nil
}

func (f *fakeAPI) OpenForMe(ctx context.Context) ([]models.OpenDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open, nil
}

func (f *fakeAPI) OnlinePlayers(ctx context.Context) ([]models.OnlinePlayer, error) {
	f.onlineHits.Add(1)
	return f.ingame, f.ingameErr
}

func (f *fakeAPI) SiteOnlinePlayers(ctx context.Context) ([]models.OnlinePlayer, error) {
	return f.site, f.siteErr
}

func newTestNotifier(t *testing.T, api *fakeAPI, draftOpen func() bool) (*Notifier, *clockwork.FakeClock, *events.Bus) {
	clock := clockwork.NewFakeClock()
	sched := schedule.NewScheduler(clock)
	bus := events.NewBus(32)
	t.Cleanup(func() {
		sched.Stop()
		bus.Close()
	})
	n := NewNotifier(api, sched, bus, DefaultConfig(), draftOpen)
	// drive invite cycles by hand; the timers are exercised separately
	n.signedIn = true
	return n, clock, bus
}

func TestInviteSuppressedDuringCooldown(t *testing.T) {
	api := &fakeAPI{open: []models.OpenDraft{{SessionID: "S1", SessionName: "Strat"}}}
	n, clock, bus := newTestNotifier(t, api, nil)
	prompts := bus.Subscribe(events.TopicInvitePrompt)

	invite, err := n.PollInvites(context.Background())
	require.NoError(t, err)
	require.NotNil(t, invite)
	assert.Equal(t, "S1", invite.SessionID)
	assert.Equal(t, "Strat", (<-prompts.C).Payload.(Invite).SessionName)
	n.DismissPrompt()

	for elapsed := 5 * time.Second; elapsed < 120*time.Second; elapsed += 5 * time.Second {
		clock.Advance(5 * time.Second)
		invite, err := n.PollInvites(context.Background())
		require.NoError(t, err)
		assert.Nil(t, invite, "prompted again after %s", elapsed)
	}
	assert.Len(t, prompts.C, 0)

	clock.Advance(5 * time.Second)
	invite, err = n.PollInvites(context.Background())
	require.NoError(t, err)
	require.NotNil(t, invite)
	assert.Equal(t, "S1", invite.SessionID)
}

func TestOpenPromptBlocksNewPrompts(t *testing.T) {
	api := &fakeAPI{open: []models.OpenDraft{{SessionID: "S1"}}}
	n, _, _ := newTestNotifier(t, api, nil)

	require.NotNil(t, n.consider(api.open))
	assert.Nil(t, n.consider([]models.OpenDraft{{SessionID: "S2"}}))
	assert.Equal(t, "S1", n.Prompt().SessionID)

	dismissed := n.DismissPrompt()
	assert.Equal(t, "S1", dismissed.SessionID)
	assert.Nil(t, n.Prompt())

	next := n.consider([]models.OpenDraft{{SessionID: "S1"}, {SessionID: "S2"}})
	require.NotNil(t, next)
	assert.Equal(t, "S2", next.SessionID)
}

func TestOpenDraftModalBlocksPrompts(t *testing.T) {
	var modal atomic.Bool
	modal.Store(true)
	api := &fakeAPI{open: []models.OpenDraft{{SessionID: "S1"}}}
	n, _, _ := newTestNotifier(t, api, modal.Load)

	invite, err := n.PollInvites(context.Background())
	require.NoError(t, err)
	assert.Nil(t, invite)

	modal.Store(false)
	invite, err = n.PollInvites(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, invite)
}

func TestSignedOutNeverPrompts(t *testing.T) {
	api := &fakeAPI{open: []models.OpenDraft{{SessionID: "S1"}}}
	n, _, _ := newTestNotifier(t, api, nil)
	n.signedIn = false

	invite, err := n.PollInvites(context.Background())
	require.NoError(t, err)
	assert.Nil(t, invite)
}

func TestBuildOnlineView(t *testing.T) {
	ingame := []models.OnlinePlayer{
		{Name: "raw", SteamID: "1"},
		{Steam: &models.SteamIdentity{ID: "2", Nickname: "Nick", Avatar: "a.png"}},
		{Name: "ghost"},
	}
	site := []models.OnlinePlayer{{ID: "2"}, {ID: "9"}}

	view := BuildOnlineView(ingame, site, time.Unix(0, 0))
	require.Len(t, view.Players, 3)
	assert.Equal(t, OnlineEntry{Name: "raw", SteamID: "1"}, view.Players[0])
	assert.Equal(t, OnlineEntry{Name: "Nick", SteamID: "2", Avatar: "a.png", Active: true}, view.Players[1])
	assert.Equal(t, "ghost", view.Players[2].Name)
	assert.False(t, view.Players[2].Active)

	empty := BuildOnlineView(nil, site, time.Unix(0, 0))
	assert.Equal(t, noPlayersMessage, empty.Message)
}

func TestRefreshOnlineTolerantOfSiteFailure(t *testing.T) {
	api := &fakeAPI{
		ingame:  []models.OnlinePlayer{{Name: "a", SteamID: "1"}},
		siteErr: errors.New("site down"),
	}
	n, _, _ := newTestNotifier(t, api, nil)

	view, err := n.RefreshOnline(context.Background())
	require.NoError(t, err)
	require.Len(t, view.Players, 1)
	assert.False(t, view.Players[0].Active)

	api.ingameErr = errors.New("backend down")
	view, err = n.RefreshOnline(context.Background())
	require.Error(t, err)
	assert.True(t, view.Unavailable)
	assert.Equal(t, unavailableMessage, n.Online().Message)
}

func TestSignInStartsHeartbeatAndOnlineRefresh(t *testing.T) {
	api := &fakeAPI{}
	clock := clockwork.NewFakeClock()
	sched := schedule.NewScheduler(clock)
	defer sched.Stop()
	n := NewNotifier(api, sched, nil, DefaultConfig(), nil)

	n.SetSignedIn(true)
	require.True(t, n.SignedIn())
	require.Eventually(t, func() bool { return api.heartbeats.Load() == 1 }, time.Second, time.Millisecond)

	// heartbeat loop, invite loop and the pending online refresh
	require.NoError(t, clock.BlockUntilContext(context.Background(), 3))
	clock.Advance(500 * time.Millisecond)
	require.Eventually(t, func() bool { return api.onlineHits.Load() == 1 }, time.Second, time.Millisecond)

	clock.Advance(4500 * time.Millisecond)
	require.Eventually(t, func() bool { return api.heartbeats.Load() == 2 }, time.Second, time.Millisecond)

	n.SetSignedIn(false)
	assert.False(t, n.SignedIn())
	require.Eventually(t, func() bool { return sched.Len() == 0 }, time.Second, time.Millisecond)
}

func TestHeartbeatSkippedWhenSignedOut(t *testing.T) {
	api := &fakeAPI{}
	clock := clockwork.NewFakeClock()
	sched := schedule.NewScheduler(clock)
	defer sched.Stop()
	n := NewNotifier(api, sched, nil, DefaultConfig(), nil)

	require.NoError(t, n.Heartbeat(context.Background()))
	assert.Equal(t, int32(0), api.heartbeats.Load())
	assert.Equal(t, 0, sched.Len())
}

func TestSignOutRacingSignInLeavesNoTimers(t *testing.T) {
	api := &fakeAPI{}
	clock := clockwork.NewFakeClock()
	sched := schedule.NewScheduler(clock)
	defer sched.Stop()
	n := NewNotifier(api, sched, nil, DefaultConfig(), nil)

	for i := 0; i < 50; i++ {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			n.SetSignedIn(true)
		}()
		go func() {
			defer wg.Done()
			n.SetSignedIn(false)
		}()
		wg.Wait()
		n.SetSignedIn(false)

		require.False(t, n.SignedIn())
		require.Eventually(t, func() bool { return sched.Len() == 0 }, time.Second, time.Millisecond)
	}
}
