package dashboard_client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/bzdash/go/clients"
	"github.com/mcdev12/bzdash/go/internal/models"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *DashboardClient {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewDashboardClient(srv.URL, "", "sid=abc")
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestCurrentSessionsSendsFilterAndCookie(t *testing.T) {
	var gotQuery url.Values
	var gotCookie string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/sessions/current", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotCookie = r.Header.Get("Cookie")
		writeJSON(w, http.StatusOK, `{"sessions":[{"id":"s1","name":"Duel","state":"PreGame","players":[{"name":"a","slot":1}]}]}`)
	})
	c := newTestClient(t, mux)

	q := url.Values{}
	q.Set("state", "PreGame")
	q.Set("min_players", "2")
	list, err := c.CurrentSessions(context.Background(), q)
	require.NoError(t, err)

	require.Len(t, list, 1)
	assert.Equal(t, "s1", list[0].ID)
	assert.Equal(t, models.SessionStatePreGame, list[0].State)
	assert.Len(t, list[0].Players, 1)
	assert.Equal(t, "PreGame", gotQuery.Get("state"))
	assert.Equal(t, "2", gotQuery.Get("min_players"))
	assert.Equal(t, "sid=abc", gotCookie)
}

func TestTeamPickerMissingDraft(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/team_picker/none", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"session":null}`)
	})
	mux.HandleFunc("GET /api/v1/team_picker/gone", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"error":"not_found"}`)
	})
	mux.HandleFunc("GET /api/v1/team_picker/s1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"session":{"session_id":"s1","state":"picking","next_team":2,"coin_winner_team":1,
			"participants":[{"role":"commander1","steam_id":"c1"},{"role":"commander2","steam_id":"c2"}],
			"picks":[{"order":1,"team_id":1,"player":{"steam_id":"p1"}}],
			"roster":[{"steam_id":"p1"},{"steam_id":"p2"}],"your_role":"commander2"}}`)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	d, err := c.TeamPicker(ctx, "none")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = c.TeamPicker(ctx, "gone")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = c.TeamPicker(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, models.DraftStatePicking, d.State)
	require.NotNil(t, d.NextTeam)
	assert.Equal(t, 2, *d.NextTeam)
	assert.Equal(t, models.RoleCommander2, d.YourRole)
	assert.True(t, d.Picked("p1"))
	assert.False(t, d.Picked("p2"))
}

func TestPickPostsPlayer(t *testing.T) {
	var body map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/team_picker/s1/pick", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, `{"session":{"session_id":"s1","state":"picking"}}`)
	})
	c := newTestClient(t, mux)

	d, err := c.Pick(context.Background(), "s1", "p7")
	require.NoError(t, err)
	assert.Equal(t, "s1", d.SessionID)
	assert.Equal(t, map[string]string{"player_id": "p7"}, body)
}

func TestCommandErrorsCarryServerCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/team_picker/s1/start", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"error":"missing_commanders"}`)
	})
	mux.HandleFunc("POST /api/v1/team_picker/s1/finalize", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, `forbidden`)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	_, err := c.Start(ctx, "s1")
	require.Error(t, err)
	assert.Equal(t, "missing_commanders", clients.ErrorCode(err))

	_, err = c.Finalize(ctx, "s1")
	require.Error(t, err)
	assert.True(t, clients.IsForbidden(err))
	assert.Empty(t, clients.ErrorCode(err))

	var apiErr *clients.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "forbidden", apiErr.Message)
}

func TestPathEscapesSessionID(t *testing.T) {
	var gotPath string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		writeJSON(w, http.StatusOK, `{"session":null}`)
	})
	c := newTestClient(t, mux)

	_, err := c.TeamPicker(context.Background(), "a/b c")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/team_picker/a%2Fb%20c", gotPath)
}

func TestAccount(t *testing.T) {
	loggedOut := false
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") == "" {
			writeJSON(w, http.StatusUnauthorized, `{"error":"unauthorized"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"user":{"id":"u1","display_name":"Pilot"}}`)
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		loggedOut = true
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	ctx := context.Background()

	anon := NewDashboardClient(srv.URL, "/api/v1", "")
	user, err := anon.Me(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)

	signed := NewDashboardClient(srv.URL, "/api/v1", "sid=abc")
	user, err = signed.Me(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Pilot", user.Name())

	require.NoError(t, signed.Logout(ctx))
	assert.True(t, loggedOut)
}

func TestModsFillsIDs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/mods", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"mods":{"0":{"name":"Stock"},"7":{"name":"Alpha"}}}`)
	})
	c := newTestClient(t, mux)

	mods, err := c.Mods(context.Background())
	require.NoError(t, err)
	sort.Slice(mods, func(i, j int) bool { return mods[i].ID < mods[j].ID })
	assert.Equal(t, []models.Mod{{ID: "0", Name: "Stock"}, {ID: "7", Name: "Alpha"}}, mods)
}

func TestHistorySummaryWindow(t *testing.T) {
	var minutes string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/history/summary", func(w http.ResponseWriter, r *http.Request) {
		minutes = r.URL.Query().Get("minutes")
		writeJSON(w, http.StatusOK, `{"points":[{"t":"10:00","sessions":2,"players":7}]}`)
	})
	c := newTestClient(t, mux)

	points, err := c.HistorySummary(context.Background(), 120)
	require.NoError(t, err)
	assert.Equal(t, "120", minutes)
	assert.Equal(t, []models.HistoryPoint{{At: "10:00", Sessions: 2, Players: 7}}, points)
}

func TestPresenceEndpoints(t *testing.T) {
	heartbeats := 0
	draftPresence := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/presence/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		heartbeats++
		writeJSON(w, http.StatusOK, `{}`)
	})
	mux.HandleFunc("POST /api/v1/team_picker/s1/presence", func(w http.ResponseWriter, r *http.Request) {
		draftPresence++
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/v1/team_picker/open_for_me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"sessions":[{"session_id":"s1","session_name":"Duel","role":"commander1"}]}`)
	})
	mux.HandleFunc("GET /api/v1/players/online", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"players":[{"name":"a","steam":{"id":"765","nickname":"Ace"}}]}`)
	})
	mux.HandleFunc("GET /api/v1/players/site-online", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"players":[{"id":"765"}]}`)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	require.NoError(t, c.Heartbeat(ctx))
	require.NoError(t, c.DraftPresence(ctx, "s1"))
	assert.Equal(t, 1, heartbeats)
	assert.Equal(t, 1, draftPresence)

	open, err := c.OpenForMe(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.OpenDraft{{SessionID: "s1", SessionName: "Duel", Role: models.RoleCommander1}}, open)

	online, err := c.OnlinePlayers(ctx)
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, "765", online[0].LinkedID())
	assert.Equal(t, "Ace", online[0].DisplayName())

	site, err := c.SiteOnlinePlayers(ctx)
	require.NoError(t, err)
	require.Len(t, site, 1)
	assert.Equal(t, "765", site[0].SiteID())
}
