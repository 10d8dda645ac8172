package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/rollcall/internal/api"
	"github.com/mcoot/rollcall/internal/api/apierr"
	"github.com/mcoot/rollcall/internal/api/response"
	"github.com/mcoot/rollcall/internal/config"
	"github.com/mcoot/rollcall/internal/factory"
	"github.com/mcoot/rollcall/internal/model"
	"github.com/mcoot/rollcall/internal/services/display"
)

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	app := factory.NewTestApp(func(c *config.Config) {
		c.Capacity = 2
	})
	t.Cleanup(func() { _ = app.Close() })

	router := api.NewRouter(api.RouterConfig{
		Logger:           logger,
		Clock:            app.Clock,
		AuthService:      app.AuthService,
		RosterController: app.RosterController,
		Runner:           app.Runner,
		Input:            app.InputCollector,
		Presence:         app.PresenceTracker,
		History:          app.HistoryService,
		Directory:        app.Directory,
		Board:            app.Board,
		HubManager:       app.HubManager,
		Gatherer:         app.Gatherer,
	})

	return &testServer{handler: router, app: app}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

// login returns a session token for the test coordinator
func (ts *testServer) login(t *testing.T) string {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": factory.TestUsername,
		"password": factory.TestPassword,
	}, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.AuthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.SessionToken
}

// say delivers coordinator text once a command is waiting for it
func (ts *testServer) say(t *testing.T, token, text string) {
	t.Helper()
	ts.app.InputCollector.WaitForWaiters(1)
	rr := ts.request(http.MethodPost, "/api/v1/input", map[string]string{"text": text}, token)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.InputResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Delivered)
}

func (ts *testServer) roster(t *testing.T) response.Roster {
	t.Helper()
	rr := ts.request(http.MethodGet, "/api/v1/roster", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.Roster
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

// openRoster opens a roster through the API with the given batches
func (ts *testServer) openRoster(t *testing.T, token string, batches ...string) {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/v1/roster/open", nil, token)
	require.Equal(t, http.StatusAccepted, rr.Code)

	for _, b := range append(batches, "FIN") {
		ts.say(t, token, b)
	}
	require.Eventually(t, func() bool {
		return ts.boardHas("roster", display.MainTitle)
	}, time.Second, 5*time.Millisecond)
	require.True(t, ts.app.RosterController.IsOpen())
}

func (ts *testServer) boardHas(channel model.ChannelID, substr string) bool {
	for _, m := range ts.app.Board.Messages(channel, 0) {
		text := m.Message.Title + "\n" + strings.Join(m.Message.Lines, "\n") + "\n" + m.Message.Footer
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	var health response.Health
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, string(model.RosterStateClosed), health.Roster)
	assert.Zero(t, health.Entries)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	token := ts.login(t)
	assert.NotEmpty(t, token)

	rr := ts.request(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": factory.TestUsername,
		"password": "wrong",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeInvalidCredentials, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/auth/login", map[string]string{}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	rr := ts.request(http.MethodPost, "/api/v1/auth/logout", nil, token)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/presence", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMutationsRequireAuth(t *testing.T) {
	ts := newTestServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/roster/open"},
		{http.MethodPost, "/api/v1/roster/add"},
		{http.MethodPost, "/api/v1/roster/cancel"},
		{http.MethodPost, "/api/v1/roster/finish"},
		{http.MethodPut, "/api/v1/roster/capacity"},
		{http.MethodPost, "/api/v1/input"},
		{http.MethodPost, "/api/v1/presence"},
		{http.MethodPost, "/api/v1/history/publish"},
		{http.MethodGet, "/api/v1/participants"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			rr := ts.request(p.method, p.path, nil, "")
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, apierr.CodeUnauthorized, errorCode(t, rr))
		})
	}
}

func TestStaticTokenAuthenticates(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/presence", nil, factory.TestToken)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGetRosterWhenClosed(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.roster(t)
	assert.Equal(t, string(model.RosterStateClosed), resp.State)
	assert.Equal(t, 2, resp.Capacity)
	assert.Empty(t, resp.Main)
	assert.Nil(t, resp.OpenedAt)
}

func TestOpenRosterThroughInput(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	ts.openRoster(t, token, "Alice\nBob\nCarol")

	resp := ts.roster(t)
	assert.Equal(t, string(model.RosterStateOpen), resp.State)
	require.Len(t, resp.Main, 2)
	require.Len(t, resp.Reserve, 1)
	assert.Equal(t, "Alice", resp.Main[0].Name)
	assert.Equal(t, 1, resp.Main[0].Position)
	assert.Equal(t, "Carol", resp.Reserve[0].Name)
	assert.Equal(t, 3, resp.Reserve[0].Position)
	assert.Equal(t, string(model.StatusDisconnected), resp.Reserve[0].Status)
	assert.NotNil(t, resp.ClosesAt)

	rr := ts.request(http.MethodPost, "/api/v1/roster/open", nil, token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeRosterAlreadyOpen, errorCode(t, rr))
}

func TestCommandsOnClosedRoster(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	for _, path := range []string{"/api/v1/roster/cancel", "/api/v1/roster/finish", "/api/v1/roster/add"} {
		rr := ts.request(http.MethodPost, path, nil, token)
		assert.Equal(t, http.StatusConflict, rr.Code, path)
		assert.Equal(t, apierr.CodeRosterNotOpen, errorCode(t, rr), path)
	}
}

func TestAutomaticAdd(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)
	ts.openRoster(t, token, "Alice")

	rr := ts.request(http.MethodPost, "/api/v1/roster/add", map[string]string{"mode": "automatic", "name": "Bob"}, token)
	require.Equal(t, http.StatusOK, rr.Code)
	var added response.AddResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &added))
	assert.True(t, added.Added)

	// Adding the same name again is a no-op
	rr = ts.request(http.MethodPost, "/api/v1/roster/add", map[string]string{"mode": "automatic", "name": "Bob"}, token)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &added))
	assert.False(t, added.Added)

	resp := ts.roster(t)
	require.Len(t, resp.Main, 2)
	assert.Equal(t, string(model.StatusConnected), resp.Main[1].Status)
}

func TestAddValidation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)
	ts.openRoster(t, token, "Alice")

	rr := ts.request(http.MethodPost, "/api/v1/roster/add", map[string]string{"mode": "sideways"}, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidAddMode, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/roster/add", map[string]string{"mode": "automatic"}, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeEntryNameMissing, errorCode(t, rr))
}

func TestManualAddRunsInBackground(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)
	ts.openRoster(t, token, "Alice")

	rr := ts.request(http.MethodPost, "/api/v1/roster/add", map[string]string{"mode": "manual"}, token)
	require.Equal(t, http.StatusAccepted, rr.Code)

	ts.say(t, token, "Bob\nCarol")
	ts.say(t, token, "fin")

	assert.Eventually(t, func() bool {
		return ts.app.RosterController.Has("Carol")
	}, time.Second, 5*time.Millisecond)
}

func TestSetCapacity(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	rr := ts.request(http.MethodPut, "/api/v1/roster/capacity", map[string]int{"capacity": 5}, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 5, ts.roster(t).Capacity)

	rr = ts.request(http.MethodPut, "/api/v1/roster/capacity", map[string]int{"capacity": 0}, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidCapacity, errorCode(t, rr))

	// Capacity is fixed while a roster is open
	ts.openRoster(t, token, "Alice")
	rr = ts.request(http.MethodPut, "/api/v1/roster/capacity", map[string]int{"capacity": 3}, token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeRosterOpen, errorCode(t, rr))
}

func TestInputValidation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	rr := ts.request(http.MethodPost, "/api/v1/input", map[string]string{"text": "   "}, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Nobody is waiting, so nothing is delivered
	rr = ts.request(http.MethodPost, "/api/v1/input", map[string]string{"text": "Alice"}, token)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp response.InputResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Zero(t, resp.Delivered)
}

func TestPresenceUpdates(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	rr := ts.request(http.MethodPost, "/api/v1/presence", map[string]any{"name": "Alice", "channel_id": "main", "present": true}, token)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/presence", map[string]any{"name": "Bob", "present": true}, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/presence", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp response.Presence
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Alice"}, resp.Present)

	rr = ts.request(http.MethodPost, "/api/v1/presence", map[string]any{"name": "Alice", "present": false}, token)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/presence", nil, token)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Empty(t, resp.Present)
}

func TestBoardShowsRoster(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)
	ts.openRoster(t, token, "Alice")

	rr := ts.request(http.MethodGet, "/api/v1/board/roster", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp response.Board
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "roster", resp.Channel)
	assert.NotEmpty(t, resp.Messages)

	rr = ts.request(http.MethodGet, "/api/v1/board/roster?limit=1", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Messages, 1)

	rr = ts.request(http.MethodGet, "/api/v1/board/roster?limit=x", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/board/empty", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Empty(t, resp.Messages)
}

func TestEventsRequiresChannel(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/events", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEventsStreamsSnapshot(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)
	ts.openRoster(t, token, "Alice")

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?channel=roster", nil).WithContext(ctx)
	rr := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ts.handler.ServeHTTP(rr, req)
	}()

	assert.Eventually(t, func() bool {
		return ts.app.HubManager.GetHub("roster") != nil && ts.app.HubManager.GetHub("roster").ClientCount() == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "event: connected")
	assert.Contains(t, rr.Body.String(), "Alice")
}

func TestHistoryAndStatsAfterClose(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)
	ts.openRoster(t, token, "Alice\nBob\nCarol")

	ts.app.MockClock.Advance(ts.app.Config.AutoClose)
	require.False(t, ts.app.RosterController.IsOpen())

	rr := ts.request(http.MethodGet, "/api/v1/history", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var history response.History
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &history))
	require.Len(t, history.Sessions, 1)
	assert.Equal(t, int64(1), history.Sessions[0].Seq)
	assert.Len(t, history.Sessions[0].Main, 2)
	assert.Len(t, history.Sessions[0].Reserve, 1)

	rr = ts.request(http.MethodGet, "/api/v1/stats", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var stats response.Stats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalSessions)
	assert.Len(t, stats.Players, 3)

	rr = ts.request(http.MethodPost, "/api/v1/history/publish", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	var published response.Published
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &published))
	assert.Positive(t, published.Published)
	assert.NotEmpty(t, ts.app.Board.Messages("history", 0))

	rr = ts.request(http.MethodPost, "/api/v1/stats/publish", nil, token)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestParticipants(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	rr := ts.request(http.MethodPut, "/api/v1/participants/p9", map[string]any{
		"display_name": "Erin",
		"roles":        []string{"players"},
	}, token)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/participants", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp response.Participants
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Participants, 5)

	rr = ts.request(http.MethodPut, "/api/v1/participants/p9", map[string]any{}, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	ts.request(http.MethodGet, "/api/v1/health", nil, "")

	rr := ts.request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "rollcall_http_requests_total")
}
