package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionguard/core/analytics"
	"github.com/dmitrymomot/sessionguard/core/logger"
	"github.com/dmitrymomot/sessionguard/core/retention"
	"github.com/dmitrymomot/sessionguard/core/session"
	"github.com/dmitrymomot/sessionguard/core/session/memstore"
	"github.com/dmitrymomot/sessionguard/httpapi"
	"github.com/dmitrymomot/sessionguard/middleware"
	"github.com/dmitrymomot/sessionguard/pkg/broadcast"
	"github.com/dmitrymomot/sessionguard/pkg/jwt"
)

const operatorKey = "operator-signing-key-0123456789abcdef"

type fixture struct {
	api     *httpapi.Server
	manager *session.Manager
	notices *broadcast.MemoryBroadcaster[session.Notice]
	tokens  *jwt.Service
	token   string
}

func newFixture(t *testing.T, opts ...httpapi.Option) *fixture {
	t.Helper()
	store := memstore.New()
	notices := broadcast.NewMemoryBroadcaster[session.Notice](16)
	t.Cleanup(func() { _ = notices.Close() })

	mgr := session.NewManager(store, session.WithBroadcaster(notices))
	sweeper, err := retention.New(store)
	require.NoError(t, err)

	tokens, err := jwt.NewFromString(operatorKey)
	require.NoError(t, err)
	token, err := tokens.Issue("ops@example.com", time.Hour)
	require.NoError(t, err)

	opts = append([]httpapi.Option{
		httpapi.WithPurger(sweeper),
		httpapi.WithSummarizer(analytics.New(store)),
		httpapi.WithNotices(notices),
		httpapi.WithOperatorAuth(middleware.JWTWithConfig(middleware.JWTConfig{Service: tokens})),
	}, opts...)
	return &fixture{
		api:     httpapi.New(mgr, opts...),
		manager: mgr,
		notices: notices,
		tokens:  tokens,
		token:   token,
	}
}

func (f *fixture) bearer() http.Header {
	return http.Header{"Authorization": {"Bearer " + f.token}}
}

func (f *fixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.RemoteAddr = "10.0.0.5:40000"
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Authorization", "Bearer "+f.token)
	w := httptest.NewRecorder()
	f.api.ServeHTTP(w, req)
	return w
}

func (f *fixture) create(t *testing.T, username string) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/sessions", map[string]string{"username": username})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.SessionID
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestCreate(t *testing.T) {
	t.Parallel()

	t.Run("sets cookie", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		w := f.do(t, http.MethodPost, "/sessions", map[string]string{"username": "alice"})

		require.Equal(t, http.StatusCreated, w.Code)
		resp := decode[map[string]any](t, w)
		assert.Len(t, resp["session_id"], 64)
		assert.EqualValues(t, 0, resp["risk_score"])

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "sid", cookies[0].Name)
		assert.Equal(t, resp["session_id"], cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)
	})

	t.Run("ip override from body", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		w := f.do(t, http.MethodPost, "/sessions", map[string]string{
			"username":   "bob",
			"role":       "admin",
			"ip_address": "203.0.113.9",
		})
		require.Equal(t, http.StatusCreated, w.Code)
		resp := decode[map[string]any](t, w)
		assert.EqualValues(t, 25, resp["risk_score"])
	})

	t.Run("missing username", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		w := f.do(t, http.MethodPost, "/sessions", map[string]string{"role": "admin"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", decode[map[string]any](t, w)["code"])
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader("{"))
		req.Header.Set("Authorization", "Bearer "+f.token)
		w := httptest.NewRecorder()
		f.api.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("same signals", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := f.create(t, "alice")

		w := f.do(t, http.MethodPost, "/sessions/"+id+"/validate", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[map[string]any](t, w)
		assert.Equal(t, true, resp["valid"])
		status := resp["security_status"].(map[string]any)
		assert.Empty(t, status["events"])
	})

	t.Run("ip drift raises event", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := f.create(t, "alice")

		w := f.do(t, http.MethodPost, "/sessions/"+id+"/validate", map[string]string{"ip_address": "10.0.0.99"})
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[map[string]any](t, w)
		assert.Equal(t, true, resp["valid"])
		events := resp["security_status"].(map[string]any)["events"].([]any)
		require.Len(t, events, 1)
		assert.Equal(t, "ip_change", events[0].(map[string]any)["type"])
		assert.EqualValues(t, 15, resp["session"].(map[string]any)["risk_score"])
	})

	t.Run("unknown session", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		w := f.do(t, http.MethodPost, "/sessions/nope/validate", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[map[string]any](t, w)
		assert.Equal(t, false, resp["valid"])
		assert.Equal(t, session.ReasonNotFound, resp["reason"])
		assert.NotContains(t, resp, "session")
	})
}

func TestTerminateAndDetails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.create(t, "alice")

	w := f.do(t, http.MethodGet, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[map[string]any](t, w)
	assert.Equal(t, "alice", view["username"])
	assert.Equal(t, "active", view["status"])

	w = f.do(t, http.MethodDelete, "/sessions/"+id+"?reason=logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "logout", decode[map[string]any](t, w)["reason"])

	w = f.do(t, http.MethodGet, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view = decode[map[string]any](t, w)
	assert.Equal(t, "logged_out", view["status"])
	assert.Equal(t, "logout", view["logoutReason"])

	w = f.do(t, http.MethodDelete, "/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, session.ReasonNotFound, decode[map[string]any](t, w)["message"])
}

func TestSelf(t *testing.T) {
	t.Parallel()

	f := newFixture(t, httpapi.WithLoginURL("/login"))
	id := f.create(t, "alice")

	selfRequest := func(method string, header http.Header) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/me", nil)
		req.RemoteAddr = "10.0.0.5:40000"
		req.Header.Set("User-Agent", "Mozilla/5.0")
		for k, v := range header {
			req.Header[k] = v
		}
		w := httptest.NewRecorder()
		f.api.ServeHTTP(w, req)
		return w
	}

	w := selfRequest(http.MethodGet, http.Header{"X-Session-Id": {id}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[map[string]any](t, w)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, id, body["session"].(map[string]any)["session_id"])

	w = selfRequest(http.MethodGet, http.Header{"Accept": {"text/html"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = selfRequest(http.MethodDelete, http.Header{"Cookie": {"sid=" + id}})
	require.Equal(t, http.StatusNoContent, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)

	view, err := f.manager.Details(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "logged_out", string(view.Status))

	w = selfRequest(http.MethodGet, http.Header{"X-Session-Id": {id}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAnalytics(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.create(t, "alice")
	f.create(t, "alice")
	f.create(t, "bob")

	w := f.do(t, http.MethodGet, "/analytics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[map[string]any](t, w)
	assert.EqualValues(t, 3, summary["totalSessions"])
	assert.EqualValues(t, 3, summary["activeSessions"])
	assert.EqualValues(t, 24, summary["timeframeHours"])
	assert.EqualValues(t, 2, summary["userSessions"].(map[string]any)["alice"])

	w = f.do(t, http.MethodGet, "/analytics?hours=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/analytics?hours=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPurge(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/maintenance/purge", nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[map[string]any](t, w)
	assert.EqualValues(t, 0, res["expiredUpdated"])
	assert.EqualValues(t, 0, res["deletedOld"])

	bare := httpapi.New(f.manager, httpapi.WithOperatorAuth(middleware.JWTWithConfig(middleware.JWTConfig{Service: f.tokens})))
	req := httptest.NewRequest(http.MethodPost, "/maintenance/purge", nil)
	req.Header.Set("Authorization", "Bearer "+f.token)
	rec := httptest.NewRecorder()
	bare.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, httpapi.WithHealthcheck("store", func(context.Context) error { return nil }))
		w := f.do(t, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", decode[map[string]any](t, w)["status"])
	})

	t.Run("liveness", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		w := f.do(t, http.MethodGet, "/livez", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("degraded", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, httpapi.WithHealthcheck("redis", func(context.Context) error {
			return errors.New("connection refused")
		}))
		w := f.do(t, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		resp := decode[map[string]any](t, w)
		assert.Equal(t, "connection refused", resp["checks"].(map[string]any)["redis"])
	})
}

func TestEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	srv := httptest.NewServer(f.api)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events?kind=session_terminated"
	conn, _, err := websocket.DefaultDialer.Dial(url, f.bearer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return f.notices.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx := context.Background()
	created, err := f.manager.Create(ctx, session.Identity{Username: "alice"}, session.RequestContext{ClientIP: "10.0.0.5"})
	require.NoError(t, err)
	ok, err := f.manager.Terminate(ctx, created.SessionID, session.ReasonLogout)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var notice session.Notice
	require.NoError(t, conn.ReadJSON(&notice))
	assert.Equal(t, session.NoticeTerminated, notice.Kind)
	assert.Equal(t, created.SessionID[:session.RefLength], notice.SessionRef)
	assert.NotEqual(t, created.SessionID, notice.SessionRef)
	assert.Equal(t, session.StatusLoggedOut, notice.Status)
}

func TestOperatorAuth(t *testing.T) {
	t.Parallel()

	anonymous := func(api http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, nil)
		req.RemoteAddr = "10.0.0.5:40000"
		for k, v := range header {
			req.Header[k] = v
		}
		w := httptest.NewRecorder()
		api.ServeHTTP(w, req)
		return w
	}

	t.Run("terminate without token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := f.create(t, "alice")

		w := anonymous(f.api, http.MethodDelete, "/sessions/"+id, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")

		view, err := f.manager.Details(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, session.StatusActive, view.Status)
	})

	t.Run("operator routes without token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := f.create(t, "alice")

		for _, tc := range []struct{ method, target string }{
			{http.MethodPost, "/sessions"},
			{http.MethodGet, "/sessions/" + id},
			{http.MethodPost, "/sessions/" + id + "/validate"},
			{http.MethodGet, "/analytics"},
			{http.MethodPost, "/maintenance/purge"},
			{http.MethodGet, "/events"},
		} {
			w := anonymous(f.api, tc.method, tc.target, nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code, tc.method+" "+tc.target)
		}
	})

	t.Run("token signed with another key", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		id := f.create(t, "alice")

		other, err := jwt.NewFromString("another-signing-key-0123456789abcdef")
		require.NoError(t, err)
		forged, err := other.Issue("mallory", time.Hour)
		require.NoError(t, err)

		w := anonymous(f.api, http.MethodDelete, "/sessions/"+id, http.Header{"Authorization": {"Bearer " + forged}})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("event stream without token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		srv := httptest.NewServer(f.api)
		t.Cleanup(srv.Close)

		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events?kind=session_created"
		conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
		if conn != nil {
			_ = conn.Close()
		}
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Zero(t, f.notices.Subscribers())
	})

	t.Run("not configured", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		bare := httpapi.New(f.manager)

		w := anonymous(bare, http.MethodDelete, "/sessions/abc", f.bearer())
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		w = anonymous(bare, http.MethodGet, "/livez", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestOperatorAudit(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithJSONFormatter(), logger.WithOutput(&buf))
	f := newFixture(t, httpapi.WithLogger(log))
	id := f.create(t, "alice")

	w := f.do(t, http.MethodDelete, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodPost, "/maintenance/purge", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var audits []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		if rec["msg"] == "operator action" {
			audits = append(audits, rec)
		}
	}
	require.Len(t, audits, 2)
	assert.Equal(t, "ops@example.com", audits[0]["operator"])
	assert.Equal(t, "terminate_session", audits[0]["action"])
	assert.Equal(t, "terminated", audits[0]["result"])
	assert.Equal(t, id[:12], audits[0]["session_id"])
	assert.Equal(t, "purge", audits[1]["action"])
	assert.Equal(t, "ok", audits[1]["result"])
}

func TestNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode[map[string]any](t, w)["code"])
}
