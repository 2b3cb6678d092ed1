package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-weibo-monitor/internal/backendtest"
	"github.com/pribylovaa/go-weibo-monitor/internal/config"
	apierrors "github.com/pribylovaa/go-weibo-monitor/internal/errors"
	"github.com/pribylovaa/go-weibo-monitor/internal/models"
	"github.com/pribylovaa/go-weibo-monitor/internal/session"
	"github.com/pribylovaa/go-weibo-monitor/internal/storage/memory"
)

type env struct {
	backend *backendtest.Backend
	sm      *session.Manager
	srv     *httptest.Server
}

// newEnv — BFF (NewRouter) поверх поддельного бэкенда с пользователем alice.
func newEnv(t *testing.T) *env {
	t.Helper()

	return newEnvWith(t, Options{Timeout: 5 * time.Second})
}

func newEnvWith(t *testing.T, opts Options) *env {
	t.Helper()

	b, upstream := backendtest.NewServer(t)
	require.NoError(t, b.AddUser("alice", "alice@example.com", "secret1"))

	cfg := config.Config{
		Backend: config.BackendConfig{
			BaseURL: upstream.URL,
			Paths: config.PathsConfig{
				Login:          "/auth/login",
				Register:       "/auth/register",
				Refresh:        "/auth/refresh",
				Check:          "/auth/check",
				Logout:         "/api/logout",
				User:           "/api/user",
				ChangePassword: "/api/change_password",
			},
		},
		Timeouts: config.TimeoutConfig{Auth: 5 * time.Second},
	}

	sm := session.New(memory.New("router"), upstream.Client(), cfg)
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewRouter(sm, cfg.Backend, opts)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return &env{backend: b, sm: sm, srv: srv}
}

func (e *env) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, raw
}

func (e *env) login(t *testing.T) {
	t.Helper()

	resp, _ := e.do(t, http.MethodPost, "/session/login", `{"username":"alice","password":"secret1","remember_me":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func decodeError(t *testing.T, raw []byte) apierrors.APIError {
	t.Helper()

	var out apierrors.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &out))

	return out.Error
}

func TestRouter_LoginStateLogout(t *testing.T) {
	e := newEnv(t)

	resp, raw := e.do(t, http.MethodPost, "/session/login", `{"username":"alice","password":"secret1","remember_me":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var res models.LoginResult
	require.NoError(t, json.Unmarshal(raw, &res))
	require.True(t, res.Remembered)
	require.NotNil(t, res.User)
	require.Equal(t, "alice", res.User.Username)

	resp, raw = e.do(t, http.MethodGet, "/session/state", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st models.StateResponse
	require.NoError(t, json.Unmarshal(raw, &st))
	require.True(t, st.Authenticated)
	require.Equal(t, "alice", st.RememberedUsername)
	require.NotNil(t, st.User)

	resp, raw = e.do(t, http.MethodGet, "/session/check", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"authenticated":true}`, string(raw))

	resp, _ = e.do(t, http.MethodPost, "/session/logout", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, raw = e.do(t, http.MethodGet, "/session/state", "")
	st = models.StateResponse{}
	require.NoError(t, json.Unmarshal(raw, &st))
	require.False(t, st.Authenticated)
	require.Equal(t, "alice", st.RememberedUsername)
	require.Nil(t, st.User)
}

func TestRouter_LoginValidation(t *testing.T) {
	e := newEnv(t)

	resp, raw := e.do(t, http.MethodPost, "/session/login", `{"username":"  ","password":"secret1"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	apiErr := decodeError(t, raw)
	require.Equal(t, "invalid_argument", apiErr.Code)
	require.Equal(t, 0, e.backend.Calls("/auth/login"))
}

func TestRouter_InvalidBody(t *testing.T) {
	e := newEnv(t)

	resp, raw := e.do(t, http.MethodPost, "/session/login", `{"username":"alice","unknown":1}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	apiErr := decodeError(t, raw)
	require.Equal(t, "invalid_argument", apiErr.Code)
	require.Len(t, apiErr.Violations, 1)
	require.Equal(t, "body", apiErr.Violations[0].Field)
}

func TestRouter_LoginRejected(t *testing.T) {
	e := newEnv(t)

	resp, raw := e.do(t, http.MethodPost, "/session/login", `{"username":"alice","password":"wrong-pass"}`)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	apiErr := decodeError(t, raw)
	require.Equal(t, "invalid username or password", apiErr.Message)
}

func TestRouter_Register(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.do(t, http.MethodPost, "/session/register",
		`{"username":"bob","email":"bob@example.com","password":"secret2","confirm_password":"secret2"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, raw := e.do(t, http.MethodPost, "/session/register",
		`{"username":"bob","email":"bob@example.com","password":"secret2","confirm_password":"other"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "passwords do not match", decodeError(t, raw).Message)
}

func TestRouter_UserAndPassword(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	resp, raw := e.do(t, http.MethodGet, "/session/user", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var u models.User
	require.NoError(t, json.Unmarshal(raw, &u))
	require.Equal(t, "alice@example.com", u.Email)

	resp, _ = e.do(t, http.MethodPost, "/session/password", `{"username":"alice","new_password":"newpass1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, e.backend.PasswordMatches("alice", "newpass1"))
}

func TestRouter_UserWithoutSession(t *testing.T) {
	e := newEnv(t)

	resp, raw := e.do(t, http.MethodGet, "/session/user", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, apierrors.LoginPath, decodeError(t, raw).Redirect)
}

func TestRouter_ProxyForwardsWithSessionToken(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/api/keywords?limit=5", strings.NewReader(`{"k":"v"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer forged")
	req.Header.Set("X-Custom", "yes")

	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var echo map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&echo))
	require.Equal(t, "POST", echo["method"])
	require.Equal(t, "/api/keywords", echo["path"])
	require.Equal(t, "limit=5", echo["query"])
	require.Equal(t, `{"k":"v"}`, echo["body"])
	require.Equal(t, "alice", echo["username"])

	require.NotEqual(t, "Bearer forged", e.backend.LastHeader("/api/keywords", "Authorization"))
	require.Equal(t, "yes", e.backend.LastHeader("/api/keywords", "X-Custom"))
}

func TestRouter_ProxyRefreshesExpiredToken(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	e.backend.ExpireAccessTokens()

	resp, _ := e.do(t, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, e.backend.Calls("/auth/refresh"))
}

func TestRouter_ProxySessionExpired(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	e.backend.ExpireAccessTokens()
	e.backend.SetFailRefresh(true)

	resp, raw := e.do(t, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	apiErr := decodeError(t, raw)
	require.Equal(t, "session_expired", apiErr.Code)
	require.Equal(t, apierrors.LoginPath, apiErr.Redirect)
	require.False(t, e.sm.Authenticated(t.Context()))
}

func TestRouter_EventsStream(t *testing.T) {
	e := newEnv(t)

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/session/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	// Подписка регистрируется после апгрейда: повторяем логин, пока не придёт событие.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	got := make(chan session.Event, 1)
	go func() {
		var ev session.Event
		if err := conn.ReadJSON(&ev); err == nil {
			got <- ev
		}
		close(got)
	}()

	deadline := time.After(3 * time.Second)
	for {
		e.login(t)

		select {
		case ev, ok := <-got:
			require.True(t, ok, "stream closed without event")
			require.Equal(t, session.KindLoggedIn, ev.Kind)
			require.Equal(t, "alice", ev.Username)
			return
		case <-deadline:
			t.Fatal("no event received")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestRouter_EventsRejectsForeignOrigin(t *testing.T) {
	e := newEnv(t)

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/session/events"
	hdr := http.Header{"Origin": []string{"http://evil.example"}}

	_, resp, err := websocket.DefaultDialer.Dial(url, hdr)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRouter_ProxyKeepsEscapedPath(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	resp, raw := e.do(t, http.MethodGet, "/api/files/reports%2F2024%3Fq", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var echo map[string]string
	require.NoError(t, json.Unmarshal(raw, &echo))
	require.Equal(t, "/api/files/reports%2F2024%3Fq", echo["raw_path"])
	require.Empty(t, echo["query"])
}

func TestRouter_ProxyBodyOverLimit(t *testing.T) {
	e := newEnvWith(t, Options{Timeout: 5 * time.Second, MaxBodyBytes: 16})
	e.login(t)

	resp, raw := e.do(t, http.MethodPost, "/api/items", `{"keyword":"`+strings.Repeat("w", 64)+`"}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	require.Equal(t, "payload_too_large", decodeError(t, raw).Code)
	require.True(t, e.sm.Authenticated(t.Context()))

	resp, _ = e.do(t, http.MethodPost, "/api/items", `{"k":"v"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
