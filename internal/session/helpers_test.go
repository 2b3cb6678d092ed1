package session

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/pribylovaa/go-weibo-monitor/internal/backendtest"
	"github.com/pribylovaa/go-weibo-monitor/internal/config"
	"github.com/pribylovaa/go-weibo-monitor/internal/models"
	"github.com/pribylovaa/go-weibo-monitor/internal/storage"
	"github.com/pribylovaa/go-weibo-monitor/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

const (
	testUser     = "alice"
	testEmail    = "alice@example.com"
	testPassword = "secret1"
)

func testPaths() config.PathsConfig {
	return config.PathsConfig{
		Login:          "/auth/login",
		Register:       "/auth/register",
		Refresh:        "/auth/refresh",
		Check:          "/auth/check",
		Logout:         "/api/logout",
		User:           "/api/user",
		ChangePassword: "/api/change_password",
	}
}

func testCfg(baseURL string) config.Config {
	return config.Config{
		Backend:  config.BackendConfig{BaseURL: baseURL, Paths: testPaths()},
		Timeouts: config.TimeoutConfig{Auth: 5 * time.Second},
	}
}

type fixture struct {
	m       *Manager
	backend *backendtest.Backend
	store   *memory.Store
	url     string
}

// newFixture — Manager поверх поддельного бэкенда с одним пользователем и хранилища в памяти.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	b, srv := backendtest.NewServer(t)
	require.NoError(t, b.AddUser(testUser, testEmail, testPassword))

	st := memory.New("test")

	return &fixture{
		m:       New(st, srv.Client(), testCfg(srv.URL)),
		backend: b,
		store:   st,
		url:     srv.URL,
	}
}

func (f *fixture) login(t *testing.T, remember bool) models.TokenPair {
	t.Helper()

	_, err := f.m.Login(context.Background(), testUser, testPassword, remember)
	require.NoError(t, err)

	return f.tokens(t)
}

func (f *fixture) tokens(t *testing.T) models.TokenPair {
	t.Helper()

	pair, err := f.store.Tokens(context.Background())
	require.NoError(t, err)

	return pair
}

func (f *fixture) requireNoTokens(t *testing.T) {
	t.Helper()

	_, err := f.store.Tokens(context.Background())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func (f *fixture) request(t *testing.T, method, path, body string) *http.Request {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, f.url+path, rd)
	require.NoError(t, err)

	return req
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return string(b)
}

func nextEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()

	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}
