package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-weibo-monitor/internal/storage/memory"
	"github.com/pribylovaa/go-weibo-monitor/mocks"
)

type doResult struct {
	resp *http.Response
	err  error
}

func TestDo_StreamsBodyBeforeItEnds(t *testing.T) {
	t.Parallel()

	received := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(received)
		b, _ := io.ReadAll(r.Body)
		_, _ = w.Write(b)
	}))
	t.Cleanup(srv.Close)

	m := New(memory.New("stream"), srv.Client(), testCfg(srv.URL))

	pr, pw := io.Pipe()
	written := make(chan struct{})
	go func() {
		defer close(written)
		_, _ = pw.Write([]byte("chunk1"))
	}()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/upload", pr)
	require.NoError(t, err)

	done := make(chan doResult, 1)
	go func() {
		resp, err := m.Do(req)
		done <- doResult{resp, err}
	}()

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("backend got nothing while the request body was still open")
	}

	select {
	case <-written:
	case <-time.After(2 * time.Second):
		t.Fatal("first chunk was not consumed")
	}
	require.NoError(t, pw.Close())

	select {
	case res := <-done:
		require.NoError(t, res.err)
		require.Equal(t, http.StatusOK, res.resp.StatusCode)
		require.Equal(t, "chunk1", readBody(t, res.resp))
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after the body was closed")
	}
}

func TestDo_StreamedBodyReplayedAfterRefresh(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.login(t, false)
	f.backend.ExpireAccessTokens()

	const payload = `{"keyword":"weibo","limit":50}`

	pr, pw := io.Pipe()
	go func() {
		_, _ = pw.Write([]byte(payload))
		_ = pw.Close()
	}()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, f.url+"/api/items", pr)
	require.NoError(t, err)
	require.Nil(t, req.GetBody)

	resp, err := f.m.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var echo map[string]string
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &echo))
	require.Equal(t, payload, echo["body"])
	require.Equal(t, 1, f.backend.Calls("/auth/refresh"))
}

func TestDo_BodyOverReplayLimit_RefreshesButNotResent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.m.replayLimit = 8
	before := f.login(t, false)
	f.backend.ExpireAccessTokens()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, f.url+"/api/items",
		io.NopCloser(strings.NewReader(`{"keyword":"longer than eight bytes"}`)))
	require.NoError(t, err)

	_, err = f.m.Do(req)
	require.ErrorIs(t, err, ErrBodyNotReplayable)
	require.NotErrorIs(t, err, ErrSessionExpired)

	// Сессия жива: пара обновлена, повтор вызывающего пройдёт с новым токеном.
	require.Equal(t, 1, f.backend.Calls("/auth/refresh"))
	after := f.tokens(t)
	require.NotEqual(t, before, after)
	require.Equal(t, 1, f.backend.Calls("/api/items"))
}

func TestDo_BodyReadError_IsNotTransport(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.login(t, false)

	body := http.MaxBytesReader(nil, io.NopCloser(strings.NewReader(strings.Repeat("x", 64))), 16)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, f.url+"/api/items", body)
	require.NoError(t, err)

	_, err = f.m.Do(req)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrTransport)

	var tooLarge *http.MaxBytesError
	require.True(t, errors.As(err, &tooLarge))
	require.EqualValues(t, 16, tooLarge.Limit)

	require.Zero(t, f.backend.Calls("/auth/refresh"))
}

func TestDo_TokenRotatedBeforeFlight_NoSecondRefresh(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	stale := f.login(t, false)
	f.backend.ExpireAccessTokens()
	require.NoError(t, f.m.Refresh(context.Background()))
	fresh := f.tokens(t)
	require.Equal(t, 1, f.backend.Calls("/auth/refresh"))

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Первые чтения видят старую пару; к входу в обновление пара уже заменена другим вызывающим.
	st := mocks.NewMockStore(ctrl)
	gomock.InOrder(
		st.EXPECT().Tokens(gomock.Any()).Return(stale, nil),
		st.EXPECT().Tokens(gomock.Any()).Return(stale, nil),
		st.EXPECT().Tokens(gomock.Any()).Return(fresh, nil),
	)

	m := New(st, http.DefaultClient, testCfg(f.url))

	resp, err := m.Do(f.request(t, http.MethodGet, "/api/data", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = readBody(t, resp)

	require.Equal(t, "Bearer "+fresh.AccessToken, f.backend.LastHeader("/api/data", "Authorization"))
	require.Equal(t, 1, f.backend.Calls("/auth/refresh"))
}
