package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/pribylovaa/go-weibo-monitor/internal/metrics"
	"github.com/pribylovaa/go-weibo-monitor/internal/models"
	"github.com/pribylovaa/go-weibo-monitor/internal/pkg/log"
	"github.com/pribylovaa/go-weibo-monitor/internal/pkg/redact"
	"github.com/pribylovaa/go-weibo-monitor/internal/storage"
)

// refreshKey — ключ singleflight: в процессе одновременно идёт не больше одного обновления.
const refreshKey = "refresh"

// maxErrorBody — сколько байт тела не-2xx ответа читается ради поля message.
const maxErrorBody = 64 << 10

// Do отправляет запрос к бэкенду от имени сессии.
//
// Поведение:
//   - при наличии access-токена добавляет Authorization: Bearer; без токена запрос уходит без заголовка;
//   - на 401 обновляет токены (одно обновление на всех конкурентных вызывающих) и повторяет запрос ровно один раз;
//     ответ повтора, в том числе повторный 401, возвращается как есть;
//   - если обновление не удалось — очищает сессию, публикует session_expired и возвращает ErrSessionExpired;
//   - сетевые ошибки оборачивают ErrTransport и никогда не приводят к обновлению токенов.
//
// Запрос вызывающего не изменяется: каждая попытка отправляет клон. Тело без GetBody уходит
// потоком; для повтора запоминается не больше replayLimit байт (иначе ErrBodyNotReplayable).
func (m *Manager) Do(req *http.Request) (*http.Response, error) {
	const op = "session.Do"

	ctx := req.Context()

	body := newRequestBody(req, m.replayLimit)
	defer body.close()

	access, err := m.accessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := m.attempt(op, req, body, access)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	drain(resp.Body)

	fresh, err := m.renew(ctx, access)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := body.rewind(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return m.attempt(op, req, body, fresh)
}

// attempt — одна отправка. Ошибка чтения тела вызывающего не считается сетевой.
func (m *Manager) attempt(op string, req *http.Request, body *requestBody, token string) (*http.Response, error) {
	resp, err := m.send(req, body, token)

	if rerr := body.readErr(); rerr != nil {
		if err == nil {
			drain(resp.Body)
		}
		return nil, fmt.Errorf("%s: read body: %w", op, rerr)
	}

	if err != nil {
		return nil, transportErr(op, err)
	}

	return resp, nil
}

// Refresh выпускает новую пару по refresh-токену и атомарно заменяет её в хранилище.
// При любой ошибке хранилище не меняется. На 401 не повторяется.
func (m *Manager) Refresh(ctx context.Context) error {
	const op = "session.Refresh"

	pair, err := m.store.Tokens(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.metrics.Refresh(metrics.RefreshNoToken)
			return fmt.Errorf("%s: %w", op, ErrNoSession)
		}

		m.metrics.Refresh(metrics.RefreshError)
		return fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.backend.URL(m.backend.Paths.Refresh), nil)
	if err != nil {
		m.metrics.Refresh(metrics.RefreshError)
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)

	resp, err := m.client.Do(req)
	if err != nil {
		m.metrics.Refresh(metrics.RefreshError)
		return transportErr(op, err)
	}
	defer drain(resp.Body)

	if !success(resp.StatusCode) {
		m.metrics.Refresh(metrics.RefreshRejected)
		return &AuthRejectedError{Op: op, Status: resp.StatusCode, Message: backendMessage(resp.Body, "token refresh failed")}
	}

	var fresh models.TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&fresh); err != nil || !fresh.Complete() {
		m.metrics.Refresh(metrics.RefreshError)
		return fmt.Errorf("%s: %w", op, ErrBadResponse)
	}

	if err := m.store.SaveTokens(ctx, fresh); err != nil {
		m.metrics.Refresh(metrics.RefreshError)
		return fmt.Errorf("%s: %w", op, err)
	}

	m.metrics.Refresh(metrics.RefreshOK)
	log.From(ctx).Debug("tokens_refreshed",
		slog.String("op", op),
		slog.String("access_token", redact.Token(fresh.AccessToken)),
	)

	return nil
}

// renew возвращает access-токен для повтора запроса, отправленного с токеном used.
//
// Если пару уже обновил конкурентный вызывающий, возвращает текущий токен без нового обновления.
// Само обновление выполняется одно на всех ожидающих и не зависит от отмены контекста
// отдельного вызывающего; каждый ожидающий при этом соблюдает свой ctx.
func (m *Manager) renew(ctx context.Context, used string) (string, error) {
	if token, done, err := m.rotated(ctx, used); done {
		return token, err
	}

	ch := m.refreshes.DoChan(refreshKey, func() (any, error) {
		shared := context.WithoutCancel(ctx)

		// Предыдущее обновление могло завершиться между проверкой выше и входом сюда.
		if token, done, err := m.rotated(shared, used); done {
			return token, err
		}

		if err := m.Refresh(shared); err != nil {
			m.expire(shared, err)
			return "", ErrSessionExpired
		}

		pair, err := m.store.Tokens(shared)
		if err != nil {
			return "", err
		}

		return pair.AccessToken, nil
	})

	select {
	case <-ctx.Done():
		return "", transportErr("session.renew", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}

		return res.Val.(string), nil
	}
}

// rotated сообщает, что обновлять уже не нужно: в хранилище токен новее used
// либо сессию уже завершил конкурентный вызывающий.
func (m *Manager) rotated(ctx context.Context, used string) (string, bool, error) {
	cur, err := m.store.Tokens(ctx)
	switch {
	case err == nil && cur.AccessToken != used:
		return cur.AccessToken, true, nil
	case errors.Is(err, storage.ErrNotFound) && used != "":
		return "", true, ErrSessionExpired
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return "", true, err
	}

	return "", false, nil
}

// expire очищает учётные данные сессии (запомненное имя пользователя сохраняется)
// и публикует session_expired.
func (m *Manager) expire(ctx context.Context, cause error) {
	const op = "session.expire"

	l := log.From(ctx)
	if err := m.store.ClearSession(ctx); err != nil {
		l.Error("session_clear_failed", slog.String("op", op), slog.String("err", err.Error()))
	}

	m.metrics.Expired()
	l.Info("session_expired", slog.String("op", op), slog.String("cause", cause.Error()))
	m.emit(ctx, KindSessionExpired, "")
}

func (m *Manager) accessToken(ctx context.Context) (string, error) {
	pair, err := m.store.Tokens(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil
		}

		return "", err
	}

	return pair.AccessToken, nil
}

// send отправляет клон req с токеном token (пустой — без Authorization).
func (m *Manager) send(req *http.Request, body *requestBody, token string) (*http.Response, error) {
	out := req.Clone(req.Context())

	if err := body.attach(out); err != nil {
		return nil, err
	}

	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}

	return m.client.Do(out)
}

func transportErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
}

func success(code int) bool { return code >= 200 && code < 300 }

// backendMessage достаёт поле message из тела ошибки бэкенда.
func backendMessage(body io.Reader, fallback string) string {
	var msg models.MessageResponse
	if err := json.NewDecoder(io.LimitReader(body, maxErrorBody)).Decode(&msg); err != nil || msg.Message == "" {
		return fallback
	}

	return msg.Message
}

func drain(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, maxErrorBody))
	_ = rc.Close()
}
