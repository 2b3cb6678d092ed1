package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/pribylovaa/go-weibo-monitor/internal/models"
	"github.com/pribylovaa/go-weibo-monitor/internal/pkg/log"
	"github.com/pribylovaa/go-weibo-monitor/internal/pkg/redact"
	"github.com/pribylovaa/go-weibo-monitor/internal/storage"
)

// Login выполняет вход и сохраняет пару токенов.
//
// Ввод проверяется до сетевого вызова. Запрос ограничен таймаутом timeouts.auth;
// таймаут и сетевые ошибки возвращаются как ErrTransport.
// С rememberMe имя пользователя запоминается, без него — забывается.
func (m *Manager) Login(ctx context.Context, username, password string, rememberMe bool) (*models.LoginResult, error) {
	const op = "session.Login"

	if err := validateLogin(username, password); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.authTimeout)
	defer cancel()

	var out models.LoginResponse
	err := m.postJSON(ctx, op, m.backend.Paths.Login, models.LoginRequest{
		Username:   username,
		Password:   password,
		RememberMe: rememberMe,
	}, "login failed", &out)
	if err != nil {
		return nil, err
	}

	pair := out.Pair()
	if !pair.Complete() {
		return nil, fmt.Errorf("%s: %w", op, ErrBadResponse)
	}

	user, err := models.UserFromJSON(out.User)
	if err != nil {
		return nil, fmt.Errorf("%s: user: %w", op, ErrBadResponse)
	}

	// Сохранение не зависит от дедлайна запроса: ответ уже получен.
	sctx := context.WithoutCancel(ctx)

	if err := m.store.SaveTokens(sctx, pair); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if user != nil {
		err = m.store.SaveUser(sctx, out.User)
	} else {
		err = m.store.ClearUser(sctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if rememberMe {
		err = m.store.SaveUsername(sctx, username)
	} else {
		err = m.store.ClearUsername(sctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("logged_in",
		slog.String("op", op),
		slog.String("username", redact.Username(username)),
		slog.Bool("remember_me", rememberMe),
	)
	m.emit(ctx, KindLoggedIn, username)

	return &models.LoginResult{User: user, Remembered: rememberMe}, nil
}

// Register регистрирует пользователя. Вход не выполняется: результат просит
// показать форму входа.
func (m *Manager) Register(ctx context.Context, in models.RegisterInput) (*models.Ack, error) {
	const op = "session.Register"

	if err := validateRegister(in); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.authTimeout)
	defer cancel()

	var out models.MessageResponse
	err := m.postJSON(ctx, op, m.backend.Paths.Register, models.RegisterRequest{
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
	}, "registration failed", &out)
	if err != nil {
		return nil, err
	}

	log.From(ctx).Info("registered",
		slog.String("op", op),
		slog.String("username", redact.Username(in.Username)),
		slog.String("email", redact.Email(in.Email)),
	)

	return &models.Ack{Message: out.Message, ShowLogin: true}, nil
}

// Logout завершает сессию на бэкенде (через Do) и затем очищает локальное состояние
// независимо от исхода вызова. Запомненное имя пользователя сохраняется.
func (m *Manager) Logout(ctx context.Context) (*models.Ack, error) {
	const op = "session.Logout"

	defer func() {
		cctx := context.WithoutCancel(ctx)
		if err := m.store.ClearSession(cctx); err != nil {
			log.From(ctx).Error("session_clear_failed", slog.String("op", op), slog.String("err", err.Error()))
		}
		m.emit(cctx, KindLoggedOut, "")
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.backend.URL(m.backend.Paths.Logout), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := m.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer drain(resp.Body)

	if !success(resp.StatusCode) {
		return nil, &AuthRejectedError{Op: op, Status: resp.StatusCode, Message: backendMessage(resp.Body, "logout failed")}
	}

	log.From(ctx).Info("logged_out", slog.String("op", op))

	return &models.Ack{Message: backendMessage(resp.Body, "")}, nil
}

// CheckAuthenticated проверяет сессию на бэкенде. Без access-токена сразу возвращает false.
// Ошибки логируются и дают false.
func (m *Manager) CheckAuthenticated(ctx context.Context) bool {
	const op = "session.CheckAuthenticated"

	if !m.Authenticated(ctx) {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.backend.URL(m.backend.Paths.Check), nil)
	if err != nil {
		log.From(ctx).Error("auth_check_failed", slog.String("op", op), slog.String("err", err.Error()))
		return false
	}

	resp, err := m.Do(req)
	if err != nil {
		log.From(ctx).Warn("auth_check_failed", slog.String("op", op), slog.String("err", err.Error()))
		return false
	}
	defer drain(resp.Body)

	return success(resp.StatusCode)
}

// CurrentUser загружает профиль текущего пользователя и сохраняет его.
func (m *Manager) CurrentUser(ctx context.Context) (*models.User, error) {
	const op = "session.CurrentUser"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.backend.URL(m.backend.Paths.User), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := m.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer drain(resp.Body)

	if !success(resp.StatusCode) {
		return nil, &AuthRejectedError{Op: op, Status: resp.StatusCode, Message: backendMessage(resp.Body, "failed to load user")}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportErr(op, err)
	}

	user, err := models.UserFromJSON(raw)
	if err != nil || user == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrBadResponse)
	}

	if err := m.store.SaveUser(ctx, raw); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// ChangePassword меняет пароль пользователя username.
func (m *Manager) ChangePassword(ctx context.Context, username, newPassword string) (*models.Ack, error) {
	const op = "session.ChangePassword"

	if err := validateChangePassword(username, newPassword); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	payload, err := json.Marshal(models.ChangePasswordRequest{Username: username, NewPassword: newPassword})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.backend.URL(m.backend.Paths.ChangePassword), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer drain(resp.Body)

	if !success(resp.StatusCode) {
		return nil, &AuthRejectedError{Op: op, Status: resp.StatusCode, Message: backendMessage(resp.Body, "password change failed")}
	}

	log.From(ctx).Info("password_changed", slog.String("op", op), slog.String("username", redact.Username(username)))

	return &models.Ack{Message: backendMessage(resp.Body, "")}, nil
}

// Authenticated — производное состояние: в хранилище есть пара токенов.
func (m *Manager) Authenticated(ctx context.Context) bool {
	_, err := m.store.Tokens(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.From(ctx).Error("tokens_read_failed", slog.String("op", "session.Authenticated"), slog.String("err", err.Error()))
	}

	return err == nil
}

// RememberedUsername возвращает запомненное имя пользователя или "".
func (m *Manager) RememberedUsername(ctx context.Context) string {
	name, err := m.store.Username(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.From(ctx).Error("username_read_failed", slog.String("op", "session.RememberedUsername"), slog.String("err", err.Error()))
		}
		return ""
	}

	return name
}

// StoredUser возвращает сохранённый профиль; (nil, nil), если его нет.
func (m *Manager) StoredUser(ctx context.Context) (*models.User, error) {
	const op = "session.StoredUser"

	raw, err := m.store.User(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := models.UserFromJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// postJSON — неаутентифицированный POST (login/register). out может быть nil;
// пустое тело успешного ответа допустимо.
func (m *Manager) postJSON(ctx context.Context, op, path string, in any, fallback string, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.backend.URL(path), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return transportErr(op, err)
	}
	defer drain(resp.Body)

	if !success(resp.StatusCode) {
		return &AuthRejectedError{Op: op, Status: resp.StatusCode, Message: backendMessage(resp.Body, fallback)}
	}

	if out == nil {
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportErr(op, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: %w", op, ErrBadResponse)
	}

	return nil
}
