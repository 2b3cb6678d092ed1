// session содержит сессионный слой дашборда: хранение пары токенов, прозрачное
// обновление access-токена на 401 и операции входа/регистрации/выхода.
//
// Основные аспекты:
//   - Manager безопасен для конкурентного использования из разных горутин при условии,
//     что переданное хранилище (storage.Store) потокобезопасно;
//   - одновременные 401 разделяют одно обновление токенов (singleflight);
//   - ошибки возвращаются значениями и далее маппятся транспортом BFF на HTTP-коды
//     (см. internal/errors).
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pribylovaa/go-weibo-monitor/internal/config"
	"github.com/pribylovaa/go-weibo-monitor/internal/metrics"
	"github.com/pribylovaa/go-weibo-monitor/internal/storage"
)

var (
	// ErrSessionExpired — обновление токенов не удалось, локальное состояние сессии очищено.
	// Терминальная ошибка: пользователь должен войти заново (HTTP 401 + redirect).
	ErrSessionExpired = errors.New("session expired, please log in again")

	// ErrTransport — сетевая ошибка или таймаут. Никогда не означает отказ в учётных данных.
	// Транспорт: HTTP 502/504.
	ErrTransport = errors.New("request failed, please retry later")

	// ErrBadResponse — 2xx с телом, которое не удалось разобрать или в котором нет обязательных полей.
	ErrBadResponse = errors.New("unexpected backend response")

	// ErrBodyNotReplayable — токены обновлены, но тело запроса слишком велико для повторной отправки.
	// Повтор того же запроса вызывающим пройдёт уже с новым токеном.
	ErrBodyNotReplayable = errors.New("request body too large to resend after session refresh, please retry")

	// ErrNoSession — нет сохранённой пары токенов (обновлять нечего).
	ErrNoSession = errors.New("no active session")
)

// AuthRejectedError — бэкенд ответил не-2xx.
// Message — сообщение бэкенда либо запасной текст операции.
type AuthRejectedError struct {
	Op      string
	Status  int
	Message string
}

func (e *AuthRejectedError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Status)
}

// Manager — сессия дашборда поверх хранилища учётных данных и HTTP-клиента бэкенда.
type Manager struct {
	store       storage.Store
	client      *http.Client
	backend     config.BackendConfig
	authTimeout time.Duration
	replayLimit int

	refreshes singleflight.Group
	events    broker
	metrics   *metrics.Metrics // может быть nil
}

// New создаёт Manager. client — клиент бэкенда (см. internal/clients).
func New(store storage.Store, client *http.Client, cfg config.Config) *Manager {
	if client == nil {
		client = http.DefaultClient
	}

	return &Manager{
		store:       store,
		client:      client,
		backend:     cfg.Backend,
		authTimeout: cfg.Timeouts.Auth,
		replayLimit: maxReplayBody,
		events:      broker{subs: make(map[int]chan Event)},
	}
}

// SetMetrics устанавливает метрики (опционально).
func (m *Manager) SetMetrics(mt *metrics.Metrics) {
	m.metrics = mt
}
