// storage содержит контракт хранилища учётных данных сессии.
//
// Хранилище — персистентный key-value, ограниченный «областью» (scope, аналог origin
// в браузере). Внутри области живут фиксированные ключи: access_token, refresh_token,
// username и user (JSON профиля).
//
// Инварианты, которые обязана соблюдать любая реализация:
//   - пара токенов записывается и удаляется атомарно — наблюдатель никогда не видит
//     только один токен;
//   - Tokens возвращает ErrNotFound, если отсутствует хотя бы один из токенов;
//   - ClearSession не трогает remembered username.
//
// Реализации должны быть безопасны для конкурентного использования.
package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/pribylovaa/go-weibo-monitor/internal/models"
)

// Фиксированные имена ключей внутри области.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUsername     = "username"
	KeyUser         = "user"
)

var (
	// ErrNotFound — значение по ключу отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPair — попытка сохранить неполную пару токенов.
	ErrInvalidPair = errors.New("incomplete token pair")
	// ErrNotMigrated — схема хранилища не создана (postgres).
	ErrNotMigrated = errors.New("storage schema is not migrated")
)

// Credentials — операции над парой токенов и профилем.
type Credentials interface {
	// Tokens возвращает текущую пару или ErrNotFound.
	Tokens(ctx context.Context) (models.TokenPair, error)
	// SaveTokens атомарно заменяет оба токена.
	SaveTokens(ctx context.Context, pair models.TokenPair) error
	// ClearSession удаляет access_token, refresh_token и user.
	ClearSession(ctx context.Context) error
	// User возвращает сохранённый JSON профиля или ErrNotFound.
	User(ctx context.Context) (json.RawMessage, error)
	// SaveUser сохраняет JSON профиля.
	SaveUser(ctx context.Context, raw json.RawMessage) error
	// ClearUser удаляет профиль.
	ClearUser(ctx context.Context) error
}

// Preferences — данные UX, не относящиеся к безопасности.
type Preferences interface {
	// Username возвращает запомненное имя пользователя или ErrNotFound.
	Username(ctx context.Context) (string, error)
	SaveUsername(ctx context.Context, username string) error
	ClearUsername(ctx context.Context) error
}

// Store задаёт контракт хранилища сессии.
type Store interface {
	Credentials
	Preferences
	Close() error
}
