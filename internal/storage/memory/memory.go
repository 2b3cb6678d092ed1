// memory — реализация storage.Store в памяти процесса.
// Используется по умолчанию (драйвер "memory") и в тестах.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pribylovaa/go-weibo-monitor/internal/models"
	"github.com/pribylovaa/go-weibo-monitor/internal/storage"
)

// Store хранит значения областей в map под общим мьютексом.
type Store struct {
	mu    *sync.RWMutex
	scope string
	data  map[string]map[string]string
}

// New создаёт пустое хранилище для области scope.
func New(scope string) *Store {
	return &Store{mu: &sync.RWMutex{}, scope: scope, data: make(map[string]map[string]string)}
}

// Scoped возвращает хранилище другой области поверх тех же данных
// (несколько «вкладок» одного процесса).
func (s *Store) Scoped(scope string) *Store {
	return &Store{mu: s.mu, scope: scope, data: s.data}
}

func (s *Store) bucket() map[string]string {
	b, ok := s.data[s.scope]
	if !ok {
		b = make(map[string]string)
		s.data[s.scope] = b
	}

	return b
}

func (s *Store) get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[s.scope][key]
	if !ok {
		return "", storage.ErrNotFound
	}

	return v, nil
}

func (s *Store) set(kv map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.bucket()
	for k, v := range kv {
		b[k] = v
	}
}

func (s *Store) del(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Удаление из отсутствующей области ничего не создаёт.
	b := s.data[s.scope]
	for _, k := range keys {
		delete(b, k)
	}
}

func (s *Store) Tokens(_ context.Context) (models.TokenPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := s.data[s.scope]
	pair := models.TokenPair{
		AccessToken:  b[storage.KeyAccessToken],
		RefreshToken: b[storage.KeyRefreshToken],
	}
	if !pair.Complete() {
		return models.TokenPair{}, storage.ErrNotFound
	}

	return pair, nil
}

func (s *Store) SaveTokens(_ context.Context, pair models.TokenPair) error {
	const op = "storage/memory/SaveTokens"

	if !pair.Complete() {
		return fmt.Errorf("%s: %w", op, storage.ErrInvalidPair)
	}

	s.set(map[string]string{
		storage.KeyAccessToken:  pair.AccessToken,
		storage.KeyRefreshToken: pair.RefreshToken,
	})

	return nil
}

func (s *Store) ClearSession(_ context.Context) error {
	s.del(storage.KeyAccessToken, storage.KeyRefreshToken, storage.KeyUser)
	return nil
}

func (s *Store) User(_ context.Context) (json.RawMessage, error) {
	v, err := s.get(storage.KeyUser)
	if err != nil {
		return nil, err
	}

	return json.RawMessage(v), nil
}

func (s *Store) SaveUser(_ context.Context, raw json.RawMessage) error {
	s.set(map[string]string{storage.KeyUser: string(raw)})
	return nil
}

func (s *Store) ClearUser(_ context.Context) error {
	s.del(storage.KeyUser)
	return nil
}

func (s *Store) Username(_ context.Context) (string, error) {
	return s.get(storage.KeyUsername)
}

func (s *Store) SaveUsername(_ context.Context, username string) error {
	s.set(map[string]string{storage.KeyUsername: username})
	return nil
}

func (s *Store) ClearUsername(_ context.Context) error {
	s.del(storage.KeyUsername)
	return nil
}

func (s *Store) Close() error { return nil }

var _ storage.Store = (*Store)(nil)
