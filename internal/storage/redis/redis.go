// redis — реализация storage.Store поверх Redis.
//
// Каждая область хранится одним Redis Hash по ключу <prefix><scope>
// с полями access_token, refresh_token, username, user.
// Пара токенов пишется одним HSET внутри MULTI/EXEC, поэтому читатель
// никогда не видит только один токен.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pribylovaa/go-weibo-monitor/internal/models"
	"github.com/pribylovaa/go-weibo-monitor/internal/storage"
)

const defaultPrefix = "dashboard:session:"

type Store struct {
	rdb *goredis.Client
	key string
}

// New создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "dashboard:session:".
func New(ctx context.Context, redisURL, prefix, scope string) (*Store, error) {
	const op = "storage/redis/New"

	if prefix == "" {
		prefix = defaultPrefix
	}

	opt, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := goredis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Store{rdb: rdb, key: prefix + scope}, nil
}

func (s *Store) Tokens(ctx context.Context) (models.TokenPair, error) {
	const op = "storage/redis/Tokens"

	vals, err := s.rdb.HMGet(ctx, s.key, storage.KeyAccessToken, storage.KeyRefreshToken).Result()
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	// HMGET отдаёт nil для отсутствующих полей.
	access, _ := vals[0].(string)
	refresh, _ := vals[1].(string)

	pair := models.TokenPair{AccessToken: access, RefreshToken: refresh}
	if !pair.Complete() {
		return models.TokenPair{}, storage.ErrNotFound
	}

	return pair, nil
}

func (s *Store) SaveTokens(ctx context.Context, pair models.TokenPair) error {
	const op = "storage/redis/SaveTokens"

	if !pair.Complete() {
		return fmt.Errorf("%s: %w", op, storage.ErrInvalidPair)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, s.key, map[string]string{
		storage.KeyAccessToken:  pair.AccessToken,
		storage.KeyRefreshToken: pair.RefreshToken,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) ClearSession(ctx context.Context) error {
	const op = "storage/redis/ClearSession"

	if err := s.rdb.HDel(ctx, s.key, storage.KeyAccessToken, storage.KeyRefreshToken, storage.KeyUser).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) User(ctx context.Context) (json.RawMessage, error) {
	v, err := s.field(ctx, "storage/redis/User", storage.KeyUser)
	if err != nil {
		return nil, err
	}

	return json.RawMessage(v), nil
}

func (s *Store) SaveUser(ctx context.Context, raw json.RawMessage) error {
	return s.setField(ctx, "storage/redis/SaveUser", storage.KeyUser, string(raw))
}

func (s *Store) ClearUser(ctx context.Context) error {
	return s.delField(ctx, "storage/redis/ClearUser", storage.KeyUser)
}

func (s *Store) Username(ctx context.Context) (string, error) {
	return s.field(ctx, "storage/redis/Username", storage.KeyUsername)
}

func (s *Store) SaveUsername(ctx context.Context, username string) error {
	return s.setField(ctx, "storage/redis/SaveUsername", storage.KeyUsername, username)
}

func (s *Store) ClearUsername(ctx context.Context) error {
	return s.delField(ctx, "storage/redis/ClearUsername", storage.KeyUsername)
}

// Close закрывает клиент Redis.
func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) field(ctx context.Context, op, name string) (string, error) {
	v, err := s.rdb.HGet(ctx, s.key, name).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", storage.ErrNotFound
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return v, nil
}

func (s *Store) setField(ctx context.Context, op, name, value string) error {
	if err := s.rdb.HSet(ctx, s.key, name, value).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) delField(ctx context.Context, op, name string) error {
	if err := s.rdb.HDel(ctx, s.key, name).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

var _ storage.Store = (*Store)(nil)
