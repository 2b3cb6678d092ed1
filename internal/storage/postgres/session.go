package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pribylovaa/go-weibo-monitor/internal/models"
	"github.com/pribylovaa/go-weibo-monitor/internal/storage"
)

// Tokens читает оба токена одним запросом.
// Ошибки: storage.ErrNotFound, если нет хотя бы одного из них.
func (s *Store) Tokens(ctx context.Context) (models.TokenPair, error) {
	const op = "storage/postgres/session/Tokens"

	q := `SELECT key, value FROM session_kv WHERE scope = $1 AND key = ANY($2)`

	rows, err := s.db.Query(ctx, q, s.scope, []string{storage.KeyAccessToken, storage.KeyRefreshToken})
	if err != nil {
		return models.TokenPair{}, mapErr(op, err)
	}
	defer rows.Close()

	var pair models.TokenPair
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
		}

		switch key {
		case storage.KeyAccessToken:
			pair.AccessToken = value
		case storage.KeyRefreshToken:
			pair.RefreshToken = value
		}
	}

	if err := rows.Err(); err != nil {
		return models.TokenPair{}, mapErr(op, err)
	}

	if !pair.Complete() {
		return models.TokenPair{}, storage.ErrNotFound
	}

	return pair, nil
}

// SaveTokens upsert'ит обе строки одним INSERT ... ON CONFLICT.
func (s *Store) SaveTokens(ctx context.Context, pair models.TokenPair) error {
	const op = "storage/postgres/session/SaveTokens"

	if !pair.Complete() {
		return fmt.Errorf("%s: %w", op, storage.ErrInvalidPair)
	}

	q := `
	INSERT INTO session_kv (scope, key, value, updated_at)
	VALUES ($1, $2, $3, now()), ($1, $4, $5, now())
	ON CONFLICT (scope, key) DO UPDATE
	SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.Exec(ctx, q, s.scope,
		storage.KeyAccessToken, pair.AccessToken,
		storage.KeyRefreshToken, pair.RefreshToken,
	)
	if err != nil {
		return mapErr(op, err)
	}

	return nil
}

func (s *Store) ClearSession(ctx context.Context) error {
	return s.delete(ctx, "storage/postgres/session/ClearSession",
		storage.KeyAccessToken, storage.KeyRefreshToken, storage.KeyUser)
}

func (s *Store) User(ctx context.Context) (json.RawMessage, error) {
	v, err := s.value(ctx, "storage/postgres/session/User", storage.KeyUser)
	if err != nil {
		return nil, err
	}

	return json.RawMessage(v), nil
}

func (s *Store) SaveUser(ctx context.Context, raw json.RawMessage) error {
	return s.upsert(ctx, "storage/postgres/session/SaveUser", storage.KeyUser, string(raw))
}

func (s *Store) ClearUser(ctx context.Context) error {
	return s.delete(ctx, "storage/postgres/session/ClearUser", storage.KeyUser)
}

func (s *Store) Username(ctx context.Context) (string, error) {
	return s.value(ctx, "storage/postgres/session/Username", storage.KeyUsername)
}

func (s *Store) SaveUsername(ctx context.Context, username string) error {
	return s.upsert(ctx, "storage/postgres/session/SaveUsername", storage.KeyUsername, username)
}

func (s *Store) ClearUsername(ctx context.Context) error {
	return s.delete(ctx, "storage/postgres/session/ClearUsername", storage.KeyUsername)
}

func (s *Store) value(ctx context.Context, op, key string) (string, error) {
	q := `SELECT value FROM session_kv WHERE scope = $1 AND key = $2`

	var v string
	if err := s.db.QueryRow(ctx, q, s.scope, key).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", storage.ErrNotFound
		}

		return "", mapErr(op, err)
	}

	return v, nil
}

func (s *Store) upsert(ctx context.Context, op, key, value string) error {
	q := `
	INSERT INTO session_kv (scope, key, value, updated_at)
	VALUES ($1, $2, $3, now())
	ON CONFLICT (scope, key) DO UPDATE
	SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	if _, err := s.db.Exec(ctx, q, s.scope, key, value); err != nil {
		return mapErr(op, err)
	}

	return nil
}

func (s *Store) delete(ctx context.Context, op string, keys ...string) error {
	q := `DELETE FROM session_kv WHERE scope = $1 AND key = ANY($2)`

	if _, err := s.db.Exec(ctx, q, s.scope, keys); err != nil {
		return mapErr(op, err)
	}

	return nil
}
