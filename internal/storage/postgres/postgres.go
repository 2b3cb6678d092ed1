// postgres предоставляет реализацию storage.Store на базе PostgreSQL.
//
// Данные лежат в таблице session_kv (scope, key, value, updated_at), см. migrations/.
// Каждая операция — один SQL-оператор, поэтому запись и удаление пары токенов атомарны.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pribylovaa/go-weibo-monitor/internal/storage"
)

type Store struct {
	db    *pgxpool.Pool
	scope string
}

// New создает и инициализирует пул соединений к PostgreSQL.
func New(ctx context.Context, dbURL, scope string) (*Store, error) {
	const op = "storage/postgres/New"

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Store{db: db, scope: scope}, nil
}

// Close закрывает пул соединений.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}

// mapErr переводит ошибку отсутствующей таблицы в storage.ErrNotMigrated.
func mapErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return fmt.Errorf("%s: %w", op, storage.ErrNotMigrated)
	}

	return fmt.Errorf("%s: %w", op, err)
}

var _ storage.Store = (*Store)(nil)
