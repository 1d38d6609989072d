// Package postgres implements store.Store on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sudo-init-do/tradeexchange/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	pool   *pgxpool.Pool
	strict bool
	logger *slog.Logger
}

// New wraps pool. In non-strict mode list queries that fail are logged and
// answered with an empty result instead of an error.
func New(pool *pgxpool.Pool, strict bool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, strict: strict, logger: logger}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

// listErr applies the storage failure policy to read-many queries.
func (s *Store) listErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if s.strict {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Warn("storage read failed, serving empty result", slog.String("op", op), slog.Any("error", err))
	return nil
}

// rowErr converts a single-row lookup error.
func rowErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func execErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return store.ErrDuplicate
	}
	return fmt.Errorf("%s: %w", op, err)
}

func affected(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
