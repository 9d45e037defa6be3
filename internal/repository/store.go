package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	maxTxAttempts  = 3
	txRetryBackoff = 20 * time.Millisecond
)

// Store provides access to generated queries and transaction scoping.
type Store struct {
	db      *pgxpool.Pool
	queries *Queries
}

// NewStore creates a store wrapper around a pgx connection pool.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{
		db:      db,
		queries: New(db),
	}
}

// Queries returns the non-transactional query set.
func (s *Store) Queries() *Queries {
	return s.queries
}

// RunInTx executes fn within a database transaction. A transaction that loses
// a deadlock or serialization race is rolled back and fn runs again, so fn
// must only communicate results through state it resets on entry.
func (s *Store) RunInTx(ctx context.Context, fn func(q *Queries) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runOnce(ctx, fn)
		if err == nil || !retryableTxError(err) || attempt == maxTxAttempts {
			return err
		}
		zap.L().Warn("retrying transaction", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * txRetryBackoff):
		}
	}
	return err
}

func (s *Store) runOnce(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func retryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return true
	}
	return false
}
