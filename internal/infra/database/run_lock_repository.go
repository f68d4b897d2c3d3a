package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const runLockName = "dispatch"

// SQLRunLockRepository is the storage-level claim preventing overlapping
// dispatch runs. A run acquires the single named lock row with its token and
// releases it when done; a claim older than staleAfter may be taken over, so
// an externally killed run cannot wedge the engine.
type SQLRunLockRepository struct {
	db         *sqlx.DB
	staleAfter time.Duration
}

func NewSQLRunLockRepository(db *sqlx.DB, staleAfter time.Duration) *SQLRunLockRepository {
	return &SQLRunLockRepository{db: db, staleAfter: staleAfter}
}

// Acquire claims the dispatch lock for token. It returns ErrRunLockHeld when
// a live claim by another run exists.
func (r *SQLRunLockRepository) Acquire(ctx context.Context, token string, now time.Time) error {
	staleCutoff := now.UTC().Add(-r.staleAfter)
	query := r.db.Rebind(`INSERT INTO run_locks (name, token, claimed_at)
		VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET token = excluded.token, claimed_at = excluded.claimed_at
		WHERE run_locks.claimed_at <= ?`)
	res, err := r.db.ExecContext(ctx, query, runLockName, token, now.UTC(), staleCutoff)
	if err != nil {
		return fmt.Errorf("error acquiring run lock: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading run lock result: %w", err)
	}
	if rows == 0 {
		return ErrRunLockHeld
	}
	return nil
}

// Release frees the lock if it is still held by token. Releasing a lock taken
// over by a newer run is a no-op.
func (r *SQLRunLockRepository) Release(ctx context.Context, token string) error {
	query := r.db.Rebind(`DELETE FROM run_locks WHERE name = ? AND token = ?`)
	if _, err := r.db.ExecContext(ctx, query, runLockName, token); err != nil {
		return fmt.Errorf("error releasing run lock: %w", err)
	}
	return nil
}
