package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const cleanupColumns = `id, kind, entity_id, ops, attempts, last_error, next_attempt_at, created_at, done_at`

func scanCleanup(row pgx.Row) (*Cleanup, error) {
	var (
		c         Cleanup
		rawOps    []byte
		lastError pgtype.Text
		doneAt    pgtype.Timestamptz
	)
	if err := row.Scan(&c.ID, &c.Kind, &c.EntityID, &rawOps, &c.Attempts, &lastError, &c.NextAttemptAt, &c.CreatedAt, &doneAt); err != nil {
		return nil, mapNotFound(err)
	}
	if err := json.Unmarshal(rawOps, &c.Ops); err != nil {
		return nil, fmt.Errorf("decode cleanup %s ops: %w", c.ID, err)
	}
	c.LastError = textVal(lastError)
	c.DoneAt = timePtrVal(doneAt)
	return &c, nil
}

func collectCleanups(rows pgx.Rows) ([]Cleanup, error) {
	defer rows.Close()
	out := make([]Cleanup, 0)
	for rows.Next() {
		c, err := scanCleanup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// insertCleanup records the realtime steps that must follow the surrounding
// transaction and notifies listeners once it commits.
func (s *Store) insertCleanup(ctx context.Context, tx pgx.Tx, kind, entityID string, ops []CleanupOp) (*Cleanup, error) {
	if ops == nil {
		ops = []CleanupOp{}
	}
	raw, err := json.Marshal(ops)
	if err != nil {
		return nil, err
	}
	c, err := scanCleanup(tx.QueryRow(ctx, `
		INSERT INTO pending_cleanups (id, kind, entity_id, ops, next_attempt_at)
		VALUES ($1, $2, $3, $4, now() + make_interval(secs => $5))
		RETURNING `+cleanupColumns, NewID(), kind, entityID, raw, seconds(s.cleanupGrace)))
	if err != nil {
		return nil, err
	}
	if s.cleanupChannel != "" {
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, s.cleanupChannel, c.ID); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ClaimDueCleanups leases up to limit due cleanups. Rows locked by another
// worker are skipped; a claimed row becomes due again once the lease expires.
func (s *Store) ClaimDueCleanups(ctx context.Context, limit int, lease time.Duration) ([]Cleanup, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		UPDATE pending_cleanups
		SET next_attempt_at = now() + make_interval(secs => $2)
		WHERE id IN (
			SELECT id FROM pending_cleanups
			WHERE done_at IS NULL AND next_attempt_at <= now()
			ORDER BY next_attempt_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+cleanupColumns, limit, seconds(lease))
	if err != nil {
		return nil, err
	}
	return collectCleanups(rows)
}

func (s *Store) MarkCleanupDone(ctx context.Context, id string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE pending_cleanups SET done_at = now(), last_error = NULL
		WHERE id = $1 AND done_at IS NULL`, id)
	return err
}

func (s *Store) MarkCleanupFailed(ctx context.Context, id, reason string, retryIn time.Duration) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE pending_cleanups
		SET attempts = attempts + 1, last_error = $2, next_attempt_at = now() + make_interval(secs => $3)
		WHERE id = $1 AND done_at IS NULL`, id, reason, seconds(retryIn))
	return err
}

// PendingCleanupForEntity returns the oldest unfinished cleanup for the entity.
func (s *Store) PendingCleanupForEntity(ctx context.Context, kind, entityID string) (*Cleanup, error) {
	return scanCleanup(s.Pool.QueryRow(ctx, `
		SELECT `+cleanupColumns+`
		FROM pending_cleanups
		WHERE kind = $1 AND entity_id = $2 AND done_at IS NULL
		ORDER BY created_at
		LIMIT 1`, kind, entityID))
}

func (s *Store) ListPendingCleanups(ctx context.Context, limit int) ([]Cleanup, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT `+cleanupColumns+`
		FROM pending_cleanups
		WHERE done_at IS NULL
		ORDER BY next_attempt_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectCleanups(rows)
}
