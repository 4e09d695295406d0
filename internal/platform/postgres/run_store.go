package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/curatorhq/curator/internal/domain"
	"github.com/curatorhq/curator/internal/store"
	"github.com/google/uuid"
)

const runColumns = `id, started_at, completed_at, status, dry_run,
	items_fetched, items_processed, items_retried, items_failed, items_skipped`

// PostgresRunStore implements the store.RunStore interface using PostgreSQL.
type PostgresRunStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresRunStore creates a new PostgresRunStore.
func NewPostgresRunStore(db store.DBTX, logger *slog.Logger) *PostgresRunStore {
	return &PostgresRunStore{
		db:     db,
		logger: logger.With("component", "run_store"),
	}
}

// FailStaleRuns flips rows still marked running to failed. The caller must
// hold the run lock: with the lock held, any running row is necessarily left
// over from a crashed process.
func (s *PostgresRunStore) FailStaleRuns(ctx context.Context) (int, error) {
	query := `
		UPDATE pipeline_runs
		SET status = $1, completed_at = $2
		WHERE status = $3
	`
	result, err := s.db.ExecContext(ctx, query,
		domain.RunStatusFailed,
		time.Now().UTC(),
		domain.RunStatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to clear stale runs: %w", MapError(err))
	}

	stale, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if stale > 0 {
		s.logger.Warn("marked stale running runs as failed", "count", stale)
	}
	return int(stale), nil
}

// StartRun inserts the run in the running status.
func (s *PostgresRunStore) StartRun(ctx context.Context, run *domain.PipelineRun) error {
	insertQuery := `
		INSERT INTO pipeline_runs (id, started_at, status, dry_run)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.ExecContext(ctx, insertQuery,
		run.ID,
		run.StartedAt.UTC(),
		domain.RunStatusRunning,
		run.DryRun,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pipeline run: %w", MapError(err))
	}

	return nil
}

// RecordAbortedRun inserts a run directly in the failed status. Unlike
// StartRun it never produces a running row, so it is safe to call without
// holding the run lock.
func (s *PostgresRunStore) RecordAbortedRun(ctx context.Context, run *domain.PipelineRun) error {
	query := `
		INSERT INTO pipeline_runs (id, started_at, completed_at, status, dry_run)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.StartedAt.UTC(),
		time.Now().UTC(),
		domain.RunStatusFailed,
		run.DryRun,
	)
	if err != nil {
		return fmt.Errorf("failed to record aborted run: %w", MapError(err))
	}

	return nil
}

// CompleteRun finalizes a run with its counters and terminal status.
func (s *PostgresRunStore) CompleteRun(ctx context.Context, id uuid.UUID, counters domain.RunCounters, status domain.RunStatus) error {
	query := `
		UPDATE pipeline_runs
		SET completed_at = $1,
		    status = $2,
		    items_fetched = $3,
		    items_processed = $4,
		    items_retried = $5,
		    items_failed = $6,
		    items_skipped = $7
		WHERE id = $8
	`

	result, err := s.db.ExecContext(ctx, query,
		time.Now().UTC(),
		status,
		counters.ItemsFetched,
		counters.ItemsProcessed,
		counters.ItemsRetried,
		counters.ItemsFailed,
		counters.ItemsSkipped,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete pipeline run: %w", MapError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrRunNotFound
	}

	return nil
}

// RecordAttempt stores the timing record for one adapter invocation.
func (s *PostgresRunStore) RecordAttempt(ctx context.Context, runID uuid.UUID, itemID, outcome string, duration time.Duration) error {
	query := `
		INSERT INTO item_attempts (run_id, item_id, outcome, duration_ms, attempted_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.ExecContext(ctx, query,
		runID,
		itemID,
		outcome,
		duration.Milliseconds(),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", MapError(err))
	}

	return nil
}

// LastRun returns the most recent run regardless of status.
func (s *PostgresRunStore) LastRun(ctx context.Context) (*domain.PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs ORDER BY started_at DESC LIMIT 1`
	return s.queryRun(ctx, query)
}

// LastCompletedRun returns the most recent run with completed status.
func (s *PostgresRunStore) LastCompletedRun(ctx context.Context) (*domain.PipelineRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM pipeline_runs
		WHERE status = $1
		ORDER BY completed_at DESC
		LIMIT 1
	`
	return s.queryRun(ctx, query, domain.RunStatusCompleted)
}

// AttemptsForRun lists the attempt records of one run in order.
func (s *PostgresRunStore) AttemptsForRun(ctx context.Context, runID uuid.UUID) ([]store.Attempt, error) {
	query := `
		SELECT a.item_id, i.title, a.outcome, a.duration_ms, a.attempted_at
		FROM item_attempts a
		JOIN items i ON i.id = a.item_id
		WHERE a.run_id = $1
		ORDER BY a.attempted_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts for run: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var attempts []store.Attempt
	for rows.Next() {
		var a store.Attempt
		var durationMs int64
		if err := rows.Scan(&a.ItemID, &a.Title, &a.Outcome, &durationMs, &a.AttemptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attempt row: %w", err)
		}
		a.Duration = time.Duration(durationMs) * time.Millisecond
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempt rows: %w", err)
	}

	return attempts, nil
}

// WindowTotals sums processed/failed counters over completed runs that
// finished inside [from, to).
func (s *PostgresRunStore) WindowTotals(ctx context.Context, from, to time.Time) (store.WindowTotals, error) {
	query := `
		SELECT COALESCE(SUM(items_processed), 0), COALESCE(SUM(items_failed), 0)
		FROM pipeline_runs
		WHERE status = $1 AND completed_at >= $2 AND completed_at < $3
	`

	var totals store.WindowTotals
	err := s.db.QueryRowContext(ctx, query, domain.RunStatusCompleted, from.UTC(), to.UTC()).
		Scan(&totals.Processed, &totals.Failed)
	if err != nil {
		return store.WindowTotals{}, fmt.Errorf("failed to sum window totals: %w", MapError(err))
	}

	return totals, nil
}

// AttemptDurations aggregates attempt durations over [from, to).
func (s *PostgresRunStore) AttemptDurations(ctx context.Context, from, to time.Time) (store.AttemptStats, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(AVG(duration_ms), 0),
		       COALESCE(MAX(duration_ms), 0),
		       COALESCE(MIN(duration_ms), 0)
		FROM item_attempts
		WHERE attempted_at >= $1 AND attempted_at < $2
	`

	var count int
	var avgMs float64
	var maxMs, minMs int64
	err := s.db.QueryRowContext(ctx, query, from.UTC(), to.UTC()).
		Scan(&count, &avgMs, &maxMs, &minMs)
	if err != nil {
		return store.AttemptStats{}, fmt.Errorf("failed to aggregate attempt durations: %w", MapError(err))
	}

	return store.AttemptStats{
		Count:   count,
		Avg:     time.Duration(avgMs * float64(time.Millisecond)),
		Slowest: time.Duration(maxMs) * time.Millisecond,
		Fastest: time.Duration(minMs) * time.Millisecond,
	}, nil
}

func (s *PostgresRunStore) queryRun(ctx context.Context, query string, args ...any) (*domain.PipelineRun, error) {
	var run domain.PipelineRun
	var completedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&run.ID,
		&run.StartedAt,
		&completedAt,
		&run.Status,
		&run.DryRun,
		&run.ItemsFetched,
		&run.ItemsProcessed,
		&run.ItemsRetried,
		&run.ItemsFailed,
		&run.ItemsSkipped,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pipeline run: %w", MapError(err))
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}

	return &run, nil
}
