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
)

// itemColumns is the column list shared by every item SELECT so scanItem
// stays in sync with a single source of truth.
const itemColumns = `id, source_url, title, category, status, first_seen_at,
	last_attempt_at, attempt_count, next_retry_at, last_error, failure_reason, result_location`

// PostgresItemStore implements the store.ItemStore interface using PostgreSQL.
type PostgresItemStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresItemStore creates a new PostgresItemStore.
func NewPostgresItemStore(db store.DBTX, logger *slog.Logger) *PostgresItemStore {
	return &PostgresItemStore{
		db:     db,
		logger: logger.With("component", "item_store"),
	}
}

// UpsertNew inserts the item only if its ID is absent. ON CONFLICT DO
// NOTHING makes re-observing a known source URL a no-op; the returned bool
// reports whether a row was actually inserted.
func (s *PostgresItemStore) UpsertNew(ctx context.Context, item *domain.Item) (bool, error) {
	if err := item.Validate(); err != nil {
		return false, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO items (id, source_url, title, category, status, first_seen_at, attempt_count)
		VALUES ($1, $2, $3, $4, $5, $6, 0)
		ON CONFLICT (id) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query,
		item.ID,
		item.SourceURL,
		item.Title,
		item.Category,
		domain.ItemStatusNew,
		item.FirstSeenAt.UTC(),
	)
	if err != nil {
		s.logger.Error("failed to upsert item", "item_id", item.ID, "error", err)
		return false, fmt.Errorf("failed to upsert item: %w", MapError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// GetByID retrieves an item by its ID.
func (s *PostgresItemStore) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`

	item, err := scanItem(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", MapError(err))
	}

	return item, nil
}

// ListNew returns items in the New status, oldest first.
func (s *PostgresItemStore) ListNew(ctx context.Context) ([]*domain.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE status = $1
		ORDER BY first_seen_at ASC
	`
	return s.queryItems(ctx, query, domain.ItemStatusNew)
}

// DueRetries returns retry-scheduled items whose next_retry_at has passed,
// oldest-due first.
func (s *PostgresItemStore) DueRetries(ctx context.Context, now time.Time) ([]*domain.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE status = $1 AND next_retry_at <= $2
		ORDER BY next_retry_at ASC
	`
	return s.queryItems(ctx, query, domain.ItemStatusRetryScheduled, now.UTC())
}

// MarkProcessing transitions New or RetryScheduled -> Processing. The status
// guard lives in the WHERE clause so a concurrent or repeated call cannot
// steal an item that has already moved on.
func (s *PostgresItemStore) MarkProcessing(ctx context.Context, id string) error {
	query := `
		UPDATE items
		SET status = $1
		WHERE id = $2 AND status IN ($3, $4)
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.ItemStatusProcessing,
		id,
		domain.ItemStatusNew,
		domain.ItemStatusRetryScheduled,
	)
	if err != nil {
		return fmt.Errorf("failed to mark item processing: %w", MapError(err))
	}

	return s.checkTransition(ctx, result, id, "processing")
}

// MarkDone transitions Processing -> Done and records the result location.
func (s *PostgresItemStore) MarkDone(ctx context.Context, id, resultLocation string) error {
	query := `
		UPDATE items
		SET status = $1,
		    result_location = $2,
		    last_attempt_at = $3,
		    attempt_count = attempt_count + 1,
		    next_retry_at = NULL,
		    last_error = NULL
		WHERE id = $4 AND status = $5
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.ItemStatusDone,
		resultLocation,
		time.Now().UTC(),
		id,
		domain.ItemStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to mark item done: %w", MapError(err))
	}

	return s.checkTransition(ctx, result, id, "done")
}

// MarkRetry transitions Processing -> RetryScheduled with next_retry_at set
// delay in the future. next_retry_at is computed from the same now that is
// written to last_attempt_at, so it is always strictly later.
func (s *PostgresItemStore) MarkRetry(ctx context.Context, id string, delay time.Duration, errText string) error {
	now := time.Now().UTC()

	query := `
		UPDATE items
		SET status = $1,
		    next_retry_at = $2,
		    last_attempt_at = $3,
		    attempt_count = attempt_count + 1,
		    last_error = $4
		WHERE id = $5 AND status = $6
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.ItemStatusRetryScheduled,
		now.Add(delay),
		now,
		errText,
		id,
		domain.ItemStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to mark item for retry: %w", MapError(err))
	}

	return s.checkTransition(ctx, result, id, "retry_scheduled")
}

// MarkPermanentFailure transitions Processing -> PermanentlyFailed,
// preserving which terminal-failure path was taken.
func (s *PostgresItemStore) MarkPermanentFailure(ctx context.Context, id, errText string, reason domain.FailureReason) error {
	query := `
		UPDATE items
		SET status = $1,
		    last_attempt_at = $2,
		    attempt_count = attempt_count + 1,
		    next_retry_at = NULL,
		    last_error = $3,
		    failure_reason = $4
		WHERE id = $5 AND status = $6
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.ItemStatusPermanentlyFailed,
		time.Now().UTC(),
		errText,
		reason,
		id,
		domain.ItemStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to mark item permanently failed: %w", MapError(err))
	}

	return s.checkTransition(ctx, result, id, "permanently_failed")
}

// CountByStatus returns the number of items in each status.
func (s *PostgresItemStore) CountByStatus(ctx context.Context) (map[domain.ItemStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM items GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count items by status: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[domain.ItemStatus]int)
	for rows.Next() {
		var status domain.ItemStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}

	return counts, nil
}

// checkTransition distinguishes "item missing" from "item in the wrong
// status" when a guarded UPDATE touched zero rows. The wrong-status case is
// a programming-invariant violation under the single-writer model.
func (s *PostgresItemStore) checkTransition(ctx context.Context, result sql.Result, id, target string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var current domain.ItemStatus
	err = s.db.QueryRowContext(ctx, `SELECT status FROM items WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrItemNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read item status: %w", MapError(err))
	}

	s.logger.Error("rejected item status transition",
		"item_id", id,
		"current_status", current,
		"target_status", target)
	return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, current, target)
}

func (s *PostgresItemStore) queryItems(ctx context.Context, query string, args ...any) ([]*domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var items []*domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	var item domain.Item
	var lastAttemptAt, nextRetryAt sql.NullTime
	var lastError, failureReason, resultLocation sql.NullString

	err := row.Scan(
		&item.ID,
		&item.SourceURL,
		&item.Title,
		&item.Category,
		&item.Status,
		&item.FirstSeenAt,
		&lastAttemptAt,
		&item.AttemptCount,
		&nextRetryAt,
		&lastError,
		&failureReason,
		&resultLocation,
	)
	if err != nil {
		return nil, err
	}

	if lastAttemptAt.Valid {
		item.LastAttemptAt = &lastAttemptAt.Time
	}
	if nextRetryAt.Valid {
		item.NextRetryAt = &nextRetryAt.Time
	}
	item.LastError = lastError.String
	item.FailureReason = domain.FailureReason(failureReason.String)
	item.ResultLocation = resultLocation.String

	return &item, nil
}
