package store

import (
	"context"
	"time"

	"github.com/curatorhq/curator/internal/domain"
)

// ItemStore defines the interface for item persistence. The items table is
// the dedup authority for the pipeline: every source URL ever seen has
// exactly one row, keyed by the ID derived from that URL.
//
// All mutations assume a single writer (the orchestrator under the run
// lock). The transition methods still verify the current status so that a
// violated assumption surfaces as ErrInvalidTransition instead of silent
// double-processing.
type ItemStore interface {
	// UpsertNew inserts the item only if its ID is absent and reports
	// whether a row was actually inserted. Re-observing a known source URL
	// is a no-op, not an error.
	UpsertNew(ctx context.Context, item *domain.Item) (bool, error)

	// GetByID retrieves an item by its ID.
	// Returns ErrItemNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*domain.Item, error)

	// ListNew returns items in the New status, oldest first.
	ListNew(ctx context.Context) ([]*domain.Item, error)

	// DueRetries returns items in the RetryScheduled status whose
	// next_retry_at is at or before now, ordered oldest-due first so a
	// capped batch drains the longest-waiting retries before newer ones.
	DueRetries(ctx context.Context, now time.Time) ([]*domain.Item, error)

	// MarkProcessing transitions New or RetryScheduled -> Processing.
	// Returns ErrInvalidTransition if the item is in any other status and
	// ErrItemNotFound if it does not exist.
	MarkProcessing(ctx context.Context, id string) error

	// MarkDone transitions Processing -> Done, recording where the
	// generated output landed. Increments the attempt count.
	MarkDone(ctx context.Context, id, resultLocation string) error

	// MarkRetry transitions Processing -> RetryScheduled, setting
	// next_retry_at to now+delay, incrementing the attempt count and
	// recording the error text.
	MarkRetry(ctx context.Context, id string, delay time.Duration, errText string) error

	// MarkPermanentFailure transitions Processing -> PermanentlyFailed,
	// incrementing the attempt count and recording both the error text and
	// which of the two terminal-failure paths was taken.
	MarkPermanentFailure(ctx context.Context, id, errText string, reason domain.FailureReason) error

	// CountByStatus returns the number of items in each status.
	CountByStatus(ctx context.Context) (map[domain.ItemStatus]int, error)
}
