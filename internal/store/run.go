package store

import (
	"context"
	"time"

	"github.com/curatorhq/curator/internal/domain"
	"github.com/google/uuid"
)

// WindowTotals sums run counters over a time window.
type WindowTotals struct {
	Processed int
	Failed    int
}

// AttemptStats aggregates per-item attempt durations over a time window.
type AttemptStats struct {
	Count   int
	Avg     time.Duration
	Slowest time.Duration
	Fastest time.Duration
}

// Attempt is one recorded invocation of the adapter for an item, joined with
// the item's title for operator-facing reports.
type Attempt struct {
	ItemID      string
	Title       string
	Outcome     string
	Duration    time.Duration
	AttemptedAt time.Time
}

// RunStore defines the interface for pipeline run history and per-item
// attempt timing records.
type RunStore interface {
	// FailStaleRuns flips rows still marked running to failed and returns
	// how many were touched. Only the lock holder may call this: with the
	// lock held, any running row is necessarily left over from a crashed
	// process.
	FailStaleRuns(ctx context.Context) (int, error)

	// StartRun records the start of a run.
	StartRun(ctx context.Context, run *domain.PipelineRun) error

	// RecordAbortedRun inserts a run that failed before doing any work,
	// already in the failed status with completed_at set. Invocations that
	// lose the lock race record themselves this way, so the history never
	// gains a second running row.
	RecordAbortedRun(ctx context.Context, run *domain.PipelineRun) error

	// CompleteRun finalizes a run with its counters and terminal status.
	CompleteRun(ctx context.Context, id uuid.UUID, counters domain.RunCounters, status domain.RunStatus) error

	// RecordAttempt stores the timing record for one adapter invocation.
	RecordAttempt(ctx context.Context, runID uuid.UUID, itemID, outcome string, duration time.Duration) error

	// LastRun returns the most recent run regardless of status.
	// Returns ErrRunNotFound when no runs exist.
	LastRun(ctx context.Context) (*domain.PipelineRun, error)

	// LastCompletedRun returns the most recent run with completed status.
	// Returns ErrRunNotFound when none exist.
	LastCompletedRun(ctx context.Context) (*domain.PipelineRun, error)

	// AttemptsForRun lists the attempt records of one run in order.
	AttemptsForRun(ctx context.Context, runID uuid.UUID) ([]Attempt, error)

	// WindowTotals sums processed/failed counters over completed runs that
	// finished inside [from, to).
	WindowTotals(ctx context.Context, from, to time.Time) (WindowTotals, error)

	// AttemptDurations aggregates attempt durations over [from, to).
	AttemptDurations(ctx context.Context, from, to time.Time) (AttemptStats, error)
}
