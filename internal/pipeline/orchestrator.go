package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/curatorhq/curator/internal/domain"
	"github.com/curatorhq/curator/internal/fetch"
	"github.com/curatorhq/curator/internal/retry"
	"github.com/curatorhq/curator/internal/skill"
	"github.com/curatorhq/curator/internal/store"
)

// RunLock is the mutual-exclusion guard for pipeline runs. Acquire returns a
// release function that must run on every exit path.
type RunLock interface {
	Acquire(ctx context.Context) (func(), error)
}

// Options control one orchestrator execution.
type Options struct {
	// Limit caps the work batch. Zero means no cap.
	Limit int

	// DryRun previews the batch without invoking the adapter or mutating
	// any item status beyond the initial dedup insert.
	DryRun bool

	// Force bypasses the run lock. The override is logged; use it only to
	// recover from a wedged run.
	Force bool
}

// Config holds the orchestrator's tunables.
type Config struct {
	// ItemTimeout bounds each adapter invocation.
	ItemTimeout time.Duration
}

// Orchestrator drives each item through the external processing step,
// applying retry decisions and recording outcomes. Items are processed
// strictly sequentially: the adapter call is heavyweight and the store's
// atomicity guarantees assume one writer.
type Orchestrator struct {
	items      store.ItemStore
	runs       store.RunStore
	lock       RunLock
	fetcher    fetch.Fetcher
	invoker    skill.Invoker
	policy     *retry.Policy
	classifier *retry.Classifier
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

// NewOrchestrator creates an Orchestrator with the given collaborators.
func NewOrchestrator(
	items store.ItemStore,
	runs store.RunStore,
	lock RunLock,
	fetcher fetch.Fetcher,
	invoker skill.Invoker,
	policy *retry.Policy,
	classifier *retry.Classifier,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = 10 * time.Minute
	}
	return &Orchestrator{
		items:      items,
		runs:       runs,
		lock:       lock,
		fetcher:    fetcher,
		invoker:    invoker,
		policy:     policy,
		classifier: classifier,
		cfg:        cfg,
		logger:     logger.With("component", "orchestrator"),
		now:        time.Now,
	}
}

// Run executes one pipeline pass: enqueue new candidates, build the work
// batch (due retries first, then new items), invoke the adapter per item and
// apply the classified outcome. A failure on one item never aborts the run
// for the others; a lock or fetch failure aborts the whole run with no items
// touched.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*RunResult, error) {
	if opts.Force {
		o.logger.Warn("run lock bypassed by force flag")
	} else {
		release, err := o.lock.Acquire(ctx)
		if err != nil {
			o.recordLockedOutRun(ctx, opts.DryRun, err)
			return nil, err
		}
		defer release()

		// Only the lock holder may clear stale rows: with the lock held,
		// any running row is debris from a crashed process. A forced run
		// cannot tell debris from a live run, so it skips the cleanup.
		if _, err := o.runs.FailStaleRuns(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear stale runs: %w", err)
		}
	}

	run := domain.NewPipelineRun(opts.DryRun)
	if err := o.runs.StartRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}

	logger := o.logger.With("run_id", run.ID)
	result := &RunResult{}

	fetched, err := o.enqueueCandidates(ctx, logger)
	if err != nil {
		o.completeRun(ctx, run, result, fetched, domain.RunStatusFailed)
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	batch, err := o.buildBatch(ctx, opts.Limit)
	if err != nil {
		o.completeRun(ctx, run, result, fetched, domain.RunStatusFailed)
		return nil, err
	}

	if opts.DryRun {
		result.Skipped = len(batch)
		for _, item := range batch {
			logger.Info("dry run preview", "item_id", item.ID, "title", item.Title, "status", item.Status)
		}
		o.completeRun(ctx, run, result, fetched, domain.RunStatusCompleted)
		return result, nil
	}

	logger.Info("processing batch",
		"batch_size", len(batch),
		"new_candidates", fetched)

	for _, item := range batch {
		o.processItem(ctx, logger, run, item, result)
	}

	o.completeRun(ctx, run, result, fetched, domain.RunStatusCompleted)
	logger.Info("run complete",
		"processed", result.Processed,
		"retried", result.Retried,
		"failed", result.Failed)
	return result, nil
}

// enqueueCandidates pulls candidates from the fetch collaborator and upserts
// each; already-known items are silently skipped. Returns the number of
// genuinely new items.
func (o *Orchestrator) enqueueCandidates(ctx context.Context, logger *slog.Logger) (int, error) {
	candidates, err := o.fetcher.Fetch(ctx)
	if err != nil {
		return 0, err
	}

	fetched := 0
	for _, c := range candidates {
		item, err := domain.NewItem(c.SourceURL, c.Title, c.Category)
		if err != nil {
			logger.Warn("skipping invalid candidate", "source_url", c.SourceURL, "error", err)
			continue
		}

		inserted, err := o.items.UpsertNew(ctx, item)
		if err != nil {
			return fetched, fmt.Errorf("failed to enqueue candidate %s: %w", item.ID, err)
		}
		if inserted {
			fetched++
		}
	}

	return fetched, nil
}

// buildBatch assembles the work list: due retries oldest-due first, then new
// items, capped at limit.
func (o *Orchestrator) buildBatch(ctx context.Context, limit int) ([]*domain.Item, error) {
	due, err := o.items.DueRetries(ctx, o.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list due retries: %w", err)
	}

	fresh, err := o.items.ListNew(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list new items: %w", err)
	}

	batch := append(due, fresh...)
	if limit > 0 && len(batch) > limit {
		batch = batch[:limit]
	}
	return batch, nil
}

// processItem runs one item through the adapter and applies the classified
// outcome to the store and the run counters. Errors here are converted to
// state, never propagated: per-item failures must not abort the batch.
func (o *Orchestrator) processItem(ctx context.Context, logger *slog.Logger, run *domain.PipelineRun, item *domain.Item, result *RunResult) {
	logger = logger.With("item_id", item.ID, "title", item.Title)

	if err := o.items.MarkProcessing(ctx, item.ID); err != nil {
		// Under the single-writer model this means a caller bug, not a
		// condition to recover from. Skip the item and make noise.
		logger.Error("could not mark item processing", "error", err)
		return
	}

	start := o.now()
	res, invokeErr := o.invokeOne(ctx, item)
	elapsed := o.now().Sub(start)

	outcome := o.classifier.Classify(invokeErr, res.Output)

	switch outcome {
	case retry.OutcomeSuccess:
		if err := o.items.MarkDone(ctx, item.ID, res.ResultLocation); err != nil {
			logger.Error("failed to mark item done", "error", err)
			return
		}
		result.Processed++
		logger.Info("item processed", "result_location", res.ResultLocation, "elapsed", elapsed.Round(time.Millisecond))

	case retry.OutcomeTransientFailure:
		delay, ok := o.policy.NextDelay(item.AttemptCount)
		if !ok {
			// Exhausted the backoff table: second path into the terminal
			// failure status, kept distinguishable from pattern detection.
			if err := o.items.MarkPermanentFailure(ctx, item.ID, invokeErr.Error(), domain.FailureRetriesExhausted); err != nil {
				logger.Error("failed to mark item permanently failed", "error", err)
				return
			}
			result.Failed++
			o.noteFirstFailure(result, item)
			logger.Warn("retries exhausted, giving up",
				"attempt_count", item.AttemptCount,
				"error", invokeErr)
			break
		}

		if err := o.items.MarkRetry(ctx, item.ID, delay, invokeErr.Error()); err != nil {
			logger.Error("failed to schedule retry", "error", err)
			return
		}
		result.Retried++
		logger.Warn("transient failure, retry scheduled",
			"delay", delay,
			"attempt_count", item.AttemptCount+1,
			"error", invokeErr)

	case retry.OutcomePermanentFailure:
		if err := o.items.MarkPermanentFailure(ctx, item.ID, invokeErr.Error(), domain.FailurePermanentContent); err != nil {
			logger.Error("failed to mark item permanently failed", "error", err)
			return
		}
		result.Failed++
		o.noteFirstFailure(result, item)
		logger.Warn("permanent failure detected", "error", invokeErr)
	}

	if err := o.runs.RecordAttempt(ctx, run.ID, item.ID, outcome.String(), elapsed); err != nil {
		logger.Error("failed to record attempt timing", "error", err)
	}
}

// invokeOne calls the adapter with the per-item timeout. A panicking adapter
// is converted into a transient failure rather than taking down the run.
func (o *Orchestrator) invokeOne(ctx context.Context, item *domain.Item) (res skill.Result, err error) {
	invokeCtx, cancel := context.WithTimeout(ctx, o.cfg.ItemTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adapter panicked: %v", r)
		}
	}()

	return o.invoker.Invoke(invokeCtx, item)
}

func (o *Orchestrator) noteFirstFailure(result *RunResult, item *domain.Item) {
	if result.FirstFailureTitle == "" {
		result.FirstFailureTitle = item.Title
	}
}

// recordLockedOutRun leaves a failed run row behind when the lock could not
// be acquired, so the history shows the attempt. The row is inserted already
// in the failed status: the actual holder's row is running, and this process
// does not hold the lock, so it must never add a second running row.
func (o *Orchestrator) recordLockedOutRun(ctx context.Context, dryRun bool, cause error) {
	now := o.now()
	run := domain.NewPipelineRun(dryRun)
	run.Status = domain.RunStatusFailed
	run.CompletedAt = &now
	if err := o.runs.RecordAbortedRun(ctx, run); err != nil {
		o.logger.Error("failed to record locked-out run", "error", err)
	}
	o.logger.Error("run aborted, lock held", "error", cause)
}

func (o *Orchestrator) completeRun(ctx context.Context, run *domain.PipelineRun, result *RunResult, fetched int, status domain.RunStatus) {
	counters := domain.RunCounters{
		ItemsFetched:   fetched,
		ItemsProcessed: result.Processed,
		ItemsRetried:   result.Retried,
		ItemsFailed:    result.Failed,
		ItemsSkipped:   result.Skipped,
	}
	if err := o.runs.CompleteRun(ctx, run.ID, counters, status); err != nil {
		o.logger.Error("failed to record run completion", "run_id", run.ID, "error", err)
	}
}
