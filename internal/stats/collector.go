// Package stats derives trend, performance, and health signals from run
// history. Everything here is read-only aggregation; the thresholds encode
// the operational expectations for a pipeline that runs a few times a day.
package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/curatorhq/curator/internal/domain"
	"github.com/curatorhq/curator/internal/store"
)

// Health classification levels, ordered by severity.
type HealthStatus string

const (
	StatusHealthy HealthStatus = "healthy"
	StatusWarning HealthStatus = "warning"
	StatusError   HealthStatus = "error"
)

// Staleness thresholds: how long since the last completed run before the
// pipeline is considered stuck.
const (
	staleWarningAfter = 24 * time.Hour
	staleErrorAfter   = 48 * time.Hour
)

// Failure-rate thresholds applied to the last completed run.
const (
	failureRateWarning = 0.10
	failureRateError   = 0.25
)

// Average per-item processing time thresholds.
const (
	avgTimeWarning = 90 * time.Second
	avgTimeError   = 120 * time.Second
)

// maxRecommendations caps the advisory list.
const maxRecommendations = 5

// RunHistory is the slice of run storage the collector reads from.
type RunHistory interface {
	LastRun(ctx context.Context) (*domain.PipelineRun, error)
	LastCompletedRun(ctx context.Context) (*domain.PipelineRun, error)
	WindowTotals(ctx context.Context, from, to time.Time) (store.WindowTotals, error)
	AttemptDurations(ctx context.Context, from, to time.Time) (store.AttemptStats, error)
}

// LastRunSummary is the most recent run, flattened for reporting.
type LastRunSummary struct {
	ID          string     `json:"id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      string     `json:"status"`
	DryRun      bool       `json:"dry_run"`
	Processed   int        `json:"processed"`
	Retried     int        `json:"retried"`
	Failed      int        `json:"failed"`
	Skipped     int        `json:"skipped"`
}

// Trends compares the current window against the preceding one of equal
// length. Each field is "stable" when within ±5%, otherwise a signed
// percentage, or "n/a" when the preceding window has no data.
type Trends struct {
	Days      int    `json:"days"`
	Processed string `json:"processed"`
	Failed    string `json:"failed"`
}

// Performance aggregates per-item attempt durations over the window.
type Performance struct {
	Attempts  int   `json:"attempts"`
	AvgMs     int64 `json:"avg_ms"`
	SlowestMs int64 `json:"slowest_ms"`
	FastestMs int64 `json:"fastest_ms"`
}

// Health is the rule-based classification. Overall is the most severe of
// the three independent checks.
type Health struct {
	Overall     HealthStatus `json:"overall"`
	Staleness   HealthStatus `json:"staleness"`
	FailureRate HealthStatus `json:"failure_rate"`
	AvgTime     HealthStatus `json:"avg_time"`
}

// Report is the full operator-facing aggregation.
type Report struct {
	LastRun         *LastRunSummary `json:"last_run,omitempty"`
	Trends          Trends          `json:"trends"`
	Performance     Performance     `json:"performance"`
	Health          Health          `json:"health"`
	Recommendations []string        `json:"recommendations"`
}

// Collector builds reports from run history.
type Collector struct {
	history RunHistory
	logger  *slog.Logger
	now     func() time.Time
}

// NewCollector creates a Collector.
func NewCollector(history RunHistory, logger *slog.Logger) *Collector {
	return &Collector{
		history: history,
		logger:  logger.With("component", "stats_collector"),
		now:     time.Now,
	}
}

// Collect produces the report for the trailing window of the given number of
// days. A history with no runs at all yields a report with nil LastRun and
// an error-level staleness check.
func (c *Collector) Collect(ctx context.Context, days int) (*Report, error) {
	if days <= 0 {
		days = 7
	}
	now := c.now()

	report := &Report{
		Trends: Trends{Days: days},
	}

	last, err := c.history.LastRun(ctx)
	if err != nil && !errors.Is(err, store.ErrRunNotFound) {
		return nil, fmt.Errorf("failed to load last run: %w", err)
	}
	if last != nil {
		report.LastRun = summarize(last)
	}

	lastCompleted, err := c.history.LastCompletedRun(ctx)
	if err != nil && !errors.Is(err, store.ErrRunNotFound) {
		return nil, fmt.Errorf("failed to load last completed run: %w", err)
	}

	window := time.Duration(days) * 24 * time.Hour
	current, err := c.history.WindowTotals(ctx, now.Add(-window), now)
	if err != nil {
		return nil, fmt.Errorf("failed to sum current window: %w", err)
	}
	previous, err := c.history.WindowTotals(ctx, now.Add(-2*window), now.Add(-window))
	if err != nil {
		return nil, fmt.Errorf("failed to sum previous window: %w", err)
	}
	report.Trends.Processed = compare(previous.Processed, current.Processed)
	report.Trends.Failed = compare(previous.Failed, current.Failed)

	durations, err := c.history.AttemptDurations(ctx, now.Add(-window), now)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate attempt durations: %w", err)
	}
	report.Performance = Performance{
		Attempts:  durations.Count,
		AvgMs:     durations.Avg.Milliseconds(),
		SlowestMs: durations.Slowest.Milliseconds(),
		FastestMs: durations.Fastest.Milliseconds(),
	}

	report.Health = c.classify(now, lastCompleted, durations)
	report.Recommendations = recommend(report.Health)
	return report, nil
}

// classify runs the three independent health checks.
func (c *Collector) classify(now time.Time, lastCompleted *domain.PipelineRun, durations store.AttemptStats) Health {
	h := Health{
		Staleness:   StatusHealthy,
		FailureRate: StatusHealthy,
		AvgTime:     StatusHealthy,
	}

	switch {
	case lastCompleted == nil || lastCompleted.CompletedAt == nil:
		h.Staleness = StatusError
	case now.Sub(*lastCompleted.CompletedAt) > staleErrorAfter:
		h.Staleness = StatusError
	case now.Sub(*lastCompleted.CompletedAt) > staleWarningAfter:
		h.Staleness = StatusWarning
	}

	if lastCompleted != nil {
		switch rate := lastCompleted.FailureRate(); {
		case rate > failureRateError:
			h.FailureRate = StatusError
		case rate > failureRateWarning:
			h.FailureRate = StatusWarning
		}
	}

	if durations.Count > 0 {
		switch {
		case durations.Avg > avgTimeError:
			h.AvgTime = StatusError
		case durations.Avg > avgTimeWarning:
			h.AvgTime = StatusWarning
		}
	}

	h.Overall = mostSevere(h.Staleness, h.FailureRate, h.AvgTime)
	return h
}

// recommend derives advisory strings from the checks that fired, in fixed
// priority order with performance issues ahead of staleness issues.
func recommend(h Health) []string {
	var recs []string

	switch h.AvgTime {
	case StatusError:
		recs = append(recs, "Average processing time exceeds 120s; investigate the content adapter or reduce batch size")
	case StatusWarning:
		recs = append(recs, "Average processing time exceeds 90s; watch for adapter slowdown")
	}

	switch h.FailureRate {
	case StatusError:
		recs = append(recs, "More than 25% of the last run failed; inspect recent failures before the next run")
	case StatusWarning:
		recs = append(recs, "More than 10% of the last run failed; review recent item errors")
	}

	switch h.Staleness {
	case StatusError:
		recs = append(recs, "No completed run in over 48h; check the scheduler and run lock")
	case StatusWarning:
		recs = append(recs, "No completed run in over 24h; verify the pipeline schedule")
	}

	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

// compare formats the current window against the previous one. Within ±5%
// the trend reads "stable"; a previous window with no activity cannot anchor
// a percentage.
func compare(previous, current int) string {
	if previous == 0 {
		if current == 0 {
			return "stable"
		}
		return "n/a"
	}

	change := (float64(current) - float64(previous)) / float64(previous) * 100
	if change >= -5 && change <= 5 {
		return "stable"
	}
	return fmt.Sprintf("%+.0f%%", change)
}

func mostSevere(statuses ...HealthStatus) HealthStatus {
	overall := StatusHealthy
	for _, s := range statuses {
		if rank(s) > rank(overall) {
			overall = s
		}
	}
	return overall
}

func rank(s HealthStatus) int {
	switch s {
	case StatusError:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}

func summarize(run *domain.PipelineRun) *LastRunSummary {
	return &LastRunSummary{
		ID:          run.ID.String(),
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Status:      string(run.Status),
		DryRun:      run.DryRun,
		Processed:   run.ItemsProcessed,
		Retried:     run.ItemsRetried,
		Failed:      run.ItemsFailed,
		Skipped:     run.ItemsSkipped,
	}
}
