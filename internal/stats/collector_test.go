package stats

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/curatorhq/curator/internal/domain"
	"github.com/curatorhq/curator/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHistory serves canned run history.
type fakeHistory struct {
	lastRun       *domain.PipelineRun
	lastCompleted *domain.PipelineRun
	current       store.WindowTotals
	previous      store.WindowTotals
	durations     store.AttemptStats
}

func (f *fakeHistory) LastRun(context.Context) (*domain.PipelineRun, error) {
	if f.lastRun == nil {
		return nil, store.ErrRunNotFound
	}
	return f.lastRun, nil
}

func (f *fakeHistory) LastCompletedRun(context.Context) (*domain.PipelineRun, error) {
	if f.lastCompleted == nil {
		return nil, store.ErrRunNotFound
	}
	return f.lastCompleted, nil
}

func (f *fakeHistory) WindowTotals(_ context.Context, _, to time.Time) (store.WindowTotals, error) {
	// The current window ends at now; the previous one ends a full window ago.
	if time.Since(to) < time.Minute {
		return f.current, nil
	}
	return f.previous, nil
}

func (f *fakeHistory) AttemptDurations(context.Context, time.Time, time.Time) (store.AttemptStats, error) {
	return f.durations, nil
}

func completedRun(completedAgo time.Duration, processed, failed int) *domain.PipelineRun {
	completed := time.Now().Add(-completedAgo)
	return &domain.PipelineRun{
		StartedAt:   completed.Add(-time.Minute),
		CompletedAt: &completed,
		Status:      domain.RunStatusCompleted,
		RunCounters: domain.RunCounters{
			ItemsProcessed: processed,
			ItemsFailed:    failed,
		},
	}
}

func collect(t *testing.T, history RunHistory) *Report {
	t.Helper()
	collector := NewCollector(history, slog.Default())
	report, err := collector.Collect(context.Background(), 7)
	require.NoError(t, err)
	return report
}

func TestCollectHealthyPipeline(t *testing.T) {
	run := completedRun(2*time.Hour, 20, 0)
	report := collect(t, &fakeHistory{
		lastRun:       run,
		lastCompleted: run,
		durations:     store.AttemptStats{Count: 20, Avg: 30 * time.Second},
	})

	assert.Equal(t, StatusHealthy, report.Health.Overall)
	assert.Equal(t, StatusHealthy, report.Health.Staleness)
	assert.Equal(t, StatusHealthy, report.Health.FailureRate)
	assert.Equal(t, StatusHealthy, report.Health.AvgTime)
	assert.Empty(t, report.Recommendations)
	require.NotNil(t, report.LastRun)
	assert.Equal(t, 20, report.LastRun.Processed)
}

func TestCollectEmptyHistory(t *testing.T) {
	report := collect(t, &fakeHistory{})

	assert.Nil(t, report.LastRun)
	assert.Equal(t, StatusError, report.Health.Staleness, "no runs at all reads as fully stale")
	assert.Equal(t, StatusError, report.Health.Overall)
}

func TestStalenessThresholds(t *testing.T) {
	tests := []struct {
		name string
		ago  time.Duration
		want HealthStatus
	}{
		{"fresh", 6 * time.Hour, StatusHealthy},
		{"over 24h", 30 * time.Hour, StatusWarning},
		{"over 48h", 50 * time.Hour, StatusError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			run := completedRun(tc.ago, 5, 0)
			report := collect(t, &fakeHistory{lastRun: run, lastCompleted: run})
			assert.Equal(t, tc.want, report.Health.Staleness)
		})
	}
}

func TestFailureRateThresholds(t *testing.T) {
	tests := []struct {
		name      string
		processed int
		failed    int
		want      HealthStatus
	}{
		{"all good", 10, 0, StatusHealthy},
		{"at 10 percent stays healthy", 9, 1, StatusHealthy},
		{"over 10 percent warns", 8, 2, StatusWarning},
		{"over 25 percent errors", 5, 5, StatusError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			run := completedRun(time.Hour, tc.processed, tc.failed)
			report := collect(t, &fakeHistory{lastRun: run, lastCompleted: run})
			assert.Equal(t, tc.want, report.Health.FailureRate)
		})
	}
}

func TestAvgTimeThresholds(t *testing.T) {
	tests := []struct {
		name string
		avg  time.Duration
		want HealthStatus
	}{
		{"fast", 45 * time.Second, StatusHealthy},
		{"over 90s warns", 100 * time.Second, StatusWarning},
		{"over 120s errors", 150 * time.Second, StatusError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			run := completedRun(time.Hour, 5, 0)
			report := collect(t, &fakeHistory{
				lastRun:       run,
				lastCompleted: run,
				durations:     store.AttemptStats{Count: 5, Avg: tc.avg},
			})
			assert.Equal(t, tc.want, report.Health.AvgTime)
		})
	}
}

func TestAvgTimeIgnoredWithoutAttempts(t *testing.T) {
	run := completedRun(time.Hour, 0, 0)
	report := collect(t, &fakeHistory{
		lastRun:       run,
		lastCompleted: run,
		durations:     store.AttemptStats{Count: 0, Avg: 10 * time.Minute},
	})
	assert.Equal(t, StatusHealthy, report.Health.AvgTime,
		"an empty window has no average worth judging")
}

func TestOverallIsMostSevereCheck(t *testing.T) {
	// Stale enough to warn, failing hard enough to error.
	run := completedRun(30*time.Hour, 2, 8)
	report := collect(t, &fakeHistory{lastRun: run, lastCompleted: run})

	assert.Equal(t, StatusWarning, report.Health.Staleness)
	assert.Equal(t, StatusError, report.Health.FailureRate)
	assert.Equal(t, StatusError, report.Health.Overall)
}

func TestRecommendationsOrderAndCap(t *testing.T) {
	h := Health{
		AvgTime:     StatusError,
		FailureRate: StatusWarning,
		Staleness:   StatusError,
	}
	recs := recommend(h)

	require.NotEmpty(t, recs)
	assert.LessOrEqual(t, len(recs), maxRecommendations)
	assert.Contains(t, recs[0], "processing time", "performance advice comes first")
	assert.Contains(t, recs[len(recs)-1], "48h", "staleness advice comes last")
}

func TestRecommendationsEmptyWhenHealthy(t *testing.T) {
	assert.Empty(t, recommend(Health{
		Staleness:   StatusHealthy,
		FailureRate: StatusHealthy,
		AvgTime:     StatusHealthy,
	}))
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		previous int
		current  int
		want     string
	}{
		{"identical", 100, 100, "stable"},
		{"within five percent up", 100, 104, "stable"},
		{"within five percent down", 100, 96, "stable"},
		{"clear increase", 100, 150, "+50%"},
		{"clear decrease", 100, 60, "-40%"},
		{"both empty", 0, 0, "stable"},
		{"no baseline", 0, 7, "n/a"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, compare(tc.previous, tc.current))
		})
	}
}

func TestCollectTrends(t *testing.T) {
	run := completedRun(time.Hour, 10, 0)
	report := collect(t, &fakeHistory{
		lastRun:       run,
		lastCompleted: run,
		current:       store.WindowTotals{Processed: 30, Failed: 3},
		previous:      store.WindowTotals{Processed: 20, Failed: 3},
	})

	assert.Equal(t, 7, report.Trends.Days)
	assert.Equal(t, "+50%", report.Trends.Processed)
	assert.Equal(t, "stable", report.Trends.Failed)
}
