package domain_test

import (
	"testing"
	"time"

	"github.com/curatorhq/curator/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestNewPipelineRun(t *testing.T) {
	t.Parallel()

	run := domain.NewPipelineRun(true)
	assert.Equal(t, domain.RunStatusRunning, run.Status)
	assert.True(t, run.DryRun)
	assert.Nil(t, run.CompletedAt)
	assert.NotEqual(t, run.ID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestPipelineRunDuration(t *testing.T) {
	t.Parallel()

	started := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	run := &domain.PipelineRun{StartedAt: started}

	t.Run("still running", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 90*time.Second, run.Duration(started.Add(90*time.Second)))
	})

	t.Run("completed", func(t *testing.T) {
		t.Parallel()
		completed := started.Add(5 * time.Minute)
		done := &domain.PipelineRun{StartedAt: started, CompletedAt: &completed}
		assert.Equal(t, 5*time.Minute, done.Duration(started.Add(time.Hour)))
	})
}

func TestPipelineRunFailureRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		processed int
		failed    int
		want      float64
	}{
		{"nothing attempted", 0, 0, 0},
		{"all succeeded", 10, 0, 0},
		{"all failed", 0, 4, 1},
		{"one in four", 3, 1, 0.25},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			run := &domain.PipelineRun{
				RunCounters: domain.RunCounters{
					ItemsProcessed: tc.processed,
					ItemsFailed:    tc.failed,
				},
			}
			assert.InDelta(t, tc.want, run.FailureRate(), 1e-9)
		})
	}
}
