package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the state of one pipeline run.
type RunStatus string

// Possible run status values.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunCounters holds the per-run item counters. ItemsFailed counts permanent
// failures only; transient failures show up in ItemsRetried.
type RunCounters struct {
	ItemsFetched   int
	ItemsProcessed int
	ItemsRetried   int
	ItemsFailed    int
	ItemsSkipped   int
}

// PipelineRun is the durable record of one orchestrator execution. At most
// one run has Status == RunStatusRunning at any time; the run lock is the
// mechanism that enforces that, the row is the observational record of it.
type PipelineRun struct {
	ID          uuid.UUID
	StartedAt   time.Time
	CompletedAt *time.Time
	Status      RunStatus
	DryRun      bool
	RunCounters
}

// NewPipelineRun creates a run record in the Running status.
func NewPipelineRun(dryRun bool) *PipelineRun {
	return &PipelineRun{
		ID:        uuid.New(),
		StartedAt: time.Now().UTC(),
		Status:    RunStatusRunning,
		DryRun:    dryRun,
	}
}

// Duration returns how long the run took, or how long it has been running if
// it has not completed yet.
func (r *PipelineRun) Duration(now time.Time) time.Duration {
	if r.CompletedAt != nil {
		return r.CompletedAt.Sub(r.StartedAt)
	}
	return now.Sub(r.StartedAt)
}

// FailureRate returns the fraction of attempted items that failed
// permanently, in [0, 1]. A run that attempted nothing has a zero rate.
func (r *PipelineRun) FailureRate() float64 {
	attempted := r.ItemsProcessed + r.ItemsFailed
	if attempted == 0 {
		return 0
	}
	return float64(r.ItemsFailed) / float64(attempted)
}
