// Package retry decides what happens after an adapter invocation: whether
// the outcome was a success, a transient failure worth retrying, or a
// permanent failure, and how long to wait before the next attempt.
package retry

import "time"

// Outcome is the explicit classification of one adapter invocation.
type Outcome int

const (
	// OutcomeSuccess means the adapter produced a result.
	OutcomeSuccess Outcome = iota

	// OutcomeTransientFailure means the error is expected to be
	// recoverable given time (rate limit, timeout, flaky network).
	OutcomeTransientFailure

	// OutcomePermanentFailure means retrying cannot help (paywall,
	// deleted source).
	OutcomePermanentFailure
)

// String returns the outcome name as recorded in attempt history.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransientFailure:
		return "transient_failure"
	case OutcomePermanentFailure:
		return "permanent_failure"
	default:
		return "unknown"
	}
}

// defaultBackoff is the fixed delay table indexed by attempt count.
var defaultBackoff = []time.Duration{
	1 * time.Hour,
	4 * time.Hour,
	12 * time.Hour,
	24 * time.Hour,
}

// Policy is a pure function from attempt count to the delay before the next
// retry. It holds a fixed ordered table; an item that has already consumed
// every slot is exhausted and must not be retried again.
type Policy struct {
	delays []time.Duration
}

// NewPolicy creates a Policy with the given delay table. An empty table
// falls back to the default schedule.
func NewPolicy(delays []time.Duration) *Policy {
	if len(delays) == 0 {
		delays = defaultBackoff
	}
	// Copy so callers cannot mutate the table after construction.
	owned := make([]time.Duration, len(delays))
	copy(owned, delays)
	return &Policy{delays: owned}
}

// DefaultPolicy returns the Policy with the default 1h/4h/12h/24h table.
func DefaultPolicy() *Policy {
	return NewPolicy(nil)
}

// NextDelay looks up the delay for an item that has already failed
// attemptCount times. The second return value is false once the table is
// exhausted, which callers must treat as a forced permanent failure.
func (p *Policy) NextDelay(attemptCount int) (time.Duration, bool) {
	if attemptCount < 0 || attemptCount >= len(p.delays) {
		return 0, false
	}
	return p.delays[attemptCount], true
}

// MaxAttempts returns the number of retry slots in the table.
func (p *Policy) MaxAttempts() int {
	return len(p.delays)
}
