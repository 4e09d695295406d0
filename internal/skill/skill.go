// Package skill defines the invocation-adapter seam: one call per item that
// either produces a result location or fails. Whether a failure is worth
// retrying is not decided here; the retry classifier inspects the returned
// output text for permanent-failure signals.
package skill

import (
	"context"

	"github.com/curatorhq/curator/internal/domain"
)

// Result is what one adapter invocation produced. Output carries the raw
// adapter text even on failure so the classifier can pattern-match it.
type Result struct {
	// ResultLocation is where the generated content landed. Set only on
	// success.
	ResultLocation string

	// Output is the raw text the adapter emitted.
	Output string
}

// Invoker runs the external content-generation and evaluation step for one
// item. Implementations must honor ctx cancellation; the orchestrator bounds
// each invocation with a per-item timeout. A nil error means success and a
// populated ResultLocation.
type Invoker interface {
	Invoke(ctx context.Context, item *domain.Item) (Result, error)
}
