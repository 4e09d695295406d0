// Package fetch defines the fetch-collaborator seam: something that yields
// candidate items for the pipeline to consider. The orchestrator only
// requires a finite sequence per invocation; dedup against items already
// seen happens in the item store, not here.
package fetch

import (
	"context"

	"github.com/curatorhq/curator/internal/domain"
)

// Candidate is one piece of content offered to the pipeline.
type Candidate struct {
	SourceURL string
	Title     string
	Category  domain.ItemCategory
}

// Fetcher produces the candidate items for one pipeline run.
type Fetcher interface {
	Fetch(ctx context.Context) ([]Candidate, error)
}
