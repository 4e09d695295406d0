package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/curatorhq/curator/internal/domain"
)

// InboxFetcher yields one candidate per markdown file dropped into a local
// inbox directory. Captured clips land there from browser extensions and
// share sheets; the file path doubles as the source identity, so the same
// clip is never offered as two different items.
type InboxFetcher struct {
	dir      string
	category domain.ItemCategory
	logger   *slog.Logger
}

// NewInboxFetcher creates an InboxFetcher over the given directory. The
// category is applied to every candidate the directory produces.
func NewInboxFetcher(dir string, category domain.ItemCategory, logger *slog.Logger) *InboxFetcher {
	return &InboxFetcher{
		dir:      dir,
		category: category,
		logger:   logger.With("component", "inbox_fetcher"),
	}
}

// Fetch lists the inbox and returns a candidate per markdown file. A missing
// inbox directory yields no candidates rather than an error, so the pipeline
// still runs when nothing has been captured yet.
func (f *InboxFetcher) Fetch(ctx context.Context) ([]Candidate, error) {
	entries, err := os.ReadDir(f.dir)
	if os.IsNotExist(err) {
		f.logger.Debug("inbox directory does not exist", "dir", f.dir)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox directory %s: %w", f.dir, err)
	}

	var candidates []Candidate
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		path := filepath.Join(f.dir, entry.Name())
		candidates = append(candidates, Candidate{
			SourceURL: path,
			Title:     strings.TrimSuffix(entry.Name(), ".md"),
			Category:  f.category,
		})
	}

	f.logger.Debug("inbox scan complete", "dir", f.dir, "candidates", len(candidates))
	return candidates, nil
}
