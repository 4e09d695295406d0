package fetch_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/curatorhq/curator/internal/domain"
	"github.com/curatorhq/curator/internal/fetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("content"), 0o644))
}

func TestInboxFetcher(t *testing.T) {
	t.Parallel()

	t.Run("yields one candidate per markdown file", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeFile(t, dir, "First Clip.md")
		writeFile(t, dir, "Second Clip.md")
		writeFile(t, dir, "notes.txt")
		require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0o755))

		f := fetch.NewInboxFetcher(dir, domain.CategoryArticle, slog.Default())
		candidates, err := f.Fetch(context.Background())
		require.NoError(t, err)

		require.Len(t, candidates, 2)
		titles := []string{candidates[0].Title, candidates[1].Title}
		assert.ElementsMatch(t, []string{"First Clip", "Second Clip"}, titles)
		for _, c := range candidates {
			assert.Equal(t, domain.CategoryArticle, c.Category)
			assert.Equal(t, filepath.Join(dir, c.Title+".md"), c.SourceURL)
		}
	})

	t.Run("missing directory yields nothing", func(t *testing.T) {
		t.Parallel()
		f := fetch.NewInboxFetcher(filepath.Join(t.TempDir(), "absent"), domain.CategoryArticle, slog.Default())
		candidates, err := f.Fetch(context.Background())
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("same file maps to the same source identity", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeFile(t, dir, "Clip.md")

		f := fetch.NewInboxFetcher(dir, domain.CategoryArticle, slog.Default())
		first, err := f.Fetch(context.Background())
		require.NoError(t, err)
		second, err := f.Fetch(context.Background())
		require.NoError(t, err)

		require.Len(t, first, 1)
		require.Len(t, second, 1)
		assert.Equal(t, domain.ItemID(first[0].SourceURL), domain.ItemID(second[0].SourceURL))
	})
}
