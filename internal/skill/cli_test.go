package skill

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/curatorhq/curator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInvoker(t *testing.T) *CLIInvoker {
	t.Helper()
	inv, err := NewCLIInvoker(CLIConfig{
		Command:   "claude",
		OutputDir: "/vault",
		Skills:    map[domain.ItemCategory]string{domain.CategoryArticle: "article-note"},
	}, slog.Default())
	require.NoError(t, err)
	return inv
}

func TestNewCLIInvokerValidation(t *testing.T) {
	t.Parallel()

	_, err := NewCLIInvoker(CLIConfig{OutputDir: "/vault"}, slog.Default())
	assert.Error(t, err, "command is required")

	_, err = NewCLIInvoker(CLIConfig{Command: "claude"}, slog.Default())
	assert.Error(t, err, "output directory is required")
}

func TestExtractNotePath(t *testing.T) {
	t.Parallel()

	inv := newTestInvoker(t)

	tests := []struct {
		name   string
		output string
		want   string
	}{
		{
			name:   "bold markdown reference",
			output: "Done! Created **Articles/Great Post.md** for you.",
			want:   filepath.Join("/vault", "Articles/Great Post.md"),
		},
		{
			name:   "backtick reference",
			output: "The note lives at `Articles/Great Post.md` now.",
			want:   filepath.Join("/vault", "Articles/Great Post.md"),
		},
		{
			name:   "prose reference",
			output: "I have saved the note to Articles/Great Post.md with three tags.",
			want:   filepath.Join("/vault", "Articles/Great Post.md"),
		},
		{
			name:   "absolute path kept as is",
			output: "Note written: **/tmp/out/Post.md**",
			want:   "/tmp/out/Post.md",
		},
		{
			name:   "no note mentioned",
			output: "Sorry, something went wrong.",
			want:   "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, inv.extractNotePath(tc.output))
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "abcde", truncate("abcdefgh", 5))
}
