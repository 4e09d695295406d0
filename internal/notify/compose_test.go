package notify_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/curatorhq/curator/internal/notify"
	"github.com/curatorhq/curator/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result pipeline.RunResult
		want   string
	}{
		{
			name:   "success with retries",
			result: pipeline.RunResult{Processed: 5, Retried: 2},
			want:   "Processed 5 items (2 retried)",
		},
		{
			name:   "success without retries",
			result: pipeline.RunResult{Processed: 3},
			want:   "Processed 3 items",
		},
		{
			name:   "nothing to do",
			result: pipeline.RunResult{},
			want:   "No items to process",
		},
		{
			name:   "dry run",
			result: pipeline.RunResult{Skipped: 4},
			want:   "Dry run: 4 items previewed",
		},
		{
			name: "failures with long title truncated to thirty characters",
			result: pipeline.RunResult{
				Processed:         3,
				Failed:            2,
				FirstFailureTitle: "A Very Long Article Title That Exceeds Thirty Characters",
			},
			want: "Processed 3, Failed 2: A Very Long Article Title That",
		},
		{
			name: "failures with short title kept whole",
			result: pipeline.RunResult{
				Processed:         1,
				Failed:            1,
				FirstFailureTitle: "Short",
			},
			want: "Processed 1, Failed 1: Short",
		},
		{
			name: "dry run wins over other counters",
			result: pipeline.RunResult{
				Processed: 2,
				Failed:    1,
				Skipped:   3,
			},
			want: "Dry run: 3 items previewed",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			title, message := notify.Compose(tc.result)
			assert.Equal(t, notify.Title, title, "title is constant across branches")
			assert.Equal(t, tc.want, message)
		})
	}
}

func TestComposeTruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()

	_, message := notify.Compose(pipeline.RunResult{
		Processed:         1,
		Failed:            1,
		FirstFailureTitle: strings.Repeat("é", 40),
	})

	require.True(t, utf8.ValidString(message), "truncation must never split a rune")
	kept := strings.TrimPrefix(message, "Processed 1, Failed 1: ")
	assert.Equal(t, 30, utf8.RuneCountInString(kept))
}
