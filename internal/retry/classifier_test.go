package retry_test

import (
	"errors"
	"testing"

	"github.com/curatorhq/curator/internal/retry"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	classifier := retry.NewClassifier(nil)

	tests := []struct {
		name   string
		err    error
		output string
		want   retry.Outcome
	}{
		{
			name: "nil error is success regardless of output",
			err:  nil, output: "paywall mentioned but it worked",
			want: retry.OutcomeSuccess,
		},
		{
			name: "plain failure is transient",
			err:  errors.New("connection reset by peer"),
			want: retry.OutcomeTransientFailure,
		},
		{
			name: "timeout is transient",
			err:  errors.New("skill article-note timed out after 10m0s"),
			want: retry.OutcomeTransientFailure,
		},
		{
			name: "paywall in error text is permanent",
			err:  errors.New("content behind a paywall"),
			want: retry.OutcomePermanentFailure,
		},
		{
			name: "pattern in output is permanent even with generic error",
			err:  errors.New("exit status 1"),
			output: "I'm sorry, this appears to be Premium Content and I could " +
				"only extract the headline.",
			want: retry.OutcomePermanentFailure,
		},
		{
			name: "matching is case-insensitive",
			err:  errors.New("SUBSCRIPTION REQUIRED to view this page"),
			want: retry.OutcomePermanentFailure,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, classifier.Classify(tc.err, tc.output))
		})
	}
}

func TestClassifyCustomPatterns(t *testing.T) {
	t.Parallel()

	classifier := retry.NewClassifier([]string{"video removed"})

	assert.Equal(t, retry.OutcomePermanentFailure,
		classifier.Classify(errors.New("Video Removed by uploader"), ""))

	// Custom list replaces the defaults entirely.
	assert.Equal(t, retry.OutcomeTransientFailure,
		classifier.Classify(errors.New("behind a paywall"), ""))
}

func TestOutcomeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "success", retry.OutcomeSuccess.String())
	assert.Equal(t, "transient_failure", retry.OutcomeTransientFailure.String())
	assert.Equal(t, "permanent_failure", retry.OutcomePermanentFailure.String())
}
