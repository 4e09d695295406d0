package retry

import "strings"

// defaultPermanentPatterns are phrases in adapter output that signal content
// which will never be extractable, so retrying is pointless. Matching is
// case-insensitive substring search over the adapter's output and error
// text. The list is configuration data: operators can replace it without
// touching the orchestrator.
var defaultPermanentPatterns = []string{
	"paywall",
	"behind a paywall",
	"subscription required",
	"subscribers only",
	"premium content",
	"sign in to read",
	"this article appears to be behind",
	"could only extract the headline",
	"copy/paste the article text",
}

// Classifier maps an adapter invocation outcome to an explicit Outcome
// variant. Permanent-failure detection is a match against the pattern list;
// a match short-circuits the retry path entirely.
type Classifier struct {
	patterns []string
}

// NewClassifier creates a Classifier with the given pattern list. An empty
// list falls back to the default patterns.
func NewClassifier(patterns []string) *Classifier {
	if len(patterns) == 0 {
		patterns = defaultPermanentPatterns
	}
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	return &Classifier{patterns: lowered}
}

// Classify turns the error and raw output of one adapter invocation into an
// Outcome. A nil error is a success regardless of output. Any failure whose
// output or error text matches a permanent pattern is permanent; everything
// else is transient and goes through the backoff schedule.
func (c *Classifier) Classify(err error, output string) Outcome {
	if err == nil {
		return OutcomeSuccess
	}

	haystack := strings.ToLower(output + "\n" + err.Error())
	for _, p := range c.patterns {
		if strings.Contains(haystack, p) {
			return OutcomePermanentFailure
		}
	}

	return OutcomeTransientFailure
}
