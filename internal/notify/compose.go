// Package notify turns run results into operator-facing desktop
// notifications. Composition is pure and separately testable; delivery is
// behind the Notifier interface and is best-effort.
package notify

import (
	"fmt"

	"github.com/curatorhq/curator/internal/pipeline"
)

// Title is the constant notification title. The surface groups
// notifications visually by title, so it never varies per branch.
const Title = "Content Pipeline"

// titleBudget caps the failure title in the message body. Display budget
// only, the stored title is untouched.
const titleBudget = 30

// Compose maps a run result to the notification title and message. The four
// branches are mutually exclusive and checked in priority order: dry run,
// empty run, failures, success.
func Compose(result pipeline.RunResult) (title, message string) {
	switch {
	case result.Skipped > 0:
		message = fmt.Sprintf("Dry run: %d items previewed", result.Skipped)

	case result.Processed == 0 && result.Failed == 0:
		message = "No items to process"

	case result.Failed > 0:
		message = fmt.Sprintf("Processed %d, Failed %d", result.Processed, result.Failed)
		if result.FirstFailureTitle != "" {
			message += ": " + truncate(result.FirstFailureTitle, titleBudget)
		}

	default:
		message = fmt.Sprintf("Processed %d items", result.Processed)
		if result.Retried > 0 {
			message += fmt.Sprintf(" (%d retried)", result.Retried)
		}
	}

	return Title, message
}

// truncate cuts on rune boundaries so a multibyte title never yields
// invalid UTF-8 in the message.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
