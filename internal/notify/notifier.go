package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

// Notifier delivers a composed notification. Delivery failure is never
// fatal to a run; callers log it and move on.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// OSAScriptNotifier shows macOS desktop notifications via osascript.
type OSAScriptNotifier struct {
	logger *slog.Logger
}

// NewOSAScriptNotifier creates an OSAScriptNotifier.
func NewOSAScriptNotifier(logger *slog.Logger) *OSAScriptNotifier {
	return &OSAScriptNotifier{logger: logger.With("component", "notifier")}
}

// Notify displays the notification. The title and message are passed as
// osascript arguments, not interpolated into the script, so no quoting of
// user-controlled text is needed.
func (n *OSAScriptNotifier) Notify(ctx context.Context, title, message string) error {
	const script = `on run argv
	display notification (item 2 of argv) with title (item 1 of argv)
end run`

	cmd := exec.CommandContext(ctx, "osascript", "-e", script, title, message)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("osascript failed: %w (output: %s)", err, out)
	}

	n.logger.Debug("notification delivered", "title", title)
	return nil
}

// LogNotifier writes notifications to the structured log. It is the
// fallback on hosts without a notification surface.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

// Notify logs the notification at info level.
func (n *LogNotifier) Notify(_ context.Context, title, message string) error {
	n.logger.Info("notification", "title", title, "message", message)
	return nil
}
