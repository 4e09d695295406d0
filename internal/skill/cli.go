package skill

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/curatorhq/curator/internal/domain"
)

// CLIConfig configures the subprocess-based invoker.
type CLIConfig struct {
	// Command is the executable to run, e.g. "claude".
	Command string

	// PluginDirs are passed as repeated --plugin-dir flags.
	PluginDirs []string

	// OutputDir is the directory tree the skill writes notes into.
	// Relative paths reported by the skill are resolved against it.
	OutputDir string

	// Skills maps an item category to the skill name to invoke.
	Skills map[domain.ItemCategory]string
}

// CLIInvoker runs the external skill as a subprocess, one invocation per
// item, and extracts the created note path from its stdout.
type CLIInvoker struct {
	cfg    CLIConfig
	logger *slog.Logger
}

// NewCLIInvoker creates a CLIInvoker. Returns an error when the config is
// missing the command or the output directory.
func NewCLIInvoker(cfg CLIConfig, logger *slog.Logger) (*CLIInvoker, error) {
	if cfg.Command == "" {
		return nil, errors.New("skill command cannot be empty")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("skill output directory cannot be empty")
	}
	return &CLIInvoker{
		cfg:    cfg,
		logger: logger.With("component", "cli_invoker"),
	}, nil
}

// Invoke runs the skill for one item. The context bounds the subprocess;
// when it expires the process is killed and the invocation reported as a
// timeout failure. Stdout is returned in Result.Output even on failure so
// the classifier can inspect it.
func (v *CLIInvoker) Invoke(ctx context.Context, item *domain.Item) (Result, error) {
	skillName, ok := v.cfg.Skills[item.Category]
	if !ok {
		return Result{}, fmt.Errorf("no skill configured for category %q", item.Category)
	}

	args := make([]string, 0, 2*len(v.cfg.PluginDirs)+3)
	for _, dir := range v.cfg.PluginDirs {
		args = append(args, "--plugin-dir", dir)
	}
	args = append(args, "--print", fmt.Sprintf("/%s %s", skillName, item.SourceURL))

	v.logger.Debug("invoking skill",
		"skill", skillName,
		"item_id", item.ID,
		"source_url", item.SourceURL)

	cmd := exec.CommandContext(ctx, v.cfg.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	output := stdout.String()

	if ctx.Err() == context.DeadlineExceeded {
		v.logger.Error("skill timed out", "skill", skillName, "elapsed", elapsed.Round(time.Second))
		return Result{Output: output}, fmt.Errorf("skill %s timed out after %s", skillName, elapsed.Round(time.Second))
	}
	if err != nil {
		errText := strings.TrimSpace(stderr.String())
		if errText == "" {
			errText = strings.TrimSpace(output)
		}
		v.logger.Error("skill failed",
			"skill", skillName,
			"elapsed", elapsed.Round(time.Second),
			"error", err)
		return Result{Output: output}, fmt.Errorf("skill %s failed: %v: %s", skillName, err, truncate(errText, 200))
	}

	notePath := v.extractNotePath(output)
	if notePath == "" {
		return Result{Output: output}, fmt.Errorf("skill %s completed but no note path found in output", skillName)
	}
	if _, statErr := os.Stat(notePath); statErr != nil {
		return Result{Output: output}, fmt.Errorf("skill %s reported note %s but the file is missing", skillName, notePath)
	}

	v.logger.Info("skill completed",
		"skill", skillName,
		"note", filepath.Base(notePath),
		"elapsed", elapsed.Round(time.Second))
	return Result{ResultLocation: notePath, Output: output}, nil
}

// Skill output mentions the created note in a handful of shapes:
// **Folder/Title.md**, `Folder/Title.md`, or prose like
// "saved the note to Folder/Title.md".
var (
	boldNoteRe     = regexp.MustCompile(`\*\*([^*]+\.md)\*\*`)
	backtickNoteRe = regexp.MustCompile("`([^`]+\\.md)`")
	proseNoteRe    = regexp.MustCompile(`(?i)(?:wrote|written|saved|created)[^\n]*?(?:to|at|in)\s+([A-Za-z][^\n]+?\.md)`)
)

// extractNotePath pulls the created note path out of skill stdout and
// resolves it against the output directory.
func (v *CLIInvoker) extractNotePath(output string) string {
	for _, re := range []*regexp.Regexp{boldNoteRe, backtickNoteRe, proseNoteRe} {
		if m := re.FindStringSubmatch(output); m != nil {
			return v.resolve(strings.TrimSpace(m[1]))
		}
	}
	return ""
}

func (v *CLIInvoker) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(v.cfg.OutputDir, path)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
