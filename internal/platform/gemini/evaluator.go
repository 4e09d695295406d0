// Package gemini implements the skill invoker seam with Google's Gemini
// API. It is the in-process alternative to the subprocess skill adapter:
// instead of shelling out, the item is summarized and relevance-checked by
// the model and the resulting note written directly into the output
// directory.
package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/curatorhq/curator/internal/domain"
	"github.com/curatorhq/curator/internal/skill"
	"google.golang.org/genai"
)

// Evaluator-specific errors.
var (
	// ErrInvalidConfig is returned when the evaluator configuration is incomplete.
	ErrInvalidConfig = errors.New("invalid gemini evaluator configuration")

	// ErrEmptyResponse is returned when the model produced no usable text.
	ErrEmptyResponse = errors.New("empty response from model")
)

// Config holds the Gemini-specific settings.
type Config struct {
	APIKey             string
	ModelName          string
	PromptTemplatePath string
	OutputDir          string
}

// Evaluator implements skill.Invoker using the Gemini API.
type Evaluator struct {
	logger         *slog.Logger
	client         *genai.Client
	model          string
	promptTemplate *template.Template
	outputDir      string
}

type promptData struct {
	Title     string
	SourceURL string
	Category  string
}

// NewEvaluator creates an Evaluator from the given config.
func NewEvaluator(ctx context.Context, logger *slog.Logger, cfg Config) (*Evaluator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key cannot be empty", ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("%w: output directory cannot be empty", ErrInvalidConfig)
	}

	tmpl := defaultPromptTemplate
	if cfg.PromptTemplatePath != "" {
		content, err := os.ReadFile(cfg.PromptTemplatePath)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read prompt template from %s: %v",
				ErrInvalidConfig, cfg.PromptTemplatePath, err)
		}
		tmpl, err = template.New("evaluate").Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse prompt template: %v", ErrInvalidConfig, err)
		}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidConfig, err)
	}

	return &Evaluator{
		logger:         logger.With("component", "gemini_evaluator"),
		client:         client,
		model:          cfg.ModelName,
		promptTemplate: tmpl,
		outputDir:      cfg.OutputDir,
	}, nil
}

// Invoke asks the model to evaluate and summarize one item, then writes the
// summary as a markdown note in the output directory. Model refusals (for
// example content it could not access) come back as errors carrying the
// model's text so the retry classifier can pattern-match them.
func (e *Evaluator) Invoke(ctx context.Context, item *domain.Item) (skill.Result, error) {
	prompt, err := e.buildPrompt(item)
	if err != nil {
		return skill.Result{}, err
	}

	e.logger.Debug("calling Gemini API", "item_id", item.ID, "model", e.model)

	resp, err := e.client.Models.GenerateContent(ctx, e.model, genai.Text(prompt), nil)
	if err != nil {
		return skill.Result{}, fmt.Errorf("gemini call failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return skill.Result{}, ErrEmptyResponse
	}

	// The model signals inaccessible content with a NOT-EXTRACTABLE line
	// followed by its reason; the reason text is what the classifier
	// inspects for permanent-failure patterns.
	if reason, refused := strings.CutPrefix(text, "NOT-EXTRACTABLE:"); refused {
		return skill.Result{Output: text}, fmt.Errorf("content not extractable: %s", strings.TrimSpace(reason))
	}

	notePath, err := e.writeNote(item, text)
	if err != nil {
		return skill.Result{Output: text}, err
	}

	e.logger.Info("evaluation note written", "item_id", item.ID, "note", filepath.Base(notePath))
	return skill.Result{ResultLocation: notePath, Output: text}, nil
}

func (e *Evaluator) buildPrompt(item *domain.Item) (string, error) {
	var buf bytes.Buffer
	err := e.promptTemplate.Execute(&buf, promptData{
		Title:     item.Title,
		SourceURL: item.SourceURL,
		Category:  string(item.Category),
	})
	if err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

func (e *Evaluator) writeNote(item *domain.Item, text string) (string, error) {
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := noteFileName(item)
	notePath := filepath.Join(e.outputDir, name)
	if err := os.WriteFile(notePath, []byte(text+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("failed to write note: %w", err)
	}
	return notePath, nil
}

// noteFileName builds a filesystem-safe markdown name from the item title,
// falling back to the item ID for untitled items.
func noteFileName(item *domain.Item) string {
	title := item.Title
	if title == "" {
		title = item.ID[:12]
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "\x00", "")
	return replacer.Replace(title) + ".md"
}

var defaultPromptTemplate = template.Must(template.New("evaluate").Parse(
	`You are evaluating captured content for a personal research library.

Title: {{.Title}}
Source: {{.SourceURL}}
Category: {{.Category}}

Read the source and produce a markdown note with a one-paragraph summary,
the key insight, and up to three topic tags. If the content cannot be
accessed (paywall, deleted, login required), respond with a single line
starting with "NOT-EXTRACTABLE:" followed by the reason.`))
