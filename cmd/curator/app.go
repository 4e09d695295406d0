package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/curatorhq/curator/internal/api"
	"github.com/curatorhq/curator/internal/config"
	"github.com/curatorhq/curator/internal/domain"
	"github.com/curatorhq/curator/internal/fetch"
	"github.com/curatorhq/curator/internal/notify"
	"github.com/curatorhq/curator/internal/pipeline"
	"github.com/curatorhq/curator/internal/platform/gemini"
	"github.com/curatorhq/curator/internal/platform/lock"
	"github.com/curatorhq/curator/internal/platform/postgres"
	"github.com/curatorhq/curator/internal/retry"
	"github.com/curatorhq/curator/internal/skill"
	"github.com/curatorhq/curator/internal/stats"
	"github.com/curatorhq/curator/internal/store"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// application holds the wired components shared by the CLI commands.
type application struct {
	cfg          *config.Config
	logger       *slog.Logger
	db           *sql.DB
	items        store.ItemStore
	runs         store.RunStore
	orchestrator *pipeline.Orchestrator
	notifier     notify.Notifier
	collector    *stats.Collector
}

// newApplication opens the database and wires every component from config.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	items := postgres.NewPostgresItemStore(db, logger)
	runs := postgres.NewPostgresRunStore(db, logger)
	runLock := lock.NewRunLock(db, logger)
	fetcher := fetch.NewInboxFetcher(cfg.Pipeline.InboxDir, domain.CategoryArticle, logger)

	invoker, err := buildInvoker(ctx, cfg, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	policy := retry.NewPolicy(backoffTable(cfg.Pipeline.BackoffHours))
	classifier := retry.NewClassifier(cfg.Pipeline.PermanentPatterns)

	orchestrator := pipeline.NewOrchestrator(
		items,
		runs,
		runLock,
		fetcher,
		invoker,
		policy,
		classifier,
		pipeline.Config{ItemTimeout: time.Duration(cfg.Pipeline.ItemTimeoutSeconds) * time.Second},
		logger,
	)

	var notifier notify.Notifier
	if runtime.GOOS == "darwin" {
		notifier = notify.NewOSAScriptNotifier(logger)
	} else {
		notifier = notify.NewLogNotifier(logger)
	}

	return &application{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		items:        items,
		runs:         runs,
		orchestrator: orchestrator,
		notifier:     notifier,
		collector:    stats.NewCollector(runs, logger),
	}, nil
}

// Close releases the database connection pool.
func (a *application) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", "error", err)
	}
}

// buildInvoker picks the configured adapter: the subprocess skill runner or
// the in-process Gemini evaluator. Config validation guarantees exactly one
// is configured.
func buildInvoker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (skill.Invoker, error) {
	if cfg.Skill.Command != "" {
		skills := make(map[domain.ItemCategory]string, len(cfg.Skill.Skills))
		for category, name := range cfg.Skill.Skills {
			skills[domain.ItemCategory(category)] = name
		}
		return skill.NewCLIInvoker(skill.CLIConfig{
			Command:    cfg.Skill.Command,
			PluginDirs: cfg.Skill.PluginDirs,
			OutputDir:  cfg.Skill.OutputDir,
			Skills:     skills,
		}, logger)
	}

	if cfg.LLM.GeminiAPIKey != "" {
		return gemini.NewEvaluator(ctx, logger, gemini.Config{
			APIKey:             cfg.LLM.GeminiAPIKey,
			ModelName:          cfg.LLM.ModelName,
			PromptTemplatePath: cfg.LLM.PromptTemplatePath,
			OutputDir:          cfg.LLM.OutputDir,
		})
	}

	return nil, errors.New("no adapter configured")
}

// backoffTable converts configured backoff hours to durations.
func backoffTable(hours []int) []time.Duration {
	delays := make([]time.Duration, len(hours))
	for i, h := range hours {
		delays[i] = time.Duration(h) * time.Hour
	}
	return delays
}

// printStatus writes the operator status view: queue counts, the most recent
// run, and its per-item attempts.
func (a *application) printStatus(ctx context.Context, w io.Writer) error {
	counts, err := a.items.CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to count items: %w", err)
	}

	fmt.Fprintln(w, "Item Queue:")
	for _, status := range []domain.ItemStatus{
		domain.ItemStatusNew,
		domain.ItemStatusProcessing,
		domain.ItemStatusRetryScheduled,
		domain.ItemStatusPermanentlyFailed,
		domain.ItemStatusDone,
	} {
		fmt.Fprintf(w, "  %-19s %d\n", string(status)+":", counts[status])
	}

	run, err := a.runs.LastRun(ctx)
	if store.IsNotFoundError(err) {
		fmt.Fprintln(w, "\nNo runs recorded yet.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load last run: %w", err)
	}

	fmt.Fprintf(w, "\nLast Run (%s):\n", run.Status)
	fmt.Fprintf(w, "  Started:   %s\n", run.StartedAt.Local().Format(time.RFC1123))
	if run.CompletedAt != nil {
		fmt.Fprintf(w, "  Duration:  %s\n", run.CompletedAt.Sub(run.StartedAt).Round(time.Second))
	}
	fmt.Fprintf(w, "  Fetched:   %d\n", run.ItemsFetched)
	fmt.Fprintf(w, "  Processed: %d\n", run.ItemsProcessed)
	fmt.Fprintf(w, "  Retried:   %d\n", run.ItemsRetried)
	fmt.Fprintf(w, "  Failed:    %d\n", run.ItemsFailed)

	attempts, err := a.runs.AttemptsForRun(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("failed to load attempts: %w", err)
	}
	if len(attempts) > 0 {
		fmt.Fprintln(w, "\nAttempts:")
		for _, att := range attempts {
			fmt.Fprintf(w, "  [%s] %s (%s)\n", att.Outcome, att.Title, att.Duration.Round(time.Millisecond))
		}
	}

	return nil
}

// printStats writes the trends/performance/health report.
func (a *application) printStats(ctx context.Context, w io.Writer, days int) error {
	report, err := a.collector.Collect(ctx, days)
	if err != nil {
		return fmt.Errorf("failed to collect stats: %w", err)
	}

	if report.LastRun != nil {
		fmt.Fprintf(w, "Last run: %s (%s)\n", report.LastRun.StartedAt.Local().Format(time.RFC1123), report.LastRun.Status)
	} else {
		fmt.Fprintln(w, "Last run: none")
	}

	fmt.Fprintf(w, "\nTrends (last %d days vs previous %d):\n", report.Trends.Days, report.Trends.Days)
	fmt.Fprintf(w, "  Processed: %s\n", report.Trends.Processed)
	fmt.Fprintf(w, "  Failed:    %s\n", report.Trends.Failed)

	fmt.Fprintln(w, "\nPerformance:")
	fmt.Fprintf(w, "  Attempts: %d\n", report.Performance.Attempts)
	fmt.Fprintf(w, "  Avg:      %dms\n", report.Performance.AvgMs)
	fmt.Fprintf(w, "  Slowest:  %dms\n", report.Performance.SlowestMs)
	fmt.Fprintf(w, "  Fastest:  %dms\n", report.Performance.FastestMs)

	fmt.Fprintf(w, "\nHealth: %s\n", report.Health.Overall)
	fmt.Fprintf(w, "  Staleness:    %s\n", report.Health.Staleness)
	fmt.Fprintf(w, "  Failure rate: %s\n", report.Health.FailureRate)
	fmt.Fprintf(w, "  Avg time:     %s\n", report.Health.AvgTime)

	if len(report.Recommendations) > 0 {
		fmt.Fprintln(w, "\nRecommendations:")
		for _, rec := range report.Recommendations {
			fmt.Fprintf(w, "  - %s\n", rec)
		}
	}

	return nil
}

// serve runs the dashboard HTTP server until the context is cancelled.
func (a *application) serve(ctx context.Context) error {
	handler := api.NewHandler(a.collector, a.items, a.logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("dashboard server listening", "port", a.cfg.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
