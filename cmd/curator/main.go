// Package main implements the curator CLI: the pipeline runner, operator
// status and stats views, the dashboard server, and database migrations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/curatorhq/curator/internal/config"
	"github.com/curatorhq/curator/internal/notify"
	"github.com/curatorhq/curator/internal/pipeline"
	"github.com/curatorhq/curator/internal/platform/lock"
	"github.com/curatorhq/curator/internal/platform/logger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = runCommand(os.Args[2:])
	case "status":
		err = statusCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "serve":
		err = serveCommand(os.Args[2:])
	case "migrate":
		err = migrateCommand(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "curator %s: %v\n", os.Args[1], err)
		if errors.Is(err, lock.ErrLockHeld) {
			// Distinct exit code so schedulers can tell "already running"
			// from a real failure.
			os.Exit(3)
		}
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: curator <command> [flags]

commands:
  run      execute one pipeline pass
  status   show item queue and last run
  stats    show trends, performance and health
  serve    start the dashboard HTTP server
  migrate  run database migrations
`)
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "preview the batch without processing")
	limit := fs.Int("limit", 0, "cap the batch size (0 = no cap)")
	force := fs.Bool("force", false, "bypass the run lock")
	verbose := fs.Bool("verbose", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if *verbose {
		cfg.Pipeline.LogLevel = "debug"
	}
	log := logger.Setup(cfg.Pipeline.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	opts := pipeline.Options{
		Limit:  effectiveLimit(*limit, cfg.Pipeline.BatchLimit),
		DryRun: *dryRun,
		Force:  *force,
	}

	result, err := app.orchestrator.Run(ctx, opts)
	if err != nil {
		return err
	}

	title, message := notify.Compose(*result)
	if notifyErr := app.notifier.Notify(ctx, title, message); notifyErr != nil {
		log.Warn("notification delivery failed", "error", notifyErr)
	}

	fmt.Printf("Processed: %d, Retried: %d, Failed: %d, Skipped: %d\n",
		result.Processed, result.Retried, result.Failed, result.Skipped)
	return nil
}

// effectiveLimit lets the flag override the configured batch limit.
func effectiveLimit(flagLimit, configLimit int) int {
	if flagLimit > 0 {
		return flagLimit
	}
	return configLimit
}

func statusCommand(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.Setup("error")

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.printStatus(ctx, os.Stdout)
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	days := fs.Int("days", 7, "trailing window in days")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.Setup("error")

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.printStats(ctx, os.Stdout, *days)
}

func serveCommand(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.Setup(cfg.Pipeline.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.serve(ctx)
}
