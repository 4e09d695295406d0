package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/curatorhq/curator/internal/config"
	"github.com/curatorhq/curator/internal/platform/logger"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// slogGooseLogger adapts goose's logger to structured logging.
type slogGooseLogger struct{}

// Printf forwards goose messages to slog.Info.
func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	slog.Info(fmt.Sprintf(format, v...), "component", "migrations")
}

// Fatalf forwards goose fatal errors to slog.Error and exits.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	slog.Error(fmt.Sprintf(format, v...), "component", "migrations")
	os.Exit(1)
}

func migrateCommand(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	command := fs.String("cmd", "up", "migration command: up, down, status, version")
	dir := fs.String("dir", "migrations", "migrations directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Setup(cfg.Pipeline.LogLevel)

	goose.SetLogger(&slogGooseLogger{})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	start := time.Now()
	switch *command {
	case "up":
		err = goose.Up(db, *dir)
	case "down":
		err = goose.Down(db, *dir)
	case "status":
		err = goose.Status(db, *dir)
	case "version":
		err = goose.Version(db, *dir)
	default:
		return fmt.Errorf("unknown migration command %q", *command)
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", *command, err)
	}

	slog.Info("migration complete",
		"command", *command,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}
