// Package lock provides the process-wide run lock that keeps two pipeline
// runs from executing concurrently.
//
// The lock is a PostgreSQL session-scoped advisory lock held on a dedicated
// connection. Advisory locks die with the session, so a crashed holder never
// leaves a stale lock behind; the next run simply acquires it. There is
// deliberately no timeout: a run is expected to finish well inside the
// shortest retry interval, so a held lock is an operator-visible error, not
// something to wait out.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// runLockKey is the fixed advisory lock key for the pipeline. All processes
// sharing a database contend on the same key.
const runLockKey int64 = 0x63757261746f7201

// ErrLockHeld is the sentinel for "another run holds the pipeline lock".
// Use errors.Is against this; the concrete *HeldError carries the holder.
var ErrLockHeld = errors.New("pipeline lock is held")

// HeldError reports a failed acquisition along with the backend process ID
// of the current holder, when it could be determined.
type HeldError struct {
	HolderPID int
}

func (e *HeldError) Error() string {
	if e.HolderPID > 0 {
		return fmt.Sprintf("pipeline lock is held by process %d", e.HolderPID)
	}
	return "pipeline lock is held by another process"
}

func (e *HeldError) Unwrap() error { return ErrLockHeld }

// RunLock acquires and releases the pipeline's advisory lock.
type RunLock struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRunLock creates a RunLock backed by the given database.
func NewRunLock(db *sql.DB, logger *slog.Logger) *RunLock {
	return &RunLock{
		db:     db,
		logger: logger.With("component", "run_lock"),
	}
}

// Acquire attempts to take the pipeline lock without blocking. On success it
// returns a release function that must be called on every exit path; the
// lock is pinned to a dedicated connection so it also clears if the process
// dies. On contention it returns a *HeldError naming the holder.
func (l *RunLock) Acquire(ctx context.Context) (func(), error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock connection: %w", err)
	}

	var acquired bool
	err = conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, runLockKey).Scan(&acquired)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to acquire pipeline lock: %w", err)
	}

	if !acquired {
		held := &HeldError{HolderPID: l.holderPID(ctx)}
		_ = conn.Close()
		return nil, held
	}

	l.logger.Debug("pipeline lock acquired")

	release := func() {
		// Unlock explicitly before returning the connection to the pool;
		// closing the session would release it too, but only implicitly.
		if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, runLockKey); err != nil {
			l.logger.Error("failed to release pipeline lock", "error", err)
		}
		if err := conn.Close(); err != nil {
			l.logger.Error("failed to close lock connection", "error", err)
		}
		l.logger.Debug("pipeline lock released")
	}

	return release, nil
}

// holderPID looks up the backend PID currently holding the lock. Best
// effort: returns 0 when the holder cannot be determined.
func (l *RunLock) holderPID(ctx context.Context) int {
	// Advisory lock keys are split across classid/objid as the high and
	// low 32 bits of the 64-bit key.
	query := `
		SELECT pid FROM pg_locks
		WHERE locktype = 'advisory'
		  AND classid = ($1::bigint >> 32)::int
		  AND objid = ($1::bigint & x'ffffffff'::bigint)::oid
		  AND granted
		LIMIT 1
	`

	var pid int
	if err := l.db.QueryRowContext(ctx, query, runLockKey).Scan(&pid); err != nil {
		l.logger.Debug("could not determine lock holder", "error", err)
		return 0
	}
	return pid
}
