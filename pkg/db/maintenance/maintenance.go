// Package maintenance keeps scope files compact and checks their integrity
// between builds.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"locgeo/pkg/db"
	"locgeo/pkg/store"
)

const lastRunStateKey = "maintenance_last_run"

// ErrCorrupt is returned when SQLite's integrity check reports problems.
var ErrCorrupt = errors.New("scope file failed integrity check")

// StateStore is the part of a record store maintenance needs.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
}

// Run checks integrity, checkpoints the WAL and vacuums one scope file.
// It is skipped when the last run is younger than interval.
// It blocks until completion.
func Run(ctx context.Context, s StateStore, d *db.DB, clock clockwork.Clock, interval time.Duration) (bool, error) {
	now := clock.Now().UTC()
	if last, ok := s.GetState(ctx, lastRunStateKey); ok {
		if t, err := time.Parse(time.RFC3339, last); err == nil && now.Sub(t) < interval {
			return false, nil
		}
	}

	slog.Debug("Starting scope file maintenance", "path", d.Path)
	if err := integrityCheck(ctx, d); err != nil {
		return false, err
	}
	if _, err := d.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
		return false, fmt.Errorf("wal checkpoint: %w", err)
	}
	if _, err := d.ExecContext(ctx, "VACUUM;"); err != nil {
		return false, fmt.Errorf("vacuum: %w", err)
	}

	if err := s.SetState(ctx, lastRunStateKey, now.Format(time.RFC3339)); err != nil {
		return false, fmt.Errorf("failed to update state: %w", err)
	}
	slog.Debug("Scope file maintenance completed", "path", d.Path)
	return true, nil
}

// RunAll maintains every scope file in set. A failing file is logged and
// does not stop the others; the first error is returned.
func RunAll(ctx context.Context, set *store.Set, clock clockwork.Clock, interval time.Duration) (int, error) {
	scopes, err := set.Scopes()
	if err != nil {
		return 0, err
	}
	var (
		done     int
		firstErr error
	)
	for _, scope := range scopes {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		ran, err := runFile(ctx, set.Path(scope), clock, interval)
		if err != nil {
			slog.Error("Maintenance failed", "scope", scope, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("scope %s: %w", scope, err)
			}
			continue
		}
		if ran {
			done++
		}
	}
	return done, firstErr
}

func runFile(ctx context.Context, path string, clock clockwork.Clock, interval time.Duration) (bool, error) {
	d, err := db.OpenExisting(path)
	if err != nil {
		return false, err
	}
	defer d.Close()
	return Run(ctx, store.NewSQLiteStore(d), d, clock, interval)
}

func integrityCheck(ctx context.Context, d *db.DB) error {
	rows, err := d.QueryContext(ctx, "PRAGMA integrity_check;")
	if err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return err
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %v", ErrCorrupt, problems)
	}
	return nil
}
