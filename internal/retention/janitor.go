// Package retention runs the daily maintenance jobs: pruning old activity
// history and archiving stale finished tasks.
package retention

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// HistoryRetention is how long activity history entries are kept.
	HistoryRetention = 90 * 24 * time.Hour

	// BatchSize caps how many entries one janitor run deletes.
	BatchSize = 1000
)

// HistoryPruner deletes up to limit history entries created before cutoff
// (epoch ms) and returns how many were removed.
type HistoryPruner interface {
	DeleteHistoryBefore(ctx context.Context, cutoff int64, limit int) (int, error)
}

// Janitor deletes expired activity history, one bounded batch per run.
// A backlog larger than BatchSize drains over successive days.
type Janitor struct {
	store HistoryPruner
	now   func() time.Time
	log   log.FieldLogger
}

// NewJanitor creates a janitor over store.
func NewJanitor(store HistoryPruner, logger log.FieldLogger) *Janitor {
	return &Janitor{store: store, now: time.Now, log: logger}
}

// Name implements Job.
func (j *Janitor) Name() string { return "history_retention" }

// Run deletes at most BatchSize entries older than HistoryRetention.
func (j *Janitor) Run(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-HistoryRetention).UnixMilli()
	deleted, err := j.store.DeleteHistoryBefore(ctx, cutoff, BatchSize)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	j.log.WithFields(log.Fields{"deleted": deleted, "cutoff": cutoff}).Info("activity history pruned")
	return deleted, nil
}

// StaleArchiver archives done tasks untouched for longer than age.
type StaleArchiver interface {
	ArchiveStale(ctx context.Context, age time.Duration) (int, error)
}

// AutoArchiver archives finished tasks that have sat in the done column
// longer than After. A zero After disables it.
type AutoArchiver struct {
	tasks StaleArchiver
	after time.Duration
	log   log.FieldLogger
}

func NewAutoArchiver(tasks StaleArchiver, after time.Duration, logger log.FieldLogger) *AutoArchiver {
	return &AutoArchiver{tasks: tasks, after: after, log: logger}
}

// Name implements Job.
func (a *AutoArchiver) Name() string { return "auto_archive" }

// Run implements Job.
func (a *AutoArchiver) Run(ctx context.Context) (int, error) {
	if a.after <= 0 {
		return 0, nil
	}
	n, err := a.tasks.ArchiveStale(ctx, a.after)
	if err != nil {
		return 0, fmt.Errorf("archive stale tasks: %w", err)
	}
	if n > 0 {
		a.log.WithFields(log.Fields{"archived": n, "after": a.after.String()}).Info("done tasks auto-archived")
	}
	return n, nil
}
