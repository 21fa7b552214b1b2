package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/josephgoksu/loomboard/internal/task"
	_ "modernc.org/sqlite"
)

// DBFileName is the database file inside the data directory.
const DBFileName = "board.db"

// SQLiteStore persists tasks and activity history in SQLite.
type SQLiteStore struct {
	db       *sql.DB
	basePath string
}

// NewSQLiteStore opens (and creates if needed) the board database under
// basePath. Pass ":memory:" for a throwaway in-memory store.
func NewSQLiteStore(basePath string) (*SQLiteStore, error) {
	var dbPath string
	if basePath == ":memory:" {
		dbPath = ":memory:"
	} else {
		if err := os.MkdirAll(basePath, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		dbPath = filepath.Join(basePath, DBFileName)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	store := &SQLiteStore{db: db, basePath: basePath}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

// initSchema creates the tables if they don't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		user_id TEXT,                        -- NULL only for rows imported before auth
		title TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL CHECK (status IN ('backlog', 'in_progress', 'blocked', 'done')),
		priority TEXT NOT NULL CHECK (priority IN ('low', 'medium', 'high', 'urgent')),
		tags TEXT NOT NULL DEFAULT '[]',     -- JSON array
		due_date INTEGER,                    -- epoch ms
		sort_order REAL NOT NULL DEFAULT 0,
		archived INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activity_history (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		field TEXT NOT NULL,
		old_value TEXT,                      -- canonical JSON, NULL when absent
		new_value TEXT,
		user_id TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_archived ON tasks(archived);
	CREATE INDEX IF NOT EXISTS idx_history_task ON activity_history(task_id);
	CREATE INDEX IF NOT EXISTS idx_history_user ON activity_history(user_id);
	CREATE INDEX IF NOT EXISTS idx_history_created ON activity_history(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn inside a single transaction, committing only if fn succeeds.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(tx task.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqlTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// sqlTx implements task.Tx on top of a database transaction.
type sqlTx struct {
	ctx context.Context
	tx  *sql.Tx
}

var _ task.Tx = (*sqlTx)(nil)

// DeleteHistoryBefore removes up to limit entries older than cutoff (epoch
// ms), oldest first, and returns how many were deleted.
func (s *SQLiteStore) DeleteHistoryBefore(ctx context.Context, cutoff int64, limit int) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM activity_history WHERE id IN (
			SELECT id FROM activity_history WHERE created_at < ? ORDER BY created_at LIMIT ?
		)`, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("delete old history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// CountHistory returns the number of history entries, for health reporting.
func (s *SQLiteStore) CountHistory(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}
