package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/josephgoksu/loomboard/internal/task"
)

const taskColumns = `id, user_id, title, description, status, priority, tags, due_date,
	sort_order, archived, is_active, created_at, updated_at`

type taskRowScanner interface {
	Scan(dest ...any) error
}

func scanTaskRow(row taskRowScanner) (task.Task, error) {
	var t task.Task
	var userID, desc sql.NullString
	var tagsJSON string
	var dueDate sql.NullInt64
	var archived, active int

	err := row.Scan(
		&t.ID, &userID, &t.Title, &desc, &t.Status, &t.Priority, &tagsJSON, &dueDate,
		&t.Order, &archived, &active, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return t, err
	}

	t.UserID = userID.String
	t.Description = desc.String
	t.Archived = archived != 0
	t.IsActive = active != 0
	if dueDate.Valid {
		v := dueDate.Int64
		t.DueDate = &v
	}
	if tagsJSON != "" {
		_ = json.Unmarshal([]byte(tagsJSON), &t.Tags)
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return t, nil
}

func collectTasks(rows *sql.Rows) ([]task.Task, error) {
	defer func() { _ = rows.Close() }()

	tasks := []task.Task{}
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask returns nil, nil when the task does not exist.
func (x *sqlTx) GetTask(id string) (*task.Task, error) {
	row := x.tx.QueryRowContext(x.ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTaskRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return &t, nil
}

// ListTasks returns the owner's tasks in creation order.
func (x *sqlTx) ListTasks(owner string, q task.Query) ([]task.Task, error) {
	var where []string
	args := []any{owner, boolInt(q.Archived)}
	where = append(where, "user_id = ?", "archived = ?")
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}
	if q.ActiveOnly {
		where = append(where, "is_active = 1")
	}

	rows, err := x.tx.QueryContext(x.ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE `+strings.Join(where, " AND ")+` ORDER BY created_at, rowid`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return collectTasks(rows)
}

// ListDoneBefore returns non-archived done tasks last updated before cutoff.
func (x *sqlTx) ListDoneBefore(cutoff int64) ([]task.Task, error) {
	rows, err := x.tx.QueryContext(x.ctx,
		`SELECT `+taskColumns+` FROM tasks
		WHERE status = ? AND archived = 0 AND updated_at < ?
		ORDER BY updated_at`, string(task.StatusDone), cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale done tasks: %w", err)
	}
	return collectTasks(rows)
}

// MaxOrder returns the highest order in a column, 0 if the column is empty.
func (x *sqlTx) MaxOrder(owner string, status task.Status) (float64, error) {
	var highest sql.NullFloat64
	err := x.tx.QueryRowContext(x.ctx,
		`SELECT MAX(sort_order) FROM tasks WHERE user_id = ? AND status = ? AND archived = 0`,
		owner, string(status)).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("max order: %w", err)
	}
	if !highest.Valid || highest.Float64 < 0 {
		return 0, nil
	}
	return highest.Float64, nil
}

// InsertTask writes a new task, assigning an ID if none is set.
func (x *sqlTx) InsertTask(t *task.Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(t.Tags)

	_, err := x.tx.ExecContext(x.ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, nullString(t.UserID), t.Title, nullString(t.Description), string(t.Status), string(t.Priority),
		string(tagsJSON), nullInt(t.DueDate), t.Order, boolInt(t.Archived), boolInt(t.IsActive),
		t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", t.Title, err)
	}
	return nil
}

// UpdateTask rewrites every mutable column of an existing task.
func (x *sqlTx) UpdateTask(t *task.Task) error {
	tagsJSON, _ := json.Marshal(t.Tags)
	res, err := x.tx.ExecContext(x.ctx, `
		UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, tags = ?,
			due_date = ?, sort_order = ?, archived = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`, t.Title, nullString(t.Description), string(t.Status), string(t.Priority), string(tagsJSON),
		nullInt(t.DueDate), t.Order, boolInt(t.Archived), boolInt(t.IsActive), t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &task.NotFoundError{ID: t.ID}
	}
	return nil
}

// DeleteTask removes a task and every history entry that references it.
func (x *sqlTx) DeleteTask(id string) error {
	if _, err := x.tx.ExecContext(x.ctx, `DELETE FROM activity_history WHERE task_id = ?`, id); err != nil {
		return fmt.Errorf("delete history for %s: %w", id, err)
	}
	if _, err := x.tx.ExecContext(x.ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}
