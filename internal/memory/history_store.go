package memory

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/josephgoksu/loomboard/internal/task"
)

// InsertHistory appends one entry. ID and CreatedAt are filled if unset.
func (x *sqlTx) InsertHistory(e *task.HistoryEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}
	_, err := x.tx.ExecContext(x.ctx, `
		INSERT INTO activity_history (id, task_id, field, old_value, new_value, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.TaskID, e.Field, nullText(e.OldValue), nullText(e.NewValue), e.UserID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert history %s.%s: %w", e.TaskID, e.Field, err)
	}
	return nil
}

// TaskHistory returns a task's entries, newest first.
func (x *sqlTx) TaskHistory(taskID string) ([]task.HistoryEntry, error) {
	rows, err := x.tx.QueryContext(x.ctx, `
		SELECT id, task_id, field, old_value, new_value, user_id, created_at
		FROM activity_history WHERE task_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query task history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []task.HistoryEntry{}
	for rows.Next() {
		var e task.HistoryEntry
		var oldV, newV sql.NullString
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Field, &oldV, &newV, &e.UserID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.OldValue = textPtr(oldV)
		e.NewValue = textPtr(newV)
		entries = append(entries, e)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return entries, nil
}

// RecentActivity returns a user's newest entries joined with task titles.
func (x *sqlTx) RecentActivity(userID string, limit int) ([]task.ActivityItem, error) {
	rows, err := x.tx.QueryContext(x.ctx, `
		SELECT h.id, h.task_id, h.field, h.old_value, h.new_value, h.user_id, h.created_at,
			COALESCE(t.title, ?)
		FROM activity_history h
		LEFT JOIN tasks t ON t.id = h.task_id
		WHERE h.user_id = ?
		ORDER BY h.created_at DESC, h.rowid DESC
		LIMIT ?
	`, task.DeletedTaskTitle, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent activity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []task.ActivityItem{}
	for rows.Next() {
		var it task.ActivityItem
		var oldV, newV sql.NullString
		if err := rows.Scan(&it.ID, &it.TaskID, &it.Field, &oldV, &newV, &it.UserID, &it.CreatedAt, &it.TaskTitle); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		it.OldValue = textPtr(oldV)
		it.NewValue = textPtr(newV)
		items = append(items, it)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return items, nil
}
