package task

import (
	"strings"
	"time"
)

// Status is the board column a task lives in.
type Status string

const (
	StatusBacklog    Status = "backlog"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusDone       Status = "done"
)

// Statuses returns all columns in board order.
func Statuses() []Status {
	return []Status{StatusBacklog, StatusInProgress, StatusBlocked, StatusDone}
}

// IsValid checks if the status is a known board column.
func (s Status) IsValid() bool {
	switch s {
	case StatusBacklog, StatusInProgress, StatusBlocked, StatusDone:
		return true
	}
	return false
}

// Label returns the human column name.
func (s Status) Label() string {
	switch s {
	case StatusBacklog:
		return "Backlog"
	case StatusInProgress:
		return "In Progress"
	case StatusBlocked:
		return "Blocked"
	case StatusDone:
		return "Done"
	}
	return string(s)
}

// Priority ranks a task within its column.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities returns all priorities from lowest to highest.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
}

// IsValid checks if the priority is known.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func joinStatuses() string {
	parts := make([]string, 0, 4)
	for _, s := range Statuses() {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, ", ")
}

func joinPriorities() string {
	parts := make([]string, 0, 4)
	for _, p := range Priorities() {
		parts = append(parts, string(p))
	}
	return strings.Join(parts, ", ")
}

// Task is a single card on the board. Timestamps are epoch milliseconds.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`
	Tags        []string `json:"tags"`
	DueDate     *int64   `json:"dueDate,omitempty"`
	Order       float64  `json:"order"`
	Archived    bool     `json:"archived"`
	IsActive    bool     `json:"isActive"`
	UserID      string   `json:"userId,omitempty"`
	CreatedAt   int64    `json:"createdAt"`
	UpdatedAt   int64    `json:"updatedAt"`
}

// HasDueDate reports whether a due date is set.
func (t *Task) HasDueDate() bool {
	return t.DueDate != nil
}

// Query narrows a per-owner task listing. Zero value lists every
// non-archived task.
type Query struct {
	Archived   bool
	Status     Status
	ActiveOnly bool
}

// CreateInput carries the fields accepted when creating a task.
type CreateInput struct {
	Title       string
	Description string
	Status      Status
	Priority    Priority
	Tags        []string
	DueDate     *int64
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title        *string
	Description  *string
	Status       *Status
	Priority     *Priority
	Tags         *[]string
	DueDate      *int64
	ClearDueDate bool
	Order        *float64
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil &&
		p.Tags == nil && p.DueDate == nil && !p.ClearDueDate && p.Order == nil
}

// ImportTask is a fully-formed task coming from the legacy browser store.
type ImportTask struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`
	Tags        []string `json:"tags"`
	DueDate     *int64   `json:"dueDate,omitempty"`
	Order       float64  `json:"order"`
	CreatedAt   int64    `json:"createdAt"`
	UpdatedAt   int64    `json:"updatedAt"`
}

// Millis converts a time to epoch milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
