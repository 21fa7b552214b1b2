// Package mcp serves the task board to AI agents as MCP tools over stdio,
// backed by the board's token API.
package mcp

// Task is a task as rendered by the token API. Dates are display strings.
type Task struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      *string  `json:"description"`
	Status           string   `json:"status"`
	Priority         string   `json:"priority"`
	Tags             []string `json:"tags"`
	DueDate          *string  `json:"dueDate"`
	DueDateTimestamp *int64   `json:"dueDateTimestamp"`
	Order            float64  `json:"order"`
	Archived         bool     `json:"archived"`
	IsActive         bool     `json:"isActive"`
	CreatedAt        string   `json:"createdAt"`
	UpdatedAt        string   `json:"updatedAt"`
}

type tasksResponse struct {
	Tasks []Task `json:"tasks"`
}

type taskResponse struct {
	Task *Task `json:"task"`
}

// SearchResponse is the body of /mcp/tasks/search.
type SearchResponse struct {
	Tasks []Task `json:"tasks"`
	Count int    `json:"count"`
}

type ColumnTask struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Priority string `json:"priority"`
}

type Column struct {
	Count int          `json:"count"`
	Tasks []ColumnTask `json:"tasks"`
}

type OverdueTask struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	DueDate string `json:"dueDate"`
}

// BoardSummary is the body of /mcp/board/summary.
type BoardSummary struct {
	Columns map[string]Column `json:"columns"`
	Total   int               `json:"total"`
	Overdue struct {
		Count int           `json:"count"`
		Tasks []OverdueTask `json:"tasks"`
	} `json:"overdue"`
}

// SearchRequest is sent to /mcp/tasks/search. DueDate is a preset name or
// a {dueAfter, dueBefore} map.
type SearchRequest struct {
	Text     string   `json:"text,omitempty"`
	Priority string   `json:"priority,omitempty"`
	Status   string   `json:"status,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	DueDate  any      `json:"dueDate,omitempty"`
}

// CreateRequest is sent to /mcp/tasks/create.
type CreateRequest struct {
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	Tags        []string `json:"tags"`
	DueDate     *int64   `json:"dueDate,omitempty"`
}

// === Tool parameters ===

type NoParams struct{}

type TaskIDParams struct {
	ID string `json:"id" jsonschema:"The task ID"`
}

type SearchTasksParams struct {
	Text     string   `json:"text,omitempty" jsonschema:"Search text (matches title and description)"`
	Priority string   `json:"priority,omitempty" jsonschema:"Filter by priority: low, medium, high or urgent"`
	Status   string   `json:"status,omitempty" jsonschema:"Filter by status (column): backlog, in_progress, blocked or done"`
	Tags     []string `json:"tags,omitempty" jsonschema:"Filter by tags (matches any)"`
	DueDate  any      `json:"dueDate,omitempty" jsonschema:"Due date filter: a preset (overdue, due-today, due-this-week, no-due-date) or an object with dueAfter and dueBefore ISO dates"`
}

type CreateTaskParams struct {
	Title       string   `json:"title" jsonschema:"Task title (required)"`
	Description *string  `json:"description,omitempty" jsonschema:"Task description"`
	Status      string   `json:"status,omitempty" jsonschema:"Column, defaults to backlog"`
	Priority    string   `json:"priority,omitempty" jsonschema:"Priority, defaults to medium"`
	Tags        []string `json:"tags,omitempty" jsonschema:"Tags"`
	DueDate     *string  `json:"dueDate,omitempty" jsonschema:"Due date as ISO string (e.g. 2026-02-15)"`
}

type UpdateTaskParams struct {
	ID          string    `json:"id" jsonschema:"Task ID to update"`
	Title       *string   `json:"title,omitempty" jsonschema:"New title"`
	Description *string   `json:"description,omitempty" jsonschema:"New description"`
	Priority    *string   `json:"priority,omitempty" jsonschema:"New priority"`
	Tags        *[]string `json:"tags,omitempty" jsonschema:"New tags (replaces existing)"`
	DueDate     *string   `json:"dueDate,omitempty" jsonschema:"New due date as ISO string, or empty string to clear"`
}

type MoveTaskParams struct {
	ID     string `json:"id" jsonschema:"Task ID to move"`
	Status string `json:"status" jsonschema:"Target column: backlog, in_progress, blocked or done"`
}
