// Package migration moves tasks from the legacy browser export into the
// board: validation, field mapping and the bulk import.
package migration

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/josephgoksu/loomboard/internal/task"
)

// StatusMap maps legacy hyphenated statuses to board statuses.
var StatusMap = map[string]task.Status{
	"backlog":     task.StatusBacklog,
	"in-progress": task.StatusInProgress,
	"blocked":     task.StatusBlocked,
	"done":        task.StatusDone,
}

// PriorityMap maps legacy priority codes to named priorities.
var PriorityMap = map[string]task.Priority{
	"p0": task.PriorityUrgent,
	"p1": task.PriorityHigh,
	"p2": task.PriorityMedium,
	"p3": task.PriorityLow,
}

// LegacyTask is a task as stored by the old single-page app.
type LegacyTask struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Status        string   `json:"status"`
	Priority      string   `json:"priority,omitempty"`
	Tag           string   `json:"tag,omitempty"`
	DueDate       string   `json:"dueDate,omitempty"`
	CreatedAt     *float64 `json:"createdAt,omitempty"`
	Archived      bool     `json:"archived,omitempty"`
	BlockedReason *string  `json:"blockedReason,omitempty"`
	StartedAt     *float64 `json:"startedAt,omitempty"`
	CompletedAt   *float64 `json:"completedAt,omitempty"`
	BlockedSince  *float64 `json:"blockedSince,omitempty"`
}

// IsValidV1Task checks the required fields (non-empty id, non-blank title,
// legacy status) and the type of each optional field that is present.
func IsValidV1Task(raw map[string]any) bool {
	if raw == nil {
		return false
	}
	if id, ok := raw["id"].(string); !ok || id == "" {
		return false
	}
	title, ok := raw["title"].(string)
	if !ok || strings.TrimSpace(title) == "" {
		return false
	}
	status, ok := raw["status"].(string)
	if !ok {
		return false
	}
	if _, known := StatusMap[status]; !known {
		return false
	}

	for _, key := range []string{"description", "priority", "tag", "dueDate"} {
		if !optional[string](raw, key) {
			return false
		}
	}
	for _, key := range []string{"createdAt", "startedAt", "completedAt", "blockedSince"} {
		if !optional[float64](raw, key) {
			return false
		}
	}
	if !optional[bool](raw, "archived") {
		return false
	}
	if v, ok := raw["blockedReason"]; ok && v != nil {
		if _, isString := v.(string); !isString {
			return false
		}
	}
	return true
}

// optional reports whether key is absent or holds a T. JSON null only
// passes for blockedReason, which is checked separately.
func optional[T any](raw map[string]any, key string) bool {
	v, ok := raw[key]
	if !ok {
		return true
	}
	_, isT := v.(T)
	return isT
}

// decode converts a validated raw task into a LegacyTask.
func decode(raw map[string]any) (LegacyTask, error) {
	var t LegacyTask
	b, err := json.Marshal(raw)
	if err != nil {
		return t, err
	}
	err = json.Unmarshal(b, &t)
	return t, err
}

// Transform maps a legacy task to an import row at position order. Unknown
// statuses fall back to backlog, unknown priorities to medium and an
// unparsable due date is dropped. createdAt is kept for both timestamps.
func Transform(t LegacyTask, order int, now time.Time) task.ImportTask {
	status, ok := StatusMap[t.Status]
	if !ok {
		status = task.StatusBacklog
	}
	priority, ok := PriorityMap[t.Priority]
	if !ok {
		priority = task.PriorityMedium
	}
	tags := []string{}
	if t.Tag != "" {
		tags = []string{t.Tag}
	}

	var due *int64
	if t.DueDate != "" {
		if ts, err := task.ParseDate(t.DueDate); err == nil {
			ms := ts.UnixMilli()
			due = &ms
		}
	}

	created := now.UnixMilli()
	if t.CreatedAt != nil && !math.IsNaN(*t.CreatedAt) {
		created = int64(*t.CreatedAt)
	}

	return task.ImportTask{
		Title:       t.Title,
		Description: t.Description,
		Status:      status,
		Priority:    priority,
		Tags:        tags,
		DueDate:     due,
		Order:       float64(order),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

// Plan is the outcome of preparing an export for import.
type Plan struct {
	Tasks []task.ImportTask
	// Total counts the non-archived legacy tasks.
	Total int
	// Valid counts those that passed validation.
	Valid int
}

// Skipped is the number of non-archived tasks dropped as invalid.
func (p Plan) Skipped() int { return p.Total - p.Valid }

// Prepare drops archived tasks, silently drops invalid ones and transforms
// the rest. Order is the index among the valid tasks.
func Prepare(raw []map[string]any, now time.Time) Plan {
	var plan Plan
	for _, r := range raw {
		if archived, _ := r["archived"].(bool); archived {
			continue
		}
		plan.Total++
		if !IsValidV1Task(r) {
			continue
		}
		legacy, err := decode(r)
		if err != nil {
			continue
		}
		plan.Tasks = append(plan.Tasks, Transform(legacy, plan.Valid, now))
		plan.Valid++
	}
	return plan
}
