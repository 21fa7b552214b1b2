package task

import (
	"fmt"
	"strings"
	"time"
)

// DuePreset is a named due-date window.
type DuePreset string

const (
	DueOverdue   DuePreset = "overdue"
	DueToday     DuePreset = "due-today"
	DueThisWeek  DuePreset = "due-this-week"
	DueNoDueDate DuePreset = "no-due-date"
)

const (
	day            = 24 * time.Hour
	dateOnlyLayout = "2006-01-02"
)

// IsValid checks if the preset is known.
func (p DuePreset) IsValid() bool {
	switch p {
	case DueOverdue, DueToday, DueThisWeek, DueNoDueDate:
		return true
	}
	return false
}

// DueDateFilter is either a preset or an inclusive ISO date range.
type DueDateFilter struct {
	Preset DuePreset
	After  string
	Before string
}

// Filters combine with AND across categories. Tags match if any tag matches.
type Filters struct {
	Text     string
	Priority Priority
	Status   Status
	Tags     []string
	DueDate  *DueDateFilter
}

// Validate checks enum fields and date range syntax.
func (f Filters) Validate() error {
	if f.Priority != "" && !f.Priority.IsValid() {
		return InvalidPriorityError(string(f.Priority))
	}
	if f.Status != "" && !f.Status.IsValid() {
		return InvalidStatusError(string(f.Status))
	}
	if f.DueDate == nil {
		return nil
	}
	if f.DueDate.Preset != "" {
		if !f.DueDate.Preset.IsValid() {
			return NewValidationError("dueDate", fmt.Sprintf("Invalid dueDate filter: %q", f.DueDate.Preset))
		}
		return nil
	}
	for _, raw := range []string{f.DueDate.After, f.DueDate.Before} {
		if raw == "" {
			continue
		}
		if _, err := ParseDate(raw); err != nil {
			return NewValidationError("dueDate", fmt.Sprintf("Invalid date: %q", raw))
		}
	}
	return nil
}

// ParseDate accepts a calendar date (UTC midnight) or an RFC 3339 timestamp.
func ParseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(dateOnlyLayout, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", raw)
}

// StartOfDay returns local midnight of now in loc.
func StartOfDay(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// Apply returns the matching tasks, preserving order. Callers validate first.
func (f Filters) Apply(tasks []Task, now time.Time, loc *time.Location) []Task {
	out := make([]Task, 0, len(tasks))
	text := strings.ToLower(f.Text)
	todayStart := StartOfDay(now, loc)

	for _, t := range tasks {
		if text != "" &&
			!strings.Contains(strings.ToLower(t.Title), text) &&
			!strings.Contains(strings.ToLower(t.Description), text) {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if len(f.Tags) > 0 && !anyTag(t.Tags, f.Tags) {
			continue
		}
		if f.DueDate != nil && !f.DueDate.matches(t, todayStart) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func anyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func (d DueDateFilter) matches(t Task, todayStart time.Time) bool {
	start := todayStart.UnixMilli()

	switch d.Preset {
	case DueOverdue:
		return t.DueDate != nil && *t.DueDate < start
	case DueToday:
		end := todayStart.Add(day).UnixMilli()
		return t.DueDate != nil && *t.DueDate >= start && *t.DueDate < end
	case DueThisWeek:
		daysLeft := 7 - int(todayStart.Weekday())
		end := todayStart.Add(time.Duration(daysLeft) * day).UnixMilli()
		return t.DueDate != nil && *t.DueDate >= start && *t.DueDate < end
	case DueNoDueDate:
		return t.DueDate == nil
	}

	if d.After != "" {
		after, err := ParseDate(d.After)
		if err != nil || t.DueDate == nil || *t.DueDate < after.UnixMilli() {
			return false
		}
	}
	if d.Before != "" {
		before, err := ParseDate(d.Before)
		if err != nil || t.DueDate == nil || *t.DueDate > before.UnixMilli() {
			return false
		}
	}
	return true
}

// ColumnSummary counts one column's tasks.
type ColumnSummary struct {
	Status Status
	Tasks  []Task
}

// BoardSummary is the per-column view plus overdue work.
type BoardSummary struct {
	Columns []ColumnSummary
	Total   int
	Overdue []Task
}

// Summarize groups tasks by column. Overdue excludes done tasks.
func Summarize(tasks []Task, now time.Time, loc *time.Location) BoardSummary {
	start := StartOfDay(now, loc).UnixMilli()
	byStatus := make(map[Status][]Task, 4)
	var overdue []Task

	for _, t := range tasks {
		byStatus[t.Status] = append(byStatus[t.Status], t)
		if t.DueDate != nil && *t.DueDate < start && t.Status != StatusDone {
			overdue = append(overdue, t)
		}
	}

	summary := BoardSummary{Total: len(tasks), Overdue: overdue}
	for _, s := range Statuses() {
		summary.Columns = append(summary.Columns, ColumnSummary{Status: s, Tasks: byStatus[s]})
	}
	return summary
}
