package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/josephgoksu/loomboard/internal/task"
)

const (
	msgMissingID      = "Missing required field: id"
	msgMissingUpdates = "Missing required field: updates (object)"
	msgTitleRequired  = "Title is required and cannot be empty"
	msgTitleEmpty     = "Title cannot be empty"
	msgTagsType       = "Tags must be an array of strings"
)

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// rawText renders a JSON value for error messages: strings unquoted,
// everything else verbatim.
func rawText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

func parseStatus(raw json.RawMessage) (task.Status, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || !task.Status(s).IsValid() {
		return "", task.InvalidStatusError(rawText(raw))
	}
	return task.Status(s), nil
}

func parsePriority(raw json.RawMessage) (task.Priority, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || !task.Priority(s).IsValid() {
		return "", task.InvalidPriorityError(rawText(raw))
	}
	return task.Priority(s), nil
}

func parseTags(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return []string{}, nil
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, badRequestError(msgTagsType)
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

// parseDueDate accepts epoch ms as a JSON number or numeric string.
// null, absent and 0 mean no due date.
func parseDueDate(raw json.RawMessage) (*int64, error) {
	if isNull(raw) {
		return nil, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil, badRequestError("dueDate must be a timestamp in milliseconds")
		}
		n = json.Number(strings.TrimSpace(s))
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return nil, badRequestError("dueDate must be a timestamp in milliseconds")
	}
	if f == 0 {
		return nil, nil
	}
	ms := int64(f)
	return &ms, nil
}

// createFields is the body of both create endpoints.
type createFields struct {
	Title       json.RawMessage `json:"title"`
	Description *string         `json:"description"`
	Status      json.RawMessage `json:"status"`
	Priority    json.RawMessage `json:"priority"`
	Tags        json.RawMessage `json:"tags"`
	DueDate     json.RawMessage `json:"dueDate"`
}

func (f createFields) input() (task.CreateInput, error) {
	var in task.CreateInput

	var title string
	if isNull(f.Title) || json.Unmarshal(f.Title, &title) != nil || strings.TrimSpace(title) == "" {
		return in, badRequestError(msgTitleRequired)
	}
	in.Title = title

	in.Status = task.StatusBacklog
	if !isNull(f.Status) {
		s, err := parseStatus(f.Status)
		if err != nil {
			return in, err
		}
		in.Status = s
	}

	in.Priority = task.PriorityMedium
	if !isNull(f.Priority) {
		p, err := parsePriority(f.Priority)
		if err != nil {
			return in, err
		}
		in.Priority = p
	}

	tags, err := parseTags(f.Tags)
	if err != nil {
		return in, err
	}
	in.Tags = tags

	if f.Description != nil {
		in.Description = *f.Description
	}

	due, err := parseDueDate(f.DueDate)
	if err != nil {
		return in, err
	}
	in.DueDate = due
	return in, nil
}

// parsePatch turns an "updates" object into a Patch. Absent keys are left
// alone; a null dueDate clears the due date.
func parsePatch(fields map[string]json.RawMessage) (task.Patch, error) {
	var p task.Patch

	if raw, ok := fields["title"]; ok {
		var title string
		if json.Unmarshal(raw, &title) != nil || isNull(raw) || strings.TrimSpace(title) == "" {
			return p, badRequestError(msgTitleEmpty)
		}
		p.Title = &title
	}
	if raw, ok := fields["status"]; ok {
		s, err := parseStatus(raw)
		if err != nil {
			return p, err
		}
		p.Status = &s
	}
	if raw, ok := fields["priority"]; ok {
		pr, err := parsePriority(raw)
		if err != nil {
			return p, err
		}
		p.Priority = &pr
	}
	if raw, ok := fields["description"]; ok {
		var d string
		if isNull(raw) || json.Unmarshal(raw, &d) != nil {
			return p, badRequestError("description must be a string")
		}
		p.Description = &d
	}
	if raw, ok := fields["tags"]; ok {
		if isNull(raw) {
			return p, badRequestError(msgTagsType)
		}
		tags, err := parseTags(raw)
		if err != nil {
			return p, err
		}
		p.Tags = &tags
	}
	if raw, ok := fields["dueDate"]; ok {
		due, err := parseDueDate(raw)
		if err != nil {
			return p, err
		}
		if due == nil {
			p.ClearDueDate = true
		} else {
			p.DueDate = due
		}
	}
	if raw, ok := fields["order"]; ok {
		var order float64
		if json.Unmarshal(raw, &order) != nil {
			return p, badRequestError("order must be a number")
		}
		p.Order = &order
	}
	return p, nil
}

// dueDateParam is either a preset name or a {dueAfter, dueBefore} range.
type dueDateParam struct {
	filter *task.DueDateFilter
}

func (d *dueDateParam) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	var preset string
	if err := json.Unmarshal(b, &preset); err == nil {
		d.filter = &task.DueDateFilter{Preset: task.DuePreset(preset)}
		return nil
	}
	var rng struct {
		After  string `json:"dueAfter"`
		Before string `json:"dueBefore"`
	}
	if err := json.Unmarshal(b, &rng); err != nil {
		return fmt.Errorf("dueDate must be a preset or a {dueAfter, dueBefore} range")
	}
	d.filter = &task.DueDateFilter{After: rng.After, Before: rng.Before}
	return nil
}

type searchRequest struct {
	Text     string          `json:"text"`
	Priority json.RawMessage `json:"priority"`
	Status   json.RawMessage `json:"status"`
	Tags     []string        `json:"tags"`
	DueDate  dueDateParam    `json:"dueDate"`
}

func (r searchRequest) filters() (task.Filters, error) {
	f := task.Filters{Text: r.Text, Tags: r.Tags, DueDate: r.DueDate.filter}
	if !isNull(r.Priority) {
		p, err := parsePriority(r.Priority)
		if err != nil {
			return f, err
		}
		f.Priority = p
	}
	if !isNull(r.Status) {
		s, err := parseStatus(r.Status)
		if err != nil {
			return f, err
		}
		f.Status = s
	}
	return f, nil
}
