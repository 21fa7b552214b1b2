package mcp

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// columnOrder is the board's left-to-right column order.
var columnOrder = []string{"backlog", "in_progress", "blocked", "done"}

// StatusLabel renders a status key as its column name ("in_progress" ->
// "In Progress"). Unknown keys are returned unchanged.
func StatusLabel(status string) string {
	for _, s := range columnOrder {
		if s == status {
			return cases.Title(language.English).String(strings.ReplaceAll(status, "_", " "))
		}
	}
	return status
}

// PriorityLabel renders a priority in upper case.
func PriorityLabel(priority string) string {
	return cases.Upper(language.English).String(priority)
}

// FormatTaskLine is the two-line listing form of a task.
func FormatTaskLine(t Task) string {
	details := []string{"Status: " + StatusLabel(t.Status)}
	if t.DueDate != nil && *t.DueDate != "" {
		details = append(details, "Due: "+*t.DueDate)
	}
	if len(t.Tags) > 0 {
		details = append(details, "Tags: "+strings.Join(t.Tags, ", "))
	}
	return fmt.Sprintf("[%s] %s (ID: %s)\n  %s",
		PriorityLabel(t.Priority), t.Title, t.ID, strings.Join(details, " | "))
}

// FormatTaskDetail renders every field of one task.
func FormatTaskDetail(t Task) string {
	description := "No description"
	if t.Description != nil {
		description = *t.Description
	}
	tags := "None"
	if len(t.Tags) > 0 {
		tags = strings.Join(t.Tags, ", ")
	}
	due := "No due date"
	if t.DueDate != nil {
		due = *t.DueDate
	}
	return strings.Join([]string{
		"# Task: " + t.Title,
		"ID: " + t.ID,
		"Status: " + StatusLabel(t.Status),
		"Priority: " + PriorityLabel(t.Priority),
		"Description: " + description,
		"Tags: " + tags,
		"Due Date: " + due,
		"Created: " + t.CreatedAt,
		"Updated: " + t.UpdatedAt,
	}, "\n")
}

// FormatTaskList groups tasks under one heading per non-empty column.
func FormatTaskList(tasks []Task) string {
	if len(tasks) == 0 {
		return "No active tasks on the board."
	}

	groups := make(map[string][]Task, len(columnOrder))
	for _, t := range tasks {
		groups[t.Status] = append(groups[t.Status], t)
	}

	var sb strings.Builder
	for _, status := range columnOrder {
		if len(groups[status]) == 0 {
			continue
		}
		sb.WriteString("## " + StatusLabel(status) + "\n")
		for _, t := range groups[status] {
			sb.WriteString(FormatTaskLine(t) + "\n")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n ")
}

func FormatSearchResults(resp *SearchResponse) string {
	if resp == nil || len(resp.Tasks) == 0 {
		return "No tasks match the search criteria."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d task(s):\n\n", resp.Count)
	for _, t := range resp.Tasks {
		sb.WriteString(FormatTaskLine(t) + "\n\n")
	}
	return strings.TrimRight(sb.String(), "\n ")
}

func FormatBoardSummary(s *BoardSummary) string {
	lines := []string{
		"# Board Summary",
		fmt.Sprintf("Total tasks: %d", s.Total),
		"",
		"## Columns",
	}
	for _, status := range columnOrder {
		lines = append(lines, fmt.Sprintf("%s: %d tasks", StatusLabel(status), s.Columns[status].Count))
	}
	if s.Overdue.Count > 0 {
		lines = append(lines, "", fmt.Sprintf("## Overdue Tasks (%d)", s.Overdue.Count))
		for _, t := range s.Overdue.Tasks {
			lines = append(lines, fmt.Sprintf("- %s (due: %s)", t.Title, t.DueDate))
		}
	}
	return strings.Join(lines, "\n")
}

// FormatConfirmation is the reply to create and update.
func FormatConfirmation(action string, t Task) string {
	lines := []string{
		action,
		"",
		"Title: " + t.Title,
		"ID: " + t.ID,
		"Status: " + StatusLabel(t.Status),
		"Priority: " + PriorityLabel(t.Priority),
	}
	if t.Description != nil && *t.Description != "" {
		lines = append(lines, "Description: "+*t.Description)
	}
	if len(t.Tags) > 0 {
		lines = append(lines, "Tags: "+strings.Join(t.Tags, ", "))
	}
	if t.DueDate != nil && *t.DueDate != "" {
		lines = append(lines, "Due Date: "+*t.DueDate)
	}
	return strings.Join(lines, "\n")
}

func FormatMoved(t Task, status string) string {
	return fmt.Sprintf("Moved '%s' to %s.\n\nID: %s\nPriority: %s",
		t.Title, StatusLabel(status), t.ID, PriorityLabel(t.Priority))
}

func FormatActive(t Task) string {
	return fmt.Sprintf("Now actively working on: %s\n\nID: %s\nStatus: %s\nPriority: %s",
		t.Title, t.ID, StatusLabel(t.Status), PriorityLabel(t.Priority))
}

// FormatError is the text of a failed tool call.
func FormatError(message string) string {
	return "Error: " + message
}
