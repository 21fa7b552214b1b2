package server

import (
	"time"

	"github.com/josephgoksu/loomboard/internal/task"
)

const displayDateLayout = "Jan 2, 2006"

// formattedTask is the token API's task representation.
type formattedTask struct {
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

func formatDate(ms int64, loc *time.Location) string {
	return time.UnixMilli(ms).In(loc).Format(displayDateLayout)
}

func formatTask(t task.Task, loc *time.Location) formattedTask {
	out := formattedTask{
		ID:        t.ID,
		Title:     t.Title,
		Status:    string(t.Status),
		Priority:  string(t.Priority),
		Tags:      t.Tags,
		Order:     t.Order,
		Archived:  t.Archived,
		IsActive:  t.IsActive,
		CreatedAt: formatDate(t.CreatedAt, loc),
		UpdatedAt: formatDate(t.UpdatedAt, loc),
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if t.Description != "" {
		d := t.Description
		out.Description = &d
	}
	if t.HasDueDate() {
		ms := *t.DueDate
		d := formatDate(ms, loc)
		out.DueDate = &d
		out.DueDateTimestamp = &ms
	}
	return out
}

func formatTasks(tasks []task.Task, loc *time.Location) []formattedTask {
	out := make([]formattedTask, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, formatTask(t, loc))
	}
	return out
}

type columnTask struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Priority string `json:"priority"`
}

type columnView struct {
	Count int          `json:"count"`
	Tasks []columnTask `json:"tasks"`
}

type overdueTask struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	DueDate string `json:"dueDate"`
}

type overdueView struct {
	Count int           `json:"count"`
	Tasks []overdueTask `json:"tasks"`
}

type summaryView struct {
	Columns map[string]columnView `json:"columns"`
	Total   int                   `json:"total"`
	Overdue overdueView           `json:"overdue"`
}

func formatSummary(sum task.BoardSummary, loc *time.Location) summaryView {
	view := summaryView{
		Columns: make(map[string]columnView, len(sum.Columns)),
		Total:   sum.Total,
		Overdue: overdueView{Count: len(sum.Overdue), Tasks: []overdueTask{}},
	}
	for _, col := range sum.Columns {
		cv := columnView{Count: len(col.Tasks), Tasks: []columnTask{}}
		for _, t := range col.Tasks {
			cv.Tasks = append(cv.Tasks, columnTask{ID: t.ID, Title: t.Title, Priority: string(t.Priority)})
		}
		view.Columns[string(col.Status)] = cv
	}
	for _, t := range sum.Overdue {
		view.Overdue.Tasks = append(view.Overdue.Tasks, overdueTask{
			ID: t.ID, Title: t.Title, DueDate: formatDate(*t.DueDate, loc),
		})
	}
	return view
}
