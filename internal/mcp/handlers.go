package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/josephgoksu/loomboard/internal/task"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tools holds the MCP tool handlers. Each handler makes exactly one API call
// and never returns a Go error; failures become an error text result.
type Tools struct {
	client *Client
}

func NewTools(client *Client) *Tools {
	return &Tools{client: client}
}

// Register adds every board tool to server.
func (t *Tools) Register(server *mcpsdk.Server) {
	// Read tools
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "list_tasks",
		Description: "List all active (non-archived) tasks on the board",
	}, t.ListTasks)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "get_task",
		Description: "Get full details of a specific task by its ID",
	}, t.GetTask)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "search_tasks",
		Description: "Search tasks by text, priority, status, tags, or due date",
	}, t.SearchTasks)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "get_board_summary",
		Description: "Get a summary of the board with task counts per column and overdue tasks",
	}, t.BoardSummary)

	// Write tools
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "create_task",
		Description: "Create a new task on the board",
	}, t.CreateTask)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "update_task",
		Description: "Update fields of an existing task",
	}, t.UpdateTask)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "move_task",
		Description: "Move a task to a different column (status)",
	}, t.MoveTask)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "delete_task",
		Description: "Permanently delete a task (cannot be undone)",
	}, t.DeleteTask)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "archive_task",
		Description: "Archive a task (soft delete, can be restored)",
	}, t.ArchiveTask)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "set_active_task",
		Description: "Set a task as the currently active task being worked on",
	}, t.SetActiveTask)
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "clear_active_task",
		Description: "Clear the currently active task (stop working on everything)",
	}, t.ClearActiveTask)
}

func textResult(text string) (*mcpsdk.CallToolResultFor[any], error) {
	return &mcpsdk.CallToolResultFor[any]{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}, nil
}

func errorResult(err error) (*mcpsdk.CallToolResultFor[any], error) {
	return &mcpsdk.CallToolResultFor[any]{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: FormatError(err.Error())}},
		IsError: true,
	}, nil
}

// dateMillis converts an ISO date or timestamp to epoch milliseconds.
func dateMillis(raw string) (int64, error) {
	ts, err := task.ParseDate(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid dueDate %q: expected an ISO date such as 2026-02-15", raw)
	}
	return ts.UnixMilli(), nil
}

func (t *Tools) ListTasks(ctx context.Context, _ *mcpsdk.ServerSession, _ *mcpsdk.CallToolParamsFor[NoParams]) (*mcpsdk.CallToolResultFor[any], error) {
	tasks, err := t.client.ListTasks(ctx)
	if err != nil {
		return errorResult(err)
	}
	return textResult(FormatTaskList(tasks))
}

func (t *Tools) GetTask(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[TaskIDParams]) (*mcpsdk.CallToolResultFor[any], error) {
	got, err := t.client.GetTask(ctx, params.Arguments.ID)
	if err != nil {
		return errorResult(err)
	}
	return textResult(FormatTaskDetail(*got))
}

func (t *Tools) SearchTasks(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[SearchTasksParams]) (*mcpsdk.CallToolResultFor[any], error) {
	args := params.Arguments
	req := SearchRequest{
		Text:     args.Text,
		Priority: args.Priority,
		Status:   args.Status,
		Tags:     args.Tags,
	}
	if preset, ok := args.DueDate.(string); !ok || preset != "" {
		req.DueDate = args.DueDate
	}

	resp, err := t.client.SearchTasks(ctx, req)
	if err != nil {
		return errorResult(err)
	}
	return textResult(FormatSearchResults(resp))
}

func (t *Tools) BoardSummary(ctx context.Context, _ *mcpsdk.ServerSession, _ *mcpsdk.CallToolParamsFor[NoParams]) (*mcpsdk.CallToolResultFor[any], error) {
	summary, err := t.client.BoardSummary(ctx)
	if err != nil {
		return errorResult(err)
	}
	return textResult(FormatBoardSummary(summary))
}

func (t *Tools) CreateTask(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[CreateTaskParams]) (*mcpsdk.CallToolResultFor[any], error) {
	args := params.Arguments
	req := CreateRequest{
		Title:       args.Title,
		Description: args.Description,
		Status:      args.Status,
		Priority:    args.Priority,
		Tags:        args.Tags,
	}
	if req.Status == "" {
		req.Status = string(task.StatusBacklog)
	}
	if req.Priority == "" {
		req.Priority = string(task.PriorityMedium)
	}
	if req.Tags == nil {
		req.Tags = []string{}
	}
	if args.DueDate != nil && *args.DueDate != "" {
		ms, err := dateMillis(*args.DueDate)
		if err != nil {
			return errorResult(err)
		}
		req.DueDate = &ms
	}

	created, err := t.client.CreateTask(ctx, req)
	if err != nil {
		return errorResult(err)
	}
	return textResult(FormatConfirmation("Task created successfully.", *created))
}

func (t *Tools) UpdateTask(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[UpdateTaskParams]) (*mcpsdk.CallToolResultFor[any], error) {
	args := params.Arguments
	updates := map[string]any{}
	if args.Title != nil {
		updates["title"] = *args.Title
	}
	if args.Description != nil {
		updates["description"] = *args.Description
	}
	if args.Priority != nil {
		updates["priority"] = *args.Priority
	}
	if args.Tags != nil {
		updates["tags"] = *args.Tags
	}
	if args.DueDate != nil {
		if *args.DueDate == "" {
			updates["dueDate"] = nil
		} else {
			ms, err := dateMillis(*args.DueDate)
			if err != nil {
				return errorResult(err)
			}
			updates["dueDate"] = ms
		}
	}

	updated, err := t.client.UpdateTask(ctx, args.ID, updates)
	if err != nil {
		return errorResult(err)
	}
	return textResult(FormatConfirmation("Task updated successfully.", *updated))
}

func (t *Tools) MoveTask(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[MoveTaskParams]) (*mcpsdk.CallToolResultFor[any], error) {
	moved, err := t.client.MoveTask(ctx, params.Arguments.ID, params.Arguments.Status)
	if err != nil {
		return errorResult(err)
	}
	return textResult(FormatMoved(*moved, params.Arguments.Status))
}

func (t *Tools) DeleteTask(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[TaskIDParams]) (*mcpsdk.CallToolResultFor[any], error) {
	if err := t.client.DeleteTask(ctx, params.Arguments.ID); err != nil {
		return errorResult(err)
	}
	return textResult("Task permanently deleted.")
}

func (t *Tools) ArchiveTask(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[TaskIDParams]) (*mcpsdk.CallToolResultFor[any], error) {
	if err := t.client.ArchiveTask(ctx, params.Arguments.ID); err != nil {
		return errorResult(err)
	}
	return textResult("Task archived successfully.")
}

func (t *Tools) SetActiveTask(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[TaskIDParams]) (*mcpsdk.CallToolResultFor[any], error) {
	active, err := t.client.SetActiveTask(ctx, params.Arguments.ID)
	if err != nil {
		return errorResult(err)
	}
	return textResult(FormatActive(*active))
}

func (t *Tools) ClearActiveTask(ctx context.Context, _ *mcpsdk.ServerSession, _ *mcpsdk.CallToolParamsFor[NoParams]) (*mcpsdk.CallToolResultFor[any], error) {
	if err := t.client.ClearActiveTask(ctx); err != nil {
		return errorResult(err)
	}
	return textResult("Active task cleared.")
}
