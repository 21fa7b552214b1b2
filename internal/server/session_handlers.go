package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/josephgoksu/loomboard/internal/task"
)

func sessionActor(r *http.Request) task.Actor {
	p, _ := principalFrom(r.Context())
	return task.SessionActor(p.UserID)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createFields
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	in, err := req.input()
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	t, err := s.svc.Create(r.Context(), sessionActor(r), in)
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"task": t})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var (
		tasks []task.Task
		err   error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		tasks, err = s.svc.ListByStatus(r.Context(), sessionActor(r), task.Status(status))
	} else {
		tasks, err = s.svc.List(r.Context(), sessionActor(r))
	}
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	writeAPIJSON(w, map[string]any{"tasks": nonNil(tasks)})
}

func (s *Server) handleListArchived(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.svc.ListArchived(r.Context(), sessionActor(r))
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	writeAPIJSON(w, map[string]any{"tasks": nonNil(tasks)})
}

func (s *Server) handleGetActive(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.GetActive(r.Context(), sessionActor(r))
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	writeAPIJSON(w, map[string]any{"task": t})
}

func (s *Server) handleClearActive(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ClearActive(r.Context(), sessionActor(r)); err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	writeAPIJSON(w, map[string]bool{"success": true})
}

func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tasks []task.ImportTask `json:"tasks"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	n, err := s.svc.Import(r.Context(), sessionActor(r), req.Tasks)
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	s.log.WithField("imported", n).Info("legacy tasks imported")
	writeAPIJSON(w, map[string]int{"imported": n})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.Get(r.Context(), sessionActor(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	writeAPIJSON(w, map[string]any{"task": t})
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var fields map[string]json.RawMessage
	if err := decodeBody(r, &fields); err != nil || fields == nil {
		s.writeError(w, r, badRequestError("Invalid JSON body"), mapDefault)
		return
	}
	patch, err := parsePatch(fields)
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	t, err := s.svc.Update(r.Context(), sessionActor(r), r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	writeAPIJSON(w, map[string]any{"task": t})
}

func (s *Server) handleArchiveTask(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Archive(r.Context(), sessionActor(r), r.PathValue("id")); err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	writeAPIJSON(w, map[string]bool{"success": true})
}

func (s *Server) handleRestoreTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.Restore(r.Context(), sessionActor(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	writeAPIJSON(w, map[string]any{"task": t})
}

func (s *Server) handleActivateTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.SetActive(r.Context(), sessionActor(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	writeAPIJSON(w, map[string]any{"task": t})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), sessionActor(r), r.PathValue("id")); err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	writeAPIJSON(w, map[string]bool{"success": true})
}

// historyView is one history entry with both sides decoded.
type historyView struct {
	ID        string            `json:"id"`
	TaskID    string            `json:"taskId"`
	TaskTitle string            `json:"taskTitle,omitempty"`
	Field     string            `json:"field"`
	OldValue  *task.ChangeValue `json:"oldValue"`
	NewValue  *task.ChangeValue `json:"newValue"`
	UserID    string            `json:"userId"`
	CreatedAt int64             `json:"createdAt"`
}

func viewEntry(e task.HistoryEntry) historyView {
	v := historyView{ID: e.ID, TaskID: e.TaskID, Field: e.Field, UserID: e.UserID, CreatedAt: e.CreatedAt}
	if from, ok := e.Old(); ok {
		v.OldValue = &from
	}
	if to, ok := e.New(); ok {
		v.NewValue = &to
	}
	return v
}

func (s *Server) handleTaskHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.TaskHistory(r.Context(), sessionActor(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	out := make([]historyView, 0, len(entries))
	for _, e := range entries {
		out = append(out, viewEntry(e))
	}
	writeAPIJSON(w, map[string]any{"entries": out})
}

func (s *Server) handleRecentActivity(w http.ResponseWriter, r *http.Request) {
	limit := task.DefaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, r, badRequestError("limit must be a positive integer"), mapDefault)
			return
		}
		limit = n
	}
	items, err := s.svc.RecentActivity(r.Context(), sessionActor(r), limit)
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	out := make([]historyView, 0, len(items))
	for _, it := range items {
		v := viewEntry(it.HistoryEntry)
		v.TaskTitle = it.TaskTitle
		out = append(out, v)
	}
	writeAPIJSON(w, map[string]any{"items": out})
}

func nonNil(tasks []task.Task) []task.Task {
	if tasks == nil {
		return []task.Task{}
	}
	return tasks
}
