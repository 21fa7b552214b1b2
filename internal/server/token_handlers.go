package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/josephgoksu/loomboard/internal/task"
)

// tokenActor returns the service-account actor set by requirePrincipal.
func tokenActor(r *http.Request) task.Actor {
	p, _ := principalFrom(r.Context())
	return task.TokenActor(p.UserID)
}

type idRequest struct {
	ID string `json:"id"`
}

func (s *Server) decodeID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req idRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err, mapDefault)
		return "", false
	}
	if strings.TrimSpace(req.ID) == "" {
		s.writeError(w, r, badRequestError(msgMissingID), mapDefault)
		return "", false
	}
	return req.ID, true
}

func (s *Server) handleTokenListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.svc.List(r.Context(), tokenActor(r))
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	writeAPIJSON(w, map[string]any{"tasks": formatTasks(tasks, s.svc.Location())})
}

func (s *Server) handleTokenGetTask(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeError(w, r, badRequestError("Missing required query parameter: id"), mapDefault)
		return
	}
	t, err := s.svc.Get(r.Context(), tokenActor(r), id)
	if err != nil {
		s.writeError(w, r, err, mapForbiddenAsNotFound)
		return
	}
	writeAPIJSON(w, map[string]any{"task": formatTask(*t, s.svc.Location())})
}

func (s *Server) handleTokenCreateTask(w http.ResponseWriter, r *http.Request) {
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
	t, err := s.svc.Create(r.Context(), tokenActor(r), in)
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"task": formatTask(*t, s.svc.Location())})
}

func (s *Server) handleTokenUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      string          `json:"id"`
		Updates json.RawMessage `json:"updates"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	if req.ID == "" {
		s.writeError(w, r, badRequestError(msgMissingID), mapDefault)
		return
	}
	var fields map[string]json.RawMessage
	if isNull(req.Updates) || json.Unmarshal(req.Updates, &fields) != nil || fields == nil {
		s.writeError(w, r, badRequestError(msgMissingUpdates), mapDefault)
		return
	}
	patch, err := parsePatch(fields)
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	t, err := s.svc.Update(r.Context(), tokenActor(r), req.ID, patch)
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	writeAPIJSON(w, map[string]any{"task": formatTask(*t, s.svc.Location())})
}

func (s *Server) handleTokenMoveTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	if req.ID == "" {
		s.writeError(w, r, badRequestError(msgMissingID), mapDefault)
		return
	}
	status := task.Status(req.Status)
	if !status.IsValid() {
		s.writeError(w, r, badRequestError("Invalid or missing status. Must be one of: backlog, in_progress, blocked, done"), mapDefault)
		return
	}
	t, err := s.svc.Move(r.Context(), tokenActor(r), req.ID, status)
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	writeAPIJSON(w, map[string]any{"task": formatTask(*t, s.svc.Location())})
}

func (s *Server) handleTokenDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Delete(r.Context(), tokenActor(r), id); err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	writeAPIJSON(w, map[string]bool{"success": true})
}

func (s *Server) handleTokenArchiveTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Archive(r.Context(), tokenActor(r), id); err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	writeAPIJSON(w, map[string]bool{"success": true})
}

func (s *Server) handleTokenSearchTasks(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	// An empty body searches without filters.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, badRequestError("Invalid JSON body"), mapDefault)
		return
	}
	filters, err := req.filters()
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	tasks, err := s.svc.Search(r.Context(), tokenActor(r), filters)
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	writeAPIJSON(w, map[string]any{
		"tasks": formatTasks(tasks, s.svc.Location()),
		"count": len(tasks),
	})
}

func (s *Server) handleTokenBoardSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Summary(r.Context(), tokenActor(r))
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	writeAPIJSON(w, formatSummary(sum, s.svc.Location()))
}

func (s *Server) handleTokenGetActive(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.GetActive(r.Context(), tokenActor(r))
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	if t == nil {
		writeAPIJSON(w, map[string]any{"task": nil})
		return
	}
	writeAPIJSON(w, map[string]any{"task": formatTask(*t, s.svc.Location())})
}

func (s *Server) handleTokenSetActive(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeID(w, r)
	if !ok {
		return
	}
	t, err := s.svc.SetActive(r.Context(), tokenActor(r), id)
	if err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	writeAPIJSON(w, map[string]any{"task": formatTask(*t, s.svc.Location())})
}

func (s *Server) handleTokenClearActive(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ClearActive(r.Context(), tokenActor(r)); err != nil {
		s.writeError(w, r, err, mapDefault)
		return
	}
	writeAPIJSON(w, map[string]bool{"success": true})
}
