package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/josephgoksu/loomboard/internal/auth"
	"github.com/josephgoksu/loomboard/internal/task"
)

type errorBody struct {
	Error string `json:"error"`
}

// errorMode tweaks the status mapping for single endpoints.
type errorMode int

const (
	mapDefault errorMode = iota
	// mapForbiddenAsNotFound hides other owners' tasks behind 404.
	mapForbiddenAsNotFound
)

// errorStatus maps domain errors to an HTTP status and client message.
func errorStatus(err error, mode errorMode) (int, string) {
	var (
		ve *task.ValidationError
		nf *task.NotFoundError
		fe *task.ForbiddenError
		ce *task.ConflictError
		be badRequestError
	)
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.As(err, &be):
		return http.StatusBadRequest, be.Error()
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.As(err, &nf):
		return http.StatusNotFound, fmt.Sprintf("Task not found with ID: %s", nf.ID)
	case errors.As(err, &fe):
		msg := fmt.Sprintf("Not authorized to %s this task", fe.Action)
		if mode == mapForbiddenAsNotFound {
			return http.StatusNotFound, msg
		}
		return http.StatusForbidden, msg
	case errors.As(err, &ce):
		return http.StatusConflict, ce.Message
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, mode errorMode) {
	status, msg := errorStatus(err, mode)
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", r.URL.Path).Error("request error")
	}
	writeJSON(w, status, errorBody{Error: msg})
}

// badRequestError is a request-shape problem caught before the service runs.
type badRequestError string

func (e badRequestError) Error() string { return string(e) }

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeAPIJSON(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, data)
}

// decodeBody reads a JSON object body into dst.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return badRequestError("Invalid JSON body")
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return badRequestError("Invalid JSON body")
	}
	return nil
}
