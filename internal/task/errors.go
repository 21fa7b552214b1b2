package task

import (
	"errors"
	"fmt"
)

// ValidationError is returned for bad input before anything is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InvalidStatusError reports a status outside the board columns.
func InvalidStatusError(value string) *ValidationError {
	return NewValidationError("status",
		fmt.Sprintf("Invalid status: %q. Must be one of: %s", value, joinStatuses()))
}

// InvalidPriorityError reports an unknown priority.
func InvalidPriorityError(value string) *ValidationError {
	return NewValidationError("priority",
		fmt.Sprintf("Invalid priority: %q. Must be one of: %s", value, joinPriorities()))
}

// NotFoundError is returned when a task ID does not resolve.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return "Task not found"
}

// ForbiddenError is returned when the caller does not own the task.
// Action is the verb used in token API messages (access, modify, delete, archive).
type ForbiddenError struct {
	ID     string
	Action string
}

func (e *ForbiddenError) Error() string {
	return "Not authorized"
}

// ConflictError is returned when the task's state forbids the operation.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

var (
	errTitleEmpty = NewValidationError("title", "Title cannot be empty")

	// ErrArchivedUpdate is returned by session updates on archived tasks.
	ErrArchivedUpdate = &ConflictError{Message: "Cannot update archived task"}
	// ErrNotArchived is returned when restoring a task that is not archived.
	ErrNotArchived = &ConflictError{Message: "Task is not archived"}
	// ErrArchivedActivate is returned when activating an archived task.
	ErrArchivedActivate = &ConflictError{Message: "Cannot activate archived task"}
)

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsForbidden reports whether err is a ForbiddenError.
func IsForbidden(err error) bool {
	var fe *ForbiddenError
	return errors.As(err, &fe)
}
