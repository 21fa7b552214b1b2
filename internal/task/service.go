package task

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Repository is the transactional storage the Service runs on.
// Every Service operation runs inside exactly one InTx call.
type Repository interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of reads and writes available inside one transaction.
type Tx interface {
	// GetTask returns nil, nil when the task does not exist.
	GetTask(id string) (*Task, error)
	ListTasks(owner string, q Query) ([]Task, error)
	ListDoneBefore(cutoff int64) ([]Task, error)
	// MaxOrder returns 0 when the column is empty.
	MaxOrder(owner string, status Status) (float64, error)
	InsertTask(t *Task) error
	UpdateTask(t *Task) error
	// DeleteTask removes the task together with its history.
	DeleteTask(id string) error
	InsertHistory(e *HistoryEntry) error
	TaskHistory(taskID string) ([]HistoryEntry, error)
	RecentActivity(userID string, limit int) ([]ActivityItem, error)
}

// Surface identifies which API a caller came through.
type Surface int

const (
	// SurfaceSession is the per-user board API.
	SurfaceSession Surface = iota
	// SurfaceToken is the agent API authenticated by a static token.
	SurfaceToken
)

// Actor is the resolved caller of a Service operation.
type Actor struct {
	UserID  string
	Surface Surface
}

// SessionActor returns an actor for the board API.
func SessionActor(userID string) Actor { return Actor{UserID: userID, Surface: SurfaceSession} }

// TokenActor returns an actor for the agent API.
func TokenActor(userID string) Actor { return Actor{UserID: userID, Surface: SurfaceToken} }

// Service encapsulates the task repository operations and the activity
// history recorder.
type Service struct {
	repo Repository
	now  func() time.Time
	loc  *time.Location
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the time zone used for "today" in due-date filters.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewService creates a new task Service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.now() }

// Location returns the board time zone.
func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) nowMillis() int64 { return s.now().UnixMilli() }

// record writes one history entry stamped with the service clock.
func (s *Service) record(tx Tx, taskID, userID string, c change) error {
	e := c.entry(taskID, userID)
	e.CreatedAt = s.nowMillis()
	return tx.InsertHistory(e)
}

// owned loads a task and enforces ownership.
func owned(tx Tx, a Actor, id, action string) (*Task, error) {
	t, err := tx.GetTask(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, &NotFoundError{ID: id}
	}
	if t.UserID != a.UserID {
		return nil, &ForbiddenError{ID: id, Action: action}
	}
	return t, nil
}

// Create inserts a new task at the bottom of its column.
func (s *Service) Create(ctx context.Context, a Actor, in CreateInput) (*Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, errTitleEmpty
	}
	if in.Status == "" {
		in.Status = StatusBacklog
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !in.Status.IsValid() {
		return nil, InvalidStatusError(string(in.Status))
	}
	if !in.Priority.IsValid() {
		return nil, InvalidPriorityError(string(in.Priority))
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	var created *Task
	err := s.repo.InTx(ctx, func(tx Tx) error {
		maxOrder, err := tx.MaxOrder(a.UserID, in.Status)
		if err != nil {
			return err
		}
		now := s.nowMillis()
		t := &Task{
			Title:       title,
			Description: in.Description,
			Status:      in.Status,
			Priority:    in.Priority,
			Tags:        tags,
			DueDate:     in.DueDate,
			Order:       maxOrder + 1,
			UserID:      a.UserID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.InsertTask(t); err != nil {
			return err
		}
		payload := ObjectValue(createdPayload{Title: in.Title, Status: in.Status})
		if err := s.record(tx, t.ID, a.UserID, change{field: FieldCreated, to: &payload}); err != nil {
			return err
		}
		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get returns one task owned by the actor, archived or not.
func (s *Service) Get(ctx context.Context, a Actor, id string) (*Task, error) {
	var found *Task
	err := s.repo.InTx(ctx, func(tx Tx) error {
		t, err := owned(tx, a, id, "access")
		found = t
		return err
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// List returns all non-archived tasks of the actor.
func (s *Service) List(ctx context.Context, a Actor) ([]Task, error) {
	return s.list(ctx, a, Query{})
}

// ListByStatus returns the actor's non-archived tasks in one column.
func (s *Service) ListByStatus(ctx context.Context, a Actor, status Status) ([]Task, error) {
	if !status.IsValid() {
		return nil, InvalidStatusError(string(status))
	}
	return s.list(ctx, a, Query{Status: status})
}

// ListArchived returns the actor's archived tasks.
func (s *Service) ListArchived(ctx context.Context, a Actor) ([]Task, error) {
	return s.list(ctx, a, Query{Archived: true})
}

func (s *Service) list(ctx context.Context, a Actor, q Query) ([]Task, error) {
	var tasks []Task
	err := s.repo.InTx(ctx, func(tx Tx) error {
		var err error
		tasks, err = tx.ListTasks(a.UserID, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update applies a partial update and records one history entry per
// changed field. Diffs use the raw input; the stored title is trimmed.
func (s *Service) Update(ctx context.Context, a Actor, id string, p Patch) (*Task, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	var updated *Task
	err := s.repo.InTx(ctx, func(tx Tx) error {
		t, err := owned(tx, a, id, "modify")
		if err != nil {
			return err
		}
		if t.Archived && a.Surface == SurfaceSession {
			return ErrArchivedUpdate
		}

		for _, c := range p.changes(t) {
			if err := s.record(tx, t.ID, a.UserID, c); err != nil {
				return err
			}
		}

		p.applyTo(t)
		t.UpdatedAt = s.nowMillis()
		if err := tx.UpdateTask(t); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Move changes only the status of a task.
func (s *Service) Move(ctx context.Context, a Actor, id string, status Status) (*Task, error) {
	return s.Update(ctx, a, id, Patch{Status: &status})
}

func (p Patch) validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return errTitleEmpty
	}
	if p.Status != nil && !p.Status.IsValid() {
		return InvalidStatusError(string(*p.Status))
	}
	if p.Priority != nil && !p.Priority.IsValid() {
		return InvalidPriorityError(string(*p.Priority))
	}
	return nil
}

// changes lists the fields of p that differ from t.
func (p Patch) changes(t *Task) []change {
	var out []change
	add := func(field string, from, to *ChangeValue) {
		if c, ok := diff(field, from, to); ok {
			out = append(out, c)
		}
	}

	if p.Title != nil {
		add(FieldTitle, ptr(StringValue(t.Title)), ptr(StringValue(*p.Title)))
	}
	if p.Description != nil {
		var from *ChangeValue
		if t.Description != "" {
			from = ptr(StringValue(t.Description))
		}
		add(FieldDescription, from, ptr(StringValue(*p.Description)))
	}
	if p.Status != nil {
		add(FieldStatus, ptr(StringValue(string(t.Status))), ptr(StringValue(string(*p.Status))))
	}
	if p.Priority != nil {
		add(FieldPriority, ptr(StringValue(string(t.Priority))), ptr(StringValue(string(*p.Priority))))
	}
	if p.Tags != nil {
		add(FieldTags, ptr(StringsValue(t.Tags)), ptr(StringsValue(*p.Tags)))
	}
	if p.DueDate != nil || p.ClearDueDate {
		var from, to *ChangeValue
		if t.DueDate != nil {
			from = ptr(NumberValue(float64(*t.DueDate)))
		}
		if p.DueDate != nil {
			to = ptr(NumberValue(float64(*p.DueDate)))
		}
		add(FieldDueDate, from, to)
	}
	if p.Order != nil {
		add(FieldOrder, ptr(NumberValue(t.Order)), ptr(NumberValue(*p.Order)))
	}
	return out
}

func (p Patch) applyTo(t *Task) {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Tags != nil {
		t.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.DueDate != nil {
		t.DueDate = ptr(*p.DueDate)
	} else if p.ClearDueDate {
		t.DueDate = nil
	}
	if p.Order != nil {
		t.Order = *p.Order
	}
}

// Archive soft-deletes a task. Archiving twice records two entries.
func (s *Service) Archive(ctx context.Context, a Actor, id string) error {
	return s.repo.InTx(ctx, func(tx Tx) error {
		t, err := owned(tx, a, id, "archive")
		if err != nil {
			return err
		}
		return s.archive(tx, t)
	})
}

func (s *Service) archive(tx Tx, t *Task) error {
	t.Archived = true
	t.UpdatedAt = s.nowMillis()
	if err := tx.UpdateTask(t); err != nil {
		return err
	}
	return s.record(tx, t.ID, t.UserID, change{
		field: FieldArchived, from: ptr(BoolValue(false)), to: ptr(BoolValue(true)),
	})
}

// Restore brings an archived task back into the backlog.
func (s *Service) Restore(ctx context.Context, a Actor, id string) (*Task, error) {
	var restored *Task
	err := s.repo.InTx(ctx, func(tx Tx) error {
		t, err := owned(tx, a, id, "modify")
		if err != nil {
			return err
		}
		if !t.Archived {
			return ErrNotArchived
		}
		t.Archived = false
		t.Status = StatusBacklog
		t.UpdatedAt = s.nowMillis()
		if err := tx.UpdateTask(t); err != nil {
			return err
		}
		restored = t
		return s.record(tx, t.ID, a.UserID, change{
			field: FieldArchived, from: ptr(BoolValue(true)), to: ptr(BoolValue(false)),
		})
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

// Delete permanently removes a task and its history.
func (s *Service) Delete(ctx context.Context, a Actor, id string) error {
	return s.repo.InTx(ctx, func(tx Tx) error {
		if _, err := owned(tx, a, id, "delete"); err != nil {
			return err
		}
		return tx.DeleteTask(id)
	})
}

// SetActive marks one task as being worked on and deactivates every other
// active task of the owner in the same transaction.
func (s *Service) SetActive(ctx context.Context, a Actor, id string) (*Task, error) {
	var activated *Task
	err := s.repo.InTx(ctx, func(tx Tx) error {
		t, err := owned(tx, a, id, "modify")
		if err != nil {
			return err
		}
		if t.Archived {
			return ErrArchivedActivate
		}

		if err := s.deactivateAll(tx, a, t.ID); err != nil {
			return err
		}

		wasActive := t.IsActive
		t.IsActive = true
		t.UpdatedAt = s.nowMillis()
		if err := tx.UpdateTask(t); err != nil {
			return err
		}
		activated = t
		return s.record(tx, t.ID, a.UserID, change{
			field: FieldIsActive, from: ptr(BoolValue(wasActive)), to: ptr(BoolValue(true)),
		})
	})
	if err != nil {
		return nil, err
	}
	return activated, nil
}

// ClearActive deactivates every active task of the owner.
func (s *Service) ClearActive(ctx context.Context, a Actor) error {
	return s.repo.InTx(ctx, func(tx Tx) error {
		return s.deactivateAll(tx, a, "")
	})
}

// deactivateAll clears isActive on the owner's active tasks except keepID.
// Only session callers get a history entry per deactivated task.
func (s *Service) deactivateAll(tx Tx, a Actor, keepID string) error {
	active, err := tx.ListTasks(a.UserID, Query{ActiveOnly: true})
	if err != nil {
		return err
	}
	for i := range active {
		t := &active[i]
		if t.ID == keepID {
			continue
		}
		t.IsActive = false
		t.UpdatedAt = s.nowMillis()
		if err := tx.UpdateTask(t); err != nil {
			return err
		}
		if a.Surface != SurfaceSession {
			continue
		}
		if err := s.record(tx, t.ID, a.UserID, change{
			field: FieldIsActive, from: ptr(BoolValue(true)), to: ptr(BoolValue(false)),
		}); err != nil {
			return err
		}
	}
	return nil
}

// GetActive returns the owner's active task, or nil.
func (s *Service) GetActive(ctx context.Context, a Actor) (*Task, error) {
	tasks, err := s.list(ctx, a, Query{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return &tasks[0], nil
}

// Search filters the owner's non-archived tasks.
func (s *Service) Search(ctx context.Context, a Actor, f Filters) ([]Task, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	tasks, err := s.List(ctx, a)
	if err != nil {
		return nil, err
	}
	return f.Apply(tasks, s.now(), s.loc), nil
}

// Summary groups the owner's non-archived tasks by column.
func (s *Service) Summary(ctx context.Context, a Actor) (BoardSummary, error) {
	tasks, err := s.List(ctx, a)
	if err != nil {
		return BoardSummary{}, err
	}
	return Summarize(tasks, s.now(), s.loc), nil
}

// TaskHistory returns the entries of one task, newest first.
func (s *Service) TaskHistory(ctx context.Context, a Actor, id string) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	err := s.repo.InTx(ctx, func(tx Tx) error {
		if _, err := owned(tx, a, id, "access"); err != nil {
			return err
		}
		var err error
		entries, err = tx.TaskHistory(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// RecentActivity returns the owner's newest entries across all tasks.
func (s *Service) RecentActivity(ctx context.Context, a Actor, limit int) ([]ActivityItem, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	var items []ActivityItem
	err := s.repo.InTx(ctx, func(tx Tx) error {
		var err error
		items, err = tx.RecentActivity(a.UserID, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Import bulk-inserts legacy tasks with their precomputed order.
func (s *Service) Import(ctx context.Context, a Actor, tasks []ImportTask) (int, error) {
	for i, in := range tasks {
		if strings.TrimSpace(in.Title) == "" {
			return 0, NewValidationError("tasks", fmt.Sprintf("Task %d: Title cannot be empty", i))
		}
		if !in.Status.IsValid() {
			return 0, InvalidStatusError(string(in.Status))
		}
		if !in.Priority.IsValid() {
			return 0, InvalidPriorityError(string(in.Priority))
		}
	}

	now := s.nowMillis()
	imported := 0
	err := s.repo.InTx(ctx, func(tx Tx) error {
		for _, in := range tasks {
			tags := in.Tags
			if tags == nil {
				tags = []string{}
			}
			t := &Task{
				Title:       in.Title,
				Description: in.Description,
				Status:      in.Status,
				Priority:    in.Priority,
				Tags:        tags,
				DueDate:     in.DueDate,
				Order:       in.Order,
				UserID:      a.UserID,
				CreatedAt:   in.CreatedAt,
				UpdatedAt:   in.UpdatedAt,
			}
			if t.CreatedAt == 0 {
				t.CreatedAt = now
			}
			if t.UpdatedAt == 0 {
				t.UpdatedAt = t.CreatedAt
			}
			if err := tx.InsertTask(t); err != nil {
				return err
			}
			payload := ObjectValue(migratedPayload{Source: "localStorage", Title: in.Title})
			if err := s.record(tx, t.ID, a.UserID, change{field: FieldMigrated, to: &payload}); err != nil {
				return err
			}
			imported++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return imported, nil
}

// ArchiveStale archives done tasks untouched for longer than age, across
// all owners. Each archive is recorded like a user-initiated one.
func (s *Service) ArchiveStale(ctx context.Context, age time.Duration) (int, error) {
	cutoff := s.now().Add(-age).UnixMilli()
	archived := 0
	err := s.repo.InTx(ctx, func(tx Tx) error {
		stale, err := tx.ListDoneBefore(cutoff)
		if err != nil {
			return err
		}
		for i := range stale {
			if err := s.archive(tx, &stale[i]); err != nil {
				return err
			}
			archived++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return archived, nil
}
