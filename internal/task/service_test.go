package task_test

import (
	"context"
	"testing"
	"time"

	"github.com/josephgoksu/loomboard/internal/memory"
	"github.com/josephgoksu/loomboard/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday.
var fixedNow = time.Date(2024, time.January, 10, 15, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestService(t *testing.T) (*task.Service, *fakeClock) {
	t.Helper()
	store, err := memory.NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clock := &fakeClock{now: fixedNow}
	return task.NewService(store, task.WithClock(clock.Now)), clock
}

func mustCreate(t *testing.T, svc *task.Service, a task.Actor, in task.CreateInput) *task.Task {
	t.Helper()
	created, err := svc.Create(context.Background(), a, in)
	require.NoError(t, err)
	return created
}

func history(t *testing.T, svc *task.Service, a task.Actor, id string) []task.HistoryEntry {
	t.Helper()
	entries, err := svc.TaskHistory(context.Background(), a, id)
	require.NoError(t, err)
	return entries
}

func millis(t time.Time) *int64 {
	v := t.UnixMilli()
	return &v
}

func TestCreate_FirstTaskInColumn(t *testing.T) {
	svc, _ := newTestService(t)
	a := task.SessionActor("u1")

	created := mustCreate(t, svc, a, task.CreateInput{
		Title: "  Write spec  ", Status: task.StatusBacklog, Priority: task.PriorityHigh,
	})

	assert.Equal(t, "Write spec", created.Title)
	assert.Equal(t, float64(1), created.Order)
	assert.False(t, created.Archived)
	assert.False(t, created.IsActive)
	assert.Equal(t, []string{}, created.Tags)
	assert.Equal(t, fixedNow.UnixMilli(), created.CreatedAt)

	entries := history(t, svc, a, created.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, task.FieldCreated, entries[0].Field)
	assert.Nil(t, entries[0].OldValue)
	require.NotNil(t, entries[0].NewValue)
	assert.JSONEq(t, `{"title":"  Write spec  ","status":"backlog"}`, *entries[0].NewValue)
}

func TestCreate_OrderFollowsColumnMax(t *testing.T) {
	svc, _ := newTestService(t)
	a := task.SessionActor("u1")

	first := mustCreate(t, svc, a, task.CreateInput{Title: "one"})
	second := mustCreate(t, svc, a, task.CreateInput{Title: "two"})
	other := mustCreate(t, svc, a, task.CreateInput{Title: "three", Status: task.StatusDone})
	foreign := mustCreate(t, svc, task.SessionActor("u2"), task.CreateInput{Title: "four"})

	assert.Equal(t, float64(1), first.Order)
	assert.Equal(t, float64(2), second.Order)
	assert.Equal(t, float64(1), other.Order)
	assert.Equal(t, float64(1), foreign.Order)
	assert.Equal(t, task.PriorityMedium, first.Priority)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	a := task.SessionActor("u1")

	_, err := svc.Create(context.Background(), a, task.CreateInput{Title: "   "})
	var ve *task.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Title cannot be empty", ve.Message)

	_, err = svc.Create(context.Background(), a, task.CreateInput{Title: "x", Status: "doing"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, `Invalid status: "doing". Must be one of: backlog, in_progress, blocked, done`, ve.Message)

	tasks, err := svc.List(context.Background(), a)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestGet_OwnershipAndMissing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created := mustCreate(t, svc, task.SessionActor("u1"), task.CreateInput{Title: "mine"})

	_, err := svc.Get(ctx, task.SessionActor("u2"), created.ID)
	assert.True(t, task.IsForbidden(err))

	_, err = svc.Get(ctx, task.SessionActor("u1"), "missing")
	assert.True(t, task.IsNotFound(err))
}

func TestUpdate_NoOpStatusLogsNothing(t *testing.T) {
	svc, _ := newTestService(t)
	a := task.SessionActor("u1")
	created := mustCreate(t, svc, a, task.CreateInput{Title: "t"})

	_, err := svc.Move(context.Background(), a, created.ID, task.StatusBacklog)
	require.NoError(t, err)

	assert.Len(t, history(t, svc, a, created.ID), 1)
}

func TestUpdate_LogsEachChangedField(t *testing.T) {
	svc, clock := newTestService(t)
	a := task.SessionActor("u1")
	created := mustCreate(t, svc, a, task.CreateInput{Title: "Plan", Tags: []string{"a"}})

	clock.now = fixedNow.Add(time.Minute)
	title := "Plan "
	status := task.StatusInProgress
	tags := []string{"a"}
	due := fixedNow.Add(48 * time.Hour).UnixMilli()

	updated, err := svc.Update(context.Background(), a, created.ID, task.Patch{
		Title: &title, Status: &status, Tags: &tags, DueDate: &due,
	})
	require.NoError(t, err)
	assert.Equal(t, "Plan", updated.Title)
	assert.Equal(t, task.StatusInProgress, updated.Status)
	assert.Equal(t, clock.now.UnixMilli(), updated.UpdatedAt)

	entries := history(t, svc, a, created.ID)
	fields := map[string]task.HistoryEntry{}
	for _, e := range entries {
		fields[e.Field] = e
	}
	require.Len(t, entries, 4)
	assert.Contains(t, fields, task.FieldTitle)
	assert.Contains(t, fields, task.FieldStatus)
	assert.Contains(t, fields, task.FieldDueDate)
	assert.NotContains(t, fields, task.FieldTags)

	assert.Equal(t, `"Plan"`, *fields[task.FieldTitle].OldValue)
	assert.Equal(t, `"Plan "`, *fields[task.FieldTitle].NewValue)
	assert.Nil(t, fields[task.FieldDueDate].OldValue)

	v, ok := fields[task.FieldDueDate].New()
	require.True(t, ok)
	assert.Equal(t, float64(due), v.Num)
}

func TestUpdate_ClearDueDate(t *testing.T) {
	svc, _ := newTestService(t)
	a := task.TokenActor("u1")
	created := mustCreate(t, svc, a, task.CreateInput{Title: "t", DueDate: millis(fixedNow)})

	updated, err := svc.Update(context.Background(), a, created.ID, task.Patch{ClearDueDate: true})
	require.NoError(t, err)
	assert.Nil(t, updated.DueDate)

	entries := history(t, svc, a, created.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, task.FieldDueDate, entries[0].Field)
	assert.NotNil(t, entries[0].OldValue)
	assert.Nil(t, entries[0].NewValue)
}

func TestUpdate_ArchivedDependsOnSurface(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	session := task.SessionActor("u1")
	created := mustCreate(t, svc, session, task.CreateInput{Title: "t"})
	require.NoError(t, svc.Archive(ctx, session, created.ID))

	title := "renamed"
	_, err := svc.Update(ctx, session, created.ID, task.Patch{Title: &title})
	var ce *task.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Cannot update archived task", ce.Message)

	updated, err := svc.Update(ctx, task.TokenActor("u1"), created.ID, task.Patch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.True(t, updated.Archived)
}

func TestArchiveRestore(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := task.SessionActor("u1")
	created := mustCreate(t, svc, a, task.CreateInput{Title: "t", Status: task.StatusDone})

	require.NoError(t, svc.Archive(ctx, a, created.ID))
	require.NoError(t, svc.Archive(ctx, a, created.ID))

	listed, err := svc.List(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, listed)

	archived, err := svc.ListArchived(ctx, a)
	require.NoError(t, err)
	require.Len(t, archived, 1)

	restored, err := svc.Restore(ctx, a, created.ID)
	require.NoError(t, err)
	assert.False(t, restored.Archived)
	assert.Equal(t, task.StatusBacklog, restored.Status)

	entries := history(t, svc, a, created.ID)
	require.Len(t, entries, 4)
	for _, e := range entries[:3] {
		assert.Equal(t, task.FieldArchived, e.Field)
	}
	assert.Equal(t, "true", *entries[0].OldValue)
	assert.Equal(t, "false", *entries[0].NewValue)

	_, err = svc.Restore(ctx, a, created.ID)
	assert.ErrorIs(t, err, task.ErrNotArchived)
}

func TestSetActive_SessionLogsSiblings(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := task.SessionActor("u1")
	first := mustCreate(t, svc, a, task.CreateInput{Title: "A"})
	second := mustCreate(t, svc, a, task.CreateInput{Title: "B"})

	_, err := svc.SetActive(ctx, a, first.ID)
	require.NoError(t, err)
	_, err = svc.SetActive(ctx, a, second.ID)
	require.NoError(t, err)

	active, err := svc.GetActive(ctx, a)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)

	got, err := svc.Get(ctx, a, first.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	firstEntries := history(t, svc, a, first.ID)
	require.Len(t, firstEntries, 3)
	assert.Equal(t, "true", *firstEntries[0].OldValue)
	assert.Equal(t, "false", *firstEntries[0].NewValue)

	secondEntries := history(t, svc, a, second.ID)
	require.Len(t, secondEntries, 2)
	assert.Equal(t, task.FieldIsActive, secondEntries[0].Field)
	assert.Equal(t, "false", *secondEntries[0].OldValue)
	assert.Equal(t, "true", *secondEntries[0].NewValue)
}

func TestSetActive_TokenSkipsSiblingHistory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := task.TokenActor("u1")
	first := mustCreate(t, svc, a, task.CreateInput{Title: "A"})
	second := mustCreate(t, svc, a, task.CreateInput{Title: "B"})

	_, err := svc.SetActive(ctx, a, first.ID)
	require.NoError(t, err)
	_, err = svc.SetActive(ctx, a, second.ID)
	require.NoError(t, err)

	assert.Len(t, history(t, svc, a, first.ID), 2)
	assert.Len(t, history(t, svc, a, second.ID), 2)

	require.NoError(t, svc.ClearActive(ctx, a))
	active, err := svc.GetActive(ctx, a)
	require.NoError(t, err)
	assert.Nil(t, active)
	assert.Len(t, history(t, svc, a, second.ID), 2)
}

func TestSetActive_ArchivedRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := task.SessionActor("u1")
	created := mustCreate(t, svc, a, task.CreateInput{Title: "A"})
	require.NoError(t, svc.Archive(ctx, a, created.ID))

	_, err := svc.SetActive(ctx, a, created.ID)
	assert.ErrorIs(t, err, task.ErrArchivedActivate)
}

func TestClearActive_SessionLogs(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := task.SessionActor("u1")
	created := mustCreate(t, svc, a, task.CreateInput{Title: "A"})
	_, err := svc.SetActive(ctx, a, created.ID)
	require.NoError(t, err)

	require.NoError(t, svc.ClearActive(ctx, a))

	entries := history(t, svc, a, created.ID)
	require.Len(t, entries, 3)
	assert.Equal(t, "false", *entries[0].NewValue)
}

func TestDelete_CascadesHistory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := task.TokenActor("u1")
	created := mustCreate(t, svc, a, task.CreateInput{Title: "A"})

	require.ErrorAs(t, svc.Delete(ctx, task.TokenActor("u2"), created.ID), new(*task.ForbiddenError))
	require.NoError(t, svc.Delete(ctx, a, created.ID))

	_, err := svc.Get(ctx, a, created.ID)
	assert.True(t, task.IsNotFound(err))

	items, err := svc.RecentActivity(ctx, a, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func seedDueDates(t *testing.T, svc *task.Service, a task.Actor) map[string]string {
	t.Helper()
	ids := map[string]string{}
	add := func(name string, status task.Status, due *int64) {
		ids[name] = mustCreate(t, svc, a, task.CreateInput{Title: name, Status: status, DueDate: due}).ID
	}
	add("overdue-done", task.StatusDone, millis(time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)))
	add("overdue-open", task.StatusBlocked, millis(time.Date(2024, 1, 9, 23, 0, 0, 0, time.UTC)))
	add("today", task.StatusBacklog, millis(time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)))
	add("this-week", task.StatusBacklog, millis(time.Date(2024, 1, 13, 18, 0, 0, 0, time.UTC)))
	add("next-week", task.StatusBacklog, millis(time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)))
	add("undated", task.StatusBacklog, nil)
	return ids
}

func titles(tasks []task.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, tk := range tasks {
		out = append(out, tk.Title)
	}
	return out
}

func TestSearch_DuePresets(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := task.TokenActor("u1")
	seedDueDates(t, svc, a)

	cases := []struct {
		preset task.DuePreset
		want   []string
	}{
		{task.DueOverdue, []string{"overdue-done", "overdue-open"}},
		{task.DueToday, []string{"today"}},
		{task.DueThisWeek, []string{"today", "this-week"}},
		{task.DueNoDueDate, []string{"undated"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.preset), func(t *testing.T) {
			got, err := svc.Search(ctx, a, task.Filters{DueDate: &task.DueDateFilter{Preset: tc.preset}})
			require.NoError(t, err)
			assert.Equal(t, tc.want, titles(got))
		})
	}
}

func TestSearch_RangeIsInclusive(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := task.TokenActor("u1")
	seedDueDates(t, svc, a)

	got, err := svc.Search(ctx, a, task.Filters{DueDate: &task.DueDateFilter{
		After: "2024-01-10T12:00:00Z", Before: "2024-01-13T18:00:00Z",
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"today", "this-week"}, titles(got))
}

func TestSearch_TextTagsAndEnums(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := task.TokenActor("u1")
	mustCreate(t, svc, a, task.CreateInput{Title: "Fix LOGIN bug", Tags: []string{"auth"}, Priority: task.PriorityHigh})
	mustCreate(t, svc, a, task.CreateInput{Title: "Docs", Description: "explain login flow", Tags: []string{"docs"}})
	mustCreate(t, svc, a, task.CreateInput{Title: "Other", Tags: []string{"misc"}})

	got, err := svc.Search(ctx, a, task.Filters{Text: "login"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Fix LOGIN bug", "Docs"}, titles(got))

	got, err = svc.Search(ctx, a, task.Filters{Tags: []string{"docs", "misc"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Docs", "Other"}, titles(got))

	got, err = svc.Search(ctx, a, task.Filters{Text: "login", Priority: task.PriorityHigh})
	require.NoError(t, err)
	assert.Equal(t, []string{"Fix LOGIN bug"}, titles(got))

	_, err = svc.Search(ctx, a, task.Filters{Priority: "p0"})
	assert.ErrorAs(t, err, new(*task.ValidationError))

	_, err = svc.Search(ctx, a, task.Filters{DueDate: &task.DueDateFilter{Preset: "someday"}})
	assert.ErrorAs(t, err, new(*task.ValidationError))

	_, err = svc.Search(ctx, a, task.Filters{DueDate: &task.DueDateFilter{After: "not a date"}})
	assert.ErrorAs(t, err, new(*task.ValidationError))
}

func TestSummary_OverdueExcludesDone(t *testing.T) {
	svc, _ := newTestService(t)
	a := task.TokenActor("u1")
	seedDueDates(t, svc, a)

	summary, err := svc.Summary(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Total)
	require.Len(t, summary.Columns, 4)
	assert.Equal(t, task.StatusBacklog, summary.Columns[0].Status)
	assert.Len(t, summary.Columns[0].Tasks, 4)
	assert.Len(t, summary.Columns[2].Tasks, 1)
	assert.Equal(t, []string{"overdue-open"}, titles(summary.Overdue))
}

func TestImport_RecordsMigration(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := task.SessionActor("u1")

	n, err := svc.Import(ctx, a, []task.ImportTask{
		{Title: "Legacy", Status: task.StatusInProgress, Priority: task.PriorityUrgent, Order: 0, CreatedAt: 42, UpdatedAt: 42},
		{Title: "Second", Status: task.StatusBacklog, Priority: task.PriorityLow, Order: 1, CreatedAt: 43, UpdatedAt: 43},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	tasks, err := svc.List(ctx, a)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, int64(42), tasks[0].CreatedAt)
	assert.Equal(t, float64(0), tasks[0].Order)

	entries := history(t, svc, a, tasks[0].ID)
	require.Len(t, entries, 1)
	assert.Equal(t, task.FieldMigrated, entries[0].Field)
	assert.JSONEq(t, `{"source":"localStorage","title":"Legacy"}`, *entries[0].NewValue)
}

func TestArchiveStale(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	a := task.SessionActor("u1")
	old := mustCreate(t, svc, a, task.CreateInput{Title: "old", Status: task.StatusDone})
	openTask := mustCreate(t, svc, a, task.CreateInput{Title: "open"})

	clock.now = fixedNow.Add(8 * 24 * time.Hour)
	fresh := mustCreate(t, svc, a, task.CreateInput{Title: "fresh", Status: task.StatusDone})

	n, err := svc.ArchiveStale(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := svc.Get(ctx, a, old.ID)
	require.NoError(t, err)
	assert.True(t, got.Archived)

	for _, id := range []string{openTask.ID, fresh.ID} {
		got, err := svc.Get(ctx, a, id)
		require.NoError(t, err)
		assert.False(t, got.Archived)
	}
}

func TestRecentActivity_DefaultLimitAndOrder(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	a := task.SessionActor("u1")
	first := mustCreate(t, svc, a, task.CreateInput{Title: "first"})
	clock.now = fixedNow.Add(time.Second)
	mustCreate(t, svc, a, task.CreateInput{Title: "second"})

	items, err := svc.RecentActivity(ctx, a, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "second", items[0].TaskTitle)
	assert.Equal(t, first.ID, items[1].TaskID)

	items, err = svc.RecentActivity(ctx, a, 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestImport_RejectsInvalidBatchAtomically(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := task.SessionActor("u1")

	_, err := svc.Import(ctx, a, []task.ImportTask{
		{Title: "Good", Status: task.StatusBacklog, Priority: task.PriorityLow},
		{Title: "Bad", Status: task.Status("in-progress"), Priority: task.PriorityLow},
	})
	var ve *task.ValidationError
	require.ErrorAs(t, err, &ve)

	tasks, err := svc.List(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
