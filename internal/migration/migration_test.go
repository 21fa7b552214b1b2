package migration

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/josephgoksu/loomboard/internal/auth"
	"github.com/josephgoksu/loomboard/internal/logger"
	"github.com/josephgoksu/loomboard/internal/memory"
	"github.com/josephgoksu/loomboard/internal/server"
	"github.com/josephgoksu/loomboard/internal/task"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var importNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func validRaw() map[string]any {
	return map[string]any{"id": "1", "title": "Old", "status": "in-progress"}
}

func with(raw map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(raw)+1)
	for k, v := range raw {
		out[k] = v
	}
	out[key] = value
	return out
}

func TestIsValidV1Task(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want bool
	}{
		{"minimal", validRaw(), true},
		{"nil", nil, false},
		{"numeric id", with(validRaw(), "id", 1.0), false},
		{"empty id", with(validRaw(), "id", ""), false},
		{"blank title", with(validRaw(), "title", "   "), false},
		{"new-style status", with(validRaw(), "status", "in_progress"), false},
		{"priority not string", with(validRaw(), "priority", 1.0), false},
		{"tag list", with(validRaw(), "tag", []any{"a"}), false},
		{"archived string", with(validRaw(), "archived", "yes"), false},
		{"createdAt string", with(validRaw(), "createdAt", "today"), false},
		{"createdAt number", with(validRaw(), "createdAt", 1700000000000.0), true},
		{"null blockedReason", with(validRaw(), "blockedReason", nil), true},
		{"numeric blockedReason", with(validRaw(), "blockedReason", 3.0), false},
		{"null startedAt", with(validRaw(), "startedAt", nil), false},
		{"unknown priority still valid", with(validRaw(), "priority", "p9"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidV1Task(tt.raw))
		})
	}
}

func TestTransform_LegacyTask(t *testing.T) {
	got := Transform(LegacyTask{
		ID: "1", Title: "Old", Status: "in-progress", Priority: "p1", Tag: "bug", DueDate: "2024-01-01",
	}, 0, importNow)

	assert.Equal(t, task.StatusInProgress, got.Status)
	assert.Equal(t, task.PriorityHigh, got.Priority)
	assert.Equal(t, []string{"bug"}, got.Tags)
	require.NotNil(t, got.DueDate)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), *got.DueDate)
	assert.Equal(t, importNow.UnixMilli(), got.CreatedAt)
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
}

func TestTransform_Fallbacks(t *testing.T) {
	created := 1700000000000.0
	got := Transform(LegacyTask{
		Title: "x", Status: "???", Priority: "", DueDate: "not a date", CreatedAt: &created,
	}, 7, importNow)

	assert.Equal(t, task.StatusBacklog, got.Status)
	assert.Equal(t, task.PriorityMedium, got.Priority)
	assert.Equal(t, []string{}, got.Tags)
	assert.Nil(t, got.DueDate)
	assert.Equal(t, float64(7), got.Order)
	assert.Equal(t, int64(1700000000000), got.CreatedAt)
	assert.Equal(t, int64(1700000000000), got.UpdatedAt)
}

func TestTransform_PriorityMap(t *testing.T) {
	for code, want := range map[string]task.Priority{
		"p0": task.PriorityUrgent, "p1": task.PriorityHigh, "p2": task.PriorityMedium, "p3": task.PriorityLow,
	} {
		got := Transform(LegacyTask{Title: "x", Status: "done", Priority: code}, 0, importNow)
		assert.Equal(t, want, got.Priority, code)
		assert.Equal(t, task.StatusDone, got.Status)
	}
}

func TestPrepare(t *testing.T) {
	plan := Prepare([]map[string]any{
		{"id": "a", "title": "Archived", "status": "done", "archived": true},
		{"id": "b", "title": "First", "status": "backlog"},
		{"id": "c", "title": "", "status": "backlog"},
		nil,
		{"id": "d", "title": "Second", "status": "blocked", "priority": "p0"},
	}, importNow)

	assert.Equal(t, 4, plan.Total)
	assert.Equal(t, 2, plan.Valid)
	assert.Equal(t, 2, plan.Skipped())
	require.Len(t, plan.Tasks, 2)
	assert.Equal(t, "First", plan.Tasks[0].Title)
	assert.Equal(t, float64(0), plan.Tasks[0].Order)
	assert.Equal(t, "Second", plan.Tasks[1].Title)
	assert.Equal(t, float64(1), plan.Tasks[1].Order)
	assert.Equal(t, task.PriorityUrgent, plan.Tasks[1].Priority)
}

func TestReadExport(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/export.json", []byte(`{"tasks":[{"id":"1","title":"Old","status":"backlog"}, 42]}`), 0644))
	require.NoError(t, afero.WriteFile(fs, "/broken.json", []byte(`{"tasks":`), 0644))
	require.NoError(t, afero.WriteFile(fs, "/other.json", []byte(`{"items":[]}`), 0644))

	tasks, err := ReadExport(fs, "/export.json")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Old", tasks[0]["title"])
	assert.Nil(t, tasks[1])

	_, err = ReadExport(fs, "/broken.json")
	assert.ErrorIs(t, err, ErrMalformedExport)

	_, err = ReadExport(fs, "/other.json")
	assert.ErrorIs(t, err, ErrMalformedExport)

	_, err = ReadExport(fs, "/missing.json")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrMalformedExport))
}

func TestFlag(t *testing.T) {
	fs := afero.NewMemMapFs()
	flag := NewFlag(fs, "/data")

	assert.False(t, flag.Done())
	require.NoError(t, flag.Mark())
	assert.True(t, flag.Done())
	assert.Equal(t, "/data/migration-complete", flag.Path())

	require.NoError(t, flag.Clear())
	assert.False(t, flag.Done())
	require.NoError(t, flag.Clear())
}

func newLocalRunner(t *testing.T, fs afero.Fs) (*Runner, *task.Service) {
	t.Helper()
	store, err := memory.NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := task.NewService(store, task.WithClock(func() time.Time { return importNow }))
	return &Runner{
		FS:       fs,
		Flag:     NewFlag(fs, "/data"),
		Importer: ServiceImporter{Service: svc, UserID: "owner"},
		Now:      func() time.Time { return importNow },
		Log:      logger.Discard(),
	}, svc
}

const legacyExport = `{"tasks":[
	{"id":"1","title":"Old","status":"in-progress","priority":"p1","tag":"bug","dueDate":"2024-01-01","createdAt":1700000000000},
	{"id":"2","title":"Gone","status":"done","archived":true},
	{"id":"3","title":"","status":"backlog"}
]}`

func TestRunner_ImportsIntoLocalBoard(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/export.json", []byte(legacyExport), 0644))
	runner, svc := newLocalRunner(t, fs)

	var asked Plan
	res, err := runner.Run(context.Background(), "/export.json", func(p Plan) bool {
		asked = p
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Valid)
	assert.Equal(t, "Imported 1 of 2 tasks", res.Message())
	assert.Equal(t, 1, asked.Valid)
	assert.True(t, runner.Flag.Done())

	owner := task.SessionActor("owner")
	tasks, err := svc.List(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.StatusInProgress, tasks[0].Status)
	assert.Equal(t, []string{"bug"}, tasks[0].Tags)
	assert.Equal(t, int64(1700000000000), tasks[0].UpdatedAt)

	history, err := svc.TaskHistory(context.Background(), owner, tasks[0].ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, task.FieldMigrated, history[0].Field)

	// The flag stops a second run.
	res, err = runner.Run(context.Background(), "/export.json", nil)
	require.NoError(t, err)
	assert.True(t, res.AlreadyDone)
}

func TestRunner_DeclineLeavesFlagUnset(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/export.json", []byte(legacyExport), 0644))
	runner, svc := newLocalRunner(t, fs)

	res, err := runner.Run(context.Background(), "/export.json", func(Plan) bool { return false })
	require.NoError(t, err)
	assert.True(t, res.Declined)
	assert.False(t, runner.Flag.Done())

	tasks, err := svc.List(context.Background(), task.SessionActor("owner"))
	require.NoError(t, err)
	assert.Empty(t, tasks)

	require.NoError(t, runner.Skip())
	assert.True(t, runner.Flag.Done())
}

func TestRunner_NothingToImportSetsFlag(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/export.json", []byte(`{"tasks":[]}`), 0644))
	runner, _ := newLocalRunner(t, fs)

	res, err := runner.Run(context.Background(), "/export.json", func(Plan) bool {
		t.Fatal("confirm should not be called")
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, "No valid tasks found in the export.", res.Message())
	assert.True(t, runner.Flag.Done())
}

func TestAPIImporter_PostsToSessionAPI(t *testing.T) {
	store, err := memory.NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := task.NewService(store)
	sessions := auth.NewSessionVerifier("session-secret", "")
	api, err := server.New(server.Options{
		Service:  svc,
		Tokens:   auth.NewServiceAccounts(),
		Sessions: sessions,
		Logger:   logger.Discard(),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	token, err := sessions.Issue("owner", time.Hour)
	require.NoError(t, err)

	plan := Prepare([]map[string]any{
		{"id": "1", "title": "One", "status": "backlog"},
		{"id": "2", "title": "Two", "status": "done", "priority": "p3"},
	}, importNow)

	n, err := NewAPIImporter(srv.URL, token, nil).Import(context.Background(), plan.Tasks)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	tasks, err := svc.List(context.Background(), task.SessionActor("owner"))
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	_, err = NewAPIImporter(srv.URL, "not-a-jwt", nil).Import(context.Background(), plan.Tasks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthorized")
}
