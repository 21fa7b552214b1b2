package logger

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReporter(t *testing.T) (*CrashReporter, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return NewCrashReporter(fs, "/data", "1.0.0-test", nil), fs
}

func TestCrashReporter_Capture(t *testing.T) {
	c, fs := newTestReporter(t)
	c.now = func() time.Time { return time.Date(2025, 1, 15, 14, 30, 45, 0, time.UTC) }

	path, err := c.Capture("GET /api/tasks", "boom", []byte("goroutine 1 [running]:\nmain.main()"), "user=u1")
	require.NoError(t, err)
	assert.Equal(t, "/data/crash_logs/crash_20250115_143045.000.log", path)

	content, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	for _, want := range []string{
		"LOOMBOARD CRASH LOG",
		"Timestamp: 2025-01-15T14:30:45Z",
		"Version:   1.0.0-test",
		"Source:    GET /api/tasks",
		"PANIC VALUE",
		"boom",
		"STACK TRACE",
		"goroutine 1 [running]",
		"REQUEST",
		"user=u1",
	} {
		assert.Contains(t, string(content), want)
	}
}

func TestFormatCrashLog_OmitsEmptyRequest(t *testing.T) {
	out := formatCrashLog(CrashLog{PanicValue: "x", StackTrace: "s"})
	assert.NotContains(t, out, "REQUEST")
	assert.True(t, strings.HasSuffix(out, strings.Repeat("=", 80)+"\n"))
}

func TestCrashReporter_KeepsMostRecent(t *testing.T) {
	c, fs := newTestReporter(t)
	require.NoError(t, fs.MkdirAll(c.Dir(), 0o755))

	for i := range MaxCrashLogs + 5 {
		name := filepath.Join(c.Dir(), fmt.Sprintf("crash_20250101_1200%02d.000.log", i))
		require.NoError(t, afero.WriteFile(fs, name, []byte("old"), 0o644))
	}

	c.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	newest, err := c.Capture("serve", "late", nil, "")
	require.NoError(t, err)

	logs, err := c.List()
	require.NoError(t, err)
	assert.Len(t, logs, MaxCrashLogs)
	assert.Equal(t, newest, logs[len(logs)-1])
	assert.NotContains(t, logs, filepath.Join(c.Dir(), "crash_20250101_120000.000.log"))
}

func TestCrashReporter_ListMissingDir(t *testing.T) {
	c, _ := newTestReporter(t)
	logs, err := c.List()
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestCrashReporter_Read(t *testing.T) {
	c, _ := newTestReporter(t)
	path, err := c.Capture("mcp", "nil map", nil, "")
	require.NoError(t, err)

	content, err := c.Read(path)
	require.NoError(t, err)
	assert.Contains(t, content, "nil map")
}

func TestTruncateForLog(t *testing.T) {
	long := strings.Repeat("a", 3000)
	got := truncateForLog(long, 2000)
	assert.Contains(t, got, "[truncated]")
	assert.Less(t, len(got), 2100)
	assert.Equal(t, "short", truncateForLog("short", 2000))
}

func TestNew_LevelsAndFormats(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "debug", "json")
	require.NoError(t, err)
	l.WithField("task", "t1").Debug("hello")
	assert.Contains(t, buf.String(), `"task":"t1"`)

	_, err = New(&buf, "loud", "text")
	assert.Error(t, err)

	_, err = New(&buf, "info", "xml")
	assert.Error(t, err)
}
