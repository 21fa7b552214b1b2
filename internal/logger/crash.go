package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const (
	// CrashLogDir is the crash log directory under the data dir.
	CrashLogDir = "crash_logs"

	// MaxCrashLogs is how many crash logs are kept.
	MaxCrashLogs = 10
)

// CrashLog is one captured panic.
type CrashLog struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version"`
	Source     string    `json:"source"`
	PanicValue string    `json:"panic_value"`
	StackTrace string    `json:"stack_trace"`
	Request    string    `json:"request,omitempty"`
	GoVersion  string    `json:"go_version"`
	OS         string    `json:"os"`
	Arch       string    `json:"arch"`
}

// CrashReporter writes crash logs to <basePath>/crash_logs.
type CrashReporter struct {
	fs      afero.Fs
	dir     string
	version string
	log     *log.Logger
	now     func() time.Time
}

// NewCrashReporter creates a reporter. A nil fs uses the OS filesystem.
func NewCrashReporter(fs afero.Fs, basePath, version string, l *log.Logger) *CrashReporter {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if basePath == "" {
		basePath = ".loomboard"
	}
	if l == nil {
		l = Discard()
	}
	return &CrashReporter{
		fs:      fs,
		dir:     filepath.Join(basePath, CrashLogDir),
		version: version,
		log:     l,
		now:     time.Now,
	}
}

// Dir returns the crash log directory.
func (c *CrashReporter) Dir() string { return c.dir }

// Capture records a recovered panic value and returns the file it was written to.
// source names what was running (a command or "GET /api/tasks"); request is
// optional extra context.
func (c *CrashReporter) Capture(source string, panicValue any, stack []byte, request string) (string, error) {
	entry := CrashLog{
		Timestamp:  c.now(),
		Version:    c.version,
		Source:     source,
		PanicValue: fmt.Sprintf("%v", panicValue),
		StackTrace: string(stack),
		Request:    truncateForLog(request, 2000),
		GoVersion:  runtime.Version(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
	}

	path, err := c.write(entry)
	if err != nil {
		c.log.WithError(err).Error("write crash log")
		return "", err
	}
	c.log.WithFields(log.Fields{
		"source": source,
		"panic":  entry.PanicValue,
		"file":   path,
	}).Error("recovered panic")
	return path, nil
}

// HandlePanic recovers a panic in a command, records it and exits.
// Usage: defer reporter.HandlePanic("serve")
func (c *CrashReporter) HandlePanic(command string) {
	if r := recover(); r != nil {
		path, err := c.Capture(command, r, debug.Stack(), "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "[CRASH] Panic: %v\n%s\n", r, debug.Stack())
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "\nloomboard crashed. A crash log has been saved to:\n  %s\n\n", path)
		os.Exit(1)
	}
}

func truncateForLog(value string, maxLen int) string {
	if len(value) <= maxLen {
		return value
	}
	return value[:maxLen] + "... [truncated]"
}

func (c *CrashReporter) write(entry CrashLog) (string, error) {
	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("create crash log dir: %w", err)
	}
	if err := c.prune(MaxCrashLogs - 1); err != nil {
		c.log.WithError(err).Warn("clean old crash logs")
	}

	path := c.pathFor(entry.Timestamp)
	if err := afero.WriteFile(c.fs, path, []byte(formatCrashLog(entry)), 0o644); err != nil {
		return "", fmt.Errorf("write crash log: %w", err)
	}
	return path, nil
}

func (c *CrashReporter) pathFor(t time.Time) string {
	return filepath.Join(c.dir, fmt.Sprintf("crash_%s.log", t.UTC().Format("20060102_150405.000")))
}

func formatCrashLog(entry CrashLog) string {
	rule := func(ch string) string { return strings.Repeat(ch, 80) + "\n" }
	section := func(sb *strings.Builder, title, body string) {
		sb.WriteString("\n" + rule("-"))
		sb.WriteString(title + "\n")
		sb.WriteString(rule("-"))
		sb.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			sb.WriteString("\n")
		}
	}

	var sb strings.Builder
	sb.WriteString(rule("="))
	sb.WriteString("LOOMBOARD CRASH LOG\n")
	sb.WriteString(rule("=") + "\n")

	fmt.Fprintf(&sb, "Timestamp: %s\n", entry.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "Version:   %s\n", entry.Version)
	fmt.Fprintf(&sb, "Source:    %s\n", entry.Source)
	fmt.Fprintf(&sb, "Go:        %s\n", entry.GoVersion)
	fmt.Fprintf(&sb, "OS/Arch:   %s/%s\n", entry.OS, entry.Arch)

	section(&sb, "PANIC VALUE", entry.PanicValue)
	section(&sb, "STACK TRACE", entry.StackTrace)
	if entry.Request != "" {
		section(&sb, "REQUEST", entry.Request)
	}

	sb.WriteString("\n" + rule("="))
	sb.WriteString("END OF CRASH LOG\n")
	sb.WriteString(rule("="))
	return sb.String()
}

// prune keeps at most keep crash logs, removing the oldest.
func (c *CrashReporter) prune(keep int) error {
	logs, err := c.List()
	if err != nil {
		return err
	}
	if len(logs) <= keep {
		return nil
	}
	for _, path := range logs[:len(logs)-keep] {
		if err := c.fs.Remove(path); err != nil {
			return fmt.Errorf("remove old crash log %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

// List returns crash log paths, oldest first.
func (c *CrashReporter) List() ([]string, error) {
	entries, err := afero.ReadDir(c.fs, c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var logs []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "crash_") && strings.HasSuffix(e.Name(), ".log") {
			logs = append(logs, filepath.Join(c.dir, e.Name()))
		}
	}
	sort.Strings(logs)
	return logs, nil
}

// Read returns the content of one crash log.
func (c *CrashReporter) Read(path string) (string, error) {
	content, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}
