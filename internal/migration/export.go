package migration

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// FlagFileName marks a data directory whose legacy tasks were imported or
// deliberately skipped.
const FlagFileName = "migration-complete"

// ErrMalformedExport is returned when the export is not {"tasks": [...]}.
var ErrMalformedExport = errors.New("export does not contain a tasks array")

// ReadExport reads the legacy {"tasks": [...]} document at path. Entries
// that are not JSON objects are kept as nil and fail validation later.
func ReadExport(fs afero.Fs, path string) ([]map[string]any, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	var doc struct {
		Tasks []json.RawMessage `json:"tasks"`
	}
	if err := json.Unmarshal(data, &doc); err != nil || doc.Tasks == nil {
		return nil, ErrMalformedExport
	}

	out := make([]map[string]any, 0, len(doc.Tasks))
	for _, raw := range doc.Tasks {
		var m map[string]any
		_ = json.Unmarshal(raw, &m)
		out = append(out, m)
	}
	return out, nil
}

// Flag is the advisory marker that stops repeated migration prompts. It
// does not prevent a second import of the same tasks.
type Flag struct {
	fs   afero.Fs
	path string
}

func NewFlag(fs afero.Fs, dataDir string) *Flag {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Flag{fs: fs, path: filepath.Join(dataDir, FlagFileName)}
}

func (f *Flag) Path() string { return f.path }

// Done reports whether the marker is set.
func (f *Flag) Done() bool {
	data, err := afero.ReadFile(f.fs, f.path)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "true"
}

// Mark sets the marker.
func (f *Flag) Mark() error {
	if err := f.fs.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if err := afero.WriteFile(f.fs, f.path, []byte("true\n"), 0644); err != nil {
		return fmt.Errorf("write migration flag: %w", err)
	}
	return nil
}

// Clear removes the marker. A missing marker is not an error.
func (f *Flag) Clear() error {
	if err := f.fs.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove migration flag: %w", err)
	}
	return nil
}
