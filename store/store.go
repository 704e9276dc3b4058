// Package store provides the file-backed persistence used by every stateful
// engine component. Each component owns one JSON document and replaces it
// atomically on every mutation, so a crash never leaves a half-written file
// behind.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Repository is the load/save contract a component persists its document
// through. Implementations must replace the document atomically.
type Repository interface {
	// Load unmarshals the stored document into v. It returns false when no
	// document exists yet (first run, or a corrupt file that was reset).
	Load(v any) (bool, error)

	// Save persists v, replacing any previous document.
	Save(v any) error
}

// File stores one JSON document at a fixed path using the
// write-temp-then-rename pattern. A corrupt or unreadable document is
// treated as absent: the component starts from its default state and the
// incident is logged, since it silently forgets history.
type File struct {
	path string
	log  zerolog.Logger
}

func NewFile(path string, log zerolog.Logger) *File {
	return &File{path: path, log: log.With().Str("doc", filepath.Base(path)).Logger()}
}

func (f *File) Path() string { return f.path }

func (f *File) Load(v any) (bool, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", f.path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		// Corrupt state file: recover by starting fresh rather than
		// refusing to run. This loses history, so make it loud.
		f.log.Warn().Err(err).Str("path", f.path).
			Msg("corrupt state document, resetting to defaults")
		return false, nil
	}
	return true, nil
}

func (f *File) Save(v any) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", f.path, err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

// Memory keeps the document in process memory. Used by tests and by the
// backtester, which must not touch the live engine's state files.
type Memory struct {
	data []byte
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load(v any) (bool, error) {
	if m.data == nil {
		return false, nil
	}
	if err := json.Unmarshal(m.data, v); err != nil {
		return false, fmt.Errorf("unmarshal memory document: %w", err)
	}
	return true, nil
}

func (m *Memory) Save(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal memory document: %w", err)
	}
	m.data = data
	return nil
}
