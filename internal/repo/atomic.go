// Package repo persists league state to disk with atomic
// write-temp-then-rename semantics (spec §4.5) — no database, one
// owning writer per file, the way the teacher's json-backed fixtures
// in db/ favored a single source of truth over concurrent writers.
package repo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// jsonFile is a single JSON document backed by one file on disk,
// guarded by an in-process mutex so the one owning writer never races
// itself. Callers get a fresh decoded copy on every Load.
type jsonFile struct {
	mu   sync.Mutex
	path string
}

func newJSONFile(path string) *jsonFile {
	return &jsonFile{path: path}
}

// Load decodes the file into v. A missing file is not an error; v is
// left at its zero value.
func (f *jsonFile) Load(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadLocked(v)
}

func (f *jsonFile) loadLocked(v interface{}) error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("repo: read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("repo: decode %s: %w", f.path, err)
	}
	return nil
}

// Save marshals v and atomically replaces the file's contents: write
// to a temp file in the same directory, fsync, then rename over the
// original so a reader never observes a partial write.
func (f *jsonFile) Save(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveLocked(v)
}

func (f *jsonFile) saveLocked(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("repo: encode %s: %w", f.path, err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("repo: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("repo: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("repo: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("repo: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("repo: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("repo: rename into %s: %w", f.path, err)
	}
	return nil
}

// Update loads the current value, applies mutate, and saves the
// result — all while holding the file's lock, so read-modify-write is
// atomic with respect to other callers in this process.
func (f *jsonFile) Update(v interface{}, mutate func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.loadLocked(v); err != nil {
		return err
	}
	if err := mutate(); err != nil {
		return err
	}
	return f.saveLocked(v)
}
