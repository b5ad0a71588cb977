// Package storage provides durable JSON state files for bot services.
//
// Each logical section owns one file under the state directory. Writes go
// through a temp file plus rename so a crash never leaves a torn file.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists named JSON sections under one state directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the state directory when missing and returns a store.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("new file store: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("new file store: create directory %s: %w", dir, err)
	}

	return &FileStore{dir: dir}, nil
}

// Load decodes one section into target.
// found is false when the section file does not exist yet.
func (s *FileStore) Load(section string, target any) (found bool, err error) {
	path, err := s.sectionPath(section)
	if err != nil {
		return false, fmt.Errorf("load section %s: %w", section, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load section %s: %w", section, err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return false, fmt.Errorf("load section %s: decode: %w", section, err)
	}

	return true, nil
}

// Save encodes value and atomically replaces the section file.
func (s *FileStore) Save(section string, value any) error {
	path, err := s.sectionPath(section)
	if err != nil {
		return fmt.Errorf("save section %s: %w", section, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("save section %s: encode: %w", section, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("save section %s: write temp file: %w", section, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("save section %s: replace file: %w", section, err)
	}

	return nil
}

// sectionPath validates the section name and returns its file path.
func (s *FileStore) sectionPath(section string) (string, error) {
	if section == "" {
		return "", fmt.Errorf("empty section name")
	}
	if section != filepath.Base(section) {
		return "", fmt.Errorf("section name %q contains path separators", section)
	}

	return filepath.Join(s.dir, section+".json"), nil
}
