package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/duynhne/sawa-admin/internal/core/domain"
)

// FileLocalStorage persists scoped items as a JSON document on disk. It backs
// the terminal client, where the process itself plays the browser.
type FileLocalStorage struct {
	mu   sync.Mutex
	path string
}

// NewFileLocalStorage persists items as JSON at path. The file and its
// directory are created on first write.
func NewFileLocalStorage(path string) *FileLocalStorage {
	return &FileLocalStorage{path: path}
}

var _ domain.LocalStorage = (*FileLocalStorage)(nil)

// GetItem reads key from scope. A missing file reads as empty.
func (s *FileLocalStorage) GetItem(_ context.Context, scope, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := doc[scope][key]
	return v, ok, nil
}

// SetItem stores value under key in scope and rewrites the file.
func (s *FileLocalStorage) SetItem(_ context.Context, scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	if doc[scope] == nil {
		doc[scope] = make(map[string]string)
	}
	doc[scope][key] = value
	return s.write(doc)
}

// RemoveItem deletes key from scope and rewrites the file.
func (s *FileLocalStorage) RemoveItem(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	delete(doc[scope], key)
	if len(doc[scope]) == 0 {
		delete(doc, scope)
	}
	return s.write(doc)
}

func (s *FileLocalStorage) read() (map[string]map[string]string, error) {
	doc := make(map[string]map[string]string)
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *FileLocalStorage) write(doc map[string]map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
