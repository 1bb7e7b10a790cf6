// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package sessionstore persists a provider's signed-in session between
// process runs.
package sessionstore

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/oops"
)

// Store saves and loads one JSON-encoded session record.
type Store interface {
	// Load decodes the saved record into v. It returns false when nothing is saved.
	Load(v any) (bool, error)
	// Save replaces the saved record with v.
	Save(v any) error
	// Clear removes the saved record. Clearing an empty store is not an error.
	Clear() error
}

// FileStore keeps the record in a single file readable only by its owner.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file backing the store.
func (s *FileStore) Path() string { return s.path }

// Load implements Store.
func (s *FileStore) Load(v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code("SESSION_STORE_READ_FAILED").With("path", s.path).Wrap(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, oops.Code("SESSION_STORE_CORRUPT").With("path", s.path).Wrap(err)
	}
	return true, nil
}

// Save implements Store. The file is replaced atomically.
func (s *FileStore) Save(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return oops.Code("SESSION_STORE_ENCODE_FAILED").Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return oops.Code("SESSION_STORE_WRITE_FAILED").With("path", s.path).Wrap(err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return oops.Code("SESSION_STORE_WRITE_FAILED").With("path", s.path).Wrap(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return oops.Code("SESSION_STORE_WRITE_FAILED").With("path", s.path).Wrap(err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return oops.Code("SESSION_STORE_WRITE_FAILED").With("path", s.path).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return oops.Code("SESSION_STORE_WRITE_FAILED").With("path", s.path).Wrap(err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return oops.Code("SESSION_STORE_WRITE_FAILED").With("path", s.path).Wrap(err)
	}
	return nil
}

// Clear implements Store.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return oops.Code("SESSION_STORE_CLEAR_FAILED").With("path", s.path).Wrap(err)
	}
	return nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (s *MemoryStore) Load(v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return false, nil
	}
	if err := json.Unmarshal(s.data, v); err != nil {
		return false, oops.Code("SESSION_STORE_CORRUPT").Wrap(err)
	}
	return true, nil
}

// Save implements Store.
func (s *MemoryStore) Save(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return oops.Code("SESSION_STORE_ENCODE_FAILED").Wrap(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	return nil
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
