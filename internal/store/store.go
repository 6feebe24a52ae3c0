// Package store persists named JSON documents on disk. A document is a
// whole file; writes replace the whole file or change nothing. The store
// performs no caching: every read goes to disk.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ValidationError rejects a write (or a malformed document name) before any
// state changes.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// StorageError wraps an underlying I/O failure. Not retried.
type StorageError struct {
	Op   string
	Name string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Name, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

const emptyDocument = "[]"

// Store owns a data directory of JSON documents, one file per logical name.
type Store struct {
	dir string

	// Serializes whole-file replacement. No version check: when two writes
	// race, the last one to acquire the lock wins.
	mu sync.Mutex
}

// New creates the data directory if it does not exist yet.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &StorageError{Op: "mkdir", Name: dir, Err: err}
	}
	return &Store{dir: dir}, nil
}

// Read returns the document bytes for name. A document that was never
// written reads as the canonical empty array, not an error.
func (s *Store) Read(name string) ([]byte, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []byte(emptyDocument), nil
	}
	if err != nil {
		return nil, &StorageError{Op: "read", Name: name, Err: err}
	}
	return data, nil
}

// Write validates content as JSON and durably replaces the document for
// name. Invalid content leaves the stored document untouched. The new
// content is on disk before Write returns.
func (s *Store) Write(name string, content []byte) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if !json.Valid(content) {
		return &ValidationError{Reason: "content is not valid JSON"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return &StorageError{Op: "create", Name: name, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return &StorageError{Op: "write", Name: name, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &StorageError{Op: "sync", Name: name, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &StorageError{Op: "close", Name: name, Err: err}
	}
	// Rename is atomic within the directory, so a concurrent Read sees
	// either the old file or the new one, never a partial write.
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &StorageError{Op: "rename", Name: name, Err: err}
	}
	return nil
}

// path maps a document name to its file, rejecting anything that would
// escape the data directory.
func (s *Store) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", &ValidationError{Reason: "invalid document name"}
	}
	return filepath.Join(s.dir, name), nil
}
