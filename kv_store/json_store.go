package kv_store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/isseis/go-formfill-exporter/filelock"
)

// JSONStore keeps all entries in memory and rewrites the backing JSON file on
// every mutation. Writers from other processes are excluded with a lock file.
// All methods are safe for concurrent use.
type JSONStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	path    string
}

// NewJSONStore validates path and loads any existing entries from it.
// A missing file is treated as an empty store.
func NewJSONStore(path string) (*JSONStore, error) {
	if path == "" {
		return nil, fmt.Errorf("filename cannot be empty")
	}
	if path == "." || path == ".." || path[len(path)-1] == '/' {
		return nil, fmt.Errorf("invalid filename: %s", path)
	}

	s := &JSONStore{
		entries: make(map[string]Entry),
		path:    path,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONStore) load() error {
	file, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("file read error: %w", err)
	}
	defer file.Close()

	entries, err := loadEntriesFromReader(file)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

// Get returns the value stored under key.
func (s *JSONStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e.Value, ok, nil
}

// Set stores value under key and persists the store.
func (s *JSONStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return s.mutate(ctx, func(entries map[string]Entry) {
		entries[key] = Entry{Value: value, Updated: time.Now()}
	})
}

// Remove deletes key and persists the store. Removing a missing key is not an error.
func (s *JSONStore) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return s.mutate(ctx, func(entries map[string]Entry) {
		delete(entries, key)
	})
}

// Close is a no-op; every mutation is already on disk.
func (s *JSONStore) Close() error {
	return nil
}

// mutate applies fn to a copy of the entries, writes the copy to disk and only
// then publishes it, so a failed write leaves the in-memory view unchanged.
func (s *JSONStore) mutate(ctx context.Context, fn func(map[string]Entry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]Entry, len(s.entries)+1)
	for k, v := range s.entries {
		next[k] = v
	}
	fn(next)

	if err := s.save(ctx, next); err != nil {
		return err
	}
	s.entries = next
	return nil
}

func (s *JSONStore) save(ctx context.Context, entries map[string]Entry) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("file write error: %w", err)
	}

	unlock, err := filelock.Acquire(ctx, s.path, 0)
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", s.path, err)
	}
	defer unlock()

	tmpPath := s.path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("file write error: %w", err)
	}
	if err := saveEntriesToWriter(file, entries); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("file write error: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("file write error: %w", err)
	}
	return nil
}
