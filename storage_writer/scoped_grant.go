package storage_writer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DirectoryPermissionKey is the fixed key of the cached directory grant.
const DirectoryPermissionKey = "formfill_export.directory_permission"

// PermissionStore is the durable key-value store holding the directory grant.
type PermissionStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// DirectoryPicker asks the user to choose a directory. It returns
// ErrGrantCancelled when the user dismisses the prompt.
type DirectoryPicker interface {
	PickDirectory(ctx context.Context) (string, error)
}

// ScopedGrantBackend writes into a directory the user granted access to. The
// grant token is the directory path, cached under DirectoryPermissionKey.
type ScopedGrantBackend struct {
	store  PermissionStore
	picker DirectoryPicker

	mu  sync.Mutex
	dir string
}

// NewScopedGrantBackend creates a backend caching its grant in store.
func NewScopedGrantBackend(store PermissionStore, picker DirectoryPicker) *ScopedGrantBackend {
	return &ScopedGrantBackend{store: store, picker: picker}
}

func (b *ScopedGrantBackend) Kind() BackendKind   { return KindScopedGrant }
func (b *ScopedGrantBackend) RequiresGrant() bool { return true }

// Prepare loads the cached grant, prompting for a directory if none is cached.
// A cached directory that is gone or not writable yields ErrPermissionDenied.
func (b *ScopedGrantBackend) Prepare(ctx context.Context) error {
	token, ok, err := b.store.Get(ctx, DirectoryPermissionKey)
	if err != nil {
		return &StorageError{Op: "read directory grant", Err: err}
	}
	if !ok || token == "" {
		token, err = b.picker.PickDirectory(ctx)
		if err != nil {
			return err
		}
		if token == "" {
			return ErrGrantCancelled
		}
		if err := checkWritableDir(token); err != nil {
			return err
		}
		if err := b.store.Set(ctx, DirectoryPermissionKey, token); err != nil {
			return &StorageError{Op: "persist directory grant", Err: err}
		}
	} else if err := checkWritableDir(token); err != nil {
		return err
	}

	b.mu.Lock()
	b.dir = token
	b.mu.Unlock()
	return nil
}

// CreateEntry exclusively creates name inside the granted directory.
func (b *ScopedGrantBackend) CreateEntry(ctx context.Context, name, mimeType string) (string, error) {
	dir := b.grantedDir()
	if dir == "" {
		return "", fmt.Errorf("%w: no directory granted", ErrPermissionDenied)
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", classifyFSError("create "+name, err)
	}
	if err := f.Close(); err != nil {
		return "", classifyFSError("create "+name, err)
	}
	return fileURI(path), nil
}

// WriteEntry writes data into an entry returned by CreateEntry.
func (b *ScopedGrantBackend) WriteEntry(ctx context.Context, uri string, data []byte) error {
	path := pathFromURI(uri)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return classifyFSError("write "+filepath.Base(path), err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return classifyFSError("write "+filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return classifyFSError("write "+filepath.Base(path), err)
	}
	return nil
}

func (b *ScopedGrantBackend) DeleteEntry(ctx context.Context, uri string) error {
	return removeEntry(pathFromURI(uri))
}

// Invalidate removes the cached grant.
func (b *ScopedGrantBackend) Invalidate(ctx context.Context) error {
	b.mu.Lock()
	b.dir = ""
	b.mu.Unlock()
	if err := b.store.Remove(ctx, DirectoryPermissionKey); err != nil {
		return &StorageError{Op: "remove directory grant", Err: err}
	}
	return nil
}

func (b *ScopedGrantBackend) grantedDir() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dir
}

// checkWritableDir verifies dir exists, is a directory and accepts new files.
func checkWritableDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return classifyFSError("stat granted directory", err)
	}
	if !info.IsDir() {
		return &StorageError{Op: "stat granted directory", Err: fmt.Errorf("%w: %s is not a directory", ErrPermissionDenied, dir)}
	}
	probe, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		return classifyFSError("probe granted directory", err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return nil
}
