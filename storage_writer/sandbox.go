package storage_writer

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// SandboxDirectoryBackend writes into a private document directory. Entries are
// overwritten, so name allocation always succeeds with the desired name.
type SandboxDirectoryBackend struct {
	dir string
}

// NewSandboxDirectoryBackend creates a backend writing into dir.
func NewSandboxDirectoryBackend(dir string) *SandboxDirectoryBackend {
	return &SandboxDirectoryBackend{dir: dir}
}

func (b *SandboxDirectoryBackend) Kind() BackendKind   { return KindSandbox }
func (b *SandboxDirectoryBackend) RequiresGrant() bool { return false }

// Dir returns the document directory.
func (b *SandboxDirectoryBackend) Dir() string { return b.dir }

func (b *SandboxDirectoryBackend) Prepare(ctx context.Context) error {
	if b.dir == "" {
		return &StorageError{Op: "prepare document directory", Err: ErrStorageUnavailable}
	}
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return &StorageError{Op: "prepare document directory", Err: errors.Join(ErrStorageUnavailable, err)}
	}
	return nil
}

// CreateEntry deletes any file at the destination and creates it anew.
func (b *SandboxDirectoryBackend) CreateEntry(ctx context.Context, name, mimeType string) (string, error) {
	path := filepath.Join(b.dir, name)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", &StorageError{Op: "replace " + name, Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return "", &StorageError{Op: "create " + name, Err: err}
	}
	if err := f.Close(); err != nil {
		return "", &StorageError{Op: "create " + name, Err: err}
	}
	return fileURI(path), nil
}

func (b *SandboxDirectoryBackend) WriteEntry(ctx context.Context, uri string, data []byte) error {
	path := pathFromURI(uri)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &StorageError{Op: "write " + filepath.Base(path), Err: err}
	}
	return nil
}

func (b *SandboxDirectoryBackend) DeleteEntry(ctx context.Context, uri string) error {
	return removeEntry(pathFromURI(uri))
}

func (b *SandboxDirectoryBackend) Invalidate(ctx context.Context) error {
	return nil
}
