// Package storage_writer persists downloaded exports into user-visible storage
// or hands them to the host's share facility.
package storage_writer

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
)

// BackendKind names a storage backend variant.
type BackendKind string

const (
	// KindScopedGrant writes into a user-chosen directory behind an explicit grant.
	KindScopedGrant BackendKind = "scoped"
	// KindSandbox writes into the application's private document directory.
	KindSandbox BackendKind = "sandbox"
)

// StorageBackend is where saved exports land. The save algorithm in Writer is
// written once against this interface.
type StorageBackend interface {
	Kind() BackendKind
	// RequiresGrant reports whether the user must grant access to a directory.
	RequiresGrant() bool
	// Prepare acquires write access.
	Prepare(ctx context.Context) error
	// CreateEntry creates an empty entry named name and returns its URI.
	// Returns ErrEntryExists if the backend does not overwrite and the name is taken.
	CreateEntry(ctx context.Context, name, mimeType string) (string, error)
	// WriteEntry writes data into the entry created by CreateEntry.
	WriteEntry(ctx context.Context, uri string, data []byte) error
	// DeleteEntry removes an entry whose write failed. A missing entry is not an error.
	DeleteEntry(ctx context.Context, uri string) error
	// Invalidate drops any cached grant so the next Prepare asks again.
	Invalidate(ctx context.Context) error
}

// fileURI returns the file:// URI of path.
func fileURI(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// pathFromURI is the inverse of fileURI. Plain paths are returned unchanged.
func pathFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}
	return filepath.FromSlash(u.Path)
}

// removeEntry deletes path, treating a missing file as removed.
func removeEntry(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &StorageError{Op: "remove " + filepath.Base(path), Err: err}
	}
	return nil
}
