package storage_writer

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrStorageUnavailable means there is nowhere to write: no document or
	// cache directory is configured, or the host cannot share.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrSharingUnavailable is an ErrStorageUnavailable raised by Share.
	ErrSharingUnavailable = fmt.Errorf("sharing unavailable: %w", ErrStorageUnavailable)
	// ErrPermissionDenied means the granted directory cannot be written.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrGrantCancelled means the user dismissed the directory picker.
	ErrGrantCancelled = errors.New("directory grant cancelled")
	// ErrFilenameAllocationFailed means every candidate file name was taken.
	ErrFilenameAllocationFailed = errors.New("could not allocate a file name")
	// ErrEntryExists is returned by CreateEntry when the name is taken.
	ErrEntryExists = errors.New("entry already exists")
)

// StorageError attaches the failing operation to an underlying error.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// classifyFSError maps filesystem failures inside a granted directory onto the
// storage taxonomy. A directory that vanished is treated like a revoked grant.
func classifyFSError(op string, err error) error {
	switch {
	case errors.Is(err, fs.ErrExist):
		return &StorageError{Op: op, Err: ErrEntryExists}
	case errors.Is(err, fs.ErrPermission), errors.Is(err, fs.ErrNotExist):
		return &StorageError{Op: op, Err: fmt.Errorf("%w: %v", ErrPermissionDenied, err)}
	default:
		return &StorageError{Op: op, Err: err}
	}
}
