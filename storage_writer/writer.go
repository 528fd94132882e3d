package storage_writer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Logger is the logging surface used by the writer.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Sharer hands a file to the host's share facility.
type Sharer interface {
	Available() bool
	Share(ctx context.Context, uri, mimeType, title string) error
}

// DownloadedFile is a completed download waiting to be persisted.
type DownloadedFile struct {
	// Path is the temporary file holding the exported bytes.
	Path     string
	MimeType string
	// FileName is the desired user-visible file name.
	FileName string
}

// StorageWriteResult describes where a file was persisted.
type StorageWriteResult struct {
	FileName string
	URI      string
}

// Writer persists downloaded files through a StorageBackend.
type Writer struct {
	backend  StorageBackend
	sharer   Sharer
	cacheDir string
	logger   Logger
	cleanup  func(path string)
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithSharer enables Share, promoting files into cacheDir before sharing.
func WithSharer(s Sharer, cacheDir string) WriterOption {
	return func(w *Writer) {
		w.sharer = s
		w.cacheDir = cacheDir
	}
}

// WithLogger sets the writer's logger.
func WithLogger(l Logger) WriterOption {
	return func(w *Writer) {
		w.logger = l
	}
}

// WithCleaner replaces the function used to delete temporary files. It must
// not fail; errors are the cleaner's to report.
func WithCleaner(fn func(path string)) WriterOption {
	return func(w *Writer) {
		w.cleanup = fn
	}
}

// NewWriter creates a Writer saving through backend.
func NewWriter(backend StorageBackend, opts ...WriterOption) *Writer {
	w := &Writer{
		backend: backend,
		logger:  nopLogger{},
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.cleanup == nil {
		w.cleanup = func(path string) {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				w.logger.Warn("Failed to remove temporary file", "path", path, "error", err)
			}
		}
	}
	return w
}

// Backend returns the backend files are saved through.
func (w *Writer) Backend() StorageBackend {
	return w.backend
}

// Save persists f through the backend. A permission failure invalidates the
// cached grant and the whole save is retried once. On success the temporary
// file is removed.
func (w *Writer) Save(ctx context.Context, f DownloadedFile) (StorageWriteResult, error) {
	res, err := w.save(ctx, f)
	if err != nil && errors.Is(err, ErrPermissionDenied) {
		w.logger.Warn("Write permission denied, renewing directory grant", "file", f.FileName, "error", err)
		if ierr := w.backend.Invalidate(ctx); ierr != nil {
			w.logger.Warn("Failed to invalidate directory grant", "error", ierr)
		}
		res, err = w.save(ctx, f)
	}
	if err != nil {
		return StorageWriteResult{}, err
	}
	w.cleanup(f.Path)
	w.logger.Info("Saved export", "file", res.FileName, "uri", res.URI, "backend", string(w.backend.Kind()))
	return res, nil
}

func (w *Writer) save(ctx context.Context, f DownloadedFile) (StorageWriteResult, error) {
	if err := w.backend.Prepare(ctx); err != nil {
		return StorageWriteResult{}, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return StorageWriteResult{}, &StorageError{Op: "read downloaded file", Err: err}
	}
	name, uri, err := w.allocate(ctx, f.FileName, f.MimeType)
	if err != nil {
		return StorageWriteResult{}, err
	}
	if err := w.backend.WriteEntry(ctx, uri, data); err != nil {
		if derr := w.backend.DeleteEntry(ctx, uri); derr != nil {
			w.logger.Warn("Failed to remove partially written entry", "uri", uri, "error", derr)
		}
		return StorageWriteResult{}, err
	}
	return StorageWriteResult{FileName: name, URI: uri}, nil
}

// allocate creates the first free entry among desired and its suffixed variants.
func (w *Writer) allocate(ctx context.Context, desired, mimeType string) (string, string, error) {
	for attempt := 0; attempt < MaxNameAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		name := candidateFileName(desired, attempt)
		uri, err := w.backend.CreateEntry(ctx, name, mimeType)
		if err == nil {
			return name, uri, nil
		}
		if !errors.Is(err, ErrEntryExists) {
			return "", "", err
		}
		w.logger.Debug("File name taken", "name", name)
	}
	return "", "", fmt.Errorf("%w: %s", ErrFilenameAllocationFailed, desired)
}

// Share promotes f into the cache directory under its desired name and hands it
// to the host's share facility.
func (w *Writer) Share(ctx context.Context, f DownloadedFile, title string) (StorageWriteResult, error) {
	if w.sharer == nil || !w.sharer.Available() {
		return StorageWriteResult{}, ErrSharingUnavailable
	}
	if w.cacheDir == "" {
		return StorageWriteResult{}, &StorageError{Op: "share", Err: fmt.Errorf("%w: no cache directory", ErrStorageUnavailable)}
	}
	if err := os.MkdirAll(w.cacheDir, 0755); err != nil {
		return StorageWriteResult{}, &StorageError{Op: "prepare cache directory", Err: errors.Join(ErrStorageUnavailable, err)}
	}

	dest := filepath.Join(w.cacheDir, f.FileName)
	if err := promote(f.Path, dest); err != nil {
		return StorageWriteResult{}, &StorageError{Op: "promote " + f.FileName, Err: err}
	}
	w.cleanup(f.Path)

	uri := fileURI(dest)
	if err := w.sharer.Share(ctx, uri, f.MimeType, title); err != nil {
		return StorageWriteResult{}, &StorageError{Op: "share " + f.FileName, Err: err}
	}
	w.logger.Info("Shared export", "file", f.FileName, "uri", uri)
	return StorageWriteResult{FileName: f.FileName, URI: uri}, nil
}

// promote moves src to dest, overwriting dest. It falls back to a copy when a
// rename is not possible, e.g. across filesystems.
func promote(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0644)
}
