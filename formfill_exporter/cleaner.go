package formfill_exporter

import (
	"errors"
	"io/fs"
	"sync"
)

// CleanupObserver is notified of every temporary-file removal. err is nil when
// the file was removed or already gone.
type CleanupObserver func(path string, err error)

// WithCleanupObserver registers an observer of temporary-file removals.
func WithCleanupObserver(fn CleanupObserver) ExporterOption {
	return func(e *Exporter) {
		e.cleaner.observer = fn
	}
}

// cleaner removes temporary files. Removal never fails from the caller's point
// of view: errors are logged, counted and reported to the observer.
type cleaner struct {
	fs       FileSystemOperations
	logger   func() Logger
	observer CleanupObserver

	mu       sync.Mutex
	attempts int
	errs     int
}

func (c *cleaner) remove(path string) {
	if path == "" {
		return
	}
	err := c.fs.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		err = nil
	}

	c.mu.Lock()
	c.attempts++
	if err != nil {
		c.errs++
	}
	c.mu.Unlock()

	if err != nil {
		c.logger().Warn("Failed to remove temporary file", "path", path, "error", err)
		cleanupFailures.Inc()
	}
	if c.observer != nil {
		c.observer(path, err)
	}
}

// counts returns the running totals of removal attempts and failures.
func (c *cleaner) counts() (attempts, errs int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts, c.errs
}
