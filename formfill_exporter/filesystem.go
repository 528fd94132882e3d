package formfill_exporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileSystemOperations abstracts the temporary-file operations of the engine so
// tests can inject failures.
type FileSystemOperations interface {
	// CreateFile creates filename for writing, creating parent directories if needed.
	CreateFile(filename string, dirPerm os.FileMode, filePerm os.FileMode) (io.WriteCloser, error)
	// Remove deletes the specified file from the filesystem.
	Remove(path string) error
}

// DefaultFileSystem implements FileSystemOperations with the os package.
type DefaultFileSystem struct{}

// CreateFile creates filename exclusively, creating parent directories if needed.
func (fs *DefaultFileSystem) CreateFile(filename string, dirPerm os.FileMode, filePerm os.FileMode) (io.WriteCloser, error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, &ExportError{Op: fmt.Sprintf("MkdirAll for %s", dir), Err: err}
	}
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return nil, &ExportError{Op: fmt.Sprintf("create %s", filename), Err: err}
	}
	return f, nil
}

func (fs *DefaultFileSystem) Remove(path string) error {
	return os.Remove(path)
}
