// Package filelock provides a lock file based mutual exclusion primitive.
// A lock for path is represented by the file path+".lock"; whoever creates it
// exclusively holds the lock until the returned release function is called.
package filelock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLockHeld is returned when attempting to acquire a lock that is already held.
var ErrLockHeld = errors.New("lock already held")

// DefaultRetryInterval is the polling interval used by Acquire when none is given.
const DefaultRetryInterval = 25 * time.Millisecond

// owner is written into the lock file so a stale lock can be traced back to its process.
type owner struct {
	PID      int    `json:"pid"`
	Acquired string `json:"acquired"`
}

// LockPath returns the lock file path guarding path.
func LockPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return absPath + ".lock", nil
}

// TryLock attempts to acquire the lock guarding path without waiting.
// It returns a function releasing the lock, or ErrLockHeld if another holder exists.
func TryLock(path string) (func(), error) {
	lockFile, err := LockPath(path)
	if err != nil {
		return nil, err
	}

	// O_EXCL makes creation the acquisition step.
	f, err := os.OpenFile(lockFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrLockHeld
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	_ = json.NewEncoder(f).Encode(owner{PID: os.Getpid(), Acquired: time.Now().Format(time.RFC3339)})
	f.Close()

	return func() {
		os.Remove(lockFile)
	}, nil
}

// Acquire waits until the lock guarding path can be taken or ctx is done.
// A non-positive retryInterval selects DefaultRetryInterval.
func Acquire(ctx context.Context, path string, retryInterval time.Duration) (func(), error) {
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	for {
		unlock, err := TryLock(path)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, ErrLockHeld) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock on %s: %w", path, ctx.Err())
		case <-time.After(retryInterval):
		}
	}
}
