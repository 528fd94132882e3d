// Package kv_store provides durable string key-value stores used to persist
// small pieces of client state such as the directory permission grant and the
// session token.
package kv_store

import (
	"context"
	"errors"
	"time"
)

// Store is a durable key-value store. Get reports whether the key exists.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// ErrEmptyKey is returned when an operation is called with an empty key.
var ErrEmptyKey = errors.New("key cannot be empty")

// Entry is a stored value together with the time it was last written.
type Entry struct {
	Value   string
	Updated time.Time
}
