package kv_store

import "fmt"

// Kind selects a Store implementation.
type Kind string

const (
	KindJSON   Kind = "json"
	KindSQLite Kind = "sqlite"
)

// Open returns the store of the given kind backed by path.
func Open(kind Kind, path string) (Store, error) {
	switch kind {
	case KindJSON, "":
		return NewJSONStore(path)
	case KindSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown key-value store kind: %q", kind)
	}
}
