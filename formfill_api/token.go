package formfill_api

import (
	"context"
	"fmt"
)

// TokenSource supplies the bearer token attached to every request.
// An empty token means the request is sent without an Authorization header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed token.
type StaticToken string

// Token returns the fixed token.
func (t StaticToken) Token(ctx context.Context) (string, error) {
	return string(t), nil
}

// KeyValueGetter is the read side of a durable key-value store.
type KeyValueGetter interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

// DefaultTokenKey is the key under which the session token is stored.
const DefaultTokenKey = "auth.token"

// StoreTokenSource reads the token from a key-value store on every request, so a
// token refreshed by another part of the application is picked up immediately.
type StoreTokenSource struct {
	Store KeyValueGetter
	Key   string
}

// Token returns the stored token, or an empty token if none is stored.
func (s StoreTokenSource) Token(ctx context.Context) (string, error) {
	key := s.Key
	if key == "" {
		key = DefaultTokenKey
	}
	token, _, err := s.Store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return token, nil
}
