package domain

import "context"

// TokenKey is both the cookie name and the local storage key of the bearer token.
const TokenKey = "token"

// TokenSource names where a stored token was read from. Cookie wins over
// LocalStorage on read.
type TokenSource string

const (
	TokenSourceCookie       TokenSource = "cookie"
	TokenSourceLocalStorage TokenSource = "local_storage"
)

// LocalStorage is a string key/value store partitioned by scope (one scope per
// browser client). Entries never expire on their own.
// Implementations live in internal/core/repository.
type LocalStorage interface {
	// GetItem returns ("", false, nil) when the key is absent.
	GetItem(ctx context.Context, scope, key string) (string, bool, error)
	SetItem(ctx context.Context, scope, key, value string) error
	RemoveItem(ctx context.Context, scope, key string) error
}
