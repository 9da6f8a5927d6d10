package domain

import (
	"context"
	"time"
)

// SessionState is the lifecycle of a console session.
type SessionState string

const (
	SessionUninitialized SessionState = "uninitialized"
	SessionLoading       SessionState = "loading"
	SessionAuthenticated SessionState = "authenticated"
	SessionAnonymous     SessionState = "anonymous"
)

// Resolved reports whether loading has finished.
func (s SessionState) Resolved() bool {
	return s == SessionAuthenticated || s == SessionAnonymous
}

// Session is a point-in-time copy of the provider state.
type Session struct {
	State     SessionState `json:"state"`
	User      *User        `json:"user"`
	Token     string       `json:"-"`
	IsLoading bool         `json:"is_loading"`
}

// ProfileCache remembers /auth/me results keyed by token.
type ProfileCache interface {
	// Get returns (nil, nil) on a miss.
	Get(ctx context.Context, token string) (*User, error)
	Set(ctx context.Context, token string, user *User, ttl time.Duration) error
	Delete(ctx context.Context, token string) error
}
