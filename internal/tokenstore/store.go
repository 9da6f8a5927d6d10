// Package tokenstore keeps the console bearer token in two places: a cookie
// and a local storage entry.
//
// Reads prefer the cookie and fall back to local storage. Writes go to both
// independently; there is no rollback when one of them fails, so the two
// copies can disagree until the next Set or Remove.
package tokenstore

import (
	"context"
	"time"

	pkgzerolog "github.com/duynhne/pkg/logger/zerolog"

	"github.com/duynhne/sawa-admin/internal/core/domain"
)

// DefaultDays is the cookie lifetime used when Set is called with days <= 0.
const DefaultDays = 7

// Source is one physical location of the token.
type Source interface {
	Kind() domain.TokenSource
	// Get returns ("", false, nil) when no token is stored.
	Get(ctx context.Context) (string, bool, error)
	// Set stores value; maxAge is honored only by sources that can expire.
	Set(ctx context.Context, value string, maxAge time.Duration) error
	Remove(ctx context.Context) error
}

// Store combines the cookie and local storage sources.
type Store struct {
	cookie Source
	local  Source
}

// New returns a Store reading cookie first, then local.
func New(cookie, local Source) *Store {
	return &Store{cookie: cookie, local: local}
}

// Set writes value to both sources. Failures are logged, never returned.
func (s *Store) Set(ctx context.Context, value string, days int) {
	if days <= 0 {
		days = DefaultDays
	}
	maxAge := time.Duration(days) * 24 * time.Hour
	logger := pkgzerolog.FromContext(ctx)

	for _, src := range s.sources() {
		if err := src.Set(ctx, value, maxAge); err != nil {
			logger.Error().
				Err(err).
				Str("source", string(src.Kind())).
				Msg("Failed to store token")
		}
	}
}

// Get returns the cookie token when present, else the local storage token.
func (s *Store) Get(ctx context.Context) (string, domain.TokenSource, bool) {
	logger := pkgzerolog.FromContext(ctx)
	for _, src := range s.sources() {
		value, ok, err := src.Get(ctx)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("source", string(src.Kind())).
				Msg("Failed to read token")
			continue
		}
		if ok && value != "" {
			return value, src.Kind(), true
		}
	}
	return "", "", false
}

// Remove deletes the token from both sources unconditionally.
func (s *Store) Remove(ctx context.Context) {
	logger := pkgzerolog.FromContext(ctx)
	for _, src := range s.sources() {
		if err := src.Remove(ctx); err != nil {
			logger.Error().
				Err(err).
				Str("source", string(src.Kind())).
				Msg("Failed to remove token")
		}
	}
}

// sources lists the configured sources in read-precedence order.
func (s *Store) sources() []Source {
	out := make([]Source, 0, 2)
	if s.cookie != nil {
		out = append(out, s.cookie)
	}
	if s.local != nil {
		out = append(out, s.local)
	}
	return out
}
