package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	pkgzerolog "github.com/duynhne/pkg/logger/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/sawa-admin/internal/backend"
	"github.com/duynhne/sawa-admin/internal/core/domain"
	"github.com/duynhne/sawa-admin/middleware"
)

// AuthAPI is the part of the backend the session provider calls.
type AuthAPI interface {
	Login(ctx context.Context, phone, password, role string) (*backend.LoginResponse, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, token string) (*domain.User, error)
}

// TokenStore is satisfied by *tokenstore.Store.
type TokenStore interface {
	Set(ctx context.Context, value string, days int)
	Get(ctx context.Context) (string, domain.TokenSource, bool)
	Remove(ctx context.Context)
}

// Navigator moves the user to another console route.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// ProfileFailurePolicy decides what Mount does when the stored token cannot
// be turned into a profile.
type ProfileFailurePolicy string

const (
	// PolicyForceLogout clears the stored token and resolves anonymous.
	PolicyForceLogout ProfileFailurePolicy = "logout"
	// PolicyKeepToken keeps the token in place and resolves anonymous with no
	// user. Requests still pass the client guard until the token is removed.
	PolicyKeepToken ProfileFailurePolicy = "keep"
)

// ParseProfileFailurePolicy maps a config value to a policy, defaulting to
// PolicyForceLogout.
func ParseProfileFailurePolicy(s string) ProfileFailurePolicy {
	if ProfileFailurePolicy(strings.ToLower(strings.TrimSpace(s))) == PolicyKeepToken {
		return PolicyKeepToken
	}
	return PolicyForceLogout
}

// SessionOption configures a SessionProvider.
type SessionOption func(*SessionProvider)

// WithFailurePolicy sets what Mount does when the backend rejects a stored token.
func WithFailurePolicy(policy ProfileFailurePolicy) SessionOption {
	return func(p *SessionProvider) { p.policy = policy }
}

// WithNavigator sets where login and logout redirect requests go.
func WithNavigator(nav Navigator) SessionOption {
	return func(p *SessionProvider) { p.nav = nav }
}

// WithCookieDays sets the token cookie lifetime in days.
func WithCookieDays(days int) SessionOption {
	return func(p *SessionProvider) { p.cookieDays = days }
}

// WithProfileCache caches /auth/me answers for ttl. A zero ttl disables it.
func WithProfileCache(cache domain.ProfileCache, ttl time.Duration) SessionOption {
	return func(p *SessionProvider) {
		if ttl > 0 {
			p.cache = cache
			p.cacheTTL = ttl
		}
	}
}

// SessionProvider owns the console session: current user, token and loading
// flag. Its lifecycle is uninitialized → loading → authenticated|anonymous.
// The gateway creates one per request; the terminal client one per process.
type SessionProvider struct {
	api        AuthAPI
	tokens     TokenStore
	nav        Navigator
	cache      domain.ProfileCache
	cacheTTL   time.Duration
	policy     ProfileFailurePolicy
	cookieDays int

	mu    sync.RWMutex
	state domain.SessionState
	user  *domain.User
	token string
}

// NewSessionProvider creates a provider in the uninitialized state.
func NewSessionProvider(api AuthAPI, tokens TokenStore, opts ...SessionOption) *SessionProvider {
	p := &SessionProvider{
		api:    api,
		tokens: tokens,
		policy: PolicyForceLogout,
		state:  domain.SessionUninitialized,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Mount resolves the session from the token store. Only the first call does
// any work.
func (p *SessionProvider) Mount(ctx context.Context) domain.Session {
	p.mu.Lock()
	if p.state != domain.SessionUninitialized {
		p.mu.Unlock()
		return p.Snapshot()
	}
	p.state = domain.SessionLoading
	p.mu.Unlock()

	ctx, span := middleware.StartSpan(ctx, "session.mount", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	logger := pkgzerolog.FromContext(ctx)

	token, source, ok := p.tokens.Get(ctx)
	if !ok {
		span.SetAttributes(attribute.Bool("session.token_present", false))
		p.set(domain.SessionAnonymous, nil, "")
		return p.Snapshot()
	}
	span.SetAttributes(
		attribute.Bool("session.token_present", true),
		attribute.String("session.token_source", string(source)),
	)

	p.mu.Lock()
	p.token = token
	p.mu.Unlock()

	user, err := p.fetchProfile(ctx, token)
	if err != nil {
		span.RecordError(err)
		rejected := profileRejected(err)
		logger.Warn().
			Err(err).
			Bool("rejected", rejected).
			Str("policy", string(p.policy)).
			Msg("Profile fetch failed for stored token")

		// An unreachable or failing backend says nothing about the token.
		if rejected && p.policy == PolicyForceLogout {
			p.invalidate(ctx, token)
			return p.Snapshot()
		}
		p.set(domain.SessionAnonymous, nil, token)
		return p.Snapshot()
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	p.set(domain.SessionAuthenticated, user, token)
	return p.Snapshot()
}

// Login authenticates with the backend as an admin. It never returns an
// error; every failure becomes LoginResult{Success:false, Message}.
// On failure the token store is left untouched.
func (p *SessionProvider) Login(ctx context.Context, phone, password string) domain.LoginResult {
	ctx, span := middleware.StartSpan(ctx, "session.login", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	logger := pkgzerolog.FromContext(ctx)

	phone = strings.TrimSpace(phone)
	if phone == "" || password == "" {
		return domain.LoginResult{Success: false, Message: "Phone and password are required"}
	}

	resp, err := p.api.Login(ctx, phone, password, domain.AdminRole)
	if err != nil {
		span.RecordError(err)
		logger.Error().Err(err).Msg("Login request failed")
		msg := backend.MessageOf(err)
		if msg == "" {
			msg = "Login failed, please try again"
		}
		return domain.LoginResult{Success: false, Message: msg}
	}
	if !resp.Success {
		span.SetAttributes(attribute.Bool("auth.success", false))
		msg := resp.Message
		if msg == "" {
			msg = ErrInvalidCredentials.Error()
		}
		return domain.LoginResult{Success: false, Message: msg}
	}
	if resp.AccessToken == "" {
		span.RecordError(ErrMissingAccessToken)
		logger.Error().Err(ErrMissingAccessToken).Msg("Login succeeded without a token")
		return domain.LoginResult{Success: false, Message: "Login failed, no access token received"}
	}

	token := resp.AccessToken
	p.tokens.Set(ctx, token, p.cookieDays)

	user := resp.User
	if user != nil {
		p.cacheProfile(ctx, token, user)
	} else {
		fetched, err := p.fetchProfile(ctx, token)
		if err != nil {
			// The token is valid; the next Mount retries the profile.
			logger.Warn().Err(err).Msg("Profile fetch after login failed")
		}
		user = fetched
	}

	state := domain.SessionAnonymous
	if user != nil {
		state = domain.SessionAuthenticated
		span.SetAttributes(attribute.String("user.id", user.ID))
	}
	p.set(state, user, token)
	span.SetAttributes(attribute.Bool("auth.success", true))

	return domain.LoginResult{Success: true, Message: resp.Message, User: copyUser(user)}
}

// Logout tells the backend (ignoring any failure), then clears the token
// store and the session, then navigates to the login route.
func (p *SessionProvider) Logout(ctx context.Context) {
	ctx, span := middleware.StartSpan(ctx, "session.logout", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	logger := pkgzerolog.FromContext(ctx)

	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()
	if token == "" {
		token, _, _ = p.tokens.Get(ctx)
	}

	if token != "" {
		if err := p.api.Logout(ctx, token); err != nil {
			span.RecordError(err)
			logger.Debug().Err(err).Msg("Remote logout failed, clearing local session anyway")
		}
	}

	p.invalidate(ctx, token)

	if p.nav != nil {
		p.nav.Navigate(middleware.LoginPath)
	}
}

// Snapshot returns a copy of the current state.
func (p *SessionProvider) Snapshot() domain.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return domain.Session{
		State:     p.state,
		User:      copyUser(p.user),
		Token:     p.token,
		IsLoading: !p.state.Resolved(),
	}
}

// HasStoredToken reports a token in the session or in either token location.
func (p *SessionProvider) HasStoredToken() bool {
	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()
	if token != "" {
		return true
	}
	_, _, ok := p.tokens.Get(context.Background())
	return ok
}

// IsAuthenticated reports a resolved session with a user.
func (p *SessionProvider) IsAuthenticated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state == domain.SessionAuthenticated && p.user != nil
}

func (p *SessionProvider) fetchProfile(ctx context.Context, token string) (*domain.User, error) {
	logger := pkgzerolog.FromContext(ctx)

	if p.cache != nil {
		cached, err := p.cache.Get(ctx, token)
		if err != nil {
			logger.Warn().Err(err).Msg("Profile cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	user, err := p.api.Me(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w: %w", ErrProfileUnavailable, err)
	}
	p.cacheProfile(ctx, token, user)
	return user, nil
}

// profileRejected reports whether the backend refused the token itself: a 401
// or 403, or an explicit success:false in a 2xx answer.
func profileRejected(err error) bool {
	if errors.Is(err, backend.ErrUnauthorized) {
		return true
	}
	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return errors.Is(apiErr, backend.ErrUnsuccessful) &&
		apiErr.Status >= http.StatusOK && apiErr.Status < http.StatusMultipleChoices
}

func (p *SessionProvider) cacheProfile(ctx context.Context, token string, user *domain.User) {
	if p.cache == nil || user == nil {
		return
	}
	if err := p.cache.Set(ctx, token, user, p.cacheTTL); err != nil {
		logger := pkgzerolog.FromContext(ctx)
		logger.Warn().Err(err).Msg("Profile cache write failed")
	}
}

// invalidate clears every local trace of token.
func (p *SessionProvider) invalidate(ctx context.Context, token string) {
	p.tokens.Remove(ctx)
	if p.cache != nil && token != "" {
		if err := p.cache.Delete(ctx, token); err != nil {
			logger := pkgzerolog.FromContext(ctx)
			logger.Warn().Err(err).Msg("Profile cache eviction failed")
		}
	}
	p.set(domain.SessionAnonymous, nil, "")
}

func (p *SessionProvider) set(state domain.SessionState, user *domain.User, token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
	p.user = copyUser(user)
	p.token = token
}

func copyUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
