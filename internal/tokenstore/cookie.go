package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/duynhne/sawa-admin/internal/core/domain"
)

// CookieJar is the cookie surface of *gin.Context; FileCookieJar implements it
// for the terminal client.
type CookieJar interface {
	Cookie(name string) (string, error)
	SetCookie(name, value string, maxAge int, path, domain string, secure, httpOnly bool)
	SetSameSite(samesite http.SameSite)
}

// jarErrer is implemented by jars whose SetCookie can fail, such as
// FileCookieJar.
type jarErrer interface {
	Err() error
}

// CookieOptions are the attributes of the token cookie. Path is always "/"
// and SameSite is always Lax.
type CookieOptions struct {
	Secure   bool
	HTTPOnly bool
	Domain   string
}

// CookieSource stores the token in the "token" cookie.
//
// A value written during the current request is returned by Get even though
// the incoming request still carries the old cookie.
type CookieSource struct {
	jar  CookieJar
	opts CookieOptions

	mu      sync.Mutex
	written *string
}

// NewCookieSource returns a source writing the token cookie to jar.
func NewCookieSource(jar CookieJar, opts CookieOptions) *CookieSource {
	return &CookieSource{jar: jar, opts: opts}
}

// Kind reports domain.TokenSourceCookie.
func (s *CookieSource) Kind() domain.TokenSource { return domain.TokenSourceCookie }

// Get returns the token written during this request, else the incoming cookie.
func (s *CookieSource) Get(_ context.Context) (string, bool, error) {
	s.mu.Lock()
	written := s.written
	s.mu.Unlock()
	if written != nil {
		return *written, *written != "", nil
	}

	value, err := s.jar.Cookie(domain.TokenKey)
	if errors.Is(err, http.ErrNoCookie) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, value != "", nil
}

// Set writes the token cookie with the given max age.
func (s *CookieSource) Set(_ context.Context, value string, maxAge time.Duration) error {
	s.jar.SetSameSite(http.SameSiteLaxMode)
	s.jar.SetCookie(domain.TokenKey, value, int(maxAge/time.Second), "/", s.opts.Domain, s.opts.Secure, s.opts.HTTPOnly)
	if err := s.jarErr(); err != nil {
		return fmt.Errorf("set token cookie: %w", err)
	}

	s.mu.Lock()
	s.written = &value
	s.mu.Unlock()
	return nil
}

// Remove expires the token cookie.
func (s *CookieSource) Remove(_ context.Context) error {
	s.jar.SetSameSite(http.SameSiteLaxMode)
	s.jar.SetCookie(domain.TokenKey, "", -1, "/", s.opts.Domain, s.opts.Secure, s.opts.HTTPOnly)
	if err := s.jarErr(); err != nil {
		return fmt.Errorf("remove token cookie: %w", err)
	}

	empty := ""
	s.mu.Lock()
	s.written = &empty
	s.mu.Unlock()
	return nil
}

// LocalSource stores the token under the "token" key of a client's local storage.
// Entries do not expire.
type LocalSource struct {
	storage domain.LocalStorage
	scope   string
}

// NewLocalSource returns a source over storage for one client scope. An empty
// scope reads nothing and refuses writes.
func NewLocalSource(storage domain.LocalStorage, scope string) *LocalSource {
	return &LocalSource{storage: storage, scope: scope}
}

// Kind reports domain.TokenSourceLocalStorage.
func (s *LocalSource) Kind() domain.TokenSource { return domain.TokenSourceLocalStorage }

// Get reads the token item.
func (s *LocalSource) Get(ctx context.Context) (string, bool, error) {
	if s.scope == "" {
		return "", false, nil
	}
	return s.storage.GetItem(ctx, s.scope, domain.TokenKey)
}

// Set writes the token item; the max age is ignored.
func (s *LocalSource) Set(ctx context.Context, value string, _ time.Duration) error {
	if s.scope == "" {
		return errors.New("local storage scope is empty")
	}
	return s.storage.SetItem(ctx, s.scope, domain.TokenKey, value)
}

// Remove deletes the token item.
func (s *LocalSource) Remove(ctx context.Context) error {
	if s.scope == "" {
		return nil
	}
	return s.storage.RemoveItem(ctx, s.scope, domain.TokenKey)
}

func (s *CookieSource) jarErr() error {
	if je, ok := s.jar.(jarErrer); ok {
		return je.Err()
	}
	return nil
}
