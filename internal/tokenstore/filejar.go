package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileCookieJar is a CookieJar persisted to a JSON file. Cookies with a
// positive max-age expire; max-age 0 keeps the cookie until removed.
//
// SetCookie has no error result; the outcome of the last write is kept and
// reported by Err.
type FileCookieJar struct {
	mu       sync.Mutex
	path     string
	sameSite http.SameSite
	now      func() time.Time
	lastErr  error
}

type fileCookie struct {
	Value    string    `json:"value"`
	Path     string    `json:"path"`
	Secure   bool      `json:"secure,omitempty"`
	SameSite int       `json:"same_site,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
}

// NewFileCookieJar returns a jar stored at path. The file and its directory
// are created on the first write.
func NewFileCookieJar(path string) *FileCookieJar {
	return &FileCookieJar{path: path, now: time.Now}
}

var _ CookieJar = (*FileCookieJar)(nil)

// Cookie returns the value of an unexpired cookie, or http.ErrNoCookie.
func (j *FileCookieJar) Cookie(name string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	cookies, err := j.read()
	if err != nil {
		return "", err
	}
	c, ok := cookies[name]
	if !ok {
		return "", http.ErrNoCookie
	}
	if !c.Expires.IsZero() && !j.now().Before(c.Expires) {
		delete(cookies, name)
		j.lastErr = j.write(cookies)
		return "", http.ErrNoCookie
	}
	return c.Value, nil
}

// SetCookie stores or, for a negative maxAge, deletes a cookie. A failed write
// is reported by the next call to Err.
func (j *FileCookieJar) SetCookie(name, value string, maxAge int, path, _ string, secure, _ bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	cookies, err := j.read()
	if err != nil {
		cookies = make(map[string]fileCookie)
	}
	if maxAge < 0 {
		delete(cookies, name)
	} else {
		c := fileCookie{Value: value, Path: path, Secure: secure, SameSite: int(j.sameSite)}
		if maxAge > 0 {
			c.Expires = j.now().Add(time.Duration(maxAge) * time.Second)
		}
		cookies[name] = c
	}
	j.lastErr = j.write(cookies)
}

// Err returns the error of the last write, nil when it succeeded.
func (j *FileCookieJar) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastErr
}

// SetSameSite sets the SameSite attribute of the following writes.
func (j *FileCookieJar) SetSameSite(samesite http.SameSite) {
	j.mu.Lock()
	j.sameSite = samesite
	j.mu.Unlock()
}

func (j *FileCookieJar) read() (map[string]fileCookie, error) {
	cookies := make(map[string]fileCookie)
	raw, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return cookies, nil
	}
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return cookies, nil
	}
	if err := json.Unmarshal(raw, &cookies); err != nil {
		return nil, err
	}
	return cookies, nil
}

func (j *FileCookieJar) write(cookies map[string]fileCookie) error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0o700); err != nil {
		return fmt.Errorf("create cookie jar dir: %w", err)
	}
	raw, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(j.path, raw, 0o600); err != nil {
		return fmt.Errorf("write cookie jar: %w", err)
	}
	return nil
}
