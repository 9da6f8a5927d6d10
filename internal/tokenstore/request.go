package tokenstore

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/duynhne/sawa-admin/internal/core/domain"
)

const (
	// ClientIDCookie identifies a browser across token lifetimes; it scopes
	// the server-side local storage.
	ClientIDCookie = "sawa_cid"

	// ClientIDHeader lets non-browser clients name their scope explicitly.
	ClientIDHeader = "X-Client-ID"

	clientIDMaxAge = 400 * 24 * 60 * 60
)

// ClientID returns the caller's client id, issuing a new cookie when the
// request carries neither a valid header nor a valid cookie.
func ClientID(c *gin.Context, secure bool) string {
	if id := c.GetHeader(ClientIDHeader); isClientID(id) {
		return id
	}
	if id, err := c.Cookie(ClientIDCookie); err == nil && isClientID(id) {
		return id
	}

	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ClientIDCookie, id, clientIDMaxAge, "/", "", secure, true)
	return id
}

func isClientID(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// Factory builds a request-bound Store for the gateway.
type Factory struct {
	local domain.LocalStorage
	opts  CookieOptions
}

// NewFactory returns a Factory writing cookies with opts.
func NewFactory(local domain.LocalStorage, opts CookieOptions) *Factory {
	return &Factory{local: local, opts: opts}
}

// ForRequest returns the Store of the browser behind c, along with its client id.
func (f *Factory) ForRequest(c *gin.Context) (*Store, string) {
	clientID := ClientID(c, f.opts.Secure)
	return New(NewCookieSource(c, f.opts), NewLocalSource(f.local, clientID)), clientID
}
