package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// SessionContextKey is the gin context key holding the request's SessionView.
const SessionContextKey = "console.session"

// SessionView is the part of the session provider the guard needs.
type SessionView interface {
	// HasStoredToken reports a token in either the cookie or local storage.
	HasStoredToken() bool
	IsAuthenticated() bool
}

// RequireSession turns away requests that have neither a stored token nor an
// authenticated session. Page requests are redirected to the login page, API
// requests get 401. It must run after the session has been mounted.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		var view SessionView
		if v, ok := c.Get(SessionContextKey); ok {
			view, _ = v.(SessionView)
		}

		if view != nil && (view.HasStoredToken() || view.IsAuthenticated()) {
			c.Next()
			return
		}

		SessionGuardRejections.Inc()
		if wantsHTML(c.Request) {
			c.Redirect(http.StatusFound, LoginPath)
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "Authentication required",
		})
	}
}

func wantsHTML(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}
	return r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html")
}
