package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/duynhne/sawa-admin/internal/core/domain"
)

const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// ProtectedPrefixes are the console sections that require a token cookie.
// Sub-paths are protected too.
var ProtectedPrefixes = []string{
	"/dashboard",
	"/users",
	"/listings",
	"/bookings",
	"/transactions",
	"/reports",
	"/settings",
	"/notifications",
	"/housetypes",
}

// RouteDecision is the outcome of DecideRoute.
type RouteDecision string

const (
	RoutePass              RouteDecision = "pass"
	RouteRedirectLogin     RouteDecision = "redirect_login"
	RouteRedirectDashboard RouteDecision = "redirect_dashboard"
)

// Target returns the redirect location, or "" for RoutePass.
func (d RouteDecision) Target() string {
	switch d {
	case RouteRedirectLogin:
		return LoginPath
	case RouteRedirectDashboard:
		return DashboardPath
	default:
		return ""
	}
}

// IsProtected reports whether path is one of ProtectedPrefixes or below it.
// "/dashboardx" is not protected; "/dashboard/stats" is.
func IsProtected(path string) bool {
	for _, prefix := range ProtectedPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// DecideRoute maps (path, token presence) to a guard decision. Only presence
// is considered; token validity is the session provider's concern.
func DecideRoute(path string, hasToken bool) RouteDecision {
	path = normalizePath(path)

	switch {
	case IsProtected(path) && !hasToken:
		return RouteRedirectLogin
	case path == LoginPath && hasToken:
		return RouteRedirectDashboard
	case path == "/":
		if hasToken {
			return RouteRedirectDashboard
		}
		return RouteRedirectLogin
	default:
		return RoutePass
	}
}

// RouteGuard redirects page requests according to DecideRoute, reading the
// token from the cookie only. It runs before any page handler.
func RouteGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(domain.TokenKey)
		hasToken := err == nil && token != ""

		decision := DecideRoute(c.Request.URL.Path, hasToken)
		RouteGuardDecisions.WithLabelValues(string(decision)).Inc()

		if decision == RoutePass {
			c.Next()
			return
		}

		GetLoggerFromGinContext(c).Debug().
			Str("path", c.Request.URL.Path).
			Str("decision", string(decision)).
			Msg("Route guard redirect")
		c.Redirect(http.StatusTemporaryRedirect, decision.Target())
		c.Abort()
	}
}

func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}
