package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestDecideRoute(t *testing.T) {
	tests := []struct {
		path     string
		hasToken bool
		want     RouteDecision
	}{
		{"/dashboard", false, RouteRedirectLogin},
		{"/dashboard", true, RoutePass},
		{"/users/42/edit", false, RouteRedirectLogin},
		{"/housetypes/", false, RouteRedirectLogin},
		{"/notifications", false, RouteRedirectLogin},
		{"/login", true, RouteRedirectDashboard},
		{"/login", false, RoutePass},
		{"/", true, RouteRedirectDashboard},
		{"/", false, RouteRedirectLogin},
		{"/dashboardx", false, RoutePass},
		{"/forgot-password", false, RoutePass},
		{"/api/auth/login", false, RoutePass},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, DecideRoute(tt.path, tt.hasToken))
		})
	}
}

func TestDecideRoute_EveryProtectedPrefixRedirectsWithoutToken(t *testing.T) {
	for _, prefix := range ProtectedPrefixes {
		assert.Equal(t, RouteRedirectLogin, DecideRoute(prefix, false), prefix)
		assert.Equal(t, RouteRedirectLogin, DecideRoute(prefix+"/sub", false), prefix)
		assert.Equal(t, RoutePass, DecideRoute(prefix, true), prefix)
	}
}

func newGuardedEngine() *gin.Engine {
	r := gin.New()
	r.Use(RouteGuard())
	ok := func(c *gin.Context) { c.String(http.StatusOK, "page") }
	r.GET("/", ok)
	r.GET("/login", ok)
	r.GET("/dashboard", ok)
	r.GET("/settings/*rest", ok)
	return r
}

func TestRouteGuard_Redirects(t *testing.T) {
	r := newGuardedEngine()

	tests := []struct {
		name     string
		path     string
		cookie   string
		status   int
		location string
	}{
		{"protected without token", "/dashboard", "", http.StatusTemporaryRedirect, "/login"},
		{"protected sub-path without token", "/settings/general", "", http.StatusTemporaryRedirect, "/login"},
		{"login with token", "/login", "T", http.StatusTemporaryRedirect, "/dashboard"},
		{"root with token", "/", "T", http.StatusTemporaryRedirect, "/dashboard"},
		{"root without token", "/", "", http.StatusTemporaryRedirect, "/login"},
		{"protected with token", "/dashboard", "T", http.StatusOK, ""},
		{"login without token", "/login", "", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "token", Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.location, w.Header().Get("Location"))
		})
	}
}

func TestRouteGuard_EmptyCookieCountsAsAbsent(t *testing.T) {
	r := newGuardedEngine()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: ""})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}
