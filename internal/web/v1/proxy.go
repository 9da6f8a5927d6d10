package v1

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"path"
	"strings"

	pkgzerolog "github.com/duynhne/pkg/logger/zerolog"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/duynhne/sawa-admin/internal/tokenstore"
)

// newAdminProxy forwards /api/admin/<path> to <backend>/admin/<path>.
func newAdminProxy(base *url.URL) *httputil.ReverseProxy {
	target := *base
	target.Path = strings.TrimRight(target.Path, "/") + "/admin"
	target.RawPath = ""

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(&target)
			pr.SetXForwarded()
			pr.Out.Host = target.Host
			pr.Out.Header.Del("Cookie")
			pr.Out.Header.Del(tokenstore.ClientIDHeader)
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger := pkgzerolog.FromContext(r.Context())
			logger.Error().Err(err).Str("path", r.URL.Path).Msg("Admin proxy request failed")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"success":false,"message":"Backend unavailable"}`))
		},
	}
}

// AdminProxy handles /api/admin/*path with the session bearer token.
func (h *Handler) AdminProxy(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	if h.proxy == nil {
		fail(c, http.StatusServiceUnavailable, "Backend not configured")
		return
	}

	token := sessionOf(c).Snapshot().Token
	if token == "" {
		span.SetAttributes(attribute.Bool("auth.present", false))
		fail(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	span.SetAttributes(attribute.String("proxy.path", c.Param("path")))

	target, ok := adminPath(c.Param("path"))
	if !ok {
		span.SetAttributes(attribute.Bool("proxy.path_valid", false))
		logger := pkgzerolog.FromContext(ctx)
		logger.Warn().Str("path", c.Param("path")).Msg("Refusing admin proxy path with dot segments")
		fail(c, http.StatusBadRequest, "Invalid path")
		return
	}

	out := c.Request.Clone(ctx)
	out.URL.Path = target
	out.URL.RawPath = ""
	out.Header.Set("Authorization", "Bearer "+token)

	h.proxy.ServeHTTP(c.Writer, out)
}

// adminPath cleans the wildcard of /api/admin/*path. A ".." segment is
// refused outright so the request cannot leave the admin prefix upstream.
func adminPath(raw string) (string, bool) {
	for _, seg := range strings.Split(strings.ReplaceAll(raw, "\\", "/"), "/") {
		if seg == ".." {
			return "", false
		}
	}
	cleaned := path.Clean("/" + raw)
	if strings.HasSuffix(raw, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned, true
}
