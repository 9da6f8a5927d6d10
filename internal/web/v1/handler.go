package v1

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	pkgzerolog "github.com/duynhne/pkg/logger/zerolog"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/sawa-admin/internal/backend"
	"github.com/duynhne/sawa-admin/internal/core/domain"
	logicv1 "github.com/duynhne/sawa-admin/internal/logic/v1"
	"github.com/duynhne/sawa-admin/internal/notify"
	"github.com/duynhne/sawa-admin/internal/tokenstore"
	"github.com/duynhne/sawa-admin/middleware"
)

// PasswordResetter starts the backend password reset flow.
type PasswordResetter interface {
	ForgotPassword(ctx context.Context, phone string) (*backend.Envelope, error)
}

// Options carries the handler dependencies.
type Options struct {
	Auth            logicv1.AuthAPI
	Passwords       PasswordResetter
	AdminBaseURL    *url.URL
	Tokens          *tokenstore.Factory
	Devices         *logicv1.DeviceService
	Hub             *notify.Hub
	Worker          *notify.ServiceWorker
	ProfileCache    domain.ProfileCache
	ProfileCacheTTL time.Duration
	FailurePolicy   logicv1.ProfileFailurePolicy
	CookieDays      int
	PushSecret      string
	Heartbeat       time.Duration
	// VAPIDKey is handed to pages for push registration. Leave it empty
	// when the configured key failed notify.CheckVAPIDKey.
	VAPIDKey string
}

// Handler groups the console gateway HTTP handlers.
// Dependencies are injected via the constructor, no global state.
type Handler struct {
	opts  Options
	proxy *httputil.ReverseProxy
}

// NewHandler creates a Handler.
func NewHandler(opts Options) *Handler {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 25 * time.Second
	}
	h := &Handler{opts: opts}
	if opts.AdminBaseURL != nil {
		h.proxy = newAdminProxy(opts.AdminBaseURL)
	}
	return h
}

// RegisterRoutes registers the console routes. The route guard is expected
// to run before them.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.SetHTMLTemplate(shell)

	console := r.Group("/", h.Session())

	console.GET("/", h.Page)
	console.GET(middleware.LoginPath, h.Page)
	for _, prefix := range middleware.ProtectedPrefixes {
		console.GET(prefix, middleware.RequireSession(), h.Page)
		console.GET(prefix+"/*rest", middleware.RequireSession(), h.Page)
	}
	console.POST("/logout", h.LogoutRedirect)

	api := console.Group("/api")
	{
		api.POST("/auth/login", h.Login)
		api.POST("/auth/logout", h.Logout)
		api.POST("/auth/forgot-password", h.ForgotPassword)

		authed := api.Group("", middleware.RequireSession())
		authed.GET("/auth/me", h.Me)
		authed.Any("/admin/*path", h.AdminProxy)
		authed.GET("/notifications/config", h.NotificationConfig)
		authed.GET("/notifications/stream", h.Stream)
		authed.PUT("/notifications/visibility", h.Visibility)
		authed.POST("/notifications/device", h.RegisterDevice)
		authed.POST("/notifications/click", h.Click)
	}

	r.POST("/internal/push", h.Push)
}

// Session mounts the request's SessionProvider and exposes it to the guards
// and handlers.
func (h *Handler) Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		store, clientID := h.opts.Tokens.ForRequest(c)
		c.Set(middleware.ClientIDKey, clientID)

		nav := &redirectNavigator{}
		provider := logicv1.NewSessionProvider(h.opts.Auth, store,
			logicv1.WithFailurePolicy(h.opts.FailurePolicy),
			logicv1.WithCookieDays(h.opts.CookieDays),
			logicv1.WithProfileCache(h.opts.ProfileCache, h.opts.ProfileCacheTTL),
			logicv1.WithNavigator(nav),
		)

		snap := provider.Mount(c.Request.Context())
		if snap.User != nil {
			c.Set(middleware.UserIDKey, snap.User.ID)
		}

		c.Set(middleware.SessionContextKey, provider)
		c.Set(navigatorKey, nav)
		c.Next()
	}
}

const navigatorKey = "console.navigator"

// redirectNavigator records where the session asked to go; handlers turn it
// into a redirect or a JSON hint.
type redirectNavigator struct {
	target string
}

func (n *redirectNavigator) Navigate(path string) { n.target = path }

func sessionOf(c *gin.Context) *logicv1.SessionProvider {
	v, _ := c.Get(middleware.SessionContextKey)
	p, _ := v.(*logicv1.SessionProvider)
	return p
}

func navigatorOf(c *gin.Context) *redirectNavigator {
	v, _ := c.Get(navigatorKey)
	n, _ := v.(*redirectNavigator)
	if n == nil {
		return &redirectNavigator{}
	}
	return n
}

func startSpan(c *gin.Context) (context.Context, trace.Span) {
	return middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	logger := pkgzerolog.FromContext(ctx)

	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		span.RecordError(err)
		logger.Warn().Err(err).Msg("Invalid login request")
		fail(c, http.StatusBadRequest, "Phone and password are required")
		return
	}
	span.SetAttributes(attribute.Bool("request.valid", true))

	res := sessionOf(c).Login(ctx, req.Phone, req.Password)
	if !res.Success {
		span.SetAttributes(attribute.Bool("auth.success", false))
		logger.Info().Msg("Login rejected")
		c.JSON(http.StatusUnauthorized, res)
		return
	}

	if res.User != nil {
		c.Set(middleware.UserIDKey, res.User.ID)
		logger.Info().Str("user_id", res.User.ID).Msg("Login successful")
	}
	c.JSON(http.StatusOK, res)
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	sessionOf(c).Logout(ctx)
	c.JSON(http.StatusOK, gin.H{"success": true, "redirect": navigatorOf(c).target})
}

// LogoutRedirect handles the form POST /logout.
func (h *Handler) LogoutRedirect(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	sessionOf(c).Logout(ctx)
	target := navigatorOf(c).target
	if target == "" {
		target = middleware.LoginPath
	}
	c.Redirect(http.StatusSeeOther, target)
}

// Me handles GET /api/auth/me with the mounted session.
func (h *Handler) Me(c *gin.Context) {
	_, span := startSpan(c)
	defer span.End()

	snap := sessionOf(c).Snapshot()
	span.SetAttributes(attribute.String("session.state", string(snap.State)))
	c.JSON(http.StatusOK, gin.H{"success": true, "data": snap})
}

// ForgotPassword handles POST /api/auth/forgot-password.
func (h *Handler) ForgotPassword(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	logger := pkgzerolog.FromContext(ctx)

	var req domain.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		fail(c, http.StatusBadRequest, "Phone is required")
		return
	}

	env, err := h.opts.Passwords.ForgotPassword(ctx, req.Phone)
	if err != nil {
		span.RecordError(err)
		logger.Error().Err(err).Msg("Forgot password request failed")
		msg := backend.MessageOf(err)
		if msg == "" {
			msg = "Request failed, please try again"
		}
		fail(c, backendStatus(err), msg)
		return
	}
	c.JSON(http.StatusOK, env)
}

// backendStatus maps a backend failure to the gateway answer: client errors
// and success:false pass through as 4xx, everything else is a 502.
func backendStatus(err error) int {
	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) {
		return http.StatusBadGateway
	}
	switch {
	case apiErr.Status < http.StatusBadRequest:
		return http.StatusBadRequest
	case apiErr.Status < http.StatusInternalServerError:
		return apiErr.Status
	default:
		return http.StatusBadGateway
	}
}
