package v1

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"time"

	pkgzerolog "github.com/duynhne/pkg/logger/zerolog"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/duynhne/sawa-admin/internal/core/domain"
	logicv1 "github.com/duynhne/sawa-admin/internal/logic/v1"
	"github.com/duynhne/sawa-admin/internal/notify"
	"github.com/duynhne/sawa-admin/middleware"
)

// PushSecretHeader authenticates backend calls to the push intake.
const PushSecretHeader = "X-Push-Secret"

const pushTimeout = 5 * time.Second

type visibilityRequest struct {
	PageID string `json:"page_id" binding:"required"`
	State  string `json:"state" binding:"required,oneof=visible hidden"`
}

type deviceRequest struct {
	FCMToken   string `json:"fcm_token" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

type clickRequest struct {
	Action string `json:"action"`
}

func currentUser(c *gin.Context) *domain.User {
	return sessionOf(c).Snapshot().User
}

// Stream handles GET /api/notifications/stream. Each open console page keeps
// one stream; it receives worker relays and focus requests as server-sent
// events. The first event, "ready", carries the page id used by the
// visibility endpoint.
func (h *Handler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	logger := middleware.GetLoggerFromGinContext(c)

	user := currentUser(c)
	if user == nil {
		fail(c, http.StatusUnauthorized, logicv1.ErrNotAuthenticated.Error())
		return
	}

	pageURL := c.Query("url")
	if pageURL == "" {
		pageURL = c.GetHeader("Referer")
	}
	visible := c.DefaultQuery("visibility", "visible") == "visible"

	page := h.opts.Hub.Connect(user.ID, pageURL, visible)
	defer h.opts.Hub.Disconnect(page)

	logger.Info().Str("page_id", page.ID()).Str("user_id", user.ID).Msg("Notification stream opened")

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"page_id": page.ID()})
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.opts.Heartbeat)
	defer heartbeat.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-page.Events():
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev.Data)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})

	logger.Info().Str("page_id", page.ID()).Msg("Notification stream closed")
}

// Visibility handles PUT /api/notifications/visibility.
func (h *Handler) Visibility(c *gin.Context) {
	_, span := startSpan(c)
	defer span.End()

	user := currentUser(c)
	if user == nil {
		fail(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		fail(c, http.StatusBadRequest, "page_id and state (visible|hidden) are required")
		return
	}
	span.SetAttributes(attribute.String("page.visibility", req.State))

	if err := h.opts.Hub.SetVisibility(user.ID, req.PageID, req.State == "visible"); err != nil {
		span.RecordError(err)
		if errors.Is(err, notify.ErrUnknownPage) {
			fail(c, http.StatusNotFound, "Unknown page")
			return
		}
		fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	c.Status(http.StatusNoContent)
}

// NotificationConfig handles GET /api/notifications/config. Pages use the
// VAPID key to obtain a registration token and then POST it to the device
// endpoint; enabled is false when no usable key is configured.
func (h *Handler) NotificationConfig(c *gin.Context) {
	_, span := startSpan(c)
	defer span.End()

	enabled := h.opts.VAPIDKey != ""
	span.SetAttributes(attribute.Bool("push.enabled", enabled))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"vapid_key": h.opts.VAPIDKey,
			"enabled":   enabled,
		},
	})
}

// RegisterDevice handles POST /api/notifications/device.
func (h *Handler) RegisterDevice(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	logger := pkgzerolog.FromContext(ctx)

	var req deviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		fail(c, http.StatusBadRequest, "fcm_token is required")
		return
	}

	err := h.opts.Devices.Register(ctx, sessionOf(c).Snapshot(), req.FCMToken, req.DeviceInfo)
	if err != nil {
		span.RecordError(err)
		logger.Error().Err(err).Msg("Device registration failed")

		switch {
		case errors.Is(err, logicv1.ErrNotAuthenticated):
			fail(c, http.StatusUnauthorized, "Authentication required")
		case errors.Is(err, logicv1.ErrInvalidDeviceToken):
			fail(c, http.StatusBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Click handles POST /api/notifications/click, sent by the browser when a
// native notification is clicked.
func (h *Handler) Click(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	user := currentUser(c)
	if user == nil {
		fail(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req clickRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		span.RecordError(err)
		fail(c, http.StatusBadRequest, "Invalid request")
		return
	}
	span.SetAttributes(attribute.String("notification.action", req.Action))

	res, err := h.opts.Worker.HandleClick(ctx, user.ID, req.Action)
	if err != nil {
		span.RecordError(err)
		logger := pkgzerolog.FromContext(ctx)
		logger.Error().Err(err).Msg("Notification click failed")
		fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": res})
}

// Push handles POST /internal/push, the HTTP counterpart of the Kafka intake.
func (h *Handler) Push(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	logger := pkgzerolog.FromContext(ctx)

	if h.opts.PushSecret == "" {
		fail(c, http.StatusNotFound, "Push intake disabled")
		return
	}
	got := c.GetHeader(PushSecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.opts.PushSecret)) != 1 {
		span.SetAttributes(attribute.Bool("auth.valid", false))
		logger.Warn().Msg("Push intake rejected, bad secret")
		fail(c, http.StatusUnauthorized, "Invalid push secret")
		return
	}

	var ev domain.PushEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		span.RecordError(err)
		fail(c, http.StatusBadRequest, "Invalid push event")
		return
	}

	pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()

	if err := h.opts.Worker.Push(pushCtx, ev); err != nil {
		span.RecordError(err)
		logger.Error().Err(err).Str("user_id", ev.UserID).Msg("Push intake failed")

		switch {
		case errors.Is(err, notify.ErrMissingRecipient):
			fail(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, notify.ErrWorkerStopped), errors.Is(err, context.DeadlineExceeded):
			fail(c, http.StatusServiceUnavailable, "Notification worker unavailable")
		default:
			fail(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	logger.Debug().Str("user_id", ev.UserID).Msg("Push event queued")
	c.JSON(http.StatusAccepted, gin.H{"success": true})
}
