package notify

import (
	"context"

	pkgzerolog "github.com/duynhne/pkg/logger/zerolog"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/duynhne/sawa-admin/internal/core/domain"
	"github.com/duynhne/sawa-admin/middleware"
)

// Toaster renders an in-page toast.
type Toaster interface {
	Toast(ctx context.Context, n domain.PushNotification) error
}

// ToasterFunc adapts a function to Toaster.
type ToasterFunc func(ctx context.Context, n domain.PushNotification) error

func (f ToasterFunc) Toast(ctx context.Context, n domain.PushNotification) error { return f(ctx, n) }

const defaultSeenCapacity = 128

// PresentationRouter is the page-side listener for worker relays. It also
// accepts foreground messages, so a message reaching the page through both
// paths is toasted once when it carries a message id.
type PresentationRouter struct {
	toaster    Toaster
	visibility Visibility
	seen       *lru.Cache[string, struct{}]
}

// NewPresentationRouter creates a router remembering the last capacity
// message ids. capacity <= 0 uses a default.
func NewPresentationRouter(toaster Toaster, visibility Visibility, capacity int) *PresentationRouter {
	if capacity <= 0 {
		capacity = defaultSeenCapacity
	}
	// lru.New only fails on a non-positive size.
	seen, _ := lru.New[string, struct{}](capacity)
	return &PresentationRouter{
		toaster:    toaster,
		visibility: visibility,
		seen:       seen,
	}
}

// HandleMessage handles a worker relay. Only NOTIFICATION_RECEIVED messages
// are considered; they are toasted when the page is visible and ignored
// otherwise. It reports whether a toast was shown.
func (r *PresentationRouter) HandleMessage(ctx context.Context, msg domain.ClientMessage) bool {
	if msg.Type != domain.MessageTypeNotificationReceived {
		return false
	}
	if Decide(r.visibility.Visible()) != domain.ChannelToast {
		return false
	}
	return r.Present(ctx, msg.Payload)
}

// Present toasts p unless its message id was already presented.
func (r *PresentationRouter) Present(ctx context.Context, p domain.PushPayload) bool {
	if id := p.MessageID(); id != "" {
		// ContainsOrAdd leaves recency alone on a hit, so ids age out in
		// arrival order.
		if dup, _ := r.seen.ContainsOrAdd(id, struct{}{}); dup {
			middleware.NotificationsDropped.WithLabelValues("duplicate").Inc()
			return false
		}
	}

	if err := r.toaster.Toast(ctx, p.Notification); err != nil {
		logger := pkgzerolog.FromContext(ctx)
		logger.Error().Err(err).Msg("Toast failed")
		return false
	}
	middleware.NotificationPresentations.WithLabelValues(string(domain.ChannelToast)).Inc()
	return true
}
