package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	pkgzerolog "github.com/duynhne/pkg/logger/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/sawa-admin/internal/core/domain"
	"github.com/duynhne/sawa-admin/middleware"
)

// Messaging is the push provider client on the page side.
type Messaging interface {
	// Token returns a registration token for this device.
	Token(ctx context.Context, vapidKey string) (string, error)
	// Subscribe calls handler for every foreground message until ctx ends
	// or the returned stop function is called.
	Subscribe(ctx context.Context, handler func(domain.PushPayload)) (stop func(), err error)
}

// Visibility reports whether the page is currently visible.
type Visibility interface {
	Visible() bool
}

// VisibilityFunc adapts a function to Visibility.
type VisibilityFunc func() bool

func (f VisibilityFunc) Visible() bool { return f() }

// ChannelConfig wires a ChannelManager. Messaging is nil when the client
// failed to initialize.
type ChannelConfig struct {
	Messaging  Messaging
	Browser    Browser
	Confirmer  Confirmer
	Visibility Visibility
	VAPIDKey   string
}

// ChannelManager owns the page side of push messaging.
type ChannelManager struct {
	messaging  Messaging
	browser    Browser
	confirmer  Confirmer
	visibility Visibility
	vapidKey   string
}

// NewChannelManager creates a ChannelManager.
func NewChannelManager(cfg ChannelConfig) *ChannelManager {
	visibility := cfg.Visibility
	if visibility == nil {
		visibility = VisibilityFunc(func() bool { return true })
	}
	return &ChannelManager{
		messaging:  cfg.Messaging,
		browser:    cfg.Browser,
		confirmer:  cfg.Confirmer,
		visibility: visibility,
		vapidKey:   strings.TrimSpace(cfg.VAPIDKey),
	}
}

// RequestPermission runs a fresh PermissionFlow and returns its result.
func (m *ChannelManager) RequestPermission(ctx context.Context) domain.Permission {
	return NewPermissionFlow(m.browser, m.confirmer).Run(ctx)
}

// RegistrationToken returns a push registration token, or ("", false) when
// messaging is not usable, permission was not granted or the provider failed.
func (m *ChannelManager) RegistrationToken(ctx context.Context) (string, bool) {
	ctx, span := middleware.StartSpan(ctx, "notify.registration_token", trace.WithAttributes(
		attribute.String("layer", "notify"),
	))
	defer span.End()

	logger := pkgzerolog.FromContext(ctx)

	if m.messaging == nil {
		logger.Debug().Err(ErrMessagingUnavailable).Msg("Skipping push registration")
		return "", false
	}
	if IsPlaceholderVAPIDKey(m.vapidKey) {
		logger.Warn().Err(ErrVAPIDKeyUnset).Msg("Skipping push registration, set FIREBASE_VAPID_KEY")
		return "", false
	}

	perm := m.RequestPermission(ctx)
	span.SetAttributes(attribute.String("notify.permission", string(perm)))
	if perm != domain.PermissionGranted {
		logger.Info().Str("permission", string(perm)).Msg("Notification permission not granted")
		return "", false
	}

	if err := ValidateVAPIDKey(m.vapidKey); err != nil {
		span.RecordError(err)
		logger.Error().
			Err(err).
			Msg("VAPID key must be the base64url public key from the Firebase console Web Push certificates page")
		return "", false
	}

	token, err := m.messaging.Token(ctx, m.vapidKey)
	if err != nil {
		span.RecordError(err)
		logger.Error().Err(err).Msg("Push registration token request failed")
		return "", false
	}
	if token == "" {
		logger.Warn().Msg("Push provider returned an empty registration token")
		return "", false
	}
	return token, true
}

// ListenForeground forwards foreground messages to handler while the page is
// visible. Messages arriving while hidden are dropped because the service
// worker presents them natively.
func (m *ChannelManager) ListenForeground(ctx context.Context, handler func(domain.PushPayload)) (func(), error) {
	if m.messaging == nil {
		return nil, ErrMessagingUnavailable
	}

	logger := pkgzerolog.FromContext(ctx)

	stop, err := m.messaging.Subscribe(ctx, func(p domain.PushPayload) {
		if Decide(m.visibility.Visible()) != domain.ChannelToast {
			middleware.NotificationsDropped.WithLabelValues("foreground_hidden").Inc()
			logger.Debug().Str("message_id", p.MessageID()).Msg("Page hidden, leaving message to the service worker")
			return
		}
		handler(p)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to foreground messages: %w", err)
	}
	return stop, nil
}

var placeholderVAPIDKeys = []string{"your_vapid_key", "your-vapid-key", "changeme", "placeholder", "xxx"}

// IsPlaceholderVAPIDKey reports an unset key or one of the sample values
// shipped in env templates.
func IsPlaceholderVAPIDKey(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return true
	}
	for _, p := range placeholderVAPIDKeys {
		if strings.Contains(k, p) {
			return true
		}
	}
	return false
}

// ValidateVAPIDKey checks that key decodes to an uncompressed P-256 point.
func ValidateVAPIDKey(key string) error {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(key, "="))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedVAPIDKey, err)
	}
	if len(raw) != 65 || raw[0] != 0x04 {
		return fmt.Errorf("%w: decoded %d bytes, want a 65 byte uncompressed point", ErrMalformedVAPIDKey, len(raw))
	}
	return nil
}

// CheckVAPIDKey returns ErrVAPIDKeyUnset for a missing or placeholder key and
// ErrMalformedVAPIDKey for one browsers would refuse.
func CheckVAPIDKey(key string) error {
	if IsPlaceholderVAPIDKey(key) {
		return ErrVAPIDKeyUnset
	}
	return ValidateVAPIDKey(key)
}
