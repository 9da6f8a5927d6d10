package v1

import (
	"context"
	"fmt"
	"strings"

	pkgzerolog "github.com/duynhne/pkg/logger/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/sawa-admin/internal/core/domain"
	"github.com/duynhne/sawa-admin/middleware"
)

// maxDeviceTokenLen bounds what we accept from a page; FCM tokens are ~160 chars.
const maxDeviceTokenLen = 4096

// DeviceAPI forwards registration tokens to the backend.
type DeviceAPI interface {
	RegisterDeviceToken(ctx context.Context, token, fcmToken, deviceInfo string) error
}

// DeviceService keeps the push registration tokens of staff users.
type DeviceService struct {
	repo domain.DeviceTokenRepository
	api  DeviceAPI
}

// NewDeviceService creates a DeviceService. api may be nil.
func NewDeviceService(repo domain.DeviceTokenRepository, api DeviceAPI) *DeviceService {
	return &DeviceService{repo: repo, api: api}
}

// Register stores fcmToken for the session user and forwards it to the
// backend. A failed forward is logged; the local registration stands.
func (s *DeviceService) Register(ctx context.Context, session domain.Session, fcmToken, deviceInfo string) error {
	ctx, span := middleware.StartSpan(ctx, "devices.register", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if session.State != domain.SessionAuthenticated || session.User == nil {
		return fmt.Errorf("register device: %w", ErrNotAuthenticated)
	}

	fcmToken = strings.TrimSpace(fcmToken)
	if fcmToken == "" || len(fcmToken) > maxDeviceTokenLen {
		return fmt.Errorf("register device for user %s: %w", session.User.ID, ErrInvalidDeviceToken)
	}

	span.SetAttributes(attribute.String("user.id", session.User.ID))

	err := s.repo.Upsert(ctx, domain.DeviceToken{
		UserID:     session.User.ID,
		Token:      fcmToken,
		DeviceInfo: deviceInfo,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("store device token for user %s: %w", session.User.ID, err)
	}

	if s.api != nil && session.Token != "" {
		if err := s.api.RegisterDeviceToken(ctx, session.Token, fcmToken, deviceInfo); err != nil {
			logger := pkgzerolog.FromContext(ctx)
			logger.Warn().Err(err).Str("user_id", session.User.ID).Msg("Backend device registration failed")
		}
	}

	return nil
}

// TokensFor returns the registration tokens of a user, newest first.
func (s *DeviceService) TokensFor(ctx context.Context, userID string) ([]string, error) {
	devices, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list device tokens for user %s: %w", userID, err)
	}
	tokens := make([]string, 0, len(devices))
	for _, d := range devices {
		tokens = append(tokens, d.Token)
	}
	return tokens, nil
}

// Forget drops a token the push provider no longer accepts.
func (s *DeviceService) Forget(ctx context.Context, token string) error {
	if err := s.repo.Delete(ctx, token); err != nil {
		return fmt.Errorf("delete device token: %w", err)
	}
	return nil
}
