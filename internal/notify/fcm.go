package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/duynhne/sawa-admin/internal/core/domain"
)

const fcmScope = "https://www.googleapis.com/auth/firebase.messaging"

// DeviceTokens looks up and prunes the registration tokens of a user.
type DeviceTokens interface {
	TokensFor(ctx context.Context, userID string) ([]string, error)
	Forget(ctx context.Context, token string) error
}

// messageSender is the part of *messaging.Client the notifier uses.
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMNotifier sends native notifications through Firebase Cloud Messaging as
// webpush messages.
type FCMNotifier struct {
	sender       messageSender
	unregistered func(error) bool
	devices      DeviceTokens
	logger       zerolog.Logger
}

// NewFCMNotifier authenticates with a service account file, or with the
// application default credentials when credentialsFile is empty.
func NewFCMNotifier(ctx context.Context, projectID, credentialsFile string, devices DeviceTokens, logger zerolog.Logger) (*FCMNotifier, error) {
	if projectID == "" {
		return nil, errors.New("fcm notifier requires a firebase project id")
	}

	var (
		creds *google.Credentials
		err   error
	)
	if credentialsFile != "" {
		data, readErr := os.ReadFile(credentialsFile)
		if readErr != nil {
			return nil, fmt.Errorf("read firebase credentials: %w", readErr)
		}
		creds, err = google.CredentialsFromJSON(ctx, data, fcmScope)
	} else {
		creds, err = google.FindDefaultCredentials(ctx, fcmScope)
	}
	if err != nil {
		return nil, fmt.Errorf("load firebase credentials: %w", err)
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}

	return newFCMNotifier(client, messaging.IsUnregistered, devices, logger), nil
}

func newFCMNotifier(sender messageSender, unregistered func(error) bool, devices DeviceTokens, logger zerolog.Logger) *FCMNotifier {
	return &FCMNotifier{
		sender:       sender,
		unregistered: unregistered,
		devices:      devices,
		logger:       logger.With().Str("component", "fcm").Logger(),
	}
}

// Show sends n to every device of userID. Tokens FCM reports as
// unregistered are forgotten.
func (f *FCMNotifier) Show(ctx context.Context, userID string, n domain.NativeNotification) error {
	tokens, err := f.devices.TokensFor(ctx, userID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		f.logger.Debug().Str("user_id", userID).Msg("No registered devices")
		return nil
	}

	var errs []error
	for _, token := range tokens {
		if err := f.send(ctx, token, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *FCMNotifier) send(ctx context.Context, token string, n domain.NativeNotification) error {
	_, err := f.sender.Send(ctx, webpushMessage(token, n))
	if err == nil {
		return nil
	}
	if f.unregistered(err) {
		f.logger.Info().Msg("Dropping unregistered device token")
		if err := f.devices.Forget(ctx, token); err != nil {
			return fmt.Errorf("forget unregistered token: %w", err)
		}
		return nil
	}
	return fmt.Errorf("send fcm message: %w", err)
}

// webpushMessage addresses n to a single registration token. FCM only
// accepts absolute https links, so relative targets stay in the data map for
// the service worker to resolve.
func webpushMessage(token string, n domain.NativeNotification) *messaging.Message {
	actions := make([]*messaging.WebpushNotificationAction, 0, len(n.Actions))
	for _, a := range n.Actions {
		actions = append(actions, &messaging.WebpushNotificationAction{Action: a.Action, Title: a.Title})
	}

	webpush := &messaging.WebpushConfig{
		Data: n.Data,
		Notification: &messaging.WebpushNotification{
			Title:   n.Title,
			Body:    n.Body,
			Icon:    n.Icon,
			Tag:     n.Tag,
			Actions: actions,
		},
	}
	if link := n.Data["url"]; strings.HasPrefix(link, "https://") {
		webpush.FCMOptions = &messaging.WebpushFCMOptions{Link: link}
	}

	return &messaging.Message{
		Token:   token,
		Data:    n.Data,
		Webpush: webpush,
	}
}

// LogNotifier writes native notifications to the log. It stands in for
// FCMNotifier when Firebase is not configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier returns a LogNotifier writing to logger.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "log_notifier").Logger()}
}

// Show logs n instead of delivering it.
func (l *LogNotifier) Show(_ context.Context, userID string, n domain.NativeNotification) error {
	l.logger.Info().
		Str("user_id", userID).
		Str("title", n.Title).
		Str("tag", n.Tag).
		Msg("Native notification (firebase not configured)")
	return nil
}
