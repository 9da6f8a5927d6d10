package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Permission mirrors the browser notification permission.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// PresentationChannel is where a push message is shown to the user.
type PresentationChannel string

const (
	ChannelToast  PresentationChannel = "toast"
	ChannelNative PresentationChannel = "native"
)

// MessageTypeNotificationReceived tags worker-to-page relays.
const MessageTypeNotificationReceived = "NOTIFICATION_RECEIVED"

// PushNotification is the visible part of a push payload.
type PushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// PushPayload is the push message shape: {notification:{title,body}, data}.
type PushPayload struct {
	Notification PushNotification `json:"notification"`
	Data         PushData         `json:"data,omitempty"`
}

// PushData is the string map carried next to a notification. Backends send
// ids as numbers, so non-string values are kept as their compact JSON text
// and null values are dropped.
type PushData map[string]string

// UnmarshalJSON accepts any JSON value per key.
func (d *PushData) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("push data: %w", err)
	}
	if raw == nil {
		*d = nil
		return nil
	}

	out := make(PushData, len(raw))
	for k, v := range raw {
		v = bytes.TrimSpace(v)
		switch {
		case bytes.Equal(v, []byte("null")):
			continue
		case len(v) > 0 && v[0] == '"':
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("push data %q: %w", k, err)
			}
			out[k] = s
		default:
			var buf bytes.Buffer
			if err := json.Compact(&buf, v); err != nil {
				return fmt.Errorf("push data %q: %w", k, err)
			}
			out[k] = buf.String()
		}
	}
	*d = out
	return nil
}

// MessageID returns the de-duplication id carried in data, if any.
func (p PushPayload) MessageID() string {
	if p.Data == nil {
		return ""
	}
	return p.Data["message_id"]
}

// PushEvent is a payload addressed to one staff user.
type PushEvent struct {
	UserID  string      `json:"user_id"`
	Payload PushPayload `json:"payload"`
}

// ClientMessage is posted from the background worker to open pages.
type ClientMessage struct {
	Type    string      `json:"type"`
	Payload PushPayload `json:"payload"`
}

// NotificationAction is a button on a native notification.
type NotificationAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// NativeNotification describes an OS-level notification.
type NativeNotification struct {
	Title   string               `json:"title"`
	Body    string               `json:"body"`
	Icon    string               `json:"icon,omitempty"`
	Tag     string               `json:"tag,omitempty"`
	Actions []NotificationAction `json:"actions,omitempty"`
	Data    map[string]string    `json:"data,omitempty"`
}

// DeviceToken is a push registration token owned by a staff user.
type DeviceToken struct {
	UserID     string    `json:"user_id"`
	Token      string    `json:"-"`
	DeviceInfo string    `json:"device_info"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DeviceTokenRepository defines the data-access contract for device tokens.
// Implementations live in internal/core/repository.
type DeviceTokenRepository interface {
	// Upsert stores the token for the user, moving it if another user held it.
	Upsert(ctx context.Context, token DeviceToken) error

	// ListByUser returns every token registered for the user.
	ListByUser(ctx context.Context, userID string) ([]DeviceToken, error)

	// Delete removes a token, typically after the push provider rejected it.
	Delete(ctx context.Context, token string) error
}
