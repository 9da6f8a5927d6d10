package notify

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duynhne/sawa-admin/internal/core/domain"
)

type fakeMessaging struct {
	token      string
	err        error
	tokenCalls int
	handler    func(domain.PushPayload)
}

func (m *fakeMessaging) Token(context.Context, string) (string, error) {
	m.tokenCalls++
	return m.token, m.err
}

func (m *fakeMessaging) Subscribe(_ context.Context, handler func(domain.PushPayload)) (func(), error) {
	m.handler = handler
	return func() { m.handler = nil }, nil
}

func validVAPIDKey() string {
	raw := make([]byte, 65)
	raw[0] = 0x04
	for i := 1; i < len(raw); i++ {
		raw[i] = byte(i)
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func grantingBrowser() *fakeBrowser {
	return &fakeBrowser{supported: true, current: domain.PermissionDefault, answer: domain.PermissionGranted}
}

func alwaysConfirm() Confirmer {
	return ConfirmerFunc(func(context.Context) (bool, error) { return true, nil })
}

func TestChannelManager_RegistrationToken(t *testing.T) {
	messaging := &fakeMessaging{token: "fcm-token"}
	m := NewChannelManager(ChannelConfig{
		Messaging: messaging,
		Browser:   grantingBrowser(),
		Confirmer: alwaysConfirm(),
		VAPIDKey:  validVAPIDKey(),
	})

	token, ok := m.RegistrationToken(context.Background())

	assert.True(t, ok)
	assert.Equal(t, "fcm-token", token)
	assert.Equal(t, 1, messaging.tokenCalls)
}

func TestChannelManager_RegistrationTokenSkipped(t *testing.T) {
	tests := []struct {
		name      string
		messaging *fakeMessaging
		browser   *fakeBrowser
		confirm   bool
		vapid     string
		prompts   int
	}{
		{
			name:    "messaging not initialized",
			browser: grantingBrowser(),
			confirm: true,
			vapid:   validVAPIDKey(),
		},
		{
			name:      "vapid unset",
			messaging: &fakeMessaging{token: "x"},
			browser:   grantingBrowser(),
			confirm:   true,
		},
		{
			name:      "vapid placeholder",
			messaging: &fakeMessaging{token: "x"},
			browser:   grantingBrowser(),
			confirm:   true,
			vapid:     "your_vapid_key_here",
		},
		{
			name:      "user declines",
			messaging: &fakeMessaging{token: "x"},
			browser:   grantingBrowser(),
			confirm:   false,
			vapid:     validVAPIDKey(),
		},
		{
			name:      "malformed vapid",
			messaging: &fakeMessaging{token: "x"},
			browser:   grantingBrowser(),
			confirm:   true,
			vapid:     "not+a/valid*key",
			prompts:   1,
		},
		{
			name:      "provider error",
			messaging: &fakeMessaging{err: errors.New("messaging/token-subscribe-failed")},
			browser:   grantingBrowser(),
			confirm:   true,
			vapid:     validVAPIDKey(),
			prompts:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ChannelConfig{
				Browser:   tt.browser,
				Confirmer: ConfirmerFunc(func(context.Context) (bool, error) { return tt.confirm, nil }),
				VAPIDKey:  tt.vapid,
			}
			if tt.messaging != nil {
				cfg.Messaging = tt.messaging
			}

			token, ok := NewChannelManager(cfg).RegistrationToken(context.Background())

			assert.False(t, ok)
			assert.Empty(t, token)
			assert.Equal(t, tt.prompts, tt.browser.prompts)
			if tt.messaging != nil && tt.name != "provider error" {
				assert.Equal(t, 0, tt.messaging.tokenCalls)
			}
		})
	}
}

func TestChannelManager_ListenForegroundHonorsVisibility(t *testing.T) {
	messaging := &fakeMessaging{}
	visible := true
	m := NewChannelManager(ChannelConfig{
		Messaging:  messaging,
		Visibility: VisibilityFunc(func() bool { return visible }),
	})

	var got []domain.PushPayload
	stop, err := m.ListenForeground(context.Background(), func(p domain.PushPayload) {
		got = append(got, p)
	})
	require.NoError(t, err)
	require.NotNil(t, messaging.handler)

	messaging.handler(domain.PushPayload{Notification: domain.PushNotification{Title: "shown"}})
	visible = false
	messaging.handler(domain.PushPayload{Notification: domain.PushNotification{Title: "dropped"}})

	require.Len(t, got, 1)
	assert.Equal(t, "shown", got[0].Notification.Title)

	stop()
	assert.Nil(t, messaging.handler)
}

func TestChannelManager_ListenForegroundWithoutMessaging(t *testing.T) {
	_, err := NewChannelManager(ChannelConfig{}).ListenForeground(context.Background(), func(domain.PushPayload) {})
	assert.ErrorIs(t, err, ErrMessagingUnavailable)
}

func TestValidateVAPIDKey(t *testing.T) {
	assert.NoError(t, ValidateVAPIDKey(validVAPIDKey()))
	assert.NoError(t, ValidateVAPIDKey(validVAPIDKey()+"="))

	short := base64.RawURLEncoding.EncodeToString([]byte{0x04, 1, 2})
	assert.ErrorIs(t, ValidateVAPIDKey(short), ErrMalformedVAPIDKey)

	compressed := make([]byte, 65)
	compressed[0] = 0x02
	assert.ErrorIs(t, ValidateVAPIDKey(base64.RawURLEncoding.EncodeToString(compressed)), ErrMalformedVAPIDKey)

	assert.ErrorIs(t, ValidateVAPIDKey("%%%"), ErrMalformedVAPIDKey)
}

func TestIsPlaceholderVAPIDKey(t *testing.T) {
	assert.True(t, IsPlaceholderVAPIDKey(""))
	assert.True(t, IsPlaceholderVAPIDKey("  "))
	assert.True(t, IsPlaceholderVAPIDKey("YOUR_VAPID_KEY"))
	assert.False(t, IsPlaceholderVAPIDKey(validVAPIDKey()))
}

func TestCheckVAPIDKey(t *testing.T) {
	assert.NoError(t, CheckVAPIDKey(validVAPIDKey()))
	assert.ErrorIs(t, CheckVAPIDKey(""), ErrVAPIDKeyUnset)
	assert.ErrorIs(t, CheckVAPIDKey("your_vapid_key_here"), ErrVAPIDKeyUnset)
	assert.ErrorIs(t, CheckVAPIDKey("BNotARealKey"), ErrMalformedVAPIDKey)
}
