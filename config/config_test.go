package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_URL", "https://api.example.test")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "8080", cfg.Service.Port)
	assert.Equal(t, 7, cfg.Session.CookieDays)
	assert.Equal(t, ProfileFailureLogout, cfg.Session.ProfileFailurePolicy)
	assert.Equal(t, 10*time.Second, cfg.GetBackendTimeoutDuration())
	assert.Equal(t, time.Minute, cfg.GetProfileCacheTTLDuration())
	assert.Equal(t, time.Duration(0), cfg.GetReadinessDrainDelayDuration())
	assert.False(t, cfg.IsProduction())
	assert.Nil(t, cfg.KafkaBrokerList())
}

func TestLoad_PublicFallbacks(t *testing.T) {
	t.Setenv("API_URL", "")
	t.Setenv("NEXT_PUBLIC_API_URL", "https://public.example.test")
	t.Setenv("NEXT_PUBLIC_FIREBASE_VAPID_KEY", "public-vapid")
	t.Setenv("FIREBASE_PROJECT_ID", "sawa-stay")

	cfg := Load()

	assert.Equal(t, "https://public.example.test", cfg.Backend.BaseURL)
	assert.Equal(t, "public-vapid", cfg.Notification.VAPIDKey)
	assert.Equal(t, "sawa-stay", cfg.Notification.FirebaseProjectID)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing backend", env: map[string]string{"API_URL": "", "NEXT_PUBLIC_API_URL": ""}},
		{name: "bad policy", env: map[string]string{"API_URL": "http://x", "SESSION_PROFILE_FAILURE_POLICY": "retry"}},
		{name: "bad duration", env: map[string]string{"API_URL": "http://x", "API_TIMEOUT": "soon"}},
		{name: "negative cookie days", env: map[string]string{"API_URL": "http://x", "TOKEN_COOKIE_DAYS": "-1"}},
		{name: "sample rate", env: map[string]string{"API_URL": "http://x", "TRACING_SAMPLE_RATE": "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Error(t, Load().Validate())
		})
	}
}

func TestKafkaBrokerList(t *testing.T) {
	cfg := &Config{Kafka: KafkaConfig{Brokers: " a:9092, ,b:9092"}}
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokerList())
}
