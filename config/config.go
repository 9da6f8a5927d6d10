// Package config loads the console gateway configuration from the process
// environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Profile fetch failure policies understood by the session provider.
const (
	ProfileFailureLogout = "logout"
	ProfileFailureKeep   = "keep"
)

// Config is the root configuration object.
type Config struct {
	Service      ServiceConfig
	Logging      LoggingConfig
	Tracing      TracingConfig
	Profiling    ProfilingConfig
	Backend      BackendConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Session      SessionConfig
	Notification NotificationConfig
	Kafka        KafkaConfig
	Shutdown     ShutdownConfig
}

type ServiceConfig struct {
	Name    string
	Version string
	Env     string
	Port    string
}

type LoggingConfig struct {
	Level string
}

type TracingConfig struct {
	Enabled    bool
	Endpoint   string
	SampleRate float64
}

type ProfilingConfig struct {
	Enabled  bool
	Endpoint string
}

// BackendConfig points at the sawa-stay REST API.
type BackendConfig struct {
	BaseURL string
	Timeout string
}

type DatabaseConfig struct {
	URL string
}

type RedisConfig struct {
	URL string
}

// SessionConfig drives the token store and the session provider.
type SessionConfig struct {
	CookieDays           int
	ProfileFailurePolicy string
	ProfileCacheTTL      string
}

// NotificationConfig carries the push messaging settings.
type NotificationConfig struct {
	FirebaseProjectID       string
	FirebaseCredentialsFile string
	VAPIDKey                string
	Icon                    string
	IntakeSecret            string
}

type KafkaConfig struct {
	Brokers string
	Topic   string
	GroupID string
}

type ShutdownConfig struct {
	Timeout             string
	ReadinessDrainDelay string
}

// Load reads .env (when present) and builds the Config from the environment.
// Values already set in the environment win over the .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Service: ServiceConfig{
			Name:    getEnv("SERVICE_NAME", "sawa-admin"),
			Version: getEnv("SERVICE_VERSION", "dev"),
			Env:     getEnv("APP_ENV", "development"),
			Port:    getEnv("PORT", "8080"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Tracing: TracingConfig{
			Enabled:    getEnvBool("TRACING_ENABLED", false),
			Endpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			SampleRate: getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},
		Profiling: ProfilingConfig{
			Enabled:  getEnvBool("PROFILING_ENABLED", false),
			Endpoint: getEnv("PYROSCOPE_ENDPOINT", "http://localhost:4040"),
		},
		Backend: BackendConfig{
			BaseURL: getEnv("API_URL", getEnv("NEXT_PUBLIC_API_URL", "")),
			Timeout: getEnv("API_TIMEOUT", "10s"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Session: SessionConfig{
			CookieDays:           getEnvInt("TOKEN_COOKIE_DAYS", 7),
			ProfileFailurePolicy: strings.ToLower(getEnv("SESSION_PROFILE_FAILURE_POLICY", ProfileFailureLogout)),
			ProfileCacheTTL:      getEnv("PROFILE_CACHE_TTL", "60s"),
		},
		Notification: NotificationConfig{
			FirebaseProjectID:       firebaseEnv("PROJECT_ID"),
			FirebaseCredentialsFile: firebaseEnv("CREDENTIALS_FILE"),
			VAPIDKey:                firebaseEnv("VAPID_KEY"),
			Icon:                    getEnv("NOTIFICATION_ICON", "/icons/icon-192x192.png"),
			IntakeSecret:            getEnv("PUSH_INTAKE_SECRET", ""),
		},
		Kafka: KafkaConfig{
			Brokers: getEnv("KAFKA_BROKERS", ""),
			Topic:   getEnv("KAFKA_PUSH_TOPIC", "sawa.admin.notifications"),
			GroupID: getEnv("KAFKA_GROUP_ID", "sawa-admin-gateway"),
		},
		Shutdown: ShutdownConfig{
			Timeout:             getEnv("SHUTDOWN_TIMEOUT", "10s"),
			ReadinessDrainDelay: getEnv("READINESS_DRAIN_DELAY", "0s"),
		},
	}
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	var errs []error

	if c.Service.Port == "" {
		errs = append(errs, errors.New("PORT must be set"))
	}
	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("API_URL (or NEXT_PUBLIC_API_URL) must be set"))
	}
	if c.Session.CookieDays <= 0 {
		errs = append(errs, errors.New("TOKEN_COOKIE_DAYS must be positive"))
	}
	switch c.Session.ProfileFailurePolicy {
	case ProfileFailureLogout, ProfileFailureKeep:
	default:
		errs = append(errs, fmt.Errorf("SESSION_PROFILE_FAILURE_POLICY must be %q or %q, got %q",
			ProfileFailureLogout, ProfileFailureKeep, c.Session.ProfileFailurePolicy))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, errors.New("TRACING_SAMPLE_RATE must be between 0 and 1"))
	}
	for name, raw := range map[string]string{
		"API_TIMEOUT":           c.Backend.Timeout,
		"PROFILE_CACHE_TTL":     c.Session.ProfileCacheTTL,
		"SHUTDOWN_TIMEOUT":      c.Shutdown.Timeout,
		"READINESS_DRAIN_DELAY": c.Shutdown.ReadinessDrainDelay,
	} {
		if _, err := time.ParseDuration(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// IsProduction reports whether cookies must be marked Secure.
func (c *Config) IsProduction() bool {
	return c.Service.Env == "production"
}

// KafkaBrokerList splits KAFKA_BROKERS; an empty list disables the intake.
func (c *Config) KafkaBrokerList() []string {
	if c.Kafka.Brokers == "" {
		return nil
	}
	parts := strings.Split(c.Kafka.Brokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// GetBackendTimeoutDuration parses API_TIMEOUT, defaulting to 10s.
func (c *Config) GetBackendTimeoutDuration() time.Duration {
	return parseDuration(c.Backend.Timeout, 10*time.Second)
}

// GetProfileCacheTTLDuration parses PROFILE_CACHE_TTL. Zero disables the cache.
func (c *Config) GetProfileCacheTTLDuration() time.Duration {
	return parseDuration(c.Session.ProfileCacheTTL, 0)
}

// GetShutdownTimeoutDuration parses SHUTDOWN_TIMEOUT, defaulting to 10s.
func (c *Config) GetShutdownTimeoutDuration() time.Duration {
	return parseDuration(c.Shutdown.Timeout, 10*time.Second)
}

// GetReadinessDrainDelayDuration parses READINESS_DRAIN_DELAY.
func (c *Config) GetReadinessDrainDelayDuration() time.Duration {
	return parseDuration(c.Shutdown.ReadinessDrainDelay, 0)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// firebaseEnv prefers FIREBASE_<key> and falls back to the console's
// NEXT_PUBLIC_FIREBASE_<key> naming.
func firebaseEnv(key string) string {
	return getEnv("FIREBASE_"+key, getEnv("NEXT_PUBLIC_FIREBASE_"+key, ""))
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
