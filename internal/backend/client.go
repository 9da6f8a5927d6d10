// Package backend is the HTTP client for the sawa-stay REST API.
//
// Every endpoint answers with the envelope {success, data?, message?}; login
// additionally carries access_token. Calls are authenticated with
// "Authorization: Bearer <token>".
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/sawa-admin/internal/core/domain"
	"github.com/duynhne/sawa-admin/middleware"
)

var (
	// ErrUnauthorized is returned when the backend rejects the bearer token.
	ErrUnauthorized = errors.New("backend: unauthorized")

	// ErrUnsuccessful is returned when the envelope carries success:false.
	ErrUnsuccessful = errors.New("backend: request unsuccessful")
)

// APIError carries the backend message of a failed call.
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend status %d", e.Status)
}

func (e *APIError) Unwrap() error { return e.Err }

// MessageOf returns the backend-provided message of err, if any.
func MessageOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// Envelope is the common response body.
type Envelope struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	AccessToken string          `json:"access_token,omitempty"`
}

// LoginResponse is the decoded /auth/login answer.
type LoginResponse struct {
	Success     bool
	Message     string
	AccessToken string
	User        *domain.User
}

// Client talks to the REST backend.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// NewClient instantiates the client; a nil httpClient gets a 10s timeout.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("backend base URL is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend base URL %q must be absolute", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: u, http: httpClient}, nil
}

// BaseURL returns the parsed backend root, used by the admin proxy.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Login posts the console credentials. A success:false answer is not an
// error: it is returned as LoginResponse{Success:false, Message}.
func (c *Client) Login(ctx context.Context, phone, password, role string) (*LoginResponse, error) {
	body := map[string]string{"phone": phone, "password": password, "role": role}

	env, status, err := c.do(ctx, http.MethodPost, "/auth/login", "", body)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &LoginResponse{Success: false, Message: msg}, nil
	}

	resp := &LoginResponse{
		Success:     true,
		Message:     env.Message,
		AccessToken: env.AccessToken,
	}
	if user, ok := decodeUser(env.Data); ok {
		resp.User = user
	}
	return resp, nil
}

// Logout invalidates the token on the backend.
func (c *Client) Logout(ctx context.Context, token string) error {
	env, status, err := c.do(ctx, http.MethodPost, "/auth/logout", token, nil)
	if err != nil {
		return err
	}
	return envelopeError(env, status)
}

// Me fetches the profile of the token owner.
func (c *Client) Me(ctx context.Context, token string) (*domain.User, error) {
	env, status, err := c.do(ctx, http.MethodGet, "/auth/me", token, nil)
	if err != nil {
		return nil, err
	}
	if err := envelopeError(env, status); err != nil {
		return nil, err
	}
	user, ok := decodeUser(env.Data)
	if !ok {
		return nil, &APIError{Status: status, Message: "profile missing from response", Err: ErrUnsuccessful}
	}
	return user, nil
}

// ForgotPassword starts the reset flow for phone.
func (c *Client) ForgotPassword(ctx context.Context, phone string) (*Envelope, error) {
	env, status, err := c.do(ctx, http.MethodPost, "/auth/forgot-password", "", map[string]string{"phone": phone})
	if err != nil {
		return nil, err
	}
	if err := envelopeError(env, status); err != nil {
		return env, err
	}
	return env, nil
}

// RegisterDeviceToken uploads a push registration token for the session user.
func (c *Client) RegisterDeviceToken(ctx context.Context, token, fcmToken, deviceInfo string) error {
	body := map[string]string{"fcm_token": fcmToken, "device_info": deviceInfo}
	env, status, err := c.do(ctx, http.MethodPost, "/admin/fcm-token", token, body)
	if err != nil {
		return err
	}
	return envelopeError(env, status)
}

func (c *Client) do(ctx context.Context, method, path, token string, body any) (*Envelope, int, error) {
	ctx, span := middleware.StartSpan(ctx, "backend.request", trace.WithAttributes(
		attribute.String("layer", "backend"),
		attribute.String("http.method", method),
		attribute.String("http.route", path),
	))
	defer span.End()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(raw)
	}

	u := c.BaseURL()
	u.Path = strings.TrimRight(u.Path, "/") + path

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read %s response: %w", path, err)
	}

	var env Envelope
	if len(bytes.TrimSpace(raw)) == 0 {
		env.Success = resp.StatusCode < http.StatusBadRequest
	} else {
		if err := json.Unmarshal(raw, &env); err != nil {
			if resp.StatusCode >= http.StatusBadRequest {
				return &Envelope{}, resp.StatusCode, nil
			}
			return nil, resp.StatusCode, fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		env.Success = false
	}
	return &env, resp.StatusCode, nil
}

func envelopeError(env *Envelope, status int) error {
	if env.Success {
		return nil
	}
	sentinel := ErrUnsuccessful
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		sentinel = ErrUnauthorized
	}
	return &APIError{Status: status, Message: env.Message, Err: sentinel}
}

// decodeUser accepts either data:{...user} or data:{user:{...}}.
func decodeUser(data json.RawMessage) (*domain.User, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false
	}

	var wrapped struct {
		User json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err == nil && len(wrapped.User) > 0 && !bytes.Equal(wrapped.User, []byte("null")) {
		trimmed = wrapped.User
	}

	var user domain.User
	if err := json.Unmarshal(trimmed, &user); err != nil {
		return nil, false
	}
	if user.ID == "" && user.Phone == "" && user.Name == "" {
		return nil, false
	}
	return &user, true
}
