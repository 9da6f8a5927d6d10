package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duynhne/sawa-admin/internal/backend"
	"github.com/duynhne/sawa-admin/internal/core/domain"
	"github.com/duynhne/sawa-admin/internal/core/repository"
)

type fakeAuthAPI struct {
	loginResp  *backend.LoginResponse
	loginErr   error
	loginRole  string
	meUser     *domain.User
	meErr      error
	meCalls    int
	logoutErr  error
	logoutWith []string
}

func (f *fakeAuthAPI) Login(_ context.Context, _, _, role string) (*backend.LoginResponse, error) {
	f.loginRole = role
	return f.loginResp, f.loginErr
}

func (f *fakeAuthAPI) Logout(_ context.Context, token string) error {
	f.logoutWith = append(f.logoutWith, token)
	return f.logoutErr
}

func (f *fakeAuthAPI) Me(_ context.Context, _ string) (*domain.User, error) {
	f.meCalls++
	return f.meUser, f.meErr
}

type fakeTokenStore struct {
	token   string
	sets    int
	removes int
	days    int
}

func (f *fakeTokenStore) Set(_ context.Context, value string, days int) {
	f.token = value
	f.days = days
	f.sets++
}

func (f *fakeTokenStore) Get(context.Context) (string, domain.TokenSource, bool) {
	if f.token == "" {
		return "", "", false
	}
	return f.token, domain.TokenSourceCookie, true
}

func (f *fakeTokenStore) Remove(context.Context) {
	f.token = ""
	f.removes++
}

func TestLogin_BackendFailureLeavesTokenUntouched(t *testing.T) {
	api := &fakeAuthAPI{loginResp: &backend.LoginResponse{Success: false, Message: "m"}}
	tokens := &fakeTokenStore{token: "previous"}
	p := NewSessionProvider(api, tokens)

	res := p.Login(context.Background(), "0933", "pw")

	assert.Equal(t, domain.LoginResult{Success: false, Message: "m"}, res)
	assert.Equal(t, "previous", tokens.token)
	assert.Equal(t, 0, tokens.sets)
	assert.Equal(t, domain.AdminRole, api.loginRole)
}

func TestLogin_SuccessStoresTokenAndUser(t *testing.T) {
	user := &domain.User{ID: "1", Name: "Rami", Phone: "0933", Role: "admin"}
	api := &fakeAuthAPI{loginResp: &backend.LoginResponse{Success: true, AccessToken: "T", User: user}}
	tokens := &fakeTokenStore{}
	p := NewSessionProvider(api, tokens, WithCookieDays(7))

	res := p.Login(context.Background(), "0933", "pw")

	require.True(t, res.Success)
	require.NotNil(t, res.User)
	assert.Equal(t, "Rami", res.User.Name)

	got, _, ok := tokens.Get(context.Background())
	require.True(t, ok)
	assert.Equal(t, "T", got)
	assert.Equal(t, 7, tokens.days)
	assert.Equal(t, 0, api.meCalls)

	snap := p.Snapshot()
	assert.Equal(t, domain.SessionAuthenticated, snap.State)
	assert.Equal(t, "T", snap.Token)
	assert.True(t, p.IsAuthenticated())
}

func TestLogin_FetchesProfileWhenBodyHasNoUser(t *testing.T) {
	api := &fakeAuthAPI{
		loginResp: &backend.LoginResponse{Success: true, AccessToken: "T"},
		meUser:    &domain.User{ID: "9", Name: "Huda"},
	}
	p := NewSessionProvider(api, &fakeTokenStore{})

	res := p.Login(context.Background(), "0933", "pw")

	require.True(t, res.Success)
	assert.Equal(t, 1, api.meCalls)
	assert.Equal(t, "Huda", p.Snapshot().User.Name)
}

func TestLogin_FailuresNeverEscape(t *testing.T) {
	tests := []struct {
		name    string
		api     *fakeAuthAPI
		phone   string
		wantMsg string
	}{
		{
			name:    "network error",
			api:     &fakeAuthAPI{loginErr: errors.New("dial tcp: refused")},
			phone:   "0933",
			wantMsg: "Login failed, please try again",
		},
		{
			name:    "backend error message",
			api:     &fakeAuthAPI{loginErr: &backend.APIError{Status: 500, Message: "Server busy"}},
			phone:   "0933",
			wantMsg: "Server busy",
		},
		{
			name:    "missing token",
			api:     &fakeAuthAPI{loginResp: &backend.LoginResponse{Success: true}},
			phone:   "0933",
			wantMsg: "Login failed, no access token received",
		},
		{
			name:    "empty phone",
			api:     &fakeAuthAPI{},
			phone:   "  ",
			wantMsg: "Phone and password are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := &fakeTokenStore{}
			p := NewSessionProvider(tt.api, tokens)

			res := p.Login(context.Background(), tt.phone, "pw")

			assert.False(t, res.Success)
			assert.Equal(t, tt.wantMsg, res.Message)
			assert.Equal(t, 0, tokens.sets)
		})
	}
}

func TestMount_WithoutToken(t *testing.T) {
	api := &fakeAuthAPI{}
	p := NewSessionProvider(api, &fakeTokenStore{})
	assert.Equal(t, domain.SessionUninitialized, p.Snapshot().State)
	assert.True(t, p.Snapshot().IsLoading)

	snap := p.Mount(context.Background())

	assert.Equal(t, domain.SessionAnonymous, snap.State)
	assert.False(t, snap.IsLoading)
	assert.Equal(t, 0, api.meCalls)
	assert.False(t, p.HasStoredToken())
}

func TestMount_ValidToken(t *testing.T) {
	api := &fakeAuthAPI{meUser: &domain.User{ID: "1", Name: "Rami"}}
	p := NewSessionProvider(api, &fakeTokenStore{token: "T"})

	snap := p.Mount(context.Background())

	assert.Equal(t, domain.SessionAuthenticated, snap.State)
	assert.Equal(t, "Rami", snap.User.Name)

	p.Mount(context.Background())
	assert.Equal(t, 1, api.meCalls, "second Mount must be a no-op")
}

func TestMount_ProfileFailurePolicies(t *testing.T) {
	t.Run("force logout", func(t *testing.T) {
		tokens := &fakeTokenStore{token: "T"}
		api := &fakeAuthAPI{meErr: backend.ErrUnauthorized}
		p := NewSessionProvider(api, tokens, WithFailurePolicy(PolicyForceLogout))

		snap := p.Mount(context.Background())

		assert.Equal(t, domain.SessionAnonymous, snap.State)
		assert.Empty(t, snap.Token)
		assert.Equal(t, 1, tokens.removes)
		assert.False(t, p.HasStoredToken())
		assert.Empty(t, api.logoutWith, "forced logout is local only")
	})

	t.Run("keep token", func(t *testing.T) {
		tokens := &fakeTokenStore{token: "T"}
		api := &fakeAuthAPI{meErr: backend.ErrUnauthorized}
		p := NewSessionProvider(api, tokens, WithFailurePolicy(PolicyKeepToken))

		snap := p.Mount(context.Background())

		assert.Equal(t, domain.SessionAnonymous, snap.State)
		assert.Nil(t, snap.User)
		assert.Equal(t, "T", snap.Token)
		assert.Equal(t, 0, tokens.removes)
		assert.True(t, p.HasStoredToken())
		assert.False(t, p.IsAuthenticated())
	})
}

func TestMount_BackendOutageKeepsToken(t *testing.T) {
	tests := []struct {
		name    string
		meErr   error
		cleared bool
	}{
		{
			name:    "401 clears",
			meErr:   &backend.APIError{Status: http.StatusUnauthorized, Message: "Unauthenticated", Err: backend.ErrUnauthorized},
			cleared: true,
		},
		{
			name:    "success false in 200 clears",
			meErr:   &backend.APIError{Status: http.StatusOK, Message: "Token expired", Err: backend.ErrUnsuccessful},
			cleared: true,
		},
		{
			name:  "503 keeps",
			meErr: &backend.APIError{Status: http.StatusServiceUnavailable, Err: backend.ErrUnsuccessful},
		},
		{
			name:  "connection refused keeps",
			meErr: fmt.Errorf("call GET /auth/me: %w", errors.New("dial tcp 127.0.0.1:8000: connect: connection refused")),
		},
		{
			name:  "timeout keeps",
			meErr: fmt.Errorf("call GET /auth/me: %w", context.DeadlineExceeded),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := &fakeTokenStore{token: "T"}
			p := NewSessionProvider(&fakeAuthAPI{meErr: tt.meErr}, tokens, WithFailurePolicy(PolicyForceLogout))

			snap := p.Mount(context.Background())

			assert.Equal(t, domain.SessionAnonymous, snap.State)
			assert.Nil(t, snap.User)
			if tt.cleared {
				assert.Equal(t, 1, tokens.removes)
				assert.False(t, p.HasStoredToken())
				return
			}
			assert.Zero(t, tokens.removes)
			assert.Equal(t, "T", snap.Token)
			assert.True(t, p.HasStoredToken())
		})
	}
}

func TestParseProfileFailurePolicy(t *testing.T) {
	assert.Equal(t, PolicyKeepToken, ParseProfileFailurePolicy(" KEEP "))
	assert.Equal(t, PolicyForceLogout, ParseProfileFailurePolicy("logout"))
	assert.Equal(t, PolicyForceLogout, ParseProfileFailurePolicy("whatever"))
}

func TestLogout_AlwaysClearsLocally(t *testing.T) {
	api := &fakeAuthAPI{
		meUser:    &domain.User{ID: "1"},
		logoutErr: errors.New("network down"),
	}
	tokens := &fakeTokenStore{token: "T"}
	var navigated []string
	p := NewSessionProvider(api, tokens, WithNavigator(NavigatorFunc(func(path string) {
		navigated = append(navigated, path)
	})))
	p.Mount(context.Background())

	p.Logout(context.Background())

	assert.Equal(t, []string{"T"}, api.logoutWith)
	assert.Empty(t, tokens.token)
	assert.Equal(t, domain.SessionAnonymous, p.Snapshot().State)
	assert.Nil(t, p.Snapshot().User)
	assert.Equal(t, []string{"/login"}, navigated)
}

func TestLogout_WithoutTokenSkipsRemoteCall(t *testing.T) {
	api := &fakeAuthAPI{}
	p := NewSessionProvider(api, &fakeTokenStore{})

	p.Logout(context.Background())

	assert.Empty(t, api.logoutWith)
	assert.Equal(t, domain.SessionAnonymous, p.Snapshot().State)
}

func TestProfileCache_SharedAcrossProviders(t *testing.T) {
	cache := repository.NewMemoryProfileCache(0, time.Minute)
	api := &fakeAuthAPI{meUser: &domain.User{ID: "1", Name: "Rami"}}

	for i := 0; i < 3; i++ {
		p := NewSessionProvider(api, &fakeTokenStore{token: "T"}, WithProfileCache(cache, time.Minute))
		snap := p.Mount(context.Background())
		require.Equal(t, domain.SessionAuthenticated, snap.State)
	}
	assert.Equal(t, 1, api.meCalls)

	p := NewSessionProvider(api, &fakeTokenStore{token: "T"}, WithProfileCache(cache, time.Minute))
	p.Mount(context.Background())
	p.Logout(context.Background())

	cached, err := cache.Get(context.Background(), "T")
	require.NoError(t, err)
	assert.Nil(t, cached)
}
