package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duynhne/sawa-admin/internal/core/domain"
	logicv1 "github.com/duynhne/sawa-admin/internal/logic/v1"
	"github.com/duynhne/sawa-admin/internal/notify"
)

const (
	testPhone    = "0933000000"
	testPassword = "secret"
	testToken    = "T"
)

// syncBuffer is written by the stream goroutine and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeAPI struct {
	mu      sync.Mutex
	logouts int
}

func (f *fakeAPI) logoutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logouts
}

func (f *fakeAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	user := map[string]any{"id": 7, "name": "Rami", "phone": testPhone, "role": "admin"}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/login":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["phone"] != testPhone || body["password"] != testPassword {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "Invalid credentials"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "access_token": testToken, "data": map[string]any{"user": user}})
		case "/auth/me":
			if r.Header.Get("Authorization") != "Bearer "+testToken {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "Unauthenticated"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": user})
		case "/auth/logout":
			f.mu.Lock()
			f.logouts++
			f.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestApp(t *testing.T, apiURL, gatewayURL string) (*app, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	a, err := newApp(&Config{
		API:        apiURL,
		Gateway:    gatewayURL,
		StateDir:   t.TempDir(),
		CookieDays: 7,
		Timeout:    "2s",
	}, out)
	require.NoError(t, err)
	return a, out
}

func testCommand(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(ctx)
	return cmd
}

func TestApp_LoginWhoamiLogout(t *testing.T) {
	api := &fakeAPI{}
	srv := api.server(t)
	defer srv.Close()

	a, out := newTestApp(t, srv.URL, "http://localhost:8080")
	cmd := testCommand(context.Background())

	require.NoError(t, a.login(cmd, testPhone, testPassword))
	assert.Contains(t, out.String(), "Signed in")
	assert.Contains(t, out.String(), "Rami")

	token, err := a.jar.Cookie(domain.TokenKey)
	require.NoError(t, err)
	assert.Equal(t, testToken, token)

	v, ok, err := a.storage.GetItem(context.Background(), clientScope, domain.TokenKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, testToken, v)

	// A fresh process reads the session back from disk.
	again, err := newApp(a.cfg, out)
	require.NoError(t, err)
	require.NoError(t, again.whoami(cmd))
	assert.Contains(t, out.String(), testPhone)

	require.NoError(t, again.logout(cmd))
	assert.Contains(t, out.String(), "Signed out")
	assert.Equal(t, 1, api.logoutCount())

	_, err = again.jar.Cookie(domain.TokenKey)
	assert.ErrorIs(t, err, http.ErrNoCookie)
	assert.ErrorIs(t, again.whoami(cmd), logicv1.ErrNotAuthenticated)
}

func TestApp_LoginRejected(t *testing.T) {
	srv := (&fakeAPI{}).server(t)
	defer srv.Close()

	a, out := newTestApp(t, srv.URL, "http://localhost:8080")

	err := a.login(testCommand(context.Background()), testPhone, "wrong")
	assert.Error(t, err)
	assert.Contains(t, out.String(), "Invalid credentials")

	_, err = a.jar.Cookie(domain.TokenKey)
	assert.ErrorIs(t, err, http.ErrNoCookie)
}

func TestApp_LogoutWithoutSession(t *testing.T) {
	api := &fakeAPI{}
	srv := api.server(t)
	defer srv.Close()

	a, out := newTestApp(t, srv.URL, "http://localhost:8080")
	require.NoError(t, a.logout(testCommand(context.Background())))
	assert.Contains(t, out.String(), "Not signed in")
	assert.Zero(t, api.logoutCount())
}

func grantOnce(t *testing.T) (notify.Confirmer, func(context.Context) (domain.Permission, error)) {
	t.Helper()
	confirmed := 0
	confirmer := notify.ConfirmerFunc(func(context.Context) (bool, error) {
		confirmed++
		return true, nil
	})
	ask := func(context.Context) (domain.Permission, error) {
		if confirmed == 0 {
			t.Error("native prompt shown before confirmation")
		}
		return domain.PermissionGranted, nil
	}
	return confirmer, ask
}

func TestApp_EnableNotifications(t *testing.T) {
	srv := (&fakeAPI{}).server(t)
	defer srv.Close()

	a, _ := newTestApp(t, srv.URL, "http://localhost:8080")
	ctx := context.Background()

	confirmer, ask := grantOnce(t)
	_, err := a.enableNotifications(ctx, confirmer, ask)
	assert.ErrorIs(t, err, logicv1.ErrNotAuthenticated)

	require.NoError(t, a.login(testCommand(ctx), testPhone, testPassword))

	perm, err := a.enableNotifications(ctx, confirmer, ask)
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionGranted, perm)

	// Decided permissions do not prompt again.
	never := notify.ConfirmerFunc(func(context.Context) (bool, error) {
		t.Error("confirmation shown twice")
		return false, nil
	})
	perm, err = a.enableNotifications(ctx, never, ask)
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionGranted, perm)
}

func TestApp_ListenToastsOncePerMessage(t *testing.T) {
	srv := (&fakeAPI{}).server(t)
	defer srv.Close()

	relay := notificationEvent(domain.MessageTypeNotificationReceived, "New booking", "m1")
	gw := sseServer(t, testToken, relay, relay)
	defer gw.Close()

	a, out := newTestApp(t, srv.URL, gw.URL)
	ctx := context.Background()
	require.NoError(t, a.login(testCommand(ctx), testPhone, testPassword))
	require.NoError(t, a.storage.SetItem(ctx, clientScope, permissionKey, string(domain.PermissionGranted)))

	confirmer, ask := grantOnce(t)
	err := a.listen(ctx, confirmer, ask)
	assert.ErrorContains(t, err, "notification stream closed")

	assert.Equal(t, 1, strings.Count(out.String(), "New booking"))
}

func TestApp_ListenRequiresPermission(t *testing.T) {
	srv := (&fakeAPI{}).server(t)
	defer srv.Close()

	a, out := newTestApp(t, srv.URL, "http://localhost:1")
	ctx := context.Background()
	require.NoError(t, a.login(testCommand(ctx), testPhone, testPassword))

	decline := notify.ConfirmerFunc(func(context.Context) (bool, error) { return false, nil })
	err := a.listen(ctx, decline, func(context.Context) (domain.Permission, error) {
		t.Error("native prompt shown after decline")
		return domain.PermissionDenied, nil
	})
	assert.ErrorContains(t, err, "notifications are denied")
	assert.Contains(t, out.String(), "Notifications blocked")
}
