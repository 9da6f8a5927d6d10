package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duynhne/sawa-admin/internal/core/domain"
	"github.com/duynhne/sawa-admin/internal/core/repository"
)

func TestRenderToast(t *testing.T) {
	out := renderToast(domain.PushNotification{Title: "New booking", Body: "Room 12 reserved"})
	assert.Contains(t, out, "New booking")
	assert.Contains(t, out, "Room 12 reserved")

	assert.Contains(t, renderToast(domain.PushNotification{}), "Syria Go")
}

func TestTerminalToaster_WritesEachToast(t *testing.T) {
	var buf bytes.Buffer
	toaster := &terminalToaster{out: &buf}

	require.NoError(t, toaster.Toast(context.Background(), domain.PushNotification{Title: "one"}))
	require.NoError(t, toaster.Toast(context.Background(), domain.PushNotification{Title: "two"}))

	assert.Contains(t, buf.String(), "one")
	assert.Contains(t, buf.String(), "two")
}

func TestTerminalBrowser_RemembersDecision(t *testing.T) {
	ctx := context.Background()
	storage := repository.NewMemoryLocalStorage()

	asked := 0
	browser := &terminalBrowser{storage: storage, ask: func(context.Context) (domain.Permission, error) {
		asked++
		return domain.PermissionGranted, nil
	}}

	assert.True(t, browser.Supported())
	assert.Equal(t, domain.PermissionDefault, browser.Permission())

	perm, err := browser.RequestPermission(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionGranted, perm)
	assert.Equal(t, 1, asked)
	assert.Equal(t, domain.PermissionGranted, browser.Permission())

	v, ok, err := storage.GetItem(ctx, clientScope, permissionKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "granted", v)
}

func TestTerminalBrowser_PromptErrorKeepsDefault(t *testing.T) {
	storage := repository.NewMemoryLocalStorage()
	browser := &terminalBrowser{storage: storage, ask: func(context.Context) (domain.Permission, error) {
		return domain.PermissionDefault, errors.New("user aborted")
	}}

	_, err := browser.RequestPermission(context.Background())
	assert.Error(t, err)
	assert.Equal(t, domain.PermissionDefault, browser.Permission())
}

func TestTerminalBrowser_UnknownStoredValue(t *testing.T) {
	ctx := context.Background()
	storage := repository.NewMemoryLocalStorage()
	require.NoError(t, storage.SetItem(ctx, clientScope, permissionKey, "maybe"))

	browser := &terminalBrowser{storage: storage}
	assert.Equal(t, domain.PermissionDefault, browser.Permission())
}
