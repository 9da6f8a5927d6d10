package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/duynhne/sawa-admin/internal/core/domain"
	"github.com/duynhne/sawa-admin/internal/notify"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	toastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(0, 1)
)

// permissionKey holds the terminal's notification permission in local storage.
const permissionKey = "notification_permission"

// promptCredentials asks for whatever of phone and password is missing.
func promptCredentials(ctx context.Context, phone, password string) (string, string, error) {
	var fields []huh.Field
	if phone == "" {
		fields = append(fields, huh.NewInput().
			Title("Phone").
			Value(&phone))
	}
	if password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&password))
	}
	if len(fields) == 0 {
		return phone, password, nil
	}
	if err := huh.NewForm(huh.NewGroup(fields...)).RunWithContext(ctx); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(phone), password, nil
}

// confirmNotifications is the in-app dialog shown before the permission prompt.
func confirmNotifications(ctx context.Context) (bool, error) {
	var ok bool
	confirm := huh.NewConfirm().
		Title("Enable notifications?").
		Description("Get notified about new bookings and reports while the console is open.").
		Affirmative("Enable").
		Negative("Not now").
		Value(&ok)
	if err := huh.NewForm(huh.NewGroup(confirm)).RunWithContext(ctx); err != nil {
		return false, err
	}
	return ok, nil
}

// askPermission is the terminal stand-in for the native permission prompt.
func askPermission(ctx context.Context) (domain.Permission, error) {
	perm := domain.PermissionDenied
	sel := huh.NewSelect[domain.Permission]().
		Title("sawactl wants to show notifications").
		Options(
			huh.NewOption("Allow", domain.PermissionGranted),
			huh.NewOption("Block", domain.PermissionDenied),
		).
		Value(&perm)
	if err := huh.NewForm(huh.NewGroup(sel)).RunWithContext(ctx); err != nil {
		return domain.PermissionDefault, err
	}
	return perm, nil
}

// terminalBrowser keeps the notification permission in local storage, the
// way a browser remembers it per origin.
type terminalBrowser struct {
	storage domain.LocalStorage
	ask     func(ctx context.Context) (domain.Permission, error)
}

var _ notify.Browser = (*terminalBrowser)(nil)

func (b *terminalBrowser) Supported() bool { return b.storage != nil }

func (b *terminalBrowser) Permission() domain.Permission {
	v, ok, err := b.storage.GetItem(context.Background(), clientScope, permissionKey)
	if err != nil || !ok {
		return domain.PermissionDefault
	}
	switch p := domain.Permission(v); p {
	case domain.PermissionGranted, domain.PermissionDenied:
		return p
	default:
		return domain.PermissionDefault
	}
}

func (b *terminalBrowser) RequestPermission(ctx context.Context) (domain.Permission, error) {
	perm, err := b.ask(ctx)
	if err != nil {
		return domain.PermissionDefault, err
	}
	if perm == domain.PermissionDefault {
		return perm, nil
	}
	if err := b.storage.SetItem(ctx, clientScope, permissionKey, string(perm)); err != nil {
		return perm, err
	}
	return perm, nil
}

// terminalToaster prints toasts as bordered boxes.
type terminalToaster struct {
	mu  sync.Mutex
	out io.Writer
}

var _ notify.Toaster = (*terminalToaster)(nil)

func (t *terminalToaster) Toast(_ context.Context, n domain.PushNotification) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintln(t.out, renderToast(n))
	return err
}

func renderToast(n domain.PushNotification) string {
	title := n.Title
	if title == "" {
		title = "Syria Go"
	}
	content := titleStyle.Render(title)
	if n.Body != "" {
		content += "\n" + n.Body
	}
	return toastStyle.Render(content)
}
