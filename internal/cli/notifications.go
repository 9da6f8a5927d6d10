package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/duynhne/sawa-admin/internal/core/domain"
	logicv1 "github.com/duynhne/sawa-admin/internal/logic/v1"
	"github.com/duynhne/sawa-admin/internal/notify"
)

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Enable and receive console notifications",
}

var notificationsEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Allow sawactl to show notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		perm, err := a.enableNotifications(cmd.Context(), notify.ConfirmerFunc(confirmNotifications), askPermission)
		if err != nil {
			return err
		}
		printPermission(a, perm)
		return nil
	},
}

var notificationsListenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Show console notifications as they arrive",
	Long: `Open the gateway notification stream and print every notification
as a toast. Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		return a.listen(cmd.Context(), notify.ConfirmerFunc(confirmNotifications), askPermission)
	},
}

func init() {
	notificationsCmd.AddCommand(notificationsEnableCmd)
	notificationsCmd.AddCommand(notificationsListenCmd)
}

// terminalVisible: a terminal running listen is the foreground page.
var terminalVisible = notify.VisibilityFunc(func() bool { return true })

func (a *app) channel(stream notify.Messaging, confirmer notify.Confirmer, ask func(context.Context) (domain.Permission, error)) *notify.ChannelManager {
	return notify.NewChannelManager(notify.ChannelConfig{
		Messaging:  stream,
		Browser:    &terminalBrowser{storage: a.storage, ask: ask},
		Confirmer:  confirmer,
		Visibility: terminalVisible,
	})
}

func (a *app) enableNotifications(ctx context.Context, confirmer notify.Confirmer, ask func(context.Context) (domain.Permission, error)) (domain.Permission, error) {
	if _, err := a.requireSession(ctx); err != nil {
		return domain.PermissionDefault, err
	}
	return a.channel(nil, confirmer, ask).RequestPermission(ctx), nil
}

func (a *app) listen(ctx context.Context, confirmer notify.Confirmer, ask func(context.Context) (domain.Permission, error)) error {
	snap, err := a.requireSession(ctx)
	if err != nil {
		return err
	}

	stream, err := newGatewayStream(a.cfg.Gateway, snap.Token)
	if err != nil {
		return err
	}
	mgr := a.channel(stream, confirmer, ask)
	if perm := mgr.RequestPermission(ctx); perm != domain.PermissionGranted {
		printPermission(a, perm)
		return fmt.Errorf("notifications are %s, run sawactl notifications enable", perm)
	}

	router := notify.NewPresentationRouter(&terminalToaster{out: a.out}, terminalVisible, 0)
	stop, err := mgr.ListenForeground(ctx, func(p domain.PushPayload) {
		router.Present(ctx, p)
	})
	if err != nil {
		return err
	}
	defer stop()

	fmt.Fprintln(a.out, mutedStyle.Render("Listening for notifications, press Ctrl+C to stop"))

	select {
	case <-ctx.Done():
		return nil
	case <-stream.Done():
		return stream.Err()
	}
}

// requireSession mounts the stored session and fails when nobody is signed in.
func (a *app) requireSession(ctx context.Context) (domain.Session, error) {
	snap := a.session(nil).Mount(ctx)
	if snap.State != domain.SessionAuthenticated || snap.Token == "" {
		return snap, fmt.Errorf("%w, run sawactl login", logicv1.ErrNotAuthenticated)
	}
	return snap, nil
}

func printPermission(a *app, perm domain.Permission) {
	switch perm {
	case domain.PermissionGranted:
		fmt.Fprintln(a.out, successStyle.Render("Notifications enabled"))
	case domain.PermissionDenied:
		fmt.Fprintln(a.out, errorStyle.Render("Notifications blocked"))
	default:
		fmt.Fprintln(a.out, mutedStyle.Render("Notifications not decided yet"))
	}
}
