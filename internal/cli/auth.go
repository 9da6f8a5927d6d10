package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/duynhne/sawa-admin/internal/core/domain"
	logicv1 "github.com/duynhne/sawa-admin/internal/logic/v1"
)

var (
	loginPhone    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with a staff phone and password",
	Long: `Sign in to the admin console. Missing credentials are prompted for.
The access token is stored in ~/.sawactl like the browser cookie.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		phone, password, err := promptCredentials(cmd.Context(), loginPhone, loginPassword)
		if err != nil {
			return err
		}
		return a.login(cmd, phone, password)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		return a.logout(cmd)
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed in staff member",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		return a.whoami(cmd)
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginPhone, "phone", "", "staff phone number")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "password (prompted when empty)")
}

func (a *app) login(cmd *cobra.Command, phone, password string) error {
	res := a.session(nil).Login(cmd.Context(), phone, password)
	if !res.Success {
		fmt.Fprintln(a.out, errorStyle.Render(res.Message))
		return errors.New("login failed")
	}
	fmt.Fprintln(a.out, successStyle.Render("Signed in"))
	if res.User != nil {
		printUser(a, res.User)
	}
	return nil
}

func (a *app) logout(cmd *cobra.Command) error {
	var target string
	provider := a.session(logicv1.NavigatorFunc(func(path string) { target = path }))
	if !provider.HasStoredToken() {
		fmt.Fprintln(a.out, mutedStyle.Render("Not signed in"))
		return nil
	}
	provider.Logout(cmd.Context())
	fmt.Fprintln(a.out, successStyle.Render("Signed out"))
	if target != "" {
		fmt.Fprintln(a.out, mutedStyle.Render("Next: sawactl login"))
	}
	return nil
}

func (a *app) whoami(cmd *cobra.Command) error {
	snap := a.session(nil).Mount(cmd.Context())
	if snap.State != domain.SessionAuthenticated || snap.User == nil {
		fmt.Fprintln(a.out, errorStyle.Render("Not signed in"))
		return logicv1.ErrNotAuthenticated
	}
	printUser(a, snap.User)
	return nil
}

func printUser(a *app, u *domain.User) {
	fmt.Fprintln(a.out, titleStyle.Render(u.Name))
	fmt.Fprintf(a.out, "%s %s\n", mutedStyle.Render("phone"), u.Phone)
	if u.Role != "" {
		fmt.Fprintf(a.out, "%s %s\n", mutedStyle.Render("role "), u.Role)
	}
}
