package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	pkgzerolog "github.com/duynhne/pkg/logger/zerolog"
	"github.com/duynhne/sawa-admin/internal/backend"
	"github.com/duynhne/sawa-admin/internal/core/repository"
	logicv1 "github.com/duynhne/sawa-admin/internal/logic/v1"
	"github.com/duynhne/sawa-admin/internal/tokenstore"
)

// clientScope is the local-storage scope of the terminal client.
const clientScope = "sawactl"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "sawactl",
	Short: "Syria Go admin console from the terminal",
	Long: `sawactl signs staff members in to the Syria Go admin console and
streams console notifications to the terminal.

It keeps its session in ~/.sawactl: the token cookie in cookies.json and the
local-storage mirror in storage.json, exactly as a browser would.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.sawactl/config.yaml)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(notificationsCmd)
}

// ExecuteContext runs the root command.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// app is what every command works with.
type app struct {
	cfg     *Config
	out     io.Writer
	api     *backend.Client
	jar     *tokenstore.FileCookieJar
	storage *repository.FileLocalStorage
	tokens  *tokenstore.Store
}

func newApp(cfg *Config, out io.Writer) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	api, err := backend.NewClient(cfg.API, &http.Client{Timeout: cfg.timeout()})
	if err != nil {
		return nil, err
	}

	jar := tokenstore.NewFileCookieJar(filepath.Join(cfg.StateDir, "cookies.json"))
	storage := repository.NewFileLocalStorage(filepath.Join(cfg.StateDir, "storage.json"))
	tokens := tokenstore.New(
		tokenstore.NewCookieSource(jar, tokenstore.CookieOptions{HTTPOnly: true}),
		tokenstore.NewLocalSource(storage, clientScope),
	)

	return &app{cfg: cfg, out: out, api: api, jar: jar, storage: storage, tokens: tokens}, nil
}

// session builds a provider over the on-disk token store.
func (a *app) session(nav logicv1.Navigator) *logicv1.SessionProvider {
	opts := []logicv1.SessionOption{logicv1.WithCookieDays(a.cfg.CookieDays)}
	if nav != nil {
		opts = append(opts, logicv1.WithNavigator(nav))
	}
	return logicv1.NewSessionProvider(a.api, a.tokens, opts...)
}

// loadApp reads the configuration and sets up logging for cmd.
func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	pkgzerolog.Setup(cfg.LogLevel)
	log.Logger = log.Logger.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})
	zerolog.DefaultContextLogger = &log.Logger
	return newApp(cfg, cmd.OutOrStdout())
}
