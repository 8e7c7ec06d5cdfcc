package authctl

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/ai-saas-backend/internal/client/session"
	"github.com/sandeepkv93/ai-saas-backend/internal/tools/common"
	"github.com/sandeepkv93/ai-saas-backend/internal/tools/ui"
)

type options struct {
	baseURL  string
	stateDir string
	timeout  time.Duration
	ci       bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "authctl", Short: "Drive the client session against a running API"}
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", envOr("AUTHCTL_BASE_URL", "http://localhost:3000/api"), "API base URL")
	cmd.PersistentFlags().StringVar(&opts.stateDir, "state-dir", envOr("AUTHCTL_STATE_DIR", defaultStateDir()), "directory holding tokens and session state")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "per-command timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")

	cmd.AddCommand(
		newRegisterCommand(opts),
		newLoginCommand(opts),
		newLogoutCommand(opts),
		newLogoutAllCommand(opts),
		newMeCommand(opts),
		newStatsCommand(opts),
		newOAuthCallbackCommand(opts),
		newGoogleURLCommand(opts),
		newStatusCommand(opts),
	)
	return cmd
}

func newRegisterCommand(opts *options) *cobra.Command {
	in := session.RegisterInput{}
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a local account and store its tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "authctl register", func(ctx context.Context, c *client) ([]string, error) {
				user, err := c.ctl.Register(ctx, in)
				if err != nil {
					return nil, err
				}
				return []string{describeUser(user)}, nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "account email")
	cmd.Flags().StringVar(&in.Password, "password", os.Getenv("AUTHCTL_PASSWORD"), "account password")
	return cmd
}

func newLoginCommand(opts *options) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "authctl login", func(ctx context.Context, c *client) ([]string, error) {
				user, err := c.ctl.Login(ctx, email, password)
				if err != nil {
					return nil, err
				}
				return []string{describeUser(user)}, nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", os.Getenv("AUTHCTL_PASSWORD"), "account password")
	return cmd
}

func newLogoutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke this device's refresh token and clear local state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "authctl logout", func(ctx context.Context, c *client) ([]string, error) {
				return nil, c.ctl.Logout(ctx)
			})
		},
	}
}

func newLogoutAllCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout-all",
		Short: "Revoke every session of the current user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "authctl logout-all", func(ctx context.Context, c *client) ([]string, error) {
				return nil, c.ctl.LogoutAll(ctx)
			})
		},
	}
}

func newMeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Load the current user; a locally expired access token reads as not authenticated",
		Long: "Load the current user from /auth/me. An access token that has already expired\n" +
			"resets the local session without a network call. Run stats to renew it with\n" +
			"the stored refresh token.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "authctl me", func(ctx context.Context, c *client) ([]string, error) {
				user, err := c.ctl.LoadUser(ctx)
				if err != nil {
					return nil, err
				}
				if user == nil {
					return []string{"not authenticated"}, nil
				}
				return []string{describeUser(*user)}, nil
			})
		},
	}
}

func newStatsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show creation stats, refreshing an expired access token once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "authctl stats", userStats)
		},
	}
}

// userStats goes through the refreshing client and then reloads the
// profile so the local session reflects the renewed token.
func userStats(ctx context.Context, c *client) ([]string, error) {
	stats, err := c.ctl.Stats(ctx)
	if err != nil {
		return nil, err
	}
	details := []string{fmt.Sprintf("creations=%d tools=%d credits used=%d remaining=%d",
		stats.TotalCreations, stats.ToolsUsed, stats.CreditsUsed, stats.CreditsRemaining)}
	user, err := c.ctl.LoadUser(ctx)
	if err != nil {
		return nil, err
	}
	if user != nil {
		details = append(details, describeUser(*user))
	}
	return details, nil
}

func newOAuthCallbackCommand(opts *options) *cobra.Command {
	var access, refresh, callbackURL string
	cmd := &cobra.Command{
		Use:   "oauth-callback",
		Short: "Adopt the tokens delivered on the client OAuth callback URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "authctl oauth-callback", func(ctx context.Context, c *client) ([]string, error) {
				a, r, err := callbackTokens(callbackURL, access, refresh)
				if err != nil {
					return nil, err
				}
				user, err := c.ctl.HandleOAuthCallback(ctx, a, r)
				if err != nil {
					return nil, err
				}
				if user == nil {
					return []string{"not authenticated"}, nil
				}
				return []string{describeUser(*user)}, nil
			})
		},
	}
	cmd.Flags().StringVar(&callbackURL, "url", "", "full callback URL copied from the browser")
	cmd.Flags().StringVar(&access, "access-token", "", "access token")
	cmd.Flags().StringVar(&refresh, "refresh-token", "", "refresh token")
	return cmd
}

func newGoogleURLCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "google-url",
		Short: "Print the URL that starts Google sign-in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "authctl google-url", func(ctx context.Context, c *client) ([]string, error) {
				return []string{c.ctl.GoogleLoginURL()}, nil
			})
		},
	}
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the locally cached session without calling the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts, "authctl status", func(ctx context.Context, c *client) ([]string, error) {
				return status(c, time.Now())
			})
		},
	}
}

type client struct {
	ctl   *session.Controller
	mu    sync.Mutex
	notes []string
}

func (c *client) Notify(kind session.NoticeKind, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, fmt.Sprintf("[%s] %s", kind, message))
}

func (c *client) Navigate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, "navigate "+path)
}

func (c *client) drainNotes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.notes
	c.notes = nil
	return out
}

func newClient(opts *options) (*client, error) {
	c := &client{}
	ctl, err := session.NewController(session.Config{
		BaseURL:   opts.baseURL,
		Tokens:    session.NewFileTokenStore(filepath.Join(opts.stateDir, "tokens.json")),
		State:     session.NewState(session.NewFilePersister(filepath.Join(opts.stateDir, "session.json"))),
		Notifier:  c,
		Navigator: c,
		Timeout:   opts.timeout,
	})
	if err != nil {
		return nil, err
	}
	c.ctl = ctl
	return c, nil
}

func execute(opts *options, title string, fn func(context.Context, *client) ([]string, error)) error {
	c, err := newClient(opts)
	if err != nil {
		return err
	}
	details, err := run(opts, title, func(ctx context.Context) ([]string, error) {
		details, err := fn(ctx, c)
		return append(details, c.drainNotes()...), err
	})
	if opts.ci {
		common.PrintCIResult(err == nil, title, details, err)
	}
	if err != nil {
		os.Exit(4)
	}
	return nil
}

func run(opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
		defer cancel()
		return fn(ctx)
	}
	return ui.Run(title, fn)
}

func status(c *client, now time.Time) ([]string, error) {
	snap := c.ctl.State().Snapshot()
	tokens, err := c.ctl.Tokens().Tokens()
	if err != nil {
		return nil, err
	}
	details := []string{fmt.Sprintf("authenticated=%t", snap.IsAuthenticated)}
	if snap.User != nil {
		details = append(details, describeUser(*snap.User))
	}
	switch {
	case tokens.AccessToken == "":
		details = append(details, "access token: none")
	case session.AccessTokenExpired(tokens.AccessToken, now):
		details = append(details, "access token: expired")
	default:
		details = append(details, "access token: valid")
	}
	details = append(details, fmt.Sprintf("refresh token: %t", tokens.RefreshToken != ""))
	return details, nil
}

func callbackTokens(rawURL, access, refresh string) (string, string, error) {
	if rawURL == "" {
		return access, refresh, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse callback url: %w", err)
	}
	q := u.Query()
	if q.Get("error") != "" {
		return "", "", errors.New("oauth login failed: " + q.Get("error"))
	}
	return q.Get("accessToken"), q.Get("refreshToken"), nil
}

func describeUser(u session.User) string {
	return fmt.Sprintf("user id=%d email=%s name=%q provider=%s verified=%t", u.ID, u.Email, u.Name, u.Provider, u.IsVerified)
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "authctl")
	}
	return ".authctl"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
