package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrMissingTokens = errors.New("oauth callback is missing tokens")

type Config struct {
	// BaseURL is the API root, e.g. http://localhost:3000/api.
	BaseURL   string
	Base      http.RoundTripper
	Tokens    TokenStore
	State     *State
	Notifier  Notifier
	Navigator Navigator
	Timeout   time.Duration
	Now       func() time.Time
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authPayload struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Controller drives the auth endpoints and owns the client-side session.
type Controller struct {
	baseURL   string
	client    *http.Client
	tokens    TokenStore
	state     *State
	notifier  Notifier
	navigator Navigator
	now       func() time.Time
}

func NewController(cfg Config) (*Controller, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", cfg.BaseURL)
	}
	c := &Controller{
		baseURL:   base,
		tokens:    cfg.Tokens,
		state:     cfg.State,
		notifier:  cfg.Notifier,
		navigator: cfg.Navigator,
		now:       cfg.Now,
	}
	if c.tokens == nil {
		c.tokens = NewMemoryTokenStore()
	}
	if c.state == nil {
		c.state = NewState(nil)
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}
	if c.navigator == nil {
		c.navigator = nopNavigator{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	baseRT := cfg.Base
	if baseRT == nil {
		baseRT = http.DefaultTransport
	}
	c.client = &http.Client{
		Timeout: timeout,
		Transport: &Transport{
			Base:       baseRT,
			Tokens:     c.tokens,
			State:      c.state,
			RefreshURL: base + "/auth/refresh-token",
			Refresh:    &http.Client{Timeout: timeout, Transport: baseRT},
			Notifier:   c.notifier,
			Navigator:  c.navigator,
		},
	}
	return c, nil
}

// Client returns the intercepted client for calls to other API routes.
func (c *Controller) Client() *http.Client { return c.client }

func (c *Controller) State() *State { return c.state }

func (c *Controller) Tokens() TokenStore { return c.tokens }

func (c *Controller) Register(ctx context.Context, in RegisterInput) (User, error) {
	var out authPayload
	if err := c.do(WithoutRefresh(ctx), http.MethodPost, "/auth/register", in, &out); err != nil {
		return User{}, err
	}
	if err := c.establish(out); err != nil {
		return User{}, err
	}
	c.notifier.Notify(NoticeSuccess, "Registration successful!")
	return out.User, nil
}

func (c *Controller) Login(ctx context.Context, email, password string) (User, error) {
	body := map[string]string{"email": email, "password": password}
	var out authPayload
	if err := c.do(WithoutRefresh(ctx), http.MethodPost, "/auth/login", body, &out); err != nil {
		return User{}, err
	}
	if err := c.establish(out); err != nil {
		return User{}, err
	}
	c.notifier.Notify(NoticeSuccess, "Login successful!")
	return out.User, nil
}

// Logout revokes the current refresh token when one is held. Local state
// is cleared even when the server call fails.
func (c *Controller) Logout(ctx context.Context) error {
	tokens, err := c.tokens.Tokens()
	if err != nil {
		return err
	}
	var callErr error
	if tokens.RefreshToken != "" {
		callErr = c.do(WithoutRefresh(ctx), http.MethodPost, "/auth/logout",
			map[string]string{"refreshToken": tokens.RefreshToken}, nil)
		if callErr != nil {
			slog.WarnContext(ctx, "logout request failed", "error", callErr.Error())
		}
	}
	if err := c.teardown(); err != nil {
		return err
	}
	if callErr == nil {
		c.notifier.Notify(NoticeSuccess, "Logged out successfully")
	}
	return callErr
}

// LogoutAll revokes every session of the user. Local state is kept when
// the call fails.
func (c *Controller) LogoutAll(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/auth/logout-all", nil, nil); err != nil {
		return err
	}
	if err := c.teardown(); err != nil {
		return err
	}
	c.notifier.Notify(NoticeSuccess, "Logged out from all devices")
	return nil
}

// LoadUser refreshes the cached profile. A missing or locally expired
// access token resets the state without a network call.
func (c *Controller) LoadUser(ctx context.Context) (*User, error) {
	tokens, err := c.tokens.Tokens()
	if err != nil {
		return nil, err
	}
	if tokens.AccessToken == "" || AccessTokenExpired(tokens.AccessToken, c.now()) {
		c.state.Reset()
		return nil, nil
	}
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		_ = c.tokens.Clear()
		c.state.Reset()
		return nil, err
	}
	c.state.SetUser(out.User)
	return &out.User, nil
}

type UserStats struct {
	TotalCreations   int64 `json:"totalCreations"`
	CreditsUsed      int64 `json:"creditsUsed"`
	CreditsRemaining int64 `json:"creditsRemaining"`
	ToolsUsed        int64 `json:"toolsUsed"`
}

// Stats reads /user/stats through the refreshing client, so an expired
// access token is renewed once and the call replayed.
func (c *Controller) Stats(ctx context.Context) (*UserStats, error) {
	var out struct {
		Stats UserStats `json:"stats"`
	}
	if err := c.do(ctx, http.MethodGet, "/user/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out.Stats, nil
}

// HandleOAuthCallback adopts the pair delivered on the client callback URL.
func (c *Controller) HandleOAuthCallback(ctx context.Context, accessToken, refreshToken string) (*User, error) {
	if accessToken == "" || refreshToken == "" {
		c.navigator.Navigate(LoginPath + "?error=auth_failed")
		return nil, ErrMissingTokens
	}
	if err := c.tokens.SetTokens(accessToken, refreshToken); err != nil {
		return nil, err
	}
	user, err := c.LoadUser(ctx)
	if err != nil {
		return nil, err
	}
	c.notifier.Notify(NoticeSuccess, "Login successful!")
	return user, nil
}

func (c *Controller) GoogleLoginURL() string {
	return c.baseURL + "/auth/google"
}

func (c *Controller) establish(out authPayload) error {
	if out.AccessToken == "" || out.RefreshToken == "" {
		return errors.New("auth response carried no tokens")
	}
	if err := c.tokens.SetTokens(out.AccessToken, out.RefreshToken); err != nil {
		return err
	}
	c.state.SetUser(out.User)
	return nil
}

func (c *Controller) teardown() error {
	err := c.tokens.Clear()
	c.state.Reset()
	return err
}

func (c *Controller) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeEnvelope(resp, out)
}
