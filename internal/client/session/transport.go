package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrSessionExpired is returned for a request whose 401 could not be
// recovered by a refresh. The client is fully logged out when it surfaces.
var ErrSessionExpired = errors.New("session expired")

type retriedKey struct{}

type skipRefreshKey struct{}

// WithoutRefresh marks ctx so a 401 is returned to the caller untouched.
// Credential endpoints use it so a wrong password is not read as expiry.
func WithoutRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipRefreshKey{}, true)
}

func retried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey{}).(bool)
	return v
}

func refreshSkipped(ctx context.Context) bool {
	v, _ := ctx.Value(skipRefreshKey{}).(bool)
	return v
}

// Transport attaches the access token and runs the refresh-on-401
// protocol: at most one refresh and one replay per request.
type Transport struct {
	Base       http.RoundTripper
	Tokens     TokenStore
	State      *State
	RefreshURL string
	// Refresh performs the refresh call. It must not route through this
	// Transport.
	Refresh   *http.Client
	Notifier  Notifier
	Navigator Navigator
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	out, err := replayable(req)
	if err != nil {
		return nil, err
	}
	tokens, err := t.Tokens.Tokens()
	if err != nil {
		return nil, err
	}
	if tokens.AccessToken != "" && out.Header.Get("Authorization") == "" {
		out.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	}

	resp, err := t.base().RoundTrip(out)
	if err != nil {
		return nil, err
	}
	ctx := req.Context()
	if resp.StatusCode != http.StatusUnauthorized || retried(ctx) || refreshSkipped(ctx) {
		return resp, nil
	}
	drain(resp)

	ctx = context.WithValue(ctx, retriedKey{}, true)
	tokens, err = t.Tokens.Tokens()
	if err != nil {
		return nil, err
	}
	if tokens.RefreshToken == "" {
		t.expire()
		return nil, fmt.Errorf("%w: no refresh token", ErrSessionExpired)
	}

	access, err := t.refresh(ctx, tokens.RefreshToken)
	if err != nil {
		t.expire()
		return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	if err := t.Tokens.SetTokens(access, tokens.RefreshToken); err != nil {
		return nil, err
	}

	replay := out.Clone(ctx)
	if out.GetBody != nil {
		body, err := out.GetBody()
		if err != nil {
			return nil, err
		}
		replay.Body = body
	}
	replay.Header.Set("Authorization", "Bearer "+access)
	return t.base().RoundTrip(replay)
}

func (t *Transport) refresh(ctx context.Context, refreshToken string) (string, error) {
	payload, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.RefreshURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := t.Refresh
	if client == nil {
		client = &http.Client{Transport: t.base()}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var data struct {
		AccessToken string `json:"accessToken"`
	}
	if err := decodeEnvelope(resp, &data); err != nil {
		return "", err
	}
	if data.AccessToken == "" {
		return "", errors.New("refresh response carried no access token")
	}
	return data.AccessToken, nil
}

// expire tears the session down completely.
func (t *Transport) expire() {
	_ = t.Tokens.Clear()
	if t.State != nil {
		t.State.Reset()
	}
	t.notifier().Notify(NoticeError, SessionExpiredMessage)
	t.navigator().Navigate(LoginPath)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) notifier() Notifier {
	if t.Notifier != nil {
		return t.Notifier
	}
	return nopNotifier{}
}

func (t *Transport) navigator() Navigator {
	if t.Navigator != nil {
		return t.Navigator
	}
	return nopNavigator{}
}

// replayable clones req and guarantees the clone has a GetBody.
func replayable(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return out, nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	out.Body, _ = out.GetBody()
	out.ContentLength = int64(len(data))
	return out, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// APIError is a non-success envelope from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// decodeEnvelope unwraps data into out, or returns an *APIError.
func decodeEnvelope(resp *http.Response, out any) error {
	var env envelope
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
		}
	}
	if resp.StatusCode >= 300 || !env.Success {
		apiErr := &APIError{Status: resp.StatusCode, Message: env.Message}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			if apiErr.Message == "" {
				apiErr.Message = env.Error.Message
			}
		}
		return apiErr
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}
