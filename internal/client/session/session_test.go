package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("client-test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func liveToken(t *testing.T, subject string) string {
	return signedToken(t, jwt.RegisteredClaims{Subject: subject, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
}

// fakeAPI serves the auth routes the controller calls. An access token is
// accepted only when it equals validAccess.
type fakeAPI struct {
	mu            sync.Mutex
	validAccess   string
	refreshToken  string
	refreshResult string
	refreshFails  bool
	logoutFails   bool
	calls         map[string]int
	bodies        map[string][]string
	authHeaders   []string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{calls: map[string]int{}, bodies: map[string][]string{}}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeAPI) count(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[path]
}

func (a *fakeAPI) total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.calls {
		n += c
	}
	return n
}

func (a *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	a.mu.Lock()
	a.calls[r.URL.Path]++
	a.bodies[r.URL.Path] = append(a.bodies[r.URL.Path], string(body))
	a.authHeaders = append(a.authHeaders, r.Header.Get("Authorization"))
	validAccess := a.validAccess
	a.mu.Unlock()

	authorized := r.Header.Get("Authorization") == "Bearer "+validAccess && validAccess != ""
	switch r.URL.Path {
	case "/api/auth/login":
		var in map[string]string
		_ = json.Unmarshal(body, &in)
		if in["password"] != "secret" {
			writeEnvelope(w, http.StatusUnauthorized, false, "Invalid credentials", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, true, "", map[string]any{
			"user":         map[string]any{"id": 7, "name": "Ada", "email": in["email"], "provider": "local"},
			"accessToken":  "access-1",
			"refreshToken": "refresh-1",
		})
	case "/api/auth/register":
		writeEnvelope(w, http.StatusCreated, true, "", map[string]any{
			"user":         map[string]any{"id": 8, "name": "Bob", "email": "bob@example.com", "provider": "local"},
			"accessToken":  "access-2",
			"refreshToken": "refresh-2",
		})
	case "/api/auth/refresh-token":
		var in map[string]string
		_ = json.Unmarshal(body, &in)
		a.mu.Lock()
		fails := a.refreshFails || in["refreshToken"] != a.refreshToken
		result := a.refreshResult
		a.mu.Unlock()
		if fails {
			writeEnvelope(w, http.StatusUnauthorized, false, "Invalid or expired refresh token", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, true, "", map[string]string{"accessToken": result})
	case "/api/auth/logout":
		a.mu.Lock()
		fails := a.logoutFails
		a.mu.Unlock()
		if fails {
			writeEnvelope(w, http.StatusInternalServerError, false, "Server error", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, true, "Logged out successfully", nil)
	case "/api/auth/logout-all":
		if !authorized {
			writeEnvelope(w, http.StatusUnauthorized, false, "Not authorized, invalid token", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, true, "Logged out from all devices", nil)
	case "/api/auth/me":
		if !authorized {
			writeEnvelope(w, http.StatusUnauthorized, false, "Not authorized, invalid token", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, true, "", map[string]any{
			"user": map[string]any{"id": 7, "name": "Ada", "email": "ada@example.com", "provider": "google", "isVerified": true},
		})
	case "/api/ai/write-article":
		if !authorized {
			writeEnvelope(w, http.StatusUnauthorized, false, "Not authorized, invalid token", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, true, "", map[string]string{"echo": string(body)})
	default:
		writeEnvelope(w, http.StatusNotFound, false, "Route not found", nil)
	}
}

func writeEnvelope(w http.ResponseWriter, status int, success bool, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": success, "message": message, "data": data})
}

type recorder struct {
	mu       sync.Mutex
	notices  []string
	navigate []string
}

func (r *recorder) Notify(kind NoticeKind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, string(kind)+":"+message)
}

func (r *recorder) Navigate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navigate = append(r.navigate, path)
}

func (r *recorder) sawExpiry() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notices {
		if n == string(NoticeError)+":"+SessionExpiredMessage {
			return true
		}
	}
	return false
}

func newTestController(t *testing.T, srv *httptest.Server) (*Controller, *recorder) {
	t.Helper()
	rec := &recorder{}
	c, err := NewController(Config{
		BaseURL:   srv.URL + "/api",
		Notifier:  rec,
		Navigator: rec,
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return c, rec
}

func TestNewControllerRejectsBadBaseURL(t *testing.T) {
	if _, err := NewController(Config{BaseURL: "not a url"}); err == nil {
		t.Fatal("expected invalid base url error")
	}
}

func TestExpiredAccessTokenRefreshesOnceAndReplays(t *testing.T) {
	api, srv := newFakeAPI(t)
	c, rec := newTestController(t, srv)

	stale := liveToken(t, "7")
	fresh := liveToken(t, "7-fresh")
	api.validAccess = fresh
	api.refreshToken = "refresh-1"
	api.refreshResult = fresh
	if err := c.Tokens().SetTokens(stale, "refresh-1"); err != nil {
		t.Fatalf("seed tokens: %v", err)
	}

	user, err := c.LoadUser(context.Background())
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if user == nil || user.ID != 7 {
		t.Fatalf("unexpected user %#v", user)
	}
	if got := api.count("/api/auth/refresh-token"); got != 1 {
		t.Fatalf("expected exactly one refresh, got %d", got)
	}
	if got := api.count("/api/auth/me"); got != 2 {
		t.Fatalf("expected original request plus one replay, got %d", got)
	}
	tokens, _ := c.Tokens().Tokens()
	if tokens.AccessToken != fresh || tokens.RefreshToken != "refresh-1" {
		t.Fatalf("expected new access and unchanged refresh, got %#v", tokens)
	}
	if !c.State().IsAuthenticated() {
		t.Fatal("expected authenticated state")
	}
	if rec.sawExpiry() {
		t.Fatal("unexpected session-expired notice")
	}
}

func TestRefreshFailureLogsOutCompletely(t *testing.T) {
	api, srv := newFakeAPI(t)
	c, rec := newTestController(t, srv)
	api.validAccess = "never-matches"
	api.refreshToken = "refresh-1"
	api.refreshFails = true
	c.State().SetUser(User{ID: 7})
	_ = c.Tokens().SetTokens(liveToken(t, "7"), "refresh-1")

	_, err := c.LoadUser(context.Background())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if got := api.count("/api/auth/refresh-token"); got != 1 {
		t.Fatalf("expected one refresh attempt, got %d", got)
	}
	if got := api.count("/api/auth/me"); got != 1 {
		t.Fatalf("expected no replay after refresh failure, got %d", got)
	}
	tokens, _ := c.Tokens().Tokens()
	if tokens != (Tokens{}) {
		t.Fatalf("expected cleared tokens, got %#v", tokens)
	}
	if c.State().IsAuthenticated() || c.State().Snapshot().User != nil {
		t.Fatal("expected logged-out state")
	}
	if !rec.sawExpiry() {
		t.Fatal("expected session-expired notice")
	}
	if len(rec.navigate) != 1 || rec.navigate[0] != LoginPath {
		t.Fatalf("expected navigation to login, got %v", rec.navigate)
	}
}

func TestReplayThatStillFailsDoesNotRefreshAgain(t *testing.T) {
	api, srv := newFakeAPI(t)
	c, _ := newTestController(t, srv)
	api.validAccess = "server-never-accepts"
	api.refreshToken = "refresh-1"
	api.refreshResult = liveToken(t, "other")
	_ = c.Tokens().SetTokens(liveToken(t, "7"), "refresh-1")

	_, err := c.LoadUser(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected replayed 401 surfaced as APIError, got %v", err)
	}
	if got := api.count("/api/auth/refresh-token"); got != 1 {
		t.Fatalf("expected one refresh, got %d", got)
	}
	if got := api.count("/api/auth/me"); got != 2 {
		t.Fatalf("expected one replay, got %d", got)
	}
}

func TestMissingRefreshTokenFailsWithoutCallingRefresh(t *testing.T) {
	api, srv := newFakeAPI(t)
	c, rec := newTestController(t, srv)
	api.validAccess = "never-matches"
	_ = c.Tokens().SetTokens(liveToken(t, "7"), "")

	_, err := c.LoadUser(context.Background())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if got := api.count("/api/auth/refresh-token"); got != 0 {
		t.Fatalf("expected no refresh call, got %d", got)
	}
	if !rec.sawExpiry() || len(rec.navigate) != 1 {
		t.Fatalf("expected expiry notice and navigation, got %v %v", rec.notices, rec.navigate)
	}
}

func TestLoadUserWithExpiredTokenSkipsNetwork(t *testing.T) {
	api, srv := newFakeAPI(t)
	c, _ := newTestController(t, srv)
	c.State().SetUser(User{ID: 1})
	expired := signedToken(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))})
	_ = c.Tokens().SetTokens(expired, "refresh-1")

	user, err := c.LoadUser(context.Background())
	if err != nil || user != nil {
		t.Fatalf("expected nil user without error, got %#v %v", user, err)
	}
	if api.total() != 0 {
		t.Fatalf("expected no network calls, got %d", api.total())
	}
	if c.State().IsAuthenticated() {
		t.Fatal("expected unauthenticated state")
	}
}

func TestReplayResendsRequestBody(t *testing.T) {
	api, srv := newFakeAPI(t)
	c, _ := newTestController(t, srv)
	fresh := liveToken(t, "fresh")
	api.validAccess = fresh
	api.refreshToken = "refresh-1"
	api.refreshResult = fresh
	_ = c.Tokens().SetTokens("stale", "refresh-1")

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/ai/write-article", io.NopCloser(strings.NewReader(`{"prompt":"go"}`)))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := c.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after replay, got %d", resp.StatusCode)
	}
	bodies := api.bodies["/api/ai/write-article"]
	if len(bodies) != 2 || bodies[0] != `{"prompt":"go"}` || bodies[1] != bodies[0] {
		t.Fatalf("expected identical body on replay, got %q", bodies)
	}
}

func TestLoginWrongPasswordDoesNotTriggerRefresh(t *testing.T) {
	api, srv := newFakeAPI(t)
	c, rec := newTestController(t, srv)
	_ = c.Tokens().SetTokens("", "refresh-1")

	_, err := c.Login(context.Background(), "ada@example.com", "wrong")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Invalid credentials" {
		t.Fatalf("expected invalid credentials error, got %v", err)
	}
	if api.count("/api/auth/refresh-token") != 0 || rec.sawExpiry() {
		t.Fatal("credential 401 must not be treated as session expiry")
	}
}

func TestLoginAndRegisterEstablishSession(t *testing.T) {
	_, srv := newFakeAPI(t)
	c, rec := newTestController(t, srv)

	user, err := c.Login(context.Background(), "ada@example.com", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != 7 || !c.State().IsAuthenticated() {
		t.Fatalf("expected authenticated user 7, got %#v", user)
	}
	tokens, _ := c.Tokens().Tokens()
	if tokens.AccessToken != "access-1" || tokens.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected tokens %#v", tokens)
	}

	user, err = c.Register(context.Background(), RegisterInput{Name: "Bob", Email: "bob@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if snap := c.State().Snapshot(); snap.User == nil || snap.User.ID != 8 || user.ID != 8 {
		t.Fatalf("unexpected snapshot %#v", snap)
	}
	if len(rec.notices) != 2 || rec.notices[1] != "success:Registration successful!" {
		t.Fatalf("unexpected notices %v", rec.notices)
	}
}

func TestLogoutClearsEvenWhenServerFails(t *testing.T) {
	api, srv := newFakeAPI(t)
	c, _ := newTestController(t, srv)
	api.logoutFails = true
	_ = c.Tokens().SetTokens("access-1", "refresh-1")
	c.State().SetUser(User{ID: 7})

	if err := c.Logout(context.Background()); err == nil {
		t.Fatal("expected server error to be returned")
	}
	if got := api.bodies["/api/auth/logout"]; len(got) != 1 || !strings.Contains(got[0], `"refreshToken":"refresh-1"`) {
		t.Fatalf("expected refresh token posted, got %q", got)
	}
	tokens, _ := c.Tokens().Tokens()
	if tokens != (Tokens{}) || c.State().IsAuthenticated() {
		t.Fatal("expected local session cleared")
	}
}

func TestLogoutWithoutRefreshTokenSkipsServer(t *testing.T) {
	api, srv := newFakeAPI(t)
	c, _ := newTestController(t, srv)
	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if api.total() != 0 {
		t.Fatalf("expected no calls, got %d", api.total())
	}
}

func TestLogoutAllResetsAndExpiresOnRefreshFailure(t *testing.T) {
	api, srv := newFakeAPI(t)
	c, _ := newTestController(t, srv)
	api.validAccess = "access-1"
	_ = c.Tokens().SetTokens("access-1", "refresh-1")
	c.State().SetUser(User{ID: 7})

	if err := c.LogoutAll(context.Background()); err != nil {
		t.Fatalf("logout all: %v", err)
	}
	if c.State().IsAuthenticated() {
		t.Fatal("expected state reset after logout-all")
	}

	api.validAccess = "other"
	api.refreshToken = "refresh-9"
	api.refreshResult = "other"
	_ = c.Tokens().SetTokens("access-1", "refresh-9")
	c.State().SetUser(User{ID: 7})
	api.refreshFails = true
	if err := c.LogoutAll(context.Background()); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected session expiry, got %v", err)
	}
}

func TestHandleOAuthCallback(t *testing.T) {
	api, srv := newFakeAPI(t)
	c, rec := newTestController(t, srv)

	if _, err := c.HandleOAuthCallback(context.Background(), "", "r"); !errors.Is(err, ErrMissingTokens) {
		t.Fatalf("expected ErrMissingTokens, got %v", err)
	}
	if len(rec.navigate) != 1 || rec.navigate[0] != "/login?error=auth_failed" {
		t.Fatalf("expected auth_failed navigation, got %v", rec.navigate)
	}

	access := liveToken(t, "7")
	api.validAccess = access
	user, err := c.HandleOAuthCallback(context.Background(), access, "refresh-g")
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if user == nil || user.Provider != "google" || !c.State().IsAuthenticated() {
		t.Fatalf("unexpected user %#v", user)
	}
	if got := c.GoogleLoginURL(); got != srv.URL+"/api/auth/google" {
		t.Fatalf("google login url=%q", got)
	}
}

func TestAccessTokenExpired(t *testing.T) {
	now := time.Now()
	cases := map[string]struct {
		token string
		want  bool
	}{
		"empty":     {"", true},
		"garbage":   {"not-a-jwt", true},
		"no exp":    {signedToken(t, jwt.RegisteredClaims{Subject: "1"}), false},
		"past":      {signedToken(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Second))}), true},
		"in future": {signedToken(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute))}), false},
	}
	for name, tc := range cases {
		if got := AccessTokenExpired(tc.token, now); got != tc.want {
			t.Fatalf("%s: AccessTokenExpired=%v want %v", name, got, tc.want)
		}
	}
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	store := NewFileTokenStore(path)

	tokens, err := store.Tokens()
	if err != nil || tokens != (Tokens{}) {
		t.Fatalf("expected empty tokens for missing file, got %#v %v", tokens, err)
	}
	if err := store.SetTokens("a", "r"); err != nil {
		t.Fatalf("set tokens: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600, got %o", perm)
	}
	tokens, _ = NewFileTokenStore(path).Tokens()
	if tokens.AccessToken != "a" || tokens.RefreshToken != "r" {
		t.Fatalf("unexpected tokens %#v", tokens)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected file removed, got %v", err)
	}
}

func TestStatePersistsWithoutTokensAndNotifiesSubscribers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	state := NewState(NewFilePersister(path))

	var mu sync.Mutex
	var seen []bool
	unsubscribe := state.Subscribe(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s.IsAuthenticated)
		mu.Unlock()
	})
	state.SetUser(User{ID: 3, Email: "c@example.com"})
	unsubscribe()
	state.Reset()
	state.SetUser(User{ID: 4})

	if len(seen) != 1 || !seen[0] {
		t.Fatalf("expected one notification before unsubscribe, got %v", seen)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if strings.Contains(string(raw), "Token") {
		t.Fatalf("persisted state must not contain tokens: %s", raw)
	}
	restored := NewState(NewFilePersister(path)).Snapshot()
	if !restored.IsAuthenticated || restored.User == nil || restored.User.ID != 4 {
		t.Fatalf("unexpected restored snapshot %#v", restored)
	}
}

func TestParallelUnauthorizedRequestsRefreshAtMostOnceEach(t *testing.T) {
	api, srv := newFakeAPI(t)
	c, rec := newTestController(t, srv)
	fresh := liveToken(t, "7-fresh")
	api.validAccess = fresh
	api.refreshToken = "refresh-1"
	api.refreshResult = fresh
	_ = c.Tokens().SetTokens(liveToken(t, "7"), "refresh-1")

	const n = 8
	statuses := make([]int, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/auth/me", nil)
			if err != nil {
				errs[i] = err
				return
			}
			resp, err := c.Client().Do(req)
			if err != nil {
				errs[i] = err
				return
			}
			drain(resp)
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil || statuses[i] != http.StatusOK {
			t.Fatalf("request %d: status %d err %v", i, statuses[i], errs[i])
		}
	}
	refreshes := api.count("/api/auth/refresh-token")
	if refreshes < 1 || refreshes > n {
		t.Fatalf("expected between 1 and %d refreshes, got %d", n, refreshes)
	}
	// Every 401 is followed by exactly one replay, never a second refresh.
	if got := api.count("/api/auth/me"); got != n+refreshes {
		t.Fatalf("expected %d requests plus %d replays, got %d", n, refreshes, got)
	}
	if rec.sawExpiry() {
		t.Fatal("unexpected session-expired notice")
	}
}
