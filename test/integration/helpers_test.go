package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sandeepkv93/ai-saas-backend/internal/config"
	"github.com/sandeepkv93/ai-saas-backend/internal/database"
	"github.com/sandeepkv93/ai-saas-backend/internal/http/handler"
	"github.com/sandeepkv93/ai-saas-backend/internal/http/router"
	"github.com/sandeepkv93/ai-saas-backend/internal/repository"
	"github.com/sandeepkv93/ai-saas-backend/internal/security"
	"github.com/sandeepkv93/ai-saas-backend/internal/service"
)

const (
	testJWTSecret        = "integration-secret-0123456789abcdef"
	oauthStateSigningKey = "0123456789abcdef0123456789abcdef"
	testClientURL        = "http://client.example"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type authData struct {
	User struct {
		ID         uint   `json:"id"`
		Email      string `json:"email"`
		Name       string `json:"name"`
		Provider   string `json:"provider"`
		IsVerified bool   `json:"isVerified"`
	} `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type serverOptions struct {
	oauthProvider service.OAuthProvider
	generator     service.ContentGenerator
}

type testServer struct {
	URL       string
	DB        *gorm.DB
	JWT       *security.JWTManager
	Users     repository.UserRepository
	Tokens    repository.RefreshTokenRepository
	Generator *fakeGenerator
}

func newAuthTestServer(t *testing.T) (*testServer, *http.Client) {
	return newAuthTestServerWithOptions(t, serverOptions{})
}

func newAuthTestServerWithOptions(t *testing.T, opts serverOptions) (*testServer, *http.Client) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.OpenDialect(config.DriverSQLite, dsn, logger.Silent)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(context.Background(), db, config.DriverSQLite, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	jwtMgr := security.NewJWTManager("ai-saas-backend", "ai-saas-client", testJWTSecret, 15*time.Minute, 7*24*time.Hour)
	users := repository.NewUserRepository(db)
	refreshTokens := repository.NewRefreshTokenRepository(db)
	creations := repository.NewCreationRepository(db)
	tokenSvc := service.NewTokenService(jwtMgr, refreshTokens)
	authSvc := service.NewAuthService(users, tokenSvc)
	oauthSvc := service.NewOAuthService(opts.oauthProvider, users, tokenSvc)

	gen := &fakeGenerator{}
	var generator service.ContentGenerator = gen
	if opts.generator != nil {
		generator = opts.generator
	}
	content := service.NewContentService(generator, creations, 100)

	h := router.NewRouter(router.Dependencies{
		AuthHandler: handler.NewAuthHandler(authSvc, oauthSvc, handler.AuthHandlerOptions{
			ClientURL: testClientURL,
			StateKey:  []byte(oauthStateSigningKey),
			StateTTL:  5 * time.Minute,
		}),
		AIHandler:        handler.NewAIHandler(content),
		UserHandler:      handler.NewUserHandler(content),
		JWTManager:       jwtMgr,
		Users:            users,
		CORSOrigins:      []string{testClientURL},
		AuthRateLimitRPM: 10000,
		APIRateLimitRPM:  10000,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		srv.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	client := &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testServer{URL: srv.URL, DB: db, JWT: jwtMgr, Users: users, Tokens: refreshTokens, Generator: gen}, client
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, apiEnvelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var env apiEnvelope
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode envelope %q: %v", raw, err)
		}
	}
	return resp, env
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decodeData(t *testing.T, env apiEnvelope, out any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

func registerUser(t *testing.T, ts *testServer, client *http.Client, email string) authData {
	t.Helper()
	resp, env := doJSON(t, client, http.MethodPost, ts.URL+"/api/auth/register", map[string]string{
		"name":     "User " + email,
		"email":    email,
		"password": "Valid#Pass1234",
	}, nil)
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("register %s: status=%d message=%q", email, resp.StatusCode, env.Message)
	}
	var out authData
	decodeData(t, env, &out)
	return out
}

func refreshRowCount(t *testing.T, db *gorm.DB, userID uint) int64 {
	t.Helper()
	var n int64
	if err := db.Table("refresh_tokens").Where("user_id = ?", userID).Count(&n).Error; err != nil {
		t.Fatalf("count refresh tokens: %v", err)
	}
	return n
}

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	err     error
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string, _ float64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if strings.Contains(prompt, "title") {
		return "1. First Title\n2. Second Title\n3. Third Title", nil
	}
	return "An article about integration testing.", nil
}

type oauthProviderFuncStub struct {
	authCodeURLFn func(state string) string
	exchangeFn    func(ctx context.Context, code string) (*oauth2.Token, error)
	userInfoFn    func(ctx context.Context, token *oauth2.Token) (*service.OAuthUserInfo, error)
}

func (s oauthProviderFuncStub) AuthCodeURL(state string) string {
	if s.authCodeURLFn != nil {
		return s.authCodeURLFn(state)
	}
	return "https://accounts.example/oauth?state=" + state
}

func (s oauthProviderFuncStub) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if s.exchangeFn != nil {
		return s.exchangeFn(ctx, code)
	}
	return nil, errors.New("exchange not configured")
}

func (s oauthProviderFuncStub) FetchUserInfo(ctx context.Context, token *oauth2.Token) (*service.OAuthUserInfo, error) {
	if s.userInfoFn != nil {
		return s.userInfoFn(ctx, token)
	}
	return nil, errors.New("userinfo not configured")
}
