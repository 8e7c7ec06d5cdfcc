package handler

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/sandeepkv93/ai-saas-backend/internal/http/middleware"
	"github.com/sandeepkv93/ai-saas-backend/internal/http/response"
	"github.com/sandeepkv93/ai-saas-backend/internal/observability"
	"github.com/sandeepkv93/ai-saas-backend/internal/security"
	"github.com/sandeepkv93/ai-saas-backend/internal/service"
)

const (
	oauthStateCookie = "oauth_state"
	oauthCookiePath  = "/api/auth/google"
)

type AuthHandler struct {
	auth          service.AuthServiceInterface
	oauth         service.OAuthServiceInterface
	clientURL     string
	stateKey      []byte
	stateTTL      time.Duration
	secureCookies bool
	now           func() time.Time
}

type AuthHandlerOptions struct {
	ClientURL     string
	StateKey      []byte
	StateTTL      time.Duration
	SecureCookies bool
}

func NewAuthHandler(auth service.AuthServiceInterface, oauth service.OAuthServiceInterface, opts AuthHandlerOptions) *AuthHandler {
	if opts.StateTTL <= 0 {
		opts.StateTTL = 10 * time.Minute
	}
	return &AuthHandler{
		auth:          auth,
		oauth:         oauth,
		clientURL:     opts.ClientURL,
		stateKey:      opts.StateKey,
		stateTTL:      opts.StateTTL,
		secureCookies: opts.SecureCookies,
		now:           time.Now,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		badJSON(w, r)
		return
	}
	res, err := h.auth.Register(r.Context(), service.RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password})
	switch {
	case err == nil:
		observability.AuditRequest(r, "auth.register", "success", "none", "user_id", res.User.ID)
		response.JSON(w, r, http.StatusCreated, res)
	case errors.Is(err, service.ErrEmailTaken):
		observability.AuditRequest(r, "auth.register", "failure", "conflict")
		response.Error(w, r, http.StatusBadRequest, "CONFLICT", "User already exists with this email", nil)
	case errors.Is(err, service.ErrValidation):
		observability.AuditRequest(r, "auth.register", "failure", "validation")
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Please provide all required fields", nil)
	default:
		observability.AuditRequest(r, "auth.register", "failure", "internal_error")
		internalError(w, r, "register failed", err)
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		badJSON(w, r)
		return
	}
	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		observability.AuditRequest(r, "auth.login", "success", "none", "user_id", res.User.ID)
		response.JSON(w, r, http.StatusOK, res)
	case errors.Is(err, service.ErrValidation):
		observability.AuditRequest(r, "auth.login", "failure", "validation")
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Please provide email and password", nil)
	case errors.Is(err, service.ErrUseOAuthLogin):
		observability.AuditRequest(r, "auth.login", "failure", "oauth_only")
		unauthorized(w, r, "Please login with Google")
	case errors.Is(err, service.ErrInvalidCredentials):
		observability.AuditRequest(r, "auth.login", "failure", "invalid_credentials")
		unauthorized(w, r, "Invalid credentials")
	default:
		observability.AuditRequest(r, "auth.login", "failure", "internal_error")
		internalError(w, r, "login failed", err)
	}
}

// Logout needs no access token: a client whose access token has expired must
// still be able to drop its refresh token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		badJSON(w, r)
		return
	}
	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		internalError(w, r, "logout failed", err)
		return
	}
	observability.AuditRequest(r, "auth.logout", "success", "none")
	response.Message(w, r, http.StatusOK, "Logged out successfully")
}

func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	n, err := h.auth.LogoutAll(r.Context(), userID)
	if err != nil {
		internalError(w, r, "logout all failed", err)
		return
	}
	observability.AuditRequest(r, "auth.logout_all", "success", "none", "user_id", userID, "revoked", n)
	response.Message(w, r, http.StatusOK, "Logged out from all devices")
}

func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		badJSON(w, r)
		return
	}
	access, userID, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		reason := service.RefreshFailureReason(err)
		observability.AuditRequest(r, "auth.refresh", "failure", reason, "user_id", userID)
		if errors.Is(err, service.ErrUnauthorized) {
			unauthorized(w, r, "Invalid or expired refresh token")
			return
		}
		internalError(w, r, "refresh failed", err)
		return
	}
	observability.AuditRequest(r, "auth.refresh", "success", "none", "user_id", userID)
	response.JSON(w, r, http.StatusOK, map[string]string{"accessToken": access})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		unauthorized(w, r, "Not authorized, no token provided")
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"user": user})
}

func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil || !h.oauth.Enabled() {
		response.Error(w, r, http.StatusServiceUnavailable, "OAUTH_DISABLED", "Google login is not configured", nil)
		return
	}
	state, err := security.NewState()
	if err != nil {
		internalError(w, r, "generate oauth state", err)
		return
	}
	expiresAt := h.now().Add(h.stateTTL)
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    security.SignState(state, expiresAt, h.stateKey),
		Path:     oauthCookiePath,
		Expires:  expiresAt,
		MaxAge:   int(h.stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.oauth.GoogleLoginURL(state), http.StatusFound)
}

// GoogleCallback always answers with a redirect into the client app.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil || !h.oauth.Enabled() {
		h.redirectLoginError(w, r, "oauth_disabled")
		return
	}
	cookie, err := r.Cookie(oauthStateCookie)
	h.clearStateCookie(w)
	q := r.URL.Query()
	if err != nil || security.VerifyState(cookie.Value, q.Get("state"), h.now(), h.stateKey) != nil {
		observability.AuditRequest(r, "auth.google.callback", "failure", "invalid_state")
		h.redirectLoginError(w, r, "auth_failed")
		return
	}
	if q.Get("error") != "" || q.Get("code") == "" {
		observability.AuditRequest(r, "auth.google.callback", "failure", "provider_denied")
		h.redirectLoginError(w, r, "auth_failed")
		return
	}

	res, err := h.oauth.HandleGoogleCallback(r.Context(), q.Get("code"))
	if err != nil {
		observability.AuditRequest(r, "auth.google.callback", "failure", service.OAuthFailureReason(err))
		h.redirectLoginError(w, r, "auth_failed")
		return
	}
	observability.AuditRequest(r, "auth.google.callback", "success", res.Outcome, "user_id", res.User.ID)

	v := url.Values{}
	v.Set("accessToken", res.AccessToken)
	v.Set("refreshToken", res.RefreshToken)
	http.Redirect(w, r, h.clientURL+"/auth/callback?"+v.Encode(), http.StatusFound)
}

func (h *AuthHandler) redirectLoginError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.clientURL+"/login?error="+url.QueryEscape(code), http.StatusFound)
}

func (h *AuthHandler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     oauthCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
