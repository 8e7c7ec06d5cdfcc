package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sandeepkv93/ai-saas-backend/internal/domain"
	"github.com/sandeepkv93/ai-saas-backend/internal/http/response"
	"github.com/sandeepkv93/ai-saas-backend/internal/observability"
	"github.com/sandeepkv93/ai-saas-backend/internal/repository"
	"github.com/sandeepkv93/ai-saas-backend/internal/security"
)

type contextKey string

const (
	UserContextKey contextKey = "user"
)

// UserLookup is the slice of the credential store the session gate needs.
type UserLookup interface {
	FindByID(ctx context.Context, id uint) (*domain.User, error)
}

// AuthMiddleware gates a route on a valid bearer access token whose subject
// still exists. The user is re-read on every request and attached to the
// context as a sanitized view.
func AuthMiddleware(jwtMgr *security.JWTManager, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := security.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				observability.RecordAccessTokenValidation(r.Context(), "missing", "none")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Not authorized, no token provided", nil)
				return
			}
			claims, err := jwtMgr.VerifyAccessToken(raw)
			if err != nil {
				observability.RecordAccessTokenValidation(r.Context(), "invalid", "bearer")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Not authorized, invalid token", nil)
				return
			}
			user, err := users.FindByID(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, repository.ErrUserNotFound) {
					observability.RecordAccessTokenValidation(r.Context(), "user_missing", "bearer")
					response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "User not found", nil)
					return
				}
				slog.ErrorContext(r.Context(), "session user lookup failed", "user_id", claims.UserID, "error", err)
				observability.CaptureError(r, err)
				response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "Server error", nil)
				return
			}
			observability.RecordAccessTokenValidation(r.Context(), "valid", "bearer")
			ctx := context.WithValue(r.Context(), UserContextKey, user.View())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func UserFromContext(ctx context.Context) (domain.UserView, bool) {
	u, ok := ctx.Value(UserContextKey).(domain.UserView)
	return u, ok
}
