package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrEmailTaken         = errors.New("user already exists with this email")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUseOAuthLogin      = errors.New("account must sign in with google")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailNotVerified   = errors.New("google email not verified")
)

// Refresh failures all wrap ErrUnauthorized; the distinction is for logs only.
var (
	ErrRefreshTokenRequired = fmt.Errorf("%w: refresh token required", ErrUnauthorized)
	ErrInvalidRefreshToken  = fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
	ErrRefreshTokenRevoked  = fmt.Errorf("%w: refresh token not found", ErrUnauthorized)
	ErrRefreshTokenExpired  = fmt.Errorf("%w: refresh token expired", ErrUnauthorized)
)

// RefreshFailureReason maps a refresh error to a stable audit reason.
func RefreshFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrRefreshTokenRequired):
		return "missing_token"
	case errors.Is(err, ErrInvalidRefreshToken):
		return "invalid_token"
	case errors.Is(err, ErrRefreshTokenRevoked):
		return "not_found"
	case errors.Is(err, ErrRefreshTokenExpired):
		return "expired"
	case err == nil:
		return "none"
	default:
		return "internal_error"
	}
}
