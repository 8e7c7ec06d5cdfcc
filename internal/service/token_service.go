package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sandeepkv93/ai-saas-backend/internal/repository"
	"github.com/sandeepkv93/ai-saas-backend/internal/security"
)

type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// TokenService mints token pairs and owns the refresh-token revocation store.
// Refresh tokens are not rotated: the same token renews access until it
// expires or is deleted.
type TokenService struct {
	jwtMgr  *security.JWTManager
	tokens  repository.RefreshTokenRepository
	revoked RevocationCache
	now     func() time.Time
}

func NewTokenService(jwtMgr *security.JWTManager, tokens repository.RefreshTokenRepository) *TokenService {
	return &TokenService{jwtMgr: jwtMgr, tokens: tokens, revoked: NoopRevocationCache{}, now: time.Now}
}

// WithRevocationCache short-circuits refreshes of tokens already seen dead.
func (s *TokenService) WithRevocationCache(c RevocationCache) *TokenService {
	if c != nil {
		s.revoked = c
	}
	return s
}

func (s *TokenService) IssuePair(ctx context.Context, userID uint) (*TokenPair, error) {
	access, err := s.jwtMgr.IssueAccessToken(userID)
	if err != nil {
		return nil, err
	}
	refresh, expiresAt, err := s.jwtMgr.IssueRefreshToken(userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.tokens.Create(ctx, userID, refresh, expiresAt); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, RefreshExpiresAt: expiresAt}, nil
}

// RefreshAccessToken returns a fresh access token when raw verifies and still
// has a live row for its subject. A row found past its stored expiry is
// deleted.
func (s *TokenService) RefreshAccessToken(ctx context.Context, raw string) (string, uint, error) {
	if raw == "" {
		return "", 0, ErrRefreshTokenRequired
	}
	claims, err := s.jwtMgr.VerifyRefreshToken(raw)
	if err != nil {
		return "", 0, ErrInvalidRefreshToken
	}
	if dead, err := s.revoked.IsRevoked(ctx, raw); err != nil {
		slog.WarnContext(ctx, "revocation cache lookup failed", "error", err.Error())
	} else if dead {
		return "", claims.UserID, ErrRefreshTokenRevoked
	}
	row, err := s.tokens.FindByTokenForUser(ctx, claims.UserID, raw)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			s.markRevoked(ctx, raw, claims)
			return "", claims.UserID, ErrRefreshTokenRevoked
		}
		return "", claims.UserID, fmt.Errorf("lookup refresh token: %w", err)
	}
	if row.ExpiredAt(s.now()) {
		if err := s.tokens.DeleteByID(ctx, row.ID); err != nil {
			return "", claims.UserID, fmt.Errorf("delete expired refresh token: %w", err)
		}
		return "", claims.UserID, ErrRefreshTokenExpired
	}
	access, err := s.jwtMgr.IssueAccessToken(claims.UserID)
	if err != nil {
		return "", claims.UserID, err
	}
	return access, claims.UserID, nil
}

// Revoke deletes the row for raw. Unknown tokens are not an error.
func (s *TokenService) Revoke(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	if _, err := s.tokens.DeleteByToken(ctx, raw); err != nil {
		return err
	}
	if claims, err := s.jwtMgr.VerifyRefreshToken(raw); err == nil {
		s.markRevoked(ctx, raw, claims)
	}
	return nil
}

// markRevoked caches raw as dead until its own expiry.
func (s *TokenService) markRevoked(ctx context.Context, raw string, claims *security.Claims) {
	if claims.ExpiresAt == nil {
		return
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if err := s.revoked.MarkRevoked(ctx, raw, ttl); err != nil {
		slog.WarnContext(ctx, "revocation cache write failed", "error", err.Error())
	}
}

func (s *TokenService) RevokeAll(ctx context.Context, userID uint) (int64, error) {
	return s.tokens.DeleteByUserID(ctx, userID)
}

func (s *TokenService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx, s.now())
}
