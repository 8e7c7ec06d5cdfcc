package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/codes"

	"github.com/sandeepkv93/ai-saas-backend/internal/domain"
	"github.com/sandeepkv93/ai-saas-backend/internal/observability"
	"github.com/sandeepkv93/ai-saas-backend/internal/repository"
	"github.com/sandeepkv93/ai-saas-backend/internal/security"
)

type AuthResult struct {
	User         domain.UserView `json:"user"`
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type AuthService struct {
	users  repository.UserRepository
	tokens *TokenService
}

func NewAuthService(users repository.UserRepository, tokens *TokenService) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	ctx, span := observability.StartSpan(ctx, "auth.register")
	defer span.End()

	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	if name == "" || email == "" || in.Password == "" {
		observability.RecordAuthRegister("validation")
		return nil, ErrValidation
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		observability.RecordAuthRegister("conflict")
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		span.SetStatus(codes.Error, "lookup failed")
		observability.RecordAuthRegister("error")
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := security.HashPassword(in.Password)
	if err != nil {
		if security.IsPasswordTooLong(err) {
			observability.RecordAuthRegister("validation")
			return nil, fmt.Errorf("%w: password too long", ErrValidation)
		}
		observability.RecordAuthRegister("error")
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		Name:         name,
		PasswordHash: &hash,
		Provider:     domain.ProviderLocal,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserConflict) {
			observability.RecordAuthRegister("conflict")
			return nil, ErrEmailTaken
		}
		span.SetStatus(codes.Error, "create failed")
		observability.RecordAuthRegister("error")
		return nil, fmt.Errorf("create user: %w", err)
	}

	pair, err := s.tokens.IssuePair(ctx, user.ID)
	if err != nil {
		span.SetStatus(codes.Error, "issue failed")
		observability.RecordAuthRegister("error")
		return nil, err
	}
	observability.RecordAuthRegister("success")
	return newAuthResult(user, pair), nil
}

// Login does not reveal whether email exists: unknown email and wrong
// password both return ErrInvalidCredentials after one bcrypt comparison.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	ctx, span := observability.StartSpan(ctx, "auth.login")
	defer span.End()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		observability.RecordAuthLogin(domain.ProviderLocal, "validation")
		return nil, ErrValidation
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			security.BurnPasswordCheck(password)
			observability.RecordAuthLogin(domain.ProviderLocal, "failure")
			return nil, ErrInvalidCredentials
		}
		span.SetStatus(codes.Error, "lookup failed")
		observability.RecordAuthLogin(domain.ProviderLocal, "error")
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user.IsOAuthOnly() {
		observability.RecordAuthLogin(domain.ProviderLocal, "oauth_only")
		return nil, ErrUseOAuthLogin
	}
	if !user.HasPassword() || !security.CheckPassword(*user.PasswordHash, password) {
		observability.RecordAuthLogin(domain.ProviderLocal, "failure")
		return nil, ErrInvalidCredentials
	}

	pair, err := s.tokens.IssuePair(ctx, user.ID)
	if err != nil {
		span.SetStatus(codes.Error, "issue failed")
		observability.RecordAuthLogin(domain.ProviderLocal, "error")
		return nil, err
	}
	observability.RecordAuthLogin(domain.ProviderLocal, "success")
	return newAuthResult(user, pair), nil
}

// Logout is idempotent; a missing or unknown token succeeds.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
		observability.RecordAuthLogout("single", "error")
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	observability.RecordAuthLogout("single", "success")
	return nil
}

func (s *AuthService) LogoutAll(ctx context.Context, userID uint) (int64, error) {
	n, err := s.tokens.RevokeAll(ctx, userID)
	if err != nil {
		observability.RecordAuthLogout("all", "error")
		return 0, fmt.Errorf("revoke user tokens: %w", err)
	}
	observability.RecordAuthLogout("all", "success")
	return n, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, uint, error) {
	ctx, span := observability.StartSpan(ctx, "auth.refresh")
	defer span.End()

	access, userID, err := s.tokens.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			observability.RecordAuthRefresh("rejected")
		} else {
			span.SetStatus(codes.Error, "refresh failed")
			observability.RecordAuthRefresh("error")
		}
		return "", userID, err
	}
	observability.RecordAuthRefresh("success")
	return access, userID, nil
}

// CurrentUser re-reads the user row; a vanished user is ErrUserNotFound.
func (s *AuthService) CurrentUser(ctx context.Context, userID uint) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func newAuthResult(user *domain.User, pair *TokenPair) *AuthResult {
	return &AuthResult{User: user.View(), AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}
}
