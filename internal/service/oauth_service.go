package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/oauth2"

	"github.com/sandeepkv93/ai-saas-backend/internal/domain"
	"github.com/sandeepkv93/ai-saas-backend/internal/observability"
	"github.com/sandeepkv93/ai-saas-backend/internal/repository"
)

// OAuthUserInfo is the identity assertion returned by a provider.
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Picture        string
	EmailVerified  bool
}

// OAuthProvider drives one external code-flow handshake. New providers add
// implementations; resolution stays the same.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchUserInfo(ctx context.Context, token *oauth2.Token) (*OAuthUserInfo, error)
}

// Resolution outcomes reported with OAuthResult.
const (
	OAuthMatchedSubject = "matched_subject"
	OAuthLinkedEmail    = "linked"
	OAuthCreated        = "created"
)

type OAuthResult struct {
	*AuthResult
	Outcome string
}

type OAuthService struct {
	provider OAuthProvider
	users    repository.UserRepository
	tokens   *TokenService
}

func NewOAuthService(provider OAuthProvider, users repository.UserRepository, tokens *TokenService) *OAuthService {
	return &OAuthService{provider: provider, users: users, tokens: tokens}
}

func (s *OAuthService) Enabled() bool { return s != nil && s.provider != nil }

func (s *OAuthService) GoogleLoginURL(state string) string {
	return s.provider.AuthCodeURL(state)
}

// HandleGoogleCallback exchanges code, resolves the local user and issues a
// token pair. Nothing is persisted unless resolution succeeds.
func (s *OAuthService) HandleGoogleCallback(ctx context.Context, code string) (*OAuthResult, error) {
	ctx, span := observability.StartSpan(ctx, "auth.google.callback")
	defer span.End()

	tok, err := s.provider.Exchange(ctx, code)
	if err != nil {
		span.SetStatus(codes.Error, "exchange failed")
		observability.RecordAuthLogin(domain.ProviderGoogle, "exchange_error")
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	info, err := s.provider.FetchUserInfo(ctx, tok)
	if err != nil {
		span.SetStatus(codes.Error, "userinfo failed")
		observability.RecordAuthLogin(domain.ProviderGoogle, "userinfo_error")
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	if !info.EmailVerified {
		observability.RecordAuthLogin(domain.ProviderGoogle, "email_unverified")
		return nil, ErrEmailNotVerified
	}
	if strings.TrimSpace(info.ProviderUserID) == "" || strings.TrimSpace(info.Email) == "" {
		observability.RecordAuthLogin(domain.ProviderGoogle, "invalid_userinfo")
		return nil, errors.New("missing required userinfo fields")
	}

	user, outcome, err := s.ResolveIdentity(ctx, info)
	if err != nil {
		span.SetStatus(codes.Error, "resolve failed")
		observability.RecordAuthLogin(domain.ProviderGoogle, "error")
		return nil, err
	}
	span.SetAttributes(attribute.String("oauth.outcome", outcome))

	pair, err := s.tokens.IssuePair(ctx, user.ID)
	if err != nil {
		span.SetStatus(codes.Error, "issue failed")
		observability.RecordAuthLogin(domain.ProviderGoogle, "error")
		return nil, err
	}
	observability.RecordAuthLogin(domain.ProviderGoogle, "success")
	return &OAuthResult{AuthResult: newAuthResult(user, pair), Outcome: outcome}, nil
}

// ResolveIdentity finds or creates the user for info, in order: provider
// subject, then email (linking in place), then a new account. A concurrent
// insert for the same identity is retried once.
func (s *OAuthService) ResolveIdentity(ctx context.Context, info *OAuthUserInfo) (*domain.User, string, error) {
	user, outcome, err := s.resolveOnce(ctx, info)
	if errors.Is(err, repository.ErrUserConflict) {
		user, outcome, err = s.resolveOnce(ctx, info)
	}
	if err != nil {
		return nil, "", fmt.Errorf("resolve google identity: %w", err)
	}
	return user, outcome, nil
}

func (s *OAuthService) resolveOnce(ctx context.Context, info *OAuthUserInfo) (*domain.User, string, error) {
	var (
		resolved *domain.User
		outcome  string
	)
	err := s.users.Transaction(ctx, func(tx repository.UserRepository) error {
		user, err := tx.FindByGoogleID(ctx, info.ProviderUserID)
		if err == nil {
			resolved, outcome = user, OAuthMatchedSubject
			return nil
		}
		if !errors.Is(err, repository.ErrUserNotFound) {
			return err
		}

		user, err = tx.FindByEmail(ctx, info.Email)
		if err == nil {
			user.GoogleID = &info.ProviderUserID
			if info.Picture != "" {
				user.ProfilePicture = &info.Picture
			}
			user.Provider = domain.ProviderGoogle
			if err := tx.Update(ctx, user); err != nil {
				return err
			}
			resolved, outcome = user, OAuthLinkedEmail
			return nil
		}
		if !errors.Is(err, repository.ErrUserNotFound) {
			return err
		}

		name := strings.TrimSpace(info.Name)
		if name == "" {
			name = info.Email
		}
		user = &domain.User{
			Email:      info.Email,
			Name:       name,
			GoogleID:   &info.ProviderUserID,
			Provider:   domain.ProviderGoogle,
			IsVerified: true,
		}
		if info.Picture != "" {
			user.ProfilePicture = &info.Picture
		}
		if err := tx.Create(ctx, user); err != nil {
			return err
		}
		resolved, outcome = user, OAuthCreated
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return resolved, outcome, nil
}

func classifyOAuthError(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.Canceled):
		return "context_canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrEmailNotVerified):
		return "email_unverified"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "userinfo status"):
		return "userinfo_status"
	case strings.Contains(msg, "missing required userinfo fields"):
		return "invalid_userinfo"
	case strings.Contains(msg, "oauth2:"):
		return "oauth2_exchange"
	case strings.Contains(msg, "id token"):
		return "id_token"
	case strings.Contains(msg, "resolve google identity"):
		return "resolve"
	default:
		return "unknown"
	}
}

// OAuthFailureReason exposes the error classification for audit logs.
func OAuthFailureReason(err error) string { return classifyOAuthError(err) }
