package service

import (
	"context"

	"github.com/sandeepkv93/ai-saas-backend/internal/domain"
	"github.com/sandeepkv93/ai-saas-backend/internal/repository"
)

type AuthServiceInterface interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID uint) (int64, error)
	Refresh(ctx context.Context, refreshToken string) (string, uint, error)
	CurrentUser(ctx context.Context, userID uint) (*domain.User, error)
}

type OAuthServiceInterface interface {
	Enabled() bool
	GoogleLoginURL(state string) string
	HandleGoogleCallback(ctx context.Context, code string) (*OAuthResult, error)
}

type ContentServiceInterface interface {
	WriteArticle(ctx context.Context, userID uint, req ArticleRequest) (*ArticleResult, error)
	BlogTitles(ctx context.Context, userID uint, req TitleRequest) ([]BlogTitle, error)
	GenerateImages(ctx context.Context, userID uint, req ImageRequest) ([]GeneratedImage, error)
	ReviewResume(ctx context.Context, userID uint, req ResumeRequest) (*ResumeReview, error)
	ListCreations(ctx context.Context, userID uint, page repository.PageRequest) (repository.PageResult[domain.Creation], error)
	Stats(ctx context.Context, userID uint) (*domain.CreationStats, error)
	DeleteCreation(ctx context.Context, userID, id uint) error
}

// TokenJanitor removes refresh-token rows past their stored expiry.
type TokenJanitor interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

var (
	_ AuthServiceInterface    = (*AuthService)(nil)
	_ OAuthServiceInterface   = (*OAuthService)(nil)
	_ ContentServiceInterface = (*ContentService)(nil)
	_ TokenJanitor            = (*TokenService)(nil)
	_ OAuthProvider           = (*GoogleOAuthProvider)(nil)
	_ ContentGenerator        = (*GeminiGenerator)(nil)
)
