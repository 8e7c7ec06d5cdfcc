//go:build wireinject

package di

import (
	"context"
	"log/slog"

	"github.com/google/wire"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/sandeepkv93/ai-saas-backend/internal/app"
	"github.com/sandeepkv93/ai-saas-backend/internal/config"
	"github.com/sandeepkv93/ai-saas-backend/internal/http/handler"
	"github.com/sandeepkv93/ai-saas-backend/internal/repository"
	"github.com/sandeepkv93/ai-saas-backend/internal/service"
)

var repositorySet = wire.NewSet(
	repository.NewUserRepository,
	repository.NewRefreshTokenRepository,
	repository.NewCreationRepository,
)

var serviceSet = wire.NewSet(
	provideJWTManager,
	provideTokenService,
	service.NewAuthService,
	provideOAuthService,
	provideContentGenerator,
	provideContentService,
	wire.Bind(new(service.AuthServiceInterface), new(*service.AuthService)),
	wire.Bind(new(service.OAuthServiceInterface), new(*service.OAuthService)),
	wire.Bind(new(service.ContentServiceInterface), new(*service.ContentService)),
	wire.Bind(new(service.TokenJanitor), new(*service.TokenService)),
)

var httpSet = wire.NewSet(
	provideAuthHandler,
	handler.NewAIHandler,
	handler.NewUserHandler,
	provideRateLimitBackend,
	provideReadiness,
	provideRouter,
	provideHTTPServer,
)

func InitializeApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, lp *sdklog.LoggerProvider) (*app.App, error) {
	wire.Build(
		provideRuntime,
		provideDB,
		provideRedis,
		repositorySet,
		serviceSet,
		httpSet,
		provideApp,
	)
	return nil, nil
}
