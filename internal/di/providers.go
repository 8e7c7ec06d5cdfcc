package di

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"gorm.io/gorm"

	"github.com/sandeepkv93/ai-saas-backend/internal/app"
	"github.com/sandeepkv93/ai-saas-backend/internal/config"
	"github.com/sandeepkv93/ai-saas-backend/internal/database"
	"github.com/sandeepkv93/ai-saas-backend/internal/health"
	"github.com/sandeepkv93/ai-saas-backend/internal/http/handler"
	"github.com/sandeepkv93/ai-saas-backend/internal/http/middleware"
	"github.com/sandeepkv93/ai-saas-backend/internal/http/router"
	"github.com/sandeepkv93/ai-saas-backend/internal/observability"
	"github.com/sandeepkv93/ai-saas-backend/internal/repository"
	"github.com/sandeepkv93/ai-saas-backend/internal/security"
	"github.com/sandeepkv93/ai-saas-backend/internal/service"
)

func provideRuntime(ctx context.Context, cfg *config.Config, lp *sdklog.LoggerProvider, logger *slog.Logger) (*observability.Runtime, error) {
	return observability.InitRuntime(ctx, cfg, lp, logger)
}

// provideDB opens the database and applies pending migrations.
func provideDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db, cfg.DatabaseDriver, logger); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	return db, nil
}

// provideRedis returns nil when REDIS_ADDR is unset.
func provideRedis(cfg *config.Config) redis.UniversalClient {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
}

// provideTokenService backs the revocation cache with Redis when configured.
func provideTokenService(jwtMgr *security.JWTManager, tokens repository.RefreshTokenRepository, rdb redis.UniversalClient) *service.TokenService {
	var cache service.RevocationCache = service.NewInMemoryRevocationCache()
	if rdb != nil {
		cache = service.NewRedisRevocationCache(rdb, "ai-saas:revoked")
	}
	return service.NewTokenService(jwtMgr, tokens).WithRevocationCache(cache)
}

func provideOAuthService(cfg *config.Config, users repository.UserRepository, tokens *service.TokenService) *service.OAuthService {
	if !cfg.AuthGoogleEnabled {
		return service.NewOAuthService(nil, users, tokens)
	}
	return service.NewOAuthService(service.NewGoogleOAuthProvider(cfg), users, tokens)
}

func provideContentGenerator(cfg *config.Config) service.ContentGenerator {
	return service.NewGeminiGenerator(cfg)
}

func provideContentService(cfg *config.Config, gen service.ContentGenerator, creations repository.CreationRepository) *service.ContentService {
	return service.NewContentService(gen, creations, cfg.FreeCredits)
}

func provideAuthHandler(cfg *config.Config, auth service.AuthServiceInterface, oauth service.OAuthServiceInterface) *handler.AuthHandler {
	return handler.NewAuthHandler(auth, oauth, handler.AuthHandlerOptions{
		ClientURL:     cfg.ClientURL,
		StateKey:      []byte(cfg.OAuthStateSecret),
		StateTTL:      cfg.OAuthStateTTL,
		SecureCookies: cfg.IsProduction(),
	})
}

func provideReadiness(cfg *config.Config, db *gorm.DB, rdb redis.UniversalClient) *health.ProbeRunner {
	checkers := []health.Checker{health.DBChecker(db)}
	if rdb != nil {
		checkers = append(checkers, health.RedisChecker(rdb))
	}
	return health.NewProbeRunner(cfg.ReadinessProbeTimeout, cfg.ReadinessCacheTTL, checkers...)
}

func provideRateLimitBackend(rdb redis.UniversalClient) middleware.Limiter {
	if rdb == nil {
		return middleware.NewLocalLimiter()
	}
	return middleware.NewRedisFixedWindowLimiter(rdb, "ai-saas:rl")
}

func provideRouter(
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	aiHandler *handler.AIHandler,
	userHandler *handler.UserHandler,
	jwtMgr *security.JWTManager,
	users repository.UserRepository,
	limiter middleware.Limiter,
	readiness *health.ProbeRunner,
) http.Handler {
	return router.NewRouter(router.Dependencies{
		AuthHandler:      authHandler,
		AIHandler:        aiHandler,
		UserHandler:      userHandler,
		JWTManager:       jwtMgr,
		Users:            users,
		CORSOrigins:      cfg.CORSOrigins,
		BodyLimit:        cfg.BodyLimit,
		AuthRateLimitRPM: cfg.AuthRateLimitRPM,
		APIRateLimitRPM:  cfg.APIRateLimitRPM,
		RateLimitBackend: limiter,
		RateLimitMode:    middleware.FailureMode(cfg.RateLimitFailureMode),
		Readiness:        readiness,
		EnableOTelHTTP:   cfg.OTELTracingEnabled || cfg.OTELMetricsEnabled,
	})
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	janitor service.TokenJanitor,
	readiness *health.ProbeRunner,
	db *gorm.DB,
	rdb redis.UniversalClient,
) *app.App {
	closers := []func() error{func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}}
	if rdb != nil {
		closers = append(closers, rdb.Close)
	}
	return app.New(cfg, logger, server, runtime, janitor, readiness, closers...)
}
