package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/ai-saas-backend/internal/health"
	"github.com/sandeepkv93/ai-saas-backend/internal/http/handler"
	"github.com/sandeepkv93/ai-saas-backend/internal/http/middleware"
	"github.com/sandeepkv93/ai-saas-backend/internal/http/response"
	"github.com/sandeepkv93/ai-saas-backend/internal/security"
)

type Dependencies struct {
	AuthHandler      *handler.AuthHandler
	AIHandler        *handler.AIHandler
	UserHandler      *handler.UserHandler
	JWTManager       *security.JWTManager
	Users            middleware.UserLookup
	CORSOrigins      []string
	BodyLimit        int64
	AuthRateLimitRPM int
	APIRateLimitRPM  int
	// RateLimitBackend is shared by both scopes; nil means in-process.
	RateLimitBackend middleware.Limiter
	RateLimitMode    middleware.FailureMode
	Readiness        *health.ProbeRunner
	EnableOTelHTTP   bool
}

func NewRouter(dep Dependencies) http.Handler {
	if dep.BodyLimit <= 0 {
		dep.BodyLimit = 1 << 20
	}
	backend := dep.RateLimitBackend
	if backend == nil {
		backend = middleware.NewLocalLimiter()
	}
	apiLimiter := middleware.NewRateLimiter(backend, middleware.PerMinute(dep.APIRateLimitRPM), dep.RateLimitMode, "api").Middleware()
	authLimiter := middleware.NewRateLimiter(backend, middleware.PerMinute(dep.AuthRateLimitRPM), dep.RateLimitMode, "auth").Middleware()
	requireAuth := middleware.AuthMiddleware(dep.JWTManager, dep.Users)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(dep.BodyLimit))

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			// Credential entry points.
			r.Group(func(r chi.Router) {
				r.Use(authLimiter)
				r.Post("/register", dep.AuthHandler.Register)
				r.Post("/login", dep.AuthHandler.Login)
				r.Post("/logout", dep.AuthHandler.Logout)
				r.Get("/google", dep.AuthHandler.GoogleLogin)
				r.Get("/google/callback", dep.AuthHandler.GoogleCallback)
			})
			// Session upkeep shares the api budget.
			r.Group(func(r chi.Router) {
				r.Use(apiLimiter)
				r.Post("/refresh-token", dep.AuthHandler.RefreshToken)
				r.With(requireAuth).Post("/logout-all", dep.AuthHandler.LogoutAll)
				r.With(requireAuth).Get("/me", dep.AuthHandler.Me)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(apiLimiter)
			r.Use(requireAuth)
			r.Route("/ai", func(r chi.Router) {
				r.Post("/write-article", dep.AIHandler.WriteArticle)
				r.Post("/blog-titles", dep.AIHandler.BlogTitles)
				r.Post("/generate-images", dep.AIHandler.GenerateImages)
				r.Post("/review-resume", dep.AIHandler.ReviewResume)
			})
			r.Route("/user", func(r chi.Router) {
				r.Get("/creations", dep.UserHandler.Creations)
				r.Get("/stats", dep.UserHandler.Stats)
				r.Delete("/creations/{id}", dep.UserHandler.DeleteCreation)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
