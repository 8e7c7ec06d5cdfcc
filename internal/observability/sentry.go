package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sandeepkv93/ai-saas-backend/internal/config"
)

// InitSentry configures the global hub. It reports whether capture is live.
func InitSentry(cfg *config.Config, logger *slog.Logger) (bool, error) {
	if cfg.SentryDSN == "" {
		logger.Info("sentry disabled")
		return false, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.AppEnv,
		Release:          cfg.OTELServiceName,
		AttachStacktrace: true,
	})
	if err != nil {
		return false, fmt.Errorf("init sentry: %w", err)
	}
	logger.Info("sentry initialized", "environment", cfg.AppEnv)
	return true, nil
}

// CaptureError reports err with request tags when a Sentry client is bound.
func CaptureError(r *http.Request, err error) {
	if err == nil || sentry.CurrentHub().Client() == nil {
		return
	}
	hub := sentry.CurrentHub().Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		if r != nil {
			scope.SetTag("method", r.Method)
			scope.SetTag("path", r.URL.Path)
			if reqID := chimiddleware.GetReqID(r.Context()); reqID != "" {
				scope.SetTag("request_id", reqID)
			}
		}
		hub.CaptureException(err)
	})
}

func FlushSentry(ctx context.Context) {
	if sentry.CurrentHub().Client() == nil {
		return
	}
	timeout := 2 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	sentry.Flush(timeout)
}
