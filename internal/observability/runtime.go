package observability

import (
	"context"
	"errors"
	"log/slog"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/sandeepkv93/ai-saas-backend/internal/config"
)

type Runtime struct {
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
	LoggerProvider *sdklog.LoggerProvider
	SentryEnabled  bool
}

func InitRuntime(ctx context.Context, cfg *config.Config, lp *sdklog.LoggerProvider, logger *slog.Logger) (*Runtime, error) {
	mp, err := InitMetrics(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	tp, err := InitTracing(ctx, cfg, logger)
	if err != nil {
		_ = mp.Shutdown(ctx)
		return nil, err
	}
	sentryOn, err := InitSentry(cfg, logger)
	if err != nil {
		logger.Warn("sentry init failed", "error", err)
	}
	return &Runtime{MeterProvider: mp, TracerProvider: tp, LoggerProvider: lp, SentryEnabled: sentryOn}, nil
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Shutdown flushes sentry and then stops the providers, logs last.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if r.SentryEnabled {
		FlushSentry(ctx)
	}
	providers := []shutdowner{}
	if r.MeterProvider != nil {
		providers = append(providers, r.MeterProvider)
	}
	if r.TracerProvider != nil {
		providers = append(providers, r.TracerProvider)
	}
	if r.LoggerProvider != nil {
		providers = append(providers, r.LoggerProvider)
	}
	var errs []error
	for _, p := range providers {
		if err := p.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
