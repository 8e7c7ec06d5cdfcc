package config

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	loadMetricsOnce sync.Once
	loadCounter     metric.Int64Counter
)

// recordLoad counts configuration loads by environment and failure class.
func recordLoad(ctx context.Context, appEnv string, err error) {
	loadMetricsOnce.Do(func() {
		counter, cerr := otel.Meter("ai-saas-backend/config").Int64Counter(
			"config.load.total",
			metric.WithDescription("Configuration loads by outcome"),
		)
		if cerr == nil {
			loadCounter = counter
		}
	})
	if loadCounter == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	loadCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("app_env", envLabel(appEnv)),
		attribute.String("outcome", outcome),
		attribute.String("error_class", loadErrorClass(err)),
	))
}

// envLabel folds APP_ENV into a small fixed label set.
func envLabel(appEnv string) string {
	switch v := strings.ToLower(strings.TrimSpace(appEnv)); v {
	case "":
		return "unset"
	case "prod", "production":
		return "production"
	case "dev", "development", "local":
		return "development"
	case "test", "staging":
		return v
	default:
		return "other"
	}
}

func loadErrorClass(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrInvalid):
		return "validation"
	default:
		return "load"
	}
}
