package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/sandeepkv93/ai-saas-backend/internal/config"
)

const meterName = "github.com/sandeepkv93/ai-saas-backend"

type AppMetrics struct {
	authLogin       metric.Int64Counter
	authRegister    metric.Int64Counter
	authRefresh     metric.Int64Counter
	authLogout      metric.Int64Counter
	tokenValidation metric.Int64Counter
	repositoryOps   metric.Int64Counter
	rateLimit       metric.Int64Counter
	generations     metric.Int64Counter
	generationTime  metric.Float64Histogram
}

var appMetrics atomic.Pointer[AppMetrics]

// InitMetrics installs the global meter provider. With export disabled the
// provider has no reader, so instruments stay cheap no-ops.
func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	var opts []sdkmetric.Option
	if cfg.OTELMetricsEnabled {
		exporterOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
		if cfg.OTELExporterOTLPInsecure {
			exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp metric exporter: %w", err)
		}
		res, err := newResource(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create metric resource: %w", err)
		}
		opts = append(opts,
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))),
		)
	}
	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)

	m, err := newAppMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	appMetrics.Store(m)
	if cfg.OTELMetricsEnabled {
		logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	} else {
		logger.Info("otel metrics disabled")
	}
	return mp, nil
}

func newResource(ctx context.Context, cfg *config.Config) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
}

// instruments keeps the first creation error so construction reads flat.
type instruments struct {
	meter metric.Meter
	err   error
}

func (b *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("create counter %s: %w", name, err)
	}
	return c
}

func (b *instruments) seconds(name, desc string) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("create histogram %s: %w", name, err)
	}
	return h
}

func newAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	b := &instruments{meter: meter}
	m := &AppMetrics{
		authLogin:       b.counter("auth.login.attempts", "Login attempts by provider and status"),
		authRegister:    b.counter("auth.register.attempts", "Local registrations by status"),
		authRefresh:     b.counter("auth.refresh.attempts", "Access token renewals by status"),
		authLogout:      b.counter("auth.logout.attempts", "Logouts by scope and status"),
		tokenValidation: b.counter("auth.access_token.validations", "Bearer token checks by outcome"),
		repositoryOps:   b.counter("repository.operations", "Store calls by repository, operation and outcome"),
		rateLimit:       b.counter("http.rate_limit.decisions", "Limiter decisions by scope"),
		generations:     b.counter("content.generations", "Content tool runs by outcome"),
		generationTime:  b.seconds("content.generation.duration", "Content tool latency"),
	}
	if b.err != nil {
		return nil, b.err
	}
	return m, nil
}

func count(ctx context.Context, pick func(*AppMetrics) metric.Int64Counter, attrs ...attribute.KeyValue) {
	m := appMetrics.Load()
	if m == nil {
		return
	}
	pick(m).Add(ctx, 1, metric.WithAttributes(attrs...))
}

func RecordAuthLogin(provider, status string) {
	count(context.Background(), func(m *AppMetrics) metric.Int64Counter { return m.authLogin },
		attribute.String("provider", provider), attribute.String("status", status))
}

func RecordAuthRegister(status string) {
	count(context.Background(), func(m *AppMetrics) metric.Int64Counter { return m.authRegister },
		attribute.String("status", status))
}

func RecordAuthRefresh(status string) {
	count(context.Background(), func(m *AppMetrics) metric.Int64Counter { return m.authRefresh },
		attribute.String("status", status))
}

// RecordAuthLogout counts logouts; scope is "single" or "all".
func RecordAuthLogout(scope, status string) {
	count(context.Background(), func(m *AppMetrics) metric.Int64Counter { return m.authLogout },
		attribute.String("scope", scope), attribute.String("status", status))
}

func RecordAccessTokenValidation(ctx context.Context, outcome, source string) {
	count(ctx, func(m *AppMetrics) metric.Int64Counter { return m.tokenValidation },
		attribute.String("outcome", outcome), attribute.String("source", source))
}

func RecordRepositoryOperation(ctx context.Context, repo, op, outcome string) {
	count(ctx, func(m *AppMetrics) metric.Int64Counter { return m.repositoryOps },
		attribute.String("repository", repo), attribute.String("operation", op), attribute.String("outcome", outcome))
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome, mode, keyType string) {
	count(ctx, func(m *AppMetrics) metric.Int64Counter { return m.rateLimit },
		attribute.String("scope", scope), attribute.String("outcome", outcome),
		attribute.String("mode", mode), attribute.String("key_type", keyType))
}

func RecordContentGeneration(ctx context.Context, tool, outcome string, seconds float64) {
	m := appMetrics.Load()
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tool", tool), attribute.String("outcome", outcome))
	m.generations.Add(ctx, 1, attrs)
	m.generationTime.Record(ctx, seconds, attrs)
}
