package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	RateLimitFailOpen   = "fail_open"
	RateLimitFailClosed = "fail_closed"

	accessTokenLifetime = 15 * time.Minute
	minJWTSecretBytes   = 32
)

var (
	// ErrParse wraps a malformed environment value.
	ErrParse = errors.New("parse")
	// ErrInvalid wraps failed cross-field validation.
	ErrInvalid = errors.New("validate config")
)

type Config struct {
	AppEnv   string
	HTTPAddr string

	DatabaseDriver string
	DatabaseURL    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret     string
	JWTIssuer     string
	JWTAudience   string
	JWTAccessTTL  time.Duration
	JWTRefreshTTL time.Duration

	AuthGoogleEnabled  bool
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
	OAuthStateSecret   string
	OAuthStateTTL      time.Duration

	ClientURL   string
	CORSOrigins []string
	BodyLimit   int64

	AuthRateLimitRPM     int
	APIRateLimitRPM      int
	RateLimitFailureMode string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	FreeCredits   int64

	LogLevel slog.Level

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64

	SentryDSN string

	RefreshTokenCleanupInterval time.Duration
	ReadinessProbeTimeout       time.Duration
	ReadinessCacheTTL           time.Duration

	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration
}

// Load reads the process environment. Callers that want a .env file merged
// in should call common.LoadEnvFile first.
func Load() (*Config, error) {
	cfg, err := load()
	recordLoad(context.Background(), os.Getenv("APP_ENV"), err)
	return cfg, err
}

func load() (*Config, error) {
	p := &envParser{}
	cfg := &Config{
		AppEnv:   envString("APP_ENV", "development"),
		HTTPAddr: httpAddr(),

		DatabaseDriver: strings.ToLower(envString("DATABASE_DRIVER", DriverSQLite)),
		DatabaseURL:    envString("DATABASE_URL", "file:ai-saas.db?_foreign_keys=1"),

		RedisAddr:     envString("REDIS_ADDR", ""),
		RedisPassword: envString("REDIS_PASSWORD", ""),
		RedisDB:       p.int("REDIS_DB", 0),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTIssuer:     envString("JWT_ISSUER", "ai-saas-backend"),
		JWTAudience:   envString("JWT_AUDIENCE", "ai-saas-client"),
		JWTAccessTTL:  p.lifetime("JWT_ACCESS_TTL", accessTokenLifetime),
		JWTRefreshTTL: p.lifetime("JWT_EXPIRE", 7*24*time.Hour),

		GoogleClientID:     envString("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: envString("GOOGLE_CLIENT_SECRET", ""),
		GoogleCallbackURL:  envString("GOOGLE_CALLBACK_URL", "http://localhost:3000/api/auth/google/callback"),
		OAuthStateSecret:   envString("OAUTH_STATE_SECRET", ""),
		OAuthStateTTL:      p.lifetime("OAUTH_STATE_TTL", 10*time.Minute),

		ClientURL: strings.TrimRight(envString("CLIENT_URL", "http://localhost:5173"), "/"),
		BodyLimit: int64(p.int("HTTP_BODY_LIMIT_BYTES", 1<<20)),

		AuthRateLimitRPM:     p.int("AUTH_RATE_LIMIT_RPM", 30),
		APIRateLimitRPM:      p.int("API_RATE_LIMIT_RPM", 300),
		RateLimitFailureMode: strings.ToLower(envString("RATE_LIMIT_FAILURE_MODE", RateLimitFailClosed)),

		GeminiAPIKey:  envString("GEMINI_API_KEY", ""),
		GeminiModel:   envString("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL: envString("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/"),
		FreeCredits:   int64(p.int("FREE_CREDITS", 50)),

		LogLevel: p.logLevel("LOG_LEVEL", slog.LevelInfo),

		OTELServiceName:           envString("OTEL_SERVICE_NAME", "ai-saas-backend"),
		OTELEnvironment:           envString("OTEL_ENVIRONMENT", envString("APP_ENV", "development")),
		OTELExporterOTLPEndpoint:  envString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure:  p.bool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELMetricsEnabled:        p.bool("OTEL_METRICS_ENABLED", false),
		OTELTracingEnabled:        p.bool("OTEL_TRACING_ENABLED", false),
		OTELLogsEnabled:           p.bool("OTEL_LOGS_ENABLED", false),
		OTELMetricsExportInterval: p.duration("OTEL_METRICS_EXPORT_INTERVAL", 15*time.Second),
		OTELTraceSamplingRatio:    p.float("OTEL_TRACE_SAMPLING_RATIO", 1.0),

		SentryDSN: envString("SENTRY_DSN", ""),

		RefreshTokenCleanupInterval: p.duration("REFRESH_TOKEN_CLEANUP_INTERVAL", time.Hour),
		ReadinessProbeTimeout:       p.duration("READINESS_PROBE_TIMEOUT", time.Second),
		ReadinessCacheTTL:           p.duration("READINESS_CACHE_TTL", 2*time.Second),

		ShutdownTimeout:              p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		ShutdownHTTPDrainTimeout:     p.duration("SHUTDOWN_HTTP_DRAIN_TIMEOUT", 5*time.Second),
		ShutdownObservabilityTimeout: p.duration("SHUTDOWN_OBSERVABILITY_TIMEOUT", 3*time.Second),
	}
	cfg.CORSOrigins = splitList(envString("CORS_ALLOWED_ORIGINS", cfg.ClientURL))
	cfg.AuthGoogleEnabled = p.bool("AUTH_GOOGLE_ENABLED", cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "")
	if cfg.OAuthStateSecret == "" {
		cfg.OAuthStateSecret = cfg.JWTSecret
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) < minJWTSecretBytes {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretBytes))
	}
	if c.JWTAccessTTL != accessTokenLifetime {
		errs = append(errs, fmt.Errorf("JWT_ACCESS_TTL must be %s", accessTokenLifetime))
	}
	if c.JWTRefreshTTL <= c.JWTAccessTTL {
		errs = append(errs, errors.New("JWT_EXPIRE must be longer than JWT_ACCESS_TTL"))
	}
	switch c.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER %q is not supported", c.DatabaseDriver))
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	switch c.RateLimitFailureMode {
	case RateLimitFailOpen, RateLimitFailClosed:
	default:
		errs = append(errs, fmt.Errorf("RATE_LIMIT_FAILURE_MODE %q is not supported", c.RateLimitFailureMode))
	}
	if c.AuthRateLimitRPM <= 0 || c.APIRateLimitRPM <= 0 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	if u, err := url.Parse(c.ClientURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, errors.New("CLIENT_URL must be an absolute url"))
	}
	if c.AuthGoogleEnabled {
		if c.GoogleClientID == "" || c.GoogleClientSecret == "" || c.GoogleCallbackURL == "" {
			errs = append(errs, errors.New("GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_CALLBACK_URL are required when google auth is enabled"))
		}
		if len(c.OAuthStateSecret) < minJWTSecretBytes {
			errs = append(errs, fmt.Errorf("OAUTH_STATE_SECRET must be at least %d bytes", minJWTSecretBytes))
		}
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, errors.New("OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.AppEnv) {
	case "prod", "production":
		return true
	}
	return false
}

func httpAddr() string {
	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		return v
	}
	return ":" + envString("PORT", "3000")
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// envParser keeps the first parse failure so load can report it once.
type envParser struct {
	err error
}

func (p *envParser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w %s: %w", ErrParse, key, err)
	}
}

func (p *envParser) int(key string, fallback int) int {
	raw := envString(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return v
}

func (p *envParser) float(key string, fallback float64) float64 {
	raw := envString(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return v
}

func (p *envParser) bool(key string, fallback bool) bool {
	raw := envString(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return v
}

func (p *envParser) duration(key string, fallback time.Duration) time.Duration {
	raw := envString(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return v
}

func (p *envParser) lifetime(key string, fallback time.Duration) time.Duration {
	raw := envString(key, "")
	if raw == "" {
		return fallback
	}
	v, err := ParseLifetime(raw)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return v
}

func (p *envParser) logLevel(key string, fallback slog.Level) slog.Level {
	raw := envString(key, "")
	if raw == "" {
		return fallback
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		p.fail(key, err)
		return fallback
	}
	return lvl
}

// ParseLifetime accepts Go durations plus a whole-day suffix such as "7d".
func ParseLifetime(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasSuffix(raw, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", raw)
		}
		if days <= 0 {
			return 0, fmt.Errorf("lifetime %q must be positive", raw)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("lifetime %q must be positive", raw)
	}
	return d, nil
}
