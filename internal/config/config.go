package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Store backends.
const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	CORSAllowedOrigins []string

	TenantHeader     string
	TenantRootDomain string
	TenantDefault    string

	StoreBackend              string
	StoreExemptCollections    []string
	StoreExplicitTenantPolicy string
	MigrateOnStart            bool

	PricingConfigCacheTTL time.Duration
	PricingFetchTimeout   time.Duration
	PromoLockTTL          time.Duration
	LockRetryBackoff      time.Duration

	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration

	RateLimitStrategy   string
	RateLimitCalcMax    int
	RateLimitCalcWindow time.Duration

	BodyLimitBytes        int64
	SecurityHeadersEnable bool
	IdempotencyTTL        time.Duration
	WorkerConcurrency     int
	AdminPageSize         int
	AuditEnabled          bool

	LogFormat         string
	LogLevel          string
	MetricsNamespace  string
	MetricsBuckets    string
	OTELServiceName   string
	OTELExporter      string
	OTELEndpoint      string
	OTELSamplingRatio float64
	PprofEnable       bool
	PprofUser         string
	PprofPass         string
	ShutdownTimeout   time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          strings.TrimSpace(k.String("JWT_ISSUER")),
		JWTAudience:        strings.TrimSpace(k.String("JWT_AUDIENCE")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		TenantHeader:     valueOrDefault(k.String("TENANT_HEADER"), "X-Shop-Domain"),
		TenantRootDomain: strings.TrimSpace(k.String("TENANT_ROOT_DOMAIN")),
		TenantDefault:    strings.TrimSpace(k.String("TENANT_DEFAULT")),

		StoreBackend:              strings.ToLower(valueOrDefault(k.String("STORE_BACKEND"), StoreBackendPostgres)),
		StoreExemptCollections:    splitAndTrim(k.String("STORE_EXEMPT_COLLECTIONS")),
		StoreExplicitTenantPolicy: strings.ToLower(valueOrDefault(k.String("STORE_EXPLICIT_TENANT_POLICY"), "allow")),
		MigrateOnStart:            parseBool(k.String("MIGRATE_ON_START")),

		PricingConfigCacheTTL: parseDuration(k.String("PRICING_CONFIG_CACHE_TTL"), "5m"),
		PricingFetchTimeout:   parseDuration(k.String("PRICING_FETCH_TIMEOUT"), "2s"),
		PromoLockTTL:          parseDuration(k.String("PROMO_LOCK_TTL"), "10s"),
		LockRetryBackoff:      parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),

		BreakerMinRequests:  parseInt(k.String("BREAKER_MIN_REQUESTS"), 20),
		BreakerFailureRatio: parseFloat(k.String("BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:      parseDuration(k.String("BREAKER_OPEN_FOR"), "15s"),

		RateLimitStrategy:   strings.ToLower(valueOrDefault(k.String("RATE_LIMIT_STRATEGY"), "sliding")),
		RateLimitCalcMax:    parseInt(k.String("RATE_LIMIT_CALC_MAX"), 120),
		RateLimitCalcWindow: parseDuration(k.String("RATE_LIMIT_CALC_WINDOW"), "1m"),

		BodyLimitBytes:        int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		SecurityHeadersEnable: parseBoolDefault(k.String("SECURITY_HEADERS_ENABLE"), true),
		IdempotencyTTL:        parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		WorkerConcurrency:     parseInt(k.String("WORKER_CONCURRENCY"), 10),
		AdminPageSize:         parseInt(k.String("ADMIN_PAGE_SIZE"), 50),
		AuditEnabled:          parseBoolDefault(k.String("AUDIT_ENABLED"), true),

		LogFormat:         valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:          valueOrDefault(k.String("LOG_LEVEL"), "info"),
		MetricsNamespace:  valueOrDefault(k.String("METRICS_NAMESPACE"), "designer_pricing"),
		MetricsBuckets:    k.String("METRICS_BUCKETS_MS"),
		OTELServiceName:   valueOrDefault(k.String("OTEL_SERVICE_NAME"), "designer-pricing"),
		OTELExporter:      valueOrDefault(k.String("OTEL_EXPORTER"), "none"),
		OTELEndpoint:      strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTELSamplingRatio: parseFloat(k.String("OTEL_SAMPLING_RATIO"), 1),
		PprofEnable:       parseBool(k.String("PPROF_ENABLE")),
		PprofUser:         strings.TrimSpace(k.String("PPROF_BASIC_AUTH_USER")),
		PprofPass:         strings.TrimSpace(k.String("PPROF_BASIC_AUTH_PASS")),
		ShutdownTimeout:   parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),
	}

	switch cfg.StoreBackend {
	case StoreBackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required")
		}
	case StoreBackendMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q", cfg.StoreBackend)
	}
	switch cfg.RateLimitStrategy {
	case "sliding", "fixed":
	default:
		return nil, fmt.Errorf("unsupported RATE_LIMIT_STRATEGY %q", cfg.RateLimitStrategy)
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
