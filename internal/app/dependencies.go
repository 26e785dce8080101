// Package app wires the shared services used by the API and worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/noah-isme/designer-pricing/internal/audit"
	"github.com/noah-isme/designer-pricing/internal/auth"
	"github.com/noah-isme/designer-pricing/internal/common"
	"github.com/noah-isme/designer-pricing/internal/config"
	"github.com/noah-isme/designer-pricing/internal/db"
	"github.com/noah-isme/designer-pricing/internal/lock"
	"github.com/noah-isme/designer-pricing/internal/obs"
	"github.com/noah-isme/designer-pricing/internal/pricing"
	"github.com/noah-isme/designer-pricing/internal/promo"
	"github.com/noah-isme/designer-pricing/internal/ratelimit"
	"github.com/noah-isme/designer-pricing/internal/repo"
	"github.com/noah-isme/designer-pricing/internal/resilience"
	"github.com/noah-isme/designer-pricing/internal/store"
)

// Dependencies enumerates the services shared across binaries.
type Dependencies struct {
	Config    *config.Config
	Logger    zerolog.Logger
	DB        *pgxpool.Pool
	Redis     redis.UniversalClient
	Store     store.Client
	Validator *validator.Validate
	Verifier  *auth.Verifier
	Limiter   ratelimit.Limiter
	// MeterProvider receives the Redis client metrics; the global provider
	// unless the caller installs one.
	MeterProvider metric.MeterProvider
	// Queue is nil when no task client is configured; redemptions then
	// answer 503.
	Queue promo.Enqueuer

	Configs     repo.PricingConfigs
	PromoCodes  repo.PromoCodes
	ConfigCache *pricing.RedisCache
	Pricing     *pricing.Service
	Promo       *promo.Service
	Audit       audit.Service

	closers []func() error
}

// InstrumentRedis attaches otel tracing and metrics to rdb, reporting metrics
// to mp.
func InstrumentRedis(rdb redis.UniversalClient, mp metric.MeterProvider) error {
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		return fmt.Errorf("redis tracing: %w", err)
	}
	if err := redisotel.InstrumentMetrics(rdb, redisotel.WithMeterProvider(mp)); err != nil {
		return fmt.Errorf("redis metrics: %w", err)
	}
	return nil
}

// Build connects to the configured backends and assembles the services. The
// caller owns the returned Dependencies and must Close them.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:        cfg,
		Logger:        logger,
		Validator:     common.NewValidator(),
		MeterProvider: otel.GetMeterProvider(),
	}

	inner, err := deps.openStore(ctx)
	if err != nil {
		deps.Close()
		return nil, err
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	deps.closers = append(deps.closers, rdb.Close)
	if err := InstrumentRedis(rdb, deps.MeterProvider); err != nil {
		logger.Error().Err(err).Msg("instrument redis")
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		deps.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if err := deps.assemble(inner, rdb); err != nil {
		deps.Close()
		return nil, err
	}

	redisConn, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("parse redis uri for tasks: %w", err)
	}
	tasks := asynq.NewClient(redisConn)
	deps.closers = append(deps.closers, tasks.Close)
	deps.Queue = tasks
	return deps, nil
}

// NewForTests assembles the services over an in-memory store and the given
// Redis client. Nothing is dialled.
func NewForTests(cfg *config.Config, logger zerolog.Logger, rdb redis.UniversalClient) (*Dependencies, error) {
	deps := &Dependencies{
		Config:        cfg,
		Logger:        logger,
		Validator:     common.NewValidator(),
		MeterProvider: otel.GetMeterProvider(),
	}
	if err := deps.assemble(store.NewMemory(), rdb); err != nil {
		return nil, err
	}
	return deps, nil
}

func (d *Dependencies) openStore(ctx context.Context) (store.Client, error) {
	cfg := d.Config
	if cfg.StoreBackend == config.StoreBackendMemory {
		d.Logger.Warn().Msg("using in-memory document store; data is lost on restart")
		return store.NewMemory(), nil
	}

	if cfg.MigrateOnStart {
		if err := db.Up(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = cfg.OTELServiceName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	d.closers = append(d.closers, func() error { pool.Close(); return nil })
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	d.DB = pool
	return store.NewPostgres(pool), nil
}

func (d *Dependencies) assemble(inner store.Client, rdb redis.UniversalClient) error {
	cfg := d.Config
	scoped, err := store.NewScoped(store.ScopedConfig{
		Inner:  inner,
		Exempt: cfg.StoreExemptCollections,
		Policy: store.ParseExplicitTenantPolicy(cfg.StoreExplicitTenantPolicy),
		Logger: &d.Logger,
	})
	if err != nil {
		return fmt.Errorf("scoped store: %w", err)
	}
	d.Store = scoped
	d.Redis = rdb

	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
		ClockSkew: 30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("jwt verifier: %w", err)
	}
	d.Verifier = verifier

	switch cfg.RateLimitStrategy {
	case "fixed":
		fixed, err := ratelimit.NewFixedWindow(rdb, "ratelimit")
		if err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		d.Limiter = fixed
	default:
		d.Limiter = ratelimit.SlidingWindow{Client: rdb, Prefix: "ratelimit:"}
	}

	locker := lock.New(rdb, cfg.PromoLockTTL)
	locker.RetryBackoff = cfg.LockRetryBackoff

	d.Configs = repo.PricingConfigs{Store: scoped}
	d.PromoCodes = repo.PromoCodes{Store: scoped}
	d.ConfigCache = pricing.NewRedisCache(rdb, cfg.PricingConfigCacheTTL)
	breaker := resilience.NewBreaker(cfg.BreakerMinRequests, cfg.BreakerFailureRatio, cfg.BreakerOpenFor).
		WithTarget("pricing-store").
		WithLogger(d.Logger)
	d.Pricing = &pricing.Service{
		Configs:      d.Configs,
		Promos:       d.PromoCodes,
		Cache:        d.ConfigCache,
		FetchTimeout: cfg.PricingFetchTimeout,
		Breaker:      breaker,
		Logger:       &d.Logger,
	}
	d.Promo = &promo.Service{
		Repo:    d.PromoCodes,
		Lock:    locker,
		LockTTL: cfg.PromoLockTTL,
		Logger:  &d.Logger,
	}
	d.Audit = audit.Service{Store: scoped, Enabled: cfg.AuditEnabled}
	return nil
}

// Close releases connections in reverse order of acquisition.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
