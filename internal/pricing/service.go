package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/designer-pricing/internal/obs"
	"github.com/noah-isme/designer-pricing/internal/promo"
	"github.com/noah-isme/designer-pricing/internal/resilience"
	"github.com/noah-isme/designer-pricing/internal/store"
	"github.com/noah-isme/designer-pricing/internal/tenant"
)

// ErrFetchFailed wraps I/O failures while loading configuration or promo
// data. Callers should treat it as retryable; no price is produced.
var ErrFetchFailed = errors.New("pricing: fetch failed")

// Configuration sources reported by ResolveConfig.
const (
	SourceProduct = "product"
	SourceGlobal  = "global"
	SourceDefault = "default"
)

// ConfigSource loads stored configurations for the bound shop.
type ConfigSource interface {
	Get(ctx context.Context, productID string) (StoredConfig, bool, error)
}

// PromoSource loads active promo codes for the bound shop.
type PromoSource interface {
	FindActive(ctx context.Context, code string) (promo.Code, bool, error)
}

// Service resolves configurations and promo codes through the tenant-scoped
// store and runs the calculation.
type Service struct {
	Configs      ConfigSource
	Promos       PromoSource
	Cache        ConfigCache
	FetchTimeout time.Duration
	// Breaker, when set, fails fetches fast while the store keeps failing.
	Breaker *resilience.Breaker
	Logger  *zerolog.Logger
}

// ResolveConfig returns the product configuration, else the shop's global
// configuration, else the empty configuration. Absence is never an error.
func (s *Service) ResolveConfig(ctx context.Context, productID string) (Configuration, string, error) {
	if s == nil || s.Configs == nil {
		return Configuration{}, "", errors.New("pricing service not configured")
	}
	productID = strings.TrimSpace(productID)
	if productID != "" && productID != GlobalConfigID {
		cfg, found, err := s.lookup(ctx, productID)
		if err != nil {
			return Configuration{}, "", err
		}
		if found {
			return cfg, SourceProduct, nil
		}
	}
	cfg, found, err := s.lookup(ctx, GlobalConfigID)
	if err != nil {
		return Configuration{}, "", err
	}
	if found {
		s.debug(ctx).Str("product_id", productID).Msg("pricing config fell back to global settings")
		return cfg, SourceGlobal, nil
	}
	s.debug(ctx).Str("product_id", productID).Msg("pricing config absent, using empty configuration")
	return Configuration{}, SourceDefault, nil
}

func (s *Service) lookup(ctx context.Context, productID string) (Configuration, bool, error) {
	if s.Cache != nil {
		entry, hit, err := s.Cache.Get(ctx, productID)
		switch {
		case err != nil:
			s.cacheResult("error")
			if s.Logger != nil {
				s.Logger.Warn().Err(err).Str("product_id", productID).Msg("pricing config cache read failed")
			}
		case hit:
			s.cacheResult("hit")
			return entry.Config, entry.Found, nil
		default:
			s.cacheResult("miss")
		}
	}
	stored, found, err := s.Configs.Get(ctx, productID)
	if err != nil {
		return Configuration{}, false, err
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, productID, CachedConfig{Found: found, Config: stored.Config}); err != nil && s.Logger != nil {
			s.Logger.Warn().Err(err).Str("product_id", productID).Msg("pricing config cache write failed")
		}
	}
	return stored.Config, found, nil
}

// Calculate fetches the configuration and, when requested, the promo code
// concurrently, then prices req. Fetch failures produce ErrFetchFailed;
// store.ErrTenantRequired is returned unwrapped by the fetch layer.
func (s *Service) Calculate(ctx context.Context, req Request) (Breakdown, error) {
	start := time.Now()
	ctx, span := otel.Tracer("pricing").Start(ctx, "pricing.calculate")
	defer span.End()
	span.SetAttributes(
		attribute.String("shop", tenant.Current(ctx)),
		attribute.String("pricing.product_id", req.ProductID),
		attribute.Int("pricing.quantity", req.Quantity),
	)

	cfg, code, err := s.fetch(ctx, req)
	if err != nil {
		result := "fetch_failed"
		if errors.Is(err, store.ErrTenantRequired) {
			result = "tenant_required"
		}
		s.observe(result, start)
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		return Breakdown{}, err
	}

	breakdown := Calculate(cfg, req, code)
	s.observePromo(ctx, req.PromoCode, code, breakdown)
	s.observe("ok", start)
	span.SetAttributes(attribute.String("pricing.total", breakdown.Total.String()))
	return breakdown, nil
}

func (s *Service) fetch(ctx context.Context, req Request) (Configuration, *promo.Code, error) {
	if s == nil || s.Configs == nil {
		return Configuration{}, nil, errors.New("pricing service not configured")
	}
	var (
		cfg  Configuration
		code *promo.Code
	)
	// The fetch timeout applies inside load so an expiry counts against the
	// breaker, while the caller hanging up does not.
	load := func(ctx context.Context) error {
		if s.FetchTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.FetchTimeout)
			defer cancel()
		}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			resolved, _, err := s.ResolveConfig(gctx, req.ProductID)
			if err != nil {
				return err
			}
			cfg = resolved
			return nil
		})
		if wanted := promo.Normalize(req.PromoCode); wanted != "" && s.Promos != nil {
			g.Go(func() error {
				found, ok, err := s.Promos.FindActive(gctx, wanted)
				if err != nil {
					return err
				}
				if ok {
					code = &found
				}
				return nil
			})
		}
		return g.Wait()
	}

	var err error
	if s.Breaker != nil {
		err = s.Breaker.Do(ctx, load, isTenantError)
	} else {
		err = load(ctx)
	}
	if err != nil {
		if isTenantError(err) {
			return Configuration{}, nil, err
		}
		return Configuration{}, nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return cfg, code, nil
}

func isTenantError(err error) bool {
	return errors.Is(err, store.ErrTenantRequired) || errors.Is(err, store.ErrTenantMismatch)
}

func (s *Service) observe(result string, start time.Time) {
	if obs.PricingCalculationsTotal != nil {
		obs.PricingCalculationsTotal.WithLabelValues(result).Inc()
	}
	if obs.PricingCalculationLatency != nil {
		obs.PricingCalculationLatency.WithLabelValues(result).Observe(obs.DurationMillis(time.Since(start)))
	}
}

func (s *Service) observePromo(ctx context.Context, requested string, code *promo.Code, b Breakdown) {
	if promo.Normalize(requested) == "" {
		return
	}
	result := "applied"
	switch {
	case code == nil:
		result = "not_found"
	case b.AppliedPromo == nil:
		result = "ineligible"
	}
	if obs.PromoEvaluationsTotal != nil {
		obs.PromoEvaluationsTotal.WithLabelValues(result).Inc()
	}
	if result != "applied" {
		s.debug(ctx).Str("promo_code", promo.Normalize(requested)).Str("result", result).Msg("promo code ignored")
	}
}

func (s *Service) cacheResult(result string) {
	if obs.PricingConfigCacheTotal != nil {
		obs.PricingConfigCacheTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) debug(ctx context.Context) *zerolog.Event {
	if s == nil || s.Logger == nil {
		return nil
	}
	return s.Logger.Debug().Str("shop", tenant.Current(ctx))
}
