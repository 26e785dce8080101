package promo

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

	"github.com/noah-isme/designer-pricing/internal/obs"
	"github.com/noah-isme/designer-pricing/internal/store"
	"github.com/noah-isme/designer-pricing/internal/tenant"
)

var (
	// ErrNotFound is returned when the promo code does not exist for the bound shop.
	ErrNotFound = errors.New("promo code not found")
	// ErrInvalidRedemption is returned when a redemption lacks its code or order id.
	ErrInvalidRedemption = errors.New("promo code and order id are required")
)

// Redemption records a single promo code use by a finalized order.
type Redemption struct {
	ID         string    `json:"id,omitempty"`
	Shop       string    `json:"shop,omitempty"`
	Code       string    `json:"code"`
	OrderID    string    `json:"orderId"`
	RedeemedAt time.Time `json:"redeemedAt"`
}

// Repository captures the persistence operations the promo service needs.
// Implementations are tenant-scoped through the context.
type Repository interface {
	Get(ctx context.Context, code string) (Code, bool, error)
	IncrementUsage(ctx context.Context, code string) (Code, error)
	RecordRedemption(ctx context.Context, r Redemption) (bool, error)
	RemoveRedemption(ctx context.Context, code, orderID string) error
}

// Locker serialises work on a key across processes.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// RedeemResult describes the outcome of a redemption.
type RedeemResult struct {
	Code       string `json:"code"`
	OrderID    string `json:"orderId"`
	UsageCount int    `json:"usageCount"`
	Duplicate  bool   `json:"duplicate"`
}

// Service performs usage-limited promo redemptions. The check against the
// usage limit and the increment happen under one lock per (shop, code) so two
// concurrent checkouts cannot both pass the check.
type Service struct {
	Repo    Repository
	Lock    Locker
	LockTTL time.Duration
	Now     func() time.Time
	Logger  *zerolog.Logger
}

// Redeem records orderID's use of code and increments the usage count.
// Redeeming the same order twice is a no-op reported as Duplicate.
func (s *Service) Redeem(ctx context.Context, code, orderID string) (RedeemResult, error) {
	if s == nil || s.Repo == nil || s.Lock == nil {
		return RedeemResult{}, errors.New("promo service not configured")
	}
	shop := tenant.Current(ctx)
	if shop == "" {
		return RedeemResult{}, fmt.Errorf("redeem promo: %w", store.ErrTenantRequired)
	}
	normalized := Normalize(code)
	orderID = strings.TrimSpace(orderID)
	if normalized == "" || orderID == "" {
		return RedeemResult{}, ErrInvalidRedemption
	}

	ctx, span := otel.Tracer("promo").Start(ctx, "promo.redeem")
	defer span.End()
	span.SetAttributes(
		attribute.String("shop", shop),
		attribute.String("promo.code", normalized),
	)

	var result RedeemResult
	key := tenant.PrefixKey(shop, "promo:lock:"+normalized)
	err := s.Lock.WithLock(ctx, key, s.lockTTL(), func(ctx context.Context) error {
		var err error
		result, err = s.redeemLocked(ctx, shop, normalized, orderID)
		return err
	})
	s.record(shop, normalized, orderID, result, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "redeem failed")
	} else {
		span.SetAttributes(attribute.Bool("promo.duplicate", result.Duplicate))
	}
	return result, err
}

func (s *Service) redeemLocked(ctx context.Context, shop, code, orderID string) (RedeemResult, error) {
	current, found, err := s.Repo.Get(ctx, code)
	if err != nil {
		return RedeemResult{}, err
	}
	if !found {
		return RedeemResult{}, ErrNotFound
	}
	result := RedeemResult{Code: code, OrderID: orderID, UsageCount: current.UsageCount}

	recorded, err := s.Repo.RecordRedemption(ctx, Redemption{Shop: shop, Code: code, OrderID: orderID, RedeemedAt: s.now().UTC()})
	if err != nil {
		return RedeemResult{}, err
	}
	if !recorded {
		result.Duplicate = true
		return result, nil
	}
	if !current.Active || current.Exhausted() {
		if rmErr := s.Repo.RemoveRedemption(ctx, code, orderID); rmErr != nil {
			return RedeemResult{}, rmErr
		}
		if !current.Active {
			return result, ErrInactive
		}
		return result, ErrUsageLimitReached
	}

	updated, err := s.Repo.IncrementUsage(ctx, code)
	if err != nil {
		if rmErr := s.Repo.RemoveRedemption(ctx, code, orderID); rmErr != nil {
			return RedeemResult{}, errors.Join(err, rmErr)
		}
		return RedeemResult{}, err
	}
	result.UsageCount = updated.UsageCount
	return result, nil
}

func (s *Service) record(shop, code, orderID string, result RedeemResult, err error) {
	outcome := "redeemed"
	switch {
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, ErrInactive):
		outcome = "inactive"
	case errors.Is(err, ErrUsageLimitReached):
		outcome = "exhausted"
	case err != nil:
		outcome = "error"
	case result.Duplicate:
		outcome = "duplicate"
	}
	if obs.PromoRedemptionsTotal != nil {
		obs.PromoRedemptionsTotal.WithLabelValues(outcome).Inc()
	}
	if s.Logger == nil {
		return
	}
	evt := s.Logger.Info()
	if outcome == "error" {
		evt = s.Logger.Error().Err(err)
	}
	evt.Str("shop", shop).
		Str("code", code).
		Str("order_id", orderID).
		Str("result", outcome).
		Int("usage_count", result.UsageCount).
		Msg("promo redemption")
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL > 0 {
		return s.LockTTL
	}
	return 10 * time.Second
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
