package promo_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/designer-pricing/internal/lock"
	"github.com/noah-isme/designer-pricing/internal/promo"
	"github.com/noah-isme/designer-pricing/internal/repo"
	"github.com/noah-isme/designer-pricing/internal/store"
	"github.com/noah-isme/designer-pricing/internal/tenant"
)

type fixture struct {
	svc   *promo.Service
	codes repo.PromoCodes
	mr    *miniredis.Miniredis
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	scoped, err := store.NewScoped(store.ScopedConfig{Inner: store.NewMemory()})
	require.NoError(t, err)
	codes := repo.PromoCodes{Store: scoped}
	locker := lock.New(client, 5*time.Second)
	locker.RetryBackoff = time.Millisecond

	svc := &promo.Service{
		Repo:    codes,
		Lock:    locker,
		LockTTL: 5 * time.Second,
		Now:     func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
	return fixture{svc: svc, codes: codes, mr: mr}
}

func (f fixture) seed(t *testing.T, ctx context.Context, code promo.Code) {
	t.Helper()
	_, err := f.codes.Save(ctx, code)
	require.NoError(t, err)
}

func TestRedeemIncrementsOncePerOrder(t *testing.T) {
	f := newFixture(t)
	ctx := tenant.With(context.Background(), "acme")
	f.seed(t, ctx, promo.Code{Code: "SAVE10", Active: true, DiscountType: promo.DiscountPercentage, DiscountValue: decimal.NewFromInt(10)})

	res, err := f.svc.Redeem(ctx, "save10", "order-1")
	require.NoError(t, err)
	require.Equal(t, 1, res.UsageCount)
	require.False(t, res.Duplicate)

	res, err = f.svc.Redeem(ctx, "SAVE10", "order-1")
	require.NoError(t, err)
	require.True(t, res.Duplicate)
	require.Equal(t, 1, res.UsageCount)

	got, _, err := f.codes.Get(ctx, "SAVE10")
	require.NoError(t, err)
	require.Equal(t, 1, got.UsageCount)
}

func TestRedeemHonoursUsageLimitUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	ctx := tenant.With(context.Background(), "acme")
	limit := 3
	f.seed(t, ctx, promo.Code{Code: "LIMITED", Active: true, UsageLimit: &limit, DiscountType: promo.DiscountFixedAmount, DiscountValue: decimal.NewFromInt(5)})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		exhausted int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Redeem(ctx, "LIMITED", "order-"+string(rune('a'+i)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, promo.ErrUsageLimitReached):
				exhausted++
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 3, succeeded)
	require.Equal(t, 7, exhausted)
	got, _, err := f.codes.Get(ctx, "LIMITED")
	require.NoError(t, err)
	require.Equal(t, 3, got.UsageCount)
	n, err := f.codes.Redemptions(ctx, "LIMITED")
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestRedeemRejections(t *testing.T) {
	f := newFixture(t)
	ctx := tenant.With(context.Background(), "acme")
	f.seed(t, ctx, promo.Code{Code: "OFF", Active: false, DiscountType: promo.DiscountPercentage, DiscountValue: decimal.NewFromInt(10)})

	_, err := f.svc.Redeem(ctx, "OFF", "order-1")
	require.ErrorIs(t, err, promo.ErrInactive)
	n, err := f.codes.Redemptions(ctx, "OFF")
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = f.svc.Redeem(ctx, "MISSING", "order-1")
	require.ErrorIs(t, err, promo.ErrNotFound)

	_, err = f.svc.Redeem(ctx, "OFF", " ")
	require.ErrorIs(t, err, promo.ErrInvalidRedemption)

	_, err = f.svc.Redeem(context.Background(), "OFF", "order-1")
	require.ErrorIs(t, err, store.ErrTenantRequired)

	// Codes never leak across shops.
	_, err = f.svc.Redeem(tenant.With(context.Background(), "bolt"), "OFF", "order-1")
	require.ErrorIs(t, err, promo.ErrNotFound)
}

func TestRedeemFailsWhenLockIsHeld(t *testing.T) {
	f := newFixture(t)
	ctx := tenant.With(context.Background(), "acme")
	f.seed(t, ctx, promo.Code{Code: "BUSY", Active: true, DiscountType: promo.DiscountPercentage, DiscountValue: decimal.NewFromInt(10)})
	require.NoError(t, f.mr.Set(tenant.PrefixKey("acme", "promo:lock:BUSY"), "other"))

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err := f.svc.Redeem(waitCtx, "BUSY", "order-1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	got, _, err := f.codes.Get(ctx, "BUSY")
	require.NoError(t, err)
	require.Zero(t, got.UsageCount)
}
