package promo

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNormalize(t *testing.T) {
	require.Equal(t, "SAVE10", Normalize("  save10 "))
	require.Empty(t, Normalize("   "))
}

func TestValidate(t *testing.T) {
	limit := 3
	minSpend := dec("50")
	base := Code{Code: "X", Active: true, UsageLimit: &limit, UsageCount: 2, MinOrderAmount: &minSpend, DiscountType: DiscountPercentage, DiscountValue: dec("10")}

	require.NoError(t, base.Validate(dec("50")))

	inactive := base
	inactive.Active = false
	require.ErrorIs(t, inactive.Validate(dec("100")), ErrInactive)

	used := base
	used.UsageCount = 3
	require.ErrorIs(t, used.Validate(dec("100")), ErrUsageLimitReached)
	require.True(t, used.Exhausted())

	require.ErrorIs(t, base.Validate(dec("49.99")), ErrMinimumSpendUnmet)
	require.False(t, base.Eligible(dec("49.99")))

	unlimited := base
	unlimited.UsageLimit = nil
	unlimited.UsageCount = 1_000_000
	require.False(t, unlimited.Exhausted())
}

func TestDiscount(t *testing.T) {
	pct := Code{DiscountType: DiscountPercentage, DiscountValue: dec("15")}
	fixed := Code{DiscountType: DiscountFixedAmount, DiscountValue: dec("20")}

	require.True(t, pct.Discount(dec("200")).Equal(dec("30")))
	require.True(t, fixed.Discount(dec("200")).Equal(dec("20")))
	require.True(t, fixed.Discount(dec("12.5")).Equal(dec("12.5")))
	require.True(t, fixed.Discount(dec("0")).IsZero())
	require.True(t, fixed.Discount(dec("-5")).IsZero())
	require.True(t, Code{DiscountType: "bogo", DiscountValue: dec("5")}.Discount(dec("10")).IsZero())

	over := Code{DiscountType: DiscountPercentage, DiscountValue: dec("150")}
	require.True(t, over.Discount(dec("40")).Equal(dec("40")))
}
