package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func TestSelectTierIgnoresListOrder(t *testing.T) {
	tiers := []BulkTier{
		{MinQuantity: 10, DiscountType: TierPercentage, DiscountValue: d("5")},
		{MinQuantity: 50, DiscountType: TierPercentage, DiscountValue: d("10")},
		{MinQuantity: 100, DiscountType: TierPercentage, DiscountValue: d("15")},
	}
	reversed := []BulkTier{tiers[2], tiers[1], tiers[0]}

	for _, qty := range []int{1, 9, 10, 49, 50, 99, 100, 5000} {
		a, okA := SelectTier(qty, BulkPricing{Enabled: true, Tiers: tiers})
		b, okB := SelectTier(qty, BulkPricing{Enabled: true, Tiers: reversed})
		require.Equal(t, okA, okB)
		require.Equal(t, a.MinQuantity, b.MinQuantity)
	}

	tier, ok := SelectTier(75, BulkPricing{Enabled: true, Tiers: reversed})
	require.True(t, ok)
	require.Equal(t, 50, tier.MinQuantity)
}

func TestSelectTierHonoursMaxAndEnabled(t *testing.T) {
	bp := BulkPricing{Enabled: true, Tiers: []BulkTier{
		{MinQuantity: 10, MaxQuantity: intp(19), DiscountType: TierFixed, DiscountValue: d("1")},
	}}
	_, ok := SelectTier(20, bp)
	require.False(t, ok)
	_, ok = SelectTier(19, bp)
	require.True(t, ok)

	bp.Enabled = false
	_, ok = SelectTier(15, bp)
	require.False(t, ok)
}

func TestBulkDiscount(t *testing.T) {
	requireDec(t, "6", BulkDiscount(d("60"), 10, BulkTier{DiscountType: TierPercentage, DiscountValue: d("10")}))
	requireDec(t, "20", BulkDiscount(d("60"), 10, BulkTier{DiscountType: TierFixed, DiscountValue: d("2")}))
	requireDec(t, "60", BulkDiscount(d("60"), 10, BulkTier{DiscountType: TierFixed, DiscountValue: d("7")}))
	requireDec(t, "0", BulkDiscount(d("0"), 10, BulkTier{DiscountType: TierFixed, DiscountValue: d("7")}))
	requireDec(t, "0", BulkDiscount(d("60"), 10, BulkTier{DiscountType: "bogus", DiscountValue: d("7")}))
}

func TestBulkDiscountIsClampedToRunningTotal(t *testing.T) {
	cases := []struct {
		name    string
		running string
		tier    BulkTier
		want    string
	}{
		{"fixed above running", "50", BulkTier{DiscountType: TierFixed, DiscountValue: d("6")}, "50"},
		{"percentage above 100", "50", BulkTier{DiscountType: TierPercentage, DiscountValue: d("150")}, "50"},
		{"negative value", "50", BulkTier{DiscountType: TierFixed, DiscountValue: d("-1")}, "0"},
		{"negative running", "-5", BulkTier{DiscountType: TierPercentage, DiscountValue: d("10")}, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			requireDec(t, tc.want, BulkDiscount(d(tc.running), 10, tc.tier))
		})
	}
}

func TestCalculateBulkNeverEatsPrintingCost(t *testing.T) {
	cfg := Configuration{
		GlobalPricing: GlobalPricing{Enabled: true, BasePrice: d("5")},
		BulkPricing:   BulkPricing{Enabled: true, Tiers: []BulkTier{{MinQuantity: 1, DiscountType: TierFixed, DiscountValue: d("8")}}},
		PrintingMethods: PrintingMethods{
			DTG: DTG{Enabled: true, BasePrice: d("3")},
		},
	}
	out := Calculate(cfg, Request{Quantity: 10}, nil)
	// 50 before bulk; the 80 fixed discount stops at 50, leaving printing (30).
	requireDec(t, "50", out.BulkDiscount)
	requireDec(t, "30", out.Total)
	requireDec(t, "3", out.PerUnitPrice)
}
