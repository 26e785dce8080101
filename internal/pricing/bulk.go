package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// SelectTier returns the qualifying tier with the highest minimum quantity,
// regardless of the order tiers are listed in.
func SelectTier(quantity int, bp BulkPricing) (BulkTier, bool) {
	if !bp.Enabled || len(bp.Tiers) == 0 {
		return BulkTier{}, false
	}
	tiers := make([]BulkTier, len(bp.Tiers))
	copy(tiers, bp.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].MinQuantity > tiers[j].MinQuantity
	})
	for _, tier := range tiers {
		if quantity < tier.MinQuantity {
			continue
		}
		if tier.MaxQuantity != nil && quantity > *tier.MaxQuantity {
			continue
		}
		return tier, true
	}
	return BulkTier{}, false
}

// BulkDiscount computes the tier discount against running. Fixed discounts
// are per unit and never exceed running.
func BulkDiscount(running decimal.Decimal, quantity int, tier BulkTier) decimal.Decimal {
	var discount decimal.Decimal
	switch tier.DiscountType {
	case TierPercentage:
		discount = running.Mul(tier.DiscountValue).Div(decimal.NewFromInt(100))
	case TierFixed:
		discount = tier.DiscountValue.Mul(decimal.NewFromInt(int64(quantity)))
	default:
		return decimal.Zero
	}
	if discount.IsNegative() || !running.IsPositive() {
		return decimal.Zero
	}
	return decimal.Min(discount, running)
}
