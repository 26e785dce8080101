package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/designer-pricing/internal/promo"
)

// Calculate prices req under cfg. The pipeline is fixed:
//
//	(globalFee + element charges) * quantity
//	- bulk tier discount
//	+ printing cost (not discounted by the tier)
//	+/- pricing rules, in order
//	- promo discount
//
// code is the active promo looked up for req.PromoCode, or nil. An ineligible
// code is ignored. Calculate has no side effects.
func Calculate(cfg Configuration, req Request, code *promo.Code) Breakdown {
	quantity := req.Quantity
	if quantity < 1 {
		quantity = 1
	}
	qty := decimal.NewFromInt(int64(quantity))

	out := Breakdown{AppliedRules: []AppliedRule{}}
	if cfg.GlobalPricing.Enabled {
		out.GlobalFee = cfg.GlobalPricing.BasePrice
	}
	out.TotalElementCharges, out.ElementBreakdown = ElementCharges(req.Elements, cfg)

	total := out.GlobalFee.Add(out.TotalElementCharges).Mul(qty)

	if tier, ok := SelectTier(quantity, cfg.BulkPricing); ok {
		out.BulkDiscount = BulkDiscount(total, quantity, tier)
		out.AppliedTier = &tier
		total = total.Sub(out.BulkDiscount)
	}

	numColors := 1
	if req.NumColors != nil {
		numColors = *req.NumColors
	}
	if details := SelectPrintingMethod(cfg.PrintingMethods, PrintRequest{
		Method:    req.SelectedMethod,
		NumColors: numColors,
		PrintSize: req.PrintSize,
		Quantity:  quantity,
	}); details != nil {
		out.PrintingCost = details.CostPerUnit
		out.PrintingMethodDetails = details
		// The exact total avoids drift from re-multiplying a rounded per-unit cost.
		total = total.Add(details.TotalCost)
	}

	total, out.AppliedRules = ApplyRules(total, quantity, cfg.PricingRules, CountElements(req.Elements))

	if code != nil && code.Eligible(total) {
		out.PromoDiscount = code.Discount(total)
		out.AppliedPromo = &AppliedPromo{
			Code:          code.Code,
			DiscountType:  string(code.DiscountType),
			DiscountValue: code.DiscountValue,
		}
		total = total.Sub(out.PromoDiscount)
	}

	out.Total = total
	out.PerUnitPrice = total.Div(qty)
	return out
}
