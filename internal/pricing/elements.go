package pricing

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// UploadsKey is the element breakdown key aggregating image and upload fees.
const UploadsKey = "image_uploads"

func isTextType(t string) bool {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "text", "field", "textarea":
		return true
	}
	return false
}

func isUploadType(t string) bool {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "image", "upload":
		return true
	}
	return false
}

// TextCharge prices a single text element. Charges of exactly zero are never
// raised to the minimum so untouched fields stay free.
func TextCharge(text string, tp TextPricing) decimal.Decimal {
	var charge decimal.Decimal
	switch tp.Mode {
	case TextModePerField:
		charge = tp.PricePerField
	case TextModePerCharacter:
		taxable := utf8.RuneCountInString(text) - tp.FreeCharacters
		if taxable < 0 {
			taxable = 0
		}
		charge = tp.PricePerCharacter.Mul(decimal.NewFromInt(int64(taxable)))
	default:
		return decimal.Zero
	}
	if tp.MinCharge != nil && charge.IsPositive() && charge.LessThan(*tp.MinCharge) {
		charge = *tp.MinCharge
	}
	if tp.MaxCharge != nil && charge.GreaterThan(*tp.MaxCharge) {
		charge = *tp.MaxCharge
	}
	return charge
}

// ElementCharges sums the per-element charges for elements under cfg.
// Positive text charges are recorded per element id; image and upload fees
// are recorded once under UploadsKey. Other element types are free.
func ElementCharges(elements []Element, cfg Configuration) (decimal.Decimal, map[string]decimal.Decimal) {
	total := decimal.Zero
	breakdown := map[string]decimal.Decimal{}
	uploads := 0
	for _, el := range elements {
		switch {
		case isTextType(el.Type):
			charge := TextCharge(el.Text, cfg.TextPricing)
			if charge.IsPositive() {
				breakdown[el.ID] = breakdown[el.ID].Add(charge)
				total = total.Add(charge)
			}
		case isUploadType(el.Type):
			uploads++
		}
	}
	if uploads > 0 && cfg.ImagePricing.UploadFee.IsPositive() {
		fee := cfg.ImagePricing.UploadFee.Mul(decimal.NewFromInt(int64(uploads)))
		breakdown[UploadsKey] = fee
		total = total.Add(fee)
	}
	return total, breakdown
}
