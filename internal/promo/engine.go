package promo

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInactive is returned when the promo code has been switched off by the merchant.
	ErrInactive = errors.New("promo code inactive")
	// ErrUsageLimitReached indicates the promo code has exhausted its usage quota.
	ErrUsageLimitReached = errors.New("promo code usage limit reached")
	// ErrMinimumSpendUnmet indicates the running total did not meet the promo requirement.
	ErrMinimumSpendUnmet = errors.New("promo code minimum order amount not met")
)

// DiscountType enumerates promo discount kinds.
type DiscountType string

const (
	DiscountPercentage  DiscountType = "percentage"
	DiscountFixedAmount DiscountType = "fixed_amount"
)

// Code is a merchant-defined promo code. (shop, code) is unique.
type Code struct {
	ID             string           `json:"id,omitempty"`
	Shop           string           `json:"shop,omitempty"`
	Code           string           `json:"code" validate:"required,max=64"`
	Active         bool             `json:"active"`
	UsageLimit     *int             `json:"usageLimit,omitempty" validate:"omitempty,gte=0"`
	UsageCount     int              `json:"usageCount" validate:"gte=0"`
	MinOrderAmount *decimal.Decimal `json:"minOrderAmount,omitempty" validate:"omitempty,gte=0"`
	DiscountType   DiscountType     `json:"discountType" validate:"required,oneof=percentage fixed_amount"`
	DiscountValue  decimal.Decimal  `json:"discountValue" validate:"gte=0"`
	CreatedAt      *time.Time       `json:"createdAt,omitempty"`
	UpdatedAt      *time.Time       `json:"updatedAt,omitempty"`
}

// Normalize canonicalises a code for lookup and storage.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate reports why the code cannot be applied to total, or nil when it can.
func (c Code) Validate(total decimal.Decimal) error {
	if !c.Active {
		return ErrInactive
	}
	if c.Exhausted() {
		return ErrUsageLimitReached
	}
	if c.MinOrderAmount != nil && total.LessThan(*c.MinOrderAmount) {
		return ErrMinimumSpendUnmet
	}
	return nil
}

// Exhausted reports whether the usage limit has been reached.
func (c Code) Exhausted() bool {
	return c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit
}

// Eligible reports whether the code applies to total.
func (c Code) Eligible(total decimal.Decimal) bool {
	return c.Validate(total) == nil
}

// Discount returns the amount the code takes off total. The result never
// exceeds total and is zero for non-positive totals.
func (c Code) Discount(total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() || !c.DiscountValue.IsPositive() {
		return decimal.Zero
	}
	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		discount = total.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
	case DiscountFixedAmount:
		discount = c.DiscountValue
	default:
		return decimal.Zero
	}
	return decimal.Min(discount, total)
}
