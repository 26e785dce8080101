package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// GlobalConfigID is the product id under which a shop's fallback configuration is stored.
const GlobalConfigID = "global_settings_config"

// TextMode enumerates text pricing strategies.
type TextMode string

const (
	TextModeFree         TextMode = "free"
	TextModePerField     TextMode = "per_field"
	TextModePerCharacter TextMode = "per_character"
)

// TierDiscountType enumerates bulk tier discount kinds.
type TierDiscountType string

const (
	TierPercentage TierDiscountType = "percentage"
	TierFixed      TierDiscountType = "fixed"
)

// Configuration is the merchant-defined pricing configuration for a product
// or, under GlobalConfigID, for the whole shop. The zero value disables all
// pricing.
type Configuration struct {
	GlobalPricing   GlobalPricing   `json:"globalPricing"`
	TextPricing     TextPricing     `json:"textPricing"`
	ImagePricing    ImagePricing    `json:"imagePricing"`
	BulkPricing     BulkPricing     `json:"bulkPricing"`
	PrintingMethods PrintingMethods `json:"printingMethods"`
	PricingRules    []PricingRule   `json:"pricingRules" validate:"omitempty,dive"`
}

type GlobalPricing struct {
	Enabled   bool            `json:"enabled"`
	BasePrice decimal.Decimal `json:"basePrice" validate:"gte=0"`
}

type TextPricing struct {
	Mode              TextMode         `json:"mode" validate:"omitempty,oneof=free per_field per_character"`
	PricePerField     decimal.Decimal  `json:"pricePerField" validate:"gte=0"`
	PricePerCharacter decimal.Decimal  `json:"pricePerCharacter" validate:"gte=0"`
	FreeCharacters    int              `json:"freeCharacters" validate:"gte=0"`
	MinCharge         *decimal.Decimal `json:"minCharge,omitempty" validate:"omitempty,gte=0"`
	MaxCharge         *decimal.Decimal `json:"maxCharge,omitempty" validate:"omitempty,gte=0"`
}

type ImagePricing struct {
	UploadFee decimal.Decimal `json:"uploadFee" validate:"gte=0"`
}

type BulkPricing struct {
	Enabled bool       `json:"enabled"`
	Tiers   []BulkTier `json:"tiers" validate:"omitempty,dive"`
}

// BulkTier is a quantity band. A nil MaxQuantity leaves the band unbounded.
type BulkTier struct {
	MinQuantity   int              `json:"minQuantity" validate:"gte=1"`
	MaxQuantity   *int             `json:"maxQuantity,omitempty" validate:"omitempty,gtefield=MinQuantity"`
	DiscountType  TierDiscountType `json:"discountType" validate:"required,oneof=percentage fixed"`
	DiscountValue decimal.Decimal  `json:"discountValue" validate:"gte=0"`
}

type PrintingMethods struct {
	ScreenPrint ScreenPrint `json:"screenPrint"`
	GangSheet   GangSheet   `json:"gangSheet"`
	DTG         DTG         `json:"dtg"`
}

type ScreenPrint struct {
	Enabled          bool            `json:"enabled"`
	SetupFeePerColor decimal.Decimal `json:"setupFeePerColor" validate:"gte=0"`
	PrintFeePerItem  decimal.Decimal `json:"printFeePerItem" validate:"gte=0"`
}

type GangSheet struct {
	Enabled         bool            `json:"enabled"`
	SetupFee        decimal.Decimal `json:"setupFee" validate:"gte=0"`
	PricePerSheet   decimal.Decimal `json:"pricePerSheet" validate:"gte=0"`
	DesignsPerSheet int             `json:"designsPerSheet" validate:"gte=0"`
}

type DTG struct {
	Enabled         bool                       `json:"enabled"`
	BasePrice       decimal.Decimal            `json:"basePrice" validate:"gte=0"`
	SizeMultipliers map[string]decimal.Decimal `json:"sizeMultipliers,omitempty" validate:"omitempty,dive,keys,required,endkeys,gt=0"`
}

// Rule triggers, operators and actions.
const (
	TriggerTotalElements = "total_elements"
	TriggerTextElements  = "text_elements"
	TriggerImageElements = "image_elements"

	OperatorGreaterThan = "greater_than"
	OperatorLessThan    = "less_than"
	OperatorEquals      = "equals"

	ActionAddFee           = "add_fee"
	ActionMultiplySubtotal = "multiply_subtotal"
)

// PricingRule is a merchant-defined conditional fee or multiplier keyed on element counts.
type PricingRule struct {
	Trigger   string          `json:"trigger" validate:"required,oneof=total_elements text_elements image_elements"`
	Operator  string          `json:"operator" validate:"required,oneof=greater_than less_than equals"`
	Threshold decimal.Decimal `json:"threshold"`
	Action    string          `json:"action" validate:"required,oneof=add_fee multiply_subtotal"`
	Value     decimal.Decimal `json:"value"`
}

// StoredConfig is the persisted pricing configuration record.
type StoredConfig struct {
	ID        string        `json:"id,omitempty"`
	Shop      string        `json:"shop,omitempty"`
	ProductID string        `json:"productId"`
	Config    Configuration `json:"config"`
	CreatedAt *time.Time    `json:"createdAt,omitempty"`
	UpdatedAt *time.Time    `json:"updatedAt,omitempty"`
}

// Element is a canvas element supplied with a calculation request. A missing
// text is treated as empty.
type Element struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Request is the input of a single price calculation.
type Request struct {
	ProductID      string    `json:"productId" validate:"required,max=128"`
	Elements       []Element `json:"elements" validate:"max=500"`
	Quantity       int       `json:"quantity" validate:"gte=1,lte=1000000"`
	SelectedMethod string    `json:"selectedMethod,omitempty" validate:"max=32"`
	NumColors      *int      `json:"numColors,omitempty" validate:"omitempty,gte=1,lte=64"`
	PrintSize      string    `json:"printSize,omitempty" validate:"max=32"`
	PromoCode      string    `json:"promoCode,omitempty" validate:"max=64"`
}

// PrintingDetails describes the selected printing method and its cost.
type PrintingDetails struct {
	Method          string           `json:"method"`
	CostPerUnit     decimal.Decimal  `json:"costPerUnit"`
	TotalCost       decimal.Decimal  `json:"totalCost"`
	NumColors       int              `json:"numColors,omitempty"`
	TotalSetupFee   *decimal.Decimal `json:"totalSetupFee,omitempty"`
	TotalPrintFee   *decimal.Decimal `json:"totalPrintFee,omitempty"`
	DesignsPerSheet int              `json:"designsPerSheet,omitempty"`
	RequiredSheets  int              `json:"requiredSheets,omitempty"`
	PrintSize       string           `json:"printSize,omitempty"`
	Multiplier      *decimal.Decimal `json:"multiplier,omitempty"`
}

// AppliedRule records a matched pricing rule and its effect on the running total.
type AppliedRule struct {
	Rule   PricingRule     `json:"rule"`
	Impact decimal.Decimal `json:"impact"`
}

// AppliedPromo records the promo code that discounted the total.
type AppliedPromo struct {
	Code          string          `json:"code"`
	DiscountType  string          `json:"discountType"`
	DiscountValue decimal.Decimal `json:"discountValue"`
}

// Breakdown is the itemised result of a calculation.
type Breakdown struct {
	GlobalFee             decimal.Decimal            `json:"globalFee"`
	TotalElementCharges   decimal.Decimal            `json:"totalElementCharges"`
	ElementBreakdown      map[string]decimal.Decimal `json:"elementBreakdown"`
	BulkDiscount          decimal.Decimal            `json:"bulkDiscount"`
	AppliedTier           *BulkTier                  `json:"appliedTier"`
	PrintingCost          decimal.Decimal            `json:"printingCost"`
	PrintingMethodDetails *PrintingDetails           `json:"printingMethodDetails"`
	AppliedRules          []AppliedRule              `json:"appliedRules"`
	PromoDiscount         decimal.Decimal            `json:"promoDiscount"`
	AppliedPromo          *AppliedPromo              `json:"appliedPromo"`
	Total                 decimal.Decimal            `json:"total"`
	PerUnitPrice          decimal.Decimal            `json:"perUnitPrice"`
}
