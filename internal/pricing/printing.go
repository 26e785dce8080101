package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Printing method display names.
const (
	MethodScreenPrint = "Screen Print"
	MethodGangSheet   = "Gang Sheet"
	MethodDTG         = "DTG"
)

// PrintRequest carries the request fields that drive printing cost.
type PrintRequest struct {
	Method    string
	NumColors int
	PrintSize string
	Quantity  int
}

type printingCandidate struct {
	key      string
	enabled  bool
	evaluate func(PrintRequest) PrintingDetails
}

// candidates lists the methods in fallback priority order.
func candidates(pm PrintingMethods) []printingCandidate {
	return []printingCandidate{
		{key: "screenprint", enabled: pm.ScreenPrint.Enabled, evaluate: pm.ScreenPrint.cost},
		{key: "gangsheet", enabled: pm.GangSheet.Enabled, evaluate: pm.GangSheet.cost},
		{key: "dtg", enabled: pm.DTG.Enabled, evaluate: pm.DTG.cost},
	}
}

// methodKey folds "screenPrint", "Screen Print" and "screen_print" onto one key.
func methodKey(name string) string {
	r := strings.NewReplacer(" ", "", "_", "", "-", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(name)))
}

// SelectPrintingMethod picks the requested method when it is enabled,
// otherwise the first enabled method by priority. It returns nil when no
// method is enabled.
func SelectPrintingMethod(pm PrintingMethods, req PrintRequest) *PrintingDetails {
	if req.Quantity < 1 {
		req.Quantity = 1
	}
	list := candidates(pm)
	if want := methodKey(req.Method); want != "" {
		for _, c := range list {
			if c.key == want && c.enabled {
				details := c.evaluate(req)
				return &details
			}
		}
	}
	for _, c := range list {
		if c.enabled {
			details := c.evaluate(req)
			return &details
		}
	}
	return nil
}

func (sp ScreenPrint) cost(req PrintRequest) PrintingDetails {
	colors := req.NumColors
	if colors < 1 {
		colors = 1
	}
	qty := decimal.NewFromInt(int64(req.Quantity))
	setup := sp.SetupFeePerColor.Mul(decimal.NewFromInt(int64(colors)))
	printFee := sp.PrintFeePerItem.Mul(qty)
	total := setup.Add(printFee)
	return PrintingDetails{
		Method:        MethodScreenPrint,
		CostPerUnit:   total.Div(qty),
		TotalCost:     total,
		NumColors:     colors,
		TotalSetupFee: &setup,
		TotalPrintFee: &printFee,
	}
}

func (gs GangSheet) cost(req PrintRequest) PrintingDetails {
	perSheet := gs.DesignsPerSheet
	if perSheet < 1 {
		perSheet = 1
	}
	sheets := (req.Quantity + perSheet - 1) / perSheet
	qty := decimal.NewFromInt(int64(req.Quantity))
	total := gs.SetupFee.Add(gs.PricePerSheet.Mul(decimal.NewFromInt(int64(sheets))))
	return PrintingDetails{
		Method:          MethodGangSheet,
		CostPerUnit:     total.Div(qty),
		TotalCost:       total,
		DesignsPerSheet: perSheet,
		RequiredSheets:  sheets,
	}
}

func (d DTG) cost(req PrintRequest) PrintingDetails {
	multiplier := decimal.NewFromInt(1)
	if m, ok := d.SizeMultipliers[req.PrintSize]; ok && req.PrintSize != "" {
		multiplier = m
	}
	perUnit := d.BasePrice.Mul(multiplier)
	return PrintingDetails{
		Method:      MethodDTG,
		CostPerUnit: perUnit,
		TotalCost:   perUnit.Mul(decimal.NewFromInt(int64(req.Quantity))),
		PrintSize:   req.PrintSize,
		Multiplier:  &multiplier,
	}
}
