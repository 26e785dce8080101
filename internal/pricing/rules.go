package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ElementCounts holds the trigger values rules are evaluated against.
type ElementCounts struct {
	Total int
	Text  int
	Image int
}

// CountElements derives rule trigger values. Only the literal "text" and
// "image" types count towards the text and image triggers.
func CountElements(elements []Element) ElementCounts {
	counts := ElementCounts{Total: len(elements)}
	for _, el := range elements {
		switch strings.ToLower(strings.TrimSpace(el.Type)) {
		case "text":
			counts.Text++
		case "image":
			counts.Image++
		}
	}
	return counts
}

func (c ElementCounts) value(trigger string) (int, bool) {
	switch trigger {
	case TriggerTotalElements:
		return c.Total, true
	case TriggerTextElements:
		return c.Text, true
	case TriggerImageElements:
		return c.Image, true
	}
	return 0, false
}

// Matches reports whether the rule's condition holds for counts. Unknown
// triggers and operators never match.
func (r PricingRule) Matches(counts ElementCounts) bool {
	v, ok := counts.value(r.Trigger)
	if !ok {
		return false
	}
	cmp := decimal.NewFromInt(int64(v)).Cmp(r.Threshold)
	switch r.Operator {
	case OperatorGreaterThan:
		return cmp > 0
	case OperatorLessThan:
		return cmp < 0
	case OperatorEquals:
		return cmp == 0
	}
	return false
}

// ApplyRules evaluates every rule in order against the running total and
// returns the new total together with the matched rules and their impact.
func ApplyRules(running decimal.Decimal, quantity int, rules []PricingRule, counts ElementCounts) (decimal.Decimal, []AppliedRule) {
	applied := make([]AppliedRule, 0)
	for _, rule := range rules {
		if !rule.Matches(counts) {
			continue
		}
		var impact decimal.Decimal
		switch rule.Action {
		case ActionAddFee:
			impact = rule.Value.Mul(decimal.NewFromInt(int64(quantity)))
			running = running.Add(impact)
		case ActionMultiplySubtotal:
			next := running.Mul(rule.Value)
			impact = next.Sub(running)
			running = next
		default:
			continue
		}
		applied = append(applied, AppliedRule{Rule: rule, Impact: impact})
	}
	return running, applied
}
