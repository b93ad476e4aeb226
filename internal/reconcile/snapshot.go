package reconcile

import (
	"context"

	"github.com/noah-isme/taxbridge/internal/cart"
	"github.com/noah-isme/taxbridge/internal/pricing"
)

// Snapshot copies each top-level line's final taxes into its payload so a
// later order edit can restore them, and folds the quoted rates into the
// line's tax rules. Zero rates are not folded, so untaxed and refund prices
// keep an empty rule set.
type Snapshot struct {
	Gate Gate
}

// Process implements cart.Processor.
func (s Snapshot) Process(_ context.Context, calc *cart.Calculation) error {
	if calc.Target == nil {
		return ErrNoCart
	}
	if calc.Behavior.SkipTaxes || !s.Gate.Allows(calc.Request) {
		return nil
	}
	for _, li := range calc.Target.LineItems {
		if li.Price == nil {
			continue
		}
		taxes := append([]pricing.CalculatedTax{}, li.Price.CalculatedTaxes...)
		quoted := make([]pricing.TaxRule, 0, len(taxes))
		for _, t := range taxes {
			if t.TaxRate.IsZero() {
				continue
			}
			quoted = append(quoted, pricing.NewTaxRule(t.TaxRate))
		}
		rules := pricing.UnionRulesByRate(li.Price.TaxRules, quoted)

		li.Payload.Set(cart.KeyCalculatedTaxes, taxes)
		li.Payload.Set(cart.KeyTaxRules, rules)

		p := li.Price.Clone()
		p.TaxRules = rules
		li.Price = &p
	}
	return nil
}
