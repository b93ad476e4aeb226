package bundle

import (
	"context"

	"github.com/noah-isme/taxbridge/internal/cart"
	"github.com/noah-isme/taxbridge/internal/pricing"
)

// ChildSync scales bundle children to the bundle quantity and presents the
// children's taxes on the bundle line, merged by rate.
type ChildSync struct{}

// Process implements cart.Processor.
func (ChildSync) Process(_ context.Context, calc *cart.Calculation) error {
	if calc.Behavior.SkipTaxes {
		return nil
	}
	for _, line := range calc.Target.FilterType(cart.TypeProduct) {
		if len(line.Children) == 0 || !(line.Payload.Has(cart.KeyBundleContent) || line.IsBundle()) {
			continue
		}
		syncChildren(line)
	}
	return nil
}

func syncChildren(bundleLine *cart.LineItem) {
	var (
		taxes [][]pricing.CalculatedTax
		rules = [][]pricing.TaxRule{}
	)
	if bundleLine.Price != nil {
		rules = append(rules, bundleLine.Price.TaxRules)
	}
	for _, child := range bundleLine.Children {
		if perBundle, ok := child.Payload.Int(cart.KeyBundleQuantity); ok && perBundle > 0 {
			child.Quantity = perBundle * bundleLine.Quantity
			if child.Price != nil {
				scaled := scalePrice(*child.Price, child.Quantity)
				child.Price = &scaled
			}
		}
		if child.Price == nil {
			continue
		}
		taxes = append(taxes, child.Price.CalculatedTaxes)
		rules = append(rules, child.Price.TaxRules)
	}
	if bundleLine.Price == nil || len(taxes) == 0 {
		return
	}
	merged := bundleLine.Price.Clone()
	merged.CalculatedTaxes = pricing.MergeTaxesByRate(taxes...)
	merged.TaxRules = pricing.UnionRulesByRate(rules...)
	bundleLine.Price = &merged
}

// scalePrice moves p to quantity and scales its taxes proportionally.
func scalePrice(p pricing.Price, quantity int) pricing.Price {
	scaled := p.WithQuantity(quantity)
	if !p.TotalPrice.IsPositive() {
		return scaled
	}
	ratio := scaled.TotalPrice.Div(p.TotalPrice)
	for i, t := range scaled.CalculatedTaxes {
		scaled.CalculatedTaxes[i] = pricing.CalculatedTax{
			Tax:     pricing.Round2(t.Tax.Mul(ratio)),
			TaxRate: t.TaxRate,
			Price:   scaled.TotalPrice,
		}
	}
	return scaled
}
