package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/taxbridge/internal/cart"
	"github.com/noah-isme/taxbridge/internal/pricing"
	"github.com/noah-isme/taxbridge/internal/quote"
)

type lineUsage struct {
	line     *cart.LineItem
	parentID string
}

// applyTaxesToChildren stamps each consumer of a quoted SKU in target with its
// share of the SKU tax. Bundle children get a ChildTax payload carrying their
// parent id; top-level non-bundle products get a StandaloneTax payload.
func applyTaxesToChildren(target *cart.Cart, raw quote.TaxResult) {
	if !raw.Succeeded() {
		return
	}

	usages := map[string][]lineUsage{}
	var order []string
	add := func(sku string, u lineUsage) {
		if _, ok := usages[sku]; !ok {
			order = append(order, sku)
		}
		usages[sku] = append(usages[sku], u)
	}

	for _, li := range target.LineItems {
		for _, child := range li.Children {
			sku := child.SKU()
			if _, ok := raw.Lines[sku]; sku == "" || !ok {
				continue
			}
			add(sku, lineUsage{line: child, parentID: li.ID})
		}
		if li.Type != cart.TypeProduct || li.IsBundle() {
			continue
		}
		sku := li.SKU()
		if _, ok := raw.Lines[sku]; sku == "" || !ok {
			continue
		}
		add(sku, lineUsage{line: li})
	}

	for _, sku := range order {
		entry := raw.Lines[sku]
		list := usages[sku]
		weights := make([]decimal.Decimal, len(list))
		for i, u := range list {
			weights[i] = u.line.TotalPrice()
		}
		shares := pricing.Allocate(pricing.Round2(entry.Tax), weights)
		for i, u := range list {
			rate := entry.Rate
			if shares[i].IsZero() {
				rate = decimal.Zero
			}
			stamp := cart.LineTax{Tax: shares[i], Rate: rate, Quantity: u.line.Quantity}
			if u.parentID != "" {
				stamp.BundleParentID = u.parentID
				u.line.Payload.Set(cart.KeyChildTax, stamp)
				continue
			}
			u.line.Payload.Set(cart.KeyStandaloneTax, stamp)
		}
	}
}
