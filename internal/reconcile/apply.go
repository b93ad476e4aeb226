package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/taxbridge/internal/cart"
	"github.com/noah-isme/taxbridge/internal/pricing"
	"github.com/noah-isme/taxbridge/internal/quote"
)

// taxedPrice rebuilds p around a quoted tax. Refund prices carry the amount
// at rate zero so a later recalculation cannot reapply a rate.
func taxedPrice(p pricing.Price, entry quote.LineTax, refund bool) pricing.Price {
	switch {
	case entry.Tax.IsZero():
		return p.Untaxed()
	case refund:
		return p.WithFlatTax(entry.Tax)
	default:
		return p.WithTax(entry.Tax, entry.Rate)
	}
}

// changeTaxes rewrites the price of every top-level product whose SKU was
// quoted. A standalone stamp wins over the result entry; on refunds bundle
// parents are rebuilt from their children's stamps.
func changeTaxes(target *cart.Cart, taxes quote.TaxResult, refund bool) int {
	changed := 0
	for _, li := range target.FilterType(cart.TypeProduct) {
		entry, ok := taxes.Get(li.SKU())
		if !ok || li.Price == nil {
			continue
		}
		if st, ok := li.StandaloneTax(); ok {
			entry = quote.LineTax{Tax: st.Tax, Rate: st.Rate}
		} else if refund {
			entry = childTaxTotal(li)
		}
		p := taxedPrice(*li.Price, entry, refund)
		li.Price = &p
		changed++
	}
	return changed
}

func childTaxTotal(li *cart.LineItem) quote.LineTax {
	total := quote.LineTax{Tax: decimal.Zero, Rate: decimal.Zero}
	for _, child := range li.Children {
		ct, ok := child.ChildTax()
		if !ok {
			continue
		}
		total.Tax = total.Tax.Add(ct.Tax)
		if ct.Rate.GreaterThan(total.Rate) {
			total.Rate = ct.Rate
		}
	}
	return total
}

func changeShippingCosts(target *cart.Cart, taxes quote.TaxResult, refund bool) bool {
	d := target.FirstDelivery()
	entry, ok := taxes.Get(quote.ShippingKey)
	if d == nil || !ok {
		return false
	}
	d.ShippingCosts = taxedPrice(d.ShippingCosts, entry, refund)
	return true
}

func changePromotionTaxes(target *cart.Cart, taxes quote.TaxResult, refund bool) int {
	changed := 0
	for _, li := range target.FilterType(cart.TypePromotion) {
		entry, ok := taxes.Get(li.Payload.String(cart.KeyPromotionID))
		if !ok || li.Price == nil {
			continue
		}
		p := taxedPrice(*li.Price, entry, refund)
		li.Price = &p
		changed++
	}
	return changed
}

// stampRequestStatus records the quote status on every product line.
func stampRequestStatus(target *cart.Cart, taxes quote.TaxResult) {
	status := taxes.Status
	if status == "" {
		status = quote.StatusFailed
	}
	for _, li := range target.FilterType(cart.TypeProduct) {
		li.Payload.Set(cart.KeyTaxRequestStatus, string(status))
	}
}
