package quote

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/taxbridge/internal/cart"
)

var hundred = decimal.NewFromInt(100)

// Transform converts a provider response into a TaxResult keyed by item code.
// Line rates are the sum of detail rates as a percentage. Promotion lines of c
// are forced to zero tax because promotions are taxed inside item prices.
func Transform(resp *Response, c *cart.Cart) TaxResult {
	if resp == nil || resp.Lines == nil {
		return statusOnly(StatusFailed)
	}
	out := TaxResult{Status: StatusSuccess, Lines: map[string]LineTax{}, Summary: resp.Summary}
	for _, line := range resp.Lines {
		rate := decimal.Zero
		for _, d := range line.Details {
			rate = rate.Add(d.Rate)
		}
		entry := LineTax{Tax: line.Tax, Rate: rate.Mul(hundred)}
		if prev, ok := out.Lines[line.ItemCode]; ok {
			entry.Tax = entry.Tax.Add(prev.Tax)
		}
		out.Lines[line.ItemCode] = entry
	}
	if c != nil {
		for _, promo := range c.FilterType(cart.TypePromotion) {
			if id := promo.Payload.String(cart.KeyPromotionID); id != "" {
				out.Lines[id] = LineTax{}
			}
		}
	}
	return out
}
