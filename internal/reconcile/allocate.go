package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/taxbridge/internal/bundle"
	"github.com/noah-isme/taxbridge/internal/pricing"
	"github.com/noah-isme/taxbridge/internal/quote"
)

// bundleRatePlaces is the precision of an effective bundle rate.
const bundleRatePlaces = 4

// allocateMergedSKUTaxes splits each merged SKU's quoted tax back to its
// consumers. Bundle consumers accumulate into an entry keyed by the bundle SKU
// with an effective rate; the SKU entry keeps only the standalone share and is
// dropped when no standalone line consumed it. raw is not mutated.
func allocateMergedSKUTaxes(raw quote.TaxResult, usage *bundle.Usage) quote.TaxResult {
	out := raw.Clone()
	if !out.Succeeded() {
		return out
	}
	if out.Lines == nil {
		out.Lines = map[string]quote.LineTax{}
	}

	bundleNet := map[string]decimal.Decimal{}
	for _, sku := range usage.SKUs() {
		entry, ok := raw.Lines[sku]
		if !ok {
			continue
		}
		usages := usage.Usages(sku)
		weights := make([]decimal.Decimal, len(usages))
		totalNet := decimal.Zero
		for i, u := range usages {
			weights[i] = u.LineTotal
			totalNet = totalNet.Add(u.LineTotal)
		}
		if !totalNet.IsPositive() {
			continue
		}

		shares := pricing.Allocate(entry.Tax, weights)
		standalone := decimal.Zero
		hasStandalone := false
		for i, u := range usages {
			if u.BundleSKU == "" {
				standalone = standalone.Add(shares[i])
				hasStandalone = true
				continue
			}
			acc := out.Lines[u.BundleSKU]
			acc.Tax = pricing.Round2(acc.Tax.Add(shares[i]))
			out.Lines[u.BundleSKU] = acc
			bundleNet[u.BundleSKU] = bundleNet[u.BundleSKU].Add(u.LineTotal)
		}

		if !hasStandalone {
			delete(out.Lines, sku)
			continue
		}
		rate := entry.Rate
		if standalone.IsZero() {
			rate = decimal.Zero
		}
		out.Lines[sku] = quote.LineTax{Tax: standalone, Rate: rate}
	}

	for bundleSKU, net := range bundleNet {
		acc := out.Lines[bundleSKU]
		acc.Rate = pricing.EffectiveRate(acc.Tax, net, bundleRatePlaces)
		out.Lines[bundleSKU] = acc
	}
	return out
}
