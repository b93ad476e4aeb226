package bundle

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/taxbridge/internal/cart"
)

// ChildRow is one expanded bundle child.
type ChildRow struct {
	SKU       string
	Quantity  int
	LineTotal decimal.Decimal
}

// UsageRecord is one consumer of a SKU's quoted tax. BundleSKU is empty for
// standalone lines. A bundle without a product number is keyed by its line id.
type UsageRecord struct {
	SKU       string
	BundleSKU string
	Quantity  int
	LineTotal decimal.Decimal
}

// Usage is the per-pass record of bundle children and SKU consumers. A fresh
// value must be used for every calculation pass.
type Usage struct {
	children    map[string][]ChildRow
	bundleOrder []string
	usages      map[string][]UsageRecord
	skuOrder    []string
}

// NewUsage returns empty usage maps.
func NewUsage() *Usage {
	return &Usage{
		children: map[string][]ChildRow{},
		usages:   map[string][]UsageRecord{},
	}
}

// TrackStandalone records every non-bundle product line with a SKU and a
// price. It must run before Expand so expanded children are not counted as
// standalone usage.
func (u *Usage) TrackStandalone(c *cart.Cart) {
	for _, li := range c.LineItems {
		if li.Type != cart.TypeProduct || li.IsBundle() {
			continue
		}
		sku := li.SKU()
		if sku == "" || li.Price == nil {
			continue
		}
		u.addUsage(UsageRecord{SKU: sku, Quantity: li.Quantity, LineTotal: li.Price.TotalPrice})
	}
}

// RecordChild records an expanded bundle child in both maps. An empty
// bundleSKU is ignored so the child is never mistaken for standalone usage.
func (u *Usage) RecordChild(bundleSKU string, row ChildRow) {
	if bundleSKU == "" {
		return
	}
	if _, ok := u.children[bundleSKU]; !ok {
		u.bundleOrder = append(u.bundleOrder, bundleSKU)
	}
	u.children[bundleSKU] = append(u.children[bundleSKU], row)
	u.addUsage(UsageRecord{SKU: row.SKU, BundleSKU: bundleSKU, Quantity: row.Quantity, LineTotal: row.LineTotal})
}

func (u *Usage) addUsage(r UsageRecord) {
	if _, ok := u.usages[r.SKU]; !ok {
		u.skuOrder = append(u.skuOrder, r.SKU)
	}
	u.usages[r.SKU] = append(u.usages[r.SKU], r)
}

// SKUs returns the SKUs with usages in first-recorded order.
func (u *Usage) SKUs() []string {
	return append([]string(nil), u.skuOrder...)
}

// Usages returns the consumers recorded for sku.
func (u *Usage) Usages(sku string) []UsageRecord {
	return u.usages[sku]
}

// Bundles returns the expanded bundle SKUs in expansion order.
func (u *Usage) Bundles() []string {
	return append([]string(nil), u.bundleOrder...)
}

// Children returns the expanded children of bundleSKU.
func (u *Usage) Children(bundleSKU string) []ChildRow {
	return u.children[bundleSKU]
}
