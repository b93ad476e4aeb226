package bundle

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/taxbridge/internal/cart"
	"github.com/noah-isme/taxbridge/internal/pricing"
)

// Expander replaces bundle lines with one standalone product line per bundle
// relation so each underlying product can be quoted.
type Expander struct {
	Catalog Catalog
	Logger  zerolog.Logger
}

// ChildID derives the id of an expanded child line. The same bundle line
// always expands to the same ids.
func ChildID(bundleLineID, productID string, index int) string {
	name := bundleLineID + "/" + productID + "/" + strconv.Itoa(index)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// Expand mutates c in place and records every expanded child in usage.
// Products are resolved from data first and from the catalog second.
func (e *Expander) Expand(ctx context.Context, c *cart.Cart, data *cart.SharedData, usage *Usage) {
	lines := append([]*cart.LineItem(nil), c.LineItems...)
	for _, bundleLine := range lines {
		rows, ok := Relations(bundleLine)
		if !ok {
			continue
		}
		bundleKey := bundleLine.SKU()
		if bundleKey == "" {
			bundleKey = bundleLine.ID
			e.Logger.Warn().Str("line_id", bundleLine.ID).Msg("bundle_without_product_number")
		}
		c.Remove(bundleLine.ID)

		for i, row := range rows {
			product, ok := e.resolve(ctx, data, row)
			if !ok {
				continue
			}
			child, ok := e.childLine(bundleLine, row, product)
			if !ok {
				continue
			}
			child.ID = ChildID(bundleLine.ID, row.ProductID, i)
			c.Add(child)
			usage.RecordChild(bundleKey, ChildRow{
				SKU:       product.ProductNumber,
				Quantity:  child.Quantity,
				LineTotal: child.Price.TotalPrice,
			})
		}
	}
}

func (e *Expander) resolve(ctx context.Context, data *cart.SharedData, row Relation) (cart.Product, bool) {
	if p, ok := data.Product(row.ProductID); ok {
		return p, true
	}
	if row.ProductID == "" || e.Catalog == nil {
		return cart.Product{}, false
	}
	p, err := e.Catalog.FindByNumber(ctx, row.ProductNumber)
	if err != nil {
		e.Logger.Error().Err(err).Str("product_number", row.ProductNumber).Msg("bundle_product_lookup_failed")
		return cart.Product{}, false
	}
	if p == nil {
		return cart.Product{}, false
	}
	return *p, true
}

func (e *Expander) childLine(bundleLine *cart.LineItem, row Relation, product cart.Product) (*cart.LineItem, bool) {
	rate := product.TaxRate
	var net decimal.Decimal
	switch {
	case row.ProductPrice.Net != nil:
		net = *row.ProductPrice.Net
	case row.ProductPrice.Gross != nil:
		net = pricing.NetFromGross(*row.ProductPrice.Gross, rate)
		e.Logger.Warn().
			Str("sku", product.ProductNumber).
			Str("gross", row.ProductPrice.Gross.String()).
			Str("derived_net", net.String()).
			Msg("bundle_net_from_gross")
	default:
		e.Logger.Error().
			Str("sku", product.ProductNumber).
			Str("bundle_sku", bundleLine.SKU()).
			Msg("bundle_price_missing")
		return nil, false
	}

	quantity := row.QuantityInBundle * bundleLine.Quantity
	price := pricing.NewPrice(net, quantity)
	price = price.WithTax(pricing.TaxFor(price.TotalPrice, rate), rate)

	child := &cart.LineItem{
		Type:         cart.TypeProduct,
		ReferencedID: product.ID,
		Label:        row.ProductName,
		Quantity:     quantity,
		Price:        &price,
	}
	child.Payload.Set(cart.KeyProductNumber, product.ProductNumber)
	if product.CustomFields != nil {
		child.Payload.Set(cart.KeyCustomFields, product.CustomFields)
	}
	return child, true
}
