package reconcile_test

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/taxbridge/internal/bundle"
	"github.com/noah-isme/taxbridge/internal/cart"
	"github.com/noah-isme/taxbridge/internal/pricing"
	"github.com/noah-isme/taxbridge/internal/quote"
	"github.com/noah-isme/taxbridge/internal/reconcile"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func product(id, sku, unit string, qty int) *cart.LineItem {
	price := pricing.NewPrice(dec(unit), qty)
	return &cart.LineItem{
		ID:       id,
		Type:     cart.TypeProduct,
		Label:    "Item " + sku,
		Quantity: qty,
		Price:    &price,
		Payload:  cart.Payload{cart.KeyProductNumber: sku},
	}
}

// bundleOf builds a bundle line whose relations and children mirror each
// other, one unit of each child per bundle.
func bundleOf(id, sku, unit string, qty int, children ...*cart.LineItem) *cart.LineItem {
	li := product(id, sku, unit, qty)
	rows := make([]bundle.Relation, 0, len(children))
	for _, child := range children {
		rows = append(rows, bundle.Relation{
			ProductID:        "p-" + child.SKU(),
			ProductNumber:    child.SKU(),
			QuantityInBundle: 1,
			ProductPrice:     bundle.RelationPrice{Net: decPtr(child.Price.UnitPrice.String())},
			ProductName:      child.Label,
		})
		child.Payload.Set(cart.KeyBundleQuantity, 1)
	}
	li.Payload.Set(cart.KeyBundleRelations, rows)
	li.Children = children
	return li
}

func promotion(id, promotionID, amount string) *cart.LineItem {
	price := pricing.NewPrice(dec(amount), 1)
	return &cart.LineItem{
		ID:       id,
		Type:     cart.TypePromotion,
		Quantity: 1,
		Price:    &price,
		Payload:  cart.Payload{cart.KeyPromotionID: promotionID},
	}
}

func newCart(lines ...*cart.LineItem) *cart.Cart {
	return &cart.Cart{
		Token:     "cart-1",
		LineItems: lines,
		Deliveries: []*cart.Delivery{{
			ShippingMethod: "Standard",
			Address: cart.Address{
				Street:  "Main 1",
				City:    "Berlin",
				Zipcode: "10115",
				Country: &cart.Country{ISO: "DE", ISO3: "DEU"},
			},
			ShippingCosts: pricing.NewPrice(dec("10.00"), 1),
		}},
	}
}

func sharedData(rates map[string]string) *cart.SharedData {
	data := &cart.SharedData{Products: map[string]cart.Product{}}
	for sku, rate := range rates {
		data.Products["p-"+sku] = cart.Product{ID: "p-" + sku, ProductNumber: sku, TaxRate: dec(rate)}
	}
	return data
}

func sales() cart.SalesContext {
	return cart.SalesContext{
		SalesChannelID: "sc-1",
		SessionID:      "sess-1",
		CurrencyISO:    "EUR",
		Customer:       &cart.Customer{ID: "cust-id", CustomerNumber: "10001"},
	}
}

func calculation(path string, original *cart.Cart, data *cart.SharedData) *cart.Calculation {
	return &cart.Calculation{
		Request:  cart.RequestContext{Path: path},
		Data:     data,
		Original: original,
		Target:   original.Clone(),
		Sales:    sales(),
	}
}

// fakeQuoter answers every quote with result and records the carts it saw.
type fakeQuoter struct {
	result quote.TaxResult
	cached quote.TaxResult
	seen   []*cart.Cart
}

func (f *fakeQuoter) Taxes(_ context.Context, c *cart.Cart, _ cart.SalesContext) quote.TaxResult {
	f.seen = append(f.seen, c.Clone())
	return f.result.Clone()
}

func (f *fakeQuoter) Cached(context.Context, string) quote.TaxResult {
	return f.cached.Clone()
}

func success(lines map[string]quote.LineTax) quote.TaxResult {
	return quote.TaxResult{Status: quote.StatusSuccess, Lines: lines}
}

func lineTax(tax, rate string) quote.LineTax {
	return quote.LineTax{Tax: dec(tax), Rate: dec(rate)}
}

func newProcessor(q reconcile.TaxQuoter) *reconcile.Processor {
	return &reconcile.Processor{
		Quotes:   q,
		Expander: &bundle.Expander{Logger: zerolog.Nop()},
		Gate:     reconcile.NewGate(nil),
		Logger:   zerolog.Nop(),
	}
}
