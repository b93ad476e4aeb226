package quote_test

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/taxbridge/internal/cart"
	"github.com/noah-isme/taxbridge/internal/pricing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func productLine(id, sku, unit string, qty int) *cart.LineItem {
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

func testCart(lines ...*cart.LineItem) *cart.Cart {
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

func salesContext() cart.SalesContext {
	return cart.SalesContext{
		SalesChannelID: "sc-1",
		SessionID:      "sess-1",
		CurrencyISO:    "EUR",
		Customer:       &cart.Customer{ID: "cust-id", CustomerNumber: "10001"},
	}
}
