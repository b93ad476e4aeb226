package app_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxbridge/internal/app"
	"github.com/noah-isme/taxbridge/internal/bundle"
	"github.com/noah-isme/taxbridge/internal/cart"
	"github.com/noah-isme/taxbridge/internal/pricing"
	"github.com/noah-isme/taxbridge/internal/quote"
	"github.com/noah-isme/taxbridge/internal/session"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestEngineRecalculatesCart(t *testing.T) {
	engine := app.NewEngine(app.EngineConfig{
		Provider: quote.StaticProvider{Taxes: map[string]quote.LineTax{
			"A":               {Tax: dec("19.00"), Rate: dec("19")},
			quote.ShippingKey: {Tax: dec("1.90"), Rate: dec("19")},
		}},
		Catalog: bundle.StaticCatalog{},
		Session: session.NewStore(nil, 0, true),
		Builder: quote.Builder{CompanyCode: "DEFAULT", ShippingTaxCode: "FR020100", DefaultTaxCode: "P0000000"},
		Logger:  zerolog.Nop(),
	})
	require.True(t, engine.Adapter.Has(quote.ServiceGetTax))
	require.False(t, engine.Adapter.Has(quote.ServicePing))

	price := pricing.NewPrice(dec("100.00"), 1)
	original := &cart.Cart{
		Token: "cart-1",
		LineItems: []*cart.LineItem{{
			ID:       "l1",
			Type:     cart.TypeProduct,
			Quantity: 1,
			Price:    &price,
			Payload:  cart.Payload{cart.KeyProductNumber: "A"},
		}},
		Deliveries: []*cart.Delivery{{
			Address:       cart.Address{Country: &cart.Country{ISO: "DE", ISO3: "DEU"}},
			ShippingCosts: pricing.NewPrice(dec("10.00"), 1),
		}},
	}
	calc := &cart.Calculation{
		Request:  cart.RequestContext{Path: "/checkout/confirm"},
		Original: original,
		Sales: cart.SalesContext{
			SalesChannelID: "sc-1",
			SessionID:      "sess-1",
			CurrencyISO:    "EUR",
			Customer:       &cart.Customer{ID: "c-1", CustomerNumber: "10001"},
		},
	}

	require.NoError(t, engine.Pipeline.Run(context.Background(), calc))

	line := calc.Target.Get("l1")
	require.Len(t, line.Price.CalculatedTaxes, 1)
	require.True(t, line.Price.CalculatedTaxes[0].Tax.Equal(dec("19.00")))
	require.True(t, line.Price.CalculatedTaxes[0].TaxRate.Equal(dec("19")))

	shipping := calc.Target.FirstDelivery().ShippingCosts
	require.Len(t, shipping.CalculatedTaxes, 1)
	require.True(t, shipping.CalculatedTaxes[0].Tax.Equal(dec("1.90")))
}

type countingProvider struct {
	inner quote.Provider
	calls atomic.Int32
}

func (p *countingProvider) CreateTransaction(ctx context.Context, req quote.Request) (*quote.Response, error) {
	p.calls.Add(1)
	return p.inner.CreateTransaction(ctx, req)
}

func TestEngineReusesQuoteForUnchangedBundleCart(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	provider := &countingProvider{inner: quote.StaticProvider{Taxes: map[string]quote.LineTax{
		"C1":              {Tax: dec("1.00"), Rate: dec("10")},
		"C2":              {Tax: dec("2.00"), Rate: dec("10")},
		quote.ShippingKey: {Tax: dec("1.90"), Rate: dec("19")},
	}}}
	engine := app.NewEngine(app.EngineConfig{
		Provider: provider,
		Catalog: bundle.StaticCatalog{
			"C1": {ID: "p1", ProductNumber: "C1", TaxRate: dec("10")},
			"C2": {ID: "p2", ProductNumber: "C2", TaxRate: dec("10")},
		},
		Session: session.NewStore(client, time.Hour, false),
		Builder: quote.Builder{CompanyCode: "DEFAULT", ShippingTaxCode: "FR020100", DefaultTaxCode: "P0000000"},
		Logger:  zerolog.Nop(),
	})

	net10, net20 := dec("10.00"), dec("20.00")
	price := pricing.NewPrice(dec("30.00"), 1)
	original := &cart.Cart{
		Token: "cart-1",
		LineItems: []*cart.LineItem{{
			ID:       "b1",
			Type:     cart.TypeProduct,
			Quantity: 1,
			Price:    &price,
			Payload: cart.Payload{
				cart.KeyProductNumber: "B",
				cart.KeyBundleRelations: []bundle.Relation{
					{ProductID: "p1", ProductNumber: "C1", QuantityInBundle: 1, ProductPrice: bundle.RelationPrice{Net: &net10}},
					{ProductID: "p2", ProductNumber: "C2", QuantityInBundle: 1, ProductPrice: bundle.RelationPrice{Net: &net20}},
				},
			},
		}},
		Deliveries: []*cart.Delivery{{
			Address:       cart.Address{Country: &cart.Country{ISO: "DE", ISO3: "DEU"}},
			ShippingCosts: pricing.NewPrice(dec("10.00"), 1),
		}},
	}

	for i := 0; i < 3; i++ {
		calc := &cart.Calculation{
			Request:  cart.RequestContext{Path: "/checkout/confirm"},
			Original: original,
			Sales: cart.SalesContext{
				SalesChannelID: "sc-1",
				SessionID:      "sess-bundle",
				CurrencyISO:    "EUR",
				Customer:       &cart.Customer{ID: "c-1", CustomerNumber: "10001"},
			},
		}
		require.NoError(t, engine.Pipeline.Run(context.Background(), calc))

		parent := calc.Target.Get("b1")
		require.Len(t, parent.Price.CalculatedTaxes, 1)
		require.True(t, parent.Price.CalculatedTaxes[0].Tax.Equal(dec("3.00")))
	}
	require.EqualValues(t, 1, provider.calls.Load(), "unchanged bundle cart must reuse the cached quote")
}
