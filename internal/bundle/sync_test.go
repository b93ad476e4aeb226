package bundle_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxbridge/internal/bundle"
	"github.com/noah-isme/taxbridge/internal/cart"
	"github.com/noah-isme/taxbridge/internal/pricing"
)

func childWithTax(id, unit, tax, rate string, perBundle int) *cart.LineItem {
	price := pricing.NewPrice(dec(unit), perBundle).WithTax(dec(tax), dec(rate))
	return &cart.LineItem{
		ID:       id,
		Type:     "child",
		Quantity: perBundle,
		Price:    &price,
		Payload:  cart.Payload{cart.KeyBundleQuantity: float64(perBundle)},
	}
}

func TestChildSyncScalesAndMergesTaxes(t *testing.T) {
	parentPrice := pricing.NewPrice(dec("30"), 2)
	parent := &cart.LineItem{
		ID:       "b1",
		Type:     cart.TypeProduct,
		Quantity: 2,
		Price:    &parentPrice,
		Payload:  cart.Payload{cart.KeyBundleContent: true, cart.KeyProductNumber: "B"},
		Children: []*cart.LineItem{
			childWithTax("c1", "10", "1.90", "19", 1),
			childWithTax("c2", "20", "3.80", "19", 1),
			childWithTax("c3", "5", "0.35", "7", 1),
		},
	}
	calc := &cart.Calculation{Target: &cart.Cart{LineItems: []*cart.LineItem{parent}}}

	require.NoError(t, bundle.ChildSync{}.Process(context.Background(), calc))

	require.Equal(t, 2, parent.Children[0].Quantity)
	require.True(t, dec("20").Equal(parent.Children[0].Price.TotalPrice))
	require.True(t, dec("3.80").Equal(parent.Children[0].Price.TotalTax()))

	require.Len(t, parent.Price.CalculatedTaxes, 2)
	require.True(t, dec("11.40").Equal(parent.Price.CalculatedTaxes[0].Tax))
	require.True(t, dec("0.70").Equal(parent.Price.CalculatedTaxes[1].Tax))
	require.Len(t, parent.Price.TaxRules, 2)
}

func TestChildSyncHonorsSkip(t *testing.T) {
	parentPrice := pricing.NewPrice(dec("30"), 2)
	parent := &cart.LineItem{
		ID: "b1", Type: cart.TypeProduct, Quantity: 2, Price: &parentPrice,
		Payload:  cart.Payload{cart.KeyBundleContent: true},
		Children: []*cart.LineItem{childWithTax("c1", "10", "1.90", "19", 1)},
	}
	calc := &cart.Calculation{Target: &cart.Cart{LineItems: []*cart.LineItem{parent}}, Behavior: cart.Behavior{SkipTaxes: true}}

	require.NoError(t, bundle.ChildSync{}.Process(context.Background(), calc))
	require.Equal(t, 1, parent.Children[0].Quantity)
	require.Empty(t, parent.Price.CalculatedTaxes)
}
