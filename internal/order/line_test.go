package order_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxbridge/internal/cart"
	"github.com/noah-isme/taxbridge/internal/order"
	"github.com/noah-isme/taxbridge/internal/pricing"
)

func updatesByLine(updates []order.PriceUpdate) map[string]order.PriceUpdate {
	out := map[string]order.PriceUpdate{}
	for _, u := range updates {
		out[u.LineID] = u
	}
	return out
}

func requireTax(t *testing.T, p pricing.Price, tax, rate string) {
	t.Helper()
	require.Len(t, p.CalculatedTaxes, 1)
	require.True(t, p.CalculatedTaxes[0].Tax.Equal(dec(tax)), p.CalculatedTaxes[0].Tax.String())
	require.True(t, p.CalculatedTaxes[0].TaxRate.Equal(dec(rate)), p.CalculatedTaxes[0].TaxRate.String())
	require.True(t, p.CalculatedTaxes[0].Price.Equal(p.TotalPrice))
}

func TestPlan(t *testing.T) {
	t.Parallel()

	updates := updatesByLine(order.Plan(bundleOrder()))
	require.Len(t, updates, 4)

	bundle := updates["ol-b"]
	require.Equal(t, order.KindBundle, bundle.Kind)
	requireTax(t, bundle.Price, "3.00", "0")
	require.Empty(t, bundle.Price.TaxRules, "bundle parents carry no rules")

	child := updates["ol-c2"]
	require.Equal(t, order.KindChild, child.Kind)
	requireTax(t, child.Price, "2.00", "10")
	require.Len(t, child.Price.TaxRules, 1)

	standalone := updates["ol-s"]
	require.Equal(t, order.KindStandalone, standalone.Kind)
	requireTax(t, standalone.Price, "19.00", "19")

	require.NotContains(t, updates, "ol-x")
}

func TestPlanMatchesChildrenByParentIdentifier(t *testing.T) {
	t.Parallel()

	lines := []order.Line{
		line("ol-b1", "b1", "10.00", 1, cart.Payload{cart.KeyBundleContent: true}),
		line("ol-b2", "b2", "10.00", 1, cart.Payload{cart.KeyBundleContent: true}),
		line("ol-c1", "c1", "10.00", 1, childTax("0.70", "7", "b1")),
		line("ol-c2", "c2", "10.00", 1, childTax("1.90", "19", "b2")),
		line("ol-c3", "c3", "10.00", 1, childTax("0.30", "7", "b1")),
	}
	updates := updatesByLine(order.Plan(lines))

	requireTax(t, updates["ol-b1"].Price, "1.00", "0")
	requireTax(t, updates["ol-b2"].Price, "1.90", "0")
}

func TestPlanZeroTaxIsUntaxed(t *testing.T) {
	t.Parallel()

	lines := []order.Line{
		line("ol-1", "l1", "10.00", 1, standaloneTax("0", "19")),
		line("ol-b", "b1", "10.00", 1, cart.Payload{cart.KeyBundleContent: true}),
	}
	updates := updatesByLine(order.Plan(lines))

	requireTax(t, updates["ol-1"].Price, "0", "0")
	require.Empty(t, updates["ol-1"].Price.TaxRules)
	requireTax(t, updates["ol-b"].Price, "0", "0")
}

func TestPlanIgnoresAnnotationsWithoutTax(t *testing.T) {
	t.Parallel()

	lines := []order.Line{
		line("ol-1", "l1", "10.00", 1, cart.Payload{cart.KeyStandaloneTax: map[string]any{"rate": 19}}),
	}
	require.Empty(t, order.Plan(lines))
}
