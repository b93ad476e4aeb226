package cmd_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxbridge/cmd/taxctl/cmd"
	"github.com/noah-isme/taxbridge/internal/cart"
	"github.com/noah-isme/taxbridge/internal/pricing"
	"github.com/noah-isme/taxbridge/internal/quote"
	"github.com/noah-isme/taxbridge/internal/reconcile"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := cmd.NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name string, v any) string {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, body, 0o600))
	return path
}

func TestAllocate(t *testing.T) {
	out, err := run(t, "allocate", "--total", "10.00", "--weights", "1,1,1")
	require.NoError(t, err)
	require.Equal(t, []string{"3.33", "3.33", "3.34"}, strings.Fields(out))
}

func TestAllocateRejectsBadWeight(t *testing.T) {
	_, err := run(t, "allocate", "--total", "10.00", "--weights", "x")
	require.Error(t, err)
}

func TestReconcilePrintsTaxedCart(t *testing.T) {
	price := pricing.NewPrice(dec("100.00"), 1)
	req := reconcile.RecalculateRequest{
		Request: reconcile.RequestInfo{Path: "/checkout/confirm"},
		Cart: &cart.Cart{
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
		},
		Sales: cart.SalesContext{
			SalesChannelID: "sc-1",
			CurrencyISO:    "EUR",
			Customer:       &cart.Customer{ID: "c-1"},
		},
	}
	requestFile := writeFile(t, "request.json", req)
	ratesFile := writeFile(t, "rates.json", map[string]quote.LineTax{
		"A": {Tax: dec("19.00"), Rate: dec("19")},
	})

	out, err := run(t, "reconcile", "--request", requestFile, "--rates", ratesFile, "--default-rate", "7")
	require.NoError(t, err)

	var got cart.Cart
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	line := got.Get("l1")
	require.NotNil(t, line)
	require.Len(t, line.Price.CalculatedTaxes, 1)
	require.True(t, line.Price.CalculatedTaxes[0].Tax.Equal(dec("19.00")))

	shipping := got.FirstDelivery().ShippingCosts
	require.Len(t, shipping.CalculatedTaxes, 1)
	require.True(t, shipping.CalculatedTaxes[0].Tax.Equal(dec("0.70")))
	require.True(t, shipping.CalculatedTaxes[0].TaxRate.Equal(dec("7")))
}

func TestTokenRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := run(t, "token")
	require.Error(t, err)
}

func TestTokenSigns(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	out, err := run(t, "token", "--subject", "storefront")
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(out), "."), 3)
}
