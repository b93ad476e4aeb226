package reconcile_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxbridge/internal/cart"
	"github.com/noah-isme/taxbridge/internal/reconcile"
)

func TestGateAllows(t *testing.T) {
	t.Parallel()

	gate := reconcile.NewGate(nil)
	tests := []struct {
		path string
		want bool
	}{
		{path: "", want: true},
		{path: "/checkout/cart", want: true},
		{path: "/Checkout/Confirm", want: true},
		{path: "/store-api/checkout/order", want: true},
		{path: "/paypal/capture?token=1", want: true},
		{path: "/api/_proxy-order/abc", want: true},
		{path: "/api/_action/order/abc/recalculate", want: true},
		{path: "/account/profile", want: false},
		{path: "/widgets/checkout/info", want: false},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			require.Equal(t, tc.want, gate.Allows(cart.RequestContext{Path: tc.path}))
		})
	}
}

func TestGateCustomRoutes(t *testing.T) {
	t.Parallel()

	gate := reconcile.NewGate([]string{"pos/sale"})
	require.True(t, gate.Allows(cart.RequestContext{Path: "/pos/sale/42"}))
	require.False(t, gate.Allows(cart.RequestContext{Path: "/checkout/cart"}))
}

func TestIsRefund(t *testing.T) {
	t.Parallel()

	require.True(t, reconcile.IsRefund(cart.RequestContext{Path: "/store-api/order/1/return"}))
	require.True(t, reconcile.IsRefund(cart.RequestContext{Path: "/account/returns"}))
	require.True(t, reconcile.IsRefund(cart.RequestContext{Path: "/api/_action/order/return"}))
	require.False(t, reconcile.IsRefund(cart.RequestContext{Path: "/checkout/confirm"}))
	require.False(t, reconcile.IsRefund(cart.RequestContext{}))
}

func TestFilterRefundLines(t *testing.T) {
	t.Parallel()

	build := func() *cart.Cart {
		a := product("l1", "A", "10.00", 1)
		a.OriginalID = "ol-1"
		b := product("l2", "B", "10.00", 1)
		b.OriginalID = "ol-2"
		return newCart(a, b, product("l3", "C", "10.00", 1))
	}

	c := build()
	removed := reconcile.FilterRefundLines(c, []byte(`{"lineItems":[{"orderLineItemId":"ol-2"}]}`))
	require.Equal(t, 1, removed)
	require.Nil(t, c.Get("l1"))
	require.NotNil(t, c.Get("l2"))
	require.NotNil(t, c.Get("l3"), "lines without an order line are kept")

	for _, body := range []string{"", "not json", `{"lineItems":[]}`} {
		c := build()
		require.Zero(t, reconcile.FilterRefundLines(c, []byte(body)))
		require.Len(t, c.LineItems, 3)
	}
}
