package reconcile

import (
	"encoding/json"
	"strings"

	"github.com/noah-isme/taxbridge/internal/cart"
)

// DefaultRoutes are the request path fragments on which prices are rewritten.
var DefaultRoutes = []string{
	"checkout/cart",
	"checkout/confirm",
	"checkout/order",
	"store-api/checkout/order",
	"capture",
	"google-capture",
	"apple-capture",
	"api/_proxy-order/",
	"api/_action/order/",
}

var refundMarkers = []string{"/returns", "/return", "api/_action/order/return"}

// Gate decides which request paths trigger a fresh quote.
type Gate struct {
	Routes []string
}

// NewGate returns a gate over routes, or DefaultRoutes when routes is empty.
func NewGate(routes []string) Gate {
	if len(routes) == 0 {
		routes = DefaultRoutes
	}
	return Gate{Routes: routes}
}

// Allows reports whether req should be re-quoted. Calculations not started by
// a request are always allowed.
func (g Gate) Allows(req cart.RequestContext) bool {
	if req.Path == "" {
		return true
	}
	path := strings.ToLower(req.Path)
	routes := g.Routes
	if len(routes) == 0 {
		routes = DefaultRoutes
	}
	for _, route := range routes {
		if route != "" && strings.Contains(path, strings.ToLower(route)) {
			return true
		}
	}
	return false
}

// IsRefund reports whether req belongs to a return flow.
func IsRefund(req cart.RequestContext) bool {
	path := strings.ToLower(req.Path)
	for _, marker := range refundMarkers {
		if strings.Contains(path, marker) {
			return true
		}
	}
	return false
}

type refundBody struct {
	LineItems []struct {
		OrderLineItemID string `json:"orderLineItemId"`
	} `json:"lineItems"`
}

// RefundedLineIDs returns the order line ids named in a return request body.
// ok is false when the body carries no line items.
func RefundedLineIDs(body []byte) (map[string]struct{}, bool) {
	if len(body) == 0 {
		return nil, false
	}
	var in refundBody
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, false
	}
	ids := map[string]struct{}{}
	for _, li := range in.LineItems {
		if li.OrderLineItemID != "" {
			ids[li.OrderLineItemID] = struct{}{}
		}
	}
	return ids, len(in.LineItems) > 0
}

// FilterRefundLines drops lines whose order line is not being returned.
// Lines without an OriginalID are kept. It returns the number removed.
func FilterRefundLines(c *cart.Cart, body []byte) int {
	ids, ok := RefundedLineIDs(body)
	if !ok {
		return 0
	}
	kept := c.LineItems[:0]
	removed := 0
	for _, li := range c.LineItems {
		if li.OriginalID != "" {
			if _, returned := ids[li.OriginalID]; !returned {
				removed++
				continue
			}
		}
		kept = append(kept, li)
	}
	c.LineItems = kept
	return removed
}
