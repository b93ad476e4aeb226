package order

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/taxbridge/internal/cart"
	"github.com/noah-isme/taxbridge/internal/pricing"
)

// Line is a persisted order line. Identifier is the cart line id the order
// line was created from; bundle children reference their parent through it.
type Line struct {
	ID         string        `json:"id" validate:"required"`
	Identifier string        `json:"identifier" validate:"required"`
	ParentID   string        `json:"parentId,omitempty"`
	Type       string        `json:"type" validate:"required"`
	Quantity   int           `json:"quantity" validate:"gte=1"`
	Payload    cart.Payload  `json:"payload,omitempty"`
	Price      pricing.Price `json:"price"`
}

func (l *Line) item() *cart.LineItem {
	return &cart.LineItem{ID: l.Identifier, Type: l.Type, Quantity: l.Quantity, Payload: l.Payload}
}

// PriceUpdate is one line price to persist.
type PriceUpdate struct {
	LineID string        `json:"lineId"`
	Kind   string        `json:"kind"`
	Price  pricing.Price `json:"price"`
}

// Update kinds, also used as metric labels.
const (
	KindChild      = "child"
	KindStandalone = "standalone"
	KindBundle     = "bundle"
)

// Plan derives the prices to persist from the tax annotations stamped during
// checkout. Annotated lines get their recorded tax and rate. Bundle parents
// get the sum of their children's tax as a flat amount at rate zero with no
// rules. Lines without annotations are left out.
func Plan(lines []Line) []PriceUpdate {
	childTax := map[string]decimal.Decimal{}
	for i := range lines {
		if ct, ok := lines[i].item().ChildTax(); ok && ct.BundleParentID != "" {
			childTax[ct.BundleParentID] = childTax[ct.BundleParentID].Add(ct.Tax)
		}
	}

	var updates []PriceUpdate
	for i := range lines {
		line := &lines[i]
		item := line.item()
		if ct, ok := item.ChildTax(); ok {
			updates = append(updates, PriceUpdate{LineID: line.ID, Kind: KindChild, Price: recorded(line.Price, ct)})
			continue
		}
		if st, ok := item.StandaloneTax(); ok {
			updates = append(updates, PriceUpdate{LineID: line.ID, Kind: KindStandalone, Price: recorded(line.Price, st)})
			continue
		}
		if line.Payload.Has(cart.KeyBundleContent) {
			total := childTax[line.Identifier]
			updates = append(updates, PriceUpdate{LineID: line.ID, Kind: KindBundle, Price: line.Price.WithFlatTax(total)})
		}
	}
	return updates
}

func recorded(p pricing.Price, lt cart.LineTax) pricing.Price {
	if lt.Tax.IsZero() {
		return p.Untaxed()
	}
	return p.WithTax(lt.Tax, lt.Rate)
}
