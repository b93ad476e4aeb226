package bundle

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/taxbridge/internal/cart"
)

// Relation is one row of a bundle line's bundleRelations payload.
type Relation struct {
	ProductID        string        `json:"productId"`
	ProductNumber    string        `json:"productNumber"`
	QuantityInBundle int           `json:"quantityInBundle"`
	ProductPrice     RelationPrice `json:"productPrice"`
	ProductName      string        `json:"productName"`
}

// RelationPrice holds the optional per-unit prices of a relation row.
type RelationPrice struct {
	Net   *decimal.Decimal `json:"net"`
	Gross *decimal.Decimal `json:"gross"`
}

// Relations decodes the bundleRelations payload of li.
func Relations(li *cart.LineItem) ([]Relation, bool) {
	var rows []Relation
	if !li.Payload.Decode(cart.KeyBundleRelations, &rows) {
		return nil, false
	}
	return rows, len(rows) > 0
}
