package cart

import (
	"github.com/noah-isme/taxbridge/internal/pricing"
)

// Line item types understood by the tax pipeline.
const (
	TypeProduct       = "product"
	TypePromotion     = "promotion"
	TypeCredit        = "credit"
	TypeLoyaltyRedeem = "LOYALTY_REDEEM"
)

// LineItem is a cart or order line. Prices are net.
type LineItem struct {
	ID           string         `json:"id" validate:"required"`
	Type         string         `json:"type" validate:"required"`
	ReferencedID string         `json:"referencedId,omitempty"`
	Label        string         `json:"label,omitempty"`
	Quantity     int            `json:"quantity" validate:"gte=1"`
	Price        *pricing.Price `json:"price,omitempty"`
	Payload      Payload        `json:"payload,omitempty"`
	Children     []*LineItem    `json:"children,omitempty" validate:"dive"`
	// OriginalID links a line rebuilt from an order back to its order line.
	OriginalID string `json:"originalId,omitempty"`
}

// SKU returns the productNumber payload value.
func (li *LineItem) SKU() string {
	return li.Payload.String(KeyProductNumber)
}

// TotalPrice returns the line total or zero when the line has no price yet.
func (li *LineItem) TotalPrice() pricing.Money {
	if li.Price == nil {
		return pricing.Money{}
	}
	return li.Price.TotalPrice
}

// IsBundle reports whether the line carries bundle relations.
func (li *LineItem) IsBundle() bool {
	return li.Payload.Has(KeyBundleRelations)
}

// Clone returns a deep copy of the line and its children.
func (li *LineItem) Clone() *LineItem {
	if li == nil {
		return nil
	}
	out := *li
	if li.Price != nil {
		p := li.Price.Clone()
		out.Price = &p
	}
	out.Payload = li.Payload.Clone()
	if li.Children != nil {
		out.Children = make([]*LineItem, len(li.Children))
		for i, child := range li.Children {
			out.Children[i] = child.Clone()
		}
	}
	return &out
}

// Country is the shipping destination country.
type Country struct {
	ISO  string `json:"iso"`
	ISO3 string `json:"iso3"`
}

// Address is a shipping address.
type Address struct {
	Street    string   `json:"street,omitempty"`
	City      string   `json:"city,omitempty"`
	Zipcode   string   `json:"zipcode,omitempty"`
	Region    string   `json:"region,omitempty"`
	Country   *Country `json:"country,omitempty"`
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
}

// Delivery groups shipping costs with a destination.
type Delivery struct {
	ShippingMethod string        `json:"shippingMethod,omitempty"`
	Address        Address       `json:"address"`
	ShippingCosts  pricing.Price `json:"shippingCosts"`
}

// Cart is an ordered collection of line items and deliveries.
type Cart struct {
	Token      string      `json:"token"`
	LineItems  []*LineItem `json:"lineItems" validate:"dive"`
	Deliveries []*Delivery `json:"deliveries,omitempty"`
}

// Clone returns a deep copy that can be mutated without touching c.
func (c *Cart) Clone() *Cart {
	out := &Cart{Token: c.Token}
	out.LineItems = make([]*LineItem, len(c.LineItems))
	for i, li := range c.LineItems {
		out.LineItems[i] = li.Clone()
	}
	if c.Deliveries != nil {
		out.Deliveries = make([]*Delivery, len(c.Deliveries))
		for i, d := range c.Deliveries {
			cp := *d
			cp.ShippingCosts = d.ShippingCosts.Clone()
			if d.Address.Country != nil {
				country := *d.Address.Country
				cp.Address.Country = &country
			}
			out.Deliveries[i] = &cp
		}
	}
	return out
}

// Get returns the top-level line with id.
func (c *Cart) Get(id string) *LineItem {
	for _, li := range c.LineItems {
		if li.ID == id {
			return li
		}
	}
	return nil
}

// Add appends a line.
func (c *Cart) Add(li *LineItem) {
	c.LineItems = append(c.LineItems, li)
}

// Remove drops the top-level line with id and reports whether it existed.
func (c *Cart) Remove(id string) bool {
	for i, li := range c.LineItems {
		if li.ID == id {
			c.LineItems = append(c.LineItems[:i], c.LineItems[i+1:]...)
			return true
		}
	}
	return false
}

// FilterType returns the top-level lines of the given type.
func (c *Cart) FilterType(typ string) []*LineItem {
	var out []*LineItem
	for _, li := range c.LineItems {
		if li.Type == typ {
			out = append(out, li)
		}
	}
	return out
}

// FirstDelivery returns the first delivery or nil.
func (c *Cart) FirstDelivery() *Delivery {
	if len(c.Deliveries) == 0 {
		return nil
	}
	return c.Deliveries[0]
}

// ShippingCountry returns the first resolvable delivery country.
func (c *Cart) ShippingCountry() *Country {
	for _, d := range c.Deliveries {
		if d.Address.Country != nil && (d.Address.Country.ISO != "" || d.Address.Country.ISO3 != "") {
			return d.Address.Country
		}
	}
	return nil
}
