package cart

import (
	"context"

	"github.com/shopspring/decimal"
)

// RequestContext describes the inbound request that triggered a calculation.
// An empty Path means the calculation was not started by an HTTP request.
type RequestContext struct {
	Path    string `json:"path"`
	RawBody []byte `json:"rawBody,omitempty"`
}

// Customer identifies the buyer.
type Customer struct {
	ID             string `json:"id" validate:"required"`
	CustomerNumber string `json:"customerNumber"`
	Email          string `json:"email,omitempty"`
}

// SalesContext is the sales channel context of a calculation.
type SalesContext struct {
	SalesChannelID string    `json:"salesChannelId" validate:"required"`
	SessionID      string    `json:"sessionId"`
	CurrencyISO    string    `json:"currency" validate:"required,len=3"`
	Customer       *Customer `json:"customer,omitempty"`
}

// Behavior carries pipeline flags.
type Behavior struct {
	// SkipTaxes disables every tax step, as used for cart previews.
	SkipTaxes bool `json:"skipTaxes"`
}

// Product is a resolved catalog product.
type Product struct {
	ID            string          `json:"id"`
	ProductNumber string          `json:"productNumber"`
	Name          string          `json:"name"`
	TaxRate       decimal.Decimal `json:"taxRate"`
	CustomFields  map[string]any  `json:"customFields,omitempty"`
}

// SharedData holds data resolved earlier in the pipeline.
type SharedData struct {
	Products map[string]Product `json:"products,omitempty"`
}

// Product returns a product already resolved for this calculation.
func (d *SharedData) Product(id string) (Product, bool) {
	if d == nil {
		return Product{}, false
	}
	p, ok := d.Products[id]
	return p, ok
}

// Calculation bundles the arguments of one pipeline pass. Original must be
// treated as read only; Target is mutated in place.
type Calculation struct {
	Request  RequestContext
	Data     *SharedData
	Original *Cart
	Target   *Cart
	Sales    SalesContext
	Behavior Behavior
}

// Processor is one step of the cart calculation pipeline.
type Processor interface {
	Process(ctx context.Context, calc *Calculation) error
}
