package quote

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Provider calculates taxes for a request.
type Provider interface {
	CreateTransaction(ctx context.Context, req Request) (*Response, error)
}

// Response is a provider answer. A nil Lines slice means the provider did
// not return a usable transaction.
type Response struct {
	Code    string          `json:"code,omitempty"`
	Lines   []ResponseLine  `json:"lines"`
	Summary json.RawMessage `json:"summary,omitempty"`
}

// ResponseLine is the tax of one request line.
type ResponseLine struct {
	LineNumber string           `json:"lineNumber"`
	ItemCode   string           `json:"itemCode"`
	Tax        decimal.Decimal  `json:"tax"`
	Details    []ResponseDetail `json:"details"`
}

// ResponseDetail is one jurisdiction's share of a line. Rate is a fraction.
type ResponseDetail struct {
	TaxName string          `json:"taxName,omitempty"`
	Rate    decimal.Decimal `json:"rate"`
	Tax     decimal.Decimal `json:"tax"`
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req Request) (*Response, error)

// CreateTransaction implements Provider.
func (f ProviderFunc) CreateTransaction(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
