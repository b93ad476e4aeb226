package quote

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/taxbridge/internal/pricing"
)

// StaticProvider answers from fixed per-item-code taxes. Items without an
// entry are taxed at DefaultRate percent of their amount.
type StaticProvider struct {
	Taxes       map[string]LineTax
	DefaultRate decimal.Decimal
}

// CreateTransaction implements Provider.
func (p StaticProvider) CreateTransaction(_ context.Context, req Request) (*Response, error) {
	resp := &Response{Code: "static", Lines: []ResponseLine{}}
	for _, line := range req.Lines {
		entry, ok := p.Taxes[line.ItemCode]
		if !ok {
			entry = LineTax{
				Tax:  pricing.Round2(pricing.TaxFor(line.Amount, p.DefaultRate)),
				Rate: p.DefaultRate,
			}
		}
		resp.Lines = append(resp.Lines, ResponseLine{
			LineNumber: line.Number,
			ItemCode:   line.ItemCode,
			Tax:        entry.Tax,
			Details:    []ResponseDetail{{TaxName: "static", Rate: entry.Rate.Div(hundred), Tax: entry.Tax}},
		})
	}
	return resp, nil
}
