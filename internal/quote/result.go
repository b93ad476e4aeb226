package quote

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Status is the request status sentinel of a TaxResult.
type Status string

const (
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
	StatusNotNeeded Status = "NOT_NEEDED"
)

// ShippingKey is the result key of the shipping line.
const ShippingKey = "Shipping"

// LineTax is the quoted tax of one key. Rate is a percentage.
type LineTax struct {
	Tax  decimal.Decimal `json:"tax"`
	Rate decimal.Decimal `json:"rate"`
}

// TaxResult maps SKUs, promotion ids and ShippingKey to quoted taxes. A result
// with an empty Status is malformed and treated as absent.
type TaxResult struct {
	Status  Status             `json:"status"`
	Lines   map[string]LineTax `json:"lines,omitempty"`
	Summary json.RawMessage    `json:"summary,omitempty"`
}

// Succeeded reports whether prices may be rewritten from r.
func (r TaxResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Valid reports whether r carries a status.
func (r TaxResult) Valid() bool {
	return r.Status != ""
}

// Get returns the entry for key.
func (r TaxResult) Get(key string) (LineTax, bool) {
	lt, ok := r.Lines[key]
	return lt, ok
}

// Clone returns a copy whose Lines map can be mutated independently.
func (r TaxResult) Clone() TaxResult {
	out := TaxResult{Status: r.Status, Summary: r.Summary}
	if r.Lines != nil {
		out.Lines = make(map[string]LineTax, len(r.Lines))
		for k, v := range r.Lines {
			out.Lines[k] = v
		}
	}
	return out
}

func statusOnly(s Status) TaxResult {
	return TaxResult{Status: s}
}
