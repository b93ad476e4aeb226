package cart

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Payload annotation keys shared between the cart pipeline and order persistence.
const (
	KeyProductNumber    = "productNumber"
	KeyBundleRelations  = "bundleRelations"
	KeyBundleContent    = "bundleContent"
	KeyChildTax         = "AvalaraLineItemChildTax"
	KeyStandaloneTax    = "AvalaraStandaloneTax"
	KeyPromotionID      = "promotionId"
	KeyCustomFields     = "customFields"
	KeyTaxRequestStatus = "avalaraTaxRequestStatus"
	KeyCalculatedTaxes  = "avalaraCalculatedTaxes"
	KeyTaxRules         = "avalaraTaxRules"
	KeyBundleQuantity   = "quantity"
)

// Payload holds JSON-serializable line annotations.
type Payload map[string]any

// Has reports whether key is set to a non-empty value.
func (p Payload) Has(key string) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	case bool:
		return t
	}
	return true
}

// String returns the string value at key or "".
func (p Payload) String(key string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return ""
}

// Int returns the integer value at key. Numbers decoded from JSON are accepted.
func (p Payload) Int(key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}

// Set stores v under key, allocating the map when needed.
func (p *Payload) Set(key string, v any) {
	if *p == nil {
		*p = Payload{}
	}
	(*p)[key] = v
}

// Decode unmarshals the value at key into dst. Values may be typed structs set
// in memory or generic maps decoded from JSON.
func (p Payload) Decode(key string, dst any) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return false
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// Clone deep copies the payload through its JSON form.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		out := make(Payload, len(p))
		for k, v := range p {
			out[k] = v
		}
		return out
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out Payload
	if err := dec.Decode(&out); err != nil {
		return nil
	}
	return out
}

// LineTax is the tax annotation stamped by the reconciler and read at order
// placement. BundleParentID is only set on bundle children.
type LineTax struct {
	Tax            decimal.Decimal `json:"tax"`
	Rate           decimal.Decimal `json:"rate"`
	Quantity       int             `json:"quantity"`
	BundleParentID string          `json:"bundleParentId,omitempty"`
}

// ChildTax returns the bundle child tax annotation.
func (li *LineItem) ChildTax() (LineTax, bool) {
	return li.lineTax(KeyChildTax)
}

// StandaloneTax returns the standalone tax annotation.
func (li *LineItem) StandaloneTax() (LineTax, bool) {
	return li.lineTax(KeyStandaloneTax)
}

// An annotation without a tax amount is treated as absent.
func (li *LineItem) lineTax(key string) (LineTax, bool) {
	var fields map[string]json.RawMessage
	if !li.Payload.Decode(key, &fields) {
		return LineTax{}, false
	}
	if _, ok := fields["tax"]; !ok {
		return LineTax{}, false
	}
	var t LineTax
	if !li.Payload.Decode(key, &t) {
		return LineTax{}, false
	}
	return t, true
}

// CustomFields returns the customFields payload map.
func (li *LineItem) CustomFields() map[string]any {
	if m, ok := li.Payload[KeyCustomFields].(map[string]any); ok {
		return m
	}
	return nil
}
