package pricing

import "github.com/shopspring/decimal"

// CalculatedTax is one tax entry on a price.
type CalculatedTax struct {
	Tax     Money           `json:"tax"`
	TaxRate decimal.Decimal `json:"taxRate"`
	Price   Money           `json:"price"`
}

// TaxRule is one rule of a price's tax rule set.
type TaxRule struct {
	TaxRate    decimal.Decimal `json:"taxRate"`
	Percentage decimal.Decimal `json:"percentage"`
}

// NewTaxRule returns a rule applying rate to the full amount.
func NewTaxRule(rate decimal.Decimal) TaxRule {
	return TaxRule{TaxRate: rate, Percentage: hundred}
}

// Price is an immutable calculated price. The With* constructors always
// return a fresh value and never share slices with the receiver.
type Price struct {
	UnitPrice       Money           `json:"unitPrice"`
	TotalPrice      Money           `json:"totalPrice"`
	Quantity        int             `json:"quantity"`
	CalculatedTaxes []CalculatedTax `json:"calculatedTaxes"`
	TaxRules        []TaxRule       `json:"taxRules"`
}

// NewPrice builds an untaxed price from a unit price and quantity.
func NewPrice(unit Money, quantity int) Price {
	total := unit.Mul(decimal.NewFromInt(int64(quantity)))
	return Price{
		UnitPrice:       unit,
		TotalPrice:      total,
		Quantity:        quantity,
		CalculatedTaxes: []CalculatedTax{},
		TaxRules:        []TaxRule{},
	}
}

// WithTax returns a copy carrying a single tax entry and one matching rule.
func (p Price) WithTax(tax Money, rate decimal.Decimal) Price {
	out := p.base()
	out.CalculatedTaxes = []CalculatedTax{{Tax: tax, TaxRate: rate, Price: p.TotalPrice}}
	out.TaxRules = []TaxRule{NewTaxRule(rate)}
	return out
}

// WithFlatTax returns a copy carrying the tax amount at rate zero and no
// rules, so downstream recalculation cannot reapply a rate.
func (p Price) WithFlatTax(tax Money) Price {
	out := p.base()
	out.CalculatedTaxes = []CalculatedTax{{Tax: tax, TaxRate: decimal.Zero, Price: p.TotalPrice}}
	return out
}

// Untaxed returns a copy with a zero tax entry and no rules.
func (p Price) Untaxed() Price {
	return p.WithFlatTax(decimal.Zero)
}

// WithTaxes returns a copy with the given taxes and rules copied in.
func (p Price) WithTaxes(taxes []CalculatedTax, rules []TaxRule) Price {
	out := p.base()
	out.CalculatedTaxes = append(out.CalculatedTaxes, taxes...)
	out.TaxRules = append(out.TaxRules, rules...)
	return out
}

// WithQuantity returns a copy scaled to quantity, keeping the unit price.
func (p Price) WithQuantity(quantity int) Price {
	out := p.Clone()
	out.Quantity = quantity
	out.TotalPrice = p.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	return out
}

// TotalTax sums the calculated tax entries.
func (p Price) TotalTax() Money {
	sum := decimal.Zero
	for _, t := range p.CalculatedTaxes {
		sum = sum.Add(t.Tax)
	}
	return sum
}

// Clone returns a deep copy.
func (p Price) Clone() Price {
	return p.WithTaxes(p.CalculatedTaxes, p.TaxRules)
}

func (p Price) base() Price {
	return Price{
		UnitPrice:       p.UnitPrice,
		TotalPrice:      p.TotalPrice,
		Quantity:        p.Quantity,
		CalculatedTaxes: []CalculatedTax{},
		TaxRules:        []TaxRule{},
	}
}

// MergeTaxesByRate sums tax entries sharing a rate, preserving first-seen order.
func MergeTaxesByRate(groups ...[]CalculatedTax) []CalculatedTax {
	out := []CalculatedTax{}
	index := map[string]int{}
	for _, taxes := range groups {
		for _, t := range taxes {
			key := t.TaxRate.String()
			if i, ok := index[key]; ok {
				out[i].Tax = out[i].Tax.Add(t.Tax)
				out[i].Price = out[i].Price.Add(t.Price)
				continue
			}
			index[key] = len(out)
			out = append(out, t)
		}
	}
	return out
}

// UnionRulesByRate returns the rules with distinct rates, preserving first-seen order.
func UnionRulesByRate(groups ...[]TaxRule) []TaxRule {
	out := []TaxRule{}
	seen := map[string]struct{}{}
	for _, rules := range groups {
		for _, r := range rules {
			key := r.TaxRate.String()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}
