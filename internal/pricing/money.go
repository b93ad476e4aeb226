package pricing

import "github.com/shopspring/decimal"

// Money is a currency amount. Amounts are kept at full precision until a
// rounding step is explicitly requested.
type Money = decimal.Decimal

// CurrencyPlaces is the precision tax amounts are rounded to.
const CurrencyPlaces = 2

func init() {
	// Payload annotations are consumed as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

var hundred = decimal.NewFromInt(100)

// Round2 rounds an amount to currency precision.
func Round2(v Money) Money {
	return v.Round(CurrencyPlaces)
}

// NetFromGross derives a net amount from a gross amount and a percentage rate.
func NetFromGross(gross, rate decimal.Decimal) Money {
	divisor := decimal.NewFromInt(1).Add(rate.Div(hundred))
	if divisor.IsZero() {
		return Round2(gross)
	}
	return Round2(gross.Div(divisor))
}

// TaxFor returns amount * rate / 100 without rounding.
func TaxFor(amount, rate decimal.Decimal) Money {
	return amount.Mul(rate).Div(hundred)
}

// EffectiveRate returns tax/net*100 rounded to places, or zero when either
// side is not positive.
func EffectiveRate(tax, net decimal.Decimal, places int32) decimal.Decimal {
	if !tax.IsPositive() || !net.IsPositive() {
		return decimal.Zero
	}
	return tax.Div(net).Mul(hundred).Round(places)
}
