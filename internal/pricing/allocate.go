package pricing

import "github.com/shopspring/decimal"

// Allocate distributes total across weights so the shares sum to total at
// currency precision. Every share but the last is rounded proportionally; the
// last share takes the residual. Non-positive weight sums fall back to equal
// weights.
func Allocate(total Money, weights []decimal.Decimal) []Money {
	n := len(weights)
	if n == 0 {
		return nil
	}
	total = Round2(total)
	if n == 1 {
		return []Money{total}
	}

	sum := decimal.Zero
	for _, w := range weights {
		sum = sum.Add(w)
	}
	if !sum.IsPositive() {
		equal := make([]decimal.Decimal, n)
		for i := range equal {
			equal[i] = decimal.NewFromInt(1)
		}
		weights = equal
		sum = decimal.NewFromInt(int64(n))
	}

	shares := make([]Money, n)
	allocated := decimal.Zero
	for i := 0; i < n-1; i++ {
		shares[i] = Round2(total.Mul(weights[i]).Div(sum))
		allocated = allocated.Add(shares[i])
	}
	shares[n-1] = Round2(total.Sub(allocated))
	return shares
}
