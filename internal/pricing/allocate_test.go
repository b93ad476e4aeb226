package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxbridge/internal/pricing"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decs(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = dec(v)
	}
	return out
}

func requireAmounts(t *testing.T, want []string, got []pricing.Money) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		require.Truef(t, dec(want[i]).Equal(got[i]), "share %d: want %s got %s", i, want[i], got[i])
	}
}

func sum(values []pricing.Money) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func TestAllocate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		total   string
		weights []string
		want    []string
	}{
		{name: "single consumer", total: "7.13", weights: []string{"5"}, want: []string{"7.13"}},
		{name: "even split", total: "10.00", weights: []string{"50", "50"}, want: []string{"5.00", "5.00"}},
		{name: "residual on last", total: "10.00", weights: []string{"1", "1", "1"}, want: []string{"3.33", "3.33", "3.34"}},
		{name: "proportional", total: "6.00", weights: []string{"10", "20"}, want: []string{"2.00", "4.00"}},
		{name: "zero weights fall back to equal", total: "9.00", weights: []string{"0", "0", "0"}, want: []string{"3.00", "3.00", "3.00"}},
		{name: "negative sum falls back to equal", total: "1.00", weights: []string{"-1", "0"}, want: []string{"0.50", "0.50"}},
		{name: "zero weight keeps slot", total: "4.00", weights: []string{"0", "10"}, want: []string{"0.00", "4.00"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := pricing.Allocate(dec(tc.total), decs(tc.weights...))
			requireAmounts(t, tc.want, got)
			require.True(t, dec(tc.total).Equal(sum(got)))
		})
	}
}

func TestAllocateEmpty(t *testing.T) {
	require.Nil(t, pricing.Allocate(dec("1.00"), nil))
}

func TestAllocateExactAcrossManyWeights(t *testing.T) {
	t.Parallel()

	weights := decs("19.99", "0.01", "333.33", "12.50", "7", "7", "7", "1000")
	for _, total := range []string{"0.01", "0.99", "13.37", "101.10", "99999.99"} {
		got := pricing.Allocate(dec(total), weights)
		require.Len(t, got, len(weights))
		require.Truef(t, dec(total).Equal(sum(got)), "total %s allocated %s", total, sum(got))
		for _, share := range got[:len(got)-1] {
			require.Equal(t, share.String(), pricing.Round2(share).String())
		}
	}
}

func TestNetFromGross(t *testing.T) {
	require.True(t, dec("10.00").Equal(pricing.NetFromGross(dec("11.90"), dec("19"))))
	require.True(t, dec("8.40").Equal(pricing.NetFromGross(dec("10.00"), dec("19"))))
	require.True(t, dec("5.00").Equal(pricing.NetFromGross(dec("5"), dec("0"))))
}

func TestEffectiveRate(t *testing.T) {
	require.True(t, dec("20").Equal(pricing.EffectiveRate(dec("6.00"), dec("30.00"), 4)))
	require.True(t, dec("6.6667").Equal(pricing.EffectiveRate(dec("2.00"), dec("30.00"), 4)))
	require.True(t, pricing.EffectiveRate(dec("0"), dec("30.00"), 4).IsZero())
	require.True(t, pricing.EffectiveRate(dec("1"), dec("0"), 4).IsZero())
}
