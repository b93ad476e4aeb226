package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/noah-isme/taxbridge/internal/pricing"
)

func newAllocateCmd() *cobra.Command {
	var (
		total   string
		weights []string
	)
	c := &cobra.Command{
		Use:   "allocate",
		Short: "Split an amount across weights with largest-remainder rounding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount, err := decimal.NewFromString(total)
			if err != nil {
				return fmt.Errorf("parse total: %w", err)
			}
			parsed := make([]decimal.Decimal, 0, len(weights))
			for _, w := range weights {
				d, err := decimal.NewFromString(w)
				if err != nil {
					return fmt.Errorf("parse weight %q: %w", w, err)
				}
				parsed = append(parsed, d)
			}
			if len(parsed) == 0 {
				return fmt.Errorf("at least one weight is required")
			}
			for _, share := range pricing.Allocate(amount, parsed) {
				fmt.Fprintln(cmd.OutOrStdout(), share.StringFixed(2))
			}
			return nil
		},
	}
	c.Flags().StringVarP(&total, "total", "t", "", "amount to allocate")
	c.Flags().StringSliceVarP(&weights, "weights", "w", nil, "comma separated weights")
	_ = c.MarkFlagRequired("total")
	return c
}
