package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/noah-isme/taxbridge/internal/app"
	"github.com/noah-isme/taxbridge/internal/bundle"
	"github.com/noah-isme/taxbridge/internal/cart"
	"github.com/noah-isme/taxbridge/internal/obs"
	"github.com/noah-isme/taxbridge/internal/quote"
	"github.com/noah-isme/taxbridge/internal/reconcile"
	"github.com/noah-isme/taxbridge/internal/session"
)

func newReconcileCmd() *cobra.Command {
	var (
		requestFile string
		ratesFile   string
		defaultRate string
		blockOnErr  bool
	)
	c := &cobra.Command{
		Use:   "reconcile",
		Short: "Recalculate a cart against fixed tax rates",
		Long: `Reads a recalculation request (the body of POST /api/v1/cart/recalculate),
quotes it with a static provider and prints the recalculated cart.

The rates file maps item codes (SKU, promotion id or "Shipping") to
{"tax": "1.90", "rate": "19"}. Unlisted items are taxed at --default-rate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req reconcile.RecalculateRequest
			if err := readJSON(requestFile, &req); err != nil {
				return fmt.Errorf("read request: %w", err)
			}
			if req.Cart == nil {
				return fmt.Errorf("request has no cart")
			}
			taxes := map[string]quote.LineTax{}
			if ratesFile != "" {
				if err := readJSON(ratesFile, &taxes); err != nil {
					return fmt.Errorf("read rates: %w", err)
				}
			}
			rate, err := decimal.NewFromString(defaultRate)
			if err != nil {
				return fmt.Errorf("parse default rate: %w", err)
			}

			level, _ := cmd.Flags().GetString("log-level")
			logger := obs.NewLoggerTo(cmd.ErrOrStderr(), "console", level)
			engine := app.NewEngine(app.EngineConfig{
				Provider:     quote.StaticProvider{Taxes: taxes, DefaultRate: rate},
				Catalog:      catalogFrom(req.Data),
				Session:      session.NewStore(nil, 0, true),
				Builder:      quote.Builder{CompanyCode: "DEFAULT", ShippingTaxCode: "FR020100", DefaultTaxCode: "P0000000"},
				BlockOnError: blockOnErr,
				Logger:       logger,
			})

			calc := req.Calculation()
			if calc.Request.Path == "" {
				calc.Request.Path = "/checkout/cart"
			}
			if err := engine.Pipeline.Run(cmd.Context(), calc); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), calc.Target)
		},
	}
	c.Flags().StringVarP(&requestFile, "request", "f", "", "recalculation request JSON file (- for stdin)")
	c.Flags().StringVarP(&ratesFile, "rates", "r", "", "item code to tax JSON file")
	c.Flags().StringVar(&defaultRate, "default-rate", "0", "percentage applied to unlisted items")
	c.Flags().BoolVar(&blockOnErr, "block-on-error", false, "stamp the quote status on product lines")
	_ = c.MarkFlagRequired("request")
	return c
}

// catalogFrom serves bundle children from the request's resolved products.
func catalogFrom(data *cart.SharedData) bundle.StaticCatalog {
	catalog := bundle.StaticCatalog{}
	if data == nil {
		return catalog
	}
	for _, p := range data.Products {
		catalog[p.ProductNumber] = p
	}
	return catalog
}

func readJSON(path string, dst any) error {
	if path == "-" {
		return json.NewDecoder(os.Stdin).Decode(dst)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(dst)
}
