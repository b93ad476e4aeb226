package reconcile

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/taxbridge/internal/bundle"
	"github.com/noah-isme/taxbridge/internal/cart"
	"github.com/noah-isme/taxbridge/internal/obs"
	"github.com/noah-isme/taxbridge/internal/quote"
)

// TaxQuoter quotes carts and serves the last result of a session.
type TaxQuoter interface {
	Taxes(ctx context.Context, c *cart.Cart, sc cart.SalesContext) quote.TaxResult
	Cached(ctx context.Context, sessionID string) quote.TaxResult
}

// Processor rewrites the taxes of a calculation's target cart from a quote of
// its bundle-expanded, SKU-merged copy.
type Processor struct {
	Quotes       TaxQuoter
	Expander     *bundle.Expander
	Gate         Gate
	BlockOnError bool
	Logger       zerolog.Logger
}

// Process implements cart.Processor. Quote failures never surface as errors;
// the target keeps its existing prices instead.
func (p *Processor) Process(ctx context.Context, calc *cart.Calculation) error {
	if calc.Target == nil {
		return ErrNoCart
	}
	if calc.Behavior.SkipTaxes {
		return nil
	}
	ctx, span := otel.Tracer("taxbridge/reconcile").Start(ctx, "reconcile.Process")
	defer span.End()

	refund := IsRefund(calc.Request)
	mode := "checkout"
	if refund {
		mode = "refund"
	}
	span.SetAttributes(attribute.String("reconcile.mode", mode))
	log := p.Logger.With().Str("mode", mode).Str("session_id", calc.Sales.SessionID).Logger()

	taxes := p.Quotes.Cached(ctx, calc.Sales.SessionID)
	if p.Gate.Allows(calc.Request) && calc.Original != nil && calc.Original.ShippingCountry() != nil {
		taxes = p.quote(ctx, calc, refund, log)
	}

	if !taxes.Succeeded() {
		obs.CountReconcile(mode, "skipped")
		span.SetAttributes(attribute.String("reconcile.status", string(taxes.Status)))
		return nil
	}

	products := changeTaxes(calc.Target, taxes, refund)
	shipping := changeShippingCosts(calc.Target, taxes, refund)
	promotions := changePromotionTaxes(calc.Target, taxes, refund)
	obs.CountReconcile(mode, "applied")
	log.Debug().Int("products", products).Bool("shipping", shipping).Int("promotions", promotions).Msg("reconcile_applied")
	return nil
}

func (p *Processor) quote(ctx context.Context, calc *cart.Calculation, refund bool, log zerolog.Logger) quote.TaxResult {
	work := calc.Original.Clone()
	if refund {
		if removed := FilterRefundLines(work, calc.Request.RawBody); removed > 0 {
			log.Info().Int("removed", removed).Msg("reconcile_refund_filtered")
		}
	}

	usage := bundle.NewUsage()
	usage.TrackStandalone(work)
	p.expander().Expand(ctx, work, calc.Data, usage)
	cart.MergeSameSKUs(work)

	raw := p.Quotes.Taxes(ctx, work, calc.Sales)
	applyTaxesToChildren(calc.Target, raw)
	taxes := allocateMergedSKUTaxes(raw, usage)
	for _, b := range usage.Bundles() {
		entry, _ := taxes.Get(b)
		log.Debug().
			Str("bundle", b).
			Int("children", len(usage.Children(b))).
			Str("tax", entry.Tax.String()).
			Str("rate", entry.Rate.String()).
			Msg("reconcile_bundle_collapsed")
	}

	if p.BlockOnError {
		stampRequestStatus(calc.Target, taxes)
	}
	return taxes
}

func (p *Processor) expander() *bundle.Expander {
	if p.Expander != nil {
		return p.Expander
	}
	return &bundle.Expander{Logger: p.Logger}
}
