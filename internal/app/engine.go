package app

import (
	"github.com/rs/zerolog"

	"github.com/noah-isme/taxbridge/internal/bundle"
	"github.com/noah-isme/taxbridge/internal/quote"
	"github.com/noah-isme/taxbridge/internal/reconcile"
)

// EngineConfig lists the collaborators of the tax engine.
type EngineConfig struct {
	Provider     quote.Provider
	Catalog      bundle.Catalog
	Session      quote.SessionStore
	Builder      quote.Builder
	Routes       []string
	BlockOnError bool
	Logger       zerolog.Logger
}

// Engine is the wired recalculation pipeline.
type Engine struct {
	Adapter   *quote.Adapter
	Processor *reconcile.Processor
	Pipeline  reconcile.Pipeline
}

// NewEngine wires the quote adapter, the expander and the processor pipeline.
func NewEngine(cfg EngineConfig) *Engine {
	adapter := quote.NewAdapter(quote.AdapterConfig{
		Provider: cfg.Provider,
		Builder:  cfg.Builder,
		Session:  cfg.Session,
		Logger:   cfg.Logger,
	})
	processor := &reconcile.Processor{
		Quotes: adapter.GetTax(),
		Expander: &bundle.Expander{
			Catalog: cfg.Catalog,
			Logger:  cfg.Logger.With().Str("component", "bundle").Logger(),
		},
		Gate:         reconcile.NewGate(cfg.Routes),
		BlockOnError: cfg.BlockOnError,
		Logger:       cfg.Logger.With().Str("component", "reconcile").Logger(),
	}
	return &Engine{
		Adapter:   adapter,
		Processor: processor,
		Pipeline:  reconcile.NewPipeline(processor),
	}
}

// Handler returns the HTTP handler for cart recalculation.
func (e *Engine) Handler(logger zerolog.Logger) *reconcile.Handler {
	return reconcile.NewHandler(e.Pipeline, logger)
}
