package reconcile

import (
	"context"
	"fmt"

	"github.com/noah-isme/taxbridge/internal/bundle"
	"github.com/noah-isme/taxbridge/internal/cart"
)

// Pipeline runs processors in order over one calculation.
type Pipeline []cart.Processor

// NewPipeline returns the standard order: bundle child sync, tax
// reconciliation, then the tax snapshot.
func NewPipeline(p *Processor) Pipeline {
	return Pipeline{bundle.ChildSync{}, p, Snapshot{Gate: p.Gate}}
}

// Run executes every processor and stops at the first error.
func (p Pipeline) Run(ctx context.Context, calc *cart.Calculation) error {
	if calc.Target == nil && calc.Original != nil {
		calc.Target = calc.Original.Clone()
	}
	if calc.Target == nil {
		return ErrNoCart
	}
	for i, proc := range p {
		if err := proc.Process(ctx, calc); err != nil {
			return fmt.Errorf("reconcile: processor %d: %w", i, err)
		}
	}
	return nil
}
