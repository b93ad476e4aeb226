package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/taxbridge/internal/obs"
)

// Locker runs fn under a per-key lock without waiting for it.
type Locker interface {
	TryWithLock(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) error) error
}

// Reconciler commits checkout tax annotations to the order lines once per
// order.
type Reconciler struct {
	Repo    Repository
	Locker  Locker
	LockTTL time.Duration
	Logger  zerolog.Logger
}

// Persist plans and writes the final line prices of orderID. A concurrent or
// repeated run fails with lock.ErrHeld or ErrAlreadyPersisted.
func (r *Reconciler) Persist(ctx context.Context, orderID string) ([]PriceUpdate, error) {
	ctx, span := otel.Tracer("taxbridge/order").Start(ctx, "order.Persist")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	var updates []PriceUpdate
	run := func(ctx context.Context) error {
		lines, err := r.Repo.Lines(ctx, orderID)
		if err != nil {
			return err
		}
		updates = Plan(lines)
		if err := r.Repo.ApplyPrices(ctx, orderID, updates); err != nil {
			return err
		}
		return nil
	}

	var err error
	if r.Locker != nil {
		err = r.Locker.TryWithLock(ctx, "order:"+orderID, r.LockTTL, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		if !errors.Is(err, ErrAlreadyPersisted) {
			span.RecordError(err)
		}
		return nil, fmt.Errorf("persist order %s taxes: %w", orderID, err)
	}

	counts := map[string]int{}
	for _, u := range updates {
		counts[u.Kind]++
	}
	for kind, n := range counts {
		obs.CountOrderTaxUpdate(kind, n)
	}
	span.SetAttributes(attribute.Int("order.updates", len(updates)))
	r.Logger.Info().Str("order_id", orderID).Int("updates", len(updates)).Msg("order_taxes_persisted")
	return updates, nil
}
