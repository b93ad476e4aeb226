package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taxbridge/internal/lock"
)

// TypePersistTaxes is the asynq task type committing an order's taxes.
const TypePersistTaxes = "order:persist_taxes"

// PersistTaxesPayload is the task payload.
type PersistTaxesPayload struct {
	OrderID string `json:"orderId"`
}

// NewPersistTaxesTask builds the task for orderID. The task id is derived from
// the order so duplicate submissions are rejected by the queue.
func NewPersistTaxesTask(orderID string) (*asynq.Task, error) {
	payload, err := json.Marshal(PersistTaxesPayload{OrderID: orderID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePersistTaxes, payload, asynq.TaskID("persist-taxes:"+orderID), asynq.MaxRetry(5)), nil
}

// TaskHandler processes TypePersistTaxes tasks.
type TaskHandler struct {
	Reconciler *Reconciler
	Logger     zerolog.Logger
}

// ProcessTask implements asynq.Handler. Orders that were already persisted are
// acknowledged; a held lock is retried later.
func (h *TaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p PersistTaxesPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", TypePersistTaxes, err, asynq.SkipRetry)
	}
	if p.OrderID == "" {
		return fmt.Errorf("%s payload without order id: %w", TypePersistTaxes, asynq.SkipRetry)
	}
	_, err := h.Reconciler.Persist(ctx, p.OrderID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAlreadyPersisted):
		h.Logger.Info().Str("order_id", p.OrderID).Msg("order_taxes_already_persisted")
		return nil
	case errors.Is(err, ErrNotFound):
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	case errors.Is(err, lock.ErrHeld):
		h.Logger.Warn().Str("order_id", p.OrderID).Msg("order_taxes_locked")
		return err
	default:
		h.Logger.Error().Err(err).Str("order_id", p.OrderID).Msg("order_taxes_failed")
		return err
	}
}

// Enqueuer submits asynq tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Mux returns an asynq mux routing TypePersistTaxes to h.
func (h *TaskHandler) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypePersistTaxes, h)
	return mux
}
