package order

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taxbridge/internal/common"
)

// Handler exposes order tax persistence over HTTP.
type Handler struct {
	Repo     Repository
	Queue    Enqueuer
	Validate *validator.Validate
	Logger   zerolog.Logger
}

type submitRequest struct {
	LineItems []Line `json:"lineItems" validate:"required,min=1,dive"`
}

// Submit stores the placed order's lines and queues the tax commit.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		common.WriteError(w, common.BadRequest("order id is required", nil))
		return
	}
	var in submitRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.WriteError(w, common.BadRequest("invalid JSON body", err))
		return
	}
	if err := h.Validate.Struct(in); err != nil {
		common.WriteError(w, common.NewAppError(common.CodeValidation, "invalid order lines", http.StatusUnprocessableEntity, err))
		return
	}

	if err := h.Repo.SaveLines(r.Context(), orderID, in.LineItems); err != nil {
		h.Logger.Error().Err(err).Str("order_id", orderID).Msg("order_lines_save_failed")
		common.WriteError(w, err)
		return
	}

	task, err := NewPersistTaxesTask(orderID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	status := "queued"
	if _, err := h.Queue.EnqueueContext(r.Context(), task); err != nil {
		if !errors.Is(err, asynq.ErrTaskIDConflict) {
			h.Logger.Error().Err(err).Str("order_id", orderID).Msg("order_task_enqueue_failed")
			common.WriteError(w, err)
			return
		}
		status = "already_queued"
	}
	common.Data(w, http.StatusAccepted, map[string]any{"orderId": orderID, "status": status})
}

// Get returns the stored lines and their current prices.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	lines, err := h.Repo.Lines(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.WriteError(w, common.NewAppError(common.CodeNotFound, "order not found", http.StatusNotFound, err))
			return
		}
		h.Logger.Error().Err(err).Str("order_id", orderID).Msg("order_lines_load_failed")
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{"orderId": orderID, "lineItems": lines})
}

// NewHandler returns a handler with a fresh validator.
func NewHandler(repo Repository, queue Enqueuer, logger zerolog.Logger) *Handler {
	return &Handler{Repo: repo, Queue: queue, Validate: validator.New(), Logger: logger}
}
