package reconcile

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taxbridge/internal/cart"
	"github.com/noah-isme/taxbridge/internal/common"
	"github.com/noah-isme/taxbridge/internal/security"
)

// ErrNoCart is returned when a calculation has no cart to work on.
var ErrNoCart = errors.New("reconcile: calculation has no cart")

// RequestInfo describes the storefront request the calculation runs for.
type RequestInfo struct {
	Path string          `json:"path"`
	Body json.RawMessage `json:"body,omitempty"`
}

// RecalculateRequest is the body of POST /api/v1/cart/recalculate.
type RecalculateRequest struct {
	Request  RequestInfo       `json:"request"`
	Cart     *cart.Cart        `json:"cart" validate:"required"`
	Sales    cart.SalesContext `json:"salesContext"`
	Data     *cart.SharedData  `json:"data,omitempty"`
	Behavior cart.Behavior     `json:"behavior"`
}

// Calculation converts the request into a pipeline calculation.
func (in RecalculateRequest) Calculation() *cart.Calculation {
	return &cart.Calculation{
		Request:  cart.RequestContext{Path: in.Request.Path, RawBody: in.Request.Body},
		Data:     in.Data,
		Original: in.Cart,
		Target:   in.Cart.Clone(),
		Sales:    in.Sales,
		Behavior: in.Behavior,
	}
}

// Handler serves cart recalculation.
type Handler struct {
	Pipeline Pipeline
	Validate *validator.Validate
	Logger   zerolog.Logger
}

// NewHandler returns a handler running pipeline.
func NewHandler(pipeline Pipeline, logger zerolog.Logger) *Handler {
	return &Handler{Pipeline: pipeline, Validate: validator.New(), Logger: logger}
}

// Recalculate runs the pipeline and returns the recalculated cart.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	body, ok := security.Body(r.Context())
	if !ok {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			common.WriteError(w, common.BadRequest("invalid request body", err))
			return
		}
	}

	var in RecalculateRequest
	if err := json.Unmarshal(body, &in); err != nil {
		common.WriteError(w, common.BadRequest("invalid JSON body", err))
		return
	}
	if err := h.Validate.Struct(in); err != nil {
		appErr := common.NewAppError(common.CodeValidation, "invalid recalculation request", http.StatusUnprocessableEntity, err)
		appErr.Details = validationDetails(err)
		common.WriteError(w, appErr)
		return
	}

	calc := in.Calculation()
	if err := h.Pipeline.Run(r.Context(), calc); err != nil {
		h.Logger.Error().Err(err).Str("path", in.Request.Path).Msg("recalculate_failed")
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, calc.Target)
}

func validationDetails(err error) map[string]string {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return nil
	}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.Namespace()] = f.Tag()
	}
	return out
}
