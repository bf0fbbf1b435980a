// Package billpay exposes fee and bill payments settled through a Remita
// retrieval reference (RRR).
package billpay

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campuspay/campuspay-api/internal/middleware"
	"github.com/campuspay/campuspay-api/internal/pkg/errorhandler"
	"github.com/campuspay/campuspay-api/internal/pkg/response"
	"github.com/campuspay/campuspay-api/internal/pkg/validator"
)

// Mover is implemented by the settlement orchestrator.
type Mover interface {
	InitiateRRR(ctx context.Context, in PayInput) (*Result, error)
	RefreshRRR(ctx context.Context, userID uuid.UUID, reference string) (*Result, error)
}

type Handler struct {
	mover Mover
}

func NewHandler(mover Mover) *Handler {
	return &Handler{mover: mover}
}

func (h *Handler) Register(r chi.Router, moneyMW func(http.Handler) http.Handler) {
	r.With(moneyMW).Post("/", h.Pay)
	r.Get("/{reference}/status", h.Status)
}

// Pay handles POST /rrr
// @Summary Pay a school fee or bill through Remita
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req PayRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	res, err := h.mover.InitiateRRR(r.Context(), PayInput{
		UserID:        userID,
		ServiceTypeID: strings.TrimSpace(req.ServiceTypeID),
		Amount:        req.Amount,
		Description:   strings.TrimSpace(req.Description),
	})
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.Accepted(w, NewPayResponse(res))
}

// Status handles GET /rrr/{reference}/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	res, err := h.mover.RefreshRRR(r.Context(), userID, chi.URLParam(r, "reference"))
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.OK(w, NewPayResponse(res))
}
