package settlement

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campuspay/campuspay-api/internal/domain/payment"
	"github.com/campuspay/campuspay-api/internal/middleware"
	"github.com/campuspay/campuspay-api/internal/pkg/errorhandler"
	"github.com/campuspay/campuspay-api/internal/pkg/response"
	"github.com/campuspay/campuspay-api/internal/pkg/validator"
)

type Handler struct {
	orch   *Orchestrator
	minAge time.Duration
	batch  int
}

func NewHandler(orch *Orchestrator, minAge time.Duration, batch int) *Handler {
	return &Handler{orch: orch, minAge: minAge, batch: batch}
}

// RegisterWallet mounts the card and bank rails on the authenticated /wallet router.
func (h *Handler) RegisterWallet(r chi.Router, moneyMW func(http.Handler) http.Handler) {
	r.With(moneyMW).Post("/fund", h.Fund)
	r.Get("/verify/{reference}", h.Verify)
	r.With(moneyMW).Post("/withdraw", h.Withdraw)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/reconcile", h.Reconcile)
}

// Fund handles POST /wallet/fund
// @Summary Start a card funding checkout
func (h *Handler) Fund(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req FundRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	res, err := h.orch.InitiateFunding(r.Context(), userID, req.Amount, req.CallbackURL)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.Created(w, &FundResponse{
		Payment:          payment.ResponseFromEntity(res.Payment),
		AuthorizationURL: res.AuthorizationURL,
	})
}

// Verify handles GET /wallet/verify/{reference}
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	res, err := h.orch.VerifyFunding(r.Context(), userID, chi.URLParam(r, "reference"))
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.OK(w, NewPaymentResultResponse(res))
}

// Withdraw handles POST /wallet/withdraw
// @Summary Pay out to a Nigerian bank account
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req WithdrawRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	res, err := h.orch.InitiateWithdrawal(r.Context(), WithdrawInput{
		UserID:        userID,
		Amount:        req.Amount,
		AccountNumber: req.BankAccount.AccountNumber,
		BankCode:      req.BankAccount.BankCode,
	})
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.Accepted(w, NewPaymentResultResponse(res))
}

// Reconcile handles POST /admin/reconcile
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if r.ContentLength > 0 {
		if err := response.DecodeJSON(r.Body, &req); err != nil {
			response.BadRequest(w, "Invalid JSON body")
			return
		}
		if errs := validator.Validate(&req); errs != nil {
			response.ValidationError(w, errs)
			return
		}
	}

	minAge, batch := h.minAge, h.batch
	if req.MinAgeSeconds > 0 {
		minAge = time.Duration(req.MinAgeSeconds) * time.Second
	}
	if req.Batch > 0 {
		batch = req.Batch
	}

	sum, err := h.orch.ReconcileProcessing(r.Context(), minAge, batch)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.OK(w, sum)
}
