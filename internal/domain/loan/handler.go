package loan

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/domain/wallet"
	"github.com/campuspay/campuspay-api/internal/middleware"
	"github.com/campuspay/campuspay-api/internal/pkg/errorhandler"
	"github.com/campuspay/campuspay-api/internal/pkg/response"
	"github.com/campuspay/campuspay-api/internal/pkg/validator"
)

// Mover moves loan money through the ledger. The settlement orchestrator
// implements it.
type Mover interface {
	DisburseLoan(ctx context.Context, loanID uuid.UUID) (*Loan, *wallet.Wallet, error)
	RepayLoan(ctx context.Context, userID, loanID uuid.UUID, amount decimal.Decimal) (*Loan, *wallet.Wallet, error)
}

type Handler struct {
	svc   *Service
	mover Mover
}

func NewHandler(svc *Service, mover Mover) *Handler {
	return &Handler{svc: svc, mover: mover}
}

type repayResponse struct {
	Loan   *LoanResponse          `json:"loan"`
	Wallet *wallet.WalletResponse `json:"wallet"`
}

// Register mounts the student routes on /loans.
func (h *Handler) Register(r chi.Router, moneyMW func(http.Handler) http.Handler) {
	r.Get("/", h.List)
	r.With(moneyMW).Post("/", h.Apply)
	r.With(moneyMW).Post("/{id}/repay", h.Repay)
}

// RegisterAdmin mounts the loan queue on an admin router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/loans", h.AdminList)
	r.Post("/loans/{id}/disburse", h.Disburse)
	r.Post("/loans/{id}/reject", h.Reject)
}

// Apply handles POST /loans
// @Summary Apply for a student loan
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req ApplyRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	l, err := h.svc.Apply(r.Context(), userID, &req)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.Created(w, LoanResponseFromEntity(l))
}

// List handles GET /loans
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	loans, err := h.svc.ListForUser(r.Context(), userID)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.OK(w, LoanResponsesFromEntities(loans))
}

// Repay handles POST /loans/{id}/repay
func (h *Handler) Repay(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}
	loanID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid loan ID")
		return
	}

	var req RepayRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	l, wal, err := h.mover.RepayLoan(r.Context(), userID, loanID, req.Amount)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.OK(w, repayResponse{Loan: LoanResponseFromEntity(l), Wallet: wallet.WalletResponseFromEntity(wal)})
}

// AdminList handles GET /admin/loans?status=PENDING
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	page, limit := wallet.Paging(r)
	loans, total, err := h.svc.ListForAdmin(r.Context(), Status(r.URL.Query().Get("status")), page, limit)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}

	out := make([]*AdminLoanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, &AdminLoanResponse{LoanResponse: LoanResponseFromEntity(l), UserID: l.UserID, WalletID: l.WalletID})
	}
	response.WithMeta(w, out, response.NewMeta(total, page, limit))
}

// Disburse handles POST /admin/loans/{id}/disburse
func (h *Handler) Disburse(w http.ResponseWriter, r *http.Request) {
	loanID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid loan ID")
		return
	}

	l, _, err := h.mover.DisburseLoan(r.Context(), loanID)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.OK(w, LoanResponseFromEntity(l))
}

// Reject handles POST /admin/loans/{id}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	loanID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid loan ID")
		return
	}

	l, err := h.svc.Reject(r.Context(), loanID)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.OK(w, LoanResponseFromEntity(l))
}
