package crypto

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campuspay/campuspay-api/internal/domain/wallet"
	"github.com/campuspay/campuspay-api/internal/middleware"
	"github.com/campuspay/campuspay-api/internal/pkg/errorhandler"
	"github.com/campuspay/campuspay-api/internal/pkg/money"
	"github.com/campuspay/campuspay-api/internal/pkg/response"
	"github.com/campuspay/campuspay-api/internal/pkg/validator"
)

// Mover runs deposits and withdrawals. The settlement orchestrator implements it.
type Mover interface {
	CryptoDeposit(ctx context.Context, in DepositInput) (*Result, error)
	CryptoWithdraw(ctx context.Context, in WithdrawInput) (*Result, error)
	DepositAddress() (string, error)
}

type Handler struct {
	mover Mover
	repo  *Repository
}

func NewHandler(mover Mover, repo *Repository) *Handler {
	return &Handler{mover: mover, repo: repo}
}

// Register mounts /crypto routes. moneyMW wraps the endpoints that move funds.
func (h *Handler) Register(r chi.Router, moneyMW func(http.Handler) http.Handler) {
	r.Get("/deposit-address", h.DepositAddress)
	r.Get("/transactions", h.Transactions)
	r.With(moneyMW).Post("/deposit", h.Deposit)
	r.With(moneyMW).Post("/withdraw", h.Withdraw)
}

// Deposit handles POST /crypto/deposit
// @Summary Claim an on-chain USDT/USDC deposit by transaction hash
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req DepositRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}
	asset, err := money.ParseAsset(req.CryptoType)
	if err != nil {
		response.ValidationError(w, map[string]string{"crypto_type": err.Error()})
		return
	}

	res, err := h.mover.CryptoDeposit(r.Context(), DepositInput{
		UserID: userID,
		Asset:  asset,
		Amount: req.Amount,
		TxHash: NormalizeHash(req.TxHash),
	})
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.OK(w, ResultResponseFromResult(res))
}

// Withdraw handles POST /crypto/withdraw
// @Summary Send USDT/USDC from the sub-balance to an external address
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
	asset, err := money.ParseAsset(req.CryptoType)
	if err != nil {
		response.ValidationError(w, map[string]string{"crypto_type": err.Error()})
		return
	}

	res, err := h.mover.CryptoWithdraw(r.Context(), WithdrawInput{
		UserID:    userID,
		Asset:     asset,
		Amount:    req.Amount,
		ToAddress: strings.TrimSpace(req.ToAddress),
	})
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.Accepted(w, ResultResponseFromResult(res))
}

// Transactions handles GET /crypto/transactions
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	page, limit := wallet.Paging(r)
	txs, total, err := h.repo.ListByUser(r.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	out := make([]*TransactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, TransactionResponseFromEntity(t))
	}
	response.WithMeta(w, out, response.NewMeta(total, page, limit))
}

// DepositAddress handles GET /crypto/deposit-address
func (h *Handler) DepositAddress(w http.ResponseWriter, r *http.Request) {
	addr, err := h.mover.DepositAddress()
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.OK(w, DepositAddressResponse{Address: addr, Assets: []money.Asset{money.USDT, money.USDC}})
}
