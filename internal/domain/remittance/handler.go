package remittance

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/middleware"
	"github.com/campuspay/campuspay-api/internal/pkg/errorhandler"
	"github.com/campuspay/campuspay-api/internal/pkg/response"
	"github.com/campuspay/campuspay-api/internal/pkg/validator"
)

// Sender is implemented by the settlement orchestrator.
type Sender interface {
	SendRemittance(ctx context.Context, in SendInput) (*Result, error)
}

type Handler struct {
	quoter *Quoter
	sender Sender
}

func NewHandler(quoter *Quoter, sender Sender) *Handler {
	return &Handler{quoter: quoter, sender: sender}
}

func (h *Handler) Register(r chi.Router, moneyMW func(http.Handler) http.Handler) {
	r.Get("/quote", h.Quote)
	r.With(moneyMW).Post("/send", h.Send)
}

// Quote handles GET /remittance/quote?amount=&currency=
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil {
		response.ValidationError(w, map[string]string{"amount": "must be a decimal number"})
		return
	}

	q, err := h.quoter.Quote(amount, r.URL.Query().Get("currency"))
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.OK(w, QuoteResponse{Quote: q, Currencies: h.quoter.Currencies()})
}

// Send handles POST /remittance/send
// @Summary Send money abroad through a corridor payout
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req SendRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	req.Recipient.Name = strings.TrimSpace(req.Recipient.Name)
	res, err := h.sender.SendRemittance(r.Context(), SendInput{
		UserID:    userID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Recipient: req.Recipient,
	})
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.Accepted(w, NewSendResponse(res))
}
