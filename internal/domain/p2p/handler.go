package p2p

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campuspay/campuspay-api/internal/domain/wallet"
	"github.com/campuspay/campuspay-api/internal/middleware"
	"github.com/campuspay/campuspay-api/internal/pkg/errorhandler"
	"github.com/campuspay/campuspay-api/internal/pkg/response"
	"github.com/campuspay/campuspay-api/internal/pkg/validator"
)

// Sender moves the money. It is implemented by the settlement orchestrator.
type Sender interface {
	SendP2P(ctx context.Context, in SendInput) (*SendResult, error)
}

type Handler struct {
	sender Sender
	repo   *Repository
}

func NewHandler(sender Sender, repo *Repository) *Handler {
	return &Handler{sender: sender, repo: repo}
}

// Register mounts the routes. send is the middleware chain for the money endpoint.
func (h *Handler) Register(r chi.Router, send func(http.Handler) http.Handler) {
	r.With(send).Post("/send", h.Send)
	r.Get("/history", h.History)
}

// Send handles POST /p2p/send
// @Summary Send money to another student by email, phone or username
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

	res, err := h.sender.SendP2P(r.Context(), SendInput{
		SenderID:           userID,
		ReceiverIdentifier: strings.TrimSpace(req.ReceiverIdentifier),
		Amount:             req.Amount,
		Note:               strings.TrimSpace(req.Note),
		ClientReference:    strings.TrimSpace(req.Reference),
	})
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}

	response.OK(w, SendResponse{
		Transfer:         TransferResponseFromEntity(res.Transfer, userID),
		Wallet:           wallet.WalletResponseFromEntity(res.Wallet),
		AlreadyProcessed: res.AlreadyProcessed,
	})
}

// History handles GET /p2p/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	page, limit := wallet.Paging(r)
	transfers, total, err := h.repo.ListForUser(r.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}

	out := make([]*TransferResponse, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, TransferResponseFromEntity(t, userID))
	}
	response.WithMeta(w, out, response.NewMeta(total, page, limit))
}
