package wallet

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campuspay/campuspay-api/internal/middleware"
	"github.com/campuspay/campuspay-api/internal/pkg/errorhandler"
	"github.com/campuspay/campuspay-api/internal/pkg/response"
	"github.com/campuspay/campuspay-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the read endpoints on an authenticated /wallet router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.Get)
	r.Get("/audit", h.Audit)
}

// RegisterAdmin mounts freeze and limit controls on an admin router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/wallets/{id}/freeze", h.Freeze)
	r.Post("/wallets/{id}/unfreeze", h.Unfreeze)
	r.Post("/wallets/{id}/limits", h.SetLimits)
}

// Get handles GET /wallet
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	wal, err := h.svc.GetForUser(r.Context(), userID)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.OK(w, WalletResponseFromEntity(wal))
}

// Audit handles GET /wallet/audit
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	page, limit := Paging(r)
	entries, total, err := h.svc.Audit(r.Context(), userID, page, limit)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.WithMeta(w, entries, response.NewMeta(total, page, limit))
}

// Freeze handles POST /admin/wallets/{id}/freeze
func (h *Handler) Freeze(w http.ResponseWriter, r *http.Request) {
	walletID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid wallet ID")
		return
	}

	var req FreezeRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	wal, err := h.svc.Freeze(r.Context(), walletID, req.Reason)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.OK(w, WalletResponseFromEntity(wal))
}

// Unfreeze handles POST /admin/wallets/{id}/unfreeze
func (h *Handler) Unfreeze(w http.ResponseWriter, r *http.Request) {
	walletID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid wallet ID")
		return
	}

	wal, err := h.svc.Unfreeze(r.Context(), walletID)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.OK(w, WalletResponseFromEntity(wal))
}

// SetLimits handles POST /admin/wallets/{id}/limits
func (h *Handler) SetLimits(w http.ResponseWriter, r *http.Request) {
	walletID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid wallet ID")
		return
	}

	var req LimitsRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	wal, err := h.svc.SetLimits(r.Context(), walletID, Limits{Daily: req.DailyLimit, Monthly: req.MonthlyLimit})
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.OK(w, WalletResponseFromEntity(wal))
}

// Paging reads ?page and ?limit with the usual defaults.
func Paging(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
