package payment

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campuspay/campuspay-api/internal/domain/wallet"
	"github.com/campuspay/campuspay-api/internal/middleware"
	"github.com/campuspay/campuspay-api/internal/pkg/errorhandler"
	"github.com/campuspay/campuspay-api/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{reference}", h.Get)
}

// List handles GET /payments
// @Summary Payment history of the current user
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	q := r.URL.Query()
	filter := Filter{
		Type:   Type(strings.ToLower(q.Get("type"))),
		Status: Status(strings.ToUpper(q.Get("status"))),
	}
	page, limit := wallet.Paging(r)

	payments, total, err := h.svc.List(r.Context(), userID, filter, page, limit)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.WithMeta(w, ResponsesFromEntities(payments), response.NewMeta(total, page, limit))
}

// Get handles GET /payments/{reference}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	p, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "reference"))
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}
	response.OK(w, ResponseFromEntity(p))
}
