// Package admin mounts the operator endpoints under /api/admin. Every route
// requires an access token with the admin role.
package admin

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/campuspay/campuspay-api/internal/domain/user"
	"github.com/campuspay/campuspay-api/internal/domain/wallet"
	"github.com/campuspay/campuspay-api/internal/middleware"
	"github.com/campuspay/campuspay-api/internal/pkg/errorhandler"
	"github.com/campuspay/campuspay-api/internal/pkg/response"
)

// Registrar is implemented by domain handlers that expose admin routes.
type Registrar interface {
	RegisterAdmin(r chi.Router)
}

// AuditReader reads a wallet's hash-chained audit log.
type AuditReader interface {
	AuditChain(ctx context.Context, walletID uuid.UUID) ([]wallet.AuditEntry, error)
}

type Handler struct {
	users user.Repository
	audit AuditReader
}

func NewHandler(users user.Repository, audit AuditReader) *Handler {
	return &Handler{users: users, audit: audit}
}

// Routes returns the admin router. auth must populate the caller's role.
func (h *Handler) Routes(auth func(http.Handler) http.Handler, domains ...Registrar) chi.Router {
	r := chi.NewRouter()
	r.Use(auth)
	r.Use(middleware.RequireAdmin())

	r.Post("/users/{id}/ban", h.Ban)
	r.Post("/users/{id}/unban", h.Unban)
	r.Get("/wallets/{id}/audit/verify", h.VerifyAudit)

	for _, d := range domains {
		d.RegisterAdmin(r)
	}
	return r
}

// Ban handles POST /admin/users/{id}/ban
func (h *Handler) Ban(w http.ResponseWriter, r *http.Request) {
	h.setBanned(w, r, true)
}

// Unban handles POST /admin/users/{id}/unban
func (h *Handler) Unban(w http.ResponseWriter, r *http.Request) {
	h.setBanned(w, r, false)
}

func (h *Handler) setBanned(w http.ResponseWriter, r *http.Request, banned bool) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}
	if err := h.users.SetBanned(r.Context(), userID, banned); err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}

	log.Info().Str("user_id", userID.String()).Bool("banned", banned).
		Str("admin_id", middleware.GetUserID(r.Context()).String()).Msg("User ban status changed")
	response.OK(w, map[string]interface{}{"user_id": userID, "is_banned": banned})
}

// VerifyAudit handles GET /admin/wallets/{id}/audit/verify
// @Summary Recompute a wallet's audit hash chain
func (h *Handler) VerifyAudit(w http.ResponseWriter, r *http.Request) {
	walletID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid wallet ID")
		return
	}

	entries, err := h.audit.AuditChain(r.Context(), walletID)
	if err != nil {
		errorhandler.Write(r.Context(), w, err)
		return
	}

	resp := &AuditVerifyResponse{WalletID: walletID, Entries: len(entries), Intact: true}
	if brk := wallet.VerifyChain(entries); brk != nil {
		log.Error().Str("wallet_id", walletID.String()).Int64("seq", brk.Seq).Msg("Wallet audit chain broken")
		resp.Intact = false
		resp.BrokenAt = &brk.Seq
	}
	response.OK(w, resp)
}
