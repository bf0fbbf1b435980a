package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// bcrypt dominates register and login, so they share a bounded worker budget.
const (
	passwordWorkers = 16
	passwordBacklog = 64
	backlogTimeout  = 5 * time.Second
)

// Routes returns the auth router. Register, login and refresh are public.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(chimw.ThrottleBacklog(passwordWorkers, passwordBacklog, backlogTimeout))
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})
	r.Post("/refresh", h.Refresh)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})

	return r
}
