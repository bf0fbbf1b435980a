package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type middlewareFunc = func(http.Handler) http.Handler

type authRoutes interface {
	Routes(authMiddleware middlewareFunc) chi.Router
}

type readRoutes interface {
	Register(r chi.Router)
}

type moneyRoutes interface {
	Register(r chi.Router, moneyMW middlewareFunc)
}

type walletMoneyRoutes interface {
	RegisterWallet(r chi.Router, moneyMW middlewareFunc)
}

// apiRoutes lists the student-facing handlers mounted under /api/v1.
type apiRoutes struct {
	Auth       authRoutes
	Wallet     readRoutes
	Settlement walletMoneyRoutes
	Payments   readRoutes
	P2P        moneyRoutes
	Loans      moneyRoutes
	RRR        moneyRoutes
	Remittance moneyRoutes
	Crypto     moneyRoutes
}

// mountAPI registers every /api/v1 route. /wallet is shared by the read-only
// wallet handler and the settlement handler, so both register on one subrouter.
// limit returns the rate-limit middleware for a scope.
func mountAPI(r chi.Router, routes apiRoutes, authMW middlewareFunc, limit func(scope string) middlewareFunc) {
	r.Mount("/auth", routes.Auth.Routes(authMW))

	r.Group(func(r chi.Router) {
		r.Use(authMW)

		r.Route("/wallet", func(r chi.Router) {
			routes.Wallet.Register(r)
			routes.Settlement.RegisterWallet(r, limit("wallet"))
		})
		r.Route("/payments", routes.Payments.Register)
		r.Route("/p2p", func(r chi.Router) {
			routes.P2P.Register(r, limit("p2p"))
		})
		r.Route("/loans", func(r chi.Router) {
			routes.Loans.Register(r, limit("loans"))
		})
		r.Route("/rrr", func(r chi.Router) {
			routes.RRR.Register(r, limit("rrr"))
		})
		r.Route("/remittance", func(r chi.Router) {
			routes.Remittance.Register(r, limit("remittance"))
		})
		r.Route("/crypto", func(r chi.Router) {
			routes.Crypto.Register(r, limit("crypto"))
		})
	})
}
