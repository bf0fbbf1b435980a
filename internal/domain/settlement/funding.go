package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/domain/payment"
	"github.com/campuspay/campuspay-api/internal/pkg/gateway"
	"github.com/campuspay/campuspay-api/internal/pkg/metrics"
	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

type FundingResult struct {
	Payment          *payment.Payment
	AuthorizationURL string
}

// InitiateFunding opens a card checkout. The wallet is credited only when
// the charge settles.
func (o *Orchestrator) InitiateFunding(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, callbackURL string) (*FundingResult, error) {
	if err := o.policy.Funding.Check(amount, money.NGN); err != nil {
		return nil, err
	}
	w, err := o.walletForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := o.engine.CheckFundingLimit(w, amount); err != nil {
		return nil, err
	}
	u, err := o.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if callbackURL == "" {
		callbackURL = o.policy.CallbackURL
	}

	p := payment.New(userID, w.ID, amount, decimal.Zero, money.NGN, payment.MethodCard, payment.Funding{CallbackURL: callbackURL})
	if err := o.payments.Insert(ctx, o.db, p); err != nil {
		return nil, err
	}
	metrics.PaymentsInitiated.WithLabelValues(string(p.Type)).Inc()
	log.Info().Str("reference", p.Reference).Str("wallet_id", w.ID.String()).Str("amount", amount.String()).Msg("funding initiated")

	res, err := o.dispatch(ctx, o.charge, p, gateway.Request{
		Reference:   p.Reference,
		Amount:      amount,
		Asset:       money.NGN,
		Payer:       gateway.Payer{Name: u.FullName, Email: u.Email},
		CallbackURL: callbackURL,
		Metadata:    map[string]string{"payment_id": p.ID.String(), "wallet_id": w.ID.String()},
	}, nil)
	if err != nil {
		return nil, err
	}
	return &FundingResult{Payment: res.Payment, AuthorizationURL: res.Payment.AuthorizationURL.String}, nil
}

// Refresh re-checks an open payment with its provider and settles it through
// the same path as webhooks. Provider errors leave the payment as it was.
func (o *Orchestrator) Refresh(ctx context.Context, userID uuid.UUID, reference string) (*Result, error) {
	p, err := o.payments.GetForUser(ctx, userID, reference)
	if err != nil {
		return nil, err
	}
	if p.Status.Terminal() {
		return &Result{Payment: p, Wallet: o.currentWallet(ctx, p), AlreadyProcessed: true}, nil
	}

	res, err := o.poll(ctx, p)
	if err != nil {
		log.Warn().Err(err).Str("reference", reference).Msg("status check failed; payment left in flight")
		return &Result{Payment: p, Wallet: o.currentWallet(ctx, p)}, nil
	}
	if res.Wallet == nil {
		res.Wallet = o.currentWallet(ctx, res.Payment)
	}
	return res, nil
}

// VerifyFunding is Refresh restricted to funding payments.
func (o *Orchestrator) VerifyFunding(ctx context.Context, userID uuid.UUID, reference string) (*Result, error) {
	p, err := o.payments.GetForUser(ctx, userID, reference)
	if err != nil {
		return nil, err
	}
	if p.Type != payment.TypeFunding {
		return nil, payment.ErrPaymentNotFound
	}
	return o.Refresh(ctx, userID, reference)
}

// poll asks the owning rail for the payment's status and settles on it.
func (o *Orchestrator) poll(ctx context.Context, p *payment.Payment) (*Result, error) {
	if p.Type == payment.TypeCryptoDeposit {
		return o.checkDeposit(ctx, p)
	}
	adapter := o.adapterFor(p.Type)
	if adapter == nil {
		return nil, ErrRailNotConfigured
	}

	ev, err := adapter.CheckStatus(ctx, gateway.Lookup{
		Reference:         p.Reference,
		ExternalReference: p.ExternalReference.String,
		Asset:             p.Asset,
	})
	if err != nil {
		return nil, err
	}
	// Settle by our reference whatever the provider echoed back.
	ev.Reference = p.Reference
	return o.Settle(ctx, ev)
}
