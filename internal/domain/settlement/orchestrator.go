// Package settlement drives every money movement through the payment state
// machine: policy checks, reservations, gateway dispatch outside transactions,
// and idempotent finalization from webhooks, verify calls and the reconciler.
package settlement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/domain/crypto"
	"github.com/campuspay/campuspay-api/internal/domain/loan"
	"github.com/campuspay/campuspay-api/internal/domain/p2p"
	"github.com/campuspay/campuspay-api/internal/domain/payment"
	"github.com/campuspay/campuspay-api/internal/domain/remittance"
	"github.com/campuspay/campuspay-api/internal/domain/user"
	"github.com/campuspay/campuspay-api/internal/domain/wallet"
	"github.com/campuspay/campuspay-api/internal/pkg/clock"
	"github.com/campuspay/campuspay-api/internal/pkg/database"
	"github.com/campuspay/campuspay-api/internal/pkg/events"
	"github.com/campuspay/campuspay-api/internal/pkg/evm"
	"github.com/campuspay/campuspay-api/internal/pkg/gateway"
	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

// PayoutAdapter sends NGN to bank accounts.
type PayoutAdapter interface {
	gateway.Adapter
	ResolveRecipient(ctx context.Context, accountNumber, bankCode string) (*gateway.BankAccount, error)
}

// Chain verifies inbound token transfers.
type Chain interface {
	VerifyDeposit(ctx context.Context, txHash string, asset money.Asset, expected decimal.Decimal) (*evm.DepositCheck, error)
	DepositAddress() string
}

// Notifier pushes balance changes to connected clients.
type Notifier interface {
	WalletUpdated(ctx context.Context, w *wallet.Wallet)
}

type Deps struct {
	DB       *sqlx.DB
	Retry    database.RetryPolicy
	Clock    clock.Clock
	Wallets  *wallet.Store
	Engine   *wallet.Engine
	Payments *payment.Repository
	Guard    *payment.Guard
	Users    user.Repository
	P2P      *p2p.Repository
	Loans    *loan.Repository
	Crypto   *crypto.Repository
	Quoter   *remittance.Quoter

	Charge gateway.Adapter
	Payout PayoutAdapter
	Remita gateway.Adapter
	// EVM and Chain are nil when no RPC endpoint is configured.
	EVM   gateway.Adapter
	Chain Chain

	Notifier Notifier
	Events   events.Publisher
	Policy   Policy
}

type Orchestrator struct {
	db       *sqlx.DB
	retry    database.RetryPolicy
	clock    clock.Clock
	wallets  *wallet.Store
	engine   *wallet.Engine
	payments *payment.Repository
	guard    *payment.Guard
	users    user.Repository
	p2p      *p2p.Repository
	loans    *loan.Repository
	crypto   *crypto.Repository
	quoter   *remittance.Quoter

	charge gateway.Adapter
	payout PayoutAdapter
	remita gateway.Adapter
	evm    gateway.Adapter
	chain  Chain

	notifier Notifier
	events   events.Publisher
	policy   Policy
}

func New(d Deps) *Orchestrator {
	o := &Orchestrator{
		db:       d.DB,
		retry:    d.Retry,
		clock:    d.Clock,
		wallets:  d.Wallets,
		engine:   d.Engine,
		payments: d.Payments,
		guard:    d.Guard,
		users:    d.Users,
		p2p:      d.P2P,
		loans:    d.Loans,
		crypto:   d.Crypto,
		quoter:   d.Quoter,
		charge:   d.Charge,
		payout:   d.Payout,
		remita:   d.Remita,
		evm:      d.EVM,
		chain:    d.Chain,
		notifier: d.Notifier,
		events:   d.Events,
		policy:   d.Policy,
	}
	if o.clock == nil {
		o.clock = clock.RealClock{}
	}
	if o.events == nil {
		o.events = events.NoopPublisher{}
	}
	return o
}

// Result is the state of a payment after an orchestrator call.
type Result struct {
	Payment          *payment.Payment
	Wallet           *wallet.Wallet
	AlreadyProcessed bool

	// changed is set when this call moved the payment's status.
	changed bool
	// touched lists other wallets whose balances moved, e.g. a P2P receiver.
	touched []uuid.UUID
}

// claimFunc locks the payment row a settlement applies to.
type claimFunc func(ctx context.Context, tx *sqlx.Tx) (*payment.Claim, error)

func (o *Orchestrator) byReference(reference string) claimFunc {
	return func(ctx context.Context, tx *sqlx.Tx) (*payment.Claim, error) {
		return o.guard.TryClaim(ctx, tx, reference)
	}
}

func (o *Orchestrator) byTxHash(hash string) claimFunc {
	return func(ctx context.Context, tx *sqlx.Tx) (*payment.Claim, error) {
		return o.guard.TryClaimTxHash(ctx, tx, hash)
	}
}

func (o *Orchestrator) byReversal(reference string) claimFunc {
	return func(ctx context.Context, tx *sqlx.Tx) (*payment.Claim, error) {
		return o.guard.TryClaimReversal(ctx, tx, reference)
	}
}

// Settle applies a provider verdict to the payment named by ev.Reference.
// A payment that is already terminal is reported with AlreadyProcessed and
// nothing is written, except a reversal of a completed NGN payout.
func (o *Orchestrator) Settle(ctx context.Context, ev *gateway.SettlementEvent) (*Result, error) {
	if ev.Outcome == gateway.OutcomeReversed {
		return o.settle(ctx, o.byReversal(ev.Reference), ev)
	}
	return o.settle(ctx, o.byReference(ev.Reference), ev)
}

func (o *Orchestrator) settle(ctx context.Context, claim claimFunc, ev *gateway.SettlementEvent) (*Result, error) {
	var res *Result
	err := database.RunInTx(ctx, o.db, o.retry, "settle", func(tx *sqlx.Tx) error {
		c, err := claim(ctx, tx)
		if err != nil {
			return err
		}
		if !c.Claimed {
			res = &Result{Payment: c.Payment, AlreadyProcessed: true}
			return nil
		}
		res, err = o.applyOutcome(ctx, tx, c.Payment, ev)
		return err
	})
	if err != nil {
		return nil, err
	}
	o.afterCommit(ctx, res)
	return res, nil
}

func (o *Orchestrator) applyOutcome(ctx context.Context, tx *sqlx.Tx, p *payment.Payment, ev *gateway.SettlementEvent) (*Result, error) {
	switch ev.Outcome {
	case gateway.OutcomeSuccess:
		return o.completeAndFinalize(ctx, tx, p, ev)
	case gateway.OutcomeFailure:
		return o.failAndRelease(ctx, tx, p, reasonOr(ev.Reason, "declined by provider"), ev.Raw)
	case gateway.OutcomeReversed:
		if p.Status == payment.StatusCompleted {
			return o.refundCompleted(ctx, tx, p, reasonOr(ev.Reason, "reversed by provider"), ev.Raw)
		}
		return o.refundAndRelease(ctx, tx, p, reasonOr(ev.Reason, "reversed by provider"), ev.Raw)
	case gateway.OutcomeNotFound:
		return o.applyNotFound(ctx, tx, p)
	default:
		return o.applyPending(ctx, tx, p, ev)
	}
}

// completeAndFinalize moves the money for a successful external operation and
// marks the payment COMPLETED in the same transaction.
func (o *Orchestrator) completeAndFinalize(ctx context.Context, tx *sqlx.Tx, p *payment.Payment, ev *gateway.SettlementEvent) (*Result, error) {
	var (
		w   *wallet.Wallet
		err error
	)
	switch p.Type {
	case payment.TypeFunding:
		if ev.Amount.IsPositive() && !ev.Amount.Equal(p.Amount) {
			log.Warn().Str("reference", p.Reference).Str("expected", p.Amount.String()).
				Str("received", ev.Amount.String()).Msg("funding amount mismatch")
			return o.failAndRelease(ctx, tx, p, "amount mismatch", ev.Raw)
		}
		if w, err = o.engine.CreditExternal(ctx, tx, p.WalletID, wallet.NGN(p.Amount), p.Reference, "card funding"); err != nil {
			return nil, err
		}
		if err = o.engine.ConsumeFundingLimit(ctx, tx, p.WalletID, p.Amount); err != nil {
			return nil, err
		}

	case payment.TypeCryptoDeposit:
		if w, err = o.engine.CreditExternal(ctx, tx, p.WalletID, wallet.Funds{Asset: p.Asset, Amount: p.Amount}, p.Reference, "crypto deposit"); err != nil {
			return nil, err
		}
		if err = o.recordChain(ctx, tx, p, crypto.StatusConfirmed, ev); err != nil {
			return nil, err
		}

	case payment.TypeWithdrawal, payment.TypeRRR, payment.TypeRemittance, payment.TypeCryptoWithdrawal:
		if w, err = o.engine.FinalizeWithdrawal(ctx, tx, p.WalletID, wallet.Funds{Asset: p.Asset, Amount: p.Total()}, p.Reference); err != nil {
			return nil, err
		}
		if p.Fee.IsPositive() && p.Asset == money.NGN {
			if _, err = o.engine.CreditExternal(ctx, tx, wallet.PlatformWalletID, wallet.NGN(p.Fee), p.Reference, string(p.Type)+" fee"); err != nil {
				return nil, err
			}
		}
		if p.Type == payment.TypeCryptoWithdrawal {
			if err = o.recordChain(ctx, tx, p, crypto.StatusConfirmed, ev); err != nil {
				return nil, err
			}
		}

	default:
		return nil, ErrNotSettleable
	}

	if err := o.guard.Transition(ctx, tx, p, payment.StatusCompleted, ev.Raw, ""); err != nil {
		return nil, err
	}
	log.Info().Str("reference", p.Reference).Str("wallet_id", p.WalletID.String()).
		Str("amount", p.Amount.String()).Str("status", string(p.Status)).Msg("payment completed")
	return &Result{Payment: p, Wallet: w, changed: true}, nil
}

// failAndRelease is the compensating path: reserved funds go back to
// available and the payment ends FAILED.
func (o *Orchestrator) failAndRelease(ctx context.Context, tx *sqlx.Tx, p *payment.Payment, reason string, raw []byte) (*Result, error) {
	return o.closeAndRelease(ctx, tx, p, payment.StatusFailed, reason, raw)
}

// refundAndRelease handles a payout the provider reversed after accepting it.
func (o *Orchestrator) refundAndRelease(ctx context.Context, tx *sqlx.Tx, p *payment.Payment, reason string, raw []byte) (*Result, error) {
	return o.closeAndRelease(ctx, tx, p, payment.StatusRefunded, reason, raw)
}

// refundCompleted handles a payout the provider clawed back after reporting
// success. The reservation is already finalized, so amount and fee are
// credited back and the platform returns the fee.
func (o *Orchestrator) refundCompleted(ctx context.Context, tx *sqlx.Tx, p *payment.Payment, reason string, raw []byte) (*Result, error) {
	w, err := o.engine.RefundFinalized(ctx, tx, p.WalletID, p.Amount, p.Fee, p.Reference, reason)
	if err != nil {
		return nil, err
	}
	if err := o.guard.Transition(ctx, tx, p, payment.StatusRefunded, raw, reason); err != nil {
		return nil, err
	}
	log.Error().Str("reference", p.Reference).Str("wallet_id", p.WalletID.String()).
		Str("amount", p.Total().String()).Str("reason", reason).Msg("completed payout reversed; wallet re-credited")
	res := &Result{Payment: p, Wallet: w, changed: true}
	if p.Fee.IsPositive() {
		res.touched = []uuid.UUID{wallet.PlatformWalletID}
	}
	return res, nil
}

func (o *Orchestrator) closeAndRelease(ctx context.Context, tx *sqlx.Tx, p *payment.Payment, to payment.Status, reason string, raw []byte) (*Result, error) {
	var (
		w   *wallet.Wallet
		err error
	)
	if p.Type.Reserves() {
		w, err = o.engine.ReleaseWithdrawalReservation(ctx, tx, p.WalletID, wallet.Funds{Asset: p.Asset, Amount: p.Total()}, p.Reference, reason)
		if err != nil {
			return nil, err
		}
	}
	if p.Type == payment.TypeCryptoDeposit || p.Type == payment.TypeCryptoWithdrawal {
		if err := o.recordChain(ctx, tx, p, crypto.StatusFailed, nil); err != nil {
			return nil, err
		}
	}
	if err := o.guard.Transition(ctx, tx, p, to, raw, reason); err != nil {
		return nil, err
	}
	log.Warn().Str("reference", p.Reference).Str("wallet_id", p.WalletID.String()).
		Str("status", string(to)).Str("reason", reason).Msg("payment closed")
	return &Result{Payment: p, Wallet: w, changed: true}, nil
}

// applyNotFound resolves payments the provider has no record of. Only cases
// where the provider cannot have acted are closed.
func (o *Orchestrator) applyNotFound(ctx context.Context, tx *sqlx.Tx, p *payment.Payment) (*Result, error) {
	switch {
	case p.Status == payment.StatusPending:
		return o.closeAndRelease(ctx, tx, p, payment.StatusCancelled, "never reached provider", nil)
	case p.Status == payment.StatusProcessing && !p.ExternalReference.Valid && p.Type != payment.TypeCryptoWithdrawal:
		return o.failAndRelease(ctx, tx, p, "unknown to provider", nil)
	}
	log.Warn().Str("reference", p.Reference).Str("type", string(p.Type)).Msg("provider has no record of in-flight payment; left for review")
	return &Result{Payment: p}, nil
}

// applyPending only records progress. PROCESSING payments never time out.
func (o *Orchestrator) applyPending(ctx context.Context, tx *sqlx.Tx, p *payment.Payment, ev *gateway.SettlementEvent) (*Result, error) {
	if p.Type == payment.TypeCryptoDeposit || p.Type == payment.TypeCryptoWithdrawal {
		status := crypto.StatusPending
		if ev.Confirmations > 0 {
			status = crypto.StatusConfirming
		}
		if err := o.recordChain(ctx, tx, p, status, ev); err != nil {
			return nil, err
		}
	}
	return &Result{Payment: p}, nil
}

func (o *Orchestrator) recordChain(ctx context.Context, tx *sqlx.Tx, p *payment.Payment, status crypto.Status, ev *gateway.SettlementEvent) error {
	ct, err := o.crypto.GetByPaymentID(ctx, tx, p.ID)
	if err != nil {
		return err
	}
	progress := crypto.Progress{Status: status}
	if ev != nil {
		progress.Confirmations = ev.Confirmations
		progress.BlockNumber = ev.BlockNumber
	}
	return o.crypto.Record(ctx, tx, ct.ID, progress)
}

// afterCommit fans out side effects. Failures here never undo a settlement.
func (o *Orchestrator) afterCommit(ctx context.Context, res *Result) {
	if res == nil || res.Payment == nil {
		return
	}
	if res.Wallet != nil && o.notifier != nil {
		o.notifier.WalletUpdated(ctx, res.Wallet)
	}
	for _, id := range res.touched {
		o.notifyWallet(ctx, id)
	}
	if !res.changed {
		return
	}
	p := res.Payment
	ev := events.NewPaymentEvent(events.PaymentEvent{
		PaymentID: p.ID,
		Reference: p.Reference,
		UserID:    p.UserID,
		Type:      string(p.Type),
		Status:    string(p.Status),
		Amount:    p.Amount.String(),
		Asset:     string(p.Asset),
		Reason:    p.FailureReason.String,
	})
	if err := o.events.PublishPayment(ctx, ev); err != nil {
		log.Error().Err(err).Str("reference", p.Reference).Msg("failed to publish payment event")
	}
}

func (o *Orchestrator) notifyWallet(ctx context.Context, walletID uuid.UUID) {
	if o.notifier == nil {
		return
	}
	w, err := o.wallets.GetByID(ctx, walletID)
	if err != nil {
		log.Warn().Err(err).Str("wallet_id", walletID.String()).Msg("wallet refresh for notification failed")
		return
	}
	o.notifier.WalletUpdated(ctx, w)
}

// currentWallet is the wallet view returned alongside a payment that did not move money.
func (o *Orchestrator) currentWallet(ctx context.Context, p *payment.Payment) *wallet.Wallet {
	w, err := o.wallets.GetByID(ctx, p.WalletID)
	if err != nil {
		log.Warn().Err(err).Str("reference", p.Reference).Msg("wallet lookup failed")
		return nil
	}
	return w
}

func (o *Orchestrator) walletForUser(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	w, err := o.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w.IsFrozen {
		return nil, wallet.ErrWalletFrozen
	}
	return w, nil
}

func reasonOr(reason, fallback string) string {
	if reason != "" {
		return reason
	}
	return fallback
}

func isNotFound(err error) bool {
	return errors.Is(err, payment.ErrPaymentNotFound)
}
