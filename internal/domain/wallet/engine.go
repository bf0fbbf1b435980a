package wallet

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
	"github.com/campuspay/campuspay-api/internal/pkg/clock"
	"github.com/campuspay/campuspay-api/internal/pkg/metrics"
	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

// Engine is the only writer of wallet balances. Every method runs inside the
// caller's transaction and takes row locks on the wallets it touches.
type Engine struct {
	store *Store
	clock clock.Clock
	loc   *time.Location
}

func NewEngine(store *Store, clk clock.Clock, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{store: store, clock: clk, loc: loc}
}

func (e *Engine) Location() *time.Location { return e.loc }

// Transfer moves amount from one wallet to another and fee to feeWallet.
// Wallets are locked in id order so concurrent transfers cannot deadlock.
func (e *Engine) Transfer(ctx context.Context, tx *sqlx.Tx, from, to uuid.UUID, amount, fee decimal.Decimal, feeWallet uuid.UUID, reference string) (*Wallet, error) {
	if err := checkFiat("amount", amount, false); err != nil {
		return nil, err
	}
	if err := checkFiat("fee", fee, true); err != nil {
		return nil, err
	}
	if from == to {
		return nil, ErrSameWallet
	}
	chargeFee := fee.IsPositive() && feeWallet != uuid.Nil

	ids := []uuid.UUID{from, to}
	if chargeFee {
		ids = append(ids, feeWallet)
	}
	locked, err := e.lockOrdered(ctx, tx, ids...)
	if err != nil {
		return nil, err
	}

	sender, receiver := locked[from], locked[to]
	if sender.IsFrozen || receiver.IsFrozen {
		reject("transfer", "frozen")
		return nil, ErrWalletFrozen
	}
	total := amount
	if chargeFee {
		total = amount.Add(fee)
	}
	if sender.AvailableBalance.LessThan(total) {
		reject("transfer", "insufficient_funds")
		return nil, ErrInsufficientFunds
	}

	after, err := e.apply(ctx, tx, from, debitAll(amount), AuditTransferOut, money.NGN, amount, reference, "transfer to "+to.String())
	if err != nil {
		return nil, err
	}
	if chargeFee {
		if after, err = e.apply(ctx, tx, from, debitAll(fee), AuditFee, money.NGN, fee, reference, "transfer fee"); err != nil {
			return nil, err
		}
		if _, err := e.apply(ctx, tx, feeWallet, creditAll(fee), AuditFeeIn, money.NGN, fee, reference, "fee from "+from.String()); err != nil {
			return nil, err
		}
	}
	if _, err := e.apply(ctx, tx, to, creditAll(amount), AuditTransferIn, money.NGN, amount, reference, "transfer from "+from.String()); err != nil {
		return nil, err
	}
	return after, nil
}

// CreditExternal adds funds that arrived from outside the closed wallet set:
// card funding, loan disbursement, crypto deposits.
func (e *Engine) CreditExternal(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, funds Funds, reference, reason string) (*Wallet, error) {
	if err := checkFunds(funds); err != nil {
		return nil, err
	}
	w, err := e.store.Lock(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	if w.IsFrozen {
		reject("credit_external", "frozen")
		return nil, ErrWalletFrozen
	}
	return e.apply(ctx, tx, walletID, credit(funds), AuditCredit, funds.Asset, funds.Amount, reference, reason)
}

// DebitInternal pays the platform wallet, e.g. a loan repayment.
func (e *Engine) DebitInternal(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, amount decimal.Decimal, reference, reason string) (*Wallet, error) {
	return e.Transfer(ctx, tx, walletID, PlatformWalletID, amount, decimal.Zero, uuid.Nil, reference)
}

// ReserveForWithdrawal holds funds for an outbound payout. NGN moves only
// available_balance; token sub-balances have no split and are decremented.
func (e *Engine) ReserveForWithdrawal(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, funds Funds, reference string) (*Wallet, error) {
	if err := checkFunds(funds); err != nil {
		return nil, err
	}
	w, err := e.store.Lock(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	if w.IsFrozen {
		reject("reserve", "frozen")
		return nil, ErrWalletFrozen
	}
	if w.Spendable(funds.Asset).LessThan(funds.Amount) {
		reject("reserve", "insufficient_funds")
		return nil, ErrInsufficientFunds
	}

	d := Delta{Available: funds.Amount.Neg()}
	if funds.Asset.IsCrypto() {
		d = Delta{Asset: funds.Asset, Crypto: funds.Amount.Neg()}
	}
	return e.apply(ctx, tx, walletID, d, AuditReserve, funds.Asset, funds.Amount, reference, "withdrawal reserved")
}

// FinalizeWithdrawal settles a reservation once the payout succeeded.
func (e *Engine) FinalizeWithdrawal(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, funds Funds, reference string) (*Wallet, error) {
	if err := checkFunds(funds); err != nil {
		return nil, err
	}
	var d Delta
	if !funds.Asset.IsCrypto() {
		d = Delta{Balance: funds.Amount.Neg(), Ledger: funds.Amount.Neg()}
	}
	return e.apply(ctx, tx, walletID, d, AuditFinalize, funds.Asset, funds.Amount, reference, "withdrawal completed")
}

// ReleaseWithdrawalReservation undoes ReserveForWithdrawal. balance is untouched.
func (e *Engine) ReleaseWithdrawalReservation(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, funds Funds, reference, reason string) (*Wallet, error) {
	if err := checkFunds(funds); err != nil {
		return nil, err
	}
	d := Delta{Available: funds.Amount}
	if funds.Asset.IsCrypto() {
		d = Delta{Asset: funds.Asset, Crypto: funds.Amount}
	}
	return e.apply(ctx, tx, walletID, d, AuditRelease, funds.Asset, funds.Amount, reference, reason)
}

// RefundFinalized undoes a completed payout that the provider reversed: the
// wallet gets amount+fee back and the platform returns the fee it took. Like
// a release it runs on frozen wallets.
func (e *Engine) RefundFinalized(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, amount, fee decimal.Decimal, reference, reason string) (*Wallet, error) {
	if err := checkFiat("amount", amount, false); err != nil {
		return nil, err
	}
	if err := checkFiat("fee", fee, true); err != nil {
		return nil, err
	}
	ids := []uuid.UUID{walletID}
	if fee.IsPositive() {
		ids = append(ids, PlatformWalletID)
	}
	if _, err := e.lockOrdered(ctx, tx, ids...); err != nil {
		return nil, err
	}
	if fee.IsPositive() {
		if _, err := e.apply(ctx, tx, PlatformWalletID, debitAll(fee), AuditFee, money.NGN, fee, reference, "fee returned on reversal"); err != nil {
			return nil, err
		}
	}
	total := amount.Add(fee)
	return e.apply(ctx, tx, walletID, creditAll(total), AuditRefund, money.NGN, total, reference, reason)
}

// CheckFundingLimit validates a funding amount against w without writing.
func (e *Engine) CheckFundingLimit(w *Wallet, amount decimal.Decimal) error {
	snapshot := *w
	resetCounters(&snapshot, e.clock.Now(), e.loc)
	if err := checkLimits(&snapshot, amount); err != nil {
		reject("funding_limit", "limit_exceeded")
		return err
	}
	return nil
}

// ConsumeFundingLimit adds a settled funding amount to the counters. It never
// rejects: the money has already arrived.
func (e *Engine) ConsumeFundingLimit(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, amount decimal.Decimal) error {
	w, err := e.store.Lock(ctx, tx, walletID)
	if err != nil {
		return err
	}
	resetCounters(w, e.clock.Now(), e.loc)
	w.DailyFundingSpent = w.DailyFundingSpent.Add(amount)
	w.MonthlyFundingSpent = w.MonthlyFundingSpent.Add(amount)
	return e.store.saveFundingCounters(ctx, tx, w)
}

// SetFrozen is the administrative freeze. It is allowed on frozen wallets.
func (e *Engine) SetFrozen(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, frozen bool, reason string) (*Wallet, error) {
	w, err := e.store.Lock(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	if w.IsFrozen == frozen {
		return w, nil
	}
	if err := e.store.setFrozen(ctx, tx, walletID, frozen, reason); err != nil {
		return nil, err
	}
	typ := AuditUnfreeze
	if frozen {
		typ = AuditFreeze
	}
	if err := e.store.recordAudit(ctx, tx, &AuditEntry{
		WalletID:        walletID,
		Type:            typ,
		Asset:           money.NGN,
		Amount:          decimal.Zero,
		PreviousBalance: w.Balance,
		NewBalance:      w.Balance,
		Reason:          reason,
	}); err != nil {
		return nil, err
	}
	return e.store.Lock(ctx, tx, walletID)
}

func (e *Engine) SetLimits(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, limits Limits) (*Wallet, error) {
	if limits.Daily.IsNegative() || limits.Monthly.IsNegative() {
		return nil, apperror.Validation("limits", "limits cannot be negative")
	}
	if limits.Monthly.IsPositive() && limits.Daily.GreaterThan(limits.Monthly) {
		return nil, apperror.Validation("daily_limit", "daily limit cannot exceed monthly limit")
	}
	if _, err := e.store.Lock(ctx, tx, walletID); err != nil {
		return nil, err
	}
	if err := e.store.setLimits(ctx, tx, walletID, limits); err != nil {
		return nil, err
	}
	return e.store.Lock(ctx, tx, walletID)
}

// apply writes d and its audit row together.
func (e *Engine) apply(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, d Delta, typ AuditType, asset money.Asset, amount decimal.Decimal, reference, reason string) (*Wallet, error) {
	before, after, err := e.store.applyDelta(ctx, tx, walletID, d)
	if err != nil {
		if errors.Is(err, apperror.ErrInsufficientFunds) {
			reject(string(typ), "negative_balance")
		}
		return nil, err
	}
	err = e.store.recordAudit(ctx, tx, &AuditEntry{
		WalletID:        walletID,
		Type:            typ,
		Asset:           asset,
		Amount:          amount,
		PreviousBalance: auditBalance(before, asset, typ),
		NewBalance:      auditBalance(after, asset, typ),
		Reference:       reference,
		Reason:          reason,
	})
	if err != nil {
		return nil, err
	}
	metrics.LedgerMutations.WithLabelValues(string(typ), string(asset)).Inc()
	return after, nil
}

func (e *Engine) lockOrdered(ctx context.Context, tx *sqlx.Tx, ids ...uuid.UUID) (map[uuid.UUID]*Wallet, error) {
	sorted := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			sorted = append(sorted, id)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	locked := make(map[uuid.UUID]*Wallet, len(sorted))
	for _, id := range sorted {
		w, err := e.store.Lock(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = w
	}
	return locked, nil
}

func debitAll(amount decimal.Decimal) Delta {
	n := amount.Neg()
	return Delta{Balance: n, Available: n, Ledger: n}
}

func creditAll(amount decimal.Decimal) Delta {
	return Delta{Balance: amount, Available: amount, Ledger: amount}
}

func credit(funds Funds) Delta {
	if funds.Asset.IsCrypto() {
		return Delta{Asset: funds.Asset, Crypto: funds.Amount}
	}
	return creditAll(funds.Amount)
}

func checkFiat(field string, d decimal.Decimal, allowZero bool) error {
	if allowZero && d.IsZero() {
		return nil
	}
	if err := money.CheckAmount(d, money.NGN); err != nil {
		return apperror.Validation(field, err.Error())
	}
	return nil
}

func checkFunds(f Funds) error {
	if err := money.CheckAmount(f.Amount, f.Asset); err != nil {
		return apperror.Validation("amount", err.Error())
	}
	return nil
}

func reject(op, reason string) {
	metrics.LedgerRejections.WithLabelValues(op, reason).Inc()
}
