package settlement

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/domain/crypto"
	"github.com/campuspay/campuspay-api/internal/domain/payment"
	"github.com/campuspay/campuspay-api/internal/pkg/database"
	"github.com/campuspay/campuspay-api/internal/pkg/evm"
	"github.com/campuspay/campuspay-api/internal/pkg/gateway"
	"github.com/campuspay/campuspay-api/internal/pkg/metrics"
)

const chainProvider = "evm"

// DepositAddress is where students send tokens before claiming a deposit.
func (o *Orchestrator) DepositAddress() (string, error) {
	if o.chain == nil {
		return "", ErrRailNotConfigured
	}
	return o.chain.DepositAddress(), nil
}

// CryptoDeposit claims an inbound token transfer by hash. The hash is the
// idempotency key: resubmitting it returns the existing record.
func (o *Orchestrator) CryptoDeposit(ctx context.Context, in crypto.DepositInput) (*crypto.Result, error) {
	hash := crypto.NormalizeHash(in.TxHash)

	existing, err := o.crypto.GetByTxHash(ctx, hash)
	switch {
	case err == nil:
		return o.resumeDeposit(ctx, in.UserID, existing)
	case !errors.Is(err, crypto.ErrTransactionNotFound):
		return nil, err
	}

	if !in.Asset.IsCrypto() {
		return nil, errUnsupportedAsset
	}
	if err := o.policy.Crypto.Check(in.Amount, in.Asset); err != nil {
		return nil, err
	}
	w, err := o.walletForUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if o.chain == nil {
		return nil, ErrRailNotConfigured
	}

	// The transfer already happened on chain, so the payment starts PROCESSING.
	p := payment.New(in.UserID, w.ID, in.Amount, decimal.Zero, in.Asset, payment.MethodCrypto, payment.CryptoDeposit{Asset: in.Asset, TxHash: hash})
	p.Status = payment.StatusProcessing
	p.Provider = sql.NullString{String: chainProvider, Valid: true}
	p.ExternalReference = sql.NullString{String: hash, Valid: true}
	ct := &crypto.Transaction{
		ID:        uuid.New(),
		PaymentID: p.ID,
		UserID:    in.UserID,
		Direction: crypto.DirectionDeposit,
		Asset:     in.Asset,
		Amount:    in.Amount,
		TxHash:    sql.NullString{String: hash, Valid: true},
		Status:    crypto.StatusPending,
	}
	err = database.RunInTx(ctx, o.db, o.retry, "crypto_deposit", func(tx *sqlx.Tx) error {
		if err := o.payments.Insert(ctx, tx, p); err != nil {
			return err
		}
		return o.crypto.Insert(ctx, tx, ct)
	})
	if errors.Is(err, crypto.ErrDuplicateTxHash) {
		// lost a race with an identical submission
		if existing, getErr := o.crypto.GetByTxHash(ctx, hash); getErr == nil {
			return o.resumeDeposit(ctx, in.UserID, existing)
		}
	}
	if err != nil {
		return nil, err
	}
	metrics.PaymentsInitiated.WithLabelValues(string(p.Type)).Inc()
	log.Info().Str("reference", p.Reference).Str("tx_hash", hash).Str("amount", in.Amount.String()).
		Str("asset", string(in.Asset)).Msg("crypto deposit submitted")

	res, err := o.checkDeposit(ctx, p)
	if err != nil {
		log.Warn().Err(err).Str("reference", p.Reference).Msg("deposit verification failed; left for reconciliation")
		res = &Result{Payment: p}
	}
	return o.cryptoResult(ctx, res)
}

func (o *Orchestrator) resumeDeposit(ctx context.Context, userID uuid.UUID, ct *crypto.Transaction) (*crypto.Result, error) {
	if ct.UserID != userID || ct.Direction != crypto.DirectionDeposit {
		return nil, crypto.ErrDuplicateTxHash
	}
	p, err := o.payments.GetByID(ctx, ct.PaymentID)
	if err != nil {
		return nil, err
	}
	if p.Status.Terminal() {
		return o.cryptoResult(ctx, &Result{Payment: p, AlreadyProcessed: true})
	}
	res, err := o.checkDeposit(ctx, p)
	if err != nil {
		log.Warn().Err(err).Str("reference", p.Reference).Msg("deposit verification failed")
		res = &Result{Payment: p}
	}
	return o.cryptoResult(ctx, res)
}

// checkDeposit reads the receipt and settles the deposit under the tx hash claim.
func (o *Orchestrator) checkDeposit(ctx context.Context, p *payment.Payment) (*Result, error) {
	if o.chain == nil {
		return nil, ErrRailNotConfigured
	}
	op, ok := p.Operation().(payment.CryptoDeposit)
	if !ok {
		return nil, ErrNotSettleable
	}

	check, err := o.chain.VerifyDeposit(ctx, op.TxHash, op.Asset, p.Amount)
	if err != nil {
		return nil, err
	}
	ev := &gateway.SettlementEvent{
		Reference:         p.Reference,
		ExternalReference: op.TxHash,
		Confirmations:     check.Confirmations,
		BlockNumber:       check.BlockNumber,
		Amount:            check.Amount,
		Reason:            check.Reason,
	}
	switch check.Status {
	case evm.DepositConfirmed:
		ev.Outcome = gateway.OutcomeSuccess
	case evm.DepositFailed:
		ev.Outcome = gateway.OutcomeFailure
	default:
		ev.Outcome = gateway.OutcomePending
	}
	return o.settle(ctx, o.byTxHash(op.TxHash), ev)
}

// CryptoWithdraw reserves the token sub-balance and broadcasts an ERC-20 transfer.
func (o *Orchestrator) CryptoWithdraw(ctx context.Context, in crypto.WithdrawInput) (*crypto.Result, error) {
	if !in.Asset.IsCrypto() {
		return nil, errUnsupportedAsset
	}
	if err := o.policy.Crypto.Check(in.Amount, in.Asset); err != nil {
		return nil, err
	}
	w, err := o.walletForUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if o.evm == nil {
		return nil, ErrRailNotConfigured
	}

	op := payment.CryptoWithdrawal{Asset: in.Asset, ToAddress: in.ToAddress}
	p := payment.New(in.UserID, w.ID, in.Amount, decimal.Zero, in.Asset, payment.MethodCrypto, op)
	ct := &crypto.Transaction{
		ID:        uuid.New(),
		PaymentID: p.ID,
		UserID:    in.UserID,
		Direction: crypto.DirectionWithdrawal,
		Asset:     in.Asset,
		Amount:    in.Amount,
		ToAddress: sql.NullString{String: in.ToAddress, Valid: true},
		Status:    crypto.StatusPending,
	}
	err = o.startReserved(ctx, p, false, func(ctx context.Context, tx *sqlx.Tx) error {
		return o.crypto.Insert(ctx, tx, ct)
	})
	if err != nil {
		return nil, err
	}

	res, err := o.dispatch(ctx, o.evm, p, gateway.Request{
		Reference: p.Reference,
		Amount:    in.Amount,
		Asset:     in.Asset,
		ToAddress: in.ToAddress,
	}, func(ctx context.Context, tx *sqlx.Tx, p *payment.Payment, init *gateway.Initiation) error {
		op.TxHash = crypto.NormalizeHash(init.ExternalReference)
		p.Details = payment.Details{Operation: op}
		if err := o.payments.UpdateDetails(ctx, tx, p.ID, op); err != nil {
			return err
		}
		return o.crypto.SetTxHash(ctx, tx, ct.ID, op.TxHash)
	})
	if err != nil {
		return nil, err
	}
	return o.cryptoResult(ctx, res)
}

func (o *Orchestrator) cryptoResult(ctx context.Context, res *Result) (*crypto.Result, error) {
	ct, err := o.crypto.GetByPaymentID(ctx, o.db, res.Payment.ID)
	if err != nil {
		return nil, err
	}
	w := res.Wallet
	if w == nil {
		w = o.currentWallet(ctx, res.Payment)
	}
	return &crypto.Result{Transaction: ct, Payment: res.Payment, Wallet: w, AlreadyProcessed: res.AlreadyProcessed}, nil
}
