package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/domain/loan"
	"github.com/campuspay/campuspay-api/internal/domain/payment"
	"github.com/campuspay/campuspay-api/internal/domain/wallet"
	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
	"github.com/campuspay/campuspay-api/internal/pkg/database"
	"github.com/campuspay/campuspay-api/internal/pkg/metrics"
	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

// RepayLoan pays the platform from the borrower's wallet and reduces what is owed.
func (o *Orchestrator) RepayLoan(ctx context.Context, userID, loanID uuid.UUID, amount decimal.Decimal) (*loan.Loan, *wallet.Wallet, error) {
	if err := money.CheckAmount(amount, money.NGN); err != nil {
		return nil, nil, apperror.Validation("amount", err.Error())
	}

	var (
		l *loan.Loan
		w *wallet.Wallet
		p *payment.Payment
	)
	err := database.RunInTx(ctx, o.db, o.retry, "loan.repay", func(tx *sqlx.Tx) error {
		var err error
		l, err = o.loans.Lock(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if l.UserID != userID {
			return loan.ErrLoanNotFound
		}
		if !l.Status.Repayable() {
			return loan.ErrLoanNotRepayable
		}
		if amount.GreaterThan(l.AmountOutstanding) {
			return loan.ErrRepaymentTooLarge
		}

		now := o.clock.Now()
		p = completedPayment(userID, l.WalletID, amount, decimal.Zero, payment.LoanRepayment{LoanID: l.ID}, now)
		if w, err = o.engine.DebitInternal(ctx, tx, l.WalletID, amount, p.Reference, "loan repayment"); err != nil {
			return err
		}
		l.Repay(amount, now)
		if err := o.loans.Save(ctx, tx, l); err != nil {
			return err
		}
		return o.payments.Insert(ctx, tx, p)
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.Settlements.WithLabelValues(string(p.Type), string(p.Status)).Inc()
	log.Info().Str("loan_id", l.ID.String()).Str("reference", p.Reference).Str("amount", amount.String()).
		Str("outstanding", l.AmountOutstanding.String()).Str("status", string(l.Status)).Msg("loan repayment applied")
	o.afterCommit(ctx, &Result{Payment: p, Wallet: w, changed: true, touched: []uuid.UUID{wallet.PlatformWalletID}})
	return l, w, nil
}

// DisburseLoan credits an approved loan's principal and starts its term.
func (o *Orchestrator) DisburseLoan(ctx context.Context, loanID uuid.UUID) (*loan.Loan, *wallet.Wallet, error) {
	var (
		l *loan.Loan
		w *wallet.Wallet
		p *payment.Payment
	)
	err := database.RunInTx(ctx, o.db, o.retry, "loan.disburse", func(tx *sqlx.Tx) error {
		var err error
		l, err = o.loans.Lock(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if l.Status != loan.StatusPending {
			return loan.ErrLoanNotPending
		}

		now := o.clock.Now()
		p = completedPayment(l.UserID, l.WalletID, l.Principal, decimal.Zero, payment.LoanDisbursement{LoanID: l.ID}, now)
		if w, err = o.engine.CreditExternal(ctx, tx, l.WalletID, wallet.NGN(l.Principal), p.Reference, "loan disbursement"); err != nil {
			return err
		}
		l.Activate(now)
		if err := o.loans.Save(ctx, tx, l); err != nil {
			return err
		}
		return o.payments.Insert(ctx, tx, p)
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.Settlements.WithLabelValues(string(p.Type), string(p.Status)).Inc()
	log.Info().Str("loan_id", l.ID.String()).Str("reference", p.Reference).Str("principal", l.Principal.String()).Msg("loan disbursed")
	o.afterCommit(ctx, &Result{Payment: p, Wallet: w, changed: true})
	return l, w, nil
}

// completedPayment builds the record of a synchronous operation.
func completedPayment(userID, walletID uuid.UUID, amount, fee decimal.Decimal, op payment.Operation, now time.Time) *payment.Payment {
	p := payment.New(userID, walletID, amount, fee, money.NGN, payment.MethodWallet, op)
	p.Status = payment.StatusCompleted
	p.CompletedAt.Time, p.CompletedAt.Valid = now, true
	p.CreatedAt = now
	return p
}
