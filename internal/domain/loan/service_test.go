package loan_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/domain/loan"
	"github.com/campuspay/campuspay-api/internal/domain/wallet"
	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
	"github.com/campuspay/campuspay-api/internal/pkg/clock"
	"github.com/campuspay/campuspay-api/internal/pkg/database"
	"github.com/campuspay/campuspay-api/internal/pkg/database/dbtest"
)

func newService(t *testing.T, clk clock.Clock) (*sqlx.DB, *loan.Repository, *loan.Service) {
	t.Helper()
	db := dbtest.Open(t)
	repo := loan.NewRepository(db)
	terms := loan.Terms{MaxPrincipal: decimal.NewFromInt(50000), InterestBps: 500}
	svc := loan.NewService(db, repo, wallet.NewStore(db, clk), terms, clk, database.DefaultRetryPolicy())
	return db, repo, svc
}

func TestApplyComputesInterestAndBlocksSecondLoan(t *testing.T) {
	db, _, svc := newService(t, clock.RealClock{})
	acct := dbtest.CreateAccount(t, db, "0")
	ctx := context.Background()

	l, err := svc.Apply(ctx, acct.UserID, &loan.ApplyRequest{
		Principal: decimal.NewFromInt(10000),
		TermDays:  30,
		Purpose:   "textbooks",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if l.Status != loan.StatusPending || !l.Interest.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("loan = %s interest %s", l.Status, l.Interest)
	}
	if !l.AmountOutstanding.Equal(decimal.NewFromInt(10500)) {
		t.Fatalf("outstanding = %s", l.AmountOutstanding)
	}
	if l.WalletID != acct.WalletID {
		t.Fatalf("wallet = %s, want %s", l.WalletID, acct.WalletID)
	}

	_, err = svc.Apply(ctx, acct.UserID, &loan.ApplyRequest{Principal: decimal.NewFromInt(100), TermDays: 7, Purpose: "again"})
	if !errors.Is(err, loan.ErrOpenLoanExists) {
		t.Fatalf("second apply err = %v, want ErrOpenLoanExists", err)
	}
}

func TestApplyRejectsOversizedPrincipal(t *testing.T) {
	db, _, svc := newService(t, clock.RealClock{})
	acct := dbtest.CreateAccount(t, db, "0")

	_, err := svc.Apply(context.Background(), acct.UserID, &loan.ApplyRequest{
		Principal: decimal.NewFromInt(50001),
		TermDays:  30,
		Purpose:   "laptop",
	})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestRejectOnlyPending(t *testing.T) {
	db, _, svc := newService(t, clock.RealClock{})
	acct := dbtest.CreateAccount(t, db, "0")
	ctx := context.Background()

	l, err := svc.Apply(ctx, acct.UserID, &loan.ApplyRequest{Principal: decimal.NewFromInt(2000), TermDays: 14, Purpose: "rent"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	rejected, err := svc.Reject(ctx, l.ID)
	if err != nil || rejected.Status != loan.StatusRejected {
		t.Fatalf("reject = %v, %v", rejected, err)
	}
	if _, err := svc.Reject(ctx, l.ID); !errors.Is(err, loan.ErrLoanNotPending) {
		t.Fatalf("second reject err = %v", err)
	}

	// a rejected application no longer blocks a new one
	if _, err := svc.Apply(ctx, acct.UserID, &loan.ApplyRequest{Principal: decimal.NewFromInt(1000), TermDays: 14, Purpose: "rent"}); err != nil {
		t.Fatalf("apply after reject: %v", err)
	}
}

func TestSweepDefaultsOverdueLoans(t *testing.T) {
	clk := clock.NewFixed(time.Now().UTC())
	db, repo, svc := newService(t, clk)
	acct := dbtest.CreateAccount(t, db, "0")
	ctx := context.Background()

	l, err := svc.Apply(ctx, acct.UserID, &loan.ApplyRequest{Principal: decimal.NewFromInt(3000), TermDays: 7, Purpose: "fees"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	err = database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		locked, err := repo.Lock(ctx, tx, l.ID)
		if err != nil {
			return err
		}
		locked.Activate(clk.Now().AddDate(0, 0, -8))
		return repo.Save(ctx, tx, locked)
	})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}

	if _, err := svc.SweepDefaults(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	got, err := repo.GetByID(ctx, l.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != loan.StatusDefaulted {
		t.Fatalf("status = %s, want DEFAULTED", got.Status)
	}
}
