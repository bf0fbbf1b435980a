package payment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/domain/payment"
	"github.com/campuspay/campuspay-api/internal/pkg/clock"
	"github.com/campuspay/campuspay-api/internal/pkg/database"
	"github.com/campuspay/campuspay-api/internal/pkg/database/dbtest"
	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

func seedFunding(t *testing.T, db *sqlx.DB) (*payment.Repository, *payment.Payment) {
	t.Helper()
	acct := dbtest.CreateAccount(t, db, "0")
	repo := payment.NewRepository(db, clock.RealClock{})
	p := payment.New(acct.UserID, acct.WalletID, decimal.NewFromInt(5000), decimal.Zero, money.NGN, payment.MethodCard, payment.Funding{})
	if err := repo.Insert(context.Background(), db, p); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return repo, p
}

func TestGuardClaimsOnce(t *testing.T) {
	db := dbtest.Open(t)
	repo, p := seedFunding(t, db)
	guard := payment.NewGuard(repo, clock.RealClock{})
	ctx := context.Background()

	settle := func() (bool, error) {
		var claimed bool
		err := database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
			claim, err := guard.TryClaim(ctx, tx, p.Reference)
			if err != nil {
				return err
			}
			claimed = claim.Claimed
			if !claim.Claimed {
				return nil
			}
			return guard.Transition(ctx, tx, claim.Payment, payment.StatusCompleted, []byte(`{"status":"success"}`), "")
		})
		return claimed, err
	}

	first, err := settle()
	if err != nil || !first {
		t.Fatalf("first settle = %v, %v", first, err)
	}
	second, err := settle()
	if err != nil || second {
		t.Fatalf("second settle = %v, %v; want unclaimed", second, err)
	}

	got, err := repo.GetByReference(ctx, p.Reference)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != payment.StatusCompleted || !got.CompletedAt.Valid {
		t.Fatalf("status = %s completed_at=%v", got.Status, got.CompletedAt)
	}
	if string(got.GatewayResponse) == "" {
		t.Fatal("gateway response not stored")
	}
}

func TestGuardRejectsInvalidEdge(t *testing.T) {
	db := dbtest.Open(t)
	repo, p := seedFunding(t, db)
	guard := payment.NewGuard(repo, clock.RealClock{})
	ctx := context.Background()

	err := database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		claim, err := guard.TryClaim(ctx, tx, p.Reference)
		if err != nil {
			return err
		}
		if err := guard.MarkProcessing(ctx, tx, claim.Payment, "paystack", "ext-"+p.Reference, "https://checkout.paystack.com/x", nil); err != nil {
			return err
		}
		return guard.Transition(ctx, tx, claim.Payment, payment.StatusCancelled, nil, "user cancelled")
	})
	if !errors.Is(err, payment.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	got, err := repo.GetByReference(ctx, p.Reference)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != payment.StatusPending {
		t.Fatalf("rolled back status = %s, want PENDING", got.Status)
	}
}

func TestGuardStaleSnapshotLosesRace(t *testing.T) {
	db := dbtest.Open(t)
	repo, p := seedFunding(t, db)
	guard := payment.NewGuard(repo, clock.RealClock{})
	ctx := context.Background()

	err := database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		claim, err := guard.TryClaim(ctx, tx, p.Reference)
		if err != nil {
			return err
		}
		return guard.Transition(ctx, tx, claim.Payment, payment.StatusFailed, nil, "declined")
	})
	if err != nil {
		t.Fatalf("fail: %v", err)
	}

	// p still says PENDING; the conditional update must not match.
	err = database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		return guard.Transition(ctx, tx, p, payment.StatusCompleted, nil, "")
	})
	if !errors.Is(err, payment.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestListByUserFilters(t *testing.T) {
	db := dbtest.Open(t)
	repo, p := seedFunding(t, db)
	ctx := context.Background()

	list, total, err := repo.ListByUser(ctx, p.UserID, payment.Filter{Type: payment.TypeFunding}, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(list) != 1 || list[0].Reference != p.Reference {
		t.Fatalf("list = %d items (total %d)", len(list), total)
	}
	if _, ok := list[0].Operation().(payment.Funding); !ok {
		t.Fatalf("details decoded as %T", list[0].Operation())
	}

	_, total, err = repo.ListByUser(ctx, p.UserID, payment.Filter{Status: payment.StatusCompleted}, 10, 0)
	if err != nil || total != 0 {
		t.Fatalf("completed filter = %d, %v", total, err)
	}
}
