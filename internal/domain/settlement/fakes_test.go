package settlement_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/domain/crypto"
	"github.com/campuspay/campuspay-api/internal/domain/loan"
	"github.com/campuspay/campuspay-api/internal/domain/p2p"
	"github.com/campuspay/campuspay-api/internal/domain/payment"
	"github.com/campuspay/campuspay-api/internal/domain/remittance"
	"github.com/campuspay/campuspay-api/internal/domain/settlement"
	"github.com/campuspay/campuspay-api/internal/domain/user"
	"github.com/campuspay/campuspay-api/internal/domain/wallet"
	"github.com/campuspay/campuspay-api/internal/pkg/clock"
	"github.com/campuspay/campuspay-api/internal/pkg/database"
	"github.com/campuspay/campuspay-api/internal/pkg/database/dbtest"
	"github.com/campuspay/campuspay-api/internal/pkg/evm"
	"github.com/campuspay/campuspay-api/internal/pkg/gateway"
	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeRail stands in for a provider. It accepts every initiate unless
// initErr is set and answers status checks with status.
type fakeRail struct {
	name string

	mu         sync.Mutex
	initErr    error
	initStatus gateway.Outcome
	status     gateway.Outcome
	statusErr  error
	requests   []gateway.Request
}

func newFakeRail(name string) *fakeRail {
	return &fakeRail{name: name, initStatus: gateway.OutcomePending, status: gateway.OutcomePending}
}

func (f *fakeRail) Name() string { return f.name }

func (f *fakeRail) Initiate(ctx context.Context, req gateway.Request) (*gateway.Initiation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &gateway.Initiation{
		ExternalReference: "EXT-" + req.Reference,
		AuthorizationURL:  "https://checkout.test/" + req.Reference,
		Status:            f.initStatus,
	}, nil
}

func (f *fakeRail) CheckStatus(ctx context.Context, lookup gateway.Lookup) (*gateway.SettlementEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &gateway.SettlementEvent{Reference: lookup.Reference, Outcome: f.status}, nil
}

func (f *fakeRail) VerifySignature(payload []byte, signature string) bool { return signature == "ok" }

func (f *fakeRail) ResolveRecipient(ctx context.Context, accountNumber, bankCode string) (*gateway.BankAccount, error) {
	return &gateway.BankAccount{
		AccountNumber: accountNumber,
		BankCode:      bankCode,
		AccountName:   "Test Student",
		RecipientCode: "RCP_" + accountNumber,
	}, nil
}

func (f *fakeRail) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// fakeChain answers deposit checks with a fixed verdict.
type fakeChain struct {
	mu     sync.Mutex
	status evm.DepositStatus
	checks int
}

func (c *fakeChain) VerifyDeposit(ctx context.Context, txHash string, asset money.Asset, expected decimal.Decimal) (*evm.DepositCheck, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks++
	return &evm.DepositCheck{Status: c.status, Confirmations: 12, BlockNumber: 100, Amount: expected}, nil
}

func (c *fakeChain) DepositAddress() string { return "0x00000000000000000000000000000000000000aa" }

// recordingNotifier counts wallet pushes.
type recordingNotifier struct {
	mu      sync.Mutex
	updates map[string]int
}

func (n *recordingNotifier) WalletUpdated(ctx context.Context, w *wallet.Wallet) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.updates == nil {
		n.updates = map[string]int{}
	}
	n.updates[w.ID.String()]++
}

func (n *recordingNotifier) count(id string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.updates[id]
}

type fixture struct {
	db       *sqlx.DB
	store    *wallet.Store
	payments *payment.Repository
	orch     *settlement.Orchestrator
	charge   *fakeRail
	payout   *fakeRail
	remita   *fakeRail
	evm      *fakeRail
	chain    *fakeChain
	loans    *loan.Repository
	notifier *recordingNotifier
	clock    *clock.Fixed
}

func testPolicy() settlement.Policy {
	return settlement.Policy{
		Funding:       settlement.Bounds{Min: dec("100"), Max: dec("1000000")},
		Withdrawal:    settlement.Bounds{Min: dec("100"), Max: dec("1000000")},
		Transfer:      settlement.Bounds{Min: dec("50"), Max: dec("500000")},
		RRR:           settlement.Bounds{Min: dec("100"), Max: dec("1000000")},
		Crypto:        settlement.Bounds{Min: dec("1"), Max: dec("10000")},
		TransferFee:   dec("10"),
		WithdrawalFee: dec("50"),
		CallbackURL:   "https://app.campuspay.test/wallet/callback",
	}
}

func newFixture(t *testing.T, tweak func(*settlement.Policy)) *fixture {
	t.Helper()
	db := dbtest.Open(t)

	policy := testPolicy()
	if tweak != nil {
		tweak(&policy)
	}
	clk := clock.NewFixed(time.Now().UTC())
	store := wallet.NewStore(db, clk)
	payments := payment.NewRepository(db, clk)
	f := &fixture{
		db:       db,
		store:    store,
		payments: payments,
		charge:   newFakeRail("paystack"),
		payout:   newFakeRail("paystack"),
		remita:   newFakeRail("remita"),
		evm:      newFakeRail("evm"),
		chain:    &fakeChain{status: evm.DepositConfirmed},
		loans:    loan.NewRepository(db),
		notifier: &recordingNotifier{},
		clock:    clk,
	}
	f.orch = settlement.New(settlement.Deps{
		DB:       db,
		Retry:    database.DefaultRetryPolicy(),
		Clock:    clk,
		Wallets:  store,
		Engine:   wallet.NewEngine(store, clk, time.UTC),
		Payments: payments,
		Guard:    payment.NewGuard(payments, clk),
		Users:    user.NewRepository(db),
		P2P:      p2p.NewRepository(db),
		Loans:    f.loans,
		Crypto:   crypto.NewRepository(db),
		Quoter:   remittance.NewQuoter(map[string]decimal.Decimal{"GHS": dec("0.0095")}, 100),
		Charge:   f.charge,
		Payout:   f.payout,
		Remita:   f.remita,
		EVM:      f.evm,
		Chain:    f.chain,
		Notifier: f.notifier,
		Policy:   policy,
	})
	return f
}

func (f *fixture) wallet(t *testing.T, a dbtest.Account) *wallet.Wallet {
	t.Helper()
	w, err := f.store.GetByID(context.Background(), a.WalletID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	return w
}

func (f *fixture) payment(t *testing.T, reference string) *payment.Payment {
	t.Helper()
	p, err := f.payments.GetByReference(context.Background(), reference)
	if err != nil {
		t.Fatalf("get payment %s: %v", reference, err)
	}
	return p
}

func (f *fixture) freeze(t *testing.T, a dbtest.Account) {
	t.Helper()
	if _, err := f.db.Exec(`UPDATE wallets SET is_frozen = TRUE, frozen_reason = 'test' WHERE id = $1`, a.WalletID); err != nil {
		t.Fatalf("freeze: %v", err)
	}
}

func (f *fixture) countPayments(t *testing.T, a dbtest.Account) int {
	t.Helper()
	var n int
	if err := f.db.Get(&n, `SELECT COUNT(*) FROM payments WHERE wallet_id = $1`, a.WalletID); err != nil {
		t.Fatalf("count payments: %v", err)
	}
	return n
}
