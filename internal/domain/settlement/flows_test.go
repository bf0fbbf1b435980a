package settlement_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/campuspay/campuspay-api/internal/domain/billpay"
	"github.com/campuspay/campuspay-api/internal/domain/crypto"
	"github.com/campuspay/campuspay-api/internal/domain/loan"
	"github.com/campuspay/campuspay-api/internal/domain/payment"
	"github.com/campuspay/campuspay-api/internal/domain/remittance"
	"github.com/campuspay/campuspay-api/internal/pkg/database/dbtest"
	"github.com/campuspay/campuspay-api/internal/pkg/evm"
	"github.com/campuspay/campuspay-api/internal/pkg/gateway"
	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

func TestRRRReservesThenCompletes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	acct := dbtest.CreateAccount(t, f.db, "5000")

	res, err := f.orch.InitiateRRR(ctx, billpay.PayInput{
		UserID: acct.UserID, ServiceTypeID: "4430731", Amount: dec("1500"), Description: "school fees",
	})
	if err != nil {
		t.Fatalf("initiate rrr: %v", err)
	}
	if res.Payment.Status != payment.StatusProcessing {
		t.Fatalf("status = %s, want PROCESSING", res.Payment.Status)
	}
	op, ok := f.payment(t, res.Payment.Reference).Operation().(payment.RRR)
	if !ok || op.RRR != "EXT-"+res.Payment.Reference {
		t.Fatalf("expected rrr to be stored, got %+v", op)
	}
	if w := f.wallet(t, acct); !w.AvailableBalance.Equal(dec("3500")) || !w.Balance.Equal(dec("5000")) {
		t.Fatalf("after reserve = %s/%s, want 5000/3500", w.Balance, w.AvailableBalance)
	}

	if _, err := f.orch.Settle(ctx, &gateway.SettlementEvent{Reference: res.Payment.Reference, Outcome: gateway.OutcomeSuccess}); err != nil {
		t.Fatalf("settle: %v", err)
	}
	w := f.wallet(t, acct)
	if !w.Balance.Equal(dec("3500")) || !w.AvailableBalance.Equal(dec("3500")) {
		t.Fatalf("after complete = %s/%s, want 3500", w.Balance, w.AvailableBalance)
	}
	if p := f.payment(t, res.Payment.Reference); p.Status != payment.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", p.Status)
	}
}

func TestRemittanceHoldsFeeWithAmount(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	acct := dbtest.CreateAccount(t, f.db, "20000")

	res, err := f.orch.SendRemittance(ctx, remittance.SendInput{
		UserID:   acct.UserID,
		Amount:   dec("10000"),
		Currency: "ghs",
		Recipient: remittance.Recipient{
			Name: "Ama Mensah", AccountNumber: "0123456789", BankCode: "058", Country: "gh",
		},
	})
	if err != nil {
		t.Fatalf("send remittance: %v", err)
	}
	if !res.Quote.Fee.Equal(dec("100")) || !res.Quote.PayoutAmount.Equal(dec("95")) {
		t.Fatalf("quote fee=%s payout=%s, want 100 and 95", res.Quote.Fee, res.Quote.PayoutAmount)
	}
	if w := f.wallet(t, acct); !w.AvailableBalance.Equal(dec("9900")) {
		t.Fatalf("available = %s, want 9900", w.AvailableBalance)
	}

	if _, err := f.orch.Settle(ctx, &gateway.SettlementEvent{Reference: res.Payment.Reference, Outcome: gateway.OutcomeReversed}); err != nil {
		t.Fatalf("settle: %v", err)
	}
	w := f.wallet(t, acct)
	if !w.Balance.Equal(dec("20000")) || !w.AvailableBalance.Equal(dec("20000")) {
		t.Fatalf("after reversal = %s/%s, want 20000", w.Balance, w.AvailableBalance)
	}
	if p := f.payment(t, res.Payment.Reference); p.Status != payment.StatusRefunded {
		t.Fatalf("status = %s, want REFUNDED", p.Status)
	}
}

func TestRemittanceRejectsUnknownCorridor(t *testing.T) {
	f := newFixture(t, nil)
	acct := dbtest.CreateAccount(t, f.db, "20000")

	_, err := f.orch.SendRemittance(context.Background(), remittance.SendInput{
		UserID: acct.UserID, Amount: dec("1000"), Currency: "EUR",
		Recipient: remittance.Recipient{Name: "X", AccountNumber: "0123456789", BankCode: "058"},
	})
	if err == nil {
		t.Fatal("expected unsupported currency to be rejected")
	}
	if n := f.countPayments(t, acct); n != 0 {
		t.Fatalf("payments = %d, want 0", n)
	}
}

func insertLoan(t *testing.T, f *fixture, a dbtest.Account, principal, interest string) *loan.Loan {
	t.Helper()
	l := &loan.Loan{
		ID:                uuid.New(),
		UserID:            a.UserID,
		WalletID:          a.WalletID,
		Principal:         dec(principal),
		Interest:          dec(interest),
		AmountOutstanding: dec(principal).Add(dec(interest)),
		TermDays:          30,
		Purpose:           "laptop",
		Status:            loan.StatusPending,
		CreatedAt:         time.Now().UTC(),
	}
	tx := f.db.MustBeginTx(context.Background(), nil)
	if err := f.loans.Insert(context.Background(), tx, l); err != nil {
		_ = tx.Rollback()
		t.Fatalf("insert loan: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit loan: %v", err)
	}
	return l
}

func TestLoanDisburseThenRepay(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	acct := dbtest.CreateAccount(t, f.db, "100")
	l := insertLoan(t, f, acct, "1000", "50")

	disbursed, w, err := f.orch.DisburseLoan(ctx, l.ID)
	if err != nil {
		t.Fatalf("disburse: %v", err)
	}
	if disbursed.Status != loan.StatusActive || !disbursed.DueDate.Valid {
		t.Fatalf("loan = %s due=%v, want ACTIVE with due date", disbursed.Status, disbursed.DueDate.Valid)
	}
	if !w.Balance.Equal(dec("1100")) {
		t.Fatalf("balance after disbursement = %s, want 1100", w.Balance)
	}
	if _, _, err := f.orch.DisburseLoan(ctx, l.ID); !errors.Is(err, loan.ErrLoanNotPending) {
		t.Fatalf("second disburse err = %v, want ErrLoanNotPending", err)
	}

	other := dbtest.CreateAccount(t, f.db, "5000")
	if _, _, err := f.orch.RepayLoan(ctx, other.UserID, l.ID, dec("10")); !errors.Is(err, loan.ErrLoanNotFound) {
		t.Fatalf("foreign repay err = %v, want ErrLoanNotFound", err)
	}
	if _, _, err := f.orch.RepayLoan(ctx, acct.UserID, l.ID, dec("2000")); !errors.Is(err, loan.ErrRepaymentTooLarge) {
		t.Fatalf("oversized repay err = %v, want ErrRepaymentTooLarge", err)
	}

	partial, _, err := f.orch.RepayLoan(ctx, acct.UserID, l.ID, dec("50"))
	if err != nil {
		t.Fatalf("partial repay: %v", err)
	}
	if partial.Status != loan.StatusActive || !partial.AmountOutstanding.Equal(dec("1000")) {
		t.Fatalf("after partial = %s outstanding %s", partial.Status, partial.AmountOutstanding)
	}

	done, w, err := f.orch.RepayLoan(ctx, acct.UserID, l.ID, dec("1000"))
	if err != nil {
		t.Fatalf("final repay: %v", err)
	}
	if done.Status != loan.StatusCompleted || !done.AmountOutstanding.IsZero() {
		t.Fatalf("after final = %s outstanding %s", done.Status, done.AmountOutstanding)
	}
	if !w.Balance.Equal(dec("50")) || !w.AvailableBalance.Equal(dec("50")) {
		t.Fatalf("balance = %s/%s, want 50", w.Balance, w.AvailableBalance)
	}
	if _, _, err := f.orch.RepayLoan(ctx, acct.UserID, l.ID, dec("1")); !errors.Is(err, loan.ErrLoanNotRepayable) {
		t.Fatalf("repay after completion err = %v, want ErrLoanNotRepayable", err)
	}
}

func txHash() string {
	return "0x" + strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

func TestCryptoDepositCreditsOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	acct := dbtest.CreateAccount(t, f.db, "0")
	hash := txHash()

	res, err := f.orch.CryptoDeposit(ctx, crypto.DepositInput{UserID: acct.UserID, Asset: money.USDT, Amount: dec("25.5"), TxHash: strings.ToUpper(hash[:2]) + hash[2:]})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Payment.Status != payment.StatusCompleted || res.AlreadyProcessed {
		t.Fatalf("status = %s already=%v, want fresh COMPLETED", res.Payment.Status, res.AlreadyProcessed)
	}
	if w := f.wallet(t, acct); !w.USDTBalance.Equal(dec("25.5")) || !w.Balance.IsZero() {
		t.Fatalf("usdt = %s ngn = %s, want 25.5 and 0", w.USDTBalance, w.Balance)
	}

	again, err := f.orch.CryptoDeposit(ctx, crypto.DepositInput{UserID: acct.UserID, Asset: money.USDT, Amount: dec("25.5"), TxHash: hash})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if !again.AlreadyProcessed || again.Payment.ID != res.Payment.ID {
		t.Fatalf("resubmission should return the original, got %+v", again)
	}
	if w := f.wallet(t, acct); !w.USDTBalance.Equal(dec("25.5")) {
		t.Fatalf("usdt after resubmit = %s, want 25.5", w.USDTBalance)
	}

	other := dbtest.CreateAccount(t, f.db, "0")
	if _, err := f.orch.CryptoDeposit(ctx, crypto.DepositInput{UserID: other.UserID, Asset: money.USDT, Amount: dec("25.5"), TxHash: hash}); !errors.Is(err, crypto.ErrDuplicateTxHash) {
		t.Fatalf("foreign claim err = %v, want ErrDuplicateTxHash", err)
	}
}

func TestCryptoDepositConfirmingStaysProcessing(t *testing.T) {
	f := newFixture(t, nil)
	f.chain.status = evm.DepositConfirming
	acct := dbtest.CreateAccount(t, f.db, "0")

	res, err := f.orch.CryptoDeposit(context.Background(), crypto.DepositInput{UserID: acct.UserID, Asset: money.USDC, Amount: dec("10"), TxHash: txHash()})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Payment.Status != payment.StatusProcessing {
		t.Fatalf("status = %s, want PROCESSING", res.Payment.Status)
	}
	if w := f.wallet(t, acct); !w.USDCBalance.IsZero() {
		t.Fatalf("usdc = %s, want 0 until confirmed", w.USDCBalance)
	}
}

func TestCryptoWithdrawReleasesOnFailure(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	acct := dbtest.CreateAccount(t, f.db, "0")
	dbtest.SetCrypto(t, f.db, acct.WalletID, "usdt_balance", "50")

	res, err := f.orch.CryptoWithdraw(ctx, crypto.WithdrawInput{
		UserID: acct.UserID, Asset: money.USDT, Amount: dec("20"), ToAddress: "0x00000000000000000000000000000000000000bb",
	})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if res.Payment.Status != payment.StatusProcessing || !res.Transaction.TxHash.Valid {
		t.Fatalf("status = %s hash=%v, want PROCESSING with hash", res.Payment.Status, res.Transaction.TxHash.Valid)
	}
	if w := f.wallet(t, acct); !w.USDTBalance.Equal(dec("30")) {
		t.Fatalf("usdt after reserve = %s, want 30", w.USDTBalance)
	}

	if _, err := f.orch.Settle(ctx, &gateway.SettlementEvent{Reference: res.Payment.Reference, Outcome: gateway.OutcomeFailure, Reason: "reverted"}); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if w := f.wallet(t, acct); !w.USDTBalance.Equal(dec("50")) {
		t.Fatalf("usdt after release = %s, want 50", w.USDTBalance)
	}
	if p := f.payment(t, res.Payment.Reference); p.Status != payment.StatusFailed {
		t.Fatalf("status = %s, want FAILED", p.Status)
	}
}

func TestCryptoWithdrawTimedOutBroadcastKeepsHash(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	acct := dbtest.CreateAccount(t, f.db, "0")
	dbtest.SetCrypto(t, f.db, acct.WalletID, "usdt_balance", "40")
	hash := txHash()
	f.evm.initErr = &gateway.Error{Provider: "evm", Op: "send", Ambiguous: true, ExternalReference: hash, Err: errors.New("i/o timeout")}

	res, err := f.orch.CryptoWithdraw(ctx, crypto.WithdrawInput{
		UserID: acct.UserID, Asset: money.USDT, Amount: dec("15"), ToAddress: "0x00000000000000000000000000000000000000cc",
	})
	if err != nil {
		t.Fatalf("ambiguous broadcast should not error, got %v", err)
	}
	if res.Payment.Status != payment.StatusProcessing {
		t.Fatalf("status = %s, want PROCESSING", res.Payment.Status)
	}

	p := f.payment(t, res.Payment.Reference)
	if p.ExternalReference.String != hash {
		t.Fatalf("external reference = %q, want %q", p.ExternalReference.String, hash)
	}
	if op, ok := p.Operation().(payment.CryptoWithdrawal); !ok || op.TxHash != hash {
		t.Fatalf("operation hash = %+v, want %s", p.Operation(), hash)
	}
	if !res.Transaction.TxHash.Valid || res.Transaction.TxHash.String != hash {
		t.Fatalf("crypto transaction hash = %+v, want %s", res.Transaction.TxHash, hash)
	}
	if w := f.wallet(t, acct); !w.USDTBalance.Equal(dec("25")) {
		t.Fatalf("usdt = %s, want 25 while in flight", w.USDTBalance)
	}

	if _, err := f.orch.Settle(ctx, &gateway.SettlementEvent{Reference: p.Reference, ExternalReference: hash, Outcome: gateway.OutcomeSuccess}); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if got := f.payment(t, p.Reference); got.Status != payment.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", got.Status)
	}
}
