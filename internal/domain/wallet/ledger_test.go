package wallet

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDeltaApply(t *testing.T) {
	base := Wallet{
		Balance:          dec("100"),
		AvailableBalance: dec("80"),
		LedgerBalance:    dec("100"),
		USDTBalance:      dec("5"),
	}

	tests := []struct {
		name    string
		delta   Delta
		wantErr error
		check   func(t *testing.T, w Wallet)
	}{
		{
			name:  "reserve moves available only",
			delta: Delta{Available: dec("-30")},
			check: func(t *testing.T, w Wallet) {
				if !w.AvailableBalance.Equal(dec("50")) || !w.Balance.Equal(dec("100")) {
					t.Fatalf("unexpected wallet %+v", w)
				}
			},
		},
		{
			name:    "available cannot go negative",
			delta:   Delta{Available: dec("-80.01")},
			wantErr: ErrInsufficientFunds,
		},
		{
			name:    "balance cannot go negative",
			delta:   Delta{Balance: dec("-100.01"), Ledger: dec("-100.01")},
			wantErr: ErrNegativeBalance,
		},
		{
			name:  "crypto sub-balance",
			delta: Delta{Asset: money.USDT, Crypto: dec("-5")},
			check: func(t *testing.T, w Wallet) {
				if !w.USDTBalance.IsZero() {
					t.Fatalf("usdt = %s, want 0", w.USDTBalance)
				}
			},
		},
		{
			name:    "crypto cannot go negative",
			delta:   Delta{Asset: money.USDC, Crypto: dec("-0.000001")},
			wantErr: ErrInsufficientFunds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.delta.apply(base)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("apply() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("apply() error = %v", err)
			}
			tt.check(t, got)
		})
	}
}

func TestResetCountersLazily(t *testing.T) {
	lagos, err := time.LoadLocation("Africa/Lagos")
	if err != nil {
		t.Skipf("tzdata not available: %v", err)
	}
	// 23:30 WAT on Jan 31
	lastReset := time.Date(2025, 1, 31, 22, 30, 0, 0, time.UTC)
	w := Wallet{
		DailyFundingSpent:   dec("1000"),
		MonthlyFundingSpent: dec("9000"),
		DailyResetAt:        lastReset,
		MonthlyResetAt:      lastReset,
	}

	sameDay := time.Date(2025, 1, 31, 22, 50, 0, 0, time.UTC)
	resetCounters(&w, sameDay, lagos)
	if !w.DailyFundingSpent.Equal(dec("1000")) {
		t.Fatalf("daily counter reset too early: %s", w.DailyFundingSpent)
	}

	// 00:10 WAT on Feb 1 is still Jan 31 in UTC
	nextDay := time.Date(2025, 1, 31, 23, 10, 0, 0, time.UTC)
	resetCounters(&w, nextDay, lagos)
	if !w.DailyFundingSpent.IsZero() || !w.MonthlyFundingSpent.IsZero() {
		t.Fatalf("expected both counters reset, got daily=%s monthly=%s", w.DailyFundingSpent, w.MonthlyFundingSpent)
	}
}

func TestCheckLimits(t *testing.T) {
	w := &Wallet{DailyLimit: dec("50000"), MonthlyLimit: dec("100000"), DailyFundingSpent: dec("49000"), MonthlyFundingSpent: dec("60000")}
	if err := checkLimits(w, dec("1000")); err != nil {
		t.Fatalf("amount at the daily cap should pass: %v", err)
	}
	if err := checkLimits(w, dec("1000.01")); !errors.Is(err, ErrDailyLimitExceeded) {
		t.Fatalf("expected daily limit error, got %v", err)
	}

	w.DailyLimit = decimal.Zero
	if err := checkLimits(w, dec("40000.01")); !errors.Is(err, ErrMonthlyLimitExceeded) {
		t.Fatalf("expected monthly limit error, got %v", err)
	}
}

func TestAuditChain(t *testing.T) {
	walletID := uuid.New()
	at := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	var entries []AuditEntry
	prev := ""
	for i, amount := range []string{"100", "25.5", "10"} {
		e := AuditEntry{
			Seq:             int64(i + 1),
			ID:              uuid.New(),
			WalletID:        walletID,
			Type:            AuditCredit,
			Asset:           money.NGN,
			Amount:          dec(amount),
			PreviousBalance: dec("0"),
			NewBalance:      dec(amount),
			Reference:       "FND-" + amount,
			CreatedAt:       at.Add(time.Duration(i) * time.Minute),
			PrevHash:        prev,
		}
		e.Hash = ComputeHash(prev, e)
		prev = e.Hash
		entries = append(entries, e)
	}

	if brk := VerifyChain(entries); brk != nil {
		t.Fatalf("intact chain reported broken at seq %d", brk.Seq)
	}

	// NUMERIC round trip changes the textual scale but not the hash.
	entries[1].Amount = dec("25.500000")
	if brk := VerifyChain(entries); brk != nil {
		t.Fatalf("rescaled amount broke the chain at seq %d", brk.Seq)
	}

	entries[1].Amount = dec("2550")
	brk := VerifyChain(entries)
	if brk == nil || brk.Seq != 2 {
		t.Fatalf("expected tampering detected at seq 2, got %+v", brk)
	}
}
