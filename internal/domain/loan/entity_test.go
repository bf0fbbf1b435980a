package loan

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestStatusPredicates(t *testing.T) {
	cases := []struct {
		status    Status
		open      bool
		repayable bool
	}{
		{StatusPending, true, false},
		{StatusActive, true, true},
		{StatusDefaulted, true, true},
		{StatusCompleted, false, false},
		{StatusRejected, false, false},
	}
	for _, tc := range cases {
		if got := tc.status.Open(); got != tc.open {
			t.Fatalf("%s.Open() = %v, want %v", tc.status, got, tc.open)
		}
		if got := tc.status.Repayable(); got != tc.repayable {
			t.Fatalf("%s.Repayable() = %v, want %v", tc.status, got, tc.repayable)
		}
	}
}

func TestActivateSetsDueDate(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	l := &Loan{TermDays: 30, Status: StatusPending}
	l.Activate(now)

	if l.Status != StatusActive {
		t.Fatalf("status = %s", l.Status)
	}
	if !l.DueDate.Valid || !l.DueDate.Time.Equal(now.AddDate(0, 0, 30)) {
		t.Fatalf("due date = %v", l.DueDate)
	}
	if !l.DisbursedAt.Valid || !l.DisbursedAt.Time.Equal(now) {
		t.Fatalf("disbursed at = %v", l.DisbursedAt)
	}
}

func TestRepay(t *testing.T) {
	now := time.Now()

	t.Run("partial", func(t *testing.T) {
		l := &Loan{Status: StatusActive, AmountOutstanding: decimal.NewFromInt(1050)}
		l.Repay(decimal.NewFromInt(50), now)
		if !l.AmountOutstanding.Equal(decimal.NewFromInt(1000)) || l.Status != StatusActive {
			t.Fatalf("after partial: %s %s", l.AmountOutstanding, l.Status)
		}
		if l.CompletedAt.Valid {
			t.Fatal("completed_at set on partial repayment")
		}
	})

	t.Run("full clears a defaulted loan", func(t *testing.T) {
		l := &Loan{Status: StatusDefaulted, AmountOutstanding: decimal.RequireFromString("1050.50")}
		l.Repay(decimal.RequireFromString("1050.50"), now)
		if !l.AmountOutstanding.IsZero() || l.Status != StatusCompleted || !l.CompletedAt.Valid {
			t.Fatalf("after full: %s %s %v", l.AmountOutstanding, l.Status, l.CompletedAt)
		}
	})
}
