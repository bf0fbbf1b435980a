package loan

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusDefaulted Status = "DEFAULTED"
	StatusRejected  Status = "REJECTED"
)

// Open loans block a new application. A defaulted loan stays open until cleared.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusActive || s == StatusDefaulted
}

// Repayable loans accept repayments; a defaulted loan can still be cleared.
func (s Status) Repayable() bool {
	return s == StatusActive || s == StatusDefaulted
}

type Loan struct {
	ID                uuid.UUID       `db:"id"`
	UserID            uuid.UUID       `db:"user_id"`
	WalletID          uuid.UUID       `db:"wallet_id"`
	Principal         decimal.Decimal `db:"principal"`
	Interest          decimal.Decimal `db:"interest"`
	AmountOutstanding decimal.Decimal `db:"amount_outstanding"`
	TermDays          int             `db:"term_days"`
	Purpose           string          `db:"purpose"`
	Status            Status          `db:"status"`
	DueDate           sql.NullTime    `db:"due_date"`
	DisbursedAt       sql.NullTime    `db:"disbursed_at"`
	CompletedAt       sql.NullTime    `db:"completed_at"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

// Activate marks a disbursed loan and starts its term.
func (l *Loan) Activate(now time.Time) {
	l.Status = StatusActive
	l.DisbursedAt = sql.NullTime{Time: now, Valid: true}
	l.DueDate = sql.NullTime{Time: now.AddDate(0, 0, l.TermDays), Valid: true}
}

// Repay reduces what is owed and completes the loan at zero.
func (l *Loan) Repay(amount decimal.Decimal, now time.Time) {
	l.AmountOutstanding = l.AmountOutstanding.Sub(amount)
	if l.AmountOutstanding.Sign() <= 0 {
		l.AmountOutstanding = decimal.Zero
		l.Status = StatusCompleted
		l.CompletedAt = sql.NullTime{Time: now, Valid: true}
	}
}
