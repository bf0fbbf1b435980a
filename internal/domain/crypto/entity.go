package crypto

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

type Direction string

const (
	DirectionDeposit    Direction = "deposit"
	DirectionWithdrawal Direction = "withdrawal"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirming Status = "CONFIRMING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusFailed     Status = "FAILED"
)

func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Transaction is one on-chain token transfer tied to a payment.
type Transaction struct {
	ID            uuid.UUID       `db:"id"`
	PaymentID     uuid.UUID       `db:"payment_id"`
	UserID        uuid.UUID       `db:"user_id"`
	Direction     Direction       `db:"direction"`
	Asset         money.Asset     `db:"asset"`
	Amount        decimal.Decimal `db:"amount"`
	TxHash        sql.NullString  `db:"tx_hash"`
	ToAddress     sql.NullString  `db:"to_address"`
	Status        Status          `db:"status"`
	Confirmations int64           `db:"confirmations"`
	BlockNumber   sql.NullInt64   `db:"block_number"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// Progress is a chain observation applied to a transaction.
type Progress struct {
	Status        Status
	Confirmations uint64
	BlockNumber   uint64
}
