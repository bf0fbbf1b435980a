package payment

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusRefunded   Status = "REFUNDED"
	StatusCancelled  Status = "CANCELLED"
)

// Terminal statuses are final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRefunded, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusRefunded, StatusCancelled:
		return true
	}
	return false
}

// COMPLETED -> REFUNDED exists only for reversible payouts; Guard enforces the type.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusFailed, StatusRefunded, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusRefunded},
	StatusCompleted:  {StatusRefunded},
}

// CanTransition reports whether from -> to is an edge of the payment state machine.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Type string

const (
	TypeFunding          Type = "funding"
	TypeWithdrawal       Type = "withdrawal"
	TypeP2P              Type = "p2p"
	TypeLoanRepayment    Type = "loan_repayment"
	TypeLoanDisbursement Type = "loan_disbursement"
	TypeRRR              Type = "rrr"
	TypeRemittance       Type = "remittance"
	TypeCryptoDeposit    Type = "crypto_deposit"
	TypeCryptoWithdrawal Type = "crypto_withdrawal"
)

// Reversible types are NGN payouts a provider can claw back after reporting success.
func (t Type) Reversible() bool {
	switch t {
	case TypeWithdrawal, TypeRRR, TypeRemittance:
		return true
	}
	return false
}

// Reserves reports whether payments of this type hold funds while in flight.
func (t Type) Reserves() bool {
	switch t {
	case TypeWithdrawal, TypeRRR, TypeRemittance, TypeCryptoWithdrawal:
		return true
	}
	return false
}

func (t Type) Valid() bool {
	return t.ReferencePrefix() != "PAY"
}

// ReferencePrefix is the leading tag of generated references.
func (t Type) ReferencePrefix() string {
	switch t {
	case TypeFunding:
		return "FND"
	case TypeWithdrawal:
		return "WDR"
	case TypeP2P:
		return "P2P"
	case TypeLoanRepayment:
		return "LRP"
	case TypeLoanDisbursement:
		return "LDS"
	case TypeRRR:
		return "RRR"
	case TypeRemittance:
		return "RMT"
	case TypeCryptoDeposit:
		return "CDP"
	case TypeCryptoWithdrawal:
		return "CWD"
	}
	return "PAY"
}

type Method string

const (
	MethodWallet       Method = "wallet"
	MethodCard         Method = "card"
	MethodBankTransfer Method = "bank_transfer"
	MethodCrypto       Method = "crypto"
	MethodRRR          Method = "rrr"
)

type Payment struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	Reference         string          `db:"reference" json:"reference"`
	UserID            uuid.UUID       `db:"user_id" json:"user_id"`
	WalletID          uuid.UUID       `db:"wallet_id" json:"wallet_id"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	Fee               decimal.Decimal `db:"fee" json:"fee"`
	Asset             money.Asset     `db:"asset" json:"asset"`
	Type              Type            `db:"type" json:"type"`
	Method            Method          `db:"method" json:"method"`
	Status            Status          `db:"status" json:"status"`
	Provider          sql.NullString  `db:"provider" json:"-"`
	ExternalReference sql.NullString  `db:"external_reference" json:"-"`
	AuthorizationURL  sql.NullString  `db:"authorization_url" json:"-"`
	Details           Details         `db:"details" json:"-"`
	GatewayResponse   JSONRawMessage  `db:"gateway_response" json:"-"`
	FailureReason     sql.NullString  `db:"failure_reason" json:"-"`
	CompletedAt       sql.NullTime    `db:"completed_at" json:"-"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// New builds a PENDING payment for op with a fresh reference.
func New(userID, walletID uuid.UUID, amount, fee decimal.Decimal, asset money.Asset, method Method, op Operation) *Payment {
	return &Payment{
		ID:        uuid.New(),
		Reference: NewReference(op.Kind()),
		UserID:    userID,
		WalletID:  walletID,
		Amount:    amount,
		Fee:       fee,
		Asset:     asset,
		Type:      op.Kind(),
		Method:    method,
		Status:    StatusPending,
		Details:   Details{Operation: op},
	}
}

// NewReference yields e.g. FND-1718035200-8f3a2c1b.
func NewReference(t Type) string {
	return fmt.Sprintf("%s-%d-%s", t.ReferencePrefix(), time.Now().Unix(), uuid.NewString()[:8])
}

// Total is what the wallet pays: amount plus fee.
func (p *Payment) Total() decimal.Decimal {
	return p.Amount.Add(p.Fee)
}

func (p *Payment) Operation() Operation {
	return p.Details.Operation
}
