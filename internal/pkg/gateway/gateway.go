// Package gateway defines the contract every external money rail implements
// and the error type the orchestrator uses to decide between FAILED and
// leaving a payment in flight.
package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailure  Outcome = "failure"
	OutcomePending  Outcome = "pending"
	OutcomeReversed Outcome = "reversed"
	// OutcomeNotFound means the provider has no record of the reference.
	OutcomeNotFound Outcome = "not_found"
)

// Final reports whether the outcome settles a payment.
func (o Outcome) Final() bool {
	return o == OutcomeSuccess || o == OutcomeFailure || o == OutcomeReversed
}

type Payer struct {
	Name  string
	Email string
	Phone string
}

type BankAccount struct {
	AccountNumber string
	BankCode      string
	AccountName   string
	RecipientCode string
}

// Request carries what any adapter may need; each adapter reads its own fields.
type Request struct {
	Reference     string
	Amount        decimal.Decimal
	Asset         money.Asset
	Payer         Payer
	CallbackURL   string
	Narration     string
	Bank          *BankAccount
	ServiceTypeID string
	ToAddress     string
	Metadata      map[string]string
}

type Initiation struct {
	ExternalReference string
	AuthorizationURL  string
	AccessCode        string
	// Status is the provider's immediate verdict, usually pending.
	Status Outcome
	Raw    json.RawMessage
}

// Lookup identifies a payment at the provider. Adapters key on whichever
// identifier they issued: our reference, an RRR code or a transaction hash.
type Lookup struct {
	Reference         string
	ExternalReference string
	Asset             money.Asset
}

type SettlementEvent struct {
	Reference         string
	ExternalReference string
	Outcome           Outcome
	Amount            decimal.Decimal
	ExternalTimestamp time.Time
	Confirmations     uint64
	BlockNumber       uint64
	Reason            string
	Raw               json.RawMessage
}

type Adapter interface {
	Name() string
	Initiate(ctx context.Context, req Request) (*Initiation, error)
	CheckStatus(ctx context.Context, lookup Lookup) (*SettlementEvent, error)
	VerifySignature(payload []byte, signature string) bool
}
