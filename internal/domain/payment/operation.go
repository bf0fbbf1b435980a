package payment

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

// Operation is the per-kind payload of a payment. The set of implementations
// is closed; isOperation keeps it that way.
type Operation interface {
	Kind() Type
	isOperation()
}

type Funding struct {
	CallbackURL string `json:"callback_url,omitempty"`
}

type BankAccount struct {
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	AccountName   string `json:"account_name,omitempty"`
}

type Withdrawal struct {
	BankAccount   BankAccount `json:"bank_account"`
	RecipientCode string      `json:"recipient_code,omitempty"`
}

type P2P struct {
	ReceiverWalletID uuid.UUID `json:"receiver_wallet_id"`
	TransferID       uuid.UUID `json:"transfer_id"`
}

type LoanRepayment struct {
	LoanID uuid.UUID `json:"loan_id"`
}

type LoanDisbursement struct {
	LoanID uuid.UUID `json:"loan_id"`
}

type RRR struct {
	ServiceTypeID string `json:"service_type_id"`
	RRR           string `json:"rrr,omitempty"`
	Description   string `json:"description,omitempty"`
}

type RemittanceRecipient struct {
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	Country       string `json:"country,omitempty"`
}

type Remittance struct {
	Recipient     RemittanceRecipient `json:"recipient"`
	Currency      string              `json:"currency"`
	Rate          decimal.Decimal     `json:"rate"`
	PayoutAmount  decimal.Decimal     `json:"payout_amount"`
	RecipientCode string              `json:"recipient_code,omitempty"`
}

type CryptoDeposit struct {
	Asset  money.Asset `json:"asset"`
	TxHash string      `json:"tx_hash"`
}

type CryptoWithdrawal struct {
	Asset     money.Asset `json:"asset"`
	ToAddress string      `json:"to_address"`
	TxHash    string      `json:"tx_hash,omitempty"`
}

func (Funding) Kind() Type          { return TypeFunding }
func (Withdrawal) Kind() Type       { return TypeWithdrawal }
func (P2P) Kind() Type              { return TypeP2P }
func (LoanRepayment) Kind() Type    { return TypeLoanRepayment }
func (LoanDisbursement) Kind() Type { return TypeLoanDisbursement }
func (RRR) Kind() Type              { return TypeRRR }
func (Remittance) Kind() Type       { return TypeRemittance }
func (CryptoDeposit) Kind() Type    { return TypeCryptoDeposit }
func (CryptoWithdrawal) Kind() Type { return TypeCryptoWithdrawal }

func (Funding) isOperation()          {}
func (Withdrawal) isOperation()       {}
func (P2P) isOperation()              {}
func (LoanRepayment) isOperation()    {}
func (LoanDisbursement) isOperation() {}
func (RRR) isOperation()              {}
func (Remittance) isOperation()       {}
func (CryptoDeposit) isOperation()    {}
func (CryptoWithdrawal) isOperation() {}

// Details stores an Operation in the details JSONB column as {"kind", "data"}.
type Details struct {
	Operation Operation
}

type detailsEnvelope struct {
	Kind Type            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func (d Details) Value() (driver.Value, error) {
	if d.Operation == nil {
		return "{}", nil
	}
	data, err := json.Marshal(d.Operation)
	if err != nil {
		return nil, fmt.Errorf("marshal %s details: %w", d.Operation.Kind(), err)
	}
	env, err := json.Marshal(detailsEnvelope{Kind: d.Operation.Kind(), Data: data})
	if err != nil {
		return nil, err
	}
	// lib/pq sends []byte as bytea; jsonb needs text.
	return string(env), nil
}

func (d *Details) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		d.Operation = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported details type: %T", src)
	}
	op, err := DecodeOperation(raw)
	if err != nil {
		return err
	}
	d.Operation = op
	return nil
}

var decoders = map[Type]func(json.RawMessage) (Operation, error){
	TypeFunding:          decode[Funding],
	TypeWithdrawal:       decode[Withdrawal],
	TypeP2P:              decode[P2P],
	TypeLoanRepayment:    decode[LoanRepayment],
	TypeLoanDisbursement: decode[LoanDisbursement],
	TypeRRR:              decode[RRR],
	TypeRemittance:       decode[Remittance],
	TypeCryptoDeposit:    decode[CryptoDeposit],
	TypeCryptoWithdrawal: decode[CryptoWithdrawal],
}

func decode[T Operation](data json.RawMessage) (Operation, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeOperation reverses Details.Value. An empty object decodes to nil.
func DecodeOperation(raw []byte) (Operation, error) {
	var env detailsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	if env.Kind == "" {
		return nil, nil
	}
	dec, ok := decoders[env.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown payment kind %q", env.Kind)
	}
	op, err := dec(env.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s details: %w", env.Kind, err)
	}
	return op, nil
}
