package crypto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/domain/payment"
	"github.com/campuspay/campuspay-api/internal/domain/wallet"
	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

// DepositRequest for POST /crypto/deposit
type DepositRequest struct {
	CryptoType string          `json:"crypto_type" validate:"required,crypto_type"`
	Amount     decimal.Decimal `json:"amount" validate:"crypto_amount"`
	TxHash     string          `json:"tx_hash" validate:"required,tx_hash"`
}

// WithdrawRequest for POST /crypto/withdraw
type WithdrawRequest struct {
	CryptoType string          `json:"crypto_type" validate:"required,crypto_type"`
	Amount     decimal.Decimal `json:"amount" validate:"crypto_amount"`
	ToAddress  string          `json:"to_address" validate:"required,evm_address"`
}

type DepositInput struct {
	UserID uuid.UUID
	Asset  money.Asset
	Amount decimal.Decimal
	TxHash string
}

type WithdrawInput struct {
	UserID    uuid.UUID
	Asset     money.Asset
	Amount    decimal.Decimal
	ToAddress string
}

// Result is what the orchestrator returns for both directions.
type Result struct {
	Transaction      *Transaction
	Payment          *payment.Payment
	Wallet           *wallet.Wallet
	AlreadyProcessed bool
}

type TransactionResponse struct {
	ID            uuid.UUID       `json:"id"`
	PaymentID     uuid.UUID       `json:"payment_id"`
	Direction     Direction       `json:"direction"`
	Asset         money.Asset     `json:"asset"`
	Amount        decimal.Decimal `json:"amount"`
	TxHash        string          `json:"tx_hash,omitempty"`
	ToAddress     string          `json:"to_address,omitempty"`
	Status        Status          `json:"status"`
	Confirmations int64           `json:"confirmations"`
	BlockNumber   *int64          `json:"block_number,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type ResultResponse struct {
	Transaction      *TransactionResponse     `json:"transaction"`
	Payment          *payment.PaymentResponse `json:"payment,omitempty"`
	Wallet           *wallet.WalletResponse   `json:"wallet,omitempty"`
	AlreadyProcessed bool                     `json:"already_processed"`
}

type DepositAddressResponse struct {
	Address string        `json:"address"`
	Assets  []money.Asset `json:"assets"`
}

func TransactionResponseFromEntity(t *Transaction) *TransactionResponse {
	resp := &TransactionResponse{
		ID:            t.ID,
		PaymentID:     t.PaymentID,
		Direction:     t.Direction,
		Asset:         t.Asset,
		Amount:        t.Amount,
		TxHash:        t.TxHash.String,
		ToAddress:     t.ToAddress.String,
		Status:        t.Status,
		Confirmations: t.Confirmations,
		CreatedAt:     t.CreatedAt,
	}
	if t.BlockNumber.Valid {
		resp.BlockNumber = &t.BlockNumber.Int64
	}
	return resp
}

func ResultResponseFromResult(res *Result) *ResultResponse {
	out := &ResultResponse{AlreadyProcessed: res.AlreadyProcessed}
	if res.Transaction != nil {
		out.Transaction = TransactionResponseFromEntity(res.Transaction)
	}
	if res.Payment != nil {
		out.Payment = payment.ResponseFromEntity(res.Payment)
	}
	if res.Wallet != nil {
		out.Wallet = wallet.WalletResponseFromEntity(res.Wallet)
	}
	return out
}
