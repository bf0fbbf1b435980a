package p2p

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/domain/wallet"
)

// SendRequest for POST /p2p/send
type SendRequest struct {
	ReceiverIdentifier string          `json:"receiver_identifier" validate:"required,max=255"`
	Amount             decimal.Decimal `json:"amount" validate:"money"`
	Note               string          `json:"note" validate:"max=140"`
	Reference          string          `json:"reference" validate:"omitempty,max=64"`
}

// SendInput is SendRequest after the handler resolved the caller.
type SendInput struct {
	SenderID           uuid.UUID
	ReceiverIdentifier string
	Amount             decimal.Decimal
	Note               string
	ClientReference    string
}

type SendResult struct {
	Transfer         *Transfer
	Wallet           *wallet.Wallet
	AlreadyProcessed bool
}

type TransferResponse struct {
	ID               uuid.UUID       `json:"id"`
	Reference        string          `json:"reference"`
	ClientReference  string          `json:"client_reference,omitempty"`
	Direction        string          `json:"direction"`
	SenderWalletID   uuid.UUID       `json:"sender_wallet_id"`
	ReceiverWalletID uuid.UUID       `json:"receiver_wallet_id"`
	Amount           decimal.Decimal `json:"amount"`
	Fee              decimal.Decimal `json:"fee"`
	Note             string          `json:"note,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

type SendResponse struct {
	Transfer         *TransferResponse      `json:"transfer"`
	Wallet           *wallet.WalletResponse `json:"wallet,omitempty"`
	AlreadyProcessed bool                   `json:"already_processed"`
}

func TransferResponseFromEntity(t *Transfer, viewer uuid.UUID) *TransferResponse {
	return &TransferResponse{
		ID:               t.ID,
		Reference:        t.Reference,
		ClientReference:  t.ClientReference.String,
		Direction:        t.Direction(viewer),
		SenderWalletID:   t.SenderWalletID,
		ReceiverWalletID: t.ReceiverWalletID,
		Amount:           t.Amount,
		Fee:              t.Fee,
		Note:             t.Note,
		CreatedAt:        t.CreatedAt,
	}
}
