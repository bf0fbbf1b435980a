package billpay

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/domain/payment"
	"github.com/campuspay/campuspay-api/internal/domain/wallet"
)

// PayRequest for POST /rrr
type PayRequest struct {
	ServiceTypeID string          `json:"service_type_id" validate:"omitempty,max=64"`
	Amount        decimal.Decimal `json:"amount" validate:"money"`
	Description   string          `json:"description" validate:"required,max=255"`
}

type PayInput struct {
	UserID        uuid.UUID
	ServiceTypeID string
	Amount        decimal.Decimal
	Description   string
}

type Result struct {
	Payment          *payment.Payment
	Wallet           *wallet.Wallet
	AlreadyProcessed bool
}

type PayResponse struct {
	RRR              string                   `json:"rrr,omitempty"`
	Payment          *payment.PaymentResponse `json:"payment"`
	Wallet           *wallet.WalletResponse   `json:"wallet,omitempty"`
	AlreadyProcessed bool                     `json:"already_processed"`
}

func NewPayResponse(res *Result) *PayResponse {
	out := &PayResponse{
		Payment:          payment.ResponseFromEntity(res.Payment),
		AlreadyProcessed: res.AlreadyProcessed,
	}
	if op, ok := res.Payment.Operation().(payment.RRR); ok {
		out.RRR = op.RRR
	}
	if res.Wallet != nil {
		out.Wallet = wallet.WalletResponseFromEntity(res.Wallet)
	}
	return out
}
