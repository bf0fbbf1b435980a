package remittance

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/domain/payment"
	"github.com/campuspay/campuspay-api/internal/domain/wallet"
)

type Recipient struct {
	Name          string `json:"name" validate:"required,max=120"`
	AccountNumber string `json:"account_number" validate:"required,nuban"`
	BankCode      string `json:"bank_code" validate:"required,bank_code"`
	Country       string `json:"country" validate:"omitempty,len=2"`
}

// SendRequest for POST /remittance/send
type SendRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"money"`
	Currency  string          `json:"currency" validate:"required,len=3"`
	Recipient Recipient       `json:"recipient" validate:"required"`
}

type SendInput struct {
	UserID    uuid.UUID
	Amount    decimal.Decimal
	Currency  string
	Recipient Recipient
}

type Result struct {
	Payment *payment.Payment
	Wallet  *wallet.Wallet
	Quote   *Quote
}

type SendResponse struct {
	Payment *payment.PaymentResponse `json:"payment"`
	Wallet  *wallet.WalletResponse   `json:"wallet,omitempty"`
	Quote   *Quote                   `json:"quote"`
}

type QuoteResponse struct {
	*Quote
	Currencies []string `json:"currencies"`
}

func NewSendResponse(res *Result) *SendResponse {
	out := &SendResponse{Payment: payment.ResponseFromEntity(res.Payment), Quote: res.Quote}
	if res.Wallet != nil {
		out.Wallet = wallet.WalletResponseFromEntity(res.Wallet)
	}
	return out
}
