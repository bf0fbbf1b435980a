package settlement

import (
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/domain/payment"
	"github.com/campuspay/campuspay-api/internal/domain/wallet"
)

// FundRequest for POST /wallet/fund
type FundRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"money"`
	CallbackURL string          `json:"callback_url" validate:"omitempty,url,max=500"`
}

// BankAccount names a Nigerian payout destination.
type BankAccount struct {
	AccountNumber string `json:"account_number" validate:"required,nuban"`
	BankCode      string `json:"bank_code" validate:"required,bank_code"`
}

// WithdrawRequest for POST /wallet/withdraw
type WithdrawRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"money"`
	BankAccount BankAccount     `json:"bank_account" validate:"required"`
}

// ReconcileRequest for POST /admin/reconcile. Zero values use the configured defaults.
type ReconcileRequest struct {
	MinAgeSeconds int `json:"min_age_seconds" validate:"omitempty,min=0"`
	Batch         int `json:"batch" validate:"omitempty,min=1,max=1000"`
}

type FundResponse struct {
	Payment          *payment.PaymentResponse `json:"payment"`
	AuthorizationURL string                   `json:"authorization_url"`
}

type PaymentResultResponse struct {
	Payment          *payment.PaymentResponse `json:"payment"`
	Wallet           *wallet.WalletResponse   `json:"wallet,omitempty"`
	AlreadyProcessed bool                     `json:"already_processed"`
}

func NewPaymentResultResponse(res *Result) *PaymentResultResponse {
	out := &PaymentResultResponse{
		Payment:          payment.ResponseFromEntity(res.Payment),
		AlreadyProcessed: res.AlreadyProcessed,
	}
	if res.Wallet != nil {
		out.Wallet = wallet.WalletResponseFromEntity(res.Wallet)
	}
	return out
}
