package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WalletResponse struct {
	ID                  uuid.UUID       `json:"id"`
	Balance             decimal.Decimal `json:"balance"`
	AvailableBalance    decimal.Decimal `json:"available_balance"`
	LedgerBalance       decimal.Decimal `json:"ledger_balance"`
	USDTBalance         decimal.Decimal `json:"usdt_balance"`
	USDCBalance         decimal.Decimal `json:"usdc_balance"`
	DailyLimit          decimal.Decimal `json:"daily_limit"`
	MonthlyLimit        decimal.Decimal `json:"monthly_limit"`
	DailyFundingSpent   decimal.Decimal `json:"daily_funding_spent"`
	MonthlyFundingSpent decimal.Decimal `json:"monthly_funding_spent"`
	IsFrozen            bool            `json:"is_frozen"`
	FrozenReason        string          `json:"frozen_reason,omitempty"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func WalletResponseFromEntity(w *Wallet) *WalletResponse {
	if w == nil {
		return nil
	}
	return &WalletResponse{
		ID:                  w.ID,
		Balance:             w.Balance,
		AvailableBalance:    w.AvailableBalance,
		LedgerBalance:       w.LedgerBalance,
		USDTBalance:         w.USDTBalance,
		USDCBalance:         w.USDCBalance,
		DailyLimit:          w.DailyLimit,
		MonthlyLimit:        w.MonthlyLimit,
		DailyFundingSpent:   w.DailyFundingSpent,
		MonthlyFundingSpent: w.MonthlyFundingSpent,
		IsFrozen:            w.IsFrozen,
		FrozenReason:        w.FrozenReason.String,
		UpdatedAt:           w.UpdatedAt,
	}
}

type FreezeRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=255"`
}

type LimitsRequest struct {
	DailyLimit   decimal.Decimal `json:"daily_limit"`
	MonthlyLimit decimal.Decimal `json:"monthly_limit"`
}
