package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/config"
	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

// Bounds is the accepted amount range for one operation. A zero Max means no cap.
type Bounds struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Check validates precision for asset and then the range.
func (b Bounds) Check(amount decimal.Decimal, asset money.Asset) error {
	if err := money.CheckAmount(amount, asset); err != nil {
		return apperror.Validation("amount", err.Error())
	}
	if amount.LessThan(b.Min) {
		return apperror.Validation("amount", fmt.Sprintf("must be at least %s", b.Min))
	}
	if b.Max.IsPositive() && amount.GreaterThan(b.Max) {
		return apperror.Validation("amount", fmt.Sprintf("must be at most %s", b.Max))
	}
	return nil
}

// Policy holds every pre-mutation rule the orchestrator enforces.
type Policy struct {
	Funding    Bounds
	Withdrawal Bounds
	Transfer   Bounds
	RRR        Bounds
	Crypto     Bounds

	TransferFee   decimal.Decimal
	WithdrawalFee decimal.Decimal

	// DailyWithdrawalLimit caps NGN payouts per platform day. Zero disables it.
	DailyWithdrawalLimit decimal.Decimal

	CallbackURL      string
	RRRServiceTypeID string
}

func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		Funding:              Bounds{Min: cfg.MinFunding, Max: cfg.MaxFunding},
		Withdrawal:           Bounds{Min: cfg.MinWithdrawal, Max: cfg.MaxWithdrawal},
		Transfer:             Bounds{Min: cfg.MinTransfer, Max: cfg.MaxTransfer},
		RRR:                  Bounds{Min: cfg.MinRRR, Max: cfg.MaxRRR},
		Crypto:               Bounds{Min: cfg.MinCrypto, Max: cfg.MaxCrypto},
		TransferFee:          cfg.TransferFee,
		WithdrawalFee:        cfg.WithdrawalFee,
		DailyWithdrawalLimit: cfg.DailyWithdrawalLimit,
		CallbackURL:          cfg.PaystackCallbackURL,
		RRRServiceTypeID:     cfg.RemitaServiceTypeID,
	}
}
