package wallet

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

type Kind string

const (
	KindUser     Kind = "user"
	KindPlatform Kind = "platform"
)

// PlatformWalletID receives fees and loan repayments. Seeded by migration.
var PlatformWalletID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

type Wallet struct {
	ID                  uuid.UUID       `db:"id" json:"id"`
	UserID              uuid.NullUUID   `db:"user_id" json:"-"`
	Kind                Kind            `db:"kind" json:"kind"`
	Balance             decimal.Decimal `db:"balance" json:"balance"`
	AvailableBalance    decimal.Decimal `db:"available_balance" json:"available_balance"`
	LedgerBalance       decimal.Decimal `db:"ledger_balance" json:"ledger_balance"`
	USDTBalance         decimal.Decimal `db:"usdt_balance" json:"usdt_balance"`
	USDCBalance         decimal.Decimal `db:"usdc_balance" json:"usdc_balance"`
	DailyLimit          decimal.Decimal `db:"daily_limit" json:"daily_limit"`
	MonthlyLimit        decimal.Decimal `db:"monthly_limit" json:"monthly_limit"`
	DailyFundingSpent   decimal.Decimal `db:"daily_funding_spent" json:"daily_funding_spent"`
	MonthlyFundingSpent decimal.Decimal `db:"monthly_funding_spent" json:"monthly_funding_spent"`
	DailyResetAt        time.Time       `db:"daily_reset_at" json:"-"`
	MonthlyResetAt      time.Time       `db:"monthly_reset_at" json:"-"`
	IsFrozen            bool            `db:"is_frozen" json:"is_frozen"`
	FrozenReason        sql.NullString  `db:"frozen_reason" json:"-"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// Crypto returns the token sub-balance for asset.
func (w *Wallet) Crypto(asset money.Asset) decimal.Decimal {
	switch asset {
	case money.USDT:
		return w.USDTBalance
	case money.USDC:
		return w.USDCBalance
	}
	return decimal.Zero
}

// Spendable is what a debit of asset may draw on.
func (w *Wallet) Spendable(asset money.Asset) decimal.Decimal {
	if asset.IsCrypto() {
		return w.Crypto(asset)
	}
	return w.AvailableBalance
}

// Funds is an amount tagged with its asset.
type Funds struct {
	Asset  money.Asset
	Amount decimal.Decimal
}

func NGN(amount decimal.Decimal) Funds {
	return Funds{Asset: money.NGN, Amount: amount}
}

// Delta is a signed change to a wallet's balance fields. Crypto applies to
// the sub-balance named by Asset.
type Delta struct {
	Balance   decimal.Decimal
	Available decimal.Decimal
	Ledger    decimal.Decimal
	Asset     money.Asset
	Crypto    decimal.Decimal
}

// apply returns the wallet after d, or an error if any field would go negative.
func (d Delta) apply(w Wallet) (Wallet, error) {
	w.Balance = w.Balance.Add(d.Balance)
	w.AvailableBalance = w.AvailableBalance.Add(d.Available)
	w.LedgerBalance = w.LedgerBalance.Add(d.Ledger)
	switch d.Asset {
	case money.USDT:
		w.USDTBalance = w.USDTBalance.Add(d.Crypto)
	case money.USDC:
		w.USDCBalance = w.USDCBalance.Add(d.Crypto)
	}

	if w.AvailableBalance.IsNegative() || w.USDTBalance.IsNegative() || w.USDCBalance.IsNegative() {
		return w, ErrInsufficientFunds
	}
	if w.Balance.IsNegative() || w.LedgerBalance.IsNegative() {
		return w, ErrNegativeBalance
	}
	return w, nil
}

// Limits are the per-wallet funding caps.
type Limits struct {
	Daily   decimal.Decimal `json:"daily_limit"`
	Monthly decimal.Decimal `json:"monthly_limit"`
}

type AuditType string

const (
	AuditCredit      AuditType = "CREDIT"
	AuditTransferIn  AuditType = "TRANSFER_IN"
	AuditTransferOut AuditType = "TRANSFER_OUT"
	AuditFee         AuditType = "FEE"
	AuditFeeIn       AuditType = "FEE_IN"
	AuditReserve     AuditType = "RESERVE"
	AuditFinalize    AuditType = "FINALIZE"
	AuditRelease     AuditType = "RELEASE"
	AuditRefund      AuditType = "REFUND"
	AuditFreeze      AuditType = "FREEZE"
	AuditUnfreeze    AuditType = "UNFREEZE"
)

// AuditEntry is one append-only row of a wallet's history.
type AuditEntry struct {
	Seq             int64           `db:"seq" json:"-"`
	ID              uuid.UUID       `db:"id" json:"id"`
	WalletID        uuid.UUID       `db:"wallet_id" json:"wallet_id"`
	Type            AuditType       `db:"type" json:"type"`
	Asset           money.Asset     `db:"asset" json:"asset"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	PreviousBalance decimal.Decimal `db:"previous_balance" json:"previous_balance"`
	NewBalance      decimal.Decimal `db:"new_balance" json:"new_balance"`
	Reference       string          `db:"reference" json:"reference"`
	Reason          string          `db:"reason" json:"reason"`
	PrevHash        string          `db:"prev_hash" json:"-"`
	Hash            string          `db:"hash" json:"hash"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}
