package main

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/domain/wallet"
)

type problem struct {
	WalletID string
	Detail   string
}

// inspect reports balance and audit chain violations for one wallet. reserved
// is what open withdrawals, RRR and remittance payments hold in NGN.
func inspect(w *wallet.Wallet, chain []wallet.AuditEntry, reserved decimal.Decimal) []problem {
	var out []problem
	add := func(format string, args ...any) {
		out = append(out, problem{WalletID: w.ID.String(), Detail: fmt.Sprintf(format, args...)})
	}

	if w.Balance.IsNegative() {
		add("negative balance %s", w.Balance)
	}
	if w.AvailableBalance.IsNegative() {
		add("negative available balance %s", w.AvailableBalance)
	}
	if w.AvailableBalance.GreaterThan(w.Balance) {
		add("available %s exceeds balance %s", w.AvailableBalance, w.Balance)
	}
	if !w.Balance.Equal(w.LedgerBalance) {
		add("balance %s differs from ledger balance %s", w.Balance, w.LedgerBalance)
	}
	if held := w.Balance.Sub(w.AvailableBalance); !held.Equal(reserved) {
		add("held %s does not match in-flight reservations %s", held, reserved)
	}
	if w.USDTBalance.IsNegative() || w.USDCBalance.IsNegative() {
		add("negative token balance usdt=%s usdc=%s", w.USDTBalance, w.USDCBalance)
	}

	if brk := wallet.VerifyChain(chain); brk != nil {
		add("audit chain broken at seq %d", brk.Seq)
	}
	return out
}
