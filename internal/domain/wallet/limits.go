package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// resetCounters zeroes the funding counters whose period has rolled over in
// loc. Reset is lazy: it happens on the first read after midnight or the 1st.
func resetCounters(w *Wallet, now time.Time, loc *time.Location) {
	dayStart := DayStart(now, loc)
	local := now.In(loc)
	monthStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)

	if w.DailyResetAt.Before(dayStart) {
		w.DailyFundingSpent = decimal.Zero
		w.DailyResetAt = now
	}
	if w.MonthlyResetAt.Before(monthStart) {
		w.MonthlyFundingSpent = decimal.Zero
		w.MonthlyResetAt = now
	}
}

// checkLimits treats a zero limit as unlimited.
func checkLimits(w *Wallet, amount decimal.Decimal) error {
	if w.DailyLimit.IsPositive() && w.DailyFundingSpent.Add(amount).GreaterThan(w.DailyLimit) {
		return ErrDailyLimitExceeded
	}
	if w.MonthlyLimit.IsPositive() && w.MonthlyFundingSpent.Add(amount).GreaterThan(w.MonthlyLimit) {
		return ErrMonthlyLimitExceeded
	}
	return nil
}

// DayStart is midnight of now's day in loc.
func DayStart(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
