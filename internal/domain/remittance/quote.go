// Package remittance quotes and sends money abroad. The NGN leg leaves the
// wallet through a bank payout at the corridor rate.
package remittance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/pkg/apperror"
	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

// Quote prices a remittance of Amount NGN.
type Quote struct {
	Currency     string          `json:"currency"`
	Amount       decimal.Decimal `json:"amount"`
	Rate         decimal.Decimal `json:"rate"`
	Fee          decimal.Decimal `json:"fee"`
	Total        decimal.Decimal `json:"total"`
	PayoutAmount decimal.Decimal `json:"payout_amount"`
}

// Quoter holds the configured corridor rates (units of currency per NGN).
type Quoter struct {
	rates  map[string]decimal.Decimal
	feeBps int64
}

func NewQuoter(rates map[string]decimal.Decimal, feeBps int64) *Quoter {
	normalized := make(map[string]decimal.Decimal, len(rates))
	for code, rate := range rates {
		normalized[strings.ToUpper(code)] = rate
	}
	return &Quoter{rates: normalized, feeBps: feeBps}
}

func (q *Quoter) Quote(amount decimal.Decimal, currency string) (*Quote, error) {
	if err := money.CheckAmount(amount, money.NGN); err != nil {
		return nil, apperror.Validation("amount", err.Error())
	}
	code := strings.ToUpper(strings.TrimSpace(currency))
	rate, ok := q.rates[code]
	if !ok {
		return nil, apperror.Validation("currency", fmt.Sprintf("unsupported currency %q", currency))
	}
	fee := money.Percent(amount, q.feeBps, money.NGN)
	return &Quote{
		Currency:     code,
		Amount:       amount,
		Rate:         rate,
		Fee:          fee,
		Total:        amount.Add(fee),
		PayoutAmount: amount.Mul(rate).RoundDown(2),
	}, nil
}

// Currencies lists the supported corridors in order.
func (q *Quoter) Currencies() []string {
	out := make([]string, 0, len(q.rates))
	for code := range q.rates {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
