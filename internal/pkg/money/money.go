// Package money parses and converts amounts. Fiat is kept at kobo precision,
// stablecoin balances at the token's 6 decimals.
package money

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	FiatPlaces  int32 = 2
	TokenPlaces int32 = 6
)

type Asset string

const (
	NGN  Asset = "NGN"
	USDT Asset = "USDT"
	USDC Asset = "USDC"
)

// IsCrypto reports whether the asset lives in a wallet sub-balance.
func (a Asset) IsCrypto() bool {
	return a == USDT || a == USDC
}

func (a Asset) Places() int32 {
	if a.IsCrypto() {
		return TokenPlaces
	}
	return FiatPlaces
}

// ParseAsset accepts the lowercase forms clients send ("usdt", "usdc").
func ParseAsset(s string) (Asset, error) {
	switch Asset(strings.ToUpper(strings.TrimSpace(s))) {
	case NGN:
		return NGN, nil
	case USDT:
		return USDT, nil
	case USDC:
		return USDC, nil
	}
	return "", fmt.Errorf("unsupported asset %q", s)
}

// HasPlaces reports whether d carries no more than places fractional digits.
func HasPlaces(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// Parse reads a decimal amount from its string form.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

// CheckAmount validates a positive amount with the asset's precision.
func CheckAmount(d decimal.Decimal, asset Asset) error {
	if !d.IsPositive() {
		return fmt.Errorf("amount must be greater than zero")
	}
	if !HasPlaces(d, asset.Places()) {
		return fmt.Errorf("amount must have at most %d decimal places", asset.Places())
	}
	return nil
}

// ToMinor converts naira to kobo. d must already be at fiat precision.
func ToMinor(d decimal.Decimal) int64 {
	return d.Shift(FiatPlaces).IntPart()
}

func FromMinor(kobo int64) decimal.Decimal {
	return decimal.New(kobo, -FiatPlaces)
}

// ToBaseUnits converts a token amount into the integer units used on chain.
func ToBaseUnits(d decimal.Decimal, decimals int32) *big.Int {
	return d.Shift(decimals).BigInt()
}

func FromBaseUnits(v *big.Int, decimals int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}

// Percent returns amount * bps / 10000 rounded to the asset's precision.
func Percent(amount decimal.Decimal, bps int64, asset Asset) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(bps)).Div(decimal.NewFromInt(10000)).Round(asset.Places())
}
