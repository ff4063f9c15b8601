package reservation

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrInvalidCommissionRate = errors.New("invalid commission rate")

// Subtotal is the product price times the reserved quantity.
func Subtotal(priceCents int64, quantity int32) int64 {
	return priceCents * int64(quantity)
}

// Commission applies the buyer's commission rate (a fraction, e.g. "0.05")
// to the subtotal, rounded half-up to whole cents.
func Commission(subtotalCents int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(subtotalCents).Mul(rate).Round(0).IntPart()
}

// ParseCommissionRate validates a rate supplied by the scoring collaborator.
// Rates outside [0, 1) are rejected so a misbehaving collaborator cannot
// multiply a buyer's bill.
func ParseCommissionRate(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidCommissionRate
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, ErrInvalidCommissionRate
	}
	return rate, nil
}
