package common

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTickSize = errors.New("tick size must be positive")
	ErrOffTick         = errors.New("price is not a multiple of the tick size")
	ErrNegativePrice   = errors.New("price must not be negative")
)

// ToTicks converts a human readable price into an integer number of ticks.
func ToTicks(price, tickSize decimal.Decimal) (Price, error) {
	if !tickSize.IsPositive() {
		return 0, ErrInvalidTickSize
	}
	if price.IsNegative() {
		return 0, fmt.Errorf("%s: %w", price, ErrNegativePrice)
	}

	ticks := price.Div(tickSize)
	if !ticks.Equal(ticks.Truncate(0)) {
		return 0, fmt.Errorf("%s with tick %s: %w", price, tickSize, ErrOffTick)
	}
	return Price(ticks.IntPart()), nil
}

// FromTicks converts a tick count back to a human readable price.
func FromTicks(price Price, tickSize decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(price)).Mul(tickSize)
}
