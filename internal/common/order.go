package common

import "fmt"

// OrderID is a kernel assigned order identifier. Identifiers are never reused
// within one identifier space.
type OrderID uint64

// Price is an integer number of ticks. Conversion to and from human prices
// happens at the edges, see ToTicks and FromTicks.
type Price uint64

// Quantity is an integer number of units.
type Quantity uint64

type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return fmt.Sprintf("Side(%d)", uint8(s))
	}
}

// Opposite returns the side an order of this side matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Valid reports whether s is one of the known sides.
func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

type OrderType uint16

const (
	// Limit orders are an order to buy or sell at a specified price or
	// better. Limit orders may rest on the order book until filled.
	LimitOrder OrderType = iota
	// Market orders are instructions to buy or sell immediately against
	// whatever is resting. They never rest and any unfilled remainder is
	// dropped.
	MarketOrder
)

func (t OrderType) String() string {
	switch t {
	case LimitOrder:
		return "LIMIT"
	case MarketOrder:
		return "MARKET"
	default:
		return fmt.Sprintf("OrderType(%d)", uint16(t))
	}
}
