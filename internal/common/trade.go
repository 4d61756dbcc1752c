package common

import "fmt"

// TradeLeg is one side of an execution.
type TradeLeg struct {
	OrderID  OrderID
	Price    Price
	Quantity Quantity
}

// Trade accounts for the two orders which matched. Both legs always carry the
// resting order's price and the same quantity.
type Trade struct {
	Buy  TradeLeg
	Sell TradeLeg
}

// Trades are returned oldest first.
type Trades []Trade

// Quantity is the matched amount of the trade.
func (t Trade) Quantity() Quantity {
	return t.Buy.Quantity
}

// Price is the execution price of the trade.
func (t Trade) Price() Price {
	return t.Buy.Price
}

// Leg returns the leg belonging to side.
func (t Trade) Leg(side Side) TradeLeg {
	if side == Buy {
		return t.Buy
	}
	return t.Sell
}

func (t Trade) String() string {
	return fmt.Sprintf(
		`Buy:   [id: %d price: %d qty: %d]
Sell:  [id: %d price: %d qty: %d]`,
		t.Buy.OrderID, t.Buy.Price, t.Buy.Quantity,
		t.Sell.OrderID, t.Sell.Price, t.Sell.Quantity,
	)
}

// Executed sums the matched quantity over all trades.
func (ts Trades) Executed() Quantity {
	var total Quantity
	for _, t := range ts {
		total += t.Quantity()
	}
	return total
}
