package engine

import (
	"fmt"

	. "lob/internal/common"
)

// Order is the mutable record of one resting or in-flight order. Identity,
// side, type and price are fixed at construction; only the remaining quantity
// changes, and only through Fill.
//
// An Order doubles as the node of its price level's FIFO so that the handle
// stored in the location index stays valid until this order is unlinked.
type Order struct {
	id        OrderID
	side      Side
	orderType OrderType
	price     Price
	priced    bool // price is only meaningful for limit orders
	initial   Quantity
	remaining Quantity

	// Price level links, owned by PriceLevel.
	level *PriceLevel
	prev  *Order
	next  *Order
}

// NewLimitOrder builds a limit order. Quantity must be positive.
func NewLimitOrder(id OrderID, side Side, price Price, quantity Quantity) (*Order, error) {
	o := &Order{}
	if err := o.init(id, side, LimitOrder, price, true, quantity); err != nil {
		return nil, err
	}
	return o, nil
}

// NewMarketOrder builds a market order, which carries no price.
func NewMarketOrder(id OrderID, side Side, quantity Quantity) (*Order, error) {
	o := &Order{}
	if err := o.init(id, side, MarketOrder, 0, false, quantity); err != nil {
		return nil, err
	}
	return o, nil
}

// init validates and (re)initialises o in place. It is shared by the
// constructors and by the order pool, and only fails on a zero quantity.
func (o *Order) init(id OrderID, side Side, orderType OrderType, price Price, priced bool, quantity Quantity) error {
	if quantity == 0 {
		return fmt.Errorf("order %d: %w", id, ErrInvalidQuantity)
	}
	*o = Order{
		id:        id,
		side:      side,
		orderType: orderType,
		price:     price,
		priced:    priced,
		initial:   quantity,
		remaining: quantity,
	}
	return nil
}

func (o *Order) ID() OrderID     { return o.id }
func (o *Order) Side() Side      { return o.side }
func (o *Order) Type() OrderType { return o.orderType }

// Price returns the limit price, and false for market orders.
func (o *Order) Price() (Price, bool) { return o.price, o.priced }

func (o *Order) Initial() Quantity   { return o.initial }
func (o *Order) Remaining() Quantity { return o.remaining }
func (o *Order) Filled() Quantity    { return o.initial - o.remaining }

// Fill reduces the remaining quantity. Filling more than remains is rejected
// without touching the order.
func (o *Order) Fill(quantity Quantity) error {
	if quantity > o.remaining {
		return fmt.Errorf("order %d: fill %d exceeds remaining %d: %w",
			o.id, quantity, o.remaining, ErrOverfill)
	}
	o.remaining -= quantity
	return nil
}

func (o *Order) IsFilled() bool { return o.remaining == 0 }

// OrderView is a read-only copy of an order handed out to callers.
type OrderView struct {
	ID        OrderID
	Side      Side
	Type      OrderType
	Price     Price
	Initial   Quantity
	Remaining Quantity
}

func (o *Order) view() OrderView {
	return OrderView{
		ID:        o.id,
		Side:      o.side,
		Type:      o.orderType,
		Price:     o.price,
		Initial:   o.initial,
		Remaining: o.remaining,
	}
}

func (v OrderView) Filled() Quantity { return v.Initial - v.Remaining }
