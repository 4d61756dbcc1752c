package engine

import (
	"sync"

	. "lob/internal/common"
)

// OrderPool recycles order records between fills and cancels. Records are
// reinitialised on every Get, so nothing leaks from a previous order.
type OrderPool struct {
	p sync.Pool
}

func NewOrderPool() *OrderPool {
	return &OrderPool{
		p: sync.Pool{
			New: func() any { return new(Order) },
		},
	}
}

// Limit takes a record from the pool and initialises it as a limit order.
func (p *OrderPool) Limit(id OrderID, side Side, price Price, quantity Quantity) (*Order, error) {
	o := p.p.Get().(*Order)
	if err := o.init(id, side, LimitOrder, price, true, quantity); err != nil {
		p.p.Put(o)
		return nil, err
	}
	return o, nil
}

// Put returns an order that has left the book. The caller must hold no other
// reference to it.
func (p *OrderPool) Put(o *Order) {
	*o = Order{}
	p.p.Put(o)
}
