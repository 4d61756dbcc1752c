package engine

import . "lob/internal/common"

// PriceLevel is the FIFO of orders resting at one price, sorted by time added
// as they are push-back'd. Orders are linked in place, so removing one never
// moves or renumbers any other order.
type PriceLevel struct {
	price    Price
	head     *Order // oldest, matched first
	tail     *Order
	count    int
	quantity Quantity // sum of remaining quantity
}

func newPriceLevel(price Price) *PriceLevel {
	return &PriceLevel{price: price}
}

func (l *PriceLevel) Price() Price { return l.price }
func (l *PriceLevel) Len() int     { return l.count }
func (l *PriceLevel) IsEmpty() bool {
	return l.count == 0
}

// TotalQuantity is the resting liquidity at this level.
func (l *PriceLevel) TotalQuantity() Quantity { return l.quantity }

// Front returns the order with time priority, or nil.
func (l *PriceLevel) Front() *Order { return l.head }

// Append adds o at the tail of the queue.
func (l *PriceLevel) Append(o *Order) {
	o.level = l
	o.prev = l.tail
	o.next = nil
	if l.tail == nil {
		l.head = o
	} else {
		l.tail.next = o
	}
	l.tail = o
	l.count++
	l.quantity += o.remaining
}

// Remove unlinks o from the queue. o must belong to this level.
func (l *PriceLevel) Remove(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		l.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		l.tail = o.prev
	}
	l.count--
	l.quantity -= o.remaining

	o.level, o.prev, o.next = nil, nil, nil
}

// fill executes quantity against o, which must rest in this level, keeping the
// level's aggregate quantity in step.
func (l *PriceLevel) fill(o *Order, quantity Quantity) error {
	if err := o.Fill(quantity); err != nil {
		return err
	}
	l.quantity -= quantity
	return nil
}

// Orders walks the queue in time priority until visit returns false.
func (l *PriceLevel) Orders(visit func(o *Order) bool) {
	for o := l.head; o != nil; o = o.next {
		if !visit(o) {
			return
		}
	}
}

// LevelView is an aggregated read-only view of a price level.
type LevelView struct {
	Price    Price
	Quantity Quantity
	Orders   int
}

func (l *PriceLevel) view() LevelView {
	return LevelView{Price: l.price, Quantity: l.quantity, Orders: l.count}
}
