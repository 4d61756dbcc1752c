package engine

import (
	. "lob/internal/common"

	"github.com/tidwall/btree"
)

type PriceLevels = btree.BTreeG[*PriceLevel]

// BookSide holds the price levels of one side. Levels are ordered so that the
// best price is always the minimum item of the tree: bids sorted greatest
// first, asks sorted least first.
type BookSide struct {
	side   Side
	levels *PriceLevels
	orders int // resting orders across all levels
}

func newBookSide(side Side) *BookSide {
	less := func(a, b *PriceLevel) bool { return a.price < b.price }
	if side == Buy {
		less = func(a, b *PriceLevel) bool { return a.price > b.price }
	}
	// The kernel is single writer, the tree needs no locking.
	return &BookSide{
		side:   side,
		levels: btree.NewBTreeGOptions(less, btree.Options{NoLocks: true}),
	}
}

func (s *BookSide) Side() Side { return s.side }

// Len returns the number of resting orders on this side.
func (s *BookSide) Len() int { return s.orders }

// Depth returns the number of price levels.
func (s *BookSide) Depth() int { return s.levels.Len() }

func (s *BookSide) IsEmpty() bool { return s.levels.Len() == 0 }

// Best returns the level with the best price.
func (s *BookSide) Best() (*PriceLevel, bool) {
	return s.levels.MinMut()
}

// Level returns the stored level at price, if any.
func (s *BookSide) Level(price Price) (*PriceLevel, bool) {
	// Levels comparator only accounts for price levels, so we create a dummy
	// price level for the search.
	return s.levels.GetMut(&PriceLevel{price: price})
}

// Upsert returns the level at price, creating it when absent. The returned
// pointer is the instance held by the tree.
func (s *BookSide) Upsert(price Price) *PriceLevel {
	if level, ok := s.Level(price); ok {
		return level
	}
	level := newPriceLevel(price)
	s.levels.Set(level)
	return level
}

// Add appends o at the tail of its price level.
func (s *BookSide) Add(o *Order) {
	s.Upsert(o.price).Append(o)
	s.orders++
}

// Remove unlinks o from its level and drops the level once it is empty.
func (s *BookSide) Remove(o *Order) {
	level := o.level
	level.Remove(o)
	s.orders--
	if level.IsEmpty() {
		s.levels.Delete(level)
	}
}

// Levels walks levels best first until visit returns false.
func (s *BookSide) Levels(visit func(level *PriceLevel) bool) {
	s.levels.Scan(visit)
}

// marketable reports whether a resting level at price can trade against an
// incoming limit of the opposite side.
func (s *BookSide) marketable(price, limit Price) bool {
	if s.side == Sell {
		// Resting asks trade with a buy limit at or above them.
		return price <= limit
	}
	return price >= limit
}

// FlatPriceLevel is a price level with its queue copied out in time priority.
type FlatPriceLevel struct {
	Price  Price
	Orders []OrderView
}

// Flatten copies every level of the side, best first.
func (s *BookSide) Flatten() []FlatPriceLevel {
	flat := make([]FlatPriceLevel, 0, s.Depth())
	s.Levels(func(level *PriceLevel) bool {
		orders := make([]OrderView, 0, level.Len())
		level.Orders(func(o *Order) bool {
			orders = append(orders, o.view())
			return true
		})
		flat = append(flat, FlatPriceLevel{Price: level.price, Orders: orders})
		return true
	})
	return flat
}
