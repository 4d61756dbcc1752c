package engine

import (
	"fmt"

	. "lob/internal/common"

	"github.com/rs/zerolog"
)

// OrderBook is the matching kernel for a single instrument. It owns both book
// sides and the location index.
//
// OrderBook holds no locks: every call runs to completion and callers must
// serialise access, e.g. through the sequencer.
type OrderBook struct {
	bids  *BookSide
	asks  *BookSide
	index *LocationIndex
	ids   IDGenerator
	pool  *OrderPool
	log   zerolog.Logger
}

type Option func(*OrderBook)

// WithIDGenerator injects the identifier source. Kernels sharing an id space
// must be given the same generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(book *OrderBook) { book.ids = gen }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(book *OrderBook) { book.log = logger }
}

func NewOrderBook(opts ...Option) *OrderBook {
	book := &OrderBook{
		bids:  newBookSide(Buy),
		asks:  newBookSide(Sell),
		index: NewLocationIndex(),
		pool:  NewOrderPool(),
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(book)
	}
	if book.ids == nil {
		book.ids = NewSequence(1)
	}
	return book
}

// SubmitLimit places a new limit order which can either (fully or partially):
// 1. Execute immediately against the opposite side
// 2. Rest in the book
//
// The order crosses before it rests. The returned id identifies the order for
// Cancel while any remainder rests.
func (book *OrderBook) SubmitLimit(side Side, price Price, quantity Quantity) (OrderID, Trades, error) {
	if quantity == 0 {
		return 0, nil, fmt.Errorf("limit %s %d@%d: %w", side, quantity, price, ErrInvalidQuantity)
	}

	order, err := book.pool.Limit(book.ids.Next(), side, price, quantity)
	if err != nil {
		return 0, nil, err
	}

	id := order.ID()
	trades := book.cross(order)
	if order.IsFilled() {
		book.pool.Put(order)
		return id, trades, nil
	}

	book.rest(order)
	return id, trades, nil
}

// SubmitMarket sweeps the opposite side until quantity is exhausted or the
// side runs dry. Market orders never rest: an unfilled remainder is dropped.
// Compare trades.Executed() against quantity to detect a partial fill.
func (book *OrderBook) SubmitMarket(side Side, quantity Quantity) (OrderID, Trades) {
	if quantity == 0 {
		return 0, nil
	}

	// Synthetic identity for the reports. It is never rested or indexed, so
	// market orders cannot be cancelled.
	var order Order
	if err := order.init(book.ids.Next(), side, MarketOrder, 0, false, quantity); err != nil {
		panic(err)
	}

	trades := book.cross(&order)
	if !order.IsFilled() {
		book.log.Debug().
			Uint64("id", uint64(order.ID())).
			Stringer("side", side).
			Uint64("requested", uint64(quantity)).
			Uint64("dropped", uint64(order.Remaining())).
			Msg("market order partially filled")
	}
	return order.ID(), trades
}

// Cancel removes a resting order. Unknown, filled and already cancelled ids
// fail with ErrOrderNotFound.
func (book *OrderBook) Cancel(id OrderID) error {
	loc, ok := book.index.Locate(id)
	if !ok {
		return fmt.Errorf("cancel %d: %w", id, ErrOrderNotFound)
	}

	book.side(loc.Side).Remove(loc.order)
	book.index.Erase(id)
	book.pool.Put(loc.order)

	book.log.Debug().
		Uint64("id", uint64(id)).
		Stringer("side", loc.Side).
		Uint64("price", uint64(loc.Price)).
		Msg("order cancelled")
	return nil
}

// BestBid returns the highest resting buy price.
func (book *OrderBook) BestBid() (Price, bool) {
	return bestPrice(book.bids)
}

// BestAsk returns the lowest resting sell price.
func (book *OrderBook) BestAsk() (Price, bool) {
	return bestPrice(book.asks)
}

// Spread returns best ask minus best bid when both sides are populated.
func (book *OrderBook) Spread() (Price, bool) {
	bid, bidOk := book.BestBid()
	ask, askOk := book.BestAsk()
	if !bidOk || !askOk {
		return 0, false
	}
	return ask - bid, true
}

// Order returns a snapshot of a resting order.
func (book *OrderBook) Order(id OrderID) (OrderView, bool) {
	loc, ok := book.index.Locate(id)
	if !ok {
		return OrderView{}, false
	}
	return loc.order.view(), true
}

// Depth returns up to n aggregated levels of side, best first. n <= 0 returns
// every level.
func (book *OrderBook) Depth(side Side, n int) []LevelView {
	s := book.side(side)
	views := make([]LevelView, 0, s.Depth())
	s.Levels(func(level *PriceLevel) bool {
		views = append(views, level.view())
		return n <= 0 || len(views) < n
	})
	return views
}

// Len returns the number of resting orders on both sides.
func (book *OrderBook) Len() int {
	return book.bids.Len() + book.asks.Len()
}

// Bids and Asks expose the sides for read-only inspection.
func (book *OrderBook) Bids() *BookSide { return book.bids }
func (book *OrderBook) Asks() *BookSide { return book.asks }

// cross consumes the top of the opposite side while it is marketable against
// the taker, matching in price-time priority at the resting price. Resting
// orders that fill are removed from their level and the index.
func (book *OrderBook) cross(taker *Order) Trades {
	opposite := book.side(taker.side.Opposite())
	limit, priced := taker.Price()

	var trades Trades
	for !taker.IsFilled() {
		level, ok := opposite.Best()
		if !ok || (priced && !opposite.marketable(level.price, limit)) {
			break
		}

		// Within the level move forward in arrival order.
		for maker := level.Front(); maker != nil && !taker.IsFilled(); {
			next := maker.next
			matchQty := min(taker.remaining, maker.remaining)
			mustFill(level.fill(maker, matchQty))
			mustFill(taker.Fill(matchQty))
			trades = append(trades, newTrade(taker, maker, matchQty))

			book.log.Debug().
				Uint64("taker", uint64(taker.id)).
				Uint64("maker", uint64(maker.id)).
				Uint64("price", uint64(level.price)).
				Uint64("qty", uint64(matchQty)).
				Msg("trade")

			if maker.IsFilled() {
				// May delete the level, next is captured beforehand.
				book.retire(opposite, maker)
			}
			maker = next
		}
	}
	return trades
}

// rest appends the remainder of a limit order to its own side and indexes it.
func (book *OrderBook) rest(order *Order) {
	book.side(order.side).Add(order)
	err := book.index.Insert(order.id, Location{Side: order.side, Price: order.price, order: order})
	if err != nil {
		// Identifier sources never repeat ids; this is a broken generator.
		panic(err)
	}
}

// retire removes a filled resting order from the book.
func (book *OrderBook) retire(side *BookSide, order *Order) {
	side.Remove(order)
	book.index.Erase(order.id)
	book.pool.Put(order)
}

func (book *OrderBook) side(side Side) *BookSide {
	if side == Buy {
		return book.bids
	}
	return book.asks
}

func bestPrice(side *BookSide) (Price, bool) {
	level, ok := side.Best()
	if !ok {
		return 0, false
	}
	return level.price, true
}

// newTrade records a match at the maker's price.
func newTrade(taker, maker *Order, quantity Quantity) Trade {
	takerLeg := TradeLeg{OrderID: taker.id, Price: maker.price, Quantity: quantity}
	makerLeg := TradeLeg{OrderID: maker.id, Price: maker.price, Quantity: quantity}
	if taker.side == Buy {
		return Trade{Buy: takerLeg, Sell: makerLeg}
	}
	return Trade{Buy: makerLeg, Sell: takerLeg}
}

// mustFill turns an overfill into an assertion failure. The crossing loop
// only ever fills min(taker, maker), so reaching the panic is a kernel bug.
func mustFill(err error) {
	if err != nil {
		panic(err)
	}
}
