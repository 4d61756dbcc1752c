// Package sequencer serialises access to one matching kernel. A single
// goroutine owns the order book and applies commands in the order they were
// received, stamping each with a sequence number.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "lob/internal/common"
	"lob/internal/engine"
	"lob/internal/metrics"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const defaultQueueSize = 1024

var (
	ErrStopped  = errors.New("sequencer stopped")
	ErrNotOwner = errors.New("order belongs to another owner")
)

// Reporter receives every batch of trades after the command producing them has
// been applied. Implementations must not block for long; they run on the
// sequencer goroutine.
type Reporter interface {
	ReportTrades(seq uint64, trades Trades)
}

type CommandType int

const (
	PlaceLimit CommandType = iota
	PlaceMarket
	CancelOrder
	QueryBook
)

func (c CommandType) String() string {
	switch c {
	case PlaceLimit:
		return "limit"
	case PlaceMarket:
		return "market"
	case CancelOrder:
		return "cancel"
	case QueryBook:
		return "query"
	default:
		return "unknown"
	}
}

type command struct {
	kind     CommandType
	side     Side
	price    Price
	quantity Quantity
	orderID  OrderID
	owner    string
	depth    int
	reply    chan Result
}

// Result is the outcome of one command.
type Result struct {
	Seq     uint64
	OrderID OrderID
	Trades  Trades
	// Makers maps each resting order hit by Trades to its owner.
	Makers map[OrderID]string
	Book   BookState
	Err    error
}

// BookState is a read-only picture of the top of the book.
type BookState struct {
	Bid    Price
	HasBid bool
	Ask    Price
	HasAsk bool
	Bids   []engine.LevelView
	Asks   []engine.LevelView
}

type Sequencer struct {
	book     *engine.OrderBook
	commands chan command
	reporter Reporter
	seq      uint64
	owners   map[OrderID]string // resting order owners
	stopped  chan struct{}
}

type Option func(*Sequencer)

func WithReporter(r Reporter) Option {
	return func(s *Sequencer) { s.reporter = r }
}

func WithQueueSize(n int) Option {
	return func(s *Sequencer) {
		if n > 0 {
			s.commands = make(chan command, n)
		}
	}
}

func New(book *engine.OrderBook, opts ...Option) *Sequencer {
	s := &Sequencer{
		book:     book,
		commands: make(chan command, defaultQueueSize),
		owners:   make(map[OrderID]string),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run is the application loop. It is the only goroutine touching the book and
// returns once the tomb starts dying.
func (s *Sequencer) Run(t *tomb.Tomb) error {
	defer close(s.stopped)
	log.Info().Msg("sequencer running")
	for {
		select {
		case <-t.Dying():
			log.Info().Uint64("seq", s.seq).Msg("sequencer stopped")
			return nil
		case cmd := <-s.commands:
			cmd.reply <- s.apply(cmd)
		}
	}
}

// PlaceLimit submits a limit order on behalf of owner and waits for its
// outcome.
func (s *Sequencer) PlaceLimit(ctx context.Context, owner string, side Side, price Price, quantity Quantity) (Result, error) {
	return s.do(ctx, command{kind: PlaceLimit, owner: owner, side: side, price: price, quantity: quantity})
}

// PlaceMarket submits a market order and waits for its outcome.
func (s *Sequencer) PlaceMarket(ctx context.Context, owner string, side Side, quantity Quantity) (Result, error) {
	return s.do(ctx, command{kind: PlaceMarket, owner: owner, side: side, quantity: quantity})
}

// Cancel removes a resting order. Only the owner that placed the order may
// cancel it.
func (s *Sequencer) Cancel(ctx context.Context, owner string, id OrderID) (Result, error) {
	return s.do(ctx, command{kind: CancelOrder, owner: owner, orderID: id})
}

// Book returns the best prices and up to depth levels per side.
func (s *Sequencer) Book(ctx context.Context, depth int) (Result, error) {
	return s.do(ctx, command{kind: QueryBook, depth: depth})
}

// do enqueues cmd and waits for the reply. The error is the command's own
// error, or ErrStopped / the context error when it could not be applied.
func (s *Sequencer) do(ctx context.Context, cmd command) (Result, error) {
	cmd.reply = make(chan Result, 1)
	select {
	case s.commands <- cmd:
	case <-s.stopped:
		return Result{}, ErrStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	// A queued command is left unapplied if the loop exits before reaching it.
	select {
	case res := <-cmd.reply:
		return res, res.Err
	case <-s.stopped:
		select {
		case res := <-cmd.reply:
			return res, res.Err
		default:
			return Result{}, ErrStopped
		}
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (s *Sequencer) apply(cmd command) Result {
	s.seq++
	res := Result{Seq: s.seq}
	start := time.Now()

	switch cmd.kind {
	case PlaceLimit:
		res.OrderID, res.Trades, res.Err = s.book.SubmitLimit(cmd.side, cmd.price, cmd.quantity)
	case PlaceMarket:
		if cmd.quantity == 0 {
			res.Err = fmt.Errorf("market %s: %w", cmd.side, engine.ErrInvalidQuantity)
			break
		}
		res.OrderID, res.Trades = s.book.SubmitMarket(cmd.side, cmd.quantity)
		if dropped := cmd.quantity - res.Trades.Executed(); dropped > 0 {
			metrics.DroppedMarketQuantity.Add(float64(dropped))
		}
	case CancelOrder:
		res.OrderID = cmd.orderID
		if owner, ok := s.owners[cmd.orderID]; ok && owner != cmd.owner {
			res.Err = fmt.Errorf("cancel %d: %w", cmd.orderID, ErrNotOwner)
			break
		}
		if res.Err = s.book.Cancel(cmd.orderID); res.Err == nil {
			delete(s.owners, cmd.orderID)
		}
	case QueryBook:
		res.Book = s.state(cmd.depth)
	}

	metrics.CommandDuration.WithLabelValues(cmd.kind.String()).Observe(time.Since(start).Seconds())
	s.track(cmd, &res)
	s.record(cmd, res)
	return res
}

// track keeps the owner table in step with the book: makers are resolved
// before filled ones are forgotten, and a resting remainder is registered.
func (s *Sequencer) track(cmd command, res *Result) {
	if len(res.Trades) > 0 {
		res.Makers = make(map[OrderID]string, len(res.Trades))
		for _, trade := range res.Trades {
			maker := trade.Leg(cmd.side.Opposite()).OrderID
			res.Makers[maker] = s.owners[maker]
			if _, resting := s.book.Order(maker); !resting {
				delete(s.owners, maker)
			}
		}
	}
	if cmd.kind == PlaceLimit && res.Err == nil {
		if _, resting := s.book.Order(res.OrderID); resting {
			s.owners[res.OrderID] = cmd.owner
		}
	}
}

func (s *Sequencer) state(depth int) BookState {
	var st BookState
	st.Bid, st.HasBid = s.book.BestBid()
	st.Ask, st.HasAsk = s.book.BestAsk()
	if depth > 0 {
		st.Bids = s.book.Depth(Buy, depth)
		st.Asks = s.book.Depth(Sell, depth)
	}
	return st
}

// record updates metrics, logs the outcome and forwards trades.
func (s *Sequencer) record(cmd command, res Result) {
	outcome := "ok"
	if res.Err != nil {
		outcome = "rejected"
		log.Warn().
			Err(res.Err).
			Uint64("seq", res.Seq).
			Stringer("command", cmd.kind).
			Msg("command rejected")
	}
	metrics.CommandsTotal.WithLabelValues(cmd.kind.String(), outcome).Inc()
	metrics.Sequence.Set(float64(res.Seq))
	metrics.RestingOrders.WithLabelValues(Buy.String()).Set(float64(s.book.Bids().Len()))
	metrics.RestingOrders.WithLabelValues(Sell.String()).Set(float64(s.book.Asks().Len()))

	if len(res.Trades) == 0 {
		return
	}
	metrics.TradesTotal.Add(float64(len(res.Trades)))
	metrics.TradedQuantity.Add(float64(res.Trades.Executed()))
	if s.reporter != nil {
		s.reporter.ReportTrades(res.Seq, res.Trades)
	}
}
