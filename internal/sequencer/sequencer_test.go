package sequencer_test

import (
	"bytes"
	"context"
	"sync"
	"testing"

	. "lob/internal/common"
	"lob/internal/engine"
	"lob/internal/sequencer"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"
)

// --- Setup & Helpers --------------------------------------------------------

type recordingReporter struct {
	seqs   []uint64
	trades Trades
}

func (r *recordingReporter) ReportTrades(seq uint64, trades Trades) {
	r.seqs = append(r.seqs, seq)
	r.trades = append(r.trades, trades...)
}

func startSequencer(t *testing.T, opts ...sequencer.Option) (*sequencer.Sequencer, *tomb.Tomb) {
	t.Helper()
	seq := sequencer.New(engine.NewOrderBook(), opts...)
	tb := &tomb.Tomb{}
	tb.Go(func() error { return seq.Run(tb) })
	t.Cleanup(func() {
		tb.Kill(nil)
		_ = tb.Wait()
	})
	return seq, tb
}

// --- Tests ------------------------------------------------------------------

func TestSequencer_PlaceAndReport(t *testing.T) {
	reporter := &recordingReporter{}
	seq, _ := startSequencer(t, sequencer.WithReporter(reporter))
	ctx := context.Background()

	res, err := seq.PlaceLimit(ctx, "alice", Sell, 100, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Seq)
	assert.Empty(t, res.Trades)
	sellID := res.OrderID

	res, err = seq.PlaceMarket(ctx, "bob", Buy, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Seq)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, sellID, res.Trades[0].Sell.OrderID)
	assert.Equal(t, res.OrderID, res.Trades[0].Buy.OrderID)

	assert.Equal(t, map[OrderID]string{sellID: "alice"}, res.Makers)

	assert.Equal(t, []uint64{2}, reporter.seqs)
	assert.Equal(t, res.Trades, reporter.trades)

	res, err = seq.Book(ctx, 5)
	require.NoError(t, err)
	assert.False(t, res.Book.HasBid)
	assert.True(t, res.Book.HasAsk)
	assert.Equal(t, Price(100), res.Book.Ask)
	assert.Equal(t, []engine.LevelView{{Price: 100, Quantity: 6, Orders: 1}}, res.Book.Asks)
}

func TestSequencer_Errors(t *testing.T) {
	seq, _ := startSequencer(t)
	ctx := context.Background()

	_, err := seq.PlaceLimit(ctx, "alice", Buy, 100, 0)
	assert.ErrorIs(t, err, engine.ErrInvalidQuantity)

	_, err = seq.PlaceMarket(ctx, "alice", Sell, 0)
	assert.ErrorIs(t, err, engine.ErrInvalidQuantity)

	res, err := seq.Cancel(ctx, "alice", 99)
	assert.ErrorIs(t, err, engine.ErrOrderNotFound)
	assert.Equal(t, OrderID(99), res.OrderID)

	// Rejected commands are still sequenced.
	res, err = seq.Book(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), res.Seq)
}

func TestSequencer_Cancel(t *testing.T) {
	seq, _ := startSequencer(t)
	ctx := context.Background()

	res, err := seq.PlaceLimit(ctx, "alice", Buy, 50, 5)
	require.NoError(t, err)

	_, err = seq.Cancel(ctx, "alice", res.OrderID)
	require.NoError(t, err)

	_, err = seq.Cancel(ctx, "alice", res.OrderID)
	assert.ErrorIs(t, err, engine.ErrOrderNotFound)

	res, err = seq.Book(ctx, 1)
	require.NoError(t, err)
	assert.False(t, res.Book.HasBid)
	assert.Empty(t, res.Book.Bids)
}

func TestSequencer_ConcurrentCallers(t *testing.T) {
	reporter := &recordingReporter{}
	seq, _ := startSequencer(t, sequencer.WithReporter(reporter))
	ctx := context.Background()

	const callers, perCaller = 8, 50
	ids := make(chan OrderID, callers*perCaller)

	var wg sync.WaitGroup
	for c := 0; c < callers; c++ {
		wg.Add(1)
		go func(side Side) {
			defer wg.Done()
			for i := 0; i < perCaller; i++ {
				res, err := seq.PlaceLimit(ctx, side.String(), side, 100, 1)
				assert.NoError(t, err)
				ids <- res.OrderID
			}
		}(Side(c % 2))
	}
	wg.Wait()
	close(ids)

	seen := map[OrderID]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, callers*perCaller)

	// Equal buy and sell flow at one price nets out completely.
	res, err := seq.Book(ctx, 0)
	require.NoError(t, err)
	assert.False(t, res.Book.HasBid)
	assert.False(t, res.Book.HasAsk)
	assert.Equal(t, Quantity(callers*perCaller/2), reporter.trades.Executed())
}

func TestSequencer_Stopped(t *testing.T) {
	seq, tb := startSequencer(t)

	tb.Kill(nil)
	require.NoError(t, tb.Wait())

	_, err := seq.PlaceLimit(context.Background(), "alice", Buy, 1, 1)
	assert.ErrorIs(t, err, sequencer.ErrStopped)
}

func TestSequencer_ContextCancelled(t *testing.T) {
	// Never started: nothing drains the queue.
	seq := sequencer.New(engine.NewOrderBook(), sequencer.WithQueueSize(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := seq.PlaceMarket(ctx, "alice", Sell, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSequencer_Ownership(t *testing.T) {
	seq, _ := startSequencer(t)
	ctx := context.Background()

	res, err := seq.PlaceLimit(ctx, "alice", Sell, 100, 5)
	require.NoError(t, err)
	askID := res.OrderID

	_, err = seq.Cancel(ctx, "mallory", askID)
	assert.ErrorIs(t, err, sequencer.ErrNotOwner)

	// Partial fill keeps the owner, the final fill resolves it one last time.
	res, err = seq.PlaceLimit(ctx, "bob", Buy, 100, 2)
	require.NoError(t, err)
	assert.Equal(t, map[OrderID]string{askID: "alice"}, res.Makers)

	res, err = seq.PlaceLimit(ctx, "carol", Buy, 101, 4)
	require.NoError(t, err)
	assert.Equal(t, map[OrderID]string{askID: "alice"}, res.Makers)
	bidID := res.OrderID

	// carol's remainder rests and now belongs to carol.
	res, err = seq.PlaceMarket(ctx, "dave", Sell, 1)
	require.NoError(t, err)
	assert.Equal(t, map[OrderID]string{bidID: "carol"}, res.Makers)

	_, err = seq.Cancel(ctx, "carol", bidID)
	require.NoError(t, err)
}

func TestReporters_FanOut(t *testing.T) {
	var buf bytes.Buffer
	recorder := &recordingReporter{}
	reporters := sequencer.Reporters{
		recorder,
		sequencer.LogReporter{Logger: zerolog.New(&buf), TickSize: decimal.RequireFromString("0.05")},
	}

	trades := Trades{{
		Buy:  TradeLeg{OrderID: 3, Price: 201, Quantity: 2},
		Sell: TradeLeg{OrderID: 1, Price: 201, Quantity: 2},
	}}
	reporters.ReportTrades(9, trades)

	assert.Equal(t, []uint64{9}, recorder.seqs)
	assert.Equal(t, trades, recorder.trades)
	assert.Contains(t, buf.String(), `"price":"10.05"`)
	assert.Contains(t, buf.String(), `"buy_id":3`)
}
