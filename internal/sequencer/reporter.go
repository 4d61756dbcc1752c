package sequencer

import (
	. "lob/internal/common"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LogReporter writes every trade to a logger, rendering prices with the
// instrument's tick size.
type LogReporter struct {
	Logger   zerolog.Logger
	TickSize decimal.Decimal
}

func (r LogReporter) ReportTrades(seq uint64, trades Trades) {
	for _, trade := range trades {
		r.Logger.Info().
			Uint64("seq", seq).
			Uint64("buy_id", uint64(trade.Buy.OrderID)).
			Uint64("sell_id", uint64(trade.Sell.OrderID)).
			Stringer("price", FromTicks(trade.Price(), r.TickSize)).
			Uint64("qty", uint64(trade.Quantity())).
			Msg("trade")
	}
}

// Reporters fans a batch out to several reporters in order.
type Reporters []Reporter

func (rs Reporters) ReportTrades(seq uint64, trades Trades) {
	for _, r := range rs {
		r.ReportTrades(seq, trades)
	}
}
