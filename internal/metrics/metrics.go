package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CommandsTotal counts sequenced commands by type and outcome.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lob_commands_total",
			Help: "Total number of sequenced commands by type and outcome",
		},
		[]string{"command", "outcome"},
	)

	// TradesTotal counts executions.
	TradesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lob_trades_total",
			Help: "Total number of trades",
		},
	)

	// TradedQuantity sums matched quantity.
	TradedQuantity = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lob_traded_quantity_total",
			Help: "Total matched quantity",
		},
	)

	// DroppedMarketQuantity sums market order remainders that found no liquidity.
	DroppedMarketQuantity = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lob_market_dropped_quantity_total",
			Help: "Unfilled market order quantity dropped",
		},
	)

	// RestingOrders tracks resting order count per side.
	RestingOrders = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lob_resting_orders",
			Help: "Current number of resting orders",
		},
		[]string{"side"},
	)

	// Sequence tracks the last sequence number stamped.
	Sequence = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lob_sequencer_seq",
			Help: "Last sequence number processed",
		},
	)

	// CommandDuration tracks time spent in the kernel per command.
	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lob_command_duration_seconds",
			Help:    "Kernel processing time per command",
			Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005},
		},
		[]string{"command"},
	)

	// Sessions tracks connected gateway sessions.
	Sessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lob_gateway_sessions",
			Help: "Connected gateway sessions",
		},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
