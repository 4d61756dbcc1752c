package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	. "lob/internal/common"
	lobnet "lob/internal/net"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the exchange server")
	action := flag.String("action", "place", "Action to perform: ['place', 'cancel', 'log']")

	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "limit", "Order type: 'limit' or 'market'")
	priceStr := flag.String("price", "100.00", "Limit price")
	tickStr := flag.String("tick", "0.01", "Tick size of the instrument")
	qtyStr := flag.String("qty", "10", "Quantity or comma-separated list (e.g. 10,20,50)")

	id := flag.Uint64("id", 0, "Id of the order to cancel")
	wait := flag.Duration("wait", 2*time.Second, "How long to listen for reports, 0 listens forever")

	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().
		Timestamp().
		Logger()

	tick, err := decimal.NewFromString(*tickStr)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid tick size")
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatal().Err(err).Str("server", *serverAddr).Msg("failed to connect to server")
	}
	defer conn.Close()
	log.Info().Str("server", *serverAddr).Msg("connected")

	go readReports(conn, tick)

	side := Buy
	if strings.ToLower(*sideStr) == "sell" {
		side = Sell
	}

	switch strings.ToLower(*action) {
	case "place":
		message := lobnet.NewOrderMessage{OrderType: LimitOrder, Side: side}
		if strings.ToLower(*typeStr) == "market" {
			message.OrderType = MarketOrder
		} else {
			price, err := decimal.NewFromString(*priceStr)
			if err != nil {
				log.Fatal().Err(err).Msg("invalid price")
			}
			if message.Price, err = ToTicks(price, tick); err != nil {
				log.Fatal().Err(err).Msg("invalid price")
			}
		}

		for _, q := range parseQuantities(*qtyStr) {
			message.Quantity = q
			if _, err := conn.Write(message.Serialize()); err != nil {
				log.Error().Err(err).Uint64("qty", uint64(q)).Msg("failed to place order")
				continue
			}
			log.Info().
				Stringer("side", side).
				Stringer("type", message.OrderType).
				Str("price", *priceStr).
				Uint64("qty", uint64(q)).
				Msg("sent order")
		}

	case "cancel":
		if *id == 0 {
			log.Fatal().Msg("-id is required for cancellation")
		}
		if _, err := conn.Write(lobnet.CancelOrderMessage{OrderID: OrderID(*id)}.Serialize()); err != nil {
			log.Fatal().Err(err).Msg("failed to send cancel request")
		}
		log.Info().Uint64("id", *id).Msg("sent cancel request")

	case "log":
		if _, err := conn.Write(lobnet.BaseMessage{TypeOf: lobnet.LogBook}.Serialize()); err != nil {
			log.Fatal().Err(err).Msg("failed to send log request")
		}
		log.Info().Msg("sent log request")

	default:
		log.Fatal().Str("action", *action).Msg("unknown action")
	}

	if *wait == 0 {
		select {}
	}
	time.Sleep(*wait)
}

// parseQuantities splits a comma-separated string into quantities.
func parseQuantities(input string) []Quantity {
	var result []Quantity
	for _, p := range strings.Split(input, ",") {
		p = strings.TrimSpace(p)
		val, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			log.Warn().Str("qty", p).Msg("invalid quantity, skipping")
			continue
		}
		result = append(result, Quantity(val))
	}
	return result
}

// readReports prints reports from the server until the connection drops.
func readReports(conn net.Conn, tick decimal.Decimal) {
	reader := bufio.NewReader(conn)
	for {
		report, err := lobnet.ReadReport(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Error().Err(err).Msg("connection lost")
			}
			os.Exit(0)
		}

		switch report.MessageType {
		case lobnet.OrderAckReport:
			fmt.Printf("[ACK] %s order %d | Qty: %d\n", report.Side, report.OrderID, report.Quantity)
		case lobnet.ExecutionReport:
			fmt.Printf("[EXECUTION] %s order %d vs %d | Qty: %d | Price: %s\n",
				report.Side, report.OrderID, report.CounterOrderID, report.Quantity, FromTicks(report.Price, tick))
		case lobnet.CancelAckReport:
			fmt.Printf("[CANCELLED] order %d\n", report.OrderID)
		case lobnet.BookReport:
			fmt.Printf("[BOOK] bid: %s | ask: %s\n",
				bookSide(report.Flags&lobnet.FlagHasBid != 0, report.Price, tick),
				bookSide(report.Flags&lobnet.FlagHasAsk != 0, report.Ask, tick))
		case lobnet.ErrorReport:
			fmt.Printf("[SERVER ERROR] %s\n", report.Err)
		}
	}
}

func bookSide(present bool, price Price, tick decimal.Decimal) string {
	if !present {
		return "-"
	}
	return FromTicks(price, tick).String()
}
