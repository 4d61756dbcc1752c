package net_test

import (
	"bufio"
	"net"
	"testing"
	"time"

	. "lob/internal/common"
	"lob/internal/engine"
	lobnet "lob/internal/net"
	"lob/internal/sequencer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"
)

// --- Setup & Helpers --------------------------------------------------------

type client struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func startServer(t *testing.T) string {
	t.Helper()
	seq := sequencer.New(engine.NewOrderBook())
	srv := lobnet.New("127.0.0.1:0", seq)

	tb := &tomb.Tomb{}
	tb.Go(func() error { return seq.Run(tb) })
	tb.Go(func() error { return srv.Run(tb) })
	t.Cleanup(func() {
		tb.Kill(nil)
		_ = tb.Wait()
	})
	return srv.Addr().String()
}

func dial(t *testing.T, address string) *client {
	t.Helper()
	conn, err := net.Dial("tcp", address)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (c *client) send(frame []byte) {
	_, err := c.conn.Write(frame)
	require.NoError(c.t, err)
}

func (c *client) limit(side Side, price Price, qty Quantity) {
	c.send(lobnet.NewOrderMessage{OrderType: LimitOrder, Side: side, Price: price, Quantity: qty}.Serialize())
}

func (c *client) market(side Side, qty Quantity) {
	c.send(lobnet.NewOrderMessage{OrderType: MarketOrder, Side: side, Quantity: qty}.Serialize())
}

func (c *client) next() lobnet.Report {
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	report, err := lobnet.ReadReport(c.reader)
	require.NoError(c.t, err)
	return report
}

// --- Tests ------------------------------------------------------------------

func TestServer_ExecutionReportsReachBothParties(t *testing.T) {
	address := startServer(t)
	alice := dial(t, address)
	bob := dial(t, address)

	alice.limit(Sell, 100, 10)
	ack := alice.next()
	require.Equal(t, lobnet.OrderAckReport, ack.MessageType)
	askID := ack.OrderID

	bob.market(Buy, 4)
	ack = bob.next()
	require.Equal(t, lobnet.OrderAckReport, ack.MessageType)
	marketID := ack.OrderID

	exec := bob.next()
	assert.Equal(t, lobnet.ExecutionReport, exec.MessageType)
	assert.Equal(t, Buy, exec.Side)
	assert.Equal(t, marketID, exec.OrderID)
	assert.Equal(t, askID, exec.CounterOrderID)
	assert.Equal(t, Price(100), exec.Price)
	assert.Equal(t, Quantity(4), exec.Quantity)

	exec = alice.next()
	assert.Equal(t, lobnet.ExecutionReport, exec.MessageType)
	assert.Equal(t, Sell, exec.Side)
	assert.Equal(t, askID, exec.OrderID)
	assert.Equal(t, marketID, exec.CounterOrderID)
	assert.Equal(t, Quantity(4), exec.Quantity)
}

func TestServer_CancelAndBook(t *testing.T) {
	address := startServer(t)
	alice := dial(t, address)
	bob := dial(t, address)

	alice.limit(Buy, 95, 5)
	bidID := alice.next().OrderID

	// Only the owner may cancel.
	bob.send(lobnet.CancelOrderMessage{OrderID: bidID}.Serialize())
	report := bob.next()
	assert.Equal(t, lobnet.ErrorReport, report.MessageType)
	assert.Contains(t, report.Err, sequencer.ErrNotOwner.Error())

	bob.send(lobnet.BaseMessage{TypeOf: lobnet.LogBook}.Serialize())
	report = bob.next()
	assert.Equal(t, lobnet.BookReport, report.MessageType)
	assert.Equal(t, lobnet.FlagHasBid, report.Flags)
	assert.Equal(t, Price(95), report.Price)

	alice.send(lobnet.CancelOrderMessage{OrderID: bidID}.Serialize())
	report = alice.next()
	assert.Equal(t, lobnet.CancelAckReport, report.MessageType)
	assert.Equal(t, bidID, report.OrderID)

	alice.send(lobnet.CancelOrderMessage{OrderID: bidID}.Serialize())
	report = alice.next()
	assert.Equal(t, lobnet.ErrorReport, report.MessageType)
	assert.Contains(t, report.Err, engine.ErrOrderNotFound.Error())
}

func TestServer_RejectsBadMessagesAndKeepsSession(t *testing.T) {
	address := startServer(t)
	alice := dial(t, address)

	alice.limit(Buy, 100, 0)
	report := alice.next()
	assert.Equal(t, lobnet.ErrorReport, report.MessageType)
	assert.Contains(t, report.Err, engine.ErrInvalidQuantity.Error())

	alice.send(lobnet.BaseMessage{TypeOf: lobnet.MessageType(99)}.Serialize())
	report = alice.next()
	assert.Equal(t, lobnet.ErrorReport, report.MessageType)
	assert.Contains(t, report.Err, lobnet.ErrInvalidMessageType.Error())

	// The session is still usable.
	alice.limit(Buy, 100, 1)
	assert.Equal(t, lobnet.OrderAckReport, alice.next().MessageType)
}
