package net

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	. "lob/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMessage_NewOrder(t *testing.T) {
	sent := NewOrderMessage{
		BaseMessage: BaseMessage{TypeOf: NewOrder},
		OrderType:   LimitOrder,
		Side:        Sell,
		Price:       10025,
		Quantity:    7,
	}

	// Two frames back to back are read one at a time.
	stream := bytes.NewReader(append(sent.Serialize(), CancelOrderMessage{OrderID: 42}.Serialize()...))

	msg, err := ReadMessage(stream)
	require.NoError(t, err)
	assert.Equal(t, sent, msg)

	msg, err = ReadMessage(stream)
	require.NoError(t, err)
	assert.Equal(t, CancelOrderMessage{BaseMessage: BaseMessage{TypeOf: CancelOrder}, OrderID: 42}, msg)
}

func TestReadMessage_Errors(t *testing.T) {
	badSide := NewOrderMessage{OrderType: LimitOrder, Side: Side(9), Quantity: 1}.Serialize()
	badType := NewOrderMessage{OrderType: OrderType(5), Side: Buy, Quantity: 1}.Serialize()

	unknown := BaseMessage{TypeOf: MessageType(77)}.Serialize()

	short := CancelOrderMessage{OrderID: 1}.Serialize()
	binary.BigEndian.PutUint16(short[0:2], uint16(BaseMessageHeaderLen+3))
	short = short[:FrameHeaderLen+BaseMessageHeaderLen+3]

	huge := make([]byte, FrameHeaderLen)
	binary.BigEndian.PutUint16(huge, MaxFrameLen+1)

	for name, tc := range map[string]struct {
		frame []byte
		want  error
	}{
		"bad side":    {badSide, ErrInvalidSide},
		"bad type":    {badType, ErrInvalidOrderType},
		"unknown":     {unknown, ErrInvalidMessageType},
		"short":       {short, ErrMessageTooShort},
		"frame limit": {huge, ErrFrameTooLarge},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadMessage(bytes.NewReader(tc.frame))
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, isProtocolError(err))
		})
	}
}

func TestReport_WireLayout(t *testing.T) {
	trade := Trade{
		Buy:  TradeLeg{OrderID: 1, Price: 99, Quantity: 3},
		Sell: TradeLeg{OrderID: 2, Price: 99, Quantity: 3},
	}
	buy, sell := generateTradeReports(trade, 123)

	var stream bytes.Buffer
	stream.Write(buy.Serialize())
	errReport := generateErrorReport(errors.New("boom"), 456)
	stream.Write(errReport.Serialize())

	got, err := ReadReport(&stream)
	require.NoError(t, err)
	assert.Equal(t, ExecutionReport, got.MessageType)
	assert.Equal(t, Buy, got.Side)
	assert.Equal(t, OrderID(1), got.OrderID)
	assert.Equal(t, OrderID(2), got.CounterOrderID)
	assert.Equal(t, Price(99), got.Price)
	assert.Equal(t, Quantity(3), got.Quantity)
	assert.Equal(t, uint64(123), got.Timestamp)

	got, err = ReadReport(&stream)
	require.NoError(t, err)
	assert.Equal(t, ErrorReport, got.MessageType)
	assert.Equal(t, "boom", got.Err)

	assert.Equal(t, OrderID(2), sell.OrderID)
	assert.Equal(t, OrderID(1), sell.CounterOrderID)
	assert.Len(t, buy.Serialize(), ReportFixedHeaderLen)
}
