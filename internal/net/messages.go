package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	. "lob/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
	ErrFrameTooLarge      = errors.New("frame too large")
	ErrInvalidSide        = errors.New("invalid side")
	ErrInvalidOrderType   = errors.New("invalid order type")
)

type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	LogBook
)

type ReportMessageType uint8

const (
	OrderAckReport ReportMessageType = iota
	ExecutionReport
	CancelAckReport
	BookReport
	ErrorReport
)

type Message interface {
	GetType() MessageType
}

// Message format constants. Every client message is framed as
// u16 length | u16 type | body, big endian, where length counts type + body.
const (
	FrameHeaderLen              = 2
	BaseMessageHeaderLen        = 2
	NewOrderMessageHeaderLen    = 2 + 1 + 8 + 8
	CancelOrderMessageHeaderLen = 8
	MaxFrameLen                 = 4 * 1024
)

// Generic message type.
type BaseMessage struct {
	TypeOf MessageType // 2 bytes
}

func (m BaseMessage) GetType() MessageType {
	return m.TypeOf
}

type NewOrderMessage struct {
	BaseMessage
	OrderType OrderType // 2 bytes
	Side      Side      // 1 byte
	Price     Price     // 8 bytes, ticks; ignored for market orders
	Quantity  Quantity  // 8 bytes
}

type CancelOrderMessage struct {
	BaseMessage
	OrderID OrderID // 8 bytes
}

// ReadMessage reads one frame off r and parses it.
func ReadMessage(r io.Reader) (Message, error) {
	var header [FrameHeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint16(header[:]))
	if n > MaxFrameLen {
		return nil, fmt.Errorf("%d bytes: %w", n, ErrFrameTooLarge)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return parseMessage(body)
}

func parseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return BaseMessage{}, fmt.Errorf("header: %w", ErrMessageTooShort)
	}

	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	msg = msg[2:]
	switch typeOf {
	case Heartbeat, LogBook:
		return BaseMessage{TypeOf: typeOf}, nil
	case NewOrder:
		return parseNewOrder(msg)
	case CancelOrder:
		return parseCancelOrder(msg)
	default:
		return BaseMessage{}, fmt.Errorf("type %d: %w", typeOf, ErrInvalidMessageType)
	}
}

func parseNewOrder(msg []byte) (NewOrderMessage, error) {
	if len(msg) < NewOrderMessageHeaderLen {
		return NewOrderMessage{}, fmt.Errorf("new order: %w", ErrMessageTooShort)
	}

	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}
	m.OrderType = OrderType(binary.BigEndian.Uint16(msg[0:2]))
	m.Side = Side(msg[2])
	m.Price = Price(binary.BigEndian.Uint64(msg[3:11]))
	m.Quantity = Quantity(binary.BigEndian.Uint64(msg[11:19]))

	if !m.Side.Valid() {
		return NewOrderMessage{}, fmt.Errorf("%d: %w", m.Side, ErrInvalidSide)
	}
	if m.OrderType != LimitOrder && m.OrderType != MarketOrder {
		return NewOrderMessage{}, fmt.Errorf("%d: %w", m.OrderType, ErrInvalidOrderType)
	}
	return m, nil
}

func parseCancelOrder(msg []byte) (CancelOrderMessage, error) {
	if len(msg) < CancelOrderMessageHeaderLen {
		return CancelOrderMessage{}, fmt.Errorf("cancel order: %w", ErrMessageTooShort)
	}
	return CancelOrderMessage{
		BaseMessage: BaseMessage{TypeOf: CancelOrder},
		OrderID:     OrderID(binary.BigEndian.Uint64(msg[0:8])),
	}, nil
}

// Serialize frames the message for the wire.
func (m NewOrderMessage) Serialize() []byte {
	buf := frame(NewOrder, NewOrderMessageHeaderLen)
	body := buf[FrameHeaderLen+BaseMessageHeaderLen:]
	binary.BigEndian.PutUint16(body[0:2], uint16(m.OrderType))
	body[2] = byte(m.Side)
	binary.BigEndian.PutUint64(body[3:11], uint64(m.Price))
	binary.BigEndian.PutUint64(body[11:19], uint64(m.Quantity))
	return buf
}

func (m CancelOrderMessage) Serialize() []byte {
	buf := frame(CancelOrder, CancelOrderMessageHeaderLen)
	binary.BigEndian.PutUint64(buf[FrameHeaderLen+BaseMessageHeaderLen:], uint64(m.OrderID))
	return buf
}

func (m BaseMessage) Serialize() []byte {
	return frame(m.TypeOf, 0)
}

func frame(typeOf MessageType, bodyLen int) []byte {
	buf := make([]byte, FrameHeaderLen+BaseMessageHeaderLen+bodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(BaseMessageHeaderLen+bodyLen))
	binary.BigEndian.PutUint16(buf[2:4], uint16(typeOf))
	return buf
}

// Report is sent from the server to a client. For book reports Price carries
// the best bid and Ask the best ask.
type Report struct {
	MessageType    ReportMessageType // 1 byte
	Side           Side              // 1 byte
	Flags          uint8             // 1 byte
	Timestamp      uint64            // 8 bytes
	OrderID        OrderID           // 8 bytes
	CounterOrderID OrderID           // 8 bytes
	Price          Price             // 8 bytes
	Quantity       Quantity          // 8 bytes
	Ask            Price             // 8 bytes
	ErrStrLen      uint16            // 2 bytes
	Err            string            // n bytes
}

// Report flags.
const (
	FlagHasBid uint8 = 1 << iota
	FlagHasAsk
)

const ReportFixedHeaderLen = 1 + 1 + 1 + 8 + 8 + 8 + 8 + 8 + 8 + 2

// Serialize converts the report to be sent on the wire.
func (r *Report) Serialize() []byte {
	errStr := r.Err
	if len(errStr) > MaxFrameLen {
		errStr = errStr[:MaxFrameLen]
	}

	buf := make([]byte, ReportFixedHeaderLen+len(errStr))
	buf[0] = byte(r.MessageType)
	buf[1] = byte(r.Side)
	buf[2] = r.Flags
	binary.BigEndian.PutUint64(buf[3:11], r.Timestamp)
	binary.BigEndian.PutUint64(buf[11:19], uint64(r.OrderID))
	binary.BigEndian.PutUint64(buf[19:27], uint64(r.CounterOrderID))
	binary.BigEndian.PutUint64(buf[27:35], uint64(r.Price))
	binary.BigEndian.PutUint64(buf[35:43], uint64(r.Quantity))
	binary.BigEndian.PutUint64(buf[43:51], uint64(r.Ask))
	binary.BigEndian.PutUint16(buf[51:53], uint16(len(errStr)))
	copy(buf[ReportFixedHeaderLen:], errStr)
	return buf
}

// ReadReport reads one report off r.
func ReadReport(r io.Reader) (Report, error) {
	var buf [ReportFixedHeaderLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Report{}, err
	}

	report := Report{
		MessageType:    ReportMessageType(buf[0]),
		Side:           Side(buf[1]),
		Flags:          buf[2],
		Timestamp:      binary.BigEndian.Uint64(buf[3:11]),
		OrderID:        OrderID(binary.BigEndian.Uint64(buf[11:19])),
		CounterOrderID: OrderID(binary.BigEndian.Uint64(buf[19:27])),
		Price:          Price(binary.BigEndian.Uint64(buf[27:35])),
		Quantity:       Quantity(binary.BigEndian.Uint64(buf[35:43])),
		Ask:            Price(binary.BigEndian.Uint64(buf[43:51])),
		ErrStrLen:      binary.BigEndian.Uint16(buf[51:53]),
	}
	if report.ErrStrLen > 0 {
		errBuf := make([]byte, report.ErrStrLen)
		if _, err := io.ReadFull(r, errBuf); err != nil {
			return Report{}, err
		}
		report.Err = string(errBuf)
	}
	return report, nil
}

// generateTradeReports generates both execution reports of a trade, one
// addressable to each party.
func generateTradeReports(trade Trade, timestamp uint64) (buy, sell Report) {
	createReport := func(side Side, party, counterParty TradeLeg) Report {
		return Report{
			MessageType:    ExecutionReport,
			Side:           side,
			Timestamp:      timestamp,
			OrderID:        party.OrderID,
			CounterOrderID: counterParty.OrderID,
			Price:          party.Price,
			Quantity:       party.Quantity,
		}
	}
	return createReport(Buy, trade.Buy, trade.Sell), createReport(Sell, trade.Sell, trade.Buy)
}

func generateErrorReport(err error, timestamp uint64) Report {
	return Report{
		MessageType: ErrorReport,
		Timestamp:   timestamp,
		Err:         err.Error(),
	}
}
