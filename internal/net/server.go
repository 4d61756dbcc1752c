package net

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	. "lob/internal/common"
	"lob/internal/metrics"
	"lob/internal/sequencer"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	defaultBookDepth = 10
)

var ErrClientDoesNotExist = errors.New("client does not exist")

// Matcher is the sequenced order entry the gateway forwards to.
type Matcher interface {
	PlaceLimit(ctx context.Context, owner string, side Side, price Price, quantity Quantity) (sequencer.Result, error)
	PlaceMarket(ctx context.Context, owner string, side Side, quantity Quantity) (sequencer.Result, error)
	Cancel(ctx context.Context, owner string, id OrderID) (sequencer.Result, error)
	Book(ctx context.Context, depth int) (sequencer.Result, error)
}

// ClientSession contains relevant information pertaining to an individual
// connected TCP session. Writes are serialised since execution reports for a
// session may be produced by another session's order.
type ClientSession struct {
	id   uuid.UUID
	conn net.Conn
	mu   sync.Mutex
}

func (c *ClientSession) owner() string { return c.id.String() }

func (c *ClientSession) send(reports ...Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range reports {
		if _, err := c.conn.Write(reports[i].Serialize()); err != nil {
			return err
		}
	}
	return nil
}

type Server struct {
	address string
	matcher Matcher

	listener net.Listener
	ready    chan struct{}

	clientSessions     map[string]*ClientSession
	clientSessionsLock sync.Mutex
}

func New(address string, matcher Matcher) *Server {
	return &Server{
		address:        address,
		matcher:        matcher,
		ready:          make(chan struct{}),
		clientSessions: make(map[string]*ClientSession),
	}
}

// Addr blocks until the listener is up and returns its address.
func (s *Server) Addr() net.Addr {
	<-s.ready
	return s.listener.Addr()
}

// Run accepts client connections until the tomb starts dying. Each session is
// served by its own goroutine tracked by the same tomb.
func (s *Server) Run(t *tomb.Tomb) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(t.Context(nil), "tcp", s.address)
	if err != nil {
		log.Error().Err(err).Str("address", s.address).Msg("unable to start listener")
		return err
	}
	s.listener = listener
	close(s.ready)

	// Unblock Accept and every session read on shutdown.
	t.Go(func() error {
		<-t.Dying()
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
		s.closeClientSessions()
		return nil
	})

	log.Info().Str("address", listener.Addr().String()).Msg("server running")
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-t.Dying():
				log.Info().Msg("server shutting down")
				return nil
			default:
			}
			log.Error().Err(err).Msg("error accepting client")
			return err
		}

		session := s.addClientSession(conn)
		log.Info().
			Str("session", session.owner()).
			Str("address", conn.RemoteAddr().String()).
			Msg("new client added")

		t.Go(func() error {
			s.handleConnection(t, session)
			return nil
		})
	}
}

// handleConnection reads messages off one session until the client leaves or
// the server shuts down. Malformed frames are answered with an error report;
// the session only ends when the stream itself is broken.
func (s *Server) handleConnection(t *tomb.Tomb, session *ClientSession) {
	defer func() {
		s.deleteClientSession(session.owner())
		if err := session.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Error().Str("session", session.owner()).Err(err).Msg("unable to close connection")
		}
	}()

	ctx := t.Context(nil)
	reader := bufio.NewReader(session.conn)
	for {
		message, err := ReadMessage(reader)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
			log.Info().Str("session", session.owner()).Msg("client disconnected")
			return
		case isProtocolError(err):
			log.Warn().Err(err).Str("session", session.owner()).Msg("error parsing message")
			if sendErr := session.send(generateErrorReport(err, now())); sendErr != nil {
				return
			}
			if errors.Is(err, ErrFrameTooLarge) {
				// The rest of the frame cannot be skipped reliably.
				return
			}
			continue
		default:
			log.Error().Err(err).Str("session", session.owner()).Msg("error reading from connection")
			return
		}

		if err := s.handleMessage(ctx, session, message); err != nil {
			log.Error().Err(err).Str("session", session.owner()).Msg("unable to send report")
			return
		}
	}
}

// handleMessage forwards one message to the matcher and answers the session.
// The returned error is a write failure on the session.
func (s *Server) handleMessage(ctx context.Context, session *ClientSession, message Message) error {
	switch m := message.(type) {
	case NewOrderMessage:
		var (
			res sequencer.Result
			err error
		)
		if m.OrderType == MarketOrder {
			res, err = s.matcher.PlaceMarket(ctx, session.owner(), m.Side, m.Quantity)
		} else {
			res, err = s.matcher.PlaceLimit(ctx, session.owner(), m.Side, m.Price, m.Quantity)
		}
		if err != nil {
			return session.send(generateErrorReport(err, now()))
		}
		ack := Report{
			MessageType: OrderAckReport,
			Side:        m.Side,
			Timestamp:   now(),
			OrderID:     res.OrderID,
			Price:       m.Price,
			Quantity:    m.Quantity,
		}
		if err := session.send(ack); err != nil {
			return err
		}
		return s.reportTrades(session, m.Side, res)

	case CancelOrderMessage:
		res, err := s.matcher.Cancel(ctx, session.owner(), m.OrderID)
		if err != nil {
			return session.send(generateErrorReport(err, now()))
		}
		return session.send(Report{
			MessageType: CancelAckReport,
			Timestamp:   now(),
			OrderID:     res.OrderID,
		})

	case BaseMessage:
		switch m.TypeOf {
		case LogBook:
			return s.logBook(ctx, session)
		case Heartbeat:
			return nil
		}
	}
	return session.send(generateErrorReport(ErrInvalidMessageType, now()))
}

// reportTrades sends each party of every trade its execution report. The
// taker is always the current session; makers are looked up by owner.
func (s *Server) reportTrades(taker *ClientSession, side Side, res sequencer.Result) error {
	ts := now()
	for _, trade := range res.Trades {
		buy, sell := generateTradeReports(trade, ts)
		takerReport, makerReport := buy, sell
		if side == Sell {
			takerReport, makerReport = sell, buy
		}

		if err := taker.send(takerReport); err != nil {
			return err
		}

		owner := res.Makers[makerReport.OrderID]
		maker, err := s.clientSession(owner)
		if err != nil {
			log.Debug().
				Uint64("order", uint64(makerReport.OrderID)).
				Str("session", owner).
				Msg("maker not connected, execution report dropped")
			continue
		}
		if err := maker.send(makerReport); err != nil {
			log.Error().Err(err).Str("session", owner).Msg("unable to send execution report")
		}
	}
	return nil
}

func (s *Server) logBook(ctx context.Context, session *ClientSession) error {
	res, err := s.matcher.Book(ctx, defaultBookDepth)
	if err != nil {
		return session.send(generateErrorReport(err, now()))
	}

	book := res.Book
	for _, level := range book.Bids {
		log.Info().Uint64("price", uint64(level.Price)).Uint64("qty", uint64(level.Quantity)).Int("orders", level.Orders).Msg("bid")
	}
	for _, level := range book.Asks {
		log.Info().Uint64("price", uint64(level.Price)).Uint64("qty", uint64(level.Quantity)).Int("orders", level.Orders).Msg("ask")
	}

	report := Report{
		MessageType: BookReport,
		Timestamp:   now(),
		Price:       book.Bid,
		Ask:         book.Ask,
	}
	if book.HasBid {
		report.Flags |= FlagHasBid
	}
	if book.HasAsk {
		report.Flags |= FlagHasAsk
	}
	return session.send(report)
}

func isProtocolError(err error) bool {
	return errors.Is(err, ErrInvalidMessageType) ||
		errors.Is(err, ErrMessageTooShort) ||
		errors.Is(err, ErrFrameTooLarge) ||
		errors.Is(err, ErrInvalidSide) ||
		errors.Is(err, ErrInvalidOrderType)
}

func now() uint64 {
	return uint64(time.Now().UnixNano())
}

// addClientSession is an atomic map add
func (s *Server) addClientSession(conn net.Conn) *ClientSession {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	session := &ClientSession{id: uuid.New(), conn: conn}
	s.clientSessions[session.owner()] = session
	metrics.Sessions.Inc()
	return session
}

// deleteClientSession is an atomic map remove
func (s *Server) deleteClientSession(owner string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	if _, ok := s.clientSessions[owner]; ok {
		delete(s.clientSessions, owner)
		metrics.Sessions.Dec()
	}
}

func (s *Server) clientSession(owner string) (*ClientSession, error) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	session, ok := s.clientSessions[owner]
	if !ok {
		return nil, ErrClientDoesNotExist
	}
	return session, nil
}

func (s *Server) closeClientSessions() {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	for _, session := range s.clientSessions {
		_ = session.conn.Close()
	}
}
