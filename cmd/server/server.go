package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	. "lob/internal/common"
	"lob/internal/config"
	"lob/internal/engine"
	"lob/internal/logging"
	"lob/internal/metrics"
	"lob/internal/net"
	"lob/internal/sequencer"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("unable to load configuration")
	}

	logger, closer, err := logging.Setup(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to setup logging")
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	// Setup the matching kernel, its sequencer and the TCP gateway.
	book := engine.NewOrderBook(
		engine.WithIDGenerator(engine.NewSequence(OrderID(cfg.Book.FirstOrderID))),
		engine.WithLogger(logger.With().Str("component", "book").Logger()),
	)
	seq := sequencer.New(book,
		sequencer.WithQueueSize(cfg.Sequencer.QueueSize),
		sequencer.WithReporter(sequencer.Reporters{
			sequencer.LogReporter{
				Logger:   logger.With().Str("component", "trades").Logger(),
				TickSize: cfg.Book.TickSize,
			},
		}),
	)
	srv := net.New(cfg.Listen(), seq)

	t, _ := tomb.WithContext(ctx)
	t.Go(func() error { return seq.Run(t) })
	t.Go(func() error { return srv.Run(t) })
	if cfg.Metrics.Enabled {
		t.Go(func() error { return serveMetrics(t, cfg.Metrics.Address) })
	}

	log.Info().
		Str("tick_size", cfg.Book.TickSize.String()).
		Uint64("first_order_id", cfg.Book.FirstOrderID).
		Msg("exchange started")

	// Block until a signal arrives or a component fails.
	<-t.Dying()
	if err := t.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("exchange stopped")
		closer.Close()
		os.Exit(1)
	}
	log.Info().Msg("exchange stopped")
}

func serveMetrics(t *tomb.Tomb, address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	httpServer := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	t.Go(func() error {
		<-t.Dying()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	log.Info().Str("address", address).Msg("metrics server running")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metrics server failed")
		return err
	}
	return nil
}
