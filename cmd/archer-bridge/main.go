package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/bunchim/archer/internal/device"
	"github.com/bunchim/archer/internal/events"
	"github.com/bunchim/archer/internal/ingest"
	"github.com/bunchim/archer/internal/logging"
)

func main() {
	endpoint := flag.String("endpoint", "localhost:50051", "archerd gRPC endpoint (host:port)")
	transport := flag.String("transport", device.TransportSerial, "armband transport: serial or tcp")
	address := flag.String("address", "", "serial port or host:port of the armband")
	baud := flag.Int("baud", device.DefaultBaudRate, "serial baud rate")
	input := flag.String("input", "", "forward a JSON-lines recording instead of a live armband")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var src events.Source
	switch {
	case *input != "":
		f, err := os.Open(*input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open recording: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		src = events.NewReaderSource(f)
	case *address != "":
		conn, err := device.Open(ctx, device.Config{
			Transport:   *transport,
			Address:     *address,
			BaudRate:    *baud,
			DialTimeout: device.DefaultDialTimeout,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "open armband: %v\n", err)
			os.Exit(1)
		}
		defer conn.Close()
		go func() {
			<-ctx.Done()
			_ = conn.Close()
		}()
		src = conn
	default:
		fmt.Fprintln(os.Stderr, "either -address or -input is required")
		os.Exit(2)
	}

	client, cc, err := ingest.Dial(*endpoint)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", *endpoint, err)
		os.Exit(1)
	}
	defer func() { _ = cc.Close() }()

	res, err := forward(ctx, src, client, log)
	if err != nil {
		log.Error(ctx, "bridge stopped", logging.Err(err))
		os.Exit(1)
	}
	log.Info(ctx, "bridge finished",
		logging.Int("accepted", res.Accepted),
		logging.Int("rejected", res.Rejected),
		logging.Int("shots", res.Session.Shots),
		logging.String("state", res.Session.State.String()),
	)
}

// forward streams every event from src to the server over one
// PublishEvents call and returns the server's summary. Events that fail
// local validation are logged and not sent. Cancelling ctx stops reading
// but still closes the stream cleanly to collect the summary.
func forward(ctx context.Context, src events.Source, client *ingest.Client, log logging.Logger) (ingest.PublishResult, error) {
	start := time.Now()
	pub, err := client.PublishEvents(context.WithoutCancel(ctx))
	if err != nil {
		return ingest.PublishResult{}, fmt.Errorf("open stream: %w", err)
	}

	sent := 0
	send := pub.Handler()
	pumpErr := events.Pump(ctx, src, func(ctx context.Context, ev events.Event) error {
		if err := send(ctx, ev); err != nil {
			return err
		}
		sent++
		return nil
	}, events.PumpOptions{
		OnError: func(ev events.Event, err error) error {
			if errors.Is(err, events.ErrInvalidEvent) {
				log.Warn(ctx, "skipping invalid event", logging.String("kind", ev.Kind.String()), logging.Err(err))
				return nil
			}
			return err
		},
	})
	if pumpErr != nil && !errors.Is(pumpErr, context.Canceled) {
		return ingest.PublishResult{}, pumpErr
	}

	res, err := pub.CloseAndRecv()
	if err != nil {
		return res, fmt.Errorf("close stream after %d events: %w", sent, err)
	}
	log.Debug(ctx, "stream closed", logging.Int("sent", sent), logging.String("elapsed", time.Since(start).String()))
	return res, nil
}
