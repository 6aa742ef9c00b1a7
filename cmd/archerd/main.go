package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bunchim/archer/core"
	"github.com/bunchim/archer/internal/config"
	"github.com/bunchim/archer/internal/device"
	"github.com/bunchim/archer/internal/events"
	"github.com/bunchim/archer/internal/ingest"
	"github.com/bunchim/archer/internal/logging"
	"github.com/bunchim/archer/internal/observability"
	"github.com/bunchim/archer/internal/session"
	"github.com/bunchim/archer/shotlog"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "", "Path to a JSON config file")
	grpcAddr := flag.String("grpc-addr", "", "TCP address the session gRPC server listens on (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (overrides config)")
	statePath := flag.String("state", "", "File the session target is saved to on shutdown (overrides config)")
	listPorts := flag.Bool("list-ports", false, "Print available serial ports and exit")
	flag.Parse()

	if *listPorts {
		ports, err := device.ListPorts()
		if err != nil {
			fmt.Fprintf(os.Stderr, "list serial ports: %v\n", err)
			os.Exit(1)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *grpcAddr != "" {
		cfg.ListenAddress = *grpcAddr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddress = *metricsAddr
	}
	if *statePath != "" {
		cfg.StatePath = *statePath
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.ListenAddress), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "archerd exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves the session over lis until ctx is done. The listener is owned
// by run and closed on return.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis net.Listener) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	rpcMetrics, err := observability.NewRPCCollector(reg)
	if err != nil {
		return fmt.Errorf("init rpc metrics: %w", err)
	}
	sessionMetrics, err := observability.NewSessionCollector(reg)
	if err != nil {
		return fmt.Errorf("init session metrics: %w", err)
	}
	metricsSrv := serveMetrics(cfg.MetricsAddress, rpcMetrics, log)

	shots := shotlog.New(shotlog.WithLimit(cfg.ShotLogLimit))
	unsubscribe := shots.Subscribe(func(ev shotlog.Event) {
		log.Debug(ctx, "shot recorded",
			logging.String("shot_id", ev.Shot.ID),
			logging.Int("seq", ev.Seq),
		)
	})
	defer unsubscribe()

	var dev device.Device = device.NewLogDevice(log)
	var conn *device.Conn
	if cfg.Device.Enabled() {
		conn, err = device.Open(ctx, cfg.Device.Device())
		if err != nil {
			return fmt.Errorf("open device: %w", err)
		}
		defer conn.Close()
		dev = conn
		log.Info(ctx, "armband bridge connected",
			logging.String("transport", conn.Transport()),
			logging.String("address", conn.Address()),
		)
	}

	opts := []session.Option{
		session.WithLogger(log),
		session.WithMetrics(sessionMetrics),
		session.WithSink(shots),
		session.WithDevice(dev),
		session.WithLaunch(cfg.Launch),
		session.WithTrajectoryModel(core.TrajectoryModel{Gravity: core.StandardGravity, AllowReversed: cfg.AllowReversed}),
		session.WithMaxSamples(cfg.MaxSamples),
		session.WithAutoResume(cfg.AutoResume),
	}
	if cfg.Target != nil {
		opts = append(opts, session.WithTarget(*cfg.Target))
	}
	sess := session.New(opts...)

	var store *session.Store
	if cfg.StatePath != "" {
		store = session.NewStore(cfg.StatePath)
		restored, err := store.RestoreInto(sess)
		switch {
		case err != nil:
			log.Warn(ctx, "failed to restore session state", logging.String("path", cfg.StatePath), logging.Err(err))
		case restored:
			log.Info(ctx, "restored session state", logging.String("path", cfg.StatePath))
		}
	}

	server := ingest.NewGRPCServer(ingest.NewServer(sess, shots, log), log, rpcMetrics)

	serveErr := make(chan error, 1)
	log.Info(ctx, "starting session gRPC server", logging.String("addr", lis.Addr().String()))
	go func() {
		serveErr <- server.Serve(lis)
	}()

	bridgeDone := make(chan struct{})
	if conn != nil {
		go func() {
			defer close(bridgeDone)
			runBridge(ctx, conn, sess, log)
		}()
	} else {
		close(bridgeDone)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			runErr = fmt.Errorf("grpc server: %w", err)
		}
	}

	log.Info(context.Background(), "shutting down archerd")
	server.GracefulStop()
	if conn != nil {
		_ = conn.Close()
	}
	<-bridgeDone

	if store != nil {
		if err := store.Suspend(sess); err != nil {
			log.Warn(context.Background(), "failed to save session state", logging.String("path", store.Path()), logging.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return runErr
}

// runBridge feeds armband events into the session until the connection
// ends, then reports the device as disconnected.
func runBridge(ctx context.Context, conn *device.Conn, sess *session.Session, log logging.Logger) {
	err := conn.Serve(ctx, sess.Dispatch, events.PumpOptions{
		OnError: func(ev events.Event, err error) error {
			log.Warn(ctx, "dropping armband event",
				logging.String("kind", ev.Kind.String()),
				logging.Err(err),
			)
			return nil
		},
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn(ctx, "armband bridge stopped", logging.Err(err))
	}
	_ = sess.Dispatch(context.Background(), events.Disconnect(time.Now().UnixMilli()))
}

func serveMetrics(addr string, collector *observability.RPCCollector, log logging.Logger) *http.Server {
	if collector == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
