package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/bunchim/archer/core"
	"github.com/bunchim/archer/internal/events"
	"github.com/bunchim/archer/internal/logging"
	"github.com/bunchim/archer/internal/session"
	"github.com/bunchim/archer/shotlog"
	"github.com/bunchim/archer/timectrl"
)

// Options controls one replay run.
type Options struct {
	Speed         float64
	Accelerated   bool
	LaunchSource  session.LaunchSource
	AllowReversed bool
}

// Summary counts what a replay did.
type Summary struct {
	Events   int `json:"events"`
	Rejected int `json:"rejected"`
	Shots    int `json:"shots"`
	Failures int `json:"failures"`
}

func main() {
	input := flag.String("input", "-", "JSON-lines event recording to replay (- for stdin)")
	speed := flag.Float64("speed", 1, "replay speed multiplier in real-time mode")
	accelerated := flag.Bool("accelerated", true, "replay as fast as possible instead of in real time")
	source := flag.String("launch-source", "fixed", "launch orientation source: fixed, device or phone")
	strict := flag.Bool("strict", false, "reject flights launched below the horizon")
	flag.Parse()

	log := logging.NewFromEnv()

	launchSource, err := session.ParseLaunchSource(*source)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	in := io.Reader(os.Stdin)
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open recording: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summary, err := replay(ctx, in, os.Stdout, log, Options{
		Speed:         *speed,
		Accelerated:   *accelerated,
		LaunchSource:  launchSource,
		AllowReversed: !*strict,
	})
	fmt.Fprintf(os.Stderr, "Replay complete: %d events, %d rejected, %d shots, %d failed flights\n",
		summary.Events, summary.Rejected, summary.Shots, summary.Failures)
	if err != nil {
		log.Error(ctx, "replay stopped", logging.Err(err))
		os.Exit(1)
	}
}

// replay feeds a recording through a fresh session paced by a replay clock
// and writes every landed shot to out as one JSON line.
func replay(ctx context.Context, in io.Reader, out io.Writer, log logging.Logger, opts Options) (Summary, error) {
	var summary Summary

	mode := timectrl.RealTime
	if opts.Accelerated {
		mode = timectrl.Accelerated
	}
	clock := timectrl.NewTimeController(time.Unix(0, 0).UTC(), 0, mode)
	pacer := timectrl.NewPacer(clock, timectrl.WithSpeed(opts.Speed))

	shots := shotlog.New()
	enc := json.NewEncoder(out)
	var writeErr error
	unsubscribe := shots.Subscribe(func(ev shotlog.Event) {
		if err := enc.Encode(ev.Shot); err != nil && writeErr == nil {
			writeErr = err
		}
	})
	defer unsubscribe()

	launch := session.DefaultLaunch()
	launch.Source = opts.LaunchSource
	sess := session.New(
		session.WithLogger(log),
		session.WithSink(shots),
		session.WithLaunch(launch),
		session.WithTrajectoryModel(core.TrajectoryModel{Gravity: core.StandardGravity, AllowReversed: opts.AllowReversed}),
		session.WithAutoResume(true),
		session.WithClock(clock.Now),
	)

	dispatch := pacer.Wrap(func(ctx context.Context, ev events.Event) error {
		summary.Events++
		return sess.Dispatch(ctx, ev)
	})

	err := events.Pump(ctx, events.NewReaderSource(in), dispatch, events.PumpOptions{
		OnError: func(ev events.Event, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			summary.Rejected++
			log.Warn(ctx, "skipping event", logging.String("kind", ev.Kind.String()), logging.Err(err))
			return nil
		},
	})

	snap := sess.Snapshot()
	summary.Shots = snap.Shots
	summary.Failures = snap.Failures
	if err == nil {
		err = writeErr
	}
	return summary, err
}
