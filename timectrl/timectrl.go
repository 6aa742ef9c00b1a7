// Package timectrl drives replay time for recorded armband sessions.
package timectrl

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bunchim/archer/internal/events"
)

// Clock is the read side of a TimeController. Components that stamp
// outputs during a replay depend on it instead of the wall clock.
type Clock interface {
	// Now returns the current replay time.
	Now() time.Time
	// After returns a channel that receives the replay time once d has
	// elapsed in replay time.
	After(d time.Duration) <-chan time.Time
}

// Mode describes how a Pacer spaces out replayed events.
type Mode int

const (
	// RealTime waits out the recorded gap between events, divided by Speed.
	RealTime Mode = iota
	// Accelerated delivers events back to back while still advancing the clock.
	Accelerated
)

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

type waiter struct {
	at time.Time
	ch chan time.Time
}

// TimeController holds the current replay time and notifies listeners
// whenever it advances.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time
	listeners   []func(time.Time)
	waiters     []waiter
}

// NewTimeController constructs a controller positioned at start.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current replay time.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// After returns a channel that fires once replay time reaches Now()+d.
// A non-positive d fires immediately.
func (tc *TimeController) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	tc.mu.Lock()
	defer tc.mu.Unlock()
	at := tc.currentTime.Add(d)
	if d <= 0 {
		ch <- tc.currentTime
		return ch
	}
	tc.waiters = append(tc.waiters, waiter{at: at, ch: ch})
	sort.SliceStable(tc.waiters, func(i, j int) bool { return tc.waiters[i].at.Before(tc.waiters[j].at) })
	return ch
}

// SetTime jumps the clock to t without notifying listeners. Pending
// After channels whose deadline has passed still fire.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	tc.currentTime = t
	due := tc.takeDueLocked(t)
	tc.mu.Unlock()
	fire(due, t)
}

// Advance moves the clock to t and notifies every listener. Moving
// backwards is ignored.
func (tc *TimeController) Advance(t time.Time) {
	tc.mu.Lock()
	if t.Before(tc.currentTime) {
		tc.mu.Unlock()
		return
	}
	tc.currentTime = t
	due := tc.takeDueLocked(t)
	listeners := append([]func(time.Time){}, tc.listeners...)
	tc.mu.Unlock()

	fire(due, t)
	for _, fn := range listeners {
		fn(t)
	}
}

// AddListener registers a callback invoked on every advance.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

func (tc *TimeController) takeDueLocked(t time.Time) []waiter {
	n := 0
	for n < len(tc.waiters) && !tc.waiters[n].at.After(t) {
		n++
	}
	due := tc.waiters[:n:n]
	tc.waiters = tc.waiters[n:]
	return due
}

func fire(due []waiter, t time.Time) {
	for _, w := range due {
		w.ch <- t
	}
}

// Start advances the clock by Tick for the given duration in a separate
// goroutine. In RealTime mode each step waits one Tick of wall time. It
// returns a channel that is closed when the run finishes or ctx is done.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		tc.SetTime(tc.StartTime)
		simTime := tc.StartTime
		elapsed := time.Duration(0)

		var ticker *time.Ticker
		if tc.Mode == RealTime {
			ticker = time.NewTicker(tc.Tick)
			defer ticker.Stop()
		}

		for duration <= 0 || elapsed < duration {
			if ticker != nil {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			} else if ctx.Err() != nil {
				return
			}
			simTime = simTime.Add(tc.Tick)
			elapsed += tc.Tick
			tc.Advance(simTime)
		}
	}()
	return done
}

// Pacer replays recorded events against a TimeController, sleeping
// between them according to the controller's Mode.
type Pacer struct {
	clock *TimeController
	speed float64
	sleep func(ctx context.Context, d time.Duration) error

	mu   sync.Mutex
	last int64
}

// PacerOption customises a Pacer.
type PacerOption func(*Pacer)

// WithSpeed scales recorded gaps in RealTime mode. 2 replays twice as fast.
// Non-positive values are ignored.
func WithSpeed(speed float64) PacerOption {
	return func(p *Pacer) {
		if speed > 0 {
			p.speed = speed
		}
	}
}

// WithSleep replaces the wall-clock wait, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) PacerOption {
	return func(p *Pacer) {
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// NewPacer builds a Pacer that advances clock.
func NewPacer(clock *TimeController, opts ...PacerOption) *Pacer {
	p := &Pacer{clock: clock, speed: 1, sleep: sleepContext}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wrap returns a handler that waits until each event is due, advances the
// clock to the event's timestamp and then calls next. Events without a
// timestamp are passed through immediately.
func (p *Pacer) Wrap(next events.Handler) events.Handler {
	return func(ctx context.Context, ev events.Event) error {
		if ev.Timestamp > 0 {
			if err := p.wait(ctx, ev.Timestamp); err != nil {
				return err
			}
			p.clock.Advance(time.UnixMilli(ev.Timestamp).UTC())
		}
		return next(ctx, ev)
	}
}

func (p *Pacer) wait(ctx context.Context, ts int64) error {
	p.mu.Lock()
	prev := p.last
	if ts > p.last {
		p.last = ts
	}
	p.mu.Unlock()

	if prev == 0 {
		p.clock.SetTime(time.UnixMilli(ts).UTC())
		return nil
	}
	if p.clock.Mode != RealTime || ts <= prev {
		return ctx.Err()
	}
	gap := time.Duration(float64(time.Duration(ts-prev)*time.Millisecond) / p.speed)
	return p.sleep(ctx, gap)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
