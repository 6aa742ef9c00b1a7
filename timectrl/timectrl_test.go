package timectrl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bunchim/archer/internal/events"
	"github.com/bunchim/archer/model"
)

func TestTimeControllerSetTime(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, RealTime)

	newNow := start.Add(42 * time.Second)
	tc.SetTime(newNow)

	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestTimeControllerStartUpdatesNow(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 5*time.Millisecond, Accelerated)

	var ticks int
	tc.AddListener(func(time.Time) { ticks++ })

	done := tc.Start(context.Background(), 15*time.Millisecond)
	<-done

	expected := start.Add(15 * time.Millisecond)
	if got := tc.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
	if ticks != 3 {
		t.Fatalf("listener called %d times, want 3", ticks)
	}
}

func TestTimeControllerStartStopsOnCancel(t *testing.T) {
	tc := NewTimeController(time.Unix(0, 0), time.Hour, RealTime)
	ctx, cancel := context.WithCancel(context.Background())
	done := tc.Start(ctx, 0)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not stop after cancel")
	}
}

func TestAfterFiresWhenClockAdvances(t *testing.T) {
	start := time.Unix(100, 0)
	tc := NewTimeController(start, time.Second, Accelerated)

	late := tc.After(10 * time.Second)
	early := tc.After(2 * time.Second)

	tc.Advance(start.Add(5 * time.Second))
	select {
	case got := <-early:
		if !got.Equal(start.Add(5 * time.Second)) {
			t.Fatalf("early fired at %v", got)
		}
	default:
		t.Fatal("early timer did not fire")
	}
	select {
	case <-late:
		t.Fatal("late timer fired too soon")
	default:
	}

	tc.SetTime(start.Add(20 * time.Second))
	select {
	case <-late:
	default:
		t.Fatal("late timer did not fire after SetTime")
	}

	select {
	case <-tc.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
}

func TestAdvanceIgnoresBackwardsTime(t *testing.T) {
	start := time.Unix(100, 0)
	tc := NewTimeController(start, time.Second, Accelerated)
	calls := 0
	tc.AddListener(func(time.Time) { calls++ })

	tc.Advance(start.Add(-time.Second))
	if !tc.Now().Equal(start) || calls != 0 {
		t.Fatalf("Now() = %v calls=%d after backwards advance", tc.Now(), calls)
	}
}

func TestPacerRealTimeWaitsScaledGaps(t *testing.T) {
	tc := NewTimeController(time.Time{}, 0, RealTime)
	var waits []time.Duration
	p := NewPacer(tc, WithSpeed(2), WithSleep(func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}))

	var seen []int64
	h := p.Wrap(func(_ context.Context, ev events.Event) error {
		seen = append(seen, tc.Now().UnixMilli())
		return nil
	})

	src := events.NewSliceSource(
		events.Pose(1000, model.PoseFist),
		events.Acceleration(1400, model.Vector3{X: 1}),
		events.Acceleration(1400, model.Vector3{X: 2}),
		events.Pose(2400, model.PoseRest),
	)
	if err := events.Pump(context.Background(), src, h, events.PumpOptions{}); err != nil {
		t.Fatalf("Pump: %v", err)
	}

	want := []time.Duration{200 * time.Millisecond, 500 * time.Millisecond}
	if len(waits) != len(want) {
		t.Fatalf("waits = %v, want %v", waits, want)
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Fatalf("waits = %v, want %v", waits, want)
		}
	}
	if len(seen) != 4 || seen[0] != 1000 || seen[3] != 2400 {
		t.Fatalf("clock seen by handler = %v", seen)
	}
}

func TestPacerAcceleratedNeverSleeps(t *testing.T) {
	tc := NewTimeController(time.Time{}, 0, Accelerated)
	p := NewPacer(tc, WithSleep(func(context.Context, time.Duration) error {
		t.Fatal("sleep called in accelerated mode")
		return nil
	}))
	h := p.Wrap(func(context.Context, events.Event) error { return nil })
	for _, ts := range []int64{10, 5000, 90000} {
		if err := h(context.Background(), events.Pose(ts, model.PoseRest)); err != nil {
			t.Fatalf("handler: %v", err)
		}
	}
	if got := tc.Now().UnixMilli(); got != 90000 {
		t.Fatalf("Now() = %d, want 90000", got)
	}
}

func TestPacerStopsOnCancel(t *testing.T) {
	tc := NewTimeController(time.Time{}, 0, RealTime)
	p := NewPacer(tc)
	called := 0
	h := p.Wrap(func(context.Context, events.Event) error { called++; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	if err := h(ctx, events.Pose(1000, model.PoseRest)); err != nil {
		t.Fatalf("first event: %v", err)
	}
	cancel()
	if err := h(ctx, events.Pose(3_600_000, model.PoseRest)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if called != 1 {
		t.Fatalf("handler called %d times, want 1", called)
	}
}
