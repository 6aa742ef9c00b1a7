package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/bunchim/archer/internal/events"
	"github.com/bunchim/archer/internal/logging"
	"github.com/bunchim/archer/internal/session"
	"github.com/bunchim/archer/model"
)

var home = model.LatLng{Latitude: 48.8584, Longitude: 2.2945}

func recording(t *testing.T, evs ...events.Event) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	enc := events.NewEncoder(&buf)
	for _, ev := range evs {
		if err := enc.Encode(ev); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}
	return &buf
}

func shotEvents(base int64) []events.Event {
	return []events.Event{
		events.Pose(base, model.PoseFist),
		events.Acceleration(base+20, model.Vector3{X: 0.5}),
		events.Acceleration(base+40, model.Vector3{X: 0.7}),
		events.Pose(base+60, model.PoseRest),
	}
}

func TestReplayWritesShots(t *testing.T) {
	evs := append([]events.Event{events.Location(1_700_000_000_000, home)}, shotEvents(1_700_000_000_100)...)
	evs = append(evs, shotEvents(1_700_000_001_000)...)
	in := recording(t, evs...)
	in.WriteString("{not an event}\n")

	var out bytes.Buffer
	summary, err := replay(context.Background(), in, &out, logging.Noop(), Options{
		Accelerated:   true,
		LaunchSource:  session.LaunchFixed,
		AllowReversed: true,
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if summary.Shots != 2 || summary.Events != 9 || summary.Rejected != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	var shots []model.Shot
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var shot model.Shot
		if err := json.Unmarshal(sc.Bytes(), &shot); err != nil {
			t.Fatalf("decode shot: %v", err)
		}
		shots = append(shots, shot)
	}
	if len(shots) != 2 {
		t.Fatalf("wrote %d shots, want 2", len(shots))
	}
	if want := time.UnixMilli(1_700_000_000_160); !shots[0].At.Equal(want) {
		t.Fatalf("first shot stamped %v, want replay time %v", shots[0].At, want)
	}
	if shots[0].Source != home {
		t.Fatalf("shot source = %+v, want %+v", shots[0].Source, home)
	}
}

func TestReplayStrictRejectsPlaceholderLaunch(t *testing.T) {
	in := recording(t, append([]events.Event{events.Location(1000, home)}, shotEvents(2000)...)...)

	var out bytes.Buffer
	summary, err := replay(context.Background(), in, &out, logging.Noop(), Options{
		Accelerated:  true,
		LaunchSource: session.LaunchFixed,
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if summary.Shots != 0 || summary.Failures != 1 {
		t.Fatalf("summary = %+v, want one failed flight", summary)
	}
	if out.Len() != 0 {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestReplayRealTimeHonoursSpeed(t *testing.T) {
	in := recording(t, append([]events.Event{events.Location(1000, home)}, shotEvents(1100)...)...)

	start := time.Now()
	summary, err := replay(context.Background(), in, &bytes.Buffer{}, logging.Noop(), Options{
		Speed:         16,
		LaunchSource:  session.LaunchFixed,
		AllowReversed: true,
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if summary.Shots != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Fatalf("real-time replay of 160ms at 16x took %v, expected at least 5ms", elapsed)
	}
}

func TestReplayStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := strings.NewReader(recording(t, shotEvents(1000)...).String())
	if _, err := replay(ctx, in, &bytes.Buffer{}, logging.Noop(), Options{Accelerated: true}); err == nil {
		t.Fatal("expected cancellation error")
	}
}
