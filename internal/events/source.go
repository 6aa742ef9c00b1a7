package events

import (
	"context"
	"errors"
	"io"
)

// Source yields events in arrival order. Next returns io.EOF once the
// source is exhausted.
type Source interface {
	Next(ctx context.Context) (Event, error)
}

// Handler consumes one event to completion.
type Handler func(ctx context.Context, ev Event) error

// ReaderSource decodes JSON-lines events from a reader.
type ReaderSource struct {
	dec *Decoder
}

// NewReaderSource wraps r in a JSON-lines Source.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{dec: NewDecoder(r)}
}

// Next implements Source. The underlying read is not interruptible; close
// the reader to unblock it.
func (s *ReaderSource) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	return s.dec.Decode()
}

// SliceSource replays a fixed list of events.
type SliceSource struct {
	events []Event
	pos    int
}

// NewSliceSource returns a Source over evs.
func NewSliceSource(evs ...Event) *SliceSource {
	return &SliceSource{events: evs}
}

// Next implements Source.
func (s *SliceSource) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	if s.pos >= len(s.events) {
		return Event{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

// ChanSource reads events from a channel until it is closed.
type ChanSource <-chan Event

// Next implements Source.
func (c ChanSource) Next(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case ev, ok := <-c:
		if !ok {
			return Event{}, io.EOF
		}
		return ev, nil
	}
}

// PumpOptions tunes Pump.
type PumpOptions struct {
	// OnError receives decode and handler errors. Returning a non-nil
	// error stops the pump with that error. When nil, errors are skipped.
	OnError func(ev Event, err error) error
}

// Pump feeds every event from src to h, one at a time, until src is
// exhausted (nil is returned), ctx is cancelled, or OnError asks to stop.
// Events whose payload fails Validate are reported but not dispatched.
func Pump(ctx context.Context, src Source, h Handler, opts PumpOptions) error {
	report := func(ev Event, err error) error {
		if opts.OnError == nil {
			return nil
		}
		return opts.OnError(ev, err)
	}

	for {
		ev, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if errors.Is(err, ErrInvalidEvent) {
				if stop := report(ev, err); stop != nil {
					return stop
				}
				continue
			}
			return err
		}
		if err := ev.Validate(); err != nil {
			if stop := report(ev, err); stop != nil {
				return stop
			}
			continue
		}
		if err := h(ctx, ev); err != nil {
			if stop := report(ev, err); stop != nil {
				return stop
			}
		}
	}
}
