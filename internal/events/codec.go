package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// maxLineBytes bounds a single encoded event.
const maxLineBytes = 64 * 1024

// Decoder reads newline-delimited JSON events. Blank lines and lines
// starting with '#' are skipped.
type Decoder struct {
	scanner *bufio.Scanner
	line    int
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)
	return &Decoder{scanner: sc}
}

// Decode returns the next event, or io.EOF when the input is exhausted.
// Malformed lines return an error wrapping ErrInvalidEvent; decoding may
// continue afterwards.
func (d *Decoder) Decode() (Event, error) {
	for d.scanner.Scan() {
		d.line++
		line := bytes.TrimSpace(d.scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return Event{}, fmt.Errorf("%w: line %d: %v", ErrInvalidEvent, d.line, err)
		}
		if err := ev.Validate(); err != nil {
			return Event{}, fmt.Errorf("line %d: %w", d.line, err)
		}
		return ev, nil
	}
	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

// Encoder writes events as newline-delimited JSON.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes ev followed by a newline.
func (e *Encoder) Encode(ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = e.w.Write(b)
	return err
}
