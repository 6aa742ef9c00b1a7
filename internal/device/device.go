// Package device holds the armband collaborator that performs unlock and
// user-action requests, plus the serial/TCP bridge that carries events in
// and commands out.
package device

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/bunchim/archer/internal/logging"
	"github.com/bunchim/archer/model"
)

// Device performs requests on the physical armband. Implementations must be
// safe for concurrent use.
type Device interface {
	Unlock(ctx context.Context, kind model.UnlockType) error
	NotifyUserAction(ctx context.Context) error
}

// Command names written by LineDevice.
const (
	CommandUnlock           = "UNLOCK"
	CommandNotifyUserAction = "NOTIFY_USER_ACTION"
)

// Command is one outbound request encoded as a JSON line.
type Command struct {
	Command string            `json:"command"`
	Unlock  *model.UnlockType `json:"unlock,omitempty"`
}

// LogDevice only logs requests. It stands in when no bridge is attached.
type LogDevice struct {
	log logging.Logger
}

// NewLogDevice returns a Device that logs at debug level.
func NewLogDevice(log logging.Logger) *LogDevice {
	if log == nil {
		log = logging.Noop()
	}
	return &LogDevice{log: log}
}

func (d *LogDevice) Unlock(ctx context.Context, kind model.UnlockType) error {
	d.log.Debug(ctx, "device unlock", logging.String("unlock", kind.String()))
	return nil
}

func (d *LogDevice) NotifyUserAction(ctx context.Context) error {
	d.log.Debug(ctx, "device notify user action")
	return nil
}

// LineDevice writes commands as newline-delimited JSON to w.
type LineDevice struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineDevice returns a Device writing commands to w.
func NewLineDevice(w io.Writer) *LineDevice {
	return &LineDevice{w: w}
}

func (d *LineDevice) Unlock(_ context.Context, kind model.UnlockType) error {
	return d.write(Command{Command: CommandUnlock, Unlock: &kind})
}

func (d *LineDevice) NotifyUserAction(_ context.Context) error {
	return d.write(Command{Command: CommandNotifyUserAction})
}

func (d *LineDevice) write(cmd Command) error {
	b, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err = d.w.Write(b)
	return err
}

// Call is one request captured by Recorder.
type Call struct {
	Command string
	Unlock  model.UnlockType
}

// Recorder captures requests in order. Useful in tests.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
	// Err, when set, is returned from every request.
	Err error
}

func (r *Recorder) Unlock(_ context.Context, kind model.UnlockType) error {
	r.record(Call{Command: CommandUnlock, Unlock: kind})
	return r.Err
}

func (r *Recorder) NotifyUserAction(context.Context) error {
	r.record(Call{Command: CommandNotifyUserAction})
	return r.Err
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

// Calls returns a copy of the captured requests.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Reset discards captured requests.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}
