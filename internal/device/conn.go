package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/bunchim/archer/internal/events"
)

// Transport names accepted by Open.
const (
	TransportSerial = "serial"
	TransportTCP    = "tcp"
)

const (
	DefaultBaudRate    = 115200
	DefaultDialTimeout = 5 * time.Second
)

// ErrUnsupportedTransport is returned by Open for unknown transports.
var ErrUnsupportedTransport = errors.New("unsupported device transport")

// Config describes how to reach the armband bridge.
type Config struct {
	Transport   string
	Address     string
	BaudRate    int
	DialTimeout time.Duration
}

// Conn is an open bridge connection. Events are read from it as JSON lines
// and device commands are written back on the same stream.
type Conn struct {
	*LineDevice

	rwc       io.ReadWriteCloser
	src       *events.ReaderSource
	transport string
	address   string

	closeOnce sync.Once
	closeErr  error
}

// Open connects to the bridge described by cfg.
func Open(ctx context.Context, cfg Config) (*Conn, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Transport)) {
	case TransportSerial:
		baud := cfg.BaudRate
		if baud <= 0 {
			baud = DefaultBaudRate
		}
		port, err := serial.Open(cfg.Address, &serial.Mode{BaudRate: baud})
		if err != nil {
			return nil, fmt.Errorf("open serial port %s: %w", cfg.Address, err)
		}
		return NewConn(port, TransportSerial, cfg.Address), nil
	case TransportTCP:
		timeout := cfg.DialTimeout
		if timeout <= 0 {
			timeout = DefaultDialTimeout
		}
		d := net.Dialer{Timeout: timeout}
		c, err := d.DialContext(ctx, "tcp", cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", cfg.Address, err)
		}
		return NewConn(c, TransportTCP, cfg.Address), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTransport, cfg.Transport)
	}
}

// NewConn wraps an already open stream.
func NewConn(rwc io.ReadWriteCloser, transport, address string) *Conn {
	return &Conn{
		LineDevice: NewLineDevice(rwc),
		rwc:        rwc,
		src:        events.NewReaderSource(rwc),
		transport:  transport,
		address:    address,
	}
}

// ListPorts returns the serial ports present on this machine.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}

func (c *Conn) Transport() string { return c.transport }
func (c *Conn) Address() string   { return c.address }

// Next implements events.Source.
func (c *Conn) Next(ctx context.Context) (events.Event, error) {
	return c.src.Next(ctx)
}

// Close closes the underlying stream. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.rwc.Close()
	})
	return c.closeErr
}

// Serve pumps events from the connection into h until the stream ends or
// ctx is cancelled. Cancelling ctx closes the connection to unblock reads.
func (c *Conn) Serve(ctx context.Context, h events.Handler, opts events.PumpOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	return events.Pump(ctx, c, h, opts)
}
