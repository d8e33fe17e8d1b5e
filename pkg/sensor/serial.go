package sensor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate matches the firmware UART configuration.
	DefaultBaudRate = 115200
	// DefaultTimeout bounds a single request/reply exchange. The DHT11 needs
	// about 20ms per conversion, the analog channels far less.
	DefaultTimeout = 500 * time.Millisecond

	readChunk   = 64
	pollTimeout = 20 * time.Millisecond
	// drainReads bounds how much leftover input is discarded before a request.
	drainReads = 16
)

// ErrTimeout is returned when the firmware did not answer in time.
var ErrTimeout = errors.New("no reply from device")

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// port is the subset of serial.Port used by the bridge.
type port interface {
	io.ReadWriteCloser
}

// Serial talks to the sensor firmware over a serial line.
//
// Protocol, one request per line:
//
//	A<n>\n  ->  A<n>,<raw>\n            analog channel n
//	C\n     ->  C,<temp>,<humidity>\n   DHT sample, fields may be "nan"
type Serial struct {
	port     string
	baudRate int
	timeout  time.Duration

	open func() (port, error)

	mu        sync.Mutex
	conn      port
	pending   []byte
	connected bool
}

// NewSerial creates a bridge for the given port. Zero values select defaults.
func NewSerial(portName string, baudRate int, timeout time.Duration) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	d := &Serial{
		port:     portName,
		baudRate: baudRate,
		timeout:  timeout,
	}
	d.open = d.openSerial
	return d
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

func (d *Serial) openSerial() (port, error) {
	p, err := serial.Open(d.port, &serial.Mode{BaudRate: d.baudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}
	if err := p.SetReadTimeout(pollTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", d.port, err)
	}
	return p, nil
}

// Connect opens the serial port.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	conn, err := d.open()
	if err != nil {
		return err
	}

	d.conn = conn
	d.pending = d.pending[:0]
	d.connected = true
	return nil
}

// Close closes the serial port.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.Printf("Error closing serial port: %v", err)
		}
		d.conn = nil
	}
	d.connected = false
	return nil
}

// IsConnected returns whether the port is open.
func (d *Serial) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// Analog requests one raw sample of ch.
func (d *Serial) Analog(ctx context.Context, ch Channel) (int, error) {
	r, err := d.request(ctx, fmt.Sprintf("A%d", ch), func(r reply) bool {
		return r.kind == 'A' && r.channel == ch
	})
	if err != nil {
		return 0, err
	}
	return r.raw, nil
}

// Climate requests one DHT sample.
func (d *Serial) Climate(ctx context.Context) (Climate, error) {
	r, err := d.request(ctx, "C", func(r reply) bool { return r.kind == 'C' })
	if err != nil {
		return Climate{}, err
	}
	return r.climate, nil
}

// request sends cmd and waits for the first reply accepted by match.
// Input left from earlier requests is discarded before sending. Lines that
// do not match (boot banners, late replies to a timed out request) are skipped.
func (d *Serial) request(ctx context.Context, cmd string, match func(reply) bool) (reply, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return reply{}, ErrNotConnected
	}

	if err := d.drain(); err != nil {
		return reply{}, err
	}
	if _, err := d.conn.Write([]byte(cmd + "\n")); err != nil {
		return reply{}, fmt.Errorf("failed to send %q: %w", cmd, err)
	}

	deadline := time.Now().Add(d.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	for {
		line, err := d.readLine(ctx, deadline)
		if err != nil {
			return reply{}, fmt.Errorf("%q: %w", cmd, err)
		}
		if line == "" || line[0] != cmd[0] {
			continue
		}
		r, err := parseLine(line)
		if err != nil {
			return reply{}, err
		}
		if match(r) {
			return r, nil
		}
	}
}

// drain drops buffered input until the port has nothing more to read.
func (d *Serial) drain() error {
	d.pending = d.pending[:0]

	buf := make([]byte, readChunk)
	for range drainReads {
		n, err := d.conn.Read(buf)
		if err != nil {
			return fmt.Errorf("failed to read from serial port: %w", err)
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

// readLine returns the next complete line, buffering partial reads.
func (d *Serial) readLine(ctx context.Context, deadline time.Time) (string, error) {
	buf := make([]byte, readChunk)
	for {
		if i := bytes.IndexByte(d.pending, '\n'); i >= 0 {
			line := strings.TrimSpace(string(d.pending[:i]))
			d.pending = d.pending[i+1:]
			return line, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if time.Now().After(deadline) {
			return "", ErrTimeout
		}

		n, err := d.conn.Read(buf)
		if err != nil {
			return "", fmt.Errorf("failed to read from serial port: %w", err)
		}
		d.pending = append(d.pending, buf[:n]...)
	}
}

// reply is a parsed firmware line.
type reply struct {
	kind    byte
	channel Channel
	raw     int
	climate Climate
}

// parseLine parses a reply line from the firmware.
// Formats: A<n>,<raw> and C,<temp>,<humidity>
// Examples: A0,1234 and C,21.5,40.0 and C,nan,nan
func parseLine(line string) (reply, error) {
	if line == "" {
		return reply{}, fmt.Errorf("empty line")
	}

	parts := strings.Split(line, ",")
	switch line[0] {
	case 'A':
		if len(parts) != 2 {
			return reply{}, fmt.Errorf("invalid analog reply: expected 2 comma-separated values, got %d", len(parts))
		}
		ch, err := strconv.Atoi(parts[0][1:])
		if err != nil {
			return reply{}, fmt.Errorf("invalid channel: %w", err)
		}
		raw, err := strconv.Atoi(parts[1])
		if err != nil {
			return reply{}, fmt.Errorf("invalid reading: %w", err)
		}
		return reply{kind: 'A', channel: Channel(ch), raw: raw}, nil

	case 'C':
		if len(parts) != 3 || parts[0] != "C" {
			return reply{}, fmt.Errorf("invalid climate reply: expected 3 comma-separated values, got %d", len(parts))
		}
		// ParseFloat accepts "nan"; the firmware sends it for failed DHT reads.
		temp, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return reply{}, fmt.Errorf("invalid temperature: %w", err)
		}
		hum, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return reply{}, fmt.Errorf("invalid humidity: %w", err)
		}
		return reply{kind: 'C', climate: Climate{Temperature: temp, Humidity: hum}}, nil

	default:
		return reply{}, fmt.Errorf("unknown reply kind %q", line[0])
	}
}
