// Package gridconnect implements olcb.CANDriver over the ASCII
// "GridConnect" protocol (":XXXXXXXXXN<hex data>;"), the common wire
// format for USB and TCP CAN adapters in the LCC/OpenLCB ecosystem.
package gridconnect

/*-------------------------------------------------------------------
 *
 * Purpose:  A software CAN transport usable without real hardware: a hub
 *           listens on a TCP port (or offers a pseudo-terminal) and
 *           speaks GridConnect ASCII framing to each client, echoing
 *           every frame to every other connected client -- the same
 *           one-to-many TCP/PTY fan-out shape used for a software modem
 *           pair, here carrying GridConnect ASCII framing instead of a
 *           link-layer byte stream. The PTY side is built on
 *           github.com/creack/pty.
 *
 *-----------------------------------------------------------------*/

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/creack/pty"

	"github.com/olcb-project/olcb"
)

// Driver speaks GridConnect framing over a single io.ReadWriteCloser
// (a TCP connection, or one end of a pseudo-terminal).
type Driver struct {
	conn io.ReadWriteCloser
	w    *bufio.Writer
	mu   sync.Mutex
	up   bool
}

// NewDriver wraps an already-open connection.
func NewDriver(conn io.ReadWriteCloser) *Driver {
	return &Driver{conn: conn, w: bufio.NewWriter(conn), up: true}
}

// Dial connects to a GridConnect-over-TCP hub at addr.
func Dial(addr string) (*Driver, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("gridconnect: dial %s: %w", addr, err)
	}
	return NewDriver(conn), nil
}

// OpenPTY allocates a pseudo-terminal pair and returns a Driver bound to
// the master side; the slave's path is returned so a second process (or
// test harness) can open it.
func OpenPTY() (*Driver, string, error) {
	ptmx, pts, err := pty.Open()
	if err != nil {
		return nil, "", fmt.Errorf("gridconnect: pty.Open: %w", err)
	}
	return NewDriver(ptmx), pts.Name(), nil
}

func (d *Driver) TXReady() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.up
}

func (d *Driver) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.up
}

// Encode renders one frame as a GridConnect ASCII line, e.g.
// ":X195B4123N0102030405060708;\n" for an extended-frame identifier with
// 8 data bytes.
func Encode(f olcb.Frame) string {
	var b strings.Builder
	b.WriteString(":X")
	fmt.Fprintf(&b, "%08X", f.ID)
	b.WriteByte('N')
	for i := 0; i < f.PayloadCount; i++ {
		fmt.Fprintf(&b, "%02X", f.Payload[i])
	}
	b.WriteString(";\n")
	return b.String()
}

// Decode parses one GridConnect ASCII line (without trailing newline) into
// a Frame. Only the extended-frame ("X") form is accepted; standard (11-
// bit) frames never appear on an OpenLCB bus.
func Decode(line string) (olcb.Frame, error) {
	line = strings.TrimSpace(line)
	if len(line) < 2 || line[0] != ':' || (line[1] != 'X' && line[1] != 'x') {
		return olcb.Frame{}, fmt.Errorf("gridconnect: not an extended-frame line: %q", line)
	}
	line = strings.TrimSuffix(line, ";")
	nIdx := strings.IndexByte(line, 'N')
	if nIdx < 0 {
		nIdx = strings.IndexByte(line, 'n')
	}
	if nIdx < 0 {
		return olcb.Frame{}, fmt.Errorf("gridconnect: missing N separator: %q", line)
	}
	idHex := line[2:nIdx]
	id, err := strconv.ParseUint(idHex, 16, 32)
	if err != nil {
		return olcb.Frame{}, fmt.Errorf("gridconnect: bad identifier %q: %w", idHex, err)
	}
	dataHex := line[nIdx+1:]
	if len(dataHex)%2 != 0 {
		return olcb.Frame{}, fmt.Errorf("gridconnect: odd hex digit count: %q", dataHex)
	}
	var f olcb.Frame
	f.ID = uint32(id)
	for i := 0; i*2 < len(dataHex) && i < 8; i++ {
		b, err := strconv.ParseUint(dataHex[i*2:i*2+2], 16, 8)
		if err != nil {
			return olcb.Frame{}, fmt.Errorf("gridconnect: bad data byte %q: %w", dataHex[i*2:i*2+2], err)
		}
		f.Payload[i] = byte(b)
		f.PayloadCount++
	}
	return f, nil
}

// Send writes one frame in GridConnect ASCII form.
func (d *Driver) Send(f olcb.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.up {
		return fmt.Errorf("gridconnect: driver closed")
	}
	if _, err := d.w.WriteString(Encode(f)); err != nil {
		d.up = false
		return err
	}
	return d.w.Flush()
}

// ReadLoop reads lines from the connection, decodes each as a frame, and
// calls sink. A malformed line is skipped rather than treated as fatal,
// since a flaky serial link can corrupt a byte or two without severing the
// connection.
func (d *Driver) ReadLoop(sink olcb.FrameSink) error {
	r := bufio.NewReader(d.conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			d.mu.Lock()
			d.up = false
			d.mu.Unlock()
			return err
		}
		f, decodeErr := Decode(line)
		if decodeErr != nil {
			continue
		}
		sink(f)
	}
}

// Close shuts down the underlying connection.
func (d *Driver) Close() error {
	d.mu.Lock()
	d.up = false
	d.mu.Unlock()
	return d.conn.Close()
}
