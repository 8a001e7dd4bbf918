// Package socketcan implements olcb.CANDriver over a Linux SocketCAN
// (AF_CAN/CAN_RAW) interface.
package socketcan

/*-------------------------------------------------------------------
 *
 * Purpose:  A real hardware CAN transport for cmd/olcbnode, built
 *           directly on golang.org/x/sys/unix's raw-socket calls rather
 *           than a TCP listener. An extended (29-bit) frame on the wire
 *           is exactly olcb.Frame plus the kernel's can_frame padding.
 *
 *-----------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/olcb-project/olcb"
)

const (
	canEffFlag = 0x80000000 // extended frame format
	canFrameSize = 16 // struct can_frame: u32 id, u8 len, u8[3] pad, u8[8] data
)

// Driver is a SocketCAN CANDriver. It is safe to call Send from one
// goroutine while another drains RX via ReadLoop; the kernel socket
// itself serializes access.
type Driver struct {
	fd   int
	mu   sync.Mutex
	up   bool
}

// Open binds a raw CAN socket to the named interface (e.g. "can0" or
// "vcan0").
func Open(ifname string) (*Driver, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("socketcan: socket: %w", err)
	}
	ifi, err := unix.IfNameIndex()
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("socketcan: interface lookup: %w", err)
	}
	var idx uint32
	for _, e := range ifi {
		if e.Name == ifname {
			idx = e.Index
			break
		}
	}
	if idx == 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("socketcan: no such interface %q", ifname)
	}
	addr := &unix.SockaddrCAN{Ifindex: int(idx)}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("socketcan: bind: %w", err)
	}
	return &Driver{fd: fd, up: true}, nil
}

// TXReady reports whether the socket is still open; SocketCAN needs no
// other readiness check: the kernel's own TX queue absorbs backpressure,
// and Send blocks (briefly) rather than needing a poll.
func (d *Driver) TXReady() bool { return d.up }

// IsConnected reports whether the socket is still open.
func (d *Driver) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.up
}

// Send writes one frame to the CAN bus.
func (d *Driver) Send(f olcb.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.up {
		return fmt.Errorf("socketcan: driver closed")
	}
	var raw [canFrameSize]byte
	binary.LittleEndian.PutUint32(raw[0:4], f.ID|canEffFlag)
	raw[4] = byte(f.PayloadCount)
	copy(raw[8:8+f.PayloadCount], f.Payload[:f.PayloadCount])
	_, err := unix.Write(d.fd, raw[:])
	return err
}

// ReadLoop blocks reading frames from the socket and calls sink for each
// one, until the driver is closed or the socket errors. Run it in its own
// goroutine.
func (d *Driver) ReadLoop(sink olcb.FrameSink) error {
	var raw [canFrameSize]byte
	for {
		n, err := unix.Read(d.fd, raw[:])
		if err != nil {
			d.mu.Lock()
			d.up = false
			d.mu.Unlock()
			return err
		}
		if n < canFrameSize {
			continue
		}
		id := binary.LittleEndian.Uint32(raw[0:4])
		if id&canEffFlag == 0 {
			continue // standard-frame traffic never appears on an OpenLCB bus
		}
		length := int(raw[4])
		if length > 8 {
			length = 8
		}
		var f olcb.Frame
		f.ID = id &^ canEffFlag
		f.PayloadCount = length
		copy(f.Payload[:], raw[8:8+length])
		sink(f)
	}
}

// Close shuts down the socket.
func (d *Driver) Close() error {
	d.mu.Lock()
	d.up = false
	d.mu.Unlock()
	return unix.Close(d.fd)
}
