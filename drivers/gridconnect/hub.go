package gridconnect

/*-------------------------------------------------------------------
 *
 * Purpose:  A GridConnect-over-TCP hub: accepts client connections,
 *           rebroadcasts every frame it sees from one client to all the
 *           others, and announces itself over mDNS/DNS-SD via
 *           github.com/brutella/dnssd, generalized from a single-listener
 *           shape to an arbitrary number of GridConnect clients sharing
 *           one CAN bus.
 *
 *-----------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/brutella/dnssd"
	"github.com/lestrrat-go/strftime"

	"github.com/olcb-project/olcb"
)

const ServiceType = "_openlcb-can._tcp"

// Hub fans out CAN frames between GridConnect TCP clients and the local
// Stack, and optionally logs every frame to a CSV file with
// strftime-formatted timestamps.
type Hub struct {
	mu      sync.Mutex
	clients map[*Driver]struct{}
	logFile *os.File
	tsLayout string
}

// NewHub creates an empty hub. tsLayout is a strftime pattern (e.g.
// "%Y-%m-%d %H:%M:%S") used for the optional CSV log; an empty layout
// falls back to that same pattern. The log itself is switched on by
// EnableLog.
func NewHub(tsLayout string) *Hub {
	return &Hub{clients: make(map[*Driver]struct{}), tsLayout: tsLayout}
}

// EnableLog opens (creating if needed) a CSV file that every subsequent
// frame is appended to, one line per frame: timestamp,direction,id,data.
func (h *Hub) EnableLog(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("gridconnect: open log %s: %w", path, err)
	}
	h.mu.Lock()
	h.logFile = f
	h.mu.Unlock()
	return nil
}

func (h *Hub) logFrame(direction string, f olcb.Frame) {
	h.mu.Lock()
	lf := h.logFile
	layout := h.tsLayout
	h.mu.Unlock()
	if lf == nil {
		return
	}
	if layout == "" {
		layout = "%Y-%m-%d %H:%M:%S"
	}
	ts, err := strftime.Format(layout, time.Now())
	if err != nil {
		ts = time.Now().UTC().String()
	}
	fmt.Fprintf(lf, "%s,%s,%08X,%X\n", ts, direction, f.ID, f.Payload[:f.PayloadCount])
}

// Serve accepts connections on ln until it is closed, spawning one
// goroutine per client that reads frames and rebroadcasts them to every
// other client plus sink (the local Stack's RX entry point).
func (h *Hub) Serve(ln net.Listener, sink olcb.FrameSink) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		d := NewDriver(conn)
		h.mu.Lock()
		h.clients[d] = struct{}{}
		h.mu.Unlock()
		go h.handleClient(d, sink)
	}
}

func (h *Hub) handleClient(d *Driver, sink olcb.FrameSink) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, d)
		h.mu.Unlock()
		d.Close()
	}()
	d.ReadLoop(func(f olcb.Frame) {
		h.logFrame("rx", f)
		h.Broadcast(f, d)
		sink(f)
	})
}

// Broadcast sends f to every connected client except exclude (typically
// the one it arrived from).
func (h *Hub) Broadcast(f olcb.Frame, exclude *Driver) {
	h.mu.Lock()
	targets := make([]*Driver, 0, len(h.clients))
	for d := range h.clients {
		if d != exclude {
			targets = append(targets, d)
		}
	}
	h.mu.Unlock()
	h.logFrame("tx", f)
	for _, d := range targets {
		d.Send(f)
	}
}

// Announce registers the hub as an mDNS/DNS-SD service so GridConnect
// clients on the local network can discover it without a hardcoded
// address.
func Announce(ctx context.Context, name string, port int) error {
	cfg := dnssd.Config{
		Name: name,
		Type: ServiceType,
		Port: port,
	}
	sv, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("gridconnect: dnssd.NewService: %w", err)
	}
	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("gridconnect: dnssd.NewResponder: %w", err)
	}
	if _, err := rp.Add(sv); err != nil {
		return fmt.Errorf("gridconnect: responder.Add: %w", err)
	}
	go rp.Respond(ctx)
	return nil
}
