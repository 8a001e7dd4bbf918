// Command olcbhub runs a GridConnect-over-TCP hub, optionally bridging
// frames to a real SocketCAN interface and announcing itself over
// mDNS/DNS-SD so GridConnect clients can find it without a hardcoded
// address.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/olcb-project/olcb"
	"github.com/olcb-project/olcb/drivers/gridconnect"
	"github.com/olcb-project/olcb/drivers/socketcan"
)

func main() {
	listenAddr := pflag.StringP("listen", "l", ":12021", "TCP address to listen for GridConnect clients on")
	canIface := pflag.StringP("can-interface", "i", "", "bridge to this SocketCAN interface (e.g. can0); empty disables the bridge")
	serviceName := pflag.StringP("name", "n", "olcbhub", "mDNS/DNS-SD service instance name")
	noAnnounce := pflag.Bool("no-announce", false, "disable mDNS/DNS-SD announcement")
	logPath := pflag.String("log", "", "CSV frame log path; empty disables logging")
	pflag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		logger.Fatal("listening", "addr", *listenAddr, "err", err)
	}
	logger.Info("listening for GridConnect clients", "addr", ln.Addr().String())

	hub := gridconnect.NewHub("%Y-%m-%d %H:%M:%S")
	if *logPath != "" {
		if err := hub.EnableLog(*logPath); err != nil {
			logger.Fatal("enabling frame log", "err", err)
		}
		logger.Info("logging frames", "path", *logPath)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !*noAnnounce {
		announce(ctx, ln, *serviceName, logger)
	}

	// toCAN is nil unless a SocketCAN bridge is active; every TCP-client
	// frame the hub sees is forwarded to it as well as to other clients.
	var toCAN func(olcb.Frame)
	if *canIface != "" {
		toCAN = bridgeSocketCAN(hub, *canIface, logger)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	err = hub.Serve(ln, func(f olcb.Frame) {
		if toCAN != nil {
			toCAN(f)
		}
	})
	if err != nil {
		logger.Info("hub stopped", "err", err)
	}
}

func announce(ctx context.Context, ln net.Listener, name string, logger *log.Logger) {
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		logger.Warn("parsing listen port for announcement", "err", err)
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		logger.Warn("parsing listen port for announcement", "err", err)
		return
	}
	if err := gridconnect.Announce(ctx, name, port); err != nil {
		logger.Warn("dns-sd announce failed", "err", err)
		return
	}
	logger.Info("announced via mdns/dns-sd", "service", name, "type", gridconnect.ServiceType)
}

// bridgeSocketCAN opens a real CAN interface, forwards every frame it
// sees to every GridConnect TCP client, and returns the function the hub
// should call with a frame arriving from a TCP client so it reaches the
// physical bus too.
func bridgeSocketCAN(hub *gridconnect.Hub, iface string, logger *log.Logger) func(olcb.Frame) {
	d, err := socketcan.Open(iface)
	if err != nil {
		logger.Fatal("opening socketcan interface", "interface", iface, "err", err)
	}
	logger.Info("bridging to socketcan interface", "interface", iface)

	go func() {
		err := d.ReadLoop(func(f olcb.Frame) {
			hub.Broadcast(f, nil)
		})
		logger.Error("socketcan read loop exited", "err", err)
	}()

	return func(f olcb.Frame) {
		if err := d.Send(f); err != nil {
			logger.Warn("forwarding frame to socketcan", "err", err)
		}
	}
}
