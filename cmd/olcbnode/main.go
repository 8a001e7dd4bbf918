// Command olcbnode runs a single OpenLCB node against a CAN transport
// chosen by flag: a real SocketCAN interface, a GridConnect-over-TCP
// hub, or a GridConnect pseudo-terminal for local testing.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/olcb-project/olcb"
	"github.com/olcb-project/olcb/drivers/gpiotransceiver"
	"github.com/olcb-project/olcb/drivers/gridconnect"
	"github.com/olcb-project/olcb/drivers/socketcan"
	"github.com/olcb-project/olcb/internal/nodeconfig"
)

// readLoopFunc is the shape shared by every driver's blocking ReadLoop
// method: feed frames to a sink until the transport closes or errors.
type readLoopFunc func(olcb.FrameSink) error

func main() {
	configPath := pflag.StringP("config", "c", "", "node configuration YAML file (required)")
	verbose := pflag.BoolP("verbose", "v", false, "log every frame sent and received")
	pflag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	if *configPath == "" {
		logger.Fatal("missing required flag", "flag", "--config")
	}

	cfg, err := nodeconfig.Load(*configPath)
	if err != nil {
		logger.Fatal("loading configuration", "err", err)
	}

	nodeID, err := cfg.NodeID()
	if err != nil {
		logger.Fatal("parsing node_id", "err", err)
	}

	params, err := cfg.Params()
	if err != nil {
		logger.Fatal("building node parameters", "err", err)
	}

	driver, readLoop, closeDriver, err := openDriver(cfg, logger)
	if err != nil {
		logger.Fatal("opening driver", "err", err)
	}
	defer closeDriver()

	store := newMemoryStore(64 * 1024)

	stack := olcb.NewStack(olcb.StackConfig{
		PoolSizes:       olcb.DefaultPoolSizes(),
		AliasSlots:      8,
		ReassemblySlots: 4,
		Driver:          driver,
		ConfigMem:       store.callbacks(),
	})

	node := stack.AddNode(nodeID, params)
	logger.Info("node configured", "node_id", nodeID.String(), "manufacturer", params.Manufacturer, "model", params.Model)

	if *verbose {
		logger.SetLevel(log.DebugLevel)
		stack.OnTransmit = func(f olcb.Frame) { logger.Debug("tx", "id", f.ID) }
		stack.OnReceive = func(f olcb.Frame) { logger.Debug("rx", "id", f.ID) }
	}
	stack.OnAliasChange = func(n *olcb.Node, old, new olcb.Alias) {
		logger.Info("alias assigned", "node_id", n.ID.String(), "alias", new)
	}
	stack.OnError = func(err error) { logger.Warn("stack error", "err", err) }

	go func() {
		if err := readLoop(stack.RXFrame); err != nil {
			logger.Error("driver read loop exited", "err", err)
		}
	}()

	runLoop(stack, node, logger)
}

func runLoop(stack *olcb.Stack, node *olcb.Node, logger *log.Logger) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	fast := time.NewTicker(5 * time.Millisecond)
	defer fast.Stop()

	for {
		select {
		case <-ticker.C:
			stack.Tick()
		case <-fast.C:
			stack.RunOnce()
		}
	}
}

// openDriver constructs the configured transport and returns the
// CANDriver the Stack sends through, the underlying transport's read
// loop (unaffected by an optional GPIO wrapper, since a standby pin has
// nothing to do with inbound framing), and a close function that is
// always safe to call.
func openDriver(cfg *nodeconfig.File, logger *log.Logger) (olcb.CANDriver, readLoopFunc, func(), error) {
	var driver olcb.CANDriver
	var readLoop readLoopFunc
	var closer func() error

	switch cfg.Driver.Kind {
	case "socketcan":
		ifname := cfg.Driver.Interface
		if ifname == "" {
			found, err := socketcan.ListInterfaces()
			if err != nil || len(found) == 0 {
				return nil, nil, nil, fmt.Errorf("no interface configured and none discovered via udev: %w", err)
			}
			ifname = found[0]
			logger.Info("discovered can interface via udev", "interface", ifname, "candidates", found)
		}
		d, err := socketcan.Open(ifname)
		if err != nil {
			return nil, nil, nil, err
		}
		driver, readLoop, closer = d, d.ReadLoop, d.Close
	case "gridconnect":
		d, err := gridconnect.Dial(cfg.Driver.Address)
		if err != nil {
			return nil, nil, nil, err
		}
		driver, readLoop, closer = d, d.ReadLoop, d.Close
	case "gridconnect-pty":
		d, path, err := gridconnect.OpenPTY()
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("gridconnect pty ready", "path", path)
		driver, readLoop, closer = d, d.ReadLoop, d.Close
	default:
		d, path, err := gridconnect.OpenPTY()
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Warn("no driver.kind configured, defaulting to a gridconnect pty", "path", path)
		driver, readLoop, closer = d, d.ReadLoop, d.Close
	}

	if cfg.Driver.GPIOChip != "" {
		g, err := gpiotransceiver.Open(driver, cfg.Driver.GPIOChip, cfg.Driver.GPIOLine, false)
		if err != nil {
			return nil, nil, nil, err
		}
		return g, readLoop, func() { g.Close() }, nil
	}

	return driver, readLoop, func() {
		if closer != nil {
			_ = closer()
		}
	}, nil
}
