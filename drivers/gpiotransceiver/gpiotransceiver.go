// Package gpiotransceiver wraps another olcb.CANDriver with GPIO control
// of a CAN transceiver's STANDBY/ENABLE pin, the kind of chip-enable line
// found on transceivers like the TCAN334 or MCP2551 on a Raspberry Pi hat.
package gpiotransceiver

/*-------------------------------------------------------------------
 *
 * Purpose:  Lets cmd/olcbnode enable the bus transceiver when it opens
 *           the driver and put it in standby when it closes the driver:
 *           the same "key/unkey an output pin around a
 *           transport's active lifetime" shape as a push-to-talk
 *           interface, driven here through
 *           github.com/warthog618/go-gpiocdev's character-device API
 *           since that's what this ecosystem's hats ship drivers for.
 *
 *-----------------------------------------------------------------*/

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/olcb-project/olcb"
)

// Driver wraps an inner olcb.CANDriver and asserts/deasserts a GPIO line
// around the inner driver's lifetime: "enable transceiver, drive bus,
// leave enabled" rather than a key/unkey-per-frame cycle, since a CAN
// transceiver has no TX/RX key cycle, only a standby/active toggle.
type Driver struct {
	inner   olcb.CANDriver
	line    *gpiocdev.Line
	enabled bool
	// activeLow true means driving the line low enables the transceiver,
	// matching the STANDBY-asserted-high convention of most CAN
	// transceivers (a high STANDBY pin powers the driver down).
	activeLow bool
}

// Open acquires chip/offset as an output line and wraps inner. The line
// starts in the enabled state so the node can log in immediately.
func Open(inner olcb.CANDriver, chip string, offset int, activeLow bool) (*Driver, error) {
	initial := 1
	if activeLow {
		initial = 0
	}
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(initial))
	if err != nil {
		return nil, fmt.Errorf("gpiotransceiver: request line %s:%d: %w", chip, offset, err)
	}
	d := &Driver{inner: inner, line: line, enabled: true, activeLow: activeLow}
	return d, nil
}

func (d *Driver) assertedValue(enable bool) int {
	if enable == d.activeLow {
		return 0
	}
	return 1
}

// Enable drives the transceiver's standby pin to its active state.
func (d *Driver) Enable() error {
	if err := d.line.SetValue(d.assertedValue(true)); err != nil {
		return fmt.Errorf("gpiotransceiver: enable: %w", err)
	}
	d.enabled = true
	return nil
}

// Standby drives the transceiver's standby pin to its low-power state.
// While in standby TXReady reports false and Send returns an error
// without reaching the inner driver.
func (d *Driver) Standby() error {
	if err := d.line.SetValue(d.assertedValue(false)); err != nil {
		return fmt.Errorf("gpiotransceiver: standby: %w", err)
	}
	d.enabled = false
	return nil
}

func (d *Driver) TXReady() bool {
	return d.enabled && d.inner.TXReady()
}

func (d *Driver) IsConnected() bool {
	return d.enabled && d.inner.IsConnected()
}

func (d *Driver) Send(f olcb.Frame) error {
	if !d.enabled {
		return fmt.Errorf("gpiotransceiver: transceiver in standby")
	}
	return d.inner.Send(f)
}

// Close releases the GPIO line, leaving the transceiver in standby, then
// closes the inner driver if it supports it.
func (d *Driver) Close() error {
	_ = d.Standby()
	lineErr := d.line.Close()
	if closer, ok := d.inner.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			return err
		}
	}
	return lineErr
}
