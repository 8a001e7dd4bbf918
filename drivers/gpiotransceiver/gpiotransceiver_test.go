package gpiotransceiver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/olcb-project/olcb"
)

type fakeInner struct {
	ready     bool
	connected bool
	sent      []olcb.Frame
}

func (f *fakeInner) TXReady() bool     { return f.ready }
func (f *fakeInner) IsConnected() bool { return f.connected }
func (f *fakeInner) Send(fr olcb.Frame) error {
	f.sent = append(f.sent, fr)
	return nil
}

func TestAssertedValueActiveHigh(t *testing.T) {
	d := &Driver{activeLow: false}
	assert.Equal(t, 1, d.assertedValue(true), "enable on an active-high transceiver drives the line high")
	assert.Equal(t, 0, d.assertedValue(false))
}

func TestAssertedValueActiveLow(t *testing.T) {
	d := &Driver{activeLow: true}
	assert.Equal(t, 0, d.assertedValue(true), "enable on an active-low transceiver drives the line low")
	assert.Equal(t, 1, d.assertedValue(false))
}

func TestTXReadyFalseWhenNotEnabled(t *testing.T) {
	inner := &fakeInner{ready: true, connected: true}
	d := &Driver{inner: inner, enabled: false}
	assert.False(t, d.TXReady())
	assert.False(t, d.IsConnected())
}

func TestTXReadyDefersToInnerWhenEnabled(t *testing.T) {
	inner := &fakeInner{ready: false, connected: true}
	d := &Driver{inner: inner, enabled: true}
	assert.False(t, d.TXReady(), "enabled but the inner transport isn't ready")

	inner.ready = true
	assert.True(t, d.TXReady())
}

func TestSendRefusedInStandby(t *testing.T) {
	inner := &fakeInner{ready: true, connected: true}
	d := &Driver{inner: inner, enabled: false}
	err := d.Send(olcb.Frame{ID: 0x123})
	assert.Error(t, err)
	assert.Empty(t, inner.sent)
}

func TestSendForwardedWhenEnabled(t *testing.T) {
	inner := &fakeInner{ready: true, connected: true}
	d := &Driver{inner: inner, enabled: true}
	f := olcb.Frame{ID: 0x456, PayloadCount: 2}
	a := assert.New(t)
	a.NoError(d.Send(f))
	a.Len(inner.sent, 1)
	a.Equal(f.ID, inner.sent[0].ID)
}
