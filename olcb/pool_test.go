package olcb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAllocateExhaustionAndRelease(t *testing.T) {
	p := NewPool[BasicPayload](PayloadBasic, 2)

	a := p.Allocate()
	require.NotNil(t, a)
	b := p.Allocate()
	require.NotNil(t, b)
	assert.Nil(t, p.Allocate(), "pool of size 2 should refuse a third allocation")

	cur, peak := p.Telemetry()
	assert.Equal(t, 2, cur)
	assert.Equal(t, 2, peak)

	a.Free()
	cur, peak = p.Telemetry()
	assert.Equal(t, 1, cur)
	assert.Equal(t, 2, peak, "peak should not drop when occupancy drops")

	c := p.Allocate()
	require.NotNil(t, c)
}

func TestMessageRefcounting(t *testing.T) {
	p := NewPool[BasicPayload](PayloadBasic, 1)
	m := p.Allocate()
	require.NotNil(t, m)

	m.IncRef()
	assert.Equal(t, uint8(2), m.Refcount())

	m.Free()
	assert.True(t, m.Allocated(), "message should still be live after one of two refs is dropped")

	m.Free()
	assert.False(t, m.Allocated())

	// Freeing an already-free message must be a no-op, not a crash.
	m.Free()
	assert.False(t, m.Allocated())
}

func TestAllocateZeroesPreviousContents(t *testing.T) {
	p := NewPool[BasicPayload](PayloadBasic, 1)
	m := p.Allocate()
	copy(m.Bytes(), []byte{1, 2, 3})
	m.Free()

	m2 := p.Allocate()
	for _, b := range m2.Bytes() {
		assert.Zero(t, b)
	}
}

func TestPoolsAllocateDispatchesByClass(t *testing.T) {
	pools := NewPools(PoolSizes{Basic: 1, Datagram: 1, SNIP: 1, Stream: 1})
	for _, class := range []PayloadType{PayloadBasic, PayloadDatagram, PayloadSNIP, PayloadStream} {
		m := pools.Allocate(class)
		require.NotNil(t, m)
		assert.Equal(t, class, m.Class())
		assert.Equal(t, CapacityFor(class), m.Cap())
	}
}
