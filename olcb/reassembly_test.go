package olcb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReassembleBasicSingleFrame(t *testing.T) {
	pools := NewPools(PoolSizes{Basic: 2, Datagram: 2, SNIP: 1, Stream: 1})
	r := NewReassembler(4)

	payload := [8]byte{FramingOnly, 1, 2, 3}
	m, err := r.ReassembleGlobalOrAddressed(pools, Frame{Payload: payload, PayloadCount: 4}, MTIVerifiedNodeID, Alias(0x123))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 3, m.Hdr().PayloadCount)
	assert.Equal(t, []byte{1, 2, 3}, m.Bytes()[:3])
}

// A PC-Event-Report-With-Payload is the one global MTI whose payload can
// exceed the 8-byte Basic pool's capacity, so it must reassemble into a
// Datagram-class buffer instead of silently truncating at 7 data bytes
// per frame.
func TestReassembleGlobalPCEventReportPayloadUsesDatagramClass(t *testing.T) {
	pools := NewPools(PoolSizes{Basic: 2, Datagram: 2, SNIP: 1, Stream: 1})
	r := NewReassembler(4)

	want := make([]byte, 20)
	for i := range want {
		want[i] = byte(i + 1)
	}
	remaining := want

	var first [8]byte
	first[0] = FramingFirst
	n := copy(first[1:], remaining)
	remaining = remaining[n:]
	m, err := r.ReassembleGlobalOrAddressed(pools, Frame{Payload: first, PayloadCount: 1 + n}, MTIPCEventReportPayload, Alias(0x123))
	require.NoError(t, err)
	assert.Nil(t, m)

	var mid [8]byte
	mid[0] = FramingMiddle
	n = copy(mid[1:], remaining)
	remaining = remaining[n:]
	m, err = r.ReassembleGlobalOrAddressed(pools, Frame{Payload: mid, PayloadCount: 1 + n}, MTIPCEventReportPayload, Alias(0x123))
	require.NoError(t, err)
	assert.Nil(t, m)

	var last [8]byte
	last[0] = FramingLast
	n = copy(last[1:], remaining)
	remaining = remaining[n:]
	require.Empty(t, remaining)
	m, err = r.ReassembleGlobalOrAddressed(pools, Frame{Payload: last, PayloadCount: 1 + n}, MTIPCEventReportPayload, Alias(0x123))
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, len(want), m.Hdr().PayloadCount, "the full payload must survive reassembly, not just the first Basic-sized chunk")
	assert.Equal(t, want, m.Bytes()[:len(want)])
}

func TestReassembleOutOfSequenceMiddleIsDropped(t *testing.T) {
	pools := NewPools(PoolSizes{Basic: 2, Datagram: 2, SNIP: 1, Stream: 1})
	r := NewReassembler(4)

	destAlias := Alias(0x456)
	var withDest [8]byte
	withDest[0] = FramingMiddle
	PutAlias(withDest[:], 1, destAlias)
	withDest[3], withDest[4], withDest[5] = 1, 2, 3

	_, err := r.ReassembleGlobalOrAddressed(pools, Frame{Payload: withDest, PayloadCount: 8}, MTIVerifyNodeIDAddressed, Alias(0x123))
	assert.ErrorIs(t, err, errOutOfSequence)
}
