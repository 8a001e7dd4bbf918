package olcb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sendDatagram(s *Stack, n *Node, sourceAlias Alias, data []byte) {
	var payload [8]byte
	count := copy(payload[:], data)
	id := buildID(1, FrameTypeDatagramOnly, uint32(n.Alias), sourceAlias)
	s.RXFrame(Frame{ID: id, Payload: payload, PayloadCount: count})
}

func TestGetSpaceInfoKnownSpace(t *testing.T) {
	s, n, driver := newRunningStack(t)
	n.Params.AddressSpaces[SpaceConfig] = AddressSpace{
		Present: true, HighestAddress: 511, ReadOnly: false, LowAddressValid: true, LowAddress: 1,
	}

	sendDatagram(s, n, Alias(0xABC), []byte{cmdGetSpaceInfo, SpaceConfig})
	pumpAll(s, driver, 10)

	// 12-byte reply (low address included): the fields checked below sit
	// in the FIRST frame.
	var reply *Frame
	for i, f := range driver.sent {
		if Classify(f.ID) == ClassDatagramFirst && f.Payload[0] == cmdGetSpaceInfoReply {
			reply = &driver.sent[i]
		}
	}
	require.NotNil(t, reply)
	assert.Equal(t, byte(SpaceConfig), reply.Payload[1])
	assert.Equal(t, byte(1), reply.Payload[2], "present flag")
	assert.Equal(t, uint32(511), ExtractDWord(reply.Payload[:], 3))
}

func TestGetSpaceInfoUnknownSpaceReportsAbsent(t *testing.T) {
	s, n, driver := newRunningStack(t)

	sendDatagram(s, n, Alias(0xABC), []byte{cmdGetSpaceInfo, SpaceFirmware})
	pumpAll(s, driver, 10)

	var reply *Frame
	for i, f := range driver.sent {
		if Classify(f.ID) == ClassDatagramOnly && f.Payload[0] == cmdGetSpaceInfoReply {
			reply = &driver.sent[i]
		}
	}
	require.NotNil(t, reply)
	assert.Equal(t, byte(0), reply.Payload[2], "present flag must be false for an unconfigured space")
}

func TestGetUniqueIDReturnsConfiguredBytes(t *testing.T) {
	s, n, driver := newRunningStack(t)
	want := [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	s.ConfigMem.callbacks.UniqueID = func(*Node) [6]byte { return want }

	sendDatagram(s, n, Alias(0xABC), []byte{cmdGetUniqueID})
	pumpAll(s, driver, 10)

	var reply *Frame
	for i, f := range driver.sent {
		if Classify(f.ID) == ClassDatagramOnly && f.Payload[0] == cmdGetUniqueIDReply {
			reply = &driver.sent[i]
		}
	}
	require.NotNil(t, reply)
	assert.Equal(t, want[:], reply.Payload[1:7])
}

func TestUpdateCompleteInvokesCallback(t *testing.T) {
	s, n, driver := newRunningStack(t)
	var called *Node
	s.ConfigMem.callbacks.UpdateComplete = func(node *Node) { called = node }

	sendDatagram(s, n, Alias(0xABC), []byte{cmdUpdateComplete})
	pumpAll(s, driver, 10)

	assert.Equal(t, n, called, "an UPDATE-COMPLETE datagram must invoke the UpdateComplete callback, not just be ACKed and dropped")
}

func TestReserveLockRequestGrantsLock(t *testing.T) {
	s, n, driver := newRunningStack(t)
	require.Equal(t, NodeID(0), n.ConfigMemLockedBy)

	reserveReq := make([]byte, 7)
	reserveReq[0] = cmdReserveLock
	PutNodeID(reserveReq, 1, NodeID(0x0A0B0C0D0E0F)) // requester NodeID the lock is granted to
	sendDatagram(s, n, Alias(0xABC), reserveReq)
	pumpAll(s, driver, 10)

	var reply *Frame
	for i, f := range driver.sent {
		if Classify(f.ID) == ClassDatagramOnly && f.Payload[0] == cmdReserveLockReply {
			reply = &driver.sent[i]
		}
	}
	require.NotNil(t, reply)
	assert.Equal(t, NodeID(0x0A0B0C0D0E0F), n.ConfigMemLockedBy)
}

func TestReadExplicitLengthHonoured(t *testing.T) {
	s, n, driver := newRunningStack(t)
	store := []byte("abcdefghijklmnop")
	n.Params.AddressSpaces[SpaceConfig] = AddressSpace{Present: true, HighestAddress: uint32(len(store))}
	s.ConfigMem.callbacks.Read = func(_ *Node, space byte, offset uint32, buf []byte) (int, error) {
		return copy(buf, store[offset:]), nil
	}

	req := make([]byte, 6)
	req[0] = cmdReadBase + 2 // CONFIG space implicit
	PutDWord(req, 1, 2)
	req[5] = 3 // requested length: 5-byte reply header + 3 bytes fills one frame
	sendDatagram(s, n, Alias(0xABC), req)
	pumpAll(s, driver, 10)

	var reply *Frame
	for i, f := range driver.sent {
		if Classify(f.ID) == ClassDatagramOnly && f.Payload[0]&0xFC == cmdReadReplyOK {
			reply = &driver.sent[i]
		}
	}
	require.NotNil(t, reply)
	assert.Equal(t, "cde", string(reply.Payload[5:reply.PayloadCount]))
}
