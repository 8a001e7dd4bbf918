package olcb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunningStack(t *testing.T) (*Stack, *Node, *fakeDriver) {
	t.Helper()
	driver := newFakeDriver()
	s := NewStack(StackConfig{PoolSizes: DefaultPoolSizes(), AliasSlots: 4, ReassemblySlots: 2, Driver: driver})
	params := testParams()
	params.Producers = []EventID{0x0102030405060708}
	params.Consumers = []EventID{0x0102030405060709}
	n := s.AddNode(NodeID(0x010203040506), params)
	runLoginToCompletion(t, s, n, 100)
	driver.sent = nil // discard login-time frames for clearer assertions below
	return s, n, driver
}

func pumpAll(s *Stack, driver *fakeDriver, rounds int) {
	for i := 0; i < rounds; i++ {
		s.RunOnce()
	}
}

func TestVerifyNodeIDGlobalRepliesWithVerifiedNodeID(t *testing.T) {
	s, n, driver := newRunningStack(t)

	req := buildID(1, FrameTypeGlobalOrAddressed, uint32(MTIVerifyNodeIDGlobal), Alias(0xABC))
	s.RXFrame(Frame{ID: req, Payload: [8]byte{FramingOnly}, PayloadCount: 1})

	pumpAll(s, driver, 10)

	require.NotEmpty(t, driver.sent)
	f := driver.sent[len(driver.sent)-1]
	assert.Equal(t, MTIVerifiedNodeID, CANMTI(f.ID))
	assert.Equal(t, n.ID, ExtractNodeID(f.Payload[:], 1))
}

func TestIdentifyEventsGlobalProducesIdentifiedReplies(t *testing.T) {
	s, _, driver := newRunningStack(t)

	req := buildID(1, FrameTypeGlobalOrAddressed, uint32(MTIIdentifyEventsGlobal), Alias(0xABC))
	s.RXFrame(Frame{ID: req, Payload: [8]byte{FramingOnly}, PayloadCount: 1})

	pumpAll(s, driver, 10)

	var sawProducer, sawConsumer bool
	for _, f := range driver.sent {
		mti := CANMTI(f.ID)
		switch mti {
		case MTIProducerIdentifiedUnknown:
			sawProducer = true
		case MTIConsumerIdentifiedUnknown:
			sawConsumer = true
		}
	}
	assert.True(t, sawProducer)
	assert.True(t, sawConsumer)
}

func TestProtocolSupportReplyEncodesFullMask(t *testing.T) {
	s, n, driver := newRunningStack(t)
	n.Params.ProtocolSupport = ProtocolSimpleNodeInformation | ProtocolDatagram | ProtocolIdentificationMfg

	req := buildID(1, FrameTypeGlobalOrAddressed, uint32(MTIProtocolSupportInquiry), Alias(0xABC))
	payload := [8]byte{FramingOnly}
	PutAlias(payload[:], 1, n.Alias)
	s.RXFrame(Frame{ID: req, Payload: payload, PayloadCount: 3})

	pumpAll(s, driver, 10)

	require.NotEmpty(t, driver.sent)

	// The 6-byte addressed reply spans two frames, each led by the framing
	// byte and destination alias (3 bytes).
	var body []byte
	for _, f := range driver.sent {
		if CANMTI(f.ID) == MTIProtocolSupportReply {
			body = append(body, f.Payload[3:f.PayloadCount]...)
		}
	}
	require.Len(t, body, 6)

	var got uint64
	for i := 0; i < 6; i++ {
		got = got<<8 | uint64(body[i])
	}
	assert.Equal(t, n.Params.ProtocolSupport, got, "all 48 mask bits, including the high protocols, must survive the reply")
}

func TestAddressedMessageToUnknownAliasIsDropped(t *testing.T) {
	s, _, driver := newRunningStack(t)

	req := buildID(1, FrameTypeGlobalOrAddressed, uint32(MTIVerifyNodeIDAddressed), Alias(0xABC))
	payload := [8]byte{FramingOnly}
	PutAlias(payload[:], 1, Alias(0xDEF)) // no node owns this alias
	s.RXFrame(Frame{ID: req, Payload: payload, PayloadCount: 3})

	pumpAll(s, driver, 10)

	assert.Empty(t, driver.sent, "a message to an alias we don't own must be silently dropped")
}

func TestUnrecognizedAddressedMTIGetsOptionalInteractionRejected(t *testing.T) {
	s, n, driver := newRunningStack(t)

	const unknownAddressedMTI = MTI(0x0F08) // HasAddress bit set, not in the dispatch table
	req := buildID(1, FrameTypeGlobalOrAddressed, uint32(unknownAddressedMTI), Alias(0xABC))
	payload := [8]byte{FramingOnly}
	PutAlias(payload[:], 1, n.Alias)
	s.RXFrame(Frame{ID: req, Payload: payload, PayloadCount: 3})

	pumpAll(s, driver, 10)

	require.NotEmpty(t, driver.sent)
	f := driver.sent[len(driver.sent)-1]
	assert.Equal(t, MTIOptionalInteractionRejected, CANMTI(f.ID))
}

func TestDatagramWriteIsAckedStoredAndAnswered(t *testing.T) {
	s, n, driver := newRunningStack(t)
	store := make([]byte, 256)
	s.ConfigMem.callbacks = ConfigMemCallbacks{
		Read: func(node *Node, space byte, offset uint32, buf []byte) (int, error) {
			return copy(buf, store[offset:]), nil
		},
		Write: func(node *Node, space byte, offset uint32, data []byte) error {
			copy(store[offset:], data)
			return nil
		},
	}
	n.Params.AddressSpaces[SpaceConfig] = AddressSpace{Present: true, HighestAddress: 255}

	// WRITE command 0x02 (CONFIG space implicit), offset 10, data "hi".
	writeReq := [8]byte{0x02}
	PutDWord(writeReq[:], 1, 10)
	copy(writeReq[5:], []byte("hi"))
	senderAlias := Alias(0xABC)
	datagramID := buildID(1, FrameTypeDatagramOnly, uint32(n.Alias), senderAlias)
	s.RXFrame(Frame{ID: datagramID, Payload: writeReq, PayloadCount: 7})

	pumpAll(s, driver, 10)
	assert.Equal(t, "hi", string(store[10:12]))

	var sawAck, sawWriteReply bool
	for _, f := range driver.sent {
		switch Classify(f.ID) {
		case ClassGlobalOrAddressed:
			if CANMTI(f.ID) == MTIDatagramReceivedOK {
				sawAck = true
			}
		case ClassDatagramOnly:
			sawWriteReply = true
		}
	}
	assert.True(t, sawAck, "a datagram must always be ACKed")
	assert.True(t, sawWriteReply)
}
