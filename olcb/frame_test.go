package olcb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyDataFrame(t *testing.T) {
	id := buildID(1, FrameTypeGlobalOrAddressed, uint32(MTIInitializationComplete), Alias(0x123))
	assert.Equal(t, ClassGlobalOrAddressed, Classify(id))
	assert.Equal(t, Alias(0x123), Frame{ID: id}.SourceAlias())
	assert.Equal(t, MTIInitializationComplete, CANMTI(id))
}

func TestClassifyDatagramFrames(t *testing.T) {
	cases := []struct {
		ft    uint32
		class FrameClass
	}{
		{FrameTypeDatagramOnly, ClassDatagramOnly},
		{FrameTypeDatagramFirst, ClassDatagramFirst},
		{FrameTypeDatagramMiddle, ClassDatagramMiddle},
		{FrameTypeDatagramLast, ClassDatagramLast},
	}
	for _, c := range cases {
		id := buildID(1, c.ft, 0x456, Alias(0x789))
		assert.Equal(t, c.class, Classify(id))
		assert.Equal(t, Alias(0x456), DatagramDestAlias(id))
	}
}

func TestClassifyControlFrames(t *testing.T) {
	assert.Equal(t, ClassRID, Classify(BuildRIDFrame(Alias(1)).ID))
	assert.Equal(t, ClassAMD, Classify(BuildAMDFrame(Alias(1), NodeID(2)).ID))
	assert.Equal(t, ClassAMR, Classify(BuildAMRFrame(Alias(1), NodeID(2)).ID))
	assert.Equal(t, ClassAME, Classify(BuildAMEFrame(Alias(1), 0).ID))
	assert.Equal(t, ClassErrorInfoReport, Classify(BuildErrorInfoReportFrame(Alias(1)).ID))
	for slot := 4; slot <= 7; slot++ {
		f := BuildCIDFrame(NodeID(0x0102030405060708), Alias(0xABC), slot)
		assert.Equal(t, ClassCID, Classify(f.ID))
		assert.Equal(t, slot, CIDSlot(f.ID))
	}
}

func TestNodeIDSliceOrdering(t *testing.T) {
	id := NodeID(0x0A0B0C0D0E0F)
	assert.Equal(t, uint32(0x0A0), NodeIDSlice(id, 7))
	assert.Equal(t, uint32(0xB0C), NodeIDSlice(id, 6))
	assert.Equal(t, uint32(0x0D0), NodeIDSlice(id, 5))
	assert.Equal(t, uint32(0xE0F), NodeIDSlice(id, 4))
}

func TestAMDFramePayloadCarriesNodeID(t *testing.T) {
	id := NodeID(0x010203040506)
	f := BuildAMDFrame(Alias(0x42), id)
	assert.Equal(t, 6, f.PayloadCount)
	assert.Equal(t, id, ExtractNodeID(f.Payload[:], 0))
}
