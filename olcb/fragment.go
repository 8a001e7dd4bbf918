package olcb

/*-------------------------------------------------------------------
 *
 * Purpose:  TX fragmentation.
 *
 *           Splits an assembled Msg back into one or more CAN frames and
 *           feeds them to the driver, advancing an index into the source
 *           message between calls so the caller loop can yield when the
 *           driver's TX queue is full rather than blocking. A node's
 *           multi-frame outbound messages are never interleaved with its
 *           other outbound messages on the wire, so the Stack fragments
 *           one message to completion before starting the next (see
 *           stack_run.go).
 *
 *-----------------------------------------------------------------*/

// nextFrame builds the frame starting at byte offset index of msg, as sent
// by sourceAlias, and returns the frame plus the index of the first byte
// not yet sent. done is true once index has reached the end of the
// payload (so the frame returned is the last one).
func nextFrame(msg Msg, index int, sourceAlias Alias) (f Frame, next int, done bool) {
	h := msg.Hdr()
	total := h.PayloadCount
	data := msg.Bytes()[:total]

	switch msg.Class() {
	case PayloadDatagram:
		return nextDatagramFrame(data, index, sourceAlias, h.DestAlias)
	default:
		return nextFramedFrame(data, index, sourceAlias, h.MTI, h.DestAlias)
	}
}

func nextDatagramFrame(data []byte, index int, sourceAlias, destAlias Alias) (Frame, int, bool) {
	total := len(data)
	remaining := total - index
	n := remaining
	if n > 8 {
		n = 8
	}
	var ft uint32
	switch {
	case index == 0 && remaining <= 8:
		ft = FrameTypeDatagramOnly
	case index == 0:
		ft = FrameTypeDatagramFirst
	case remaining <= 8:
		ft = FrameTypeDatagramLast
	default:
		ft = FrameTypeDatagramMiddle
	}
	f := Frame{ID: buildID(1, ft, uint32(destAlias), sourceAlias)}
	f.PayloadCount = copy(f.Payload[:], data[index:index+n])
	next := index + n
	return f, next, next >= total
}

func nextFramedFrame(data []byte, index int, sourceAlias Alias, mti MTI, destAlias Alias) (Frame, int, bool) {
	total := len(data)
	hdrLen := addressedHeaderLen(mti)
	chunk := 8 - hdrLen
	remaining := total - index
	n := remaining
	if n > chunk {
		n = chunk
	}
	var framing byte
	switch {
	case index == 0 && remaining <= chunk:
		framing = FramingOnly
	case index == 0:
		framing = FramingFirst
	case remaining <= chunk:
		framing = FramingLast
	default:
		framing = FramingMiddle
	}

	f := Frame{ID: buildID(1, FrameTypeGlobalOrAddressed, uint32(mti), sourceAlias)}
	f.Payload[0] = framing
	if mti.HasAddress() {
		PutAlias(f.Payload[:], 1, destAlias)
	}
	n2 := copy(f.Payload[hdrLen:], data[index:index+n])
	f.PayloadCount = hdrLen + n2
	next := index + n2
	return f, next, next >= total
}

