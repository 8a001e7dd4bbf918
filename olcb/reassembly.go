package olcb

/*-------------------------------------------------------------------
 *
 * Purpose:  Multi-frame RX reassembly.
 *
 *           A reassembly is keyed by (source alias, destination alias or 0
 *           for global, payload class). FIRST allocates a buffer from the
 *           class's pool and copies the frame's data bytes in; MIDDLE
 *           appends; LAST appends and hands the finished Msg to the
 *           caller. An out-of-sequence MIDDLE/LAST (no matching FIRST) is
 *           dropped and, for an addressed message, provokes an
 *           error-information-report back to the sender.
 *
 *           SNIP replies arrive framed as ordinary global/addressed
 *           multi-frame messages (FramingFirst/Middle/Last in the first
 *           payload byte) but need the larger SNIP buffer class; the slot
 *           is chosen by MTI rather than by CAN frame-type.
 *
 *-----------------------------------------------------------------*/

type reassemblyKey struct {
	sourceAlias Alias
	destAlias   Alias // 0 for global messages
	class       PayloadType
}

type reassemblySlot struct {
	inUse bool
	key   reassemblyKey
	msg   Msg
}

// Reassembler holds in-flight multi-frame reassemblies. Sized at
// construction time; a collision with no free slot drops the new FIRST
// (matching the fixed-resource, no-dynamic-allocation design).
type Reassembler struct {
	slots []reassemblySlot
}

// NewReassembler allocates a reassembler with size concurrent slots.
func NewReassembler(size int) *Reassembler {
	return &Reassembler{slots: make([]reassemblySlot, size)}
}

func (r *Reassembler) find(key reassemblyKey) *reassemblySlot {
	for i := range r.slots {
		if r.slots[i].inUse && r.slots[i].key == key {
			return &r.slots[i]
		}
	}
	return nil
}

func (r *Reassembler) freeSlot() *reassemblySlot {
	for i := range r.slots {
		if !r.slots[i].inUse {
			return &r.slots[i]
		}
	}
	return nil
}

func classForMTI(mti MTI) PayloadType {
	switch mti {
	case MTISimpleNodeInfoReply:
		return PayloadSNIP
	case MTIPCEventReportPayload:
		// the only global MTI besides SNIP whose payload can outgrow a
		// Basic buffer: up to 64 bytes of application data plus the
		// 8-byte event ID.
		return PayloadDatagram
	default:
		return PayloadBasic
	}
}

// addressedHeaderLen returns how many leading payload bytes are consumed
// by framing-bits-and-destination-alias, versus plain framing-bits-only
// for a global message.
func addressedHeaderLen(mti MTI) int {
	if mti.HasAddress() {
		return 3
	}
	return 1
}

// ReassembleGlobalOrAddressed feeds one global/addressed data frame into
// the reassembly engine. mti is already decoded by the caller from the
// identifier's variable field. For an addressed MTI the destination alias
// is decoded here from payload bytes 1-2 (byte 0 is framing bits alone):
// the identifier's variable field is fully consumed by the MTI, so the
// destination has to travel in the payload instead. It returns a
// finished Msg once the last fragment of a
// multi-frame message arrives, or immediately for a single (FramingOnly)
// frame.
func (r *Reassembler) ReassembleGlobalOrAddressed(pools *Pools, f Frame, mti MTI, sourceAlias Alias) (Msg, error) {
	framing := f.Payload[0] & framingBitsMask
	hdrLen := addressedHeaderLen(mti)
	var destAlias Alias
	if mti.HasAddress() {
		destAlias = ExtractAlias(f.Payload[:], 1)
	}
	data := f.Payload[hdrLen:f.PayloadCount]
	class := classForMTI(mti)

	switch framing {
	case FramingOnly:
		m := pools.Allocate(class)
		if m == nil {
			return nil, errPoolExhausted(class)
		}
		copy(m.Bytes(), data)
		h := m.Hdr()
		h.SourceAlias, h.DestAlias, h.MTI, h.PayloadCount = sourceAlias, destAlias, mti, len(data)
		return m, nil

	case FramingFirst:
		key := reassemblyKey{sourceAlias: sourceAlias, destAlias: destAlias, class: class}
		if existing := r.find(key); existing != nil {
			existing.msg.Free()
			existing.inUse = false
		}
		slot := r.freeSlot()
		if slot == nil {
			return nil, errReassemblyExhausted
		}
		m := pools.Allocate(class)
		if m == nil {
			return nil, errPoolExhausted(class)
		}
		n := copy(m.Bytes(), data)
		h := m.Hdr()
		h.SourceAlias, h.DestAlias, h.MTI, h.PayloadCount, h.Inprocess = sourceAlias, destAlias, mti, n, true
		*slot = reassemblySlot{inUse: true, key: key, msg: m}
		return nil, nil

	case FramingMiddle, FramingLast:
		key := reassemblyKey{sourceAlias: sourceAlias, destAlias: destAlias, class: class}
		slot := r.find(key)
		if slot == nil {
			if destAlias != 0 {
				return nil, errOutOfSequence
			}
			return nil, nil
		}
		h := slot.msg.Hdr()
		buf := slot.msg.Bytes()
		n := copy(buf[h.PayloadCount:], data)
		h.PayloadCount += n
		if framing == FramingLast {
			h.Inprocess = false
			m := slot.msg
			*slot = reassemblySlot{}
			return m, nil
		}
		return nil, nil
	}
	return nil, nil
}

// ReassembleDatagram feeds one datagram-class frame into the reassembly
// engine. Datagram frames have no framing byte: the whole payload is user
// data, and ONLY/FIRST/MIDDLE/LAST is carried by the CAN frame-type nibble
// instead.
func (r *Reassembler) ReassembleDatagram(pools *Pools, f Frame, fc FrameClass, sourceAlias, destAlias Alias) (Msg, error) {
	key := reassemblyKey{sourceAlias: sourceAlias, destAlias: destAlias, class: PayloadDatagram}

	switch fc {
	case ClassDatagramOnly:
		m := pools.Allocate(PayloadDatagram)
		if m == nil {
			return nil, errPoolExhausted(PayloadDatagram)
		}
		n := copy(m.Bytes(), f.Payload[:f.PayloadCount])
		h := m.Hdr()
		h.SourceAlias, h.DestAlias, h.PayloadCount = sourceAlias, destAlias, n
		return m, nil

	case ClassDatagramFirst:
		if existing := r.find(key); existing != nil {
			existing.msg.Free()
			existing.inUse = false
		}
		slot := r.freeSlot()
		if slot == nil {
			return nil, errReassemblyExhausted
		}
		m := pools.Allocate(PayloadDatagram)
		if m == nil {
			return nil, errPoolExhausted(PayloadDatagram)
		}
		n := copy(m.Bytes(), f.Payload[:f.PayloadCount])
		h := m.Hdr()
		h.SourceAlias, h.DestAlias, h.PayloadCount, h.Inprocess = sourceAlias, destAlias, n, true
		*slot = reassemblySlot{inUse: true, key: key, msg: m}
		return nil, nil

	case ClassDatagramMiddle, ClassDatagramLast:
		slot := r.find(key)
		if slot == nil {
			return nil, errOutOfSequence
		}
		h := slot.msg.Hdr()
		buf := slot.msg.Bytes()
		n := copy(buf[h.PayloadCount:], f.Payload[:f.PayloadCount])
		h.PayloadCount += n
		if fc == ClassDatagramLast {
			h.Inprocess = false
			m := slot.msg
			*slot = reassemblySlot{}
			return m, nil
		}
		return nil, nil
	}
	return nil, nil
}

// Abort drops any in-flight reassembly matching key, releasing its buffer.
// The core itself never calls it.
func (r *Reassembler) Abort(sourceAlias, destAlias Alias, class PayloadType) {
	key := reassemblyKey{sourceAlias: sourceAlias, destAlias: destAlias, class: class}
	if slot := r.find(key); slot != nil {
		slot.msg.Free()
		*slot = reassemblySlot{}
	}
}
