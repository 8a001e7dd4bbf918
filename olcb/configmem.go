package olcb

/*-------------------------------------------------------------------
 *
 * Purpose:  Datagram transport and the Configuration-Memory protocol,
 *           with the full sub-command table (read/write, options,
 *           space-info, reserve/lock, freeze/unfreeze, unique-ID, reset).
 *
 *           Every datagram is ACKed (Datagram-Received-OK) before the
 *           core attempts to interpret it: a failure partway through
 *           interpretation must never leave the sender hanging waiting
 *           for an ACK that depends on successful dispatch. Storage
 *           access is always via the injected ConfigMemCallbacks; this
 *           file never touches a byte of backing store directly.
 *
 *-----------------------------------------------------------------*/

// Datagram sub-protocol leading byte: configuration-memory if the high
// nibble is 0x2 or 0x4-0xB in the ranges below.
const (
	cmdReadBase           = 0x40 // 0x40-0x43: READ; low 2 bits 0/1/2 select CDI/ALL/CONFIG implicitly, 3 takes an explicit space byte (see spaceFromCommand)
	cmdReadReplyOK        = 0x50
	cmdReadReplyFail      = 0x58
	cmdWriteBase          = 0x00 // 0x00-0x03: WRITE
	cmdWriteReplyOK       = 0x10
	cmdWriteReplyFail     = 0x18
	cmdOptions            = 0x80
	cmdOptionsReply        = 0x82
	cmdGetSpaceInfo        = 0x84
	cmdGetSpaceInfoReply  = 0x86
	cmdReserveLock        = 0x88
	cmdReserveLockReply   = 0x89
	cmdFreeze             = 0xA0
	cmdUnfreeze           = 0xA1
	cmdGetUniqueID        = 0xA8
	cmdUpdateComplete     = 0xA9
	cmdReset              = 0xAA
	cmdGetUniqueIDReply   = 0xAB // not a distinct wire command; a byte none of the 0xA8/0xA9/0xAA/0xAC commands uses
	cmdFactoryReset       = 0xAC
)

// ConfigMemHandler implements the 0x20-class (configuration memory)
// datagram commands, and datagram ACK/reject bookkeeping for the rest.
type ConfigMemHandler struct {
	stack     *Stack
	callbacks ConfigMemCallbacks
}

// HandleDatagram ACKs the datagram, then interprets it if it is a
// configuration-memory command. dest is the locally-hosted node the
// datagram was addressed to; m is the assembled datagram payload.
func (h *ConfigMemHandler) HandleDatagram(dest *Node, m Msg) {
	h.ack(dest, m)

	data := m.Bytes()[:m.Hdr().PayloadCount]
	if len(data) == 0 {
		m.Free()
		return
	}

	cmd := data[0]
	switch {
	case cmd >= cmdWriteBase && cmd <= cmdWriteBase+3:
		h.handleWrite(dest, m, data)
	case cmd >= cmdReadBase && cmd <= cmdReadBase+3:
		h.handleRead(dest, m, data)
	case cmd == cmdOptions:
		h.handleOptions(dest, m)
	case cmd == cmdGetSpaceInfo:
		h.handleGetSpaceInfo(dest, m, data)
	case cmd == cmdReserveLock:
		h.handleReserveLock(dest, m, data)
	case cmd == cmdFreeze:
		h.setFrozen(dest, data, true)
	case cmd == cmdUnfreeze:
		h.setFrozen(dest, data, false)
	case cmd == cmdGetUniqueID:
		h.handleGetUniqueID(dest, m)
	case cmd == cmdUpdateComplete:
		if h.callbacks.UpdateComplete != nil {
			h.callbacks.UpdateComplete(dest)
		}
	case cmd == cmdReset:
		if h.callbacks.Reboot != nil {
			h.callbacks.Reboot(dest)
		}
	case cmd == cmdFactoryReset:
		if h.callbacks.FactoryReset != nil {
			h.callbacks.FactoryReset(dest)
		}
	}

	m.Free()
}

func (h *ConfigMemHandler) ack(dest *Node, m Msg) {
	s := h.stack
	reply := s.allocGlobal(dest, MTIDatagramReceivedOK, BasicCapacity)
	if reply == nil {
		return
	}
	reply.Hdr().DestAlias = m.Hdr().SourceAlias
	reply.Hdr().PayloadCount = 0
	s.EnqueueTX(reply)
}

func (h *ConfigMemHandler) reject(dest *Node, replyTo Alias, code uint16) {
	s := h.stack
	reply := s.allocGlobal(dest, MTIDatagramRejected, BasicCapacity)
	if reply == nil {
		return
	}
	reply.Hdr().DestAlias = replyTo
	PutWord(reply.Bytes(), 0, code)
	reply.Hdr().PayloadCount = 2
	s.EnqueueTX(reply)
}

// spaceFromCommand resolves the implicit-vs-explicit address space
// encoding: the command byte is followed by a 4-byte big-endian offset
// (indices 1-4), then, only when the command's low 2 bits are 3, one
// explicit space byte (index 5) before the data body; the low 2 bits
// otherwise select CDI/ALL/CONFIG implicitly and the body starts right
// after the offset.
func spaceFromCommand(cmd byte, data []byte) (space byte, bodyOffset int) {
	switch cmd & 0x3 {
	case 0:
		return SpaceCDI, 5
	case 1:
		return SpaceAll, 5
	case 2:
		return SpaceConfig, 5
	default:
		if len(data) < 6 {
			return 0, len(data)
		}
		return data[5], 6
	}
}

func (h *ConfigMemHandler) handleRead(dest *Node, m Msg, data []byte) {
	s := h.stack
	if len(data) < 6 {
		h.reject(dest, m.Hdr().SourceAlias, 0x1002)
		return
	}
	offset := ExtractDWord(data, 1)
	space, bodyOff := spaceFromCommand(data[0], data)
	want := 0
	if bodyOff < len(data) {
		want = int(data[bodyOff])
	}
	if want == 0 || want > DatagramCapacity-8 {
		want = DatagramCapacity - 8
	}

	reply := s.Pools.Allocate(PayloadDatagram)
	if reply == nil {
		return
	}
	rh := reply.Hdr()
	rh.SourceAlias, rh.SourceNodeID, rh.DestAlias, rh.MTI = dest.Alias, dest.ID, m.Hdr().SourceAlias, MTIDatagram
	rb := reply.Bytes()
	rb[0] = cmdReadReplyOK | (data[0] & 0x3)
	PutDWord(rb, 1, offset)
	n := 5
	if bodyOff == 6 {
		rb[5] = space
		n = 6
	}

	if h.callbacks.Read == nil {
		h.reject(dest, m.Hdr().SourceAlias, 0x1008)
		reply.Free()
		return
	}
	got, err := h.callbacks.Read(dest, space, offset, rb[n:n+want])
	if err != nil {
		h.reject(dest, m.Hdr().SourceAlias, 0x1007)
		reply.Free()
		return
	}
	rh.PayloadCount = n + got
	s.EnqueueTX(reply)
}

func (h *ConfigMemHandler) handleWrite(dest *Node, m Msg, data []byte) {
	s := h.stack
	if len(data) < 6 {
		h.reject(dest, m.Hdr().SourceAlias, 0x1002)
		return
	}
	if dest.FrozenSpaces[SpaceConfig] {
		h.reject(dest, m.Hdr().SourceAlias, 0x1088)
		return
	}
	offset := ExtractDWord(data, 1)
	space, bodyOff := spaceFromCommand(data[0], data)
	if spaceDesc, ok := dest.Params.AddressSpaces[space]; ok && spaceDesc.ReadOnly {
		h.reject(dest, m.Hdr().SourceAlias, 0x1082)
		return
	}
	if h.callbacks.Write == nil {
		h.reject(dest, m.Hdr().SourceAlias, 0x1008)
		return
	}
	if err := h.callbacks.Write(dest, space, offset, data[bodyOff:]); err != nil {
		h.reject(dest, m.Hdr().SourceAlias, 0x1007)
		return
	}

	reply := s.allocGlobal(dest, MTIDatagram, DatagramCapacity)
	if reply == nil {
		return
	}
	reply.Hdr().DestAlias = m.Hdr().SourceAlias
	rb := reply.Bytes()
	rb[0] = cmdWriteReplyOK | (data[0] & 0x3)
	PutDWord(rb, 1, offset)
	reply.Hdr().PayloadCount = 5
	s.EnqueueTX(reply)
}

func (h *ConfigMemHandler) handleOptions(dest *Node, m Msg) {
	s := h.stack
	reply := s.allocGlobal(dest, MTIDatagram, DatagramCapacity)
	if reply == nil {
		return
	}
	reply.Hdr().DestAlias = m.Hdr().SourceAlias
	rb := reply.Bytes()
	rb[0] = cmdOptionsReply
	PutWord(rb, 1, 0x8000) // write-under-mask not supported; stream write not supported
	rb[3] = 0
	rb[4] = byte(len(dest.Params.AddressSpaces))
	rb[5] = SpaceCDI
	rb[6] = SpaceConfig
	n := writeCString(rb[7:], dest.Params.Manufacturer+" "+dest.Params.Model)
	reply.Hdr().PayloadCount = 7 + n
	s.EnqueueTX(reply)
}

func (h *ConfigMemHandler) handleGetSpaceInfo(dest *Node, m Msg, data []byte) {
	s := h.stack
	if len(data) < 2 {
		return
	}
	space := data[1]
	desc, ok := dest.Params.AddressSpaces[space]

	reply := s.allocGlobal(dest, MTIDatagram, DatagramCapacity)
	if reply == nil {
		return
	}
	reply.Hdr().DestAlias = m.Hdr().SourceAlias
	rb := reply.Bytes()
	rb[0] = cmdGetSpaceInfoReply
	rb[1] = space
	if !ok {
		rb[2] = 0
		reply.Hdr().PayloadCount = 3
		s.EnqueueTX(reply)
		return
	}
	rb[2] = 1
	PutDWord(rb, 3, desc.HighestAddress)
	flags := byte(0)
	if desc.ReadOnly {
		flags |= 0x01
	}
	rb[7] = flags
	n := 8
	if desc.LowAddressValid {
		PutDWord(rb, n, desc.LowAddress)
		n += 4
	}
	reply.Hdr().PayloadCount = n
	s.EnqueueTX(reply)
}

func (h *ConfigMemHandler) handleReserveLock(dest *Node, m Msg, data []byte) {
	s := h.stack
	requester := m.Hdr().SourceNodeID
	if len(data) >= 7 {
		requester = ExtractNodeID(data, 1)
	}

	reply := s.allocGlobal(dest, MTIDatagram, DatagramCapacity)
	if reply == nil {
		return
	}
	reply.Hdr().DestAlias = m.Hdr().SourceAlias
	rb := reply.Bytes()
	rb[0] = cmdReserveLockReply

	if len(data) >= 7 && ExtractNodeID(data, 1) == 0 {
		dest.ConfigMemLockedBy = 0
		PutNodeID(rb, 1, 0)
	} else if dest.ConfigMemLockedBy == 0 || dest.ConfigMemLockedBy == requester {
		dest.ConfigMemLockedBy = requester
		PutNodeID(rb, 1, requester)
	} else {
		PutNodeID(rb, 1, dest.ConfigMemLockedBy)
	}
	reply.Hdr().PayloadCount = 7
	s.EnqueueTX(reply)
}

func (h *ConfigMemHandler) setFrozen(dest *Node, data []byte, frozen bool) {
	if len(data) < 2 {
		dest.FrozenSpaces[SpaceConfig] = frozen
		return
	}
	dest.FrozenSpaces[data[1]] = frozen
	if !frozen && h.callbacks.UpdateComplete != nil {
		h.callbacks.UpdateComplete(dest)
	}
}

func (h *ConfigMemHandler) handleGetUniqueID(dest *Node, m Msg) {
	s := h.stack
	reply := s.allocGlobal(dest, MTIDatagram, DatagramCapacity)
	if reply == nil {
		return
	}
	reply.Hdr().DestAlias = m.Hdr().SourceAlias
	rb := reply.Bytes()
	rb[0] = cmdGetUniqueIDReply
	id := [6]byte{}
	if h.callbacks.UniqueID != nil {
		id = h.callbacks.UniqueID(dest)
	}
	copy(rb[1:7], id[:])
	reply.Hdr().PayloadCount = 7
	s.EnqueueTX(reply)
}
