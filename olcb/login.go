package olcb

/*-------------------------------------------------------------------
 *
 * Purpose:  Alias arbitration and login state machine.
 *
 *           Runs to completion one action per call, advancing only when
 *           the driver is ready to accept a frame (or, for WAIT_200MS,
 *           when enough ticks have elapsed). A duplicate of the candidate
 *           alias detected during WAIT_200MS sends nothing and returns to
 *           GENERATE_ALIAS for a fresh candidate. A duplicate detected in
 *           RUN sends an Alias-Map-Reset, unregisters the alias, and
 *           returns to GENERATE_SEED. Both reuse the same LFSR registers
 *           rather than reseeding from scratch, so a node doesn't cycle
 *           through the same sequence of candidates forever.
 *
 *-----------------------------------------------------------------*/

// LFSR constants: a 48-bit state split across two 24-bit registers,
// each advanced by a 9-bit shift-and-mix added back into itself along
// with one of these fixed constants. The exact constants and the shift
// width are normative -- they determine the per-node alias-candidate
// sequence, and changing either would make two stacks walk different
// sequences from the same seed.
const (
	lfsrConstLo uint32 = 0x1B0CA3
	lfsrConstHi uint32 = 0x7A4BA9
	lfsr24Mask  uint32 = 0xFFFFFF
)

// seedLFSR seeds a node's two-register LFSR from its NodeID and an
// instance counter (here just 0, since this Stack only ever logs a given
// NodeID in once at a time).
func seedLFSR(id NodeID) (hi, lo uint32) {
	hi = uint32(id>>24) & lfsr24Mask
	lo = uint32(id) & lfsr24Mask
	if hi == 0 {
		hi = lfsrConstHi
	}
	if lo == 0 {
		lo = lfsrConstLo
	}
	return hi, lo
}

// advanceLFSR runs one step of the generator, producing the next 48-bit
// value and updating both registers in place. lo is mixed by shifting it
// 9 bits and folding in hi's top 9 bits; hi is mixed by a plain 9-bit
// shift. Each mix is then added (not XORed) into its register along with
// its constant; the carry out of hi's addition is folded into lo rather
// than discarded, coupling the two halves.
func advanceLFSR(hi, lo *uint32) uint64 {
	mixLo := ((*lo << 9) | (*hi>>15)&0x1FF) & lfsr24Mask
	mixHi := (*hi << 9) & lfsr24Mask

	sumLo := *lo + mixLo + lfsrConstLo
	sumHi := *hi + mixHi + lfsrConstHi

	newLo := (sumLo + (sumHi&0xFF000000)>>24) & lfsr24Mask
	newHi := sumHi & lfsr24Mask

	*lo, *hi = newLo, newHi
	return uint64(*lo)<<24 | uint64(*hi)
}

// aliasFromLFSR folds a 48-bit LFSR value down to a nonzero 12-bit
// candidate alias.
func aliasFromLFSR(v uint64) Alias {
	lo := uint32(v>>24) & lfsr24Mask
	hi := uint32(v) & lfsr24Mask
	a := Alias((lo ^ hi ^ (lo >> 12) ^ (hi >> 12)) & uint32(aliasMask))
	if a == 0 {
		a = 1
	}
	return a
}

// RunLogin advances node's login state machine by one action. It returns
// true if it made progress (changed state, sent a frame, or queued a
// message), and false if it did nothing: driver not ready, no pool buffer
// free, still waiting out WAIT_200MS, or already in StateRun with no
// duplicate alias to handle.
func (s *Stack) RunLogin(n *Node) bool {
	if n.State == StateRun {
		if alias, dup := s.Aliases.ConsumeDuplicate(); dup && alias == n.Alias {
			n.DuplicateIDDetected = true
			s.sendFrame(BuildAMRFrame(n.Alias, n.ID))
			s.Aliases.Unregister(n.Alias)
			n.Permitted = false
			n.Initialized = false
			n.State = StateGenerateSeed
			return true
		}
		return false
	}

	switch n.State {
	case StateInit:
		n.seedHi, n.seedLo = seedLFSR(n.ID)
		n.State = StateGenerateSeed
		return true

	case StateGenerateSeed:
		n.State = StateGenerateAlias
		return true

	case StateGenerateAlias:
		v := advanceLFSR(&n.seedHi, &n.seedLo)
		n.Alias = aliasFromLFSR(v)
		n.State = StateSendCID07
		return true

	case StateSendCID07, StateSendCID06, StateSendCID05, StateSendCID04:
		var slot int
		switch n.State {
		case StateSendCID07:
			slot = 7
		case StateSendCID06:
			slot = 6
		case StateSendCID05:
			slot = 5
		default:
			slot = 4
		}
		if !s.Driver.TXReady() {
			return false
		}
		s.sendFrame(BuildCIDFrame(n.ID, n.Alias, slot))
		switch n.State {
		case StateSendCID07:
			n.State = StateSendCID06
		case StateSendCID06:
			n.State = StateSendCID05
		case StateSendCID05:
			n.State = StateSendCID04
		case StateSendCID04:
			n.waitStart = n.TimerTicks
			n.State = StateWait200ms
		}
		return true

	case StateWait200ms:
		if alias, dup := s.Aliases.ConsumeDuplicate(); dup && alias == n.Alias {
			n.State = StateGenerateAlias
			return true
		}
		if n.TimerTicks-n.waitStart < 2 {
			return false
		}
		n.State = StateSendRID
		return true

	case StateSendRID:
		if !s.Driver.TXReady() {
			return false
		}
		s.sendFrame(BuildRIDFrame(n.Alias))
		n.State = StateSendAMD
		return true

	case StateSendAMD:
		if !s.Driver.TXReady() {
			return false
		}
		s.sendFrame(BuildAMDFrame(n.Alias, n.ID))
		s.Aliases.Register(n.Alias, n.ID)
		if s.OnAliasChange != nil {
			s.OnAliasChange(n, 0, n.Alias)
		}
		n.Permitted = true
		n.State = StateSendInitComplete
		return true

	case StateSendInitComplete:
		mti := MTIInitializationComplete
		if n.Params.ProtocolSupport&ProtocolEventExchange == 0 && n.Params.ProtocolSupport&ProtocolDatagram == 0 {
			mti = MTIInitializationCompleteSimple
		}
		m := s.allocGlobal(n, mti, BasicCapacity)
		if m == nil {
			return false
		}
		PutNodeID(m.Bytes(), 0, n.ID)
		m.Hdr().PayloadCount = 6
		s.EnqueueTX(m)
		n.Initialized = true
		n.producerCursor, n.consumerCursor = 0, 0
		n.State = StateSendProducerEvents
		return true

	case StateSendProducerEvents:
		if n.producerCursor >= len(n.Producers) {
			n.State = StateSendConsumerEvents
			return true
		}
		ev := &n.Producers[n.producerCursor]
		m := s.allocGlobal(n, producerIdentifiedMTI(ev.State), BasicCapacity)
		if m == nil {
			return false
		}
		PutEventID(m.Bytes(), 0, ev.ID)
		m.Hdr().PayloadCount = 8
		s.EnqueueTX(m)
		n.producerCursor++
		return true

	case StateSendConsumerEvents:
		if n.consumerCursor >= len(n.Consumers) {
			n.State = StateRun
			return true
		}
		ev := &n.Consumers[n.consumerCursor]
		m := s.allocGlobal(n, consumerIdentifiedMTI(ev.State), BasicCapacity)
		if m == nil {
			return false
		}
		PutEventID(m.Bytes(), 0, ev.ID)
		m.Hdr().PayloadCount = 8
		s.EnqueueTX(m)
		n.consumerCursor++
		return true
	}
	return false
}

// allocGlobal allocates a Basic-class message from the smallest pool that
// fits need bytes and fills in its header for a global send from n.
func (s *Stack) allocGlobal(n *Node, mti MTI, need int) Msg {
	class := PayloadBasic
	if need > BasicCapacity {
		class = PayloadDatagram
	}
	m := s.Pools.Allocate(class)
	if m == nil {
		return nil
	}
	h := m.Hdr()
	h.SourceAlias, h.SourceNodeID, h.MTI = n.Alias, n.ID, mti
	return m
}

func (s *Stack) sendFrame(f Frame) {
	if err := s.Driver.Send(f); err != nil {
		s.reportError(err)
		return
	}
	if s.OnTransmit != nil {
		s.OnTransmit(f)
	}
}
