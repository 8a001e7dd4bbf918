package olcb

/*-------------------------------------------------------------------
 *
 * Purpose:  RX classification entry point and MTI dispatch table.
 *
 *           RXFrame is what a driver calls (directly, or from a frame
 *           queue of its own) for every frame it receives. It handles
 *           the CAN-control classes (CID/RID/AMD/AME/AMR/error-info)
 *           inline, since those never need reassembly, and feeds
 *           data-frame classes through the Reassembler. A completed
 *           message is pushed to the RX FIFO for Dispatch to route by MTI
 *           on the next RunOnce -- keeping "a frame arrived" and "a
 *           message is ready to handle" as separate steps.
 *
 *-----------------------------------------------------------------*/

// RXFrame classifies and processes one inbound CAN frame.
func (s *Stack) RXFrame(f Frame) {
	if s.OnReceive != nil {
		s.OnReceive(f)
	}
	sourceAlias := f.SourceAlias()
	fc := Classify(f.ID)

	switch fc {
	case ClassCID:
		s.handleCID(f, sourceAlias)
	case ClassRID:
		// Reservation only; no mapping to record yet (AMD follows).
	case ClassAMD:
		s.handleAMD(f, sourceAlias)
	case ClassAMR:
		s.Aliases.Unregister(sourceAlias)
	case ClassAME:
		s.handleAME(f)
	case ClassErrorInfoReport:
		// Informational only; nothing the core must react to.
	case ClassGlobalOrAddressed:
		s.handleDataFrame(f, sourceAlias)
	case ClassDatagramOnly, ClassDatagramFirst, ClassDatagramMiddle, ClassDatagramLast:
		s.handleDatagramFrame(f, fc, sourceAlias)
	case ClassStream:
		// Raw stream data-frame movement is out of scope here; only the
		// stream-control MTIs over global/addressed frames are handled,
		// in dispatchStream.
	}
}

func (s *Stack) handleCID(f Frame, candidateAlias Alias) {
	if _, ok := s.Aliases.FindByAlias(candidateAlias); ok {
		s.Aliases.MarkDuplicate(candidateAlias)
		return
	}
	for _, n := range s.Nodes {
		if n.Alias == candidateAlias && n.State != StateRun {
			s.Aliases.MarkDuplicate(candidateAlias)
			return
		}
	}
}

func (s *Stack) handleAMD(f Frame, alias Alias) {
	id := ExtractNodeID(f.Payload[:], 0)
	if existingID, ok := s.Aliases.FindByAlias(alias); ok && existingID != id {
		s.Aliases.MarkDuplicate(alias)
		return
	}
	s.Aliases.Register(alias, id)
}

func (s *Stack) handleAME(f Frame) {
	var target NodeID
	hasTarget := f.PayloadCount >= 6
	if hasTarget {
		target = ExtractNodeID(f.Payload[:], 0)
	}
	for _, n := range s.Nodes {
		if !n.Permitted {
			continue
		}
		if hasTarget && n.ID != target {
			continue
		}
		s.sendFrame(BuildAMDFrame(n.Alias, n.ID))
	}
}

func (s *Stack) handleDataFrame(f Frame, sourceAlias Alias) {
	mti := CANMTI(f.ID)
	m, err := s.Reassembly.ReassembleGlobalOrAddressed(s.Pools, f, mti, sourceAlias)
	if err != nil {
		s.reportError(err)
		if mti.HasAddress() {
			s.sendFrame(BuildErrorInfoReportFrame(sourceAlias))
		}
		return
	}
	if m != nil {
		s.EnqueueRX(m)
	}
}

func (s *Stack) handleDatagramFrame(f Frame, fc FrameClass, sourceAlias Alias) {
	destAlias := DatagramDestAlias(f.ID)
	m, err := s.Reassembly.ReassembleDatagram(s.Pools, f, fc, sourceAlias, destAlias)
	if err != nil {
		s.reportError(err)
		s.sendFrame(BuildErrorInfoReportFrame(sourceAlias))
		return
	}
	if m != nil {
		m.Hdr().MTI = MTIDatagram
		s.EnqueueRX(m)
	}
}

// Dispatch routes one fully-assembled message to the handler for its MTI,
// after resolving an addressed message's destination to a locally-hosted
// node (dropping it if there is none).
func (s *Stack) Dispatch(m Msg) {
	h := m.Hdr()
	var dest *Node
	if h.MTI == MTIDatagram || h.MTI.HasAddress() {
		dest = s.FindNodeByAlias(h.DestAlias)
		if dest == nil {
			m.Free()
			return
		}
	}

	switch {
	case h.MTI == MTIDatagram:
		s.ConfigMem.HandleDatagram(dest, m)
		return
	case h.MTI == MTIVerifyNodeIDGlobal, h.MTI == MTIVerifyNodeIDAddressed:
		s.dispatchVerifyNodeID(dest, m)
	case h.MTI == MTIProtocolSupportInquiry:
		s.dispatchProtocolSupport(dest, m)
	case h.MTI == MTISimpleNodeInfoRequest:
		s.SNIP.HandleRequest(dest, m)
	case h.MTI == MTIIdentifyConsumers, h.MTI == MTIIdentifyProducers,
		h.MTI == MTIIdentifyEventsGlobal, h.MTI == MTIIdentifyEventsAddr,
		h.MTI == MTILearnEvent, h.MTI == MTIPCEventReport, h.MTI == MTIPCEventReportPayload:
		s.EventTransport.Handle(dest, m)
	case h.MTI == MTIStreamInitiateRequest, h.MTI == MTIStreamInitiateReply,
		h.MTI == MTIStreamProceed, h.MTI == MTIStreamComplete:
		s.dispatchStream(dest, m)
	case h.MTI == MTITractionControlCommand, h.MTI == MTITractionControlReply:
		s.dispatchTraction(dest, m)
	default:
		s.replyOptionalInteractionRejected(dest, m, 0x1042)
	}
	m.Free()
}

func (s *Stack) dispatchVerifyNodeID(dest *Node, m Msg) {
	h := m.Hdr()
	var targets []*Node
	if dest != nil {
		targets = []*Node{dest}
	} else {
		targets = s.Nodes
	}
	if h.PayloadCount >= 6 {
		requested := ExtractNodeID(m.Bytes(), 0)
		targets = targets[:0]
		for _, n := range s.Nodes {
			if n.ID == requested {
				targets = append(targets, n)
			}
		}
	}
	for _, n := range targets {
		if !n.Permitted {
			continue
		}
		reply := s.allocGlobal(n, MTIVerifiedNodeID, BasicCapacity)
		if reply == nil {
			continue
		}
		PutNodeID(reply.Bytes(), 0, n.ID)
		reply.Hdr().PayloadCount = 6
		s.EnqueueTX(reply)
	}
}

func (s *Stack) dispatchProtocolSupport(dest *Node, m Msg) {
	if dest == nil {
		return
	}
	reply := s.allocGlobal(dest, MTIProtocolSupportReply, BasicCapacity)
	if reply == nil {
		return
	}
	reply.Hdr().DestAlias = m.Hdr().SourceAlias
	rb := reply.Bytes()
	mask := dest.Params.ProtocolSupport
	rb[0] = byte(mask >> 40)
	rb[1] = byte(mask >> 32)
	rb[2] = byte(mask >> 24)
	rb[3] = byte(mask >> 16)
	rb[4] = byte(mask >> 8)
	rb[5] = byte(mask)
	reply.Hdr().PayloadCount = 6
	s.EnqueueTX(reply)
}

// replyOptionalInteractionRejected is the fallback reply for an
// unrecognized MTI on an addressed message.
func (s *Stack) replyOptionalInteractionRejected(dest *Node, m Msg, code uint16) {
	if dest == nil || !m.Hdr().MTI.HasAddress() {
		return
	}
	reply := s.allocGlobal(dest, MTIOptionalInteractionRejected, BasicCapacity)
	if reply == nil {
		return
	}
	reply.Hdr().DestAlias = m.Hdr().SourceAlias
	rb := reply.Bytes()
	PutWord(rb, 0, code)
	PutWord(rb, 2, uint16(m.Hdr().MTI))
	reply.Hdr().PayloadCount = 4
	s.EnqueueTX(reply)
}
