package olcb

/*-------------------------------------------------------------------
 *
 * Purpose:  Stream and Traction Control MTI plumbing.
 *
 *           Streaming's sliding window and raw stream-class data frames
 *           are explicitly out of scope for this repository. What IS
 *           implemented is the control handshake MTIs (Initiate-
 *           Request/Reply, Proceed, Complete), routed to an injected
 *           StreamHandler so an embedding application can refuse or
 *           no-op them without the core knowing the difference -- the
 *           same "reject, don't crash" contract as an unrecognized MTI.
 *
 *-----------------------------------------------------------------*/

// StreamHandler lets an embedding application participate in the stream
// control handshake. A nil Stack.Stream rejects every stream request.
type StreamHandler interface {
	HandleStreamInitiateRequest(n *Node, m Msg)
	HandleStreamInitiateReply(n *Node, m Msg)
	HandleStreamProceed(n *Node, m Msg)
	HandleStreamComplete(n *Node, m Msg)
}

// TrainHandler lets an embedding application answer Traction Control
// Command/Reply MTIs. A nil Stack.Train rejects every traction request;
// train-control semantics are out of scope here, only MTI-level plumbing
// is provided.
type TrainHandler interface {
	HandleTractionCommand(n *Node, m Msg)
	HandleTractionReply(n *Node, m Msg)
}

func (s *Stack) dispatchStream(dest *Node, m Msg) {
	if s.Stream == nil || dest == nil {
		s.replyOptionalInteractionRejected(dest, m, 0x1042)
		return
	}
	switch m.Hdr().MTI {
	case MTIStreamInitiateRequest:
		s.Stream.HandleStreamInitiateRequest(dest, m)
	case MTIStreamInitiateReply:
		s.Stream.HandleStreamInitiateReply(dest, m)
	case MTIStreamProceed:
		s.Stream.HandleStreamProceed(dest, m)
	case MTIStreamComplete:
		s.Stream.HandleStreamComplete(dest, m)
	}
}

func (s *Stack) dispatchTraction(dest *Node, m Msg) {
	if s.Train == nil || dest == nil {
		s.replyOptionalInteractionRejected(dest, m, 0x1042)
		return
	}
	switch m.Hdr().MTI {
	case MTITractionControlCommand:
		s.Train.HandleTractionCommand(dest, m)
	case MTITractionControlReply:
		s.Train.HandleTractionReply(dest, m)
	}
}
