package olcb

/*-------------------------------------------------------------------
 *
 * Purpose:  Event transport -- producer/consumer identify and
 *           publish/subscribe event reports.
 *
 *           Membership against a node's Producers/Consumers lists checks
 *           both exact matches and range entries (trailing-ones mask
 *           encoding, via RangeContains in types.go).
 *
 *-----------------------------------------------------------------*/

// EventTransportHandler implements the Identify/Learn/Report family of
// MTIs. It holds a back-reference to the owning Stack so it can allocate
// replies and enqueue them for TX.
type EventTransportHandler struct {
	stack *Stack
}

// Handle routes one event-transport message to the right sub-handler.
// dest is nil for global messages (every local node participates).
func (h *EventTransportHandler) Handle(dest *Node, m Msg) {
	s := h.stack
	targets := s.Nodes
	if dest != nil {
		targets = []*Node{dest}
	}

	switch m.Hdr().MTI {
	case MTIIdentifyConsumers:
		ev := ExtractEventID(m.Bytes(), 0)
		for _, n := range targets {
			h.identifyConsumers(n, m.Hdr().SourceAlias, ev)
		}
	case MTIIdentifyProducers:
		ev := ExtractEventID(m.Bytes(), 0)
		for _, n := range targets {
			h.identifyProducers(n, m.Hdr().SourceAlias, ev)
		}
	case MTIIdentifyEventsGlobal, MTIIdentifyEventsAddr:
		for _, n := range targets {
			h.beginIdentifyAll(n, m.Hdr().SourceAlias)
		}
	case MTILearnEvent:
		// No persistent teach/learn store in this repository; the MTI is
		// accepted and otherwise ignored.
	case MTIPCEventReport, MTIPCEventReportPayload:
		ev := ExtractEventID(m.Bytes(), 0)
		for _, n := range targets {
			h.deliverReport(n, ev, m)
		}
	}
}

func (h *EventTransportHandler) identifyConsumers(n *Node, replyTo Alias, ev EventID) {
	for i := range n.Consumers {
		c := &n.Consumers[i]
		if c.ID == ev || RangeContains(c.ID, ev) {
			h.sendIdentified(n, replyTo, consumerIdentifiedMTI(c.State), c.ID)
		}
	}
}

func (h *EventTransportHandler) identifyProducers(n *Node, replyTo Alias, ev EventID) {
	for i := range n.Producers {
		p := &n.Producers[i]
		if p.ID == ev || RangeContains(p.ID, ev) {
			h.sendIdentified(n, replyTo, producerIdentifiedMTI(p.State), p.ID)
		}
	}
}

// beginIdentifyAll starts (or restarts) a paced enumeration of n's
// producer and consumer events in response to an Identify-Events
// request. The actual replies are emitted one per PumpIdentify call
// rather than all at once, so a node with more events than the Basic
// pool has slots doesn't drop replies past pool exhaustion.
func (h *EventTransportHandler) beginIdentifyAll(n *Node, replyTo Alias) {
	n.producerCursor, n.consumerCursor = 0, 0
	n.identifyReplyTo = replyTo
	n.identifyPending = true
}

// PumpIdentify advances n's in-progress Identify-Events enumeration (if
// any) by a single event. Called once per RunOnce, the same cadence the
// login state machine uses to pace its own producer/consumer
// announcements.
func (h *EventTransportHandler) PumpIdentify(n *Node) {
	if !n.identifyPending {
		return
	}
	if n.producerCursor < len(n.Producers) {
		p := &n.Producers[n.producerCursor]
		if !h.sendIdentified(n, n.identifyReplyTo, producerIdentifiedMTI(p.State), p.ID) {
			return // pool exhausted this tick; retry the same event next tick
		}
		n.producerCursor++
		return
	}
	if n.consumerCursor < len(n.Consumers) {
		c := &n.Consumers[n.consumerCursor]
		if !h.sendIdentified(n, n.identifyReplyTo, consumerIdentifiedMTI(c.State), c.ID) {
			return
		}
		n.consumerCursor++
		return
	}
	n.identifyPending = false
}

func (h *EventTransportHandler) sendIdentified(n *Node, replyTo Alias, mti MTI, ev EventID) bool {
	s := h.stack
	m := s.allocGlobal(n, mti, BasicCapacity)
	if m == nil {
		return false
	}
	if mti.HasAddress() {
		m.Hdr().DestAlias = replyTo
	}
	PutEventID(m.Bytes(), 0, ev)
	m.Hdr().PayloadCount = 8
	s.EnqueueTX(m)
	return true
}

func (h *EventTransportHandler) deliverReport(n *Node, ev EventID, src Msg) {
	for i := range n.Consumers {
		c := &n.Consumers[i]
		if c.ID == ev || RangeContains(c.ID, ev) {
			// No in-core application callback registry: delivery is
			// observable via the Stack's OnReceive hook and the message
			// itself; an embedding application inspects consumed events
			// there. This keeps the core free of user-code indirection.
			_ = src
		}
	}
}

// ProduceEvent emits a PC-Event-Report for ev from node n -- the
// application-facing entry point an embedding program calls when one of
// its own events fires.
func (s *Stack) ProduceEvent(n *Node, ev EventID) {
	m := s.allocGlobal(n, MTIPCEventReport, BasicCapacity)
	if m == nil {
		return
	}
	PutEventID(m.Bytes(), 0, ev)
	m.Hdr().PayloadCount = 8
	s.EnqueueTX(m)
}
