package olcb

/*-------------------------------------------------------------------
 *
 * Purpose:  The cooperative main loop.
 *
 *           RunOnce is meant to be called as fast as the embedding program
 *           can manage -- it does no blocking I/O of its own, only
 *           draining whatever the driver has queued and polling TXReady.
 *           Tick is meant to be called from a fixed 100ms source (a
 *           hardware timer on real hardware; time.Ticker in the example
 *           binaries) and only advances every node's tick counter, which
 *           the WAIT_200MS login state reads; no reply-pending timeout is
 *           tracked. Keeping the two separate lets tests
 *           drive login timing deterministically without a real clock.
 *
 *-----------------------------------------------------------------*/

// RunOnce drains the RX FIFO, advances every node's login state machine by
// one step and its Identify-Events enumeration by one event, and sends as
// many TX FIFO frames as the driver will accept. It never blocks.
func (s *Stack) RunOnce() {
	s.drainRX()
	for _, n := range s.Nodes {
		s.RunLogin(n)
		s.EventTransport.PumpIdentify(n)
	}
	s.pumpTX()
}

func (s *Stack) drainRX() {
	for len(s.rxFIFO) > 0 {
		m := s.rxFIFO[0]
		s.rxFIFO = s.rxFIFO[1:]
		s.Dispatch(m)
	}
}

// pumpTX fragments and sends as much of the TX FIFO as the driver will
// currently accept, never interleaving one node's multi-frame message
// with another's.
func (s *Stack) pumpTX() {
	for {
		if !s.fragActive {
			if len(s.txFIFO) == 0 {
				return
			}
			s.fragMsg = s.txFIFO[0]
			s.txFIFO = s.txFIFO[1:]
			s.fragIndex = 0
			s.fragActive = true
			s.fragNode = s.FindNodeByAlias(s.fragMsg.Hdr().SourceAlias)
		}

		if !s.Driver.TXReady() {
			return
		}

		sourceAlias := s.fragMsg.Hdr().SourceAlias
		f, next, done := nextFrame(s.fragMsg, s.fragIndex, sourceAlias)
		if err := s.Driver.Send(f); err != nil {
			s.reportError(err)
			s.fragMsg.Free()
			s.fragActive = false
			continue
		}
		if s.OnTransmit != nil {
			s.OnTransmit(f)
		}
		s.fragIndex = next
		if done {
			s.fragMsg.Free()
			s.fragActive = false
		}
	}
}

// Tick is the 100ms time source. It advances every node's tick counter and
// lets the login state machine's WAIT_200MS state (and any other
// tick-gated state) make progress on the next RunOnce.
func (s *Stack) Tick() {
	for _, n := range s.Nodes {
		n.TimerTicks++
	}
}
