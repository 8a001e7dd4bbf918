package olcb

/*-------------------------------------------------------------------
 *
 * Purpose:  The boundary contract with the physical CAN driver. The
 *           driver itself is always an external collaborator --
 *           register-level TWAI/ECAN/SocketCAN/GridConnect-over-TCP -- and
 *           is never implemented by this package. See drivers/ for example
 *           adapters.
 *
 *-----------------------------------------------------------------*/

// CANDriver is what the core requires from a physical or virtual CAN
// transport.
type CANDriver interface {
	// TXReady reports whether the driver can accept another frame right
	// now. The fragmenter and login state machine poll this and retry
	// next tick rather than blocking.
	TXReady() bool

	// Send transmits one frame. Only called after TXReady returned true.
	Send(Frame) error

	// IsConnected reports the current connection state. Every driver in
	// this repository returns a real value here rather than a
	// hardcoded true; a disconnected transport must be detectable.
	IsConnected() bool
}

// FrameSink is what a driver calls to deliver an inbound frame to the
// core. The Stack's RXFrame method satisfies this signature.
type FrameSink func(Frame)

// PauseRX and ResumeRX give an ISR-context (or goroutine-context) driver a
// way to keep the shared buffer pools and alias table consistent around a
// callback. A driver that instead defers delivery to a queue drained by
// the main loop does not need to call these.
func (s *Stack) PauseRX() {
	s.rxMu.Lock()
}

func (s *Stack) ResumeRX() {
	s.rxMu.Unlock()
}
