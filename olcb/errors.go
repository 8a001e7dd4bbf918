package olcb

import "fmt"

// Error is a plain sentinel error value; the core never wraps these in
// richer error types since callers only need to branch on identity or log
// the message.
type Error string

func (e Error) Error() string { return string(e) }

const (
	errReassemblyExhausted = Error("reassembly: no free slot")
	errOutOfSequence       = Error("reassembly: middle/last frame with no matching first")
	errAliasTableFull      = Error("alias table: no free slot")
	errNoDestination       = Error("dispatch: destination alias not a local node")
	errDatagramPending     = Error("datagram: reply already pending")
)

func errPoolExhausted(class PayloadType) error {
	return fmt.Errorf("pool %s: exhausted", class)
}
