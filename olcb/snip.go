package olcb

/*-------------------------------------------------------------------
 *
 * Purpose:  Simple Node Information Protocol.
 *
 *           The reply is a fixed-format blob: a manufacturer-version byte
 *           (always 4), four null-terminated manufacturer-side strings
 *           from NodeParameters, a user-version byte (always 2), and two
 *           null-terminated user-side strings pulled through the
 *           ConfigMemCallbacks read hook (ACDI/user-name, ACDI/user-
 *           description) rather than stored statically, since those two
 *           are the only SNIP fields an end user can edit.
 *
 *-----------------------------------------------------------------*/

const (
	snipMfgVersion  = 4
	snipUserVersion = 2
)

// SNIPHandler implements the Simple-Node-Info-Request/Reply exchange.
type SNIPHandler struct {
	stack *Stack
}

// HandleRequest builds and enqueues a (possibly multi-frame) SNIP reply
// for dest. The reply is allocated from the SNIP pool since it generally
// exceeds the 8-byte Basic class.
func (h *SNIPHandler) HandleRequest(dest *Node, req Msg) {
	if dest == nil {
		return
	}
	s := h.stack
	reply := s.Pools.Allocate(PayloadSNIP)
	if reply == nil {
		s.reportError(errPoolExhausted(PayloadSNIP))
		return
	}
	rh := reply.Hdr()
	rh.SourceAlias, rh.SourceNodeID = dest.Alias, dest.ID
	rh.DestAlias = req.Hdr().SourceAlias
	rh.MTI = MTISimpleNodeInfoReply

	buf := reply.Bytes()
	n := 0
	buf[n] = snipMfgVersion
	n++
	n += writeCString(buf[n:], dest.Params.Manufacturer)
	n += writeCString(buf[n:], dest.Params.Model)
	n += writeCString(buf[n:], dest.Params.HardwareVersion)
	n += writeCString(buf[n:], dest.Params.SoftwareVersion)
	buf[n] = snipUserVersion
	n++

	name, desc := h.readUserStrings(dest)
	n += writeCString(buf[n:], name)
	n += writeCString(buf[n:], desc)

	rh.PayloadCount = n
	s.EnqueueTX(reply)
}

func (h *SNIPHandler) readUserStrings(n *Node) (name, desc string) {
	cb := h.stack.ConfigMem.callbacks.Read
	if cb == nil {
		return "", ""
	}
	var buf [64]byte
	if cnt, err := cb(n, SpaceACDIUser, 1, buf[:]); err == nil {
		name = cStringFrom(buf[:cnt])
	}
	var buf2 [64]byte
	if cnt, err := cb(n, SpaceACDIUser, 65, buf2[:]); err == nil {
		desc = cStringFrom(buf2[:cnt])
	}
	return name, desc
}

func writeCString(buf []byte, s string) int {
	n := copy(buf, s)
	if n < len(buf) {
		buf[n] = 0
		n++
	}
	return n
}

func cStringFrom(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}
