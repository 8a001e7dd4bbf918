package olcb

/*-------------------------------------------------------------------
 *
 * Purpose:  Fixed-size, refcounted buffer pools.
 *
 *           Four independent classes -- BASIC, DATAGRAM, SNIP, STREAM --
 *           each backed by a slice allocated once at Stack construction
 *           time and never resized. Allocate does a linear scan for a free
 *           slot; at this scale (tens of slots per class) that is cheaper
 *           and more predictable than any free-list bookkeeping. Peak
 *           occupancy is tracked per class to drive pool sizing.
 *
 *           Design note: each class gets its own fixed payload array type
 *           and its own pool, rather than one message type spanning
 *           differently-sized backing stores through a pointer
 *           indirection array. A caller that needs to hold messages of
 *           more than one class in the same queue uses the Msg interface,
 *           which every *Message[T] satisfies.
 *
 *-----------------------------------------------------------------*/

// PayloadType tags which pool a message was allocated from.
type PayloadType int

const (
	PayloadBasic PayloadType = iota
	PayloadDatagram
	PayloadSNIP
	PayloadStream
)

func (t PayloadType) String() string {
	switch t {
	case PayloadBasic:
		return "BASIC"
	case PayloadDatagram:
		return "DATAGRAM"
	case PayloadSNIP:
		return "SNIP"
	case PayloadStream:
		return "STREAM"
	default:
		return "UNKNOWN"
	}
}

// Payload class capacities.
const (
	BasicCapacity    = 8
	DatagramCapacity = 72
	SNIPCapacity     = 253
	StreamCapacity   = 512
)

type BasicPayload [BasicCapacity]byte
type DatagramPayload [DatagramCapacity]byte
type SNIPPayload [SNIPCapacity]byte
type StreamPayload [StreamCapacity]byte

// PayloadArray constrains the fixed-size arrays usable as pool backing
// storage.
type PayloadArray interface {
	BasicPayload | DatagramPayload | SNIPPayload | StreamPayload
}

// Header holds the fields of an OpenLCB message that aren't the payload
// bytes themselves.
type Header struct {
	SourceAlias  Alias
	SourceNodeID NodeID
	DestAlias    Alias
	DestNodeID   NodeID
	MTI          MTI
	PayloadCount int
	Ticks        int  // reply-pending timer slot; nothing in the core reads or writes it
	Inprocess    bool // true while a reassembly is still collecting frames
}

// Msg is the polymorphic handle protocol handlers and queues use, so that
// a single FIFO can hold messages allocated from any of the four pools
// without boxing a byte-pointer indirection array.
type Msg interface {
	Class() PayloadType
	Bytes() []byte // full capacity of the backing array
	Cap() int
	Hdr() *Header
	IncRef()
	Free()
}

// Message is a pool slot: header plus a fixed payload array of type T.
type Message[T PayloadArray] struct {
	Header
	payload   T
	class     PayloadType
	allocated bool
	refcount  uint8
	pool      *Pool[T]
}

func (m *Message[T]) Class() PayloadType { return m.class }
func (m *Message[T]) Bytes() []byte      { return m.payload[:] }
func (m *Message[T]) Cap() int           { return len(m.payload) }
func (m *Message[T]) Hdr() *Header       { return &m.Header }

// IncRef bumps the refcount because the message is now also held by
// another queue or pending-reply slot.
func (m *Message[T]) IncRef() {
	m.refcount++
}

// Free drops one reference; when it reaches zero the slot is zeroed and
// returned to its pool. Free of an unallocated or nil message is a no-op.
func (m *Message[T]) Free() {
	if m == nil || !m.allocated {
		return
	}
	if m.refcount > 0 {
		m.refcount--
	}
	if m.refcount == 0 {
		m.pool.release(m)
	}
}

// Allocated reports whether this slot currently holds a live message.
func (m *Message[T]) Allocated() bool { return m.allocated }

// Refcount returns the current reference count (for tests/invariant
// checks).
func (m *Message[T]) Refcount() uint8 { return m.refcount }

// Pool is one fixed-size array of Message[T] slots.
type Pool[T PayloadArray] struct {
	class   PayloadType
	slots   []Message[T]
	current int
	peak    int
}

// NewPool allocates size slots of class once; no further allocation
// happens over the pool's lifetime.
func NewPool[T PayloadArray](class PayloadType, size int) *Pool[T] {
	p := &Pool[T]{class: class, slots: make([]Message[T], size)}
	for i := range p.slots {
		p.slots[i].pool = p
		p.slots[i].class = class
	}
	return p
}

// Allocate returns the first free slot, or nil on exhaustion. It never
// blocks and never grows the backing slice.
func (p *Pool[T]) Allocate() *Message[T] {
	for i := range p.slots {
		s := &p.slots[i]
		if !s.allocated {
			s.Header = Header{}
			var zero T
			s.payload = zero
			s.allocated = true
			s.refcount = 1
			p.current++
			if p.current > p.peak {
				p.peak = p.current
			}
			return s
		}
	}
	return nil
}

func (p *Pool[T]) release(m *Message[T]) {
	m.Header = Header{}
	var zero T
	m.payload = zero
	m.allocated = false
	m.refcount = 0
	p.current--
}

// Telemetry returns current and peak occupancy for this class.
func (p *Pool[T]) Telemetry() (current, peak int) {
	return p.current, p.peak
}

// ResetPeakTelemetry sets peak back down to the current occupancy.
func (p *Pool[T]) ResetPeakTelemetry() {
	p.peak = p.current
}

// Size returns the fixed number of slots in this pool.
func (p *Pool[T]) Size() int { return len(p.slots) }

// Pools bundles the four class pools a Stack needs. Sizes are fixed at
// Stack-construction time rather than at Go compile time, since slice
// lengths can't be generic constants.
type Pools struct {
	Basic    *Pool[BasicPayload]
	Datagram *Pool[DatagramPayload]
	SNIP     *Pool[SNIPPayload]
	Stream   *Pool[StreamPayload]
}

// PoolSizes configures how many slots each class pool gets.
type PoolSizes struct {
	Basic    int
	Datagram int
	SNIP     int
	Stream   int
}

// DefaultPoolSizes are sane defaults for a single-node embedded stack.
func DefaultPoolSizes() PoolSizes {
	return PoolSizes{Basic: 16, Datagram: 4, SNIP: 2, Stream: 2}
}

// NewPools builds the four class pools from sizes.
func NewPools(sizes PoolSizes) *Pools {
	return &Pools{
		Basic:    NewPool[BasicPayload](PayloadBasic, sizes.Basic),
		Datagram: NewPool[DatagramPayload](PayloadDatagram, sizes.Datagram),
		SNIP:     NewPool[SNIPPayload](PayloadSNIP, sizes.SNIP),
		Stream:   NewPool[StreamPayload](PayloadStream, sizes.Stream),
	}
}

// Allocate returns a new Msg from the pool matching class, or nil on
// exhaustion.
func (p *Pools) Allocate(class PayloadType) Msg {
	switch class {
	case PayloadBasic:
		if m := p.Basic.Allocate(); m != nil {
			return m
		}
	case PayloadDatagram:
		if m := p.Datagram.Allocate(); m != nil {
			return m
		}
	case PayloadSNIP:
		if m := p.SNIP.Allocate(); m != nil {
			return m
		}
	case PayloadStream:
		if m := p.Stream.Allocate(); m != nil {
			return m
		}
	}
	return nil
}

// CapacityFor returns the payload byte capacity of class, used to pick the
// smallest pool that fits an outgoing message.
func CapacityFor(class PayloadType) int {
	switch class {
	case PayloadBasic:
		return BasicCapacity
	case PayloadDatagram:
		return DatagramCapacity
	case PayloadSNIP:
		return SNIPCapacity
	case PayloadStream:
		return StreamCapacity
	default:
		return 0
	}
}
