package olcb

import "sync"

/*-------------------------------------------------------------------
 *
 * Purpose:  Node and NodeParameters data model, and the Stack context
 *           that bundles all mutable state (pools, alias table, node
 *           list, FIFOs) into a single handle instead of package-level
 *           globals.
 *
 *-----------------------------------------------------------------*/

// AddressSpace describes one configuration-memory address space. The
// core enforces read-only / present / low-address-valid / highest-address
// from these declarations; it never touches storage itself.
type AddressSpace struct {
	Present         bool
	ReadOnly        bool
	LowAddressValid bool
	LowAddress      uint32
	HighestAddress  uint32
	Description     string
}

// Address space IDs.
const (
	SpaceCDI               byte = 0xFF
	SpaceAll               byte = 0xFE
	SpaceConfig             byte = 0xFD
	SpaceACDIMfg            byte = 0xFC
	SpaceACDIUser           byte = 0xFB
	SpaceTrainFunctionDef   byte = 0xFA
	SpaceTrainFunctionConfig byte = 0xF9
	SpaceFirmware           byte = 0xEF
)

// ProtocolSupport bits reported in a Protocol-Support-Reply. Only
// EventExchange and Datagram gate core behavior (a node with neither sends
// the Simple Initialization-Complete MTI); the rest are reported
// pass-through.
const (
	ProtocolSimpleNodeInformation uint64 = 1 << iota
	ProtocolDatagram
	ProtocolConfigurationDescription
	ProtocolStream
	ProtocolEventExchange
	ProtocolSimpleTrainControl
	ProtocolTractionControl
	ProtocolCDI
	ProtocolDisplay
	ProtocolIdentification
	ProtocolIdentificationMfg
)

// NodeParameters is the immutable, per-node descriptor: SNIP static
// fields, protocol-support mask, address-space declarations, CDI blob, and
// seed producer/consumer event lists.
type NodeParameters struct {
	Manufacturer    string
	Model           string
	HardwareVersion string
	SoftwareVersion string

	ProtocolSupport uint64
	AddressSpaces   map[byte]AddressSpace
	CDI             []byte

	Producers []EventID
	Consumers []EventID
}

// RunState is a login-state-machine state.
type RunState int

const (
	StateInit RunState = iota
	StateGenerateSeed
	StateGenerateAlias
	StateSendCID07
	StateSendCID06
	StateSendCID05
	StateSendCID04
	StateWait200ms
	StateSendRID
	StateSendAMD
	StateSendInitComplete
	StateSendProducerEvents
	StateSendConsumerEvents
	StateRun
)

// ConfigMemCallbacks are the injected storage accessors the
// configuration-memory handler calls instead of touching hardware
// itself.
type ConfigMemCallbacks struct {
	Read          func(node *Node, space byte, offset uint32, buf []byte) (int, error)
	Write         func(node *Node, space byte, offset uint32, data []byte) error
	Reboot        func(node *Node)
	FactoryReset  func(node *Node)
	UniqueID      func(node *Node) [6]byte
	UpdateComplete func(node *Node)
}

// Node is a logical OpenLCB endpoint.
type Node struct {
	ID    NodeID
	Alias Alias

	seedHi uint32 // GENERATE_SEED's high 24-bit LFSR register
	seedLo uint32 // GENERATE_SEED's low 24-bit LFSR register

	State RunState

	Permitted           bool
	Initialized         bool
	DuplicateIDDetected  bool
	DatagramAckSent      bool
	FirmwareUpgradeActive bool

	Params *NodeParameters

	Producers []EventEntry
	Consumers []EventEntry

	producerCursor int
	consumerCursor int

	// identifyPending and identifyReplyTo pace a live Identify-Events
	// (global or addressed) enumeration across ticks, reusing
	// producerCursor/consumerCursor the same way the login state machine
	// does for its own producer/consumer announcement.
	identifyPending bool
	identifyReplyTo Alias

	TimerTicks uint32

	// waitStart is the TimerTicks value recorded on entry to
	// StateWait200ms.
	waitStart uint32

	// PendingDatagram is a slot for the last-received datagram buffer. The
	// core never sets or reads it; no duplicate-delivery detection is done.
	PendingDatagram Msg

	// ConfigMemLockedBy is the NodeID holding the exclusive
	// RESERVE-LOCK, or 0 if unlocked.
	ConfigMemLockedBy NodeID

	// FrozenSpaces tracks address spaces that have been FREEZE'd.
	FrozenSpaces map[byte]bool

	// TrainState is an optional hook for a train-throttle extension. Out
	// of scope for this repository; always nil here.
	TrainState interface{}
}

// NewNode constructs a Node with the given identity and parameters, ready
// to begin login from StateInit.
func NewNode(id NodeID, params *NodeParameters) *Node {
	n := &Node{
		ID:           id,
		Params:       params,
		State:        StateInit,
		FrozenSpaces: make(map[byte]bool),
	}
	for _, ev := range params.Producers {
		n.Producers = append(n.Producers, EventEntry{ID: ev, State: EventUnknown})
	}
	for _, ev := range params.Consumers {
		n.Consumers = append(n.Consumers, EventEntry{ID: ev, State: EventUnknown})
	}
	return n
}

// Stack is the single context handle bundling every piece of state the
// core needs: buffer pools, alias table, node list, driver, FIFOs, and the
// protocol handlers. There are no package-level globals.
type Stack struct {
	Pools      *Pools
	Aliases    *AliasTable
	Nodes      []*Node
	Driver     CANDriver
	Reassembly *Reassembler

	rxFIFO []Msg
	txFIFO []Msg

	fragActive bool
	fragMsg    Msg
	fragIndex  int
	fragNode   *Node

	rxMu sync.Mutex

	EventTransport *EventTransportHandler
	SNIP           *SNIPHandler
	ConfigMem      *ConfigMemHandler
	Stream         StreamHandler
	Train          TrainHandler

	// Observer hooks. Never called from within a handler's core logic
	// path in a way that could block; nil-checked before every call.
	OnReceive     func(Frame)
	OnTransmit    func(Frame)
	OnAliasChange func(node *Node, old, new Alias)
	OnError       func(err error)
}

// StackConfig bundles the construction-time choices for NewStack.
type StackConfig struct {
	PoolSizes    PoolSizes
	AliasSlots   int
	ReassemblySlots int
	Driver       CANDriver
	ConfigMem    ConfigMemCallbacks
}

// NewStack builds a Stack with its pools, alias table, and protocol
// handlers wired together.
func NewStack(cfg StackConfig) *Stack {
	s := &Stack{
		Pools:   NewPools(cfg.PoolSizes),
		Aliases: NewAliasTable(cfg.AliasSlots),
		Driver:  cfg.Driver,
	}
	s.Reassembly = NewReassembler(cfg.ReassemblySlots)
	s.EventTransport = &EventTransportHandler{stack: s}
	s.SNIP = &SNIPHandler{stack: s}
	s.ConfigMem = &ConfigMemHandler{stack: s, callbacks: cfg.ConfigMem}
	return s
}

// AddNode registers a new logical node with the stack and returns it.
func (s *Stack) AddNode(id NodeID, params *NodeParameters) *Node {
	n := NewNode(id, params)
	s.Nodes = append(s.Nodes, n)
	return n
}

// FindNodeByAlias returns the locally-hosted node owning alias, if any.
func (s *Stack) FindNodeByAlias(alias Alias) *Node {
	for _, n := range s.Nodes {
		if n.Permitted && n.Alias == alias {
			return n
		}
	}
	return nil
}

// FindNodeByID returns the locally-hosted node with the given NodeID, if
// any.
func (s *Stack) FindNodeByID(id NodeID) *Node {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// EnqueueTX appends an assembled outgoing message to the transmit FIFO.
// The dispatcher calls this after a handler produces a reply; messages
// for one node go out in the order they were enqueued, since FIFO order
// plus RunOnce handling RX-then-TX per iteration preserves it.
func (s *Stack) EnqueueTX(m Msg) {
	s.txFIFO = append(s.txFIFO, m)
}

// EnqueueRX appends an assembled incoming message for the dispatcher to
// process on the next RunOnce.
func (s *Stack) EnqueueRX(m Msg) {
	s.rxFIFO = append(s.rxFIFO, m)
}

func (s *Stack) reportError(err error) {
	if s.OnError != nil {
		s.OnError(err)
	}
}
