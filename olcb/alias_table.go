package olcb

/*-------------------------------------------------------------------
 *
 * Purpose:  Fixed alias <-> NodeID mapping table.
 *
 *           This is the single source of truth for "which aliases on this
 *           wire are ours"; CAN-RX classification consults it to decide
 *           whether to reassemble an addressed message, and the login
 *           state machine consults it for duplicate-alias detection.
 *
 *-----------------------------------------------------------------*/

type aliasSlot struct {
	alias  Alias // 0 is the empty-slot sentinel
	nodeID NodeID
}

// AliasTable is a fixed-size, linearly-probed alias/NodeID table.
type AliasTable struct {
	slots []aliasSlot

	// DuplicateAlias is set by the RX path when an inbound CID/RID/AMD/AME
	// names an alias this table already owns, and polled by the login
	// state machine on its next step. DuplicateAliasValue records the
	// alias in question.
	DuplicateAlias       bool
	DuplicateAliasValue Alias
}

// NewAliasTable allocates a table with size fixed slots.
func NewAliasTable(size int) *AliasTable {
	return &AliasTable{slots: make([]aliasSlot, size)}
}

// Register inserts (alias, id). It fails (returns false) if either key is
// already present, or if the table is full.
func (t *AliasTable) Register(alias Alias, id NodeID) bool {
	if alias == 0 {
		return false
	}
	free := -1
	for i := range t.slots {
		s := &t.slots[i]
		if s.alias == 0 {
			if free < 0 {
				free = i
			}
			continue
		}
		if s.alias == alias || s.nodeID == id {
			return false
		}
	}
	if free < 0 {
		return false
	}
	t.slots[free] = aliasSlot{alias: alias, nodeID: id}
	return true
}

// FindByAlias returns the NodeID registered under alias, if any.
func (t *AliasTable) FindByAlias(alias Alias) (NodeID, bool) {
	for i := range t.slots {
		if t.slots[i].alias == alias && alias != 0 {
			return t.slots[i].nodeID, true
		}
	}
	return 0, false
}

// FindByNodeID returns the alias registered for id, if any.
func (t *AliasTable) FindByNodeID(id NodeID) (Alias, bool) {
	for i := range t.slots {
		if t.slots[i].alias != 0 && t.slots[i].nodeID == id {
			return t.slots[i].alias, true
		}
	}
	return 0, false
}

// Unregister clears the slot for alias. Unregistering an alias that isn't
// present is a no-op.
func (t *AliasTable) Unregister(alias Alias) {
	if alias == 0 {
		return
	}
	for i := range t.slots {
		if t.slots[i].alias == alias {
			t.slots[i] = aliasSlot{}
			return
		}
	}
}

// MarkDuplicate records that alias collided with one this table already
// owns, for the login state machine to notice on its next poll.
func (t *AliasTable) MarkDuplicate(alias Alias) {
	t.DuplicateAlias = true
	t.DuplicateAliasValue = alias
}

// ConsumeDuplicate clears and returns the pending duplicate-alias flag.
func (t *AliasTable) ConsumeDuplicate() (Alias, bool) {
	if !t.DuplicateAlias {
		return 0, false
	}
	t.DuplicateAlias = false
	a := t.DuplicateAliasValue
	t.DuplicateAliasValue = 0
	return a, true
}
