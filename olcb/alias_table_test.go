package olcb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAliasTableRegisterAndLookup(t *testing.T) {
	tbl := NewAliasTable(4)
	assert.True(t, tbl.Register(Alias(1), NodeID(100)))

	id, ok := tbl.FindByAlias(Alias(1))
	assert.True(t, ok)
	assert.Equal(t, NodeID(100), id)

	alias, ok := tbl.FindByNodeID(NodeID(100))
	assert.True(t, ok)
	assert.Equal(t, Alias(1), alias)
}

func TestAliasTableRejectsDuplicateAliasOrNode(t *testing.T) {
	tbl := NewAliasTable(4)
	assert.True(t, tbl.Register(Alias(1), NodeID(100)))
	assert.False(t, tbl.Register(Alias(1), NodeID(200)), "alias already owned")
	assert.False(t, tbl.Register(Alias(2), NodeID(100)), "NodeID already owned")
}

func TestAliasTableRejectsZeroAlias(t *testing.T) {
	tbl := NewAliasTable(4)
	assert.False(t, tbl.Register(Alias(0), NodeID(100)))
}

func TestAliasTableFullTableRejects(t *testing.T) {
	tbl := NewAliasTable(2)
	assert.True(t, tbl.Register(Alias(1), NodeID(1)))
	assert.True(t, tbl.Register(Alias(2), NodeID(2)))
	assert.False(t, tbl.Register(Alias(3), NodeID(3)))
}

func TestAliasTableUnregisterIsIdempotent(t *testing.T) {
	tbl := NewAliasTable(2)
	tbl.Register(Alias(1), NodeID(1))
	tbl.Unregister(Alias(1))
	tbl.Unregister(Alias(1))
	_, ok := tbl.FindByAlias(Alias(1))
	assert.False(t, ok)
}

func TestAliasTableDuplicateFlag(t *testing.T) {
	tbl := NewAliasTable(2)
	_, ok := tbl.ConsumeDuplicate()
	assert.False(t, ok)

	tbl.MarkDuplicate(Alias(7))
	alias, ok := tbl.ConsumeDuplicate()
	assert.True(t, ok)
	assert.Equal(t, Alias(7), alias)

	_, ok = tbl.ConsumeDuplicate()
	assert.False(t, ok, "the flag should clear once consumed")
}
