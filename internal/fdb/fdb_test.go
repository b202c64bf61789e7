package fdb

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"firestige.xyz/shipswitch/internal/core"
)

func TestObserveIdempotent(t *testing.T) {
	tbl := New()
	mac := core.MAC{0xaa, 0, 0, 0, 0, 1}

	assert.True(t, tbl.Observe(mac, 0))
	assert.False(t, tbl.Observe(mac, 0))
	assert.Equal(t, 1, tbl.Len())

	port, ok := tbl.Lookup(mac)
	assert.True(t, ok)
	assert.Equal(t, 0, port)
}

func TestObserveFirstWriterWins(t *testing.T) {
	tbl := New()
	mac := core.MAC{0xaa, 0, 0, 0, 0, 1}

	tbl.Observe(mac, 2)
	assert.False(t, tbl.Observe(mac, 5))

	port, _ := tbl.Lookup(mac)
	assert.Equal(t, 2, port)
	assert.Equal(t, 1, tbl.Len())
}

func TestLookupUnknown(t *testing.T) {
	tbl := New()
	_, ok := tbl.Lookup(core.BroadcastMAC)
	assert.False(t, ok)
	assert.Zero(t, tbl.Len())
}

func TestEntriesSorted(t *testing.T) {
	tbl := New()
	tbl.Observe(core.MAC{0xcc}, 1)
	tbl.Observe(core.MAC{0xbb}, 1)
	tbl.Observe(core.MAC{0xaa}, 2)
	tbl.Observe(core.MAC{0xdd}, 0)

	assert.Equal(t, []Entry{
		{MAC: core.MAC{0xdd}, Port: 0},
		{MAC: core.MAC{0xbb}, Port: 1},
		{MAC: core.MAC{0xcc}, Port: 1},
		{MAC: core.MAC{0xaa}, Port: 2},
	}, tbl.Entries())
}
