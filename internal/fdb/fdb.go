// Package fdb implements the forwarding database of the learning switch.
package fdb

import (
	"bytes"
	"sort"

	"firestige.xyz/shipswitch/internal/core"
)

// Entry is one learned address.
type Entry struct {
	MAC  core.MAC
	Port int
}

// Table maps source MAC addresses to the port they were first seen on.
// A learned MAC never moves to another port. Table is not safe for
// concurrent use; the dispatcher goroutine is its only user.
type Table struct {
	ports map[core.MAC]int
}

// New returns an empty table.
func New() *Table {
	return &Table{ports: make(map[core.MAC]int)}
}

// Observe records mac on port unless mac is already known. It reports
// whether a new entry was created.
func (t *Table) Observe(mac core.MAC, port int) bool {
	if _, ok := t.ports[mac]; ok {
		return false
	}
	t.ports[mac] = port
	return true
}

// Lookup returns the port mac was learned on.
func (t *Table) Lookup(mac core.MAC) (int, bool) {
	port, ok := t.ports[mac]
	return port, ok
}

// Len returns the number of learned addresses.
func (t *Table) Len() int {
	return len(t.ports)
}

// Entries returns a snapshot sorted by port, then MAC.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.ports))
	for mac, port := range t.ports {
		out = append(out, Entry{MAC: mac, Port: port})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Port != out[j].Port {
			return out[i].Port < out[j].Port
		}
		return bytes.Compare(out[i].MAC[:], out[j].MAC[:]) < 0
	})
	return out
}
