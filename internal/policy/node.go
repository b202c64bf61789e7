// Package policy holds the per-device publish/subscribe authorization table.
package policy

import (
	"net/netip"
	"sort"

	"firestige.xyz/shipswitch/internal/core"
)

// PrefixSet is a set of literal "$"+talker+type prefixes.
type PrefixSet map[string]struct{}

// NewPrefixSet builds a set from a list, dropping duplicates.
func NewPrefixSet(prefixes ...string) PrefixSet {
	s := make(PrefixSet, len(prefixes))
	for _, p := range prefixes {
		s[p] = struct{}{}
	}
	return s
}

// Contains reports whether prefix is a member. Matching is exact.
func (s PrefixSet) Contains(prefix string) bool {
	_, ok := s[prefix]
	return ok
}

// List returns the members sorted.
func (s PrefixSet) List() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Node is one attached device. Its Port is the index of its switch port and
// never changes after the table is built.
type Node struct {
	Port     int
	Key      string // policy file key
	Name     string
	Iface    string
	MAC      core.MAC
	IP       netip.Addr
	Sends    PrefixSet
	Receives PrefixSet
}

// MaySend reports whether the node is authorized to publish prefix.
func (n Node) MaySend(prefix string) bool {
	return n.Sends.Contains(prefix)
}

// MayReceive reports whether the node subscribes to prefix.
func (n Node) MayReceive(prefix string) bool {
	return n.Receives.Contains(prefix)
}
